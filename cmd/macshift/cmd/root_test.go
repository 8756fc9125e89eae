package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/macshift/macshift/internal/engine"
	"github.com/macshift/macshift/internal/fsutil"
	"github.com/macshift/macshift/internal/ledger"
	"github.com/macshift/macshift/internal/macaddr"
	"github.com/macshift/macshift/internal/platform"
)

func TestRootCommand_Help(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{})

	_ = rootCmd.Execute()

	output := buf.String()
	if !strings.Contains(output, "macshift") {
		t.Errorf("help output should contain 'macshift', got: %s", output)
	}
	if !strings.Contains(output, "MAC address") {
		t.Errorf("help output should contain 'MAC address', got: %s", output)
	}
}

func TestRootCommand_Version(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2025-01-01")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--version"})

	_ = rootCmd.Execute()

	output := buf.String()
	if !strings.Contains(output, "1.2.3") {
		t.Errorf("version output should contain '1.2.3', got: %s", output)
	}
	if !strings.Contains(output, "abc123") {
		t.Errorf("version output should contain 'abc123', got: %s", output)
	}
	if !strings.Contains(output, "2025-01-01") {
		t.Errorf("version output should contain '2025-01-01', got: %s", output)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"invalid format", fmt.Errorf("set: %w", macaddr.ErrInvalidFormat), 2},
		{"invalid prefix", macaddr.ErrInvalidPrefixLength, 2},
		{"filter rejection", fmt.Errorf("set: %w", engine.ErrRuleViolation), 3},
		{"no backup", ledger.ErrNoBackup, 4},
		{"interface not found", &platform.Error{Category: platform.CategoryNotFound, Interface: "eth9"}, 5},
		{"permission denied", &platform.Error{Category: platform.CategoryPermissionDenied, Interface: "eth0"}, 6},
		{"unsupported", &platform.Error{Category: platform.CategoryUnsupported, Interface: "eth0"}, 7},
		{"card incompatible", &platform.Error{Category: platform.CategoryCardIncompatible, Interface: "eth0"}, 7},
		{"lock busy", fmt.Errorf("filters: %w", fsutil.ErrLockBusy), 8},
		{"plain error", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	a, err := macaddr.Parse("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tests := []struct {
		in   string
		want string
	}{
		{"colon", "aa:bb:cc:dd:ee:ff"},
		{"", "aa:bb:cc:dd:ee:ff"},
		{"hyphen", "aa-bb-cc-dd-ee-ff"},
		{"dot", "aa.bb.cc.dd.ee.ff"},
		{"raw", "aabbccddeeff"},
	}
	for _, tt := range tests {
		f, err := parseFormat(tt.in)
		if err != nil {
			t.Errorf("parseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if got := a.Format(f); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := parseFormat("binary"); err == nil {
		t.Error("parseFormat(\"binary\") error = nil, want error")
	}
}
