package cmd

import (
	"testing"
	"time"

	"github.com/macshift/macshift/internal/rules"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		spec    string
		want    rules.Window
		wantErr bool
	}{
		{spec: "mon 09:00-17:00", want: rules.Window{Day: time.Monday, Start: "09:00", End: "17:00"}},
		{spec: "Friday 22:00-23:30", want: rules.Window{Day: time.Friday, Start: "22:00", End: "23:30"}},
		{spec: "SUN 00:00-23:59", want: rules.Window{Day: time.Sunday, Start: "00:00", End: "23:59"}},
		{spec: "mon 17:00-09:00", wantErr: true}, // start after end
		{spec: "mon 09:00", wantErr: true},       // no range
		{spec: "someday 09:00-17:00", wantErr: true},
		{spec: "mon 9am-5pm", wantErr: true},
		{spec: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := parseWindow(tt.spec)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseWindow(%q) error = nil, want error", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseWindow(%q) error = %v", tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("parseWindow(%q) = %+v, want %+v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestFormatRule(t *testing.T) {
	r := rules.AppRule{
		Name:      "vpn",
		Interface: "eth0",
		Target:    rules.TargetExplicit,
		Address:   "02:11:22:33:44:55",
		Schedule: []rules.Window{
			{Day: time.Monday, Start: "09:00", End: "17:00"},
		},
		Enabled:    true,
		Privileged: true,
	}
	got := formatRule(r)
	want := "vpn: eth0 -> 02:11:22:33:44:55 [mon 09:00-17:00] (privileged)"
	if got != want {
		t.Errorf("formatRule() = %q, want %q", got, want)
	}

	always := rules.AppRule{Name: "lab", Interface: "wlan0", Target: rules.TargetRandom}
	got = formatRule(always)
	want = "lab: wlan0 -> random [always] (disabled)"
	if got != want {
		t.Errorf("formatRule() = %q, want %q", got, want)
	}
}
