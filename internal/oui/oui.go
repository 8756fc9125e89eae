// Package oui maintains the vendor (OUI) registry used to compose
// vendor-prefixed MAC addresses and to map country codes to candidate
// prefixes. The registry is a local JSON snapshot refreshed from the
// IEEE published list on demand.
package oui

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/macshift/macshift/internal/fsutil"
	"github.com/macshift/macshift/internal/macaddr"
)

const registryFileName = "oui.json"

// DefaultRegistryURL is the IEEE OUI registry download location.
const DefaultRegistryURL = "https://standards-oui.ieee.org/oui/oui.txt"

// Vendor is one registered OUI assignment.
type Vendor struct {
	Prefix  string `json:"prefix"` // canonical colon form, 3 octets
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Store is the local registry snapshot. Reads are from an in-memory
// copy loaded at construction; Update rewrites both memory and disk.
type Store struct {
	dataDir string
	logger  *slog.Logger
	vendors map[string]Vendor // keyed by canonical prefix
}

// NewStore loads the registry snapshot from dataDir, seeding a small
// built-in set when no snapshot exists yet.
func NewStore(dataDir string, logger *slog.Logger) (*Store, error) {
	s := &Store{
		dataDir: dataDir,
		logger:  logger.With("component", "oui"),
		vendors: make(map[string]Vendor),
	}

	data, err := os.ReadFile(filepath.Join(dataDir, registryFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.seedDefaults()
			return s, nil
		}
		return nil, fmt.Errorf("oui: read registry: %w", err)
	}
	if err := json.Unmarshal(data, &s.vendors); err != nil {
		return nil, fmt.Errorf("oui: parse registry: %w", err)
	}
	return s, nil
}

// seedDefaults installs a handful of well-known assignments so vendor
// lookups work before the first registry refresh.
func (s *Store) seedDefaults() {
	defaults := []Vendor{
		{Prefix: "00:17:f2", Name: "Apple, Inc.", Country: "US"},
		{Prefix: "00:1a:11", Name: "Google, Inc.", Country: "US"},
		{Prefix: "00:50:56", Name: "VMware, Inc.", Country: "US"},
		{Prefix: "00:1b:63", Name: "Apple, Inc.", Country: "US"},
		{Prefix: "00:0c:43", Name: "Ralink Technology, Corp.", Country: "TW"},
	}
	for _, v := range defaults {
		s.vendors[v.Prefix] = v
	}
}

// Lookup returns the vendor owning the address's 3-octet prefix.
func (s *Store) Lookup(addr macaddr.Address) (Vendor, bool) {
	p, err := macaddr.PrefixOf(addr, 3)
	if err != nil {
		return Vendor{}, false
	}
	v, ok := s.vendors[p.String()]
	return v, ok
}

// PrefixesForCountry returns the registered prefixes for a country
// code, sorted for determinism. An unknown country yields an empty
// set; callers degrade to unconstrained generation.
func (s *Store) PrefixesForCountry(country string) []macaddr.Prefix {
	var out []macaddr.Prefix
	cc := strings.ToUpper(strings.TrimSpace(country))
	for _, v := range s.vendors {
		if strings.ToUpper(v.Country) != cc {
			continue
		}
		p, err := macaddr.ParsePrefix(v.Prefix)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Countries returns all country codes present in the registry, sorted.
func (s *Store) Countries() []string {
	seen := make(map[string]bool)
	for _, v := range s.vendors {
		if v.Country != "" {
			seen[strings.ToUpper(v.Country)] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered vendors.
func (s *Store) Len() int { return len(s.vendors) }

// Update downloads the IEEE registry, parses it, and replaces the
// local snapshot. The previous snapshot is kept when the download or
// parse yields nothing.
func (s *Store) Update(ctx context.Context, client *http.Client, url string) error {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	if url == "" {
		url = DefaultRegistryURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("oui: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("oui: download registry: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oui: download registry: HTTP %d", resp.StatusCode)
	}

	vendors, err := ParseRegistry(resp.Body)
	if err != nil {
		return err
	}
	if len(vendors) == 0 {
		return errors.New("oui: registry download contained no assignments")
	}

	data, err := json.Marshal(vendors)
	if err != nil {
		return fmt.Errorf("oui: marshal registry: %w", err)
	}
	if err := fsutil.EnsureDir(s.dataDir, 0o700); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.dataDir, registryFileName, data, 0o600); err != nil {
		return fmt.Errorf("oui: persist registry: %w", err)
	}
	s.vendors = vendors

	s.logger.Info("oui registry updated", "vendors", len(vendors))
	return nil
}

// ParseRegistry reads the IEEE text registry format. Each assignment
// block starts with a "XX-XX-XX   (hex)   Vendor Name" line followed
// by indented address lines; the last address line carries the country.
func ParseRegistry(r io.Reader) (map[string]Vendor, error) {
	vendors := make(map[string]Vendor)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current *Vendor
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.Contains(line, "(hex)") {
			// Flush the previous block.
			if current != nil {
				vendors[current.Prefix] = *current
			}
			fields := strings.SplitN(trimmed, "(hex)", 2)
			if len(fields) != 2 {
				current = nil
				continue
			}
			p, err := macaddr.ParsePrefix(strings.TrimSpace(fields[0]))
			if err != nil || p.Len() != 3 {
				current = nil
				continue
			}
			current = &Vendor{
				Prefix: p.String(),
				Name:   strings.TrimSpace(fields[1]),
			}
			continue
		}

		if current == nil {
			continue
		}
		if trimmed == "" {
			vendors[current.Prefix] = *current
			current = nil
			continue
		}
		if strings.Contains(line, "(base 16)") {
			continue
		}
		// Address lines: the last non-empty one is the country code.
		current.Country = trimmed
	}
	if current != nil {
		vendors[current.Prefix] = *current
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("oui: scan registry: %w", err)
	}
	return vendors, nil
}
