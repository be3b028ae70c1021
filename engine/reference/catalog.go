// Package reference loads and indexes the static table of standard OBD-II
// codes with canonical descriptions. Pure lookup, no mutation: the catalog
// is the seed pool for generic imports and the ground truth for coverage
// percentages.
package reference

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/motorbase/dtckit/engine/domain"
)

// Entry is one standard (code, canonical description) pair, keyed by code
// alone: these are domain-wide definitions with no owner.
type Entry struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Catalog indexes reference entries by uppercased code.
type Catalog struct {
	byCode map[string]string
}

// Load reads a catalog from path, dispatching on extension: .csv expects
// headerless "code","description" rows, .json expects either an array of
// {code, description} objects or a {code: description} map.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference catalog: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadJSON(f)
	default:
		return LoadCSV(f)
	}
}

// LoadCSV parses headerless "code","description" rows. Rows with a
// malformed code are skipped.
func LoadCSV(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	byCode := make(map[string]string)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read reference csv: %w", err)
		}
		if len(row) < 2 {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(row[0]))
		if !domain.ValidCode(code) {
			continue
		}
		byCode[code] = strings.TrimSpace(row[1])
	}
	return &Catalog{byCode: byCode}, nil
}

// LoadJSON parses either an array of entries or a code->description map.
func LoadJSON(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read reference json: %w", err)
	}
	byCode := make(map[string]string)

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err == nil {
		for _, e := range entries {
			code := strings.ToUpper(strings.TrimSpace(e.Code))
			if domain.ValidCode(code) && e.Description != "" {
				byCode[code] = e.Description
			}
		}
		return &Catalog{byCode: byCode}, nil
	}

	var asMap map[string]string
	if err := json.Unmarshal(data, &asMap); err != nil {
		return nil, fmt.Errorf("parse reference json: %w", err)
	}
	for code, desc := range asMap {
		code = strings.ToUpper(strings.TrimSpace(code))
		if domain.ValidCode(code) {
			byCode[code] = desc
		}
	}
	return &Catalog{byCode: byCode}, nil
}

// New builds a catalog from entries, for tests and in-process seeding.
func New(entries []Entry) *Catalog {
	byCode := make(map[string]string, len(entries))
	for _, e := range entries {
		byCode[strings.ToUpper(e.Code)] = e.Description
	}
	return &Catalog{byCode: byCode}
}

// Lookup returns the canonical description for a code.
func (c *Catalog) Lookup(code string) (string, bool) {
	desc, ok := c.byCode[strings.ToUpper(code)]
	return desc, ok
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.byCode) }

// Entries returns all entries sorted by code.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c.byCode))
	for code, desc := range c.byCode {
		out = append(out, Entry{Code: code, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// WithPrefixes returns entries whose two-character prefix is in prefixes,
// sorted by code.
func (c *Catalog) WithPrefixes(prefixes []string) []Entry {
	want := make(map[string]bool, len(prefixes))
	for _, p := range prefixes {
		want[strings.ToUpper(p)] = true
	}
	var out []Entry
	for code, desc := range c.byCode {
		if len(code) >= 2 && want[code[:2]] {
			out = append(out, Entry{Code: code, Description: desc})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// CountByPrefix returns entry counts keyed by two-character prefix.
func (c *Catalog) CountByPrefix() map[string]int {
	counts := make(map[string]int)
	for code := range c.byCode {
		if len(code) >= 2 {
			counts[code[:2]]++
		}
	}
	return counts
}

// Overlap counts how many of the given codes exist in the catalog.
func (c *Catalog) Overlap(codes map[string]bool) int {
	n := 0
	for code := range codes {
		if _, ok := c.byCode[strings.ToUpper(code)]; ok {
			n++
		}
	}
	return n
}
