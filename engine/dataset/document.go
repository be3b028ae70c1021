package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/motorbase/dtckit/engine/domain"
)

// MakeEntity is one manufacturer entry in the merged app document.
type MakeEntity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
}

// Entity is a loose vehicle-side record (model, generation, variant)
// carried through the merged document untouched except for id-keyed
// merging. The "id" field is its identity.
type Entity map[string]any

// ID returns the entity's id field.
func (e Entity) ID() string {
	id, _ := e["id"].(string)
	return id
}

// Document is the versioned merged JSON consumed by downstream apps. Every
// publish bumps Version and stamps LastUpdated.
type Document struct {
	// Version is a semver string. The first publish stamps 1.0.0, each
	// one after bumps the minor component.
	Version     string                  `json:"version"`
	LastUpdated string                  `json:"last_updated"`
	Makes       []MakeEntity            `json:"makes,omitempty"`
	Vehicles    []Entity                `json:"vehicles,omitempty"`
	DTCCodes    []domain.DiagnosticCode `json:"dtc_codes"`
}

// LoadDocument reads a merged document. A missing file yields an empty
// document at version zero.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read merged document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse merged document: %w", err)
	}
	return &doc, nil
}

// Publish folds the current dataset and make entities into the document:
// codes are replaced wholesale, make entities are merged by id with
// incoming fields winning, the version is bumped and the timestamp set.
func (d *Document) Publish(recs []domain.DiagnosticCode, makes []MakeEntity, now time.Time) {
	byID := make(map[string]int, len(d.Makes))
	for i, m := range d.Makes {
		byID[m.ID] = i
	}
	for _, m := range makes {
		if i, ok := byID[m.ID]; ok {
			if m.Name != "" {
				d.Makes[i].Name = m.Name
			}
			if m.Country != "" {
				d.Makes[i].Country = m.Country
			}
			continue
		}
		byID[m.ID] = len(d.Makes)
		d.Makes = append(d.Makes, m)
	}
	sort.Slice(d.Makes, func(i, j int) bool { return d.Makes[i].ID < d.Makes[j].ID })

	d.DTCCodes = recs
	d.Version = bumpVersion(d.Version)
	d.LastUpdated = now.UTC().Format(time.RFC3339)
}

// bumpVersion advances the minor component of a MAJOR.MINOR.PATCH string.
// Anything unparsable restarts at 1.0.0.
func bumpVersion(v string) string {
	var major, minor, patch int
	if _, err := fmt.Sscanf(v, "%d.%d.%d", &major, &minor, &patch); err != nil {
		return "1.0.0"
	}
	return fmt.Sprintf("%d.%d.0", major, minor+1)
}

// MergeVehicles folds incoming vehicle entities in by id: matching
// entities take the incoming fields, unknown ids append. Entities without
// an id are dropped.
func (d *Document) MergeVehicles(incoming []Entity) {
	byID := make(map[string]int, len(d.Vehicles))
	for i, e := range d.Vehicles {
		byID[e.ID()] = i
	}
	for _, e := range incoming {
		id := e.ID()
		if id == "" {
			continue
		}
		if i, ok := byID[id]; ok {
			for k, v := range e {
				d.Vehicles[i][k] = v
			}
			continue
		}
		byID[id] = len(d.Vehicles)
		d.Vehicles = append(d.Vehicles, e)
	}
	sort.Slice(d.Vehicles, func(i, j int) bool { return d.Vehicles[i].ID() < d.Vehicles[j].ID() })
}

// SaveDocument writes the document atomically next to its final path.
func SaveDocument(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode merged document: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".app_data-*.json")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write merged document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace merged document: %w", err)
	}
	return nil
}
