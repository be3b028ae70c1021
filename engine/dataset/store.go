// Package dataset persists the curated code table. The CSV file is the
// source of truth; writes are atomic and guarded by an advisory file lock
// so concurrent runs cannot interleave partial datasets.
package dataset

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/motorbase/dtckit/engine/domain"
)

// Store reads and writes the dtc_codes CSV.
type Store struct {
	path string
	lock *flock.Flock
	log  *slog.Logger
}

// NewStore builds a store for the CSV at path. The lock file lives next
// to it.
func NewStore(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		log:  log.With("component", "dataset"),
	}
}

// Path returns the CSV location.
func (s *Store) Path() string { return s.path }

// Load reads the full dataset. A missing file is an empty dataset, not an
// error.
func (s *Store) Load(ctx context.Context) ([]domain.DiagnosticCode, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// Save writes the full dataset atomically: temp file in the same
// directory, fsync, rename. The advisory lock is held for the duration.
func (s *Store) Save(ctx context.Context, recs []domain.DiagnosticCode) error {
	locked, err := s.lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire dataset lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("dataset lock held elsewhere")
	}
	defer s.lock.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".dtc_codes-*.csv")
	if err != nil {
		return fmt.Errorf("create temp dataset: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, recs); err != nil {
		tmp.Close()
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace dataset: %w", err)
	}
	s.log.Info("dataset saved", "path", s.path, "records", len(recs))
	return nil
}

// ReadCSV parses the fixed-column dataset format. The header row is
// required; rows shorter than the column set are rejected.
func ReadCSV(r io.Reader) ([]domain.DiagnosticCode, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	if len(header) < len(domain.CSVColumns) || strings.TrimSpace(header[0]) != "code" {
		return nil, fmt.Errorf("unexpected dataset header: %v", header)
	}

	var out []domain.DiagnosticCode
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read dataset row %d: %w", line, err)
		}
		if len(row) < len(domain.CSVColumns) {
			return nil, fmt.Errorf("dataset row %d has %d columns, want %d", line, len(row), len(domain.CSVColumns))
		}
		out = append(out, domain.DiagnosticCode{
			Code:                row[0],
			MakeID:              row[1],
			Description:         row[2],
			DetailedDescription: row[3],
			System:              row[4],
			Severity:            row[5],
			CommonCauses:        decodeList(row[6]),
			Symptoms:            decodeList(row[7]),
			ApplicableModels:    row[8],
			ApplicableYears:     row[9],
			PowertrainType:      row[10],
		})
	}
	return out, nil
}

// WriteCSV emits the fixed-column dataset format.
func WriteCSV(w io.Writer, recs []domain.DiagnosticCode) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.CSVColumns); err != nil {
		return err
	}
	for _, rec := range recs {
		row := []string{
			rec.Code, rec.MakeID, rec.Description, rec.DetailedDescription,
			rec.System, rec.Severity,
			encodeList(rec.CommonCauses), encodeList(rec.Symptoms),
			rec.ApplicableModels, rec.ApplicableYears, rec.PowertrainType,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// encodeList serializes a list cell as a JSON array, empty string for an
// empty list.
func encodeList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	b, err := json.Marshal(items)
	if err != nil {
		return ""
	}
	return string(b)
}

// decodeList accepts a JSON array cell or a semicolon-separated legacy
// cell.
func decodeList(cell string) []string {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return []string{}
	}
	if strings.HasPrefix(cell, "[") {
		var items []string
		if err := json.Unmarshal([]byte(cell), &items); err == nil {
			return items
		}
	}
	var out []string
	for _, part := range strings.Split(cell, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Cleanup drops records whose code fails format validation and returns the
// kept records plus how many were removed. Kept records are untouched.
func Cleanup(recs []domain.DiagnosticCode) ([]domain.DiagnosticCode, int) {
	kept := make([]domain.DiagnosticCode, 0, len(recs))
	removed := 0
	for _, rec := range recs {
		if domain.ValidCode(rec.Code) && rec.MakeID != "" && rec.Description != "" {
			kept = append(kept, rec)
			continue
		}
		removed++
	}
	return kept, removed
}
