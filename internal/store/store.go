// Package store persists the agent's two pieces of local state: the last
// selection made on the form and the date of the last successful submission.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MarkerLayout is the date format of the submission marker
const MarkerLayout = "2006-01-02"

// ErrNoSelection is returned when no selection has been saved yet
var ErrNoSelection = errors.New("no saved selection")

// ErrNoMarker is returned when no submission has been recorded yet
var ErrNoMarker = errors.New("no submission marker")

// Selection is the asset, responsible person and room chosen by the user.
// All three are opaque ids assigned by the directory service.
type Selection struct {
	Asset       string `json:"patrimonio"`
	Responsible string `json:"responsavel"`
	Room        string `json:"sala"`
}

// Complete reports whether all three ids are set
func (s Selection) Complete() bool {
	return s.Asset != "" && s.Responsible != "" && s.Room != ""
}

// Missing lists the names of unset ids
func (s Selection) Missing() []string {
	var missing []string
	if s.Asset == "" {
		missing = append(missing, "asset")
	}
	if s.Responsible == "" {
		missing = append(missing, "responsible")
	}
	if s.Room == "" {
		missing = append(missing, "room")
	}
	return missing
}

// Fields returns the selection as the key/value mapping merged into the
// submission payload
func (s Selection) Fields() map[string]any {
	return map[string]any{
		"patrimonio":  s.Asset,
		"responsavel": s.Responsible,
		"sala":        s.Room,
	}
}

// Store reads and writes the state files
type Store struct {
	selectionPath string
	markerPath    string
}

// New creates a store for the given file paths
func New(selectionPath, markerPath string) *Store {
	return &Store{
		selectionPath: selectionPath,
		markerPath:    markerPath,
	}
}

// SaveSelection writes the selection cache
func (s *Store) SaveSelection(sel Selection) error {
	data, err := json.MarshalIndent(sel, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}
	if err := writeFile(s.selectionPath, data); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	return nil
}

// LoadSelection reads the selection cache. Ids stored as JSON numbers by
// older versions are accepted.
func (s *Store) LoadSelection() (Selection, error) {
	data, err := os.ReadFile(s.selectionPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Selection{}, ErrNoSelection
	}
	if err != nil {
		return Selection{}, fmt.Errorf("failed to read selection: %w", err)
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Selection{}, fmt.Errorf("selection file is corrupt: %w", err)
	}

	return Selection{
		Asset:       idString(raw["patrimonio"]),
		Responsible: idString(raw["responsavel"]),
		Room:        idString(raw["sala"]),
	}, nil
}

// WriteMarker records t's date as the last successful submission
func (s *Store) WriteMarker(t time.Time) error {
	if err := writeFile(s.markerPath, []byte(t.Format(MarkerLayout))); err != nil {
		return fmt.Errorf("failed to write submission marker: %w", err)
	}
	return nil
}

// ReadMarker returns the date of the last successful submission
func (s *Store) ReadMarker() (time.Time, error) {
	data, err := os.ReadFile(s.markerPath)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, ErrNoMarker
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read submission marker: %w", err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return time.Time{}, ErrNoMarker
	}
	t, err := time.ParseInLocation(MarkerLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("submission marker is corrupt: %w", err)
	}
	return t, nil
}

// DueForSubmission reports whether a new submission is due at now: when no
// valid marker exists, or when now falls in a later calendar month than the
// marker.
func (s *Store) DueForSubmission(now time.Time) bool {
	last, err := s.ReadMarker()
	if err != nil {
		return true
	}
	return now.Year() > last.Year() ||
		(now.Year() == last.Year() && now.Month() > last.Month())
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	default:
		return strings.TrimSpace(fmt.Sprint(id))
	}
}

// writeFile replaces path atomically
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
