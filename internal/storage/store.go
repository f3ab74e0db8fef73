// Package storage persists recorded macros as one JSON file each and merges
// them with the built-in macros into a library.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"keyloop/internal/macro"
)

var (
	ErrNotFound = errors.New("macro not found")
	ErrExists   = errors.New("macro already exists")
	ErrBuiltIn  = errors.New("built-in macros cannot be modified")
	ErrReadOnly = errors.New("macro is defined in a YAML file; edit the file instead")
)

const fileVersion = 1

// file is the on-disk shape: the macro record plus a format version.
type file struct {
	Version int `json:"version,omitempty"`
	macro.Record
}

// Store keeps recorded macros in a directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// Open creates dir if needed.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create macro dir: %w", err)
	}
	logger.Debug("macro storage opened", "dir", dir)
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// SafeFilename maps a macro name to a file stem: characters other than
// letters, digits, space, '-' and '_' become '_', runs of whitespace become a
// single '_', and the result is lowercased.
func SafeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	safe := strings.ToLower(strings.Join(strings.Fields(b.String()), "_"))
	if safe == "" {
		return "macro"
	}
	return safe
}

// locate finds the file holding name. Different names can share a safe
// filename, so colliding files get a numeric suffix ("farm_xp_2.json"). When
// name is not stored, locate returns the first free path.
func (s *Store) locate(name string) (path string, found bool) {
	stem := SafeFilename(name)
	entries, _ := os.ReadDir(s.dir)

	taken := make(map[string]bool)
	for _, e := range entries {
		file := e.Name()
		if !isCandidate(file, stem) {
			continue
		}
		taken[file] = true
		r, err := readFile(filepath.Join(s.dir, file))
		if err == nil && macro.SameName(r.Name, name) {
			return filepath.Join(s.dir, file), true
		}
	}

	for i := 1; ; i++ {
		file := stem + ".json"
		if i > 1 {
			file = fmt.Sprintf("%s_%d.json", stem, i)
		}
		if !taken[file] {
			return filepath.Join(s.dir, file), false
		}
	}
}

// findYAML returns the macro called name from a hand-written .yaml/.yml file.
func (s *Store) findYAML(name string) (macro.Macro, string, bool) {
	entries, _ := os.ReadDir(s.dir)
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		ms, err := loadYAML(path)
		if err != nil {
			continue
		}
		for _, m := range ms {
			if macro.SameName(m.Name, name) {
				return m, path, true
			}
		}
	}
	return macro.Macro{}, "", false
}

func isYAML(file string) bool {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func loadYAML(path string) ([]macro.Macro, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return macro.DecodeYAML(data)
}

// readOnly reports a YAML-backed name that has no JSON file of its own.
func (s *Store) readOnly(name string) error {
	if _, path, ok := s.findYAML(name); ok {
		return fmt.Errorf("%w: %q (%s)", ErrReadOnly, name, filepath.Base(path))
	}
	return nil
}

func isCandidate(file, stem string) bool {
	base, ok := strings.CutSuffix(file, ".json")
	if !ok {
		return false
	}
	if base == stem {
		return true
	}
	suffix, ok := strings.CutPrefix(base, stem+"_")
	if !ok || suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Save writes m, replacing any stored macro with the same name.
func (s *Store) Save(m macro.Macro) error {
	if m.BuiltIn {
		return ErrBuiltIn
	}
	if err := m.Validate(); err != nil {
		return err
	}
	path, found := s.locate(m.Name)
	if !found {
		if err := s.readOnly(m.Name); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(file{Version: fileVersion, Record: macro.ToRecord(m)}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode macro: %w", err)
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("save macro %q: %w", m.Name, err)
	}
	s.logger.Info("macro saved", "macro", m.Name, "path", path)
	return nil
}

// Load returns the stored macro called name. JSON files are checked before
// hand-written YAML files.
func (s *Store) Load(name string) (macro.Macro, error) {
	path, found := s.locate(name)
	if !found {
		if m, _, ok := s.findYAML(name); ok {
			return m, nil
		}
		return macro.Macro{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	r, err := readFile(path)
	if err != nil {
		return macro.Macro{}, err
	}
	return macro.FromRecord(r)
}

// LoadAll returns every readable macro, sorted by name. Files that cannot be
// read or fail validation are logged and skipped. Hand-written .yaml/.yml
// files are included.
func (s *Store) LoadAll() []macro.Macro {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("list macro dir", "dir", s.dir, "err", err)
		return nil
	}
	// JSON first so a name in both formats resolves the way Load does.
	sort.SliceStable(entries, func(i, j int) bool {
		return !isYAML(entries[i].Name()) && isYAML(entries[j].Name())
	})

	var out []macro.Macro
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		var ms []macro.Macro
		switch {
		case strings.EqualFold(filepath.Ext(e.Name()), ".json"):
			m, err := loadJSON(path)
			if err != nil {
				s.logger.Warn("skipping macro file", "path", path, "err", err)
				continue
			}
			ms = []macro.Macro{m}
		case isYAML(e.Name()):
			var err error
			ms, err = loadYAML(path)
			if err != nil {
				s.logger.Warn("skipping macro file", "path", path, "err", err)
				continue
			}
		default:
			continue
		}
		for _, m := range ms {
			if seen[m.Name] {
				s.logger.Warn("duplicate macro name, skipping", "macro", m.Name, "path", path)
				continue
			}
			seen[m.Name] = true
			out = append(out, m)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	s.logger.Debug("macros loaded", "count", len(out))
	return out
}

// Delete removes the stored macro called name.
func (s *Store) Delete(name string) error {
	path, found := s.locate(name)
	if !found {
		if err := s.readOnly(name); err != nil {
			return err
		}
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete macro %q: %w", name, err)
	}
	s.logger.Info("macro deleted", "macro", name, "path", path)
	return nil
}

// Exists reports whether a macro called name is stored in either format.
func (s *Store) Exists(name string) bool {
	if _, found := s.locate(name); found {
		return true
	}
	_, _, found := s.findYAML(name)
	return found
}

// Names returns the names of all stored macros.
func (s *Store) Names() []string {
	var names []string
	for _, m := range s.LoadAll() {
		names = append(names, m.Name)
	}
	return names
}

func readFile(path string) (macro.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return macro.Record{}, err
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return macro.Record{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if f.Version > fileVersion {
		return macro.Record{}, fmt.Errorf("%s: unsupported version %d", filepath.Base(path), f.Version)
	}
	return f.Record, nil
}

func loadJSON(path string) (macro.Macro, error) {
	r, err := readFile(path)
	if err != nil {
		return macro.Macro{}, err
	}
	return macro.FromRecord(r)
}

// writeAtomic writes to a temp file in the same directory and renames it
// over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".macro-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
