// Package store persists workflow definitions on disk and keeps the
// system/user/pending catalog consistent.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/fsutil"
	"github.com/weftlabs/weft/internal/logging"
)

const (
	systemSubdir  = "templates"
	userSubdir    = "templates/custom"
	pendingSubdir = "learned"
)

// Store manages workflow definitions across three tiers: read-only
// system templates, user-owned workflows, and machine-drafted
// candidates pending review.
type Store struct {
	root   string
	logger *logging.Logger

	mu    sync.Mutex
	cache map[string]*core.Definition // name -> definition, user shadowing system
	dirty bool
}

// New returns a Store rooted at dir, creating the tier directories if
// needed.
func New(dir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	for _, sub := range []string{systemSubdir, userSubdir, pendingSubdir} {
		if err := fsutil.EnsureDir(filepath.Join(dir, sub)); err != nil {
			return nil, fmt.Errorf("creating workflow directory: %w", err)
		}
	}
	return &Store{root: dir, logger: logger, dirty: true}, nil
}

// Root reports the directory the store manages.
func (s *Store) Root() string { return s.root }

func (s *Store) systemDir() string  { return filepath.Join(s.root, systemSubdir) }
func (s *Store) userDir() string    { return filepath.Join(s.root, filepath.FromSlash(userSubdir)) }
func (s *Store) pendingDir() string { return filepath.Join(s.root, pendingSubdir) }

// LoadFile parses and fully validates a single workflow file. The
// returned definition carries the given source tier.
func LoadFile(path string, source core.Source) (*core.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.ErrSchema(path, "reading workflow file").WithCause(err)
	}
	var def core.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, core.ErrSchema(path, "parsing workflow YAML").WithCause(err)
	}
	def.Source = source
	if err := core.ValidateDefinition(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// refresh rebuilds the in-memory catalog from disk. Caller holds mu.
func (s *Store) refresh() error {
	if !s.dirty && s.cache != nil {
		return nil
	}
	cache := make(map[string]*core.Definition)
	load := func(dir string, source core.Source) error {
		files, err := fsutil.ListYAML(dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			def, err := LoadFile(f, source)
			if err != nil {
				// A broken file must not hide the rest of the catalog.
				s.logger.Warn("skipping invalid workflow file", "path", f, "error", err)
				continue
			}
			cache[def.Name] = def
		}
		return nil
	}
	if err := load(s.systemDir(), core.SourceSystem); err != nil {
		return err
	}
	// User definitions shadow system ones with the same name.
	if err := load(s.userDir(), core.SourceUser); err != nil {
		return err
	}
	s.cache = cache
	s.dirty = false
	return nil
}

// List returns every loadable definition, sorted by priority rank then
// name.
func (s *Store) List() ([]*core.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(); err != nil {
		return nil, err
	}
	defs := make([]*core.Definition, 0, len(s.cache))
	for _, d := range s.cache {
		defs = append(defs, d)
	}
	core.SortDefinitions(defs)
	return defs, nil
}

// Get returns the definition with the given name, preferring the user
// tier over the system tier.
func (s *Store) Get(name string) (*core.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(); err != nil {
		return nil, err
	}
	def, ok := s.cache[name]
	if !ok {
		return nil, s.notFound(name)
	}
	return def, nil
}

// notFound builds a WORKFLOW_NOT_FOUND error enriched with fuzzy
// name suggestions. Caller holds mu with a fresh cache.
func (s *Store) notFound(name string) error {
	names := make([]string, 0, len(s.cache))
	for n := range s.cache {
		names = append(names, n)
	}
	sort.Strings(names)
	err := core.ErrWorkflowNotFound(name)
	matches := fuzzy.Find(name, names)
	if len(matches) > 0 {
		suggestions := make([]string, 0, 3)
		for i, m := range matches {
			if i == 3 {
				break
			}
			suggestions = append(suggestions, m.Str)
		}
		err.Message = fmt.Sprintf("workflow %q not found (did you mean %s?)", name, strings.Join(suggestions, ", "))
	}
	return err
}

// Pending returns the machine-drafted definitions awaiting review,
// sorted by name.
func (s *Store) Pending() ([]*core.Definition, error) {
	files, err := fsutil.ListYAML(s.pendingDir())
	if err != nil {
		return nil, err
	}
	var defs []*core.Definition
	for _, f := range files {
		def, err := LoadFile(f, core.SourcePending)
		if err != nil {
			s.logger.Warn("skipping invalid draft", "path", f, "error", err)
			continue
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// Save validates and writes a user-tier definition. Saving over a
// system template is refused; shadowing must go through an explicit
// user file created by the caller under a different name.
func (s *Store) Save(def *core.Definition) error {
	if err := core.ValidateDefinition(def); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(); err != nil {
		return err
	}
	if existing, ok := s.cache[def.Name]; ok && existing.Source == core.SourceSystem {
		return core.ErrReadOnly(def.Name)
	}
	def.Source = core.SourceUser
	if err := s.writeDefinition(s.userDir(), def); err != nil {
		return err
	}
	s.cache[def.Name] = def
	return nil
}

// Delete removes a user-tier definition. System templates cannot be
// deleted.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(); err != nil {
		return err
	}
	def, ok := s.cache[name]
	if !ok {
		return s.notFound(name)
	}
	if def.Source == core.SourceSystem {
		return core.ErrReadOnly(name)
	}
	if err := os.Remove(s.definitionPath(s.userDir(), name)); err != nil {
		return fmt.Errorf("deleting workflow %q: %w", name, err)
	}
	delete(s.cache, name)
	s.dirty = true
	return nil
}

// RecordUsage bumps the usage counter and folds the run outcome into
// the success rate as a running mean. System templates track stats in
// memory only for the current process; user files are rewritten
// atomically.
func (s *Store) RecordUsage(name string, succeeded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refresh(); err != nil {
		return err
	}
	def, ok := s.cache[name]
	if !ok {
		return s.notFound(name)
	}
	n := float64(def.UsageCount)
	outcome := 0.0
	if succeeded {
		outcome = 1.0
	}
	def.SuccessRate = (def.SuccessRate*n + outcome) / (n + 1)
	def.UsageCount++
	if def.Source != core.SourceUser {
		return nil
	}
	return s.writeDefinition(s.userDir(), def)
}

// Export renders a definition in canonical YAML for sharing.
func (s *Store) Export(name string) ([]byte, error) {
	def, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	return marshalDefinition(def)
}

// Import validates external YAML and installs it as a user workflow
// with usage statistics reset.
func (s *Store) Import(data []byte) (*core.Definition, error) {
	var def core.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, core.ErrSchema("import", "parsing imported YAML").WithCause(err)
	}
	def.UsageCount = 0
	def.SuccessRate = 0
	if err := s.Save(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Promote moves a pending draft into the user tier.
func (s *Store) Promote(name string) (*core.Definition, error) {
	path := s.definitionPath(s.pendingDir(), name)
	if !fsutil.Exists(path) {
		err := core.ErrWorkflowNotFound(name)
		err.Message = fmt.Sprintf("no pending draft named %q", name)
		return nil, err
	}
	def, err := LoadFile(path, core.SourcePending)
	if err != nil {
		return nil, err
	}
	if err := s.Save(def); err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		return nil, fmt.Errorf("removing promoted draft: %w", err)
	}
	s.logger.Info("promoted draft workflow", "workflow", def.Name)
	return def, nil
}

// SaveDraft writes a definition into the pending tier without touching
// the live catalog.
func (s *Store) SaveDraft(def *core.Definition) error {
	if err := core.ValidateDefinition(def); err != nil {
		return err
	}
	def.Source = core.SourcePending
	return s.writeDefinition(s.pendingDir(), def)
}

func (s *Store) definitionPath(dir, name string) string {
	return filepath.Join(dir, name+".yaml")
}

func (s *Store) writeDefinition(dir string, def *core.Definition) error {
	data, err := marshalDefinition(def)
	if err != nil {
		return err
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		return err
	}
	if err := fsutil.AtomicWriteFile(s.definitionPath(dir, def.Name), data, 0o644); err != nil {
		return fmt.Errorf("writing workflow %q: %w", def.Name, err)
	}
	return nil
}

func marshalDefinition(def *core.Definition) ([]byte, error) {
	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return nil, fmt.Errorf("encoding workflow %q: %w", def.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}
