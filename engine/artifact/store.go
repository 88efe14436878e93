package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/flock"
	copydir "github.com/otiai10/copy"
	"github.com/spf13/afero"
)

// Store is the afero.Fs-backed implementation of the §9 filesystem trait
// (Open/List/Exists/Mkdir/Rm/Touch), rooted at a real OS directory: write
// locking (gofrs/flock) and directory duplication (otiai10/copy) both
// require genuine filesystem paths, so Store always wraps
// afero.NewOsFs() via afero.NewBasePathFs rather than accepting an
// arbitrary (possibly in-memory) afero.Fs.
type Store struct {
	fs   afero.Fs
	root string // real OS path this Store is rooted at
}

// NewStore roots a Store at basePath, creating `<basePath>/artifacts` if
// necessary.
func NewStore(basePath string) (*Store, error) {
	root := filepath.Join(basePath, "artifacts")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, core.NewError(fmt.Errorf("create artifact root: %w", err), core.CodeWriteError, nil)
	}
	return &Store{fs: afero.NewBasePathFs(afero.NewOsFs(), root), root: root}, nil
}

func (s *Store) relDir(namespace, name string) string {
	return filepath.Join(resolveNamespace(namespace), name)
}

func (s *Store) absDir(namespace, name string) string {
	return filepath.Join(s.root, s.relDir(namespace, name))
}

func (s *Store) lockPath(namespace, name string) string {
	return s.absDir(namespace, name) + ".lock"
}

// Create makes a new artifact directory and writes its initial metadata
// file. Returns core.CodeConflict if the artifact already exists.
func (s *Store) Create(_ context.Context, namespace, name string, metadata map[string]any) (*Artifact, error) {
	if err := ValidateName(name); err != nil {
		return nil, core.NewError(err, core.CodeValidationError, nil)
	}
	namespace = resolveNamespace(namespace)
	dir := s.relDir(namespace, name)
	if exists, _ := afero.DirExists(s.fs, dir); exists {
		return nil, core.NewError(fmt.Errorf("artifact %s/%s already exists", namespace, name),
			core.CodeConflict, map[string]any{"namespace": namespace, "name": name})
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, core.NewError(fmt.Errorf("create artifact dir: %w", err), core.CodeWriteError, nil)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	if err := s.writeMetadata(namespace, name, metadata); err != nil {
		return nil, err
	}
	return &Artifact{Name: name, Namespace: namespace, Metadata: metadata, Files: nil}, nil
}

func (s *Store) writeMetadata(namespace, name string, metadata map[string]any) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return core.NewError(fmt.Errorf("marshal artifact metadata: %w", err), core.CodeValidationError, nil)
	}
	unlock, err := s.lock(namespace, name)
	if err != nil {
		return err
	}
	defer unlock()
	path := filepath.Join(s.relDir(namespace, name), MetadataFile)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return core.NewError(fmt.Errorf("write artifact metadata: %w", err), core.CodeWriteError, nil)
	}
	return nil
}

// Get loads an artifact's metadata and the list of its non-reserved
// sibling files. Returns core.CodeResourceNotFound if the artifact
// directory does not exist.
func (s *Store) Get(_ context.Context, namespace, name string) (*Artifact, error) {
	namespace = resolveNamespace(namespace)
	dir := s.relDir(namespace, name)
	if exists, _ := afero.DirExists(s.fs, dir); !exists {
		return nil, core.NewError(fmt.Errorf("artifact %s/%s not found", namespace, name),
			core.CodeResourceNotFound, map[string]any{"namespace": namespace, "name": name})
	}
	metaPath := filepath.Join(dir, MetadataFile)
	metadata := map[string]any{}
	if raw, err := afero.ReadFile(s.fs, metaPath); err == nil {
		if err := json.Unmarshal(raw, &metadata); err != nil {
			return nil, core.NewError(fmt.Errorf("decode artifact metadata: %w", err), core.CodeSchemaMismatch, nil)
		}
	}
	files, err := s.List(context.Background(), namespace, name)
	if err != nil {
		return nil, err
	}
	return &Artifact{Name: name, Namespace: namespace, Metadata: metadata, Files: files}, nil
}

// Exists reports whether the artifact's directory is present.
func (s *Store) Exists(_ context.Context, namespace, name string) bool {
	exists, _ := afero.DirExists(s.fs, s.relDir(namespace, name))
	return exists
}

// List returns the artifact's sibling filenames, excluding the reserved
// metadata file, sorted for deterministic output.
func (s *Store) List(_ context.Context, namespace, name string) ([]string, error) {
	dir := s.relDir(namespace, name)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.NewError(fmt.Errorf("artifact %s/%s not found", namespace, name),
				core.CodeResourceNotFound, nil)
		}
		return nil, core.NewError(fmt.Errorf("list artifact files: %w", err), core.CodeWriteError, nil)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name() == MetadataFile {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// Mkdir is the filesystem trait's directory-creation primitive, used for
// nested paths under an artifact (spec §9 "{open, list, exists, mkdir,
// rm, touch}").
func (s *Store) Mkdir(_ context.Context, namespace, name, subdir string) error {
	dir := filepath.Join(s.relDir(namespace, name), subdir)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return core.NewError(fmt.Errorf("mkdir: %w", err), core.CodeWriteError, nil)
	}
	return nil
}

// Touch creates filename if absent (truncating if present) without
// writing content, mirroring the filesystem trait's `touch`.
func (s *Store) Touch(_ context.Context, namespace, name, filename string) error {
	if err := ValidateFilename(filename); err != nil {
		return core.NewError(err, core.CodeValidationError, nil)
	}
	if !s.Exists(context.Background(), namespace, name) {
		return core.NewError(fmt.Errorf("artifact %s/%s not found", namespace, name), core.CodeResourceNotFound, nil)
	}
	unlock, err := s.lock(namespace, name)
	if err != nil {
		return err
	}
	defer unlock()
	path := filepath.Join(s.relDir(namespace, name), filename)
	f, ferr := s.fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if ferr != nil {
		return core.NewError(fmt.Errorf("touch: %w", ferr), core.CodeWriteError, nil)
	}
	return f.Close()
}

// WriteFile writes filename's content, holding an exclusive flock for the
// duration of the write (spec §5 "Shared resources": artifact writes are
// serialized per artifact, not globally).
func (s *Store) WriteFile(_ context.Context, namespace, name, filename string, data []byte) error {
	if err := ValidateFilename(filename); err != nil {
		return core.NewError(err, core.CodeValidationError, nil)
	}
	if !s.Exists(context.Background(), namespace, name) {
		return core.NewError(fmt.Errorf("artifact %s/%s not found", namespace, name), core.CodeResourceNotFound, nil)
	}
	unlock, err := s.lock(namespace, name)
	if err != nil {
		return err
	}
	defer unlock()
	path := filepath.Join(s.relDir(namespace, name), filename)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return core.NewError(fmt.Errorf("write artifact file: %w", err), core.CodeWriteError, nil)
	}
	return nil
}

// Open returns a readable handle on filename (the trait's `open`).
func (s *Store) Open(_ context.Context, namespace, name, filename string) (afero.File, error) {
	if err := ValidateFilename(filename); err != nil {
		return nil, core.NewError(err, core.CodeValidationError, nil)
	}
	path := filepath.Join(s.relDir(namespace, name), filename)
	f, err := s.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.NewError(fmt.Errorf("artifact file %s not found", filename), core.CodeResourceNotFound, nil)
		}
		return nil, core.NewError(fmt.Errorf("open artifact file: %w", err), core.CodeWriteError, nil)
	}
	return f, nil
}

// Rm removes the whole artifact, including its metadata file and every
// sibling object (the trait's `rm`).
func (s *Store) Rm(_ context.Context, namespace, name string) error {
	unlock, err := s.lock(namespace, name)
	if err != nil {
		return err
	}
	defer unlock()
	if err := s.fs.RemoveAll(s.relDir(namespace, name)); err != nil {
		return core.NewError(fmt.Errorf("remove artifact: %w", err), core.CodeWriteError, nil)
	}
	return nil
}

// ContentType sniffs filename's MIME type from its leading bytes
// (SPEC_FULL §3's `gabriel-vasile/mimetype` binding), falling back to the
// stdlib's table when the detailed library has no sharper match.
func (s *Store) ContentType(ctx context.Context, namespace, name, filename string) (string, error) {
	f, err := s.Open(ctx, namespace, name, filename)
	if err != nil {
		return "", err
	}
	defer f.Close()
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", core.NewError(fmt.Errorf("detect content type: %w", err), core.CodeWriteError, nil)
	}
	return mt.String(), nil
}

// Glob matches sibling filenames against pattern (SPEC_FULL §3's
// `bmatcuk/doublestar/v4` binding), e.g. "*.json" or "reports/**/*.csv".
func (s *Store) Glob(_ context.Context, namespace, name, pattern string) ([]string, error) {
	dir := s.absDir(namespace, name)
	full := filepath.Join(dir, pattern)
	matches, err := doublestar.FilepathGlob(full)
	if err != nil {
		return nil, core.NewError(fmt.Errorf("invalid glob pattern %q: %w", pattern, err), core.CodeValidationError, nil)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(dir, m)
		if err != nil {
			continue
		}
		if rel == MetadataFile {
			continue
		}
		out = append(out, rel)
	}
	sort.Strings(out)
	return out, nil
}

// Duplicate copies an entire artifact directory (including its metadata
// file) to a new name, using otiai10/copy (SPEC_FULL §3: "artifact
// directory duplication on create") rather than a manual afero walk,
// since this crosses real filesystem paths directly.
func (s *Store) Duplicate(ctx context.Context, namespace, srcName, dstName string) (*Artifact, error) {
	if err := ValidateName(dstName); err != nil {
		return nil, core.NewError(err, core.CodeValidationError, nil)
	}
	namespace = resolveNamespace(namespace)
	if !s.Exists(ctx, namespace, srcName) {
		return nil, core.NewError(fmt.Errorf("artifact %s/%s not found", namespace, srcName), core.CodeResourceNotFound, nil)
	}
	if s.Exists(ctx, namespace, dstName) {
		return nil, core.NewError(fmt.Errorf("artifact %s/%s already exists", namespace, dstName), core.CodeConflict, nil)
	}
	unlock, err := s.lock(namespace, srcName)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := copydir.Copy(s.absDir(namespace, srcName), s.absDir(namespace, dstName)); err != nil {
		return nil, core.NewError(fmt.Errorf("duplicate artifact: %w", err), core.CodeWriteError, nil)
	}
	return s.Get(ctx, namespace, dstName)
}

// lock acquires an exclusive file lock scoped to (namespace, name),
// returning an unlock func the caller must always invoke. Lock files live
// alongside the artifact directory rather than inside it, so they never
// show up in List/Glob output.
func (s *Store) lock(namespace, name string) (func(), error) {
	fl := flock.New(s.lockPath(namespace, name))
	if err := fl.Lock(); err != nil {
		return nil, core.NewError(fmt.Errorf("acquire artifact lock: %w", err), core.CodeWriteError, nil)
	}
	return func() { _ = fl.Unlock() }, nil
}
