// Package artifact implements the artifact store (spec §3, §6, §9): a
// filesystem-like object store, keyed by (namespace, name), holding a
// named collection of files plus a reserved `.artifact.json` metadata
// file. Objects live at `<base>/artifacts/<namespace>/<name>/<filename>`.
package artifact

import (
	"fmt"
	"regexp"
)

// MetadataFile is the reserved per-artifact metadata object (spec §3:
// "Each artifact holds a reserved metadata file `.artifact.json`").
const MetadataFile = ".artifact.json"

// DefaultNamespace mirrors engine/store.DefaultNamespace's "default"
// partition (spec Glossary: "Namespace").
const DefaultNamespace = "default"

var (
	namePattern     = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	filenamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// Artifact describes a stored object collection's identity and metadata;
// Files is populated by Store.Get, not carried by callers creating one.
type Artifact struct {
	Name      string         `json:"name"`
	Namespace string         `json:"namespace"`
	Metadata  map[string]any `json:"metadata"`
	Files     []string       `json:"files"`
}

// ValidateName enforces spec §3's "name (alphanumeric/_/-)" constraint.
func ValidateName(name string) error {
	if name == "" || !namePattern.MatchString(name) {
		return fmt.Errorf("artifact: invalid name %q: must match %s", name, namePattern.String())
	}
	return nil
}

// ValidateFilename enforces spec §3's "filenames are restricted to
// [A-Za-z0-9_\-.]+" and rejects the reserved metadata filename, which
// callers must reach through Store's metadata accessors instead.
func ValidateFilename(filename string) error {
	if filename == "" || !filenamePattern.MatchString(filename) {
		return fmt.Errorf("artifact: invalid filename %q: must match %s", filename, filenamePattern.String())
	}
	if filename == MetadataFile {
		return fmt.Errorf("artifact: %q is a reserved filename", MetadataFile)
	}
	return nil
}

func resolveNamespace(namespace string) string {
	if namespace == "" {
		return DefaultNamespace
	}
	return namespace
}
