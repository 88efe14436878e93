package core

import "context"

// ConfigMetadata tracks where a resource definition was loaded from, so
// relative refs inside it resolve against the right directory.
type ConfigMetadata struct {
	CWD         *CWD
	FilePath    string
	ProjectRoot string
}

// ResolvedPath returns the absolute path of the file this metadata was
// loaded from, verifying it still exists.
func (m *ConfigMetadata) ResolvedPath() (string, error) {
	return m.CWD.JoinAndCheck(m.FilePath)
}

// Config is the contract shared by every on-disk resource definition
// (workflows, trigger rules) that can be loaded, validated, and merged with
// overrides supplied at dispatch time.
type Config interface {
	Component() ConfigType
	GetCWD() *CWD
	GetEnv() *EnvMap
	GetInput() *Input
	GetMetadata() *ConfigMetadata
	SetMetadata(metadata *ConfigMetadata)
	ResolveRef(ctx context.Context, currentDoc map[string]any, projectRoot, filePath string) error
	Validate() error
	ValidateParams(input *Input) error
	Merge(other any) error
}

// ConfigType names the kind of resource a Config describes.
type ConfigType string

const (
	ConfigWorkflow    ConfigType = "workflow"
	ConfigTriggerRule ConfigType = "trigger_rule"
)

// RefLoader loads a Config from a file reference relative to a CWD.
type RefLoader interface {
	LoadFileRef(cwd *CWD) (Config, error)
}
