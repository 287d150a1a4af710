package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"deliver/internal/config"
	"deliver/internal/services"
)

// Manifest is the declarative input for one packaging run.
type Manifest struct {
	Workspace string              `toml:"workspace" yaml:"workspace"`
	Version   string              `toml:"version" yaml:"version"`
	Package   string              `toml:"package" yaml:"package"`
	Projects  map[string]Project  `toml:"projects" yaml:"projects"`
	Artifacts map[string]Artifact `toml:"artifacts" yaml:"artifacts"`

	source   string
	warnings []string
}

// Project pins the source of one project.
type Project struct {
	Git    string `toml:"git" yaml:"git"`
	Tag    string `toml:"tag" yaml:"tag"`
	Branch string `toml:"branch" yaml:"branch"`
}

// Artifact describes how to build a project and which binaries it yields.
type Artifact struct {
	Builder string   `toml:"builder" yaml:"builder"`
	BinsDir string   `toml:"bins_dir" yaml:"bins_dir"`
	Bins    []string `toml:"bins" yaml:"bins"`
}

// RefKind tells whether a checkout reference came from tag or branch.
type RefKind string

const (
	RefTag    RefKind = "tag"
	RefBranch RefKind = "branch"
)

// Ref resolves the checkout reference: tag wins over branch.
func (p Project) Ref() (string, RefKind, bool) {
	if tag := strings.TrimSpace(p.Tag); tag != "" {
		return tag, RefTag, true
	}
	if branch := strings.TrimSpace(p.Branch); branch != "" {
		return branch, RefBranch, true
	}
	return "", "", false
}

// OutputDir returns the build output directory relative to the checkout.
func (a Artifact) OutputDir() string {
	if dir := strings.TrimSpace(a.BinsDir); dir != "" {
		return filepath.Clean(dir)
	}
	return "."
}

// Load reads and validates the manifest at path. A relative workspace is
// resolved against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "read", path, err)
	}
	m, err := Decode(data, formatFor(path))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "parse", path, err)
	}
	m.source = path
	if err := m.normalize(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Format selects the manifest decoder.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Decode parses raw manifest bytes without validating them.
func Decode(data []byte, format Format) (*Manifest, error) {
	var m Manifest
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatTOML, "":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", format)
	}
	return &m, nil
}

func (m *Manifest) normalize() error {
	m.Workspace = strings.TrimSpace(m.Workspace)
	m.Version = strings.TrimSpace(m.Version)
	m.Package = strings.TrimSpace(m.Package)
	if m.Workspace != "" {
		workspace := m.Workspace
		if !filepath.IsAbs(workspace) && !strings.HasPrefix(workspace, "~") && m.source != "" {
			workspace = filepath.Join(filepath.Dir(m.source), workspace)
		}
		expanded, err := config.ExpandPath(workspace)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "manifest", "workspace", m.Workspace, err)
		}
		m.Workspace = expanded
	}
	return nil
}

// Source returns the file the manifest was loaded from, if any.
func (m *Manifest) Source() string {
	return m.source
}

// Warnings lists non-fatal findings from the last Validate call.
func (m *Manifest) Warnings() []string {
	return append([]string(nil), m.warnings...)
}

// PackageName returns "{package}.{version}".
func (m *Manifest) PackageName() string {
	return m.Package + "." + m.Version
}

// PackageDir returns the package directory inside the workspace.
func (m *Manifest) PackageDir() string {
	return filepath.Join(m.Workspace, m.PackageName())
}

// ProjectNames returns project keys in processing order.
func (m *Manifest) ProjectNames() []string {
	names := make([]string, 0, len(m.Projects))
	for name := range m.Projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Binaries returns the total number of declared binaries.
func (m *Manifest) Binaries() int {
	total := 0
	for name := range m.Projects {
		total += len(m.Artifacts[name].Bins)
	}
	return total
}
