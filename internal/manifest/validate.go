package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"deliver/internal/archive"
	"deliver/internal/services"
)

// Validate checks every manifest invariant and reports all problems at once.
// The returned error carries services.ErrConfiguration.
func (m *Manifest) Validate() error {
	var problems []error
	m.warnings = nil

	if m.Workspace == "" {
		problems = append(problems, errors.New("workspace is required"))
	}
	if m.Version == "" {
		problems = append(problems, errors.New("version is required"))
	} else if err := checkName(m.Version); err != nil {
		problems = append(problems, fmt.Errorf("version: %w", err))
	}
	if m.Package == "" {
		problems = append(problems, errors.New("package is required"))
	} else if err := checkName(m.Package); err != nil {
		problems = append(problems, fmt.Errorf("package: %w", err))
	}
	if len(m.Projects) == 0 {
		problems = append(problems, errors.New("projects: at least one project is required"))
	}

	packageName := m.PackageName()
	for _, name := range m.ProjectNames() {
		problems = append(problems, m.validateProject(name, packageName)...)
	}

	orphans := make([]string, 0)
	for name := range m.Artifacts {
		if _, ok := m.Projects[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	for _, name := range orphans {
		m.warnings = append(m.warnings, fmt.Sprintf("artifacts.%s has no matching project and will be ignored", name))
	}

	if len(problems) == 0 {
		return nil
	}
	label := m.source
	if label == "" {
		label = "invalid manifest"
	}
	return services.Wrap(services.ErrConfiguration, "manifest", "validate", label, errors.Join(problems...))
}

func (m *Manifest) validateProject(name, packageName string) []error {
	var problems []error
	prefix := "projects." + name

	if err := checkName(name); err != nil {
		problems = append(problems, fmt.Errorf("%s: project name %w", prefix, err))
	} else if strings.HasPrefix(name, ".") {
		problems = append(problems, fmt.Errorf("%s: project name must not start with '.'", prefix))
	} else if name == packageName {
		problems = append(problems, fmt.Errorf("%s: project name collides with package directory %q", prefix, packageName))
	} else if name == archive.PathFor(packageName) {
		problems = append(problems, fmt.Errorf("%s: project name collides with archive %q", prefix, name))
	}

	project := m.Projects[name]
	if strings.TrimSpace(project.Git) == "" {
		problems = append(problems, fmt.Errorf("%s: git is required", prefix))
	}
	if _, _, ok := project.Ref(); !ok {
		problems = append(problems, fmt.Errorf("%s: one of tag or branch is required", prefix))
	}

	artifact, ok := m.Artifacts[name]
	if !ok {
		problems = append(problems, fmt.Errorf("artifacts.%s: missing artifact spec for project %q", name, name))
		return problems
	}
	return append(problems, validateArtifact("artifacts."+name, artifact)...)
}

func validateArtifact(prefix string, artifact Artifact) []error {
	var problems []error
	if strings.TrimSpace(artifact.Builder) == "" {
		problems = append(problems, fmt.Errorf("%s: builder is required", prefix))
	}
	if dir := strings.TrimSpace(artifact.BinsDir); dir != "" && !filepath.IsLocal(dir) {
		problems = append(problems, fmt.Errorf("%s: bins_dir %q must be a relative path inside the checkout", prefix, dir))
	}
	if len(artifact.Bins) == 0 {
		problems = append(problems, fmt.Errorf("%s: bins must list at least one file", prefix))
	}

	seen := make(map[string]string, len(artifact.Bins))
	for _, bin := range artifact.Bins {
		trimmed := strings.TrimSpace(bin)
		if trimmed == "" {
			problems = append(problems, fmt.Errorf("%s: bins contains an empty name", prefix))
			continue
		}
		if trimmed != bin {
			problems = append(problems, fmt.Errorf("%s: bin %q must not have surrounding whitespace", prefix, bin))
			continue
		}
		if !filepath.IsLocal(trimmed) {
			problems = append(problems, fmt.Errorf("%s: bin %q must be a relative path inside bins_dir", prefix, bin))
			continue
		}
		base := filepath.Base(trimmed)
		if previous, dup := seen[base]; dup {
			problems = append(problems, fmt.Errorf("%s: bins %q and %q both package as %q", prefix, previous, bin, base))
			continue
		}
		seen[base] = bin
	}
	return problems
}

func checkName(value string) error {
	switch {
	case value == "." || value == "..":
		return fmt.Errorf("%q is not a valid name", value)
	case strings.ContainsAny(value, `/\`):
		return fmt.Errorf("%q must not contain path separators", value)
	case strings.TrimSpace(value) != value:
		return fmt.Errorf("%q must not have surrounding whitespace", value)
	}
	return nil
}
