package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"deliver/internal/archive"
	"deliver/internal/digest"
	"deliver/internal/fetch"
	"deliver/internal/fileutil"
	"deliver/internal/ledger"
	"deliver/internal/logging"
	"deliver/internal/manifest"
	"deliver/internal/runner"
	"deliver/internal/services"
	"deliver/internal/workdir"
	"deliver/internal/workspace"
)

// Stage names used in logs, errors, and context.
const (
	StageFetch   = "fetch"
	StageBuild   = "build"
	StageCollect = "collect"
	StageArchive = "archive"
)

// Recorder persists run history. *ledger.Ledger implements it.
type Recorder interface {
	BeginRun(ctx context.Context, run ledger.Run) (*ledger.Run, error)
	RecordArtifact(ctx context.Context, runID string, artifact ledger.Artifact) error
	FinishRun(ctx context.Context, id string, outcome ledger.Outcome) error
}

// Options configures a Pipeline.
type Options struct {
	Logger *slog.Logger
	// Runner executes git, builders, and tar. Defaults to a system runner.
	Runner    *runner.Runner
	GitBinary string
	TarBinary string
	// CloneTimeout, BuildTimeout and ArchiveTimeout bound each clone,
	// builder and tar run; zero disables the limit.
	CloneTimeout   time.Duration
	BuildTimeout   time.Duration
	ArchiveTimeout time.Duration
	// Verify re-reads every copy and compares its SHA-256 with the source.
	Verify bool
	// Archive produces {package}.{version}.tar.gz after packaging.
	Archive bool
	// Recorder is optional; nil disables run history.
	Recorder Recorder
}

// Pipeline runs manifests.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
	runner *runner.Runner
}

// New constructs a Pipeline.
func New(opts Options) *Pipeline {
	logger := logging.NewComponentLogger(opts.Logger, "pipeline")
	r := opts.Runner
	if r == nil {
		r = runner.New(opts.Logger)
	}
	return &Pipeline{opts: opts, logger: logger, runner: r}
}

// Run executes the manifest. The returned report is non-nil whenever the
// manifest itself was usable, including on failure.
func (p *Pipeline) Run(ctx context.Context, m *manifest.Manifest) (report *Report, err error) {
	if m == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "run", "manifest is nil", nil)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)
	for _, warning := range m.Warnings() {
		logger.Warn("manifest warning", logging.String("detail", warning))
	}

	report = &Report{
		RunID:      runID,
		Package:    m.PackageName(),
		PackageDir: m.PackageDir(),
		StartedAt:  time.Now(),
	}
	defer func() {
		report.FinishedAt = time.Now()
	}()

	ws, err := workspace.New(m.Workspace)
	if err != nil {
		return report, err
	}
	if err := ws.Ensure(); err != nil {
		return report, err
	}
	lock, err := ws.Lock()
	if err != nil {
		return report, err
	}
	logger.Debug("workspace locked", logging.String("lock", lock.Path()))
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.Warn("failed to release workspace lock", logging.String("lock", lock.Path()), logging.Error(releaseErr))
		}
	}()

	if p.opts.Recorder != nil {
		if _, err := p.opts.Recorder.BeginRun(ctx, ledger.Run{
			ID:           runID,
			ManifestPath: m.Source(),
			Package:      m.Package,
			Version:      m.Version,
			Workspace:    ws.Root(),
			PackageDir:   report.PackageDir,
			StartedAt:    report.StartedAt,
		}); err != nil {
			return report, services.Wrap(services.ErrFilesystem, "ledger", "begin run", runID, err)
		}
		defer func() {
			outcome := ledger.Outcome{Err: err, ArchivePath: report.ArchivePath, ArchiveDigest: report.ArchiveDigest}
			if finishErr := p.opts.Recorder.FinishRun(context.WithoutCancel(ctx), runID, outcome); finishErr != nil {
				logger.Warn("failed to record run outcome", logging.Error(finishErr))
			}
		}()
	}

	logger.Info("delivery started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("package", report.Package),
		logging.String("workspace", ws.Root()),
		logging.Int("projects", len(m.Projects)),
		logging.Int("binaries", m.Binaries()),
	)

	err = workdir.Run(ws.Root(), func() error {
		return p.deliver(ctx, m, ws, report)
	})
	if err != nil {
		logger.Error("delivery failed",
			logging.String(logging.FieldEventType, "run_failure"),
			logging.String("error_kind", services.Kind(err)),
			logging.Int("packaged_artifacts", report.ArtifactCount()),
			logging.Error(err),
		)
		return report, err
	}

	logger.Info("delivery completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("package_dir", report.PackageDir),
		logging.String("archive", report.ArchivePath),
		logging.Int("artifacts", report.ArtifactCount()),
		logging.Duration("duration", time.Since(report.StartedAt)),
	)
	return report, nil
}

func (p *Pipeline) deliver(ctx context.Context, m *manifest.Manifest, ws *workspace.Workspace, report *Report) error {
	if err := ws.CheckPackageAbsent(m.PackageName()); err != nil {
		return err
	}
	if p.opts.Archive {
		target := archive.PathFor(report.PackageDir)
		if _, err := os.Lstat(target); err == nil {
			return services.Wrap(services.ErrConfiguration, StageArchive, "check", target, archive.ErrArchiveExists)
		}
	}
	if err := ws.CheckCheckoutsAbsent(m.ProjectNames()); err != nil {
		return err
	}

	packageDir, err := ws.CreatePackageDir(m.PackageName())
	if err != nil {
		return err
	}
	report.PackageDir = packageDir

	fetcher := fetch.New(ws.Root(), p.runner, p.opts.Logger,
		fetch.WithGitBinary(p.opts.GitBinary),
		fetch.WithTimeout(p.opts.CloneTimeout),
	)

	for _, name := range m.ProjectNames() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("delivery cancelled before project %s: %w", name, err)
		}
		if err := p.deliverProject(ctx, fetcher, m, name, report); err != nil {
			return err
		}
	}

	if !p.opts.Archive {
		return nil
	}
	return p.archive(ctx, report)
}

func (p *Pipeline) deliverProject(ctx context.Context, fetcher *fetch.Fetcher, m *manifest.Manifest, name string, report *Report) error {
	ctx = services.WithProject(ctx, name)
	project := m.Projects[name]
	spec := m.Artifacts[name]
	ref, kind, _ := project.Ref()

	var checkout string
	err := p.stage(ctx, StageFetch, func(stageCtx context.Context) error {
		var cloneErr error
		checkout, cloneErr = fetcher.Clone(stageCtx, name, project.Git, ref)
		return cloneErr
	})
	if err != nil {
		return err
	}

	result := ProjectReport{Name: name, Ref: ref, RefKind: string(kind), Checkout: checkout}
	env := []string{
		"DELIVER_PROJECT=" + name,
		"DELIVER_REF=" + ref,
		"DELIVER_PACKAGE=" + m.Package,
		"DELIVER_VERSION=" + m.Version,
		"DELIVER_PACKAGE_DIR=" + report.PackageDir,
	}

	err = workdir.Run(checkout, func() error {
		if err := p.stage(ctx, StageBuild, func(stageCtx context.Context) error {
			return p.build(stageCtx, name, spec.Builder, env)
		}); err != nil {
			return err
		}
		return p.stage(ctx, StageCollect, func(stageCtx context.Context) error {
			outputDir := spec.OutputDir()
			if err := workdir.Run(outputDir, func() error {
				return p.collect(stageCtx, name, filepath.Join(checkout, outputDir), spec.Bins, report.PackageDir, &result)
			}); err != nil {
				if !isServiceError(err) {
					return services.Wrap(services.ErrFilesystem, StageCollect, name, "bins_dir "+outputDir, err)
				}
				return err
			}
			return nil
		})
	})
	if len(result.Artifacts) > 0 || err == nil {
		report.Projects = append(report.Projects, result)
	}
	return err
}

func (p *Pipeline) build(ctx context.Context, name, builder string, env []string) error {
	opts := runner.DefaultOptions()
	opts.EchoOutput = true
	opts.Timeout = p.opts.BuildTimeout
	opts.Env = env

	result := p.runner.Execute(ctx, runner.Shell(builder), opts)
	if !result.Success {
		return services.Wrap(services.ErrExternalTool, StageBuild, name, builder, result.Err())
	}
	return nil
}

// collect runs with the current directory set to the project's bins_dir.
func (p *Pipeline) collect(ctx context.Context, name, binsDir string, bins []string, packageDir string, result *ProjectReport) error {
	logger := logging.WithContext(ctx, p.logger)
	projectDir := filepath.Join(packageDir, name)
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return services.Wrap(services.ErrFilesystem, StageCollect, name, projectDir, err)
	}

	for _, bin := range bins {
		source := filepath.Join(binsDir, bin)
		info, err := os.Stat(bin)
		if err != nil {
			return services.Wrap(services.ErrFilesystem, StageCollect, name, "missing artifact "+source, err)
		}
		if !info.Mode().IsRegular() {
			return services.Wrap(services.ErrFilesystem, StageCollect, name, source, errors.New("artifact is not a regular file"))
		}

		sum, err := digest.File(bin)
		if err != nil {
			return services.Wrap(services.ErrFilesystem, StageCollect, name, "digest "+source, err)
		}
		logger.Info("artifact digest",
			logging.String(logging.FieldEventType, "artifact_digest"),
			logging.String("file", source),
			logging.String(digest.Algorithm, sum),
			logging.String("size", humanize.Bytes(uint64(info.Size()))),
		)

		dest := filepath.Join(projectDir, filepath.Base(bin))
		copyFile := fileutil.CopyFile
		if p.opts.Verify {
			copyFile = fileutil.CopyFileVerified
		}
		if err := copyFile(bin, dest); err != nil {
			if errors.Is(err, services.ErrIntegrity) {
				return services.Wrap(services.ErrIntegrity, StageCollect, name, "copy "+source, err)
			}
			return services.Wrap(services.ErrFilesystem, StageCollect, name, "copy "+source, err)
		}
		logger.Debug("artifact copied", logging.String("source", source), logging.String("dest", dest))

		artifact := Artifact{Name: filepath.Base(bin), Source: source, Dest: dest, Digest: sum, Size: info.Size()}
		result.Artifacts = append(result.Artifacts, artifact)
		p.recordArtifact(ctx, result, artifact)
	}
	return nil
}

func (p *Pipeline) recordArtifact(ctx context.Context, project *ProjectReport, artifact Artifact) {
	if p.opts.Recorder == nil {
		return
	}
	runID, _ := services.RunIDFromContext(ctx)
	err := p.opts.Recorder.RecordArtifact(ctx, runID, ledger.Artifact{
		Project:    project.Name,
		Ref:        project.Ref,
		Name:       artifact.Name,
		SourcePath: artifact.Source,
		DestPath:   artifact.Dest,
		Digest:     artifact.Digest,
		SizeBytes:  artifact.Size,
	})
	if err != nil {
		logging.WithContext(ctx, p.logger).Warn("failed to record artifact",
			logging.String("artifact", artifact.Name),
			logging.Error(err),
		)
	}
}

func (p *Pipeline) archive(ctx context.Context, report *Report) error {
	return p.stage(ctx, StageArchive, func(stageCtx context.Context) error {
		archiver := archive.New(p.runner, p.opts.Logger,
			archive.WithTarBinary(p.opts.TarBinary),
			archive.WithTimeout(p.opts.ArchiveTimeout),
		)
		path, err := archiver.Create(stageCtx, report.PackageDir)
		if err != nil {
			return err
		}
		sum, err := digest.File(path)
		if err != nil {
			return services.Wrap(services.ErrFilesystem, StageArchive, "digest", path, err)
		}
		report.ArchivePath = path
		report.ArchiveDigest = sum

		size := int64(0)
		if info, statErr := os.Stat(path); statErr == nil {
			size = info.Size()
		}
		logging.WithContext(stageCtx, p.logger).Info("archive digest",
			logging.String(logging.FieldEventType, "archive_digest"),
			logging.String("file", path),
			logging.String(digest.Algorithm, sum),
			logging.String("size", humanize.Bytes(uint64(size))),
		)
		return nil
	})
}

// stage tags ctx with the stage name and logs its start and outcome.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	stageCtx := services.WithStage(ctx, name)
	logger := logging.WithContext(stageCtx, p.logger)
	logger.Debug("stage started", logging.String(logging.FieldEventType, "stage_start"))
	started := time.Now()

	if err := fn(stageCtx); err != nil {
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", time.Since(started)),
	)
	return nil
}

func isServiceError(err error) bool {
	return services.Kind(err) != "unknown"
}
