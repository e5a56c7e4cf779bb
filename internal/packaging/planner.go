package packaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"r2rpack/internal/archive"
	"r2rpack/internal/config"
	"r2rpack/internal/fileutil"
	"r2rpack/internal/logging"
	"r2rpack/internal/notify"
	"r2rpack/internal/report"
)

var (
	// ErrSourceMissing reports that the cruise's data directory does not exist.
	ErrSourceMissing = errors.New("cruise source directory does not exist")
	// ErrOutputExists reports that the cruise output directory already holds
	// archives from a previous run and overwriting was not requested.
	ErrOutputExists = errors.New("output directory already contains archives")
	// ErrRunInProgress reports that another invocation holds the cruise lock.
	ErrRunInProgress = errors.New("another packaging run is in progress for this cruise")
)

const lockFileName = ".r2rpack.lock"

// ProgressFactory supplies a per-archive progress callback. label names the
// archive being built; a nil return disables progress for that archive.
type ProgressFactory func(label string) archive.ProgressFunc

// Option customizes a Planner.
type Option func(*Planner)

// WithConsole directs run narration (step banners, per-dataset lines) to w.
func WithConsole(w io.Writer) Option {
	return func(p *Planner) { p.console = w }
}

// WithProgress installs a progress renderer for archive construction.
func WithProgress(factory ProgressFactory) Option {
	return func(p *Planner) { p.newProgress = factory }
}

// WithNotifier overrides the summary notification sink.
func WithNotifier(svc notify.Service) Option {
	return func(p *Planner) { p.notifier = svc }
}

// WithOverwrite allows repackaging a cruise whose output directory already
// contains archives from a previous run.
func WithOverwrite(overwrite bool) Option {
	return func(p *Planner) { p.overwrite = overwrite }
}

// Planner drives a full packaging run: classify the cruise tree, archive the
// general bundle and each large dataset smallest-first, checksum everything,
// and emit manifest, summary, and notification.
type Planner struct {
	cfg         *config.Config
	logger      *slog.Logger
	console     io.Writer
	newProgress ProgressFactory
	notifier    notify.Service
	overwrite   bool
}

// NewPlanner builds a Planner for the given configuration.
func NewPlanner(cfg *config.Config, logger *slog.Logger, opts ...Option) *Planner {
	p := &Planner{
		cfg:       cfg,
		logger:    logging.WithComponent(logger, "packaging"),
		console:   io.Discard,
		notifier:  notify.NewService(cfg),
		overwrite: cfg.Packaging.OverwriteExisting,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run packages one cruise. Per-item failures (root file copy, a single
// archive, a checksum) are logged and excluded from the results; the run
// continues. Only missing prerequisites abort the run.
func (p *Planner) Run(ctx context.Context, cruiseID, sourceDir string) (*Result, error) {
	logger := p.logger.With(
		slog.String(logging.FieldRunID, uuid.NewString()),
		slog.String(logging.FieldCruiseID, cruiseID),
	)

	if info, err := os.Stat(sourceDir); err != nil || !info.IsDir() {
		logger.Error("source directory unreachable", slog.String("path", sourceDir))
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, sourceDir)
	}

	outputDir := filepath.Join(p.cfg.Paths.OutputRoot, cruiseID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	logger.Info("packaging run starting", slog.String("output_dir", outputDir))

	lock := flock.New(filepath.Join(outputDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cruise lock: %w", err)
	}
	if !locked {
		return nil, ErrRunInProgress
	}
	defer func() { _ = lock.Unlock() }()

	if err := p.checkExistingOutput(cruiseID, outputDir); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("read source directory: %w", err)
	}

	var rootFiles []string
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		} else if entry.Type().IsRegular() {
			rootFiles = append(rootFiles, entry.Name())
		}
	}

	result := &Result{CruiseID: cruiseID, OutputDir: outputDir}

	result.CopiedFiles = p.copyRootFiles(logger, sourceDir, outputDir, rootFiles)

	generalDirs, largeFound, missing := p.partition(dirs)
	result.MissingDatasets = missing
	if len(missing) > 0 {
		logger.Info("large datasets not found (skipped)", slog.String("datasets", strings.Join(missing, ", ")))
	}

	datasets := p.probeSizes(logger, sourceDir, largeFound)
	slices.SortStableFunc(datasets, func(a, b Dataset) int {
		switch {
		case a.Size < b.Size:
			return -1
		case a.Size > b.Size:
			return 1
		default:
			return 0
		}
	})

	if len(generalDirs) > 0 {
		p.banner("STEP 1: Packaging general data (%d directories)", len(generalDirs))
		p.packageGeneral(logger, cruiseID, sourceDir, outputDir, generalDirs, result)
	}

	if len(datasets) > 0 {
		p.banner("STEP 2: Packaging large datasets (smallest to largest)")
		p.packageLargeDatasets(logger, cruiseID, outputDir, datasets, result)
	}

	result.ManifestPath = filepath.Join(outputDir, cruiseID+"_r2r_packages.md5")
	if err := writeManifest(result.ManifestPath, result.Packages); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	result.Summary = report.Render(cruiseID, outputDir, reportPackages(result.Packages))
	fmt.Fprintln(p.console, result.Summary)

	result.SummaryPath = filepath.Join(outputDir, cruiseID+"_r2r_summary.txt")
	if err := os.WriteFile(result.SummaryPath, []byte(result.Summary), 0o644); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	// Notification is fire-and-forget: its failure cannot change the run's
	// recorded outcome.
	if err := p.notifier.SendSummary(ctx, cruiseID, result.Summary); err != nil {
		logger.Warn("summary notification failed", logging.Error(err))
		fmt.Fprintf(p.console, "Warning: could not send summary email: %v\n", err)
	}

	logger.Info("packaging run completed",
		slog.Int("packages", len(result.Packages)),
		slog.Int("failed", len(result.FailedArchives)),
	)
	return result, nil
}

// checkExistingOutput only considers this cruise's own archives; tarballs
// copied verbatim from the source root keep their original names and must not
// force an overwrite prompt on rerun.
func (p *Planner) checkExistingOutput(cruiseID, outputDir string) error {
	matches, err := filepath.Glob(filepath.Join(outputDir, cruiseID+"_*.tar.gz"))
	if err != nil {
		return fmt.Errorf("scan output directory: %w", err)
	}
	if len(matches) == 0 {
		return nil
	}
	if !p.overwrite {
		return fmt.Errorf("%w: %d archive(s) in %s (rerun with --force to overwrite)", ErrOutputExists, len(matches), outputDir)
	}
	return nil
}

func (p *Planner) copyRootFiles(logger *slog.Logger, sourceDir, outputDir string, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	fmt.Fprintf(p.console, "\nCopying root files (%d files) to output directory...\n", len(names))

	var copied []string
	for _, name := range names {
		src := filepath.Join(sourceDir, name)
		dst := filepath.Join(outputDir, name)
		if err := fileutil.CopyFileVerified(src, dst); err != nil {
			logger.Error("root file copy failed", slog.String("file", name), logging.Error(err))
			continue
		}
		logger.Info("copied root file", slog.String("file", name))
		copied = append(copied, name)
	}
	fmt.Fprintf(p.console, "  Copied %d of %d files\n", len(copied), len(names))
	return copied
}

// partition splits top-level directory names into the general bundle and the
// large datasets present in the tree, preserving the allow-list order for
// missing-dataset reporting. The reserved output subdirectory is never
// packaged.
func (p *Planner) partition(dirs []string) (general, large, missing []string) {
	present := make(map[string]bool, len(dirs))
	for _, name := range dirs {
		present[name] = true
	}

	for _, name := range dirs {
		if name == p.cfg.Packaging.OutputSubdir {
			continue
		}
		if !p.cfg.IsLargeDataset(name) {
			general = append(general, name)
		}
	}
	for _, name := range p.cfg.Packaging.LargeDatasets {
		if present[name] {
			large = append(large, name)
		} else {
			missing = append(missing, name)
		}
	}
	return general, large, missing
}

func (p *Planner) probeSizes(logger *slog.Logger, sourceDir string, names []string) []Dataset {
	if len(names) == 0 {
		return nil
	}
	fmt.Fprintln(p.console, "\nCalculating directory sizes...")

	datasets := make([]Dataset, 0, len(names))
	for _, name := range names {
		path := filepath.Join(sourceDir, name)
		size, err := fileutil.TreeSize(path)
		if err != nil {
			// The probe already tolerates unreadable subtrees; this is a
			// harder failure, treated as size zero so the dataset still
			// packages (and packages first).
			logger.Warn("size probe failed", slog.String(logging.FieldDataset, name), logging.Error(err))
			size = 0
		}
		fmt.Fprintf(p.console, "  %s: %s\n", name, report.FormatBytes(size))
		datasets = append(datasets, Dataset{Name: name, Path: path, Size: size})
	}
	return datasets
}

func (p *Planner) packageGeneral(logger *slog.Logger, cruiseID, sourceDir, outputDir string, generalDirs []string, result *Result) {
	name := cruiseID + "_general.tar.gz"
	dest := filepath.Join(outputDir, name)

	var sourceSize int64
	sources := make([]archive.Source, 0, len(generalDirs))
	for _, dir := range generalDirs {
		path := filepath.Join(sourceDir, dir)
		size, err := fileutil.TreeSize(path)
		if err != nil {
			logger.Warn("size probe failed", slog.String("directory", dir), logging.Error(err))
		}
		sourceSize += size
		logger.Info("adding directory to general package", slog.String("directory", dir))
		sources = append(sources, archive.Source{Path: path, Name: dir})
	}

	fmt.Fprintf(p.console, "\nCreating general package: %s\n", name)
	if err := archive.Create(dest, sources, p.progressFor(name)); err != nil {
		logger.Error("general package failed", slog.String("archive", name), logging.Error(err))
		fmt.Fprintf(p.console, "  Error creating general package: %v\n", err)
		result.FailedArchives = append(result.FailedArchives, name)
		return
	}

	p.finishPackage(logger, dest, name, sourceSize, result)
}

func (p *Planner) packageLargeDatasets(logger *slog.Logger, cruiseID, outputDir string, datasets []Dataset, result *Result) {
	for idx, dataset := range datasets {
		name := fmt.Sprintf("%s_%s.tar.gz", cruiseID, dataset.Name)
		dest := filepath.Join(outputDir, name)

		fmt.Fprintf(p.console, "\n[%d/%d] Packaging %s (%s)...\n",
			idx+1, len(datasets), dataset.Name, report.FormatBytes(dataset.Size))
		logger.Info("creating dataset archive",
			slog.String(logging.FieldDataset, dataset.Name),
			slog.Int64("source_bytes", dataset.Size),
			slog.String("source_size", humanize.IBytes(uint64(dataset.Size))),
		)

		sources := []archive.Source{{Path: dataset.Path, Name: dataset.Name}}
		if err := archive.Create(dest, sources, p.progressFor(name)); err != nil {
			logger.Error("dataset archive failed",
				slog.String(logging.FieldDataset, dataset.Name),
				logging.Error(err),
			)
			fmt.Fprintf(p.console, "  Error creating %s: %v\n", name, err)
			result.FailedArchives = append(result.FailedArchives, name)
			continue
		}

		p.finishPackage(logger, dest, name, dataset.Size, result)
	}
}

// finishPackage checksums a completed archive and appends its descriptor.
// A checksum failure drops the archive from all downstream reporting, same
// as a failed build.
func (p *Planner) finishPackage(logger *slog.Logger, dest, name string, sourceSize int64, result *Result) {
	info, err := os.Stat(dest)
	if err != nil {
		logger.Error("stat archive failed", slog.String("archive", name), logging.Error(err))
		result.FailedArchives = append(result.FailedArchives, name)
		return
	}

	digest, err := archive.ChecksumFile(dest)
	if err != nil {
		logger.Error("checksum failed", slog.String("archive", name), logging.Error(err))
		result.FailedArchives = append(result.FailedArchives, name)
		return
	}

	pkg := Package{
		Name:           name,
		Path:           dest,
		SourceSize:     sourceSize,
		CompressedSize: info.Size(),
		Digest:         digest,
	}
	result.Packages = append(result.Packages, pkg)

	ratio := report.Ratio(pkg.CompressedSize, pkg.SourceSize)
	fmt.Fprintf(p.console, "  Compressed to %s (%.1f%% of original)\n", report.FormatBytes(pkg.CompressedSize), ratio)
	logger.Info("archive complete",
		slog.String("archive", name),
		slog.Int64("compressed_bytes", pkg.CompressedSize),
		slog.String("compressed_size", humanize.IBytes(uint64(pkg.CompressedSize))),
		slog.String("digest", digest),
	)
}

func (p *Planner) progressFor(label string) archive.ProgressFunc {
	if p.newProgress == nil {
		return nil
	}
	return p.newProgress(label)
}

func (p *Planner) banner(format string, args ...any) {
	line := strings.Repeat("=", 60)
	fmt.Fprintf(p.console, "\n%s\n", line)
	fmt.Fprintf(p.console, format+"\n", args...)
	fmt.Fprintf(p.console, "%s\n", line)
}

func reportPackages(packages []Package) []report.Package {
	rows := make([]report.Package, 0, len(packages))
	for _, pkg := range packages {
		rows = append(rows, report.Package{
			Name:           pkg.Name,
			SourceSize:     pkg.SourceSize,
			CompressedSize: pkg.CompressedSize,
			Digest:         pkg.Digest,
		})
	}
	return rows
}
