package packaging_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gofrs/flock"

	"r2rpack/internal/config"
	"r2rpack/internal/logging"
	"r2rpack/internal/packaging"
	"r2rpack/internal/testsupport"
)

const cruiseID = "SKQ202601S"

func newPlanner(t *testing.T, cfg *config.Config, opts ...packaging.Option) *packaging.Planner {
	t.Helper()
	return packaging.NewPlanner(cfg, logging.NewNop(), opts...)
}

func sourceDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.SourceRoot, cruiseID)
}

func TestRunPackagesGeneralThenLargeAscendingBySize(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLargeDatasets("em304", "ek80"))
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "nav", "fix.txt"), 10*1024)
	testsupport.WriteFile(t, filepath.Join(src, "em304", "ping.all"), 50*1024)
	testsupport.WriteFile(t, filepath.Join(src, "ek80", "echo.raw"), 5*1024)

	result, err := newPlanner(t, cfg).Run(context.Background(), cruiseID, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantOrder := []string{
		cruiseID + "_general.tar.gz",
		cruiseID + "_ek80.tar.gz",
		cruiseID + "_em304.tar.gz",
	}
	if len(result.Packages) != len(wantOrder) {
		t.Fatalf("expected %d packages, got %+v", len(wantOrder), result.Packages)
	}
	for i, want := range wantOrder {
		if result.Packages[i].Name != want {
			t.Fatalf("package %d = %q, want %q (full: %+v)", i, result.Packages[i].Name, want, result.Packages)
		}
	}

	manifest, err := os.ReadFile(result.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(manifest)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 manifest lines, got %q", manifest)
	}
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			t.Fatalf("malformed manifest line %q", line)
		}
		if len(fields[0]) != 32 {
			t.Fatalf("expected 32-char digest in %q", line)
		}
		if fields[1] != wantOrder[i] {
			t.Fatalf("manifest line %d names %q, want %q", i, fields[1], wantOrder[i])
		}
		if _, err := os.Stat(filepath.Join(result.OutputDir, fields[1])); err != nil {
			t.Fatalf("manifest names missing archive: %v", err)
		}
	}

	if _, err := os.Stat(result.SummaryPath); err != nil {
		t.Fatalf("summary file missing: %v", err)
	}
	if !strings.Contains(result.Summary, "R2R Package Summary - "+cruiseID) {
		t.Fatalf("unexpected summary:\n%s", result.Summary)
	}
}

func TestRunCopiesRootFilesVerbatim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "cruise_plan.pdf"), 2048)
	testsupport.WriteFile(t, filepath.Join(src, "nav", "fix.txt"), 128)

	result, err := newPlanner(t, cfg).Run(context.Background(), cruiseID, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.CopiedFiles) != 1 || result.CopiedFiles[0] != "cruise_plan.pdf" {
		t.Fatalf("unexpected copied files: %v", result.CopiedFiles)
	}
	info, err := os.Stat(filepath.Join(result.OutputDir, "cruise_plan.pdf"))
	if err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	if info.Size() != 2048 {
		t.Fatalf("copied file size = %d, want 2048", info.Size())
	}
}

func TestRunNoGeneralDirectoriesSkipsGeneralArchive(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLargeDatasets("ek80"))
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "ek80", "echo.raw"), 512)

	result, err := newPlanner(t, cfg).Run(context.Background(), cruiseID, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Packages) != 1 || result.Packages[0].Name != cruiseID+"_ek80.tar.gz" {
		t.Fatalf("expected only ek80 archive, got %+v", result.Packages)
	}
	if _, err := os.Stat(filepath.Join(result.OutputDir, cruiseID+"_general.tar.gz")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("general archive should not exist: %v", err)
	}
}

func TestRunNoLargeDatasetsSkipsStepTwo(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLargeDatasets("em304", "radar"))
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "nav", "fix.txt"), 512)

	result, err := newPlanner(t, cfg).Run(context.Background(), cruiseID, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Packages) != 1 || result.Packages[0].Name != cruiseID+"_general.tar.gz" {
		t.Fatalf("expected only the general archive, got %+v", result.Packages)
	}
	if len(result.MissingDatasets) != 2 {
		t.Fatalf("expected em304 and radar reported missing, got %v", result.MissingDatasets)
	}
}

func TestRunExcludesReservedOutputSubdir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "nav", "fix.txt"), 128)
	testsupport.WriteFile(t, filepath.Join(src, "r2r", "stale.tar.gz"), 128)

	result, err := newPlanner(t, cfg).Run(context.Background(), cruiseID, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Packages) != 1 {
		t.Fatalf("expected one package, got %+v", result.Packages)
	}
	if strings.Contains(result.Summary, "stale.tar.gz") {
		t.Fatal("reserved output subdir leaked into the general package")
	}
}

func TestRunMissingSourceAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	_, err := newPlanner(t, cfg).Run(context.Background(), cruiseID, sourceDir(cfg))
	if !errors.Is(err, packaging.ErrSourceMissing) {
		t.Fatalf("expected ErrSourceMissing, got %v", err)
	}
}

func TestRunRefusesExistingArchivesWithoutOverwrite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "nav", "fix.txt"), 128)
	stale := filepath.Join(cfg.Paths.OutputRoot, cruiseID, cruiseID+"_general.tar.gz")
	testsupport.WriteFile(t, stale, 64)

	_, err := newPlanner(t, cfg).Run(context.Background(), cruiseID, src)
	if !errors.Is(err, packaging.ErrOutputExists) {
		t.Fatalf("expected ErrOutputExists, got %v", err)
	}

	result, err := newPlanner(t, cfg, packaging.WithOverwrite(true)).Run(context.Background(), cruiseID, src)
	if err != nil {
		t.Fatalf("Run with overwrite: %v", err)
	}
	if len(result.Packages) != 1 {
		t.Fatalf("expected repackage to succeed, got %+v", result.Packages)
	}
}

func TestRunAllowsRerunWhenOnlyCopiedTarballsPresent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "nav", "fix.txt"), 128)
	// A tarball copied verbatim from the source root keeps its original name;
	// only this cruise's own archives may trip the existing-output guard.
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.OutputRoot, cruiseID, "deck_log.tar.gz"), 64)

	result, err := newPlanner(t, cfg).Run(context.Background(), cruiseID, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Packages) != 1 || result.Packages[0].Name != cruiseID+"_general.tar.gz" {
		t.Fatalf("expected rerun to proceed, got %+v (err %v)", result.Packages, err)
	}
}

func TestRunRefusesConcurrentRunForSameCruise(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "nav", "fix.txt"), 128)

	outputDir := filepath.Join(cfg.Paths.OutputRoot, cruiseID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(outputDir, ".r2rpack.lock"))
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("hold cruise lock: locked=%v err=%v", locked, err)
	}
	defer func() { _ = held.Unlock() }()

	_, err = newPlanner(t, cfg).Run(context.Background(), cruiseID, src)
	if !errors.Is(err, packaging.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress while lock is held, got %v", err)
	}

	if err := held.Unlock(); err != nil {
		t.Fatalf("release cruise lock: %v", err)
	}
	if _, err := newPlanner(t, cfg).Run(context.Background(), cruiseID, src); err != nil {
		t.Fatalf("Run after lock release: %v", err)
	}
}

func TestRunFailedDatasetExcludedFromManifestAndReport(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission test requires non-root unix")
	}

	cfg := testsupport.NewConfig(t, testsupport.WithLargeDatasets("ek80", "radar"))
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "nav", "fix.txt"), 512)
	testsupport.WriteFile(t, filepath.Join(src, "ek80", "echo.raw"), 256)
	radar := filepath.Join(src, "radar")
	testsupport.WriteFile(t, filepath.Join(radar, "sweep.bin"), 4096)
	if err := os.Chmod(radar, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(radar, 0o755) })

	result, err := newPlanner(t, cfg).Run(context.Background(), cruiseID, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, pkg := range result.Packages {
		if strings.Contains(pkg.Name, "radar") {
			t.Fatalf("failed dataset leaked into packages: %+v", result.Packages)
		}
	}
	if len(result.FailedArchives) != 1 || !strings.Contains(result.FailedArchives[0], "radar") {
		t.Fatalf("expected radar recorded as failed, got %v", result.FailedArchives)
	}

	manifest, err := os.ReadFile(result.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if strings.Contains(string(manifest), "radar") {
		t.Fatalf("failed dataset leaked into manifest: %q", manifest)
	}
	if !strings.Contains(string(manifest), cruiseID+"_ek80.tar.gz") {
		t.Fatalf("completed dataset missing from manifest: %q", manifest)
	}
	if _, err := os.Stat(result.SummaryPath); err != nil {
		t.Fatalf("summary file should still be produced: %v", err)
	}
}

func TestRunNarratesToConsole(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLargeDatasets("ek80"))
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "nav", "fix.txt"), 128)
	testsupport.WriteFile(t, filepath.Join(src, "ek80", "echo.raw"), 256)

	var console strings.Builder
	_, err := newPlanner(t, cfg, packaging.WithConsole(&console)).Run(context.Background(), cruiseID, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	out := console.String()
	for _, want := range []string{
		"STEP 1: Packaging general data",
		"STEP 2: Packaging large datasets",
		"[1/1] Packaging ek80",
		"R2R Package Summary - " + cruiseID,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("console narration missing %q:\n%s", want, out)
		}
	}
}

func TestRunRecorderNotifierReceivesSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "nav", "fix.txt"), 128)

	recorder := &recordingNotifier{}
	result, err := newPlanner(t, cfg, packaging.WithNotifier(recorder)).Run(context.Background(), cruiseID, src)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if recorder.cruiseID != cruiseID {
		t.Fatalf("notifier got cruise %q", recorder.cruiseID)
	}
	if recorder.summary != result.Summary {
		t.Fatal("notifier summary differs from run summary")
	}
}

func TestRunNotificationFailureDoesNotFailRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := sourceDir(cfg)
	testsupport.WriteFile(t, filepath.Join(src, "nav", "fix.txt"), 128)

	notifier := &recordingNotifier{err: errors.New("relay down")}
	result, err := newPlanner(t, cfg, packaging.WithNotifier(notifier)).Run(context.Background(), cruiseID, src)
	if err != nil {
		t.Fatalf("Run should succeed despite notification failure: %v", err)
	}
	if len(result.Packages) != 1 {
		t.Fatalf("expected package despite notification failure: %+v", result.Packages)
	}
}

type recordingNotifier struct {
	cruiseID string
	summary  string
	err      error
}

func (r *recordingNotifier) SendSummary(_ context.Context, cruiseID, summary string) error {
	r.cruiseID = cruiseID
	r.summary = summary
	return r.err
}
