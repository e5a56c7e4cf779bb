package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"r2rpack/internal/logging"
	"r2rpack/internal/openvdm"
	"r2rpack/internal/packaging"
)

// cruiseIDLookup is the part of openvdm.Client the pack flow needs.
type cruiseIDLookup interface {
	CruiseID(ctx context.Context) (string, error)
}

func newPackCommand(cmdCtx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "pack [cruise-id]",
		Short: "Package a cruise's data directories for R2R submission",
		Long: `Package a cruise's data directories for R2R submission.

Root-level files are copied verbatim, general directories are bundled into a
single archive, and each configured large dataset is archived on its own,
smallest first. Every archive gets an MD5 manifest entry and the run ends
with a summary report and optional email.

Without a cruise-id argument the ID is fetched from OpenVDM; on an
interactive terminal you are offered the chance to override it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("set up logging: %w", err)
			}

			interactive := isTerminal(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			var arg string
			if len(args) > 0 {
				arg = strings.TrimSpace(args[0])
			}
			cruiseID, err := resolveCruiseID(cmd.Context(), openvdm.NewClient(cfg), cmd.InOrStdin(), out, arg, interactive)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Using Cruise ID: %s\n", cruiseID)

			sourceDir := filepath.Join(cfg.Paths.SourceRoot, cruiseID)

			opts := []packaging.Option{packaging.WithConsole(out)}
			if force {
				opts = append(opts, packaging.WithOverwrite(true))
			}
			// Progress bars need a pre-count pass; only worth it when a
			// human is watching.
			if interactive && isTerminal(out) {
				opts = append(opts, packaging.WithProgress(newProgressFactory(out)))
			}

			planner := packaging.NewPlanner(cfg, logger, opts...)
			result, err := planner.Run(cmd.Context(), cruiseID, sourceDir)
			if err != nil {
				return err
			}

			if len(result.FailedArchives) > 0 {
				fmt.Fprintf(out, "\nCompleted with %d failed archive(s): %s\n",
					len(result.FailedArchives), strings.Join(result.FailedArchives, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite archives left by a previous run of this cruise")
	return cmd
}

// resolveCruiseID picks the cruise ID for a run: an explicit argument wins,
// otherwise the OpenVDM lookup, with interactive override/fallback prompts
// when attached to a terminal.
func resolveCruiseID(ctx context.Context, lookup cruiseIDLookup, in io.Reader, out io.Writer, arg string, interactive bool) (string, error) {
	if arg != "" {
		return arg, nil
	}

	fmt.Fprintln(out, "Fetching current cruise info from OpenVDM...")
	fetched, err := lookup.CruiseID(ctx)

	if !interactive {
		if err != nil {
			return "", err
		}
		return fetched, nil
	}

	reader := bufio.NewReader(in)
	if err == nil {
		fmt.Fprintf(out, "Done. Found Cruise ID: %s\n", fetched)
		fmt.Fprintf(out, "Enter a Cruise ID to use (or press enter for %s): ", fetched)
		entered, readErr := readLine(reader)
		if readErr != nil {
			return "", readErr
		}
		if entered != "" {
			return entered, nil
		}
		return fetched, nil
	}

	if !errors.Is(err, openvdm.ErrNoCruiseID) {
		return "", err
	}
	fmt.Fprint(out, "Could not fetch cruise ID from OpenVDM. Enter Cruise ID manually: ")
	entered, readErr := readLine(reader)
	if readErr != nil {
		return "", readErr
	}
	if entered == "" {
		return "", errors.New("no cruise ID provided")
	}
	return entered, nil
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func isTerminal(stream any) bool {
	file, ok := stream.(*os.File)
	if !ok {
		return false
	}
	return isattyTerminal(file.Fd())
}
