package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sokinpui/patches/cli"
	"github.com/sokinpui/patches/internal/config"
	"github.com/sokinpui/patches/internal/logging"
	"github.com/sokinpui/patches/internal/source"
	"github.com/sokinpui/patches/internal/tui"
	"github.com/sokinpui/patches/internal/ui"
	"github.com/sokinpui/patches/model"
	"github.com/sokinpui/patches/patches"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags cli.Config

	cmd := &cobra.Command{
		Use:   "patches [flags] [diff-file...]",
		Short: "Apply an ordered sequence of unified diffs to a directory",
		Long: `Apply unified diffs to a directory tree, one after another.

Without arguments every file matching --glob in --dir is applied in lexical
order. The run stops at the first diff that cannot be applied; changes made by
earlier diffs are kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.Root, cli.Overrides(cmd.Flags(), &flags))
			if err != nil {
				ui.Error("Error: %v", err)
				return err
			}
			useTUI := !cfg.UI.Plain && (isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
			logging.SetupLogger(cfg.Log.Verbosity, !useTUI)
			log.Debug().Interface("config", cfg).Bool("tui", useTUI).Msg("Configuration loaded")

			return run(flags.Root, args, cfg, useTUI)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.BindFlags(cmd.Flags(), &flags)
	return cmd
}

func run(root string, args []string, cfg *config.Config, useTUI bool) error {
	diffs, err := source.New(afero.NewOsFs()).GetDiffs(args, cfg.PatchDir(root), cfg.Patches.Glob)
	if err != nil {
		ui.Error("Error: %v", err)
		return err
	}
	ui.Info("Found %d diff(s).", len(diffs))
	if len(diffs) == 0 {
		ui.Warning("No diffs found in %s matching %s. Nothing to do.", cfg.PatchDir(root), cfg.Patches.Glob)
		return nil
	}

	apply := func(progress func(current, total int)) ([]model.Outcome, error) {
		p, err := patches.New(root,
			patches.WithStrip(cfg.Patches.Strip),
			patches.WithProgress(progress),
			patches.WithLogger(logging.GetLogger("patches")),
		)
		if err != nil {
			return nil, err
		}
		return p.ApplyPatches(diffs)
	}

	var outcomes []model.Outcome
	if useTUI {
		outcomes, err = runTUI(apply)
	} else {
		outcomes, err = runPlain(root, diffs, apply)
	}
	_ = outcomes

	var detailed *patches.DetailedError
	if errors.As(err, &detailed) {
		fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
	}
	return err
}

func runTUI(apply tui.Runner) ([]model.Outcome, error) {
	final, err := tea.NewProgram(tui.New(apply)).Run()
	if err != nil {
		ui.Error("Error running program: %v", err)
		return nil, err
	}
	return final.(tui.Model).Result()
}

func runPlain(root string, diffs []string, apply tui.Runner) ([]model.Outcome, error) {
	ui.Header("Applying %d diff(s) to %s", len(diffs), root)
	for _, d := range diffs {
		ui.Path("%s", d)
	}

	var progress func(current, total int)
	var bar *ui.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = ui.NewProgressBar(0, "Applying")
		progress = bar.Set
	}

	outcomes, err := apply(progress)
	if bar != nil {
		bar.Finish()
	}

	applied := len(diffs)
	summary := model.Summarize(outcomes)
	if err != nil {
		summary.Failed = err.Error()
		applied = 0
		var appErr *model.PatchApplicationError
		if errors.As(err, &appErr) {
			applied = appErr.Index
		}
	}
	summary.Message = fmt.Sprintf("%d of %d diff(s) applied to %s.", applied, len(diffs), root)
	ui.PrintSummary(summary)

	if err == nil {
		ui.Success("All patches applied.")
	}
	return outcomes, err
}
