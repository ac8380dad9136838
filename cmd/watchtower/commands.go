package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vulnverified/watchtower/internal/engine"
	"github.com/vulnverified/watchtower/internal/output"
	"github.com/vulnverified/watchtower/internal/wordlist"
)

// errStageErrors makes the process exit non-zero when a stage recorded
// per-entity failures. The summary has already been printed.
var errStageErrors = errors.New("stage finished with errors")

// withApp wires the runtime around fn.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := setup(ctx, flags)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// report prints a stage report as JSON or a table.
func (a *app) report(r *engine.StageReport) error {
	if a.flags.jsonOutput {
		if err := output.WriteJSON(os.Stdout, r); err != nil {
			return err
		}
	} else {
		output.WriteStageSummary(os.Stdout, r, a.flags.noColor)
	}
	if !r.OK() {
		return errStageErrors
	}
	return nil
}

func syncCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [dir]",
		Short: "Load program definitions (*.json) into the inventory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				dir := a.cfg.ProgramsDir
				if len(args) == 1 {
					dir = args[0]
				}
				a.progress.Stage(1, 1, fmt.Sprintf("Syncing programs from %s...", dir))
				r, err := a.pipeline.SyncPrograms(ctx, dir)
				if err != nil {
					return err
				}
				return a.report(r)
			})
		},
	}
}

func stageCmd(flags *globalFlags, use, short string, run func(*engine.Pipeline, context.Context) (*engine.StageReport, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				a.progress.Stage(1, 1, short+"...")
				r, err := run(a.pipeline, ctx)
				if err != nil {
					return err
				}
				a.progress.Complete()
				return a.report(r)
			})
		},
	}
}

func runCmd(flags *globalFlags) *cobra.Command {
	var (
		withPorts bool
		noSync    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync programs, then enumerate, resolve, probe HTTP and optionally scan ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if !a.flags.jsonOutput && !a.flags.silent {
					output.WriteHeader(os.Stderr, a.flags.noColor)
				}

				opts := engine.RunOptions{Ports: withPorts || a.cfg.Stages.Ports}
				if !noSync {
					opts.ProgramsDir = a.cfg.ProgramsDir
				}
				result, err := a.pipeline.Run(ctx, opts)
				if err != nil {
					return err
				}
				a.progress.Complete()

				if a.flags.jsonOutput {
					if err := output.WriteJSON(os.Stdout, result); err != nil {
						return err
					}
				} else {
					output.WriteRunSummary(os.Stdout, result, a.flags.noColor)
				}

				if result.Sync != nil && !result.Sync.OK() {
					return errStageErrors
				}
				for _, r := range result.Stages {
					if !r.OK() {
						return errStageErrors
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&withPorts, "ports", false, "Include the port scanning stage")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Skip syncing program definitions")
	return cmd
}

func urlsCmd(flags *globalFlags) *cobra.Command {
	var (
		paramsFile string
		save       bool
		limit      int
		toolFlags  []string
		source     string
	)
	cmd := &cobra.Command{
		Use:   "urls <program>",
		Short: "Mine archived URLs for a program and match them against a parameter wordlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			params, paramsSource, err := wordlist.Resolve(paramsFile)
			if err != nil {
				return err
			}
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				res, err := a.pipeline.ScanURLs(ctx, args[0], engine.URLScanOptions{
					Parameters:       params,
					ParametersSource: paramsSource,
					Save:             save,
					Limit:            limit,
					Flags:            toolFlags,
					Source:           source,
				})
				if err != nil {
					return err
				}
				if a.flags.jsonOutput {
					return output.WriteJSON(os.Stdout, res)
				}
				output.WriteURLSummary(os.Stdout, res, a.flags.noColor)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&paramsFile, "params", "", "Custom parameter wordlist (default: embedded list)")
	cmd.Flags().BoolVar(&save, "save", false, "Persist matched URLs to the inventory")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap on URLs fetched per scope (0 = no cap)")
	cmd.Flags().StringArrayVar(&toolFlags, "flag", nil, "Extra flag passed to waybackurls (repeatable)")
	cmd.Flags().StringVar(&source, "source", "waybackurls", "Source tag stored with saved URLs")
	return cmd
}

func nucleiCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "nuclei <program>",
		Short: "Run takeover templates against a program's live subdomains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				a.progress.Stage(1, 1, "Running nuclei...")
				res, err := a.pipeline.ScanVulns(ctx, args[0])
				if err != nil {
					return err
				}
				if a.flags.jsonOutput {
					return output.WriteJSON(os.Stdout, res)
				}
				output.WriteFindings(os.Stdout, res.Findings, a.flags.noColor)
				return a.report(res.StageReport)
			})
		},
	}
}

func programsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "programs",
		Short: "Inspect and manage tracked programs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List tracked programs with inventory counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				programs, err := a.inv.Programs.List(ctx)
				if err != nil {
					return err
				}
				rows := make([]output.ProgramRow, 0, len(programs))
				for _, p := range programs {
					counts, err := a.inv.Counts(ctx, p.Name)
					if err != nil {
						return err
					}
					rows = append(rows, output.ProgramRow{Program: p, Counts: counts})
				}
				if a.flags.jsonOutput {
					return output.WriteJSON(os.Stdout, rows)
				}
				output.WritePrograms(os.Stdout, rows, a.flags.noColor)
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a program and everything discovered under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app) error {
				if err := a.inv.Programs.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "Deleted program %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}
