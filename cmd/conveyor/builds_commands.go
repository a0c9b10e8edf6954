package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"conveyor/internal/ipc"
)

func newBuildsCommand(ctx *commandContext) *cobra.Command {
	buildsCmd := &cobra.Command{
		Use:   "builds",
		Short: "Inspect and manage queued builds",
	}

	buildsCmd.AddCommand(newBuildsListCommand(ctx))
	buildsCmd.AddCommand(newBuildsShowCommand(ctx))
	buildsCmd.AddCommand(newBuildsCancelCommand(ctx))
	buildsCmd.AddCommand(newBuildsRetryCommand(ctx))
	buildsCmd.AddCommand(newBuildsClearCommand(ctx))

	return buildsCmd
}

func newBuildsListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BuildList(statuses)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Builds) == 0 {
					fmt.Fprintln(out, "No builds queued")
					return nil
				}
				rows := make([][]string, 0, len(resp.Builds))
				for _, build := range resp.Builds {
					rows = append(rows, []string{
						strconv.FormatInt(build.ID, 10),
						build.Status,
						build.PipelinePath,
						build.CreatedAt,
						build.FinishedAt,
					})
				}
				table := renderTable(
					[]string{"ID", "Status", "Pipeline", "Created", "Finished"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by build status (created, running, passed, failed, errored, canceled)")
	return cmd
}

func newBuildsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one build and its jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBuildID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BuildDescribe(id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Build %d: %s\n", resp.Build.ID, resp.Build.Status)
				fmt.Fprintf(out, "Pipeline: %s\n", resp.Build.PipelinePath)
				if resp.Build.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:    %s\n", resp.Build.ErrorMessage)
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(out, "No jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					detail := job.FailedCommand
					if detail == "" {
						detail = job.ErrorMessage
					}
					rows = append(rows, []string{
						strconv.Itoa(job.Number),
						job.Name,
						job.Status,
						job.Stage,
						detail,
					})
				}
				table := renderTable(
					[]string{"Job", "Leg", "Status", "Stage", "Detail"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}

func newBuildsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a build that has not started yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBuildID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BuildCancel(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Build %d canceled\n", resp.Build.ID)
				return nil
			})
		},
	}
}

func newBuildsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>",
		Short: "Requeue a finished build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseBuildID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BuildRetry(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Build %d requeued\n", resp.Build.ID)
				return nil
			})
		},
	}
}

func newBuildsClearCommand(ctx *commandContext) *cobra.Command {
	var finishedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove builds from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClear(finishedOnly)
				if err != nil {
					return err
				}
				label := "build(s)"
				if finishedOnly {
					label = "finished build(s)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %s\n", resp.Removed, label)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&finishedOnly, "finished", false, "Only remove builds in a terminal status")
	return cmd
}

func parseBuildID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid build id %q", arg)
	}
	return id, nil
}
