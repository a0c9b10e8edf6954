package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"conveyor/internal/ipc"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int
	var buildID int64
	var jobNumber int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon or job logs",
		Long: `Display the daemon log, or the command log of a single job when
--build (and optionally --job) is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobNumber > 0 && buildID <= 0 {
				return errors.New("--job requires --build")
			}
			if buildID > 0 && jobNumber <= 0 {
				jobNumber = 1
			}

			initialLimit := lines
			if initialLimit < 0 {
				initialLimit = 0
			}
			initialOffset := int64(-1)
			if initialLimit == 0 {
				initialOffset = 0
			}

			return ctx.withClient(func(client *ipc.Client) error {
				cmdCtx := cmd.Context()
				offset := initialOffset
				limit := initialLimit
				printed := false

				for {
					req := ipc.LogTailRequest{
						BuildID:    buildID,
						JobNumber:  jobNumber,
						Offset:     offset,
						Limit:      limit,
						Follow:     follow,
						WaitMillis: 1000,
					}
					resp, err := client.LogTail(req)
					if err != nil {
						return fmt.Errorf("tail logs: %w", err)
					}
					for _, line := range resp.Lines {
						fmt.Fprintln(cmd.OutOrStdout(), line)
						printed = true
					}
					offset = resp.Offset
					limit = 0
					if !follow {
						if !printed {
							fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
						}
						return nil
					}
					select {
					case <-cmdCtx.Done():
						return nil
					default:
					}
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().Int64Var(&buildID, "build", 0, "Show the command log of this build instead of the daemon log")
	cmd.Flags().IntVar(&jobNumber, "job", 0, "Job number within the build (defaults to 1)")
	return cmd
}
