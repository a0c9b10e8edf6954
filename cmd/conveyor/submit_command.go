package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"conveyor/internal/ipc"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit [pipeline file]",
		Short: "Submit a pipeline file to the daemon as a new build",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(pipelineArg(args))
			if err != nil {
				return fmt.Errorf("resolve pipeline path: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BuildSubmit(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Build %d submitted (%s)\n", resp.Build.ID, resp.Build.PipelinePath)
				return nil
			})
		},
	}
}
