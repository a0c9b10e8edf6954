package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"conveyor/internal/pipeline"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate [pipeline file]",
		Short:       "Validate a pipeline file and show its planned matrix",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := pipelineArg(args)
			file, err := pipeline.Load(path)
			if err != nil {
				return err
			}
			plan, err := file.Plan()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Pipeline valid: %s\n", path)

			rows := make([][]string, 0, len(plan.Legs))
			for i, leg := range plan.Legs {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					leg.Name(),
					strconv.Itoa(len(leg.StageCommands(pipeline.StageInstall))),
					strconv.Itoa(len(leg.StageCommands(pipeline.StageBeforeScript))),
					strconv.Itoa(len(leg.StageCommands(pipeline.StageScript))),
				})
			}
			table := renderTable(
				[]string{"Job", "Leg", "Install", "Before Script", "Script"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
			)
			fmt.Fprintln(out, table)
			return nil
		},
	}
}
