package main

import (
	"github.com/spf13/cobra"
	"github.com/viant/linescope/debugger"
	"github.com/viant/linescope/execute"
)

var varCmd = &cobra.Command{
	Use:   "var FILE:LINE [NAME...]",
	Short: "Print variables live at a line",
	Long: `Instrument the program at FILE:LINE, build it, run it once and print every variable
captured each time the line was reached. NAME arguments restrict the printed variables.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVar,
}

func init() {
	varCmd.Flags().Bool("probe-file", false, "collect probe records from a file instead of stderr")
}

func runVar(cmd *cobra.Command, args []string) error {
	probeFile, err := cmd.Flags().GetBool("probe-file")
	if err != nil {
		return err
	}
	service, _, err := newService(cmd, execute.WithProbeFile(probeFile))
	if err != nil {
		return err
	}
	cfg, _, err := service.Status(cmd.Context())
	if err != nil {
		return err
	}
	printer, err := newPrinter(cmd, cfg)
	if err != nil {
		return err
	}
	report, err := service.Inspect(cmd.Context(), args[0], args[1:])
	if err != nil {
		return err
	}
	return debugger.Render(cmd.OutOrStdout(), printer, report)
}
