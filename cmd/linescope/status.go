package main

import (
	"fmt"
	"github.com/spf13/cobra"
	"strings"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the configuration and the last session",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	service, store, err := newService(cmd)
	if err != nil {
		return err
	}
	cfg, session, err := service.Status(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "program:      %v\n", cfg.Program)
	fmt.Fprintf(out, "input:        %v\n", cfg.Input)
	fmt.Fprintf(out, "cache:        %v\n", store.Dir())
	fmt.Fprintf(out, "max rounds:   %d\n", cfg.MaxRounds)
	fmt.Fprintf(out, "max children: %d\n", cfg.MaxChildren)
	if session == nil {
		fmt.Fprintln(out, "no session recorded")
		return nil
	}
	fmt.Fprintf(out, "last session: %v:%d at %v (%v)\n", session.File, session.Line, session.Started.Format("2006-01-02 15:04:05"), session.Elapsed)
	if len(session.Variables) > 0 {
		fmt.Fprintf(out, "  variables:   %v\n", strings.Join(session.Variables, ", "))
	}
	fmt.Fprintf(out, "  captures:    %d\n", session.Captures)
	fmt.Fprintf(out, "  rounds:      %d\n", session.Rounds)
	fmt.Fprintf(out, "  fingerprint: %016x\n", session.Fingerprint)
	for _, removed := range session.Removed {
		fmt.Fprintf(out, "  removed:     %v:%d %v\n", removed.File, removed.Line, removed.Text)
	}
	return nil
}
