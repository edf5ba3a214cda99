package main

import (
	"fmt"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init PROGRAM INPUT",
	Short: "Save the program and input folders",
	Long: `Save the directory of the main package to debug and the input folder used to run it.
The input folder may hold environment.yaml, request.yaml and a keypairs directory.`,
	Args: cobra.ExactArgs(2),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	service, store, err := newService(cmd)
	if err != nil {
		return err
	}
	cfg, err := service.Init(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "program: %v\n", cfg.Program)
	fmt.Fprintf(out, "input:   %v\n", cfg.Input)
	fmt.Fprintf(out, "cache:   %v\n", store.Dir())
	return nil
}
