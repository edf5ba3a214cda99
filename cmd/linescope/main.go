package main

import (
	"fmt"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/viant/linescope/config"
	"github.com/viant/linescope/debugger"
	"github.com/viant/linescope/execute"
	"github.com/viant/linescope/output"
	"log/slog"
	"os"
)

const appName = "linescope"

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Single line variable inspector for Go programs",
	Long:          `linescope captures every variable live at FILE:LINE while the program runs once with a recorded input.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(varCmd)
	rootCmd.AddCommand(statusCmd)

	rootCmd.PersistentFlags().String("color", config.ColorAuto, "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("verbose", false, "log every step")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newService opens the cache store and builds a debugger with a stderr logger
func newService(cmd *cobra.Command, runnerOptions ...execute.Option) (*debugger.Service, *config.Store, error) {
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return nil, nil, err
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	store, err := config.Open(appName)
	if err != nil {
		return nil, nil, err
	}
	runner := execute.NewProcessRunner(append([]execute.Option{execute.WithLogger(logger)}, runnerOptions...)...)
	return debugger.New(store, debugger.WithLogger(logger), debugger.WithRunner(runner)), store, nil
}

// newPrinter resolves the color mode, the flag wins over the saved configuration
func newPrinter(cmd *cobra.Command, cfg *config.Config) (*output.Printer, error) {
	flags := cmd.Root().PersistentFlags()
	mode := cfg.Color
	if flags.Changed("color") || mode == "" {
		value, err := flags.GetString("color")
		if err != nil {
			return nil, err
		}
		mode = value
	}
	var useColor bool
	switch mode {
	case config.ColorOn:
		useColor = true
	case config.ColorOff:
	case config.ColorAuto:
		useColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	default:
		return nil, fmt.Errorf("invalid --color %q", mode)
	}
	printer := output.NewPrinter(useColor)
	printer.MaxChildren = cfg.MaxChildren
	return printer, nil
}
