// cmd/coordinator/root.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tamzrod/spectro-coordinator/internal/config"
)

// app carries the global flags and the loaded configuration.
type app struct {
	cfgPath  string
	verbose  bool
	simulate bool

	cfg *config.Config
}

func rootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "spectro-coordinator",
		Short:         "Multi-spectrometer acquisition coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log at DEBUG (driver log level 0)")
	root.PersistentFlags().BoolVar(&a.simulate, "simulate", false, "Use the simulated driver instead of the native library")

	versionCmd := versionCommand()
	root.AddCommand(runCommand(a), dumpCommand(a), eepromCommand(a), versionCmd)

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return a.loadConfig()
	}

	return root
}

// loadConfig reads the config file (if any), applies flag overrides,
// then validates and normalizes.
func (a *app) loadConfig() error {
	cfg := &config.Config{}
	if a.cfgPath != "" {
		loaded, err := config.Load(a.cfgPath)
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		cfg = loaded
	}

	if a.simulate {
		cfg.Driver.Simulate = true
	}
	if a.verbose {
		cfg.Log.Level = "debug"
		lv := 0
		cfg.Driver.LogLevel = &lv
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	a.cfg = cfg
	return nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the coordinator version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "spectro-coordinator %s\n", version)
		},
	}
}
