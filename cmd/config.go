package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/illarion/seedvault/internal/config"
)

// ConfigInit writes the effective configuration to a file
func ConfigInit(cmd *cobra.Command, force bool) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			HandleError(err)
		}
	}

	if _, err := os.Stat(path); err == nil && !force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", path)
		fmt.Fprintf(os.Stderr, "Use --force to overwrite it\n")
		os.Exit(1)
	}

	cfg, err := config.Load(cmd, "")
	if err != nil {
		HandleError(err)
	}
	if err := config.Write(cfg, path); err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Wrote %s\n", path)
}

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the seedvault configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the current settings",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ConfigInit(cmd, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(initCmd)
	return configCmd
}
