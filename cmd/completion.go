package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Completion outputs the shell completion script for shell
func Completion(root *cobra.Command, shell string) {
	var err error
	switch shell {
	case "bash":
		err = root.GenBashCompletionV2(os.Stdout, true)
	case "zsh":
		err = root.GenZshCompletion(os.Stdout)
	case "fish":
		err = root.GenFishCompletion(os.Stdout, true)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
	if err != nil {
		HandleError(err)
	}
}

func newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish>",
		Short: "Generate shell completions",
		Long: `Outputs shell completion script for the specified shell.

Setup:
  # Bash - add to ~/.bashrc
  eval "$(seedvault completion bash)"

  # Zsh - add to ~/.zshrc
  eval "$(seedvault completion zsh)"

  # Fish - add to ~/.config/fish/config.fish
  seedvault completion fish | source`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		Run: func(cmd *cobra.Command, args []string) {
			Completion(cmd.Root(), args[0])
		},
	}
}
