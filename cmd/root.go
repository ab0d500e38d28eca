package cmd

import (
	"github.com/spf13/cobra"

	"github.com/illarion/seedvault/internal/config"
)

// NewRootCommand builds the seedvault command tree
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "seedvault",
		Short: "Password-protected wallet vault with signed-challenge login",
		Long: `seedvault keeps a wallet recovery phrase encrypted on disk and logs in
to an authentication service by signing one-time challenges with the
wallet key. The password is never stored unless saved to the OS keyring.

Passwords are read from SEEDVAULT_PASSWORD when set.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file (default is the user config dir)")
	root.PersistentFlags().String("api-url", "", "authentication service base URL")
	root.PersistentFlags().String("data-dir", "", "directory holding the vault database")
	root.PersistentFlags().String("session-store", "", `where the session is kept ("`+config.StoreFile+`" or "`+config.StoreKeyring+`")`)
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCommand(),
		newImportCommand(),
		newRegisterCommand(),
		newLoginCommand(),
		newLogoutCommand(),
		newVerifyCommand(),
		newRefreshCommand(),
		newWhoamiCommand(),
		newRecoverCommand(),
		newSignCommand(),
		newPubkeyCommand(),
		newPasswdCommand(),
		newStatusCommand(),
		newCompactCommand(),
		newKeyringCommand(),
		newConfigCommand(),
		newCompletionCommand(),
	)
	return root
}
