package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/illarion/seedvault/internal/keyring"
	"github.com/illarion/seedvault/internal/vault"
)

// Status shows the wallet and session state. It does not need a password.
func Status(app *App) {
	fmt.Printf("Data:    %s\n", app.DB.Path())
	fmt.Printf("Server:  %s\n", app.Client.BaseURL())

	state := app.Vault.State()
	if state == vault.Uninitialized {
		fmt.Println("Wallet:  none")
		fmt.Println("Run 'seedvault init' or 'seedvault import' to create one")
		return
	}

	fmt.Printf("Wallet:  %s (%s)\n", app.Vault.Address(), state)
	if record, err := app.Vault.Record(); err == nil {
		fmt.Printf("Scheme:  %s\n", record.Scheme)
		fmt.Printf("KDF:     %s\n", record.KDFParams.Algorithm)
	}
	if created, err := app.DB.GetCreated(); err == nil && !created.IsZero() {
		fmt.Printf("Created: %s\n", created.Format(time.RFC3339))
	}
	if modified, err := app.DB.GetModified(); err == nil && !modified.IsZero() {
		fmt.Printf("Changed: %s\n", modified.Format(time.RFC3339))
	}
	if vaultID, err := app.DB.GetVaultID(); err == nil && vaultID != "" {
		fmt.Printf("ID:      %s\n", vaultID)
		if keyring.Has(passwordKey(vaultID)) {
			fmt.Println("Keyring: password stored")
		}
	}

	sess := app.Session.Current()
	if sess == nil {
		fmt.Println("Session: not logged in")
		return
	}
	fmt.Printf("Session: logged in as %s\n", sess.Address)
	if !sess.ExpiresAt.IsZero() {
		fmt.Printf("Expires: %s\n", sess.ExpiresAt.Local().Format(time.RFC3339))
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"ls"},
		Short:   "Show wallet and session status",
		Long: `Shows the wallet address, vault state, encryption details and
whether a session is active.

Does not require a password.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Status(app)
		},
	}
}
