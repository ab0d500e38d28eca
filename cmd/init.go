package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/seedvault/internal/crypto"
)

// Init creates a new wallet vault and shows its recovery phrase once
func Init(ctx context.Context, app *App) {
	password, err := GetNewPassword(PasswordEnv, "Enter new password: ", app.Config.PasswordPolicy())
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	address, err := app.Vault.Create(ctx, password)
	if err != nil {
		HandleError(err)
	}
	if _, err := app.DB.GetOrCreateVaultID(); err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Created wallet %s\n", address)
	showRecoveryPhrase(ctx, app, password)
}

// Import restores a wallet vault from a recovery phrase. With remote set
// it also signs in to the service with an import challenge.
func Import(ctx context.Context, app *App, remote bool) {
	phrase, err := ReadPassword("Enter recovery phrase: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(phrase)

	password, err := GetNewPassword(PasswordEnv, "Enter new password: ", app.Config.PasswordPolicy())
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	if remote {
		sess, err := app.Session.Import(ctx, string(phrase), password)
		if _, idErr := app.DB.GetOrCreateVaultID(); idErr != nil {
			HandleError(idErr)
		}
		if err != nil {
			HandleError(err)
		}
		fmt.Printf("✓ Imported wallet %s and signed in\n", sess.Address)
		printSession(sess)
		return
	}

	address, err := app.Vault.Import(ctx, string(phrase), password)
	if err != nil {
		HandleError(err)
	}
	if _, err := app.DB.GetOrCreateVaultID(); err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Imported wallet %s\n", address)
}

func showRecoveryPhrase(ctx context.Context, app *App, password []byte) {
	if err := app.Vault.Unlock(ctx, password); err != nil {
		HandleError(err)
	}
	defer app.Vault.Lock()

	mnemonic, err := app.Vault.ExportSeed()
	if err != nil {
		HandleError(err)
	}

	fmt.Println()
	fmt.Println("Recovery phrase (write it down, it will not be shown again):")
	fmt.Println()
	fmt.Printf("  %s\n", mnemonic)
	fmt.Println()
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new wallet vault",
		Long: `Creates a new wallet from a fresh 24-word recovery phrase and stores it
encrypted with your password. The phrase is printed once.
The password is not stored anywhere - you must remember it.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Init(cmd.Context(), app)
		},
	}
}

func newImportCommand() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Restore a wallet vault from its recovery phrase",
		Long: `Restores a wallet vault from its recovery phrase. With --remote the
restored wallet also signs in to the authentication service by signature
alone. The phrase and password never leave this machine.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Import(cmd.Context(), app, remote)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "also sign in to the authentication service")
	return cmd
}
