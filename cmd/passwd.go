package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/illarion/seedvault/internal/crypto"
	"github.com/illarion/seedvault/internal/keyring"
)

// Passwd changes the vault password
func Passwd(ctx context.Context, app *App) {
	// Get current password with retry on stale keyring
	currentPassword := unlockOrExit(ctx, app, "Enter current password: ")
	crypto.ClearBytes(currentPassword)
	defer app.Vault.Lock()

	newPassword, err := GetNewPassword(NewPasswordEnv, "Enter new password: ", app.Config.PasswordPolicy())
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(newPassword)

	if err := app.Vault.ChangePassword(ctx, newPassword); err != nil {
		HandleError(err)
	}

	// Keep a stored keyring password in step with the vault
	if vaultID, _ := app.DB.GetVaultID(); vaultID != "" && keyring.Has(passwordKey(vaultID)) {
		if err := keyring.Set(passwordKey(vaultID), string(newPassword)); err == nil {
			fmt.Println("Keyring updated with new password")
		}
	}

	// Compact database so the old ciphertext does not linger in free pages
	if err := app.DB.Compact(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: compaction failed: %s\n", err)
	}

	fmt.Println("password changed successfully")
}

func newPasswdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the vault password",
		Long: `Changes the vault password. Requires both the current and new passwords.
The recovery phrase is re-encrypted with a fresh salt and nonce.
The new password may be given in SEEDVAULT_NEW_PASSWORD.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Passwd(cmd.Context(), app)
		},
	}
}
