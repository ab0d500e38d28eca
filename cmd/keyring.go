package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/illarion/seedvault/internal/crypto"
	"github.com/illarion/seedvault/internal/keyring"
	"github.com/illarion/seedvault/internal/vault"
)

// passwordKey is the keyring entry holding the password of one vault
func passwordKey(vaultID string) string {
	return "password:" + vaultID
}

// vaultPassword returns the password from the environment, the keyring or a
// prompt, in that order. fromKeyring reports where it came from.
func vaultPassword(app *App, prompt string) (password []byte, fromKeyring bool, err error) {
	if password := passwordFromEnv(PasswordEnv); password != nil {
		return password, false, nil
	}

	if vaultID, err := app.DB.GetVaultID(); err == nil && vaultID != "" {
		if stored, err := keyring.Get(passwordKey(vaultID)); err == nil {
			return []byte(stored), true, nil
		}
	}

	password, err = ReadPassword(prompt)
	return password, false, err
}

// GetPasswordWithRetry gets the vault password and checks it with verify. A
// stale keyring entry is removed and the user is prompted instead.
func GetPasswordWithRetry(app *App, prompt string, verify func([]byte) error) ([]byte, error) {
	password, fromKeyring, err := vaultPassword(app, prompt)
	if err != nil {
		return nil, err
	}

	err = verify(password)
	if err == nil {
		return password, nil
	}
	crypto.ClearBytes(password)
	if !fromKeyring || !errors.Is(err, vault.ErrWrongPassword) {
		return nil, err
	}

	fmt.Fprintln(os.Stderr, "Stored keyring password is out of date, removing it")
	if vaultID, _ := app.DB.GetVaultID(); vaultID != "" {
		keyring.Delete(passwordKey(vaultID))
	}

	password, err = ReadPassword(prompt)
	if err != nil {
		return nil, err
	}
	if err := verify(password); err != nil {
		crypto.ClearBytes(password)
		return nil, err
	}
	return password, nil
}

// unlockOrExit unlocks the vault with the vault password
func unlockOrExit(ctx context.Context, app *App, prompt string) []byte {
	password, err := GetPasswordWithRetry(app, prompt, func(p []byte) error {
		return app.Vault.Unlock(ctx, p)
	})
	if err != nil {
		HandleError(err)
	}
	return password
}

// KeyringSave saves the vault password to the OS keyring
func KeyringSave(ctx context.Context, app *App) {
	password, err := ReadPassword("Enter password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	if err := app.Vault.Unlock(ctx, password); err != nil {
		HandleError(err)
	}
	app.Vault.Lock()

	vaultID, err := app.DB.GetOrCreateVaultID()
	if err != nil {
		HandleError(err)
	}

	if err := keyring.Set(passwordKey(vaultID), string(password)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save to keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password saved to keyring")
}

// KeyringDelete removes the vault password from the OS keyring
func KeyringDelete(app *App) {
	vaultID, err := app.DB.GetVaultID()
	if err != nil || !keyring.Has(passwordKey(vaultID)) {
		fmt.Println("No password stored in keyring")
		return
	}

	if err := keyring.Delete(passwordKey(vaultID)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to remove from keyring: %s\n", err)
		os.Exit(1)
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus checks if the vault password is stored in the keyring
func KeyringStatus(app *App) {
	vaultID, err := app.DB.GetVaultID()
	if err == nil && keyring.Has(passwordKey(vaultID)) {
		fmt.Println("Password: stored in keyring")
		return
	}
	fmt.Println("Password: not stored")
}

func newKeyringCommand() *cobra.Command {
	keyringCmd := &cobra.Command{
		Use:   "keyring",
		Short: "Manage the vault password in the OS keyring",
	}

	keyringCmd.AddCommand(
		&cobra.Command{
			Use:   "save",
			Short: "Save the vault password to the OS keyring",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				app := OpenAppOrExit(cmd)
				defer app.Close()
				KeyringSave(cmd.Context(), app)
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the vault password from the OS keyring",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				app := OpenAppOrExit(cmd)
				defer app.Close()
				KeyringDelete(app)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether the vault password is in the OS keyring",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				app := OpenAppOrExit(cmd)
				defer app.Close()
				KeyringStatus(app)
			},
		},
	)
	return keyringCmd
}
