package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/illarion/seedvault/internal/crypto"
	"github.com/illarion/seedvault/internal/session"
	"github.com/illarion/seedvault/internal/vault"
)

// Register creates the remote account for the local wallet, creating the
// wallet first when there is none
func Register(ctx context.Context, app *App) {
	var (
		password []byte
		err      error
	)
	if app.Vault.State() == vault.Uninitialized {
		password, err = GetNewPassword(PasswordEnv, "Enter new password: ", app.Config.PasswordPolicy())
	} else {
		password, err = GetPassword("Enter password: ")
	}
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	sess, err := app.Session.Register(ctx, password)
	if err != nil {
		HandleError(err)
	}
	if _, err := app.DB.GetOrCreateVaultID(); err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Registered %s\n", sess.Address)
	printSession(sess)
}

// Login signs in with the local wallet
func Login(ctx context.Context, app *App, address string) {
	password, _, err := vaultPassword(app, "Enter password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	sess, err := app.Session.Login(ctx, address, password)
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("✓ Logged in as %s\n", sess.Address)
	printSession(sess)
}

// Logout ends the session and locks the wallet
func Logout(ctx context.Context, app *App) {
	if !app.Session.Authenticated() {
		fmt.Println("Not logged in")
		return
	}
	if err := app.Session.Logout(ctx); err != nil {
		HandleError(err)
	}
	fmt.Println("✓ Logged out")
}

// Verify checks the session with the server. It exits non-zero when the
// session is not valid.
func Verify(ctx context.Context, app *App) {
	if app.Session.Verify(ctx) {
		fmt.Println("Session: valid")
		return
	}
	if app.Session.Authenticated() {
		fmt.Println("Session: could not be checked (server unreachable)")
	} else {
		fmt.Println("Session: not valid")
	}
	os.Exit(1)
}

// Refresh exchanges the session token for a new one
func Refresh(ctx context.Context, app *App) {
	sess, err := app.Session.Refresh(ctx)
	if err != nil {
		HandleError(err)
	}
	fmt.Println("✓ Session refreshed")
	printSession(sess)
}

// Whoami prints the account the server associates with the session
func Whoami(ctx context.Context, app *App) {
	user, err := app.Session.Me(ctx)
	if err != nil {
		HandleError(err)
	}
	fmt.Printf("Address: %s\n", user.WalletAddress)
	if user.ID != "" {
		fmt.Printf("User:    %s\n", user.ID)
	}
}

// Recover fetches the recovery phrase from the server
func Recover(ctx context.Context, app *App) {
	password := GetPasswordOrExit("Enter account password: ")
	defer crypto.ClearBytes(password)

	mnemonic, err := app.Session.RecoverSeed(ctx, password)
	if err != nil {
		HandleError(err)
	}

	fmt.Println("Recovery phrase:")
	fmt.Println()
	fmt.Printf("  %s\n", mnemonic)
	fmt.Println()
	fmt.Println("Run 'seedvault import' with this phrase to restore the wallet")
}

func printSession(sess *session.Session) {
	if sess.UserID != "" {
		fmt.Printf("  user:    %s\n", sess.UserID)
	}
	if !sess.ExpiresAt.IsZero() {
		fmt.Printf("  expires: %s\n", sess.ExpiresAt.Local().Format(time.RFC3339))
	}
}

func newRegisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register the wallet with the authentication service",
		Long: `Registers the local wallet with the authentication service, creating a
new wallet first if none exists. A wallet left behind by a failed
registration is reused on retry.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Register(cmd.Context(), app)
		},
	}
}

func newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login [address]",
		Short: "Log in by signing a challenge with the wallet",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()

			var address string
			if len(args) == 1 {
				address = args[0]
			}
			Login(cmd.Context(), app, address)
		},
	}
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and lock the wallet",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Logout(cmd.Context(), app)
		},
	}
}

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the session with the server",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Verify(cmd.Context(), app)
		},
	}
}

func newRefreshCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the session token for a new one",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Refresh(cmd.Context(), app)
		},
	}
}

func newWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account behind the current session",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Whoami(cmd.Context(), app)
		},
	}
}

func newRecoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Fetch the recovery phrase from the server",
		Long: `Fetches the recovery phrase stored with the account over an encrypted
transport envelope. Requires an active session and the account password.
The phrase is printed and never stored.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Recover(cmd.Context(), app)
		},
	}
}
