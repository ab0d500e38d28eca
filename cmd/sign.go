package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/seedvault/internal/crypto"
)

// Sign signs message with the wallet key and prints the hex signature
func Sign(ctx context.Context, app *App, message string) {
	password := unlockOrExit(ctx, app, "Enter password: ")
	crypto.ClearBytes(password)
	defer app.Vault.Lock()

	sig, err := app.Vault.Sign([]byte(message))
	if err != nil {
		HandleError(err)
	}

	fmt.Println(hex.EncodeToString(sig))
}

// PublicKey prints the wallet public key. This needs the vault unlocked.
func PublicKey(ctx context.Context, app *App) {
	password := unlockOrExit(ctx, app, "Enter password: ")
	crypto.ClearBytes(password)
	defer app.Vault.Lock()

	pub, err := app.Vault.PublicKey()
	if err != nil {
		HandleError(err)
	}

	fmt.Println(hex.EncodeToString(pub))
}

func newSignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sign <message>",
		Short: "Sign a message with the wallet key",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			Sign(cmd.Context(), app, args[0])
		},
	}
}

func newPubkeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey",
		Short: "Print the wallet public key",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app := OpenAppOrExit(cmd)
			defer app.Close()
			PublicKey(cmd.Context(), app)
		},
	}
}
