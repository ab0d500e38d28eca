package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/illarion/seedvault/internal/api"
	"github.com/illarion/seedvault/internal/config"
	"github.com/illarion/seedvault/internal/logging"
	"github.com/illarion/seedvault/internal/recovery"
	"github.com/illarion/seedvault/internal/session"
	"github.com/illarion/seedvault/internal/signer"
	"github.com/illarion/seedvault/internal/storage"
	"github.com/illarion/seedvault/internal/vault"
)

// App wires the seedvault components for one command invocation
type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	DB      *storage.Storage
	Vault   *vault.Vault
	Client  *api.Client
	Session *session.Manager
}

// OpenApp loads configuration and opens the vault database. The persisted
// session, if any, is restored.
func OpenApp(cmd *cobra.Command) (*App, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cmd, configFile)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	scheme, err := signer.ByName(cfg.Scheme)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	v, err := vault.New(db, scheme,
		vault.WithLogger(log.With().Str("component", "vault").Logger()),
		vault.WithKDFParams(cfg.KDFParams()),
	)
	if err != nil {
		db.Close()
		return nil, err
	}

	client, err := api.New(cfg.APIURL,
		api.WithTimeout(cfg.Timeout),
		api.WithLogger(log.With().Str("component", "api").Logger()),
	)
	if err != nil {
		db.Close()
		return nil, err
	}

	var tokens session.TokenStore = session.NewDBStore(db)
	if cfg.SessionStore == config.StoreKeyring {
		tokens = session.NewKeyringStore()
	}

	mgr := session.New(v, client, tokens,
		session.WithLogger(log.With().Str("component", "session").Logger()),
		session.WithDomain(cfg.Domain),
		session.WithLoginLimit(cfg.Login.MaxAttempts, cfg.Login.Window),
		session.WithAttemptStore(session.NewDBStore(db)),
	)

	app := &App{Config: cfg, Log: log, DB: db, Vault: v, Client: client, Session: mgr}
	if _, err := mgr.Restore(cmd.Context()); err != nil {
		log.Warn().Err(err).Msg("could not restore stored session")
	}
	return app, nil
}

// Close locks the vault and closes the database
func (a *App) Close() error {
	a.Vault.Lock()
	return a.DB.Close()
}

// OpenAppOrExit is like OpenApp but exits on error
func OpenAppOrExit(cmd *cobra.Command) *App {
	app, err := OpenApp(cmd)
	if err != nil {
		HandleError(err)
	}
	return app
}

// GetPasswordOrExit is like GetPassword but exits on error
func GetPasswordOrExit(prompt string) []byte {
	password, err := GetPassword(prompt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return password
}

// HandleError handles common errors consistently
func HandleError(err error) {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, vault.ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "Error: no wallet vault found\n")
		fmt.Fprintf(os.Stderr, "Run 'seedvault init' or 'seedvault import' first\n")
	case errors.Is(err, vault.ErrAlreadyExists):
		fmt.Fprintf(os.Stderr, "Error: a wallet vault already exists\n")
		fmt.Fprintf(os.Stderr, "Use 'seedvault status' to see current state\n")
	case errors.Is(err, vault.ErrWrongPassword):
		fmt.Fprintf(os.Stderr, "Error: wrong password\n")
	case errors.Is(err, vault.ErrInvalidMnemonic):
		fmt.Fprintf(os.Stderr, "Error: invalid recovery phrase\n")
	case errors.Is(err, vault.ErrWeakPassword), errors.Is(err, vault.ErrEmptyPassword):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	case errors.Is(err, session.ErrUnknownAccount):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Run 'seedvault register' to create an account\n")
	case errors.Is(err, session.ErrNoLocalVault):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		fmt.Fprintf(os.Stderr, "Run 'seedvault import' with your recovery phrase\n")
	case errors.Is(err, session.ErrNotAuthenticated):
		fmt.Fprintf(os.Stderr, "Error: not logged in\n")
		fmt.Fprintf(os.Stderr, "Run 'seedvault login' first\n")
	case errors.Is(err, session.ErrTooManyAttempts):
		fmt.Fprintf(os.Stderr, "Error: too many failed attempts, try again later\n")
	case errors.Is(err, session.ErrLoginRejected):
		fmt.Fprintf(os.Stderr, "Error: login rejected by server\n")
	case errors.Is(err, recovery.ErrAuthFailed), errors.Is(err, recovery.ErrMalformedEnvelope):
		fmt.Fprintf(os.Stderr, "Error: recovery failed: %s\n", err)
	case api.IsNetwork(err):
		fmt.Fprintf(os.Stderr, "Error: cannot reach server: %s\n", err)
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 500:
		fmt.Fprintf(os.Stderr, "Error: server unavailable: %s\n", apiErr)
	case errors.As(err, &apiErr):
		fmt.Fprintf(os.Stderr, "Error: %s\n", apiErr)
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(os.Stderr, "Error: interrupted\n")
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(1)
}
