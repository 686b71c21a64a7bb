package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/layer-3/invoicegate/adapters/events"
	"github.com/layer-3/invoicegate/adapters/tokenstore"
	"github.com/layer-3/invoicegate/client"
	"github.com/layer-3/invoicegate/internal/config"
	"github.com/layer-3/invoicegate/internal/eth"
	"github.com/layer-3/invoicegate/internal/logging"
	"github.com/layer-3/invoicegate/ports"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:9000"

type clientFlags struct {
	server  string
	profile string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", defaultServer, "Base URL of the authentication API")
	cmd.Flags().StringVar(&f.profile, "profile", "default", "Name of the stored session")
}

// clientSession is a session manager plus the resources it holds open
type clientSession struct {
	manager *client.SessionManager
	persist bool
	closers []func() error
}

func (s *clientSession) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// openClient builds a session manager. Sessions survive between invocations
// only when REDIS_URL is set; otherwise they live for the current command.
func openClient(ctx context.Context, global *globalFlags, flags *clientFlags, provider client.WalletProvider) (*clientSession, error) {
	cfg, err := config.Load(global.envFile)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if global.logLevel != "" {
		level = global.logLevel
	}
	logger, err := logging.New(level)
	if err != nil {
		return nil, err
	}

	session := &clientSession{}
	session.closers = append(session.closers, func() error { _ = logger.Sync(); return nil })

	var (
		store    ports.TokenStore = tokenstore.NewMemoryStore()
		notifier ports.SessionNotifier
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		session.closers = append(session.closers, redisClient.Close)

		n, err := events.NewRedisStreamNotifier(redisClient, logging.NewWatermillAdapter(logger))
		if err != nil {
			session.Close()
			return nil, err
		}
		store = tokenstore.NewRedisStore(redisClient, flags.profile)
		notifier = n
		session.persist = true
	}

	manager, err := client.NewSessionManager(client.Config{
		Backend:  client.NewHTTPBackend(flags.server, nil),
		Store:    store,
		Notifier: notifier,
		Provider: provider,
		Logger:   logger,
	})
	if err != nil {
		session.Close()
		return nil, err
	}
	if err := manager.Init(ctx); err != nil {
		session.Close()
		return nil, err
	}

	session.manager = manager
	return session, nil
}

func loginCmd(global *globalFlags) *cobra.Command {
	flags := &clientFlags{}
	var key string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a wallet key",
		Long: `Requests a challenge for the key's address, signs it and exchanges the
signature for a session. The key may also be given as WALLET_PRIVATE_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" {
				key = os.Getenv("WALLET_PRIVATE_KEY")
			}
			if key == "" {
				return fmt.Errorf("--key or WALLET_PRIVATE_KEY is required")
			}
			signer, err := eth.SignerFromHex(key)
			if err != nil {
				return fmt.Errorf("invalid wallet key: %w", err)
			}

			ctx := cmd.Context()
			session, err := openClient(ctx, global, flags, client.NewKeyProvider(signer))
			if err != nil {
				return err
			}
			defer session.Close()

			result := session.manager.AuthenticateWithWallet(ctx, signer.Address().Hex())
			if !result.Success {
				return fmt.Errorf("%s", result.Message)
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			if !session.persist {
				token, err := session.manager.AccessToken(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "REDIS_URL is not set, the session ends with this command")
				fmt.Fprintf(cmd.OutOrStdout(), "access token: %s\n", token)
			}
			return printInfo(cmd, session.manager.GetSessionInfo())
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&key, "key", "", "Hex encoded secp256k1 private key")
	return cmd
}

func whoamiCmd(global *globalFlags) *cobra.Command {
	flags := &clientFlags{}
	var watch bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := openClient(ctx, global, flags, nil)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := printInfo(cmd, session.manager.GetSessionInfo()); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			session.manager.OnExpired(func(notice client.ExpiryNotice) {
				fmt.Fprintf(cmd.OutOrStdout(), "session expired (%s): %s\n", notice.Reason, notice.Message)
				stop()
			})
			return session.manager.Run(ctx)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep the session alive and report when it ends")
	return cmd
}

func logoutCmd(global *globalFlags) *cobra.Command {
	flags := &clientFlags{}

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the stored session and revoke it on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := openClient(ctx, global, flags, nil)
			if err != nil {
				return err
			}
			defer session.Close()

			if !session.manager.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}
			session.manager.Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

type sessionView struct {
	Authenticated bool   `json:"authenticated"`
	State         string `json:"state"`
	UserID        string `json:"userId,omitempty"`
	Role          string `json:"role,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
	ExpiresIn     string `json:"expiresIn,omitempty"`
}

func printInfo(cmd *cobra.Command, info client.SessionInfo) error {
	view := sessionView{
		Authenticated: info.IsAuthenticated,
		State:         string(info.State),
	}
	if info.User != nil {
		view.UserID = info.User.ID
		view.Role = info.User.Role
	}
	if info.TokenExpiry > 0 {
		view.ExpiresAt = time.Unix(info.TokenExpiry, 0).UTC().Format(time.RFC3339)
		view.ExpiresIn = info.TimeUntilExpiry.Truncate(time.Second).String()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
