/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seckatie/marksync/internal/config"
	"github.com/seckatie/marksync/internal/core/auth"
	"github.com/seckatie/marksync/internal/core/db"
	"github.com/seckatie/marksync/internal/core/feed"
	"github.com/seckatie/marksync/internal/core/web"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "marksync",
	Short: "Bookmarks that stay in sync across every open session",
	Long: `marksync keeps a personal list of bookmarks synchronized in real time.

Run without a subcommand to start the server: the SQLite store, the
authenticated JSON API, the WebSocket change feed and a small web page.
Use "marksync watch" to follow and edit your list from a terminal.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		logger, err := config.NewLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		return serve(cmd, cfg, logger)
	},
}

func serve(cmd *cobra.Command, cfg config.Config, logger *zap.Logger) error {
	database, err := initDB(cfg.DB, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hub := feed.NewHub(cfg.Feed.Buffer, logger, reg)
	defer hub.Close()
	feed.Bridge(database, hub)

	authn, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return err
	}

	server, err := web.NewServer(database, hub, authn, logger, web.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		PingInterval:   cfg.Feed.PingInterval,
		Registry:       reg,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize web server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx, cfg.Addr())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringP("db", "d", "marksync.db", "Path to the SQLite database file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	rootCmd.Flags().String("host", "localhost", "Host to listen on")
	rootCmd.Flags().String("auth-mode", config.AuthJWT, "Token verification: jwt or supabase")
}

// loadConfig layers explicitly set flags over the config file and the
// environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, err := flags.GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	for name, dst := range map[string]*string{
		"db":        &cfg.DB,
		"log-level": &cfg.LogLevel,
		"host":      &cfg.Host,
		"auth-mode": &cfg.Auth.Mode,
		"server":    &cfg.Client.Server,
		"token":     &cfg.Client.Token,
	} {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			if *dst, err = flags.GetString(name); err != nil {
				return config.Config{}, err
			}
		}
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		if cfg.Port, err = flags.GetInt("port"); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

func initDB(path string, logger *zap.Logger) (*db.DB, error) {
	database, err := db.NewSQLiteDB(path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("database migrated", zap.String("path", path))
	return database, nil
}

func newAuthenticator(cfg config.AuthConfig) (auth.Authenticator, error) {
	if cfg.Mode == config.AuthSupabase {
		a, err := auth.NewSupabaseAuthenticator(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	a, err := auth.NewJWTAuthenticator(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	return a, nil
}
