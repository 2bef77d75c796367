package cli

import (
	"crypto/rsa"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/distributed-ci/dci-server/internal/server"
	"github.com/distributed-ci/dci-server/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port       int
		host       string
		dev        bool
		ssoKeyFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the control server",
		Long:  "Start the HTTP API remote agents and users authenticate against.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev, ssoKeyFile)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")
	cmd.Flags().StringVar(&ssoKeyFile, "sso-public-key", "", "PEM file with the SSO RSA public key")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("sso.public_key_file", cmd.Flags().Lookup("sso-public-key"))

	return cmd
}

func runServe(host string, port int, dev bool, ssoKeyFile string) error {
	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	st, err := openStore(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := server.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	if origins := viper.GetStringSlice("server.cors_origins"); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}
	if rpm := viper.GetInt("server.requests_per_minute"); rpm > 0 {
		cfg.RequestsPerMinute = rpm
	}

	if ssoKeyFile == "" {
		ssoKeyFile = viper.GetString("sso.public_key_file")
	}
	if ssoKeyFile != "" {
		key, err := loadSSOPublicKey(ssoKeyFile)
		if err != nil {
			return err
		}
		cfg.SSOPublicKey = key
		logger.Info("SSO authentication enabled", "key_file", ssoKeyFile)
	}

	srv := server.New(cfg, st, logger)
	return srv.ListenAndServe()
}

// openStore connects to Postgres when a DSN is configured, otherwise to the
// local SQLite store under the data directory.
func openStore(logger *slog.Logger) (*store.Store, error) {
	if dsn := viper.GetString("database.dsn"); dsn != "" {
		st, err := store.NewPostgres(dsn)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		logger.Info("store initialized", "backend", "postgres")
		return st, nil
	}

	dir := dataDir
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = home + "/.dci-server"
	}
	st, err := store.New(dir)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info("store initialized", "backend", "sqlite", "path", dir)
	return st, nil
}

func loadSSOPublicKey(path string) (*rsa.PublicKey, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read SSO public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse SSO public key: %w", err)
	}
	return key, nil
}
