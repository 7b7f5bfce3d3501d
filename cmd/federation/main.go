package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/federation/internal/app"
	"github.com/dropDatabas3/federation/internal/config"
	cpfs "github.com/dropDatabas3/federation/internal/controlplane/fs"
	"github.com/dropDatabas3/federation/internal/domain/repository"
	fedhttp "github.com/dropDatabas3/federation/internal/http"
	"github.com/dropDatabas3/federation/internal/observability/logger"
	"github.com/dropDatabas3/federation/internal/providers/github"
	"github.com/dropDatabas3/federation/internal/security/secretbox"
	"github.com/dropDatabas3/federation/internal/store/pg"
	migrations "github.com/dropDatabas3/federation/migrations/postgres"
)

// version se setea con -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath = envOr("CONFIG_PATH", "configs/config.yaml")
		envFile = ".env"
	)

	root := &cobra.Command{
		Use:           "federation",
		Short:         "Exchange de identidad federada (GitHub) contra usuarios locales",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("cargar %s: %w", envFile, err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", cfgPath, "ruta al YAML de configuración (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "archivo .env opcional")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config inválida: %w", err)
		}
		logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "federation", Version: version})
		return cfg, nil
	}

	root.AddCommand(
		serveCmd(load),
		migrateCmd(load),
		encryptSecretCmd(),
		appsCmd(load),
		versionCmd(),
	)
	return root
}

type loadFunc func() (*config.Config, error)

func serveCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, app.Deps{Version: version})
			if err != nil {
				return err
			}
			defer a.Close()

			srv := fedhttp.NewServer(fedhttp.ServerConfig{
				Addr:            cfg.Server.Addr,
				ReadTimeout:     config.Dur(cfg.Server.ReadTimeout, 15*time.Second),
				WriteTimeout:    config.Dur(cfg.Server.WriteTimeout, 30*time.Second),
				ShutdownTimeout: config.Dur(cfg.Server.ShutdownTimeout, 10*time.Second),
			}, a.Handler)
			logger.L().Info("listening", logger.String("addr", cfg.Server.Addr), logger.String("version", version))
			return srv.ListenAndServe(ctx)
		},
	}
}

func migrateCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de Postgres embebidas (con advisory lock)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if d := strings.ToLower(cfg.Storage.Driver); d != "postgres" && d != "pg" && d != "postgresql" {
				return fmt.Errorf("migrate requiere storage.driver=postgres (actual %q)", cfg.Storage.Driver)
			}
			ctx := cmd.Context()
			s, err := pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{MaxConns: 2})
			if err != nil {
				return err
			}
			defer s.Close()
			n, err := s.Migrate(ctx, migrations.FS)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migraciones aplicadas: %d\n", n)
			return nil
		},
	}
}

func encryptSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-secret <plain>",
		Short: "Cifra un client secret con SECRETBOX_MASTER_KEY para el YAML del app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sealed, err := secretbox.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}

func appsCmd(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Administra los apps del control plane en disco",
	}

	open := func() (*cpfs.Provider, error) {
		cfg, err := load()
		if err != nil {
			return nil, err
		}
		var sealer cpfs.Sealer
		if box, err := secretbox.Default(); err == nil {
			sealer = box
		}
		return cpfs.New(cfg.ControlPlane.FSRoot, sealer), nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Lista los apps",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := open()
			if err != nil {
				return err
			}
			ids, err := p.ListApps(cmd.Context())
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), ids)
		},
	}

	var name, clientID, clientSecret string
	put := &cobra.Command{
		Use:   "put <app-id>",
		Short: "Crea o reemplaza un app con credenciales de GitHub (el secret se guarda cifrado)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientID == "" || clientSecret == "" {
				return errors.New("--github-client-id y --github-client-secret son obligatorios")
			}
			p, err := open()
			if err != nil {
				return err
			}
			a := &repository.App{
				ID:   args[0],
				Name: name,
				OAuth: map[string]repository.Credentials{
					github.Prefix: {ClientID: clientID, ClientSecret: clientSecret},
				},
			}
			if err := p.PutApp(cmd.Context(), a); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "app %s guardado en %s\n", a.ID, p.Root())
			return nil
		},
	}
	put.Flags().StringVar(&name, "name", "", "nombre visible")
	put.Flags().StringVar(&clientID, "github-client-id", "", "client_id de la OAuth app de GitHub")
	put.Flags().StringVar(&clientSecret, "github-client-secret", "", "client_secret de la OAuth app de GitHub")

	cmd.AddCommand(list, put)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Imprime la versión",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func printLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
