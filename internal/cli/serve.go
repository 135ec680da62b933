package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvasser/internal/canvass"
	"github.com/evcraddock/canvasser/internal/config"
	"github.com/evcraddock/canvasser/internal/db"
	"github.com/evcraddock/canvasser/internal/geocode"
	"github.com/evcraddock/canvasser/internal/logging"
	"github.com/evcraddock/canvasser/internal/property"
	"github.com/evcraddock/canvasser/internal/store"
	"github.com/evcraddock/canvasser/internal/web"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP API. Settings come from the environment, .env.local and .env; see CV_* variables.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = 0
			}
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on (overrides CV_PORT)")

	return cmd
}

func runServe(port int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Port = port
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}

	logCloser := logging.Setup(cfg.DevMode, cfg.LogFile)
	defer func() {
		if cerr := logCloser.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "warning: closing log file: %v\n", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []canvass.Option{
		canvass.WithMinDisplacement(cfg.MinDisplacement),
		canvass.WithLocation(cfg.Location),
		canvass.WithTransitionPolicy(transitionPolicy(cfg.Transitions)),
		canvass.WithGeocodeRetry(cfg.GeocodeRetry...),
	}
	if gc := geocode.NewGoogleClient(cfg.GoogleAPIKey); gc != nil {
		opts = append(opts, canvass.WithGeocoder(gc))
	} else {
		slog.Info("GOOGLE_MAPS_API_KEY not set, addresses fall back to coordinates")
	}

	svc := canvass.New(st, opts...)
	if err := svc.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			slog.Error("saving final state", "error", err)
		}
	}()

	return web.NewServer(svc).ListenAndServe(ctx, cfg.Port)
}

// transitionPolicy maps a CV_TRANSITIONS value to a policy.
func transitionPolicy(name string) property.TransitionPolicy {
	if name == config.TransitionsLocked {
		return property.LockedTerminal()
	}
	return property.Permissive{}
}

// openStore opens the configured snapshot backend. The returned func
// releases it.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.Store {
	case config.StoreRedis:
		rs := store.NewRedisStore(store.OpenRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB), store.DefaultKey)
		if err := rs.Ping(ctx); err != nil {
			return nil, nil, err
		}
		slog.Info("using redis store", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return rs, func() {
			if err := rs.Close(); err != nil {
				slog.Warn("closing redis", "error", err)
			}
		}, nil
	default:
		database, err := openDB(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return store.NewSQLiteStore(database, store.DefaultKey), func() { closeDB(database) }, nil
	}
}

// openDB opens the SQLite database at path, or at the default path when
// path is empty.
func openDB(path string) (*sql.DB, error) {
	if path == "" {
		var err error
		path, err = db.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	slog.Info("using sqlite store", "path", path)
	return db.Open(path)
}

// closeDB closes the database, logging any error.
func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		slog.Warn("closing database", "error", err)
	}
}
