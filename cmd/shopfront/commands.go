package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"shopfront/internal/config"
	"shopfront/internal/http/handlers"
	applog "shopfront/internal/log"
	"shopfront/internal/media"
	"shopfront/internal/repos"
	"shopfront/internal/services"
)

// env bundles what every command needs: config, log sink and database.
type env struct {
	cfg    config.Config
	db     *sqlx.DB
	logOut io.Closer
}

func open() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	closer, err := applog.Setup(cfg.LogFile)
	if err != nil {
		log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
	}
	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		closer.Close()
		return nil, err
	}
	return &env{cfg: cfg, db: db, logOut: closer}, nil
}

func (e *env) Close() {
	e.db.Close()
	e.logOut.Close()
}

func (e *env) deps(ctx context.Context) (*handlers.Deps, error) {
	store, err := media.New(ctx, e.cfg)
	if err != nil {
		return nil, err
	}
	return handlers.NewDeps(e.db, e.cfg, store), nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := open()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, err := e.deps(ctx)
		if err != nil {
			return err
		}
		app := handlers.NewApp(d, handlers.AppOptions{AccessLog: true})

		errc := make(chan error, 1)
		go func() { errc <- app.Listen(":" + e.cfg.Port) }()
		applog.Info(nil, "server.start", map[string]any{"port": e.cfg.Port, "db_driver": e.cfg.DBDriver})

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		applog.Info(nil, "server.stop", nil)
		return app.ShutdownWithContext(shutdown)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := open()
		if err != nil {
			return err
		}
		defer e.Close()
		if err := repos.EnsureSchema(e.db); err != nil {
			return err
		}
		applog.Info(nil, "db.migrate", map[string]any{"driver": e.cfg.DBDriver})
		return nil
	},
}

var seedOpts services.SeedOptions

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the demo catalog and a staff account",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := open()
		if err != nil {
			return err
		}
		defer e.Close()
		d, err := e.deps(cmd.Context())
		if err != nil {
			return err
		}
		return services.Seed(cmd.Context(), d.Catalog, d.Accounts, seedOpts)
	},
}

var staff struct {
	username, email, password string
}

var createStaffCmd = &cobra.Command{
	Use:   "createstaff",
	Short: "Create a staff account for the admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := open()
		if err != nil {
			return err
		}
		defer e.Close()
		d, err := e.deps(cmd.Context())
		if err != nil {
			return err
		}
		u, err := d.Accounts.Register(cmd.Context(), staff.username, staff.email, staff.password, true)
		if err != nil {
			return err
		}
		applog.Audit(nil, "users.create", map[string]any{"target_user_id": u.ID, "is_staff": true})
		fmt.Fprintf(cmd.OutOrStdout(), "created staff user %s (%s)\n", u.Username, u.ID)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedOpts.StaffUser, "staff-user", "admin", "demo staff username (empty to skip)")
	seedCmd.Flags().StringVar(&seedOpts.StaffEmail, "staff-email", "admin@example.com", "demo staff email")
	seedCmd.Flags().StringVar(&seedOpts.StaffPassword, "staff-password", "Admin#2025", "demo staff password")

	createStaffCmd.Flags().StringVar(&staff.username, "username", "", "username")
	createStaffCmd.Flags().StringVar(&staff.email, "email", "", "email")
	createStaffCmd.Flags().StringVar(&staff.password, "password", "", "password")
	_ = createStaffCmd.MarkFlagRequired("username")
	_ = createStaffCmd.MarkFlagRequired("password")
}
