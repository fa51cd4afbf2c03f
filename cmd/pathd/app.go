package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	_ "github.com/arentkievits/odemis/migrations"

	"github.com/arentkievits/odemis/internal/api"
	"github.com/arentkievits/odemis/internal/hardware"
	"github.com/arentkievits/odemis/internal/infrastructure/config"
	"github.com/arentkievits/odemis/internal/infrastructure/database"
	"github.com/arentkievits/odemis/internal/infrastructure/logging"
	"github.com/arentkievits/odemis/internal/opticalpath"
)

const defaultTokenTTL = 24 * time.Hour

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "pathd",
		Usage:   "optical path manager for SPARC microscopes",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the configuration file",
				Value:   defaultConfigPath,
				Sources: cli.EnvVars("ODEMIS_CONFIG"),
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the daemon until interrupted",
				Action: serveAction,
			},
			{
				Name:   "modes",
				Usage:  "print the settable and guessable modes of the configured microscope",
				Action: modesAction,
			},
			{
				Name:  "migrate",
				Usage: "apply pending database migrations and exit",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "down", Usage: "roll back the most recent migration instead"},
				},
				Action: migrateAction,
			},
			{
				Name:  "token",
				Usage: "issue an API token signed with the configured secret",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Value: "operator", Usage: "token subject"},
					&cli.DurationFlag{Name: "ttl", Value: defaultTokenTTL, Usage: "token lifetime"},
				},
				Action: tokenAction,
			},
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(_ context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintf(cmd.Root().Writer, "pathd %s (commit %s, built %s)\n", version, commit, date)
					return err
				},
			},
		},
	}
}

// loadConfig reads the configuration named by --config and builds the
// logger it describes.
func loadConfig(cmd *cli.Command) (*config.Config, *logging.Logger, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, logging.New(cfg.Logging, version), nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log.Info("starting optical path daemon",
		"version", version,
		"commit", commit,
		"build_date", date,
		"config", cmd.String("config"),
	)

	d, err := newDaemon(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close()

	return d.run(ctx)
}

// modesAction lists the modes without touching the hardware: remote
// actuators are stood in for by simulated ones with the same axes.
func modesAction(_ context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	inv, err := hardware.LoadInventory(cfg.Hardware.File, hardware.InventoryOptions{
		DefaultBackend: cfg.Hardware.Backend,
		Remote: func(role string, kind hardware.Kind, axes []hardware.Axis) (hardware.Actuator, error) {
			return hardware.NewSimulated(role, kind, axes, nil), nil
		},
	})
	if err != nil {
		return fmt.Errorf("loading inventory: %w", err)
	}

	table, err := loadModeTable(cfg)
	if err != nil {
		return err
	}
	mgr, err := opticalpath.NewManager(opticalpath.Options{
		Microscope: newMicroscope(inv, cfg.Microscope.Role),
		Registry:   inv,
		Table:      table,
		Logger:     log.Component("opticalpath"),
	})
	if err != nil {
		return fmt.Errorf("building mode tables: %w", err)
	}

	return printModes(cmd.Root().Writer, mgr)
}

func printModes(w io.Writer, mgr *opticalpath.Manager) error {
	fmt.Fprintf(w, "microscope: %s\n\n", mgr.MicroscopeRole())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0) //nolint:mnd // column padding
	fmt.Fprintln(tw, "MODE\tDETECTOR\tGUESSABLE\tALIGNMENT")
	for _, m := range mgr.Modes() {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\n", m.Name, m.Detector, mgr.IsGuessable(m.Name), opticalpath.IsAlignMode(m.Name))
	}
	return tw.Flush()
}

func migrateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("down") {
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
	} else if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	log.Info("database migrations complete",
		"path", cfg.Database.Path,
		"applied", len(applied),
		"pending", len(pending),
	)
	fmt.Fprintf(cmd.Root().Writer, "applied: %d, pending: %d\n", len(applied), len(pending))
	return nil
}

func tokenAction(_ context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	token, err := api.IssueToken(cfg.Security, cmd.String("subject"), cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.Root().Writer, token)
	return err
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

func loadModeTable(cfg *config.Config) (opticalpath.Table, error) {
	if cfg.Microscope.ModesFile == "" {
		return nil, nil
	}
	table, err := opticalpath.LoadTable(cfg.Microscope.ModesFile)
	if err != nil {
		return nil, fmt.Errorf("loading mode table: %w", err)
	}
	return table, nil
}

// microscope overrides the role declared by the hardware file.
type microscope struct {
	*hardware.Inventory
	role string
}

func (m microscope) Role() string { return m.role }

func newMicroscope(inv *hardware.Inventory, role string) opticalpath.Microscope {
	if role == "" {
		return inv
	}
	return microscope{Inventory: inv, role: role}
}
