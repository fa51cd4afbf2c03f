package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/arentkievits/odemis/internal/api"
	"github.com/arentkievits/odemis/internal/bridges/actuator"
	"github.com/arentkievits/odemis/internal/hardware"
	"github.com/arentkievits/odemis/internal/infrastructure/config"
	"github.com/arentkievits/odemis/internal/infrastructure/database"
	"github.com/arentkievits/odemis/internal/infrastructure/influxdb"
	"github.com/arentkievits/odemis/internal/infrastructure/logging"
	"github.com/arentkievits/odemis/internal/infrastructure/mqtt"
	"github.com/arentkievits/odemis/internal/opticalpath"
)

// daemon holds the wired components of a running pathd.
type daemon struct {
	cfg *config.Config
	log *logging.Logger

	db        *database.DB
	repo      *opticalpath.SQLiteRepository
	mqtt      *mqtt.Client
	bridge    *actuator.Bridge
	influx    *influxdb.Client
	inventory *hardware.Inventory
	hub       *api.Hub
	manager   *opticalpath.Manager
	server    *api.Server

	// closers run in reverse order on shutdown.
	closers []func()
}

// newDaemon connects the infrastructure and builds the manager and the API
// server. Everything opened so far is closed again if a step fails.
func newDaemon(ctx context.Context, cfg *config.Config, log *logging.Logger) (*daemon, error) {
	d := &daemon{cfg: cfg, log: log}
	if err := d.start(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// start runs the wiring steps in order. On failure the closers registered
// so far run before the error is returned.
func (d *daemon) start(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	steps := []func() error{
		func() error { return d.openStorage(ctx) },
		d.connectMQTT,
		d.loadHardware,
		d.connectInfluxDB,
		func() error { return d.buildManager(ctx) },
		d.buildServer,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (d *daemon) onClose(name string, fn func() error) {
	d.closers = append(d.closers, func() {
		d.log.Info("closing " + name)
		if err := fn(); err != nil {
			d.log.Error("error closing "+name, "error", err)
		}
	})
}

func (d *daemon) openStorage(ctx context.Context) error {
	db, err := openDatabase(d.cfg)
	if err != nil {
		return err
	}
	d.db = db
	d.onClose("database", db.Close)
	d.log.Info("database connected", "path", d.cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	d.log.Info("database migrations complete")

	d.repo = opticalpath.NewSQLiteRepository(db.DB)
	return nil
}

func (d *daemon) connectMQTT() error {
	if !d.cfg.MQTT.Enabled {
		d.log.Info("MQTT disabled")
		return nil
	}

	client, err := mqtt.Connect(d.cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	d.mqtt = client
	d.onClose("MQTT", client.Close)

	client.SetLogger(d.log.Component("mqtt"))
	client.SetOnConnect(func() { d.log.Info("MQTT reconnected") })
	client.SetOnDisconnect(func(err error) { d.log.Warn("MQTT disconnected", "error", err) })
	d.log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", d.cfg.MQTT.Broker.Host, d.cfg.MQTT.Broker.Port),
		"client_id", d.cfg.MQTT.Broker.ClientID,
	)
	return nil
}

// loadHardware builds the inventory. With MQTT enabled, actuators whose
// backend is "mqtt" are driven through the actuator bridge.
func (d *daemon) loadHardware() error {
	opts := hardware.InventoryOptions{
		Latency:        d.cfg.Hardware.Latency,
		DefaultBackend: d.cfg.Hardware.Backend,
	}

	if d.mqtt != nil {
		bridge, err := actuator.NewBridge(actuator.Options{
			MQTT:           d.mqtt,
			CommandTimeout: d.cfg.Hardware.CommandTimeout,
			Logger:         d.log.Component("actuator-bridge"),
		})
		if err != nil {
			return fmt.Errorf("creating actuator bridge: %w", err)
		}
		d.bridge = bridge
		opts.Remote = bridge.NewActuator
	}

	inv, err := hardware.LoadInventory(d.cfg.Hardware.File, opts)
	if err != nil {
		return fmt.Errorf("loading inventory: %w", err)
	}
	d.inventory = inv
	d.log.Info("hardware inventory loaded",
		"file", d.cfg.Hardware.File,
		"microscope", inv.Role(),
		"components", len(inv.Components()),
	)

	if d.bridge != nil {
		if err := d.bridge.Start(); err != nil {
			return fmt.Errorf("starting actuator bridge: %w", err)
		}
		d.onClose("actuator bridge", func() error {
			d.bridge.Stop()
			return nil
		})
	}
	return nil
}

func (d *daemon) connectInfluxDB() error {
	if !d.cfg.InfluxDB.Enabled {
		d.log.Info("InfluxDB disabled")
		return nil
	}

	client, err := influxdb.Connect(d.cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	d.influx = client
	d.onClose("InfluxDB", client.Close)

	client.SetOnError(func(err error) {
		d.log.Error("InfluxDB write error", "error", err)
	})
	d.log.Info("InfluxDB connected",
		"url", d.cfg.InfluxDB.URL,
		"org", d.cfg.InfluxDB.Org,
		"bucket", d.cfg.InfluxDB.Bucket,
	)
	return nil
}

func (d *daemon) buildManager(ctx context.Context) error {
	table, err := loadModeTable(d.cfg)
	if err != nil {
		return err
	}

	initial := ""
	last, err := d.repo.LatestTransition(ctx)
	switch {
	case err == nil:
		initial = last.ToMode
		d.log.Info("last recorded mode", "mode", last.ToMode, "status", last.Status)
	case !errors.Is(err, opticalpath.ErrTransitionNotFound):
		return fmt.Errorf("reading last transition: %w", err)
	}

	d.hub = api.NewHub(d.cfg.WebSocket, d.log.Component("websocket"))

	topics := mqtt.Topics{}
	opts := opticalpath.Options{
		Microscope:      newMicroscope(d.inventory, d.cfg.Microscope.Role),
		Registry:        d.inventory,
		Table:           table,
		InitialMode:     initial,
		Store:           d.repo,
		Hub:             d.hub,
		Logger:          d.log.Component("opticalpath"),
		ModeTopic:       topics.PathMode(),
		TransitionTopic: topics.PathTransition(),
	}
	if d.mqtt != nil {
		opts.MQTT = d.mqtt
	}
	if d.influx != nil {
		opts.Telemetry = d.influx
	}

	mgr, err := opticalpath.NewManager(opts)
	if err != nil {
		return fmt.Errorf("creating optical path manager: %w", err)
	}
	d.manager = mgr
	return nil
}

func (d *daemon) buildServer() error {
	checks := map[string]api.HealthChecker{"database": d.db}
	if d.mqtt != nil {
		checks["mqtt"] = d.mqtt
	}
	if d.influx != nil {
		checks["influxdb"] = d.influx
	}

	srv, err := api.New(api.Deps{
		Config:      d.cfg.API,
		WS:          d.cfg.WebSocket,
		Security:    d.cfg.Security,
		Logger:      d.log.Component("api"),
		Path:        d.manager,
		Transitions: d.repo,
		Components:  d.inventory,
		Hub:         d.hub,
		Checks:      checks,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	d.server = srv
	return nil
}

// run serves the API until ctx is done.
func (d *daemon) run(ctx context.Context) error {
	if err := d.server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	d.onClose("API server", d.server.Close)

	d.log.Info("initialisation complete, waiting for shutdown signal",
		"microscope", d.manager.MicroscopeRole(),
		"mode", d.manager.CurrentMode(),
	)
	<-ctx.Done()

	d.log.Info("shutdown signal received, cleaning up")
	return nil
}

// close releases everything in reverse order of creation.
func (d *daemon) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
	d.log.Info("optical path daemon stopped")
}
