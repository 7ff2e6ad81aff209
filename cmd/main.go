package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aiseg-dashboard/internal/aiseg"
	"aiseg-dashboard/internal/cache"
	"aiseg-dashboard/internal/handlers"
	"aiseg-dashboard/internal/hub"
	"aiseg-dashboard/internal/logger"
	"aiseg-dashboard/internal/models"
	"aiseg-dashboard/internal/nickname"
	"aiseg-dashboard/internal/repository"
	"aiseg-dashboard/internal/repository/db"
	"aiseg-dashboard/internal/server"
	"aiseg-dashboard/internal/service"

	"github.com/spf13/viper"
)

func main() {
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log_level"))

	// open DB for the event log
	sqlDB, err := db.InitDB(viper.GetString("db.path"))
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	nicks, err := nickname.Load(viper.GetString("nicknames.path"))
	if err != nil {
		log.Fatalw("failed to load nickname file", "err", err)
	}

	// context owning every background goroutine (pollers, settle refreshes)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	client := aiseg.NewClient(aiseg.NewTransport(
		viper.GetString("aiseg.host"),
		viper.GetString("aiseg.username"),
		viper.GetString("aiseg.password"),
		viper.GetDuration("aiseg.timeout"),
	), log)

	store := cache.NewStore()
	ttl := service.TTLConfig{
		Realtime: viper.GetDuration("cache.realtime_ttl"),
		Totals:   viper.GetDuration("cache.totals_ttl"),
		Devices:  viper.GetDuration("cache.devices_ttl"),
		Circuits: viper.GetDuration("cache.circuits_ttl"),
	}

	dash := service.NewDashboardService(client, store, nicks, repos.Events, ttl, defaultNames(), log)
	ctrl := service.NewControlService(ctx, client, dash, repos.Events, viper.GetDuration("control.settle_delay"), log)
	services := &service.Service{
		Dashboard: dash,
		Control:   ctrl,
		EventLog:  service.NewEventLogService(repos.Events),
	}

	pushHub := hub.New(ctx, dash, store, hub.Intervals{
		Realtime: ttl.Realtime,
		Totals:   ttl.Totals,
		Devices:  ttl.Devices,
	}, log)
	ctrl.Broadcaster = pushHub

	markStartup(ctx, repos, log)

	apiHandler := handlers.NewHandler(services, pushHub, log)

	// start HTTP server
	srv := &server.Server{}
	go func() {
		if err := srv.Run(viper.GetString("port"), apiHandler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
	log.Infow("dashboard up", "port", viper.GetString("port"), "appliance", viper.GetString("aiseg.host"))

	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")

	viper.SetDefault("port", "8080")
	viper.SetDefault("log_level", logger.InfoLevel)
	viper.SetDefault("db.path", "dashboard.db")
	viper.SetDefault("nicknames.path", "nicknames.json")
	viper.SetDefault("aiseg.timeout", 20*time.Second)
	viper.SetDefault("cache.realtime_ttl", 5*time.Second)
	viper.SetDefault("cache.totals_ttl", 60*time.Second)
	viper.SetDefault("cache.devices_ttl", 10*time.Second)
	viper.SetDefault("cache.circuits_ttl", 300*time.Second)
	viper.SetDefault("control.settle_delay", 3*time.Second)

	return viper.ReadInConfig()
}

// defaultNames maps device keys to their topology default names for the
// nickname overlay.
func defaultNames() map[string]string {
	out := map[string]string{}
	for _, d := range aiseg.Topology() {
		out[d.Key()] = d.DefaultName
	}
	return out
}

func markStartup(ctx context.Context, repos *repository.Repository, log *logger.Logger) {
	ectx, ecancel := context.WithTimeout(ctx, 2*time.Second)
	defer ecancel()
	if err := repos.Events.Append(ectx, models.Event{
		Type:        models.EventStartup,
		Description: "dashboard started",
	}); err != nil {
		log.Infow("startup event append failed", "err", err)
	}
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop pollers and pending settle refreshes
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
