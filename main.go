package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/buaazp/fasthttprouter"
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/pebble"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"gopkg.in/yaml.v2"

	"playercache/cache"
	"playercache/persist"
)

type Config struct {
	ListenAddr     string        `yaml:"ListenAddr" env:"LISTEN_ADDR"`
	Backend        string        `yaml:"Backend" env:"BACKEND"` // memory, pebble, sqlite3 or postgres
	DSN            string        `yaml:"DSN" env:"DSN"`
	PebblePath     string        `yaml:"PebblePath" env:"PEBBLE_PATH"`
	PersistTimeout time.Duration `yaml:"PersistTimeout" env:"PERSIST_TIMEOUT"`
	LogLevel       string        `yaml:"LogLevel" env:"LOG_LEVEL"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:     ":8081",
		Backend:        "sqlite3",
		DSN:            "players.db",
		PebblePath:     "players.pebble",
		PersistTimeout: cache.DefaultPersistTimeout,
		LogLevel:       "info",
	}
}

// loadConfig reads the YAML file at path over the defaults, then applies
// PLAYERCACHE_* environment overrides. A missing file is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	yd, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		err = yaml.Unmarshal(yd, &cfg)
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	err = env.ParseWithOptions(&cfg, env.Options{Prefix: "PLAYERCACHE_"})
	if err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	ll := &slog.LevelVar{}
	err := ll.UnmarshalText([]byte(strings.ToUpper(level)))
	if err != nil {
		ll.Set(slog.LevelInfo)
	}
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

func openBackend(cfg Config) (persist.Backend, error) {
	switch cfg.Backend {
	case "memory":
		return persist.NewMemBackend(), nil
	case "pebble":
		return persist.NewPebbleBackend(cfg.PebblePath, &pebble.Options{}), nil
	}
	b, err := persist.NewSQLBackend(cfg.Backend, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func main() {
	configPath := flag.String("config", "config.yml", "path to the YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := Start(ctx, *configPath)
	if err != nil {
		slog.Error("player cache failed", "error", err)
		os.Exit(1)
	}
}

var (
	players *cache.Manager
	backend persist.Backend
)

func newRouter() *fasthttprouter.Router {
	router := fasthttprouter.New()
	router.GET("/players/:id", GetPlayerHandler)
	router.PUT("/players/:id", LogoutHandler)
	router.POST("/players/:id/login", LoginHandler)
	router.POST("/players/:id/persist", PersistHandler)
	router.POST("/flush", FlushHandler)
	router.GET("/stats", StatsHandler)
	router.GET("/metrics", MetricsHandler)
	router.NotFound = func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(404)
	}
	return router
}

// Start runs the cache and its admin API until ctx is done, then saves
// everything still queued before returning.
func Start(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	backend, err = openBackend(cfg)
	if err != nil {
		return err
	}
	players = cache.New(backend,
		cache.WithLogger(logger),
		cache.WithRegisterer(prometheus.DefaultRegisterer),
		cache.WithPersistTimeout(cfg.PersistTimeout))
	err = players.Start(ctx)
	if err != nil {
		return err
	}
	defer players.Shutdown()

	s := fasthttp.Server{
		Handler:               newRouter().Handler,
		ReadBufferSize:        10000,
		WriteBufferSize:       10000,
		NoDefaultServerHeader: true,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", "addr", cfg.ListenAddr, "backend", cfg.Backend)
		errc <- s.ListenAndServe(cfg.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		err = s.Shutdown()
		if err != nil {
			logger.Error("admin API shutdown", "error", err)
		}
		return nil
	case err := <-errc:
		return err
	}
}
