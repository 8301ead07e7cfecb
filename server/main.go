package main

import (
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type config struct {
	Port     string `env:"PORT" envDefault:"4000"`
	Env      string `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Idle rooms are garbage collected after this long without activity.
	RoomTTL time.Duration `env:"ROOM_TTL" envDefault:"30m"`

	// Pacing for automated players, so spectators can follow bot turns.
	BotTurnDelay time.Duration `env:"BOT_TURN_DELAY" envDefault:"1500ms"`
	BotPickDelay time.Duration `env:"BOT_PICK_DELAY" envDefault:"1s"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse config")
	}

	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Use console writer for development (colored output)
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	log.Info().
		Str("port", cfg.Port).
		Str("log_level", level.String()).
		Msg("Starting Cacho server")

	gw := NewGateway()
	manager := NewManager(gw, cfg.BotTurnDelay, cfg.BotPickDelay)
	gw.manager = manager

	// Start cleanup goroutine
	go manager.CleanupIdleRooms(cfg.RoomTTL)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Routes
	r.Get("/ws", gw.ServeWS)

	// Liveness check
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Cacho socket server running"))
	})

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
