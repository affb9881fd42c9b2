package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/keldara/vaultcraft/internal/config"
	"github.com/keldara/vaultcraft/internal/logging"
	"github.com/keldara/vaultcraft/internal/platform"
	"github.com/keldara/vaultcraft/internal/server"
)

var (
	buildVersion string
	buildCommit  string
)

// daemonEnv carries the vaultd-specific settings that internal/config's
// shared Config doesn't own: where to listen and which storage backend
// to run against.
type daemonEnv struct {
	ListenAddr     string `env:"VAULTD_LISTEN_ADDR" envDefault:":8443"`
	StorageBackend string `env:"VAULTD_STORAGE_BACKEND" envDefault:"file"`
	DataDir        string `env:"VAULTD_DATA_DIR" envDefault:"./vaultd-data"`
	MongoURI       string `env:"VAULTD_MONGO_URI"`
	MongoDB        string `env:"VAULTD_MONGO_DB" envDefault:"vaultcraft"`
	JWTIssuer      string `env:"VAULTD_JWT_ISSUER" envDefault:"vaultcraft"`
	TokenTTLMin    int    `env:"VAULTD_TOKEN_TTL_MINUTES" envDefault:"15"`
	ConfigPath     string `env:"VAULTD_CONFIG_PATH"`
}

func main() {
	printBuildInfo()

	log := logging.New("vaultd", os.Stdout)

	if err := platform.DisableCoreDumps(); err != nil {
		log.Warn().Err(err).Msg("could not disable core dumps")
	}

	var de daemonEnv
	if err := env.Parse(&de); err != nil {
		log.Fatal().Err(err).Msg("parsing vaultd environment")
	}

	shared, err := config.Load(de.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading shared configuration")
	}
	log.Debug().Any("config", shared).Msg("loaded shared configuration")

	cfg := server.Config{
		Shared:         shared,
		ListenAddr:     de.ListenAddr,
		StorageBackend: de.StorageBackend,
		DataDir:        de.DataDir,
		MongoURI:       de.MongoURI,
		MongoDB:        de.MongoDB,
		JWTIssuer:      de.JWTIssuer,
		TokenTTL:       time.Duration(de.TokenTTLMin) * time.Minute,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("constructing server")
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Str("backend", cfg.StorageBackend).Msg("vaultd listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("vaultd exited")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}
	fmt.Printf("vaultd build version: %s commit: %s\n", buildVersion, buildCommit)
}
