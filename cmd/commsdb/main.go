package main

import (
	"context"

	"github.com/joho/godotenv"

	"commsdb/internal/app"
	"commsdb/pkg/config"
	"commsdb/pkg/logger"
	"commsdb/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	eff, err := config.LoadEffective(cfgPath)
	if err != nil {
		logger.InitWithLevel("")
		shutdown.Abort("failed to load config", err, "")
	}

	// flags win over config/env when provided by the user
	if setFlags["addr"] {
		eff.Addr = addrVal
		eff.Source = "flags"
	}
	if setFlags["db"] {
		eff.DBPath = dbVal
		eff.Source = "flags"
	}

	logger.InitWithLevel(eff.Config.Logging.Level)

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err, eff.DBPath)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server exited", err, eff.DBPath)
	}
	logger.Info("server_stopped")
}
