package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/joho/godotenv"

	"slunch/internal/app"
	"slunch/pkg/config"
	"slunch/pkg/state"
	"slunch/pkg/state/logger"
	"slunch/pkg/state/shutdown"
)

// set build metadata
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// load .env file if present
	_ = godotenv.Load(".env")

	flags := config.ParseConfigFlags()

	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		shutdown.Abort("failed to load config file", err, flags.DB)
	}

	envCfg, _ := config.ParseConfigEnvs()

	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg)
	if err != nil {
		shutdown.Abort("failed to build effective config", err, flags.DB)
	}

	if err := config.ValidateConfig(eff); err != nil {
		shutdown.Abort("invalid configuration", err, eff.DBPath)
	}

	// init database folders and ensure the filesystem layout
	if err := state.Init(eff.DBPath); err != nil {
		shutdown.Abort(fmt.Sprintf("failed to ensure state directories under %s", eff.DBPath), err, eff.DBPath)
	}

	// initialize logger after config is fully loaded
	logger.Init(eff.Config.Logging.Level, state.PathsVar.Logs)
	defer logger.Sync()

	logger.Info("effective_config_loaded", "source", eff.Source, "addr", eff.Addr, "db_path", eff.DBPath)
	logger.Info("system_logical_cores", "logical_cores", runtime.NumCPU())

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("failed to initialize app", err, eff.DBPath)
	}

	// set up context and signal handling for graceful shutdown
	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	runErr := a.Run(ctx)
	if runErr != nil {
		logger.Error("app_run_failed", "error", runErr)
	}

	// shutdown the app with a bounded timeout so teardown cannot hang forever
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer shutdownCancel()
	_ = a.Shutdown(shutdownCtx)

	if runErr != nil {
		shutdown.Abort("app run failed", runErr, eff.DBPath)
	}
}
