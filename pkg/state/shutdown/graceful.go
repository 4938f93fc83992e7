package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/valyala/fasthttp"

	"slunch/pkg/schedule"
	"slunch/pkg/state"
	"slunch/pkg/state/logger"
	"slunch/pkg/store"
	"slunch/pkg/telemetry"
)

// Components is everything ShutdownApp tears down. Nil fields are skipped.
type Components struct {
	Server     *fasthttp.Server
	JobsCancel context.CancelFunc
	Jobs       *schedule.Scheduler
	// Closers run after the jobs have stopped, in order.
	Closers []func()
	Journal *state.FailedOpWriter
	Tracer  *telemetry.Tracer
	Store   *store.Store
}

// ShutdownApp stops the server first so no new work arrives, then waits for
// running jobs, then flushes and closes storage.
func ShutdownApp(ctx context.Context, c Components) error {
	logger.Info("shutdown: requested")

	if c.Server != nil {
		logger.Info("shutdown: stopping http server")
		if err := c.Server.Shutdown(); err != nil {
			logger.Error("shutdown: http shutdown error", "error", err)
		}
	}

	if c.JobsCancel != nil {
		logger.Info("shutdown: stopping scheduled jobs")
		c.JobsCancel()
	}
	if c.Jobs != nil {
		done := make(chan struct{})
		go func() {
			c.Jobs.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Warn("shutdown: jobs still running at deadline")
		}
	}

	for _, fn := range c.Closers {
		fn()
	}

	if c.Journal != nil {
		if err := c.Journal.Close(); err != nil {
			logger.Error("shutdown: journal close error", "error", err)
		}
	}

	if c.Tracer != nil {
		logger.Info("shutdown: closing telemetry")
		c.Tracer.Close()
	}

	if c.Store != nil {
		logger.Info("shutdown: syncing store to disc")
		if err := c.Store.Flush(); err != nil {
			logger.Error("shutdown: store force sync error", "error", err)
		}
		logger.Info("shutdown: closing store")
		if err := c.Store.Close(); err != nil {
			logger.Error("shutdown: store close error", "error", err)
		}
	}

	logger.Info("shutdown: complete")
	logger.Sync()
	return ctx.Err()
}

// Abort reports a fatal startup error and exits.
func Abort(msg string, err error, dbPath string) {
	logger.Error("startup_aborted", "msg", msg, "error", err, "db_path", dbPath)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	logger.Sync()
	os.Exit(1)
}

// SetupSignalHandler installs handlers for SIGINT/SIGTERM and SIGPIPE and
// returns a cancellable context. The returned context is cancelled when any
// of the watched signals arrives.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigc:
			logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	// dump goroutine stacks on SIGPIPE to aid diagnostics
	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		select {
		case s := <-sigpipe:
			logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigc)
		signal.Stop(sigpipe)
		cancel()
	}
}
