// Package app wires configuration, logging, the world and its transports into
// a running server process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"skirmish/internal/config"
	"skirmish/internal/httpapi"
	"skirmish/internal/net/udp"
	"skirmish/internal/server"
	"skirmish/internal/telemetry"
	"skirmish/internal/world"
	"skirmish/logging"
	loggingsinks "skirmish/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

// Addrs are the bound listener addresses, useful when configured with port 0.
type Addrs struct {
	TCP  string
	UDP  string
	HTTP string
}

type Options struct {
	Logger telemetry.Logger
	// Ready is called once every listener is bound.
	Ready func(Addrs)
	// Sinks replaces the configured logging sinks when non-nil.
	Sinks []logging.NamedSink
}

// Run serves until ctx is cancelled or a listener fails.
func Run(ctx context.Context, cfg config.Config, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	namedSinks := opts.Sinks
	if namedSinks == nil {
		built, err := buildSinks(ctx, cfg.Logging, logger)
		if err != nil {
			return err
		}
		namedSinks = built
	}
	router, err := logging.NewRouter(logging.SystemClock{}, cfg.Logging, namedSinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	counters := &telemetry.Counters{}
	w := world.New(cfg.World, world.Deps{Publisher: router})

	udpListener, err := udp.Listen(cfg.UDPAddr, udp.ListenerConfig{Logger: logger, Publisher: router, Counters: counters})
	if err != nil {
		return err
	}
	defer udpListener.Close()

	tcpListener, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", cfg.TCPAddr, err)
	}
	defer tcpListener.Close()

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", cfg.HTTPAddr, err)
	}

	srv := server.New(w, server.Config{
		MaxFrame:     cfg.MaxFrame,
		QueueSize:    cfg.QueueSize,
		WriteTimeout: cfg.WriteTimeout,
		Logger:       logger,
		Publisher:    router,
		Counters:     counters,
	})
	loop := server.NewLoop(w, udpListener, server.LoopConfig{Period: cfg.TickPeriod, Logger: logger}, server.LoopHooks{})
	httpServer := &http.Server{
		Handler: httpapi.NewHandler(w, srv, httpapi.HandlerConfig{
			Logger:      logger,
			Origin:      cfg.CORSOrigin,
			TickPeriod:  cfg.TickPeriod,
			Events:      router.Stats,
			EnablePprof: cfg.EnablePprof,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 3)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(runCtx)
	}()
	go func() { errs <- srv.ServeTCP(runCtx, tcpListener) }()
	go func() { errs <- srv.ServeUDP(runCtx, udpListener) }()
	go func() {
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	addrs := Addrs{
		TCP:  tcpListener.Addr().String(),
		UDP:  udpListener.LocalAddr().String(),
		HTTP: httpListener.Addr().String(),
	}
	logger.Printf("server listening tcp=%s udp=%s http=%s", addrs.TCP, addrs.UDP, addrs.HTTP)
	if opts.Ready != nil {
		opts.Ready(addrs)
	}

	var runErr error
	select {
	case <-runCtx.Done():
	case err := <-errs:
		runErr = err
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}
	srv.Close()
	<-loopDone
	logger.Printf("server stopped after tick %d", w.Diagnostics().Tick)
	return runErr
}

func buildSinks(ctx context.Context, cfg logging.Config, logger telemetry.Logger) ([]logging.NamedSink, error) {
	var named []logging.NamedSink
	if cfg.HasSink(logging.SinkConsole) {
		named = append(named, logging.NamedSink{Name: logging.SinkConsole, Sink: loggingsinks.NewConsoleSink(os.Stdout)})
	}
	if cfg.HasSink(logging.SinkJSON) {
		path := cfg.JSON.FilePath
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create event log directory: %w", err)
			}
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open event log: %w", err)
		}
		named = append(named, logging.NamedSink{Name: logging.SinkJSON, Sink: loggingsinks.NewJSON(file, cfg.JSON.FlushInterval)})
	}
	if cfg.HasSink(logging.SinkRedis) {
		sink, err := loggingsinks.DialRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Printf("redis sink disabled: %v", err)
		} else {
			named = append(named, logging.NamedSink{Name: logging.SinkRedis, Sink: sink})
		}
	}
	return named, nil
}
