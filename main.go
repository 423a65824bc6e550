package main

import (
	"context"
	"errors"
	stdexpvar "expvar"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/expvar"
	"github.com/gin-gonic/gin"
	"github.com/johbar/tesseract-purego/internal/cache"
	tesnats "github.com/johbar/tesseract-purego/internal/cache/nats"
	"github.com/johbar/tesseract-purego/internal/config"
	"github.com/johbar/tesseract-purego/internal/extractor"
	"github.com/johbar/tesseract-purego/pkg/mmappool"
	"github.com/johbar/tesseract-purego/pkg/tesspool"
	"github.com/johbar/tesseract-purego/pkg/tesswrap"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	sloggin "github.com/samber/slog-gin"
)

// images up to this size are copied into pooled off-heap buffers
const bufferElemSize = 16 << 20

var logger *slog.Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}))

func main() {
	tesConfig, err := config.NewTesConfigFromEnv()
	if err != nil {
		logger.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	// one shot mode: don't start a server, just process a single image provided on the command line
	oneShot := len(os.Args) > 1
	out := os.Stdout
	if oneShot {
		out = os.Stderr
	}
	logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: tesConfig.LogLevel, AddSource: tesConfig.Debug}))

	backend, err := tesswrap.LoadLibrary(tesConfig.TesseractLibPath)
	if err != nil {
		logger.Error("Could not load libtesseract", "err", err)
		os.Exit(1)
	}
	version, _ := tesswrap.Version(backend)
	logger.Info("libtesseract loaded", "version", version, "path", tesswrap.LibraryPath(backend))

	buffers := mmappool.New(bufferElemSize, tesConfig.PoolSize, logger)
	psm := tesswrap.PageSegMode(tesConfig.PageSegMode)
	ctx := context.Background()
	pool, err := tesspool.New(ctx, tesspool.Config{
		Backend:       backend,
		Datapath:      tesConfig.TessdataPath,
		Languages:     tesConfig.TesseractLangs,
		Variables:     tesConfig.TesseractVariables,
		PageSegMode:   &psm,
		Size:          tesConfig.PoolSize,
		MaxImageBytes: int(min(tesConfig.MaxImageSizeBytes, 1<<31-1)),
		BufferPool:    buffers,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("Could not initialize Tesseract", "err", err, "languages", tesConfig.TesseractLangs)
		os.Exit(1)
	}

	if oneShot {
		extract := extractor.New(tesConfig, pool, backend, nil, logger)
		err := extract.PrintText(os.Args[1], os.Stdout)
		extract.Close()
		pool.Close(ctx)
		buffers.Free()
		if err != nil {
			os.Exit(2)
		}
		return
	}

	nc := connectNats(*tesConfig)
	var tesCache cache.Cache = &cache.NopCache{}
	if nc != nil {
		objCache, err := cache.New(*tesConfig, logger, nc)
		switch {
		case err == nil:
			tesCache = objCache
		case tesConfig.FailWithoutJetstream:
			logger.Error("FATAL: NATS object store unavailable", "err", err)
			os.Exit(1)
		default:
			logger.Warn("Results will not be cached", "err", err)
		}
	}

	extract := extractor.New(tesConfig, pool, backend, tesCache, logger)
	extract.LogConfig()
	stdexpvar.Publish("tesseractPool", stdexpvar.Func(func() any { return pool.Stats() }))
	var ocrService micro.Service
	if nc != nil {
		if ocrService, err = extract.RegisterNatsService(nc); err != nil {
			logger.Error("Could not register NATS micro service", "err", err)
			os.Exit(1)
		}
		logger.Info("NATS micro service registered", "name", "ocr")
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if tesConfig.NoHttp {
		if nc == nil {
			logger.Error("Fatal: NATS not connected and HTTP disabled.")
			os.Exit(1)
		}
		logger.Info("Service started with no HTTP endpoints. Waiting for interrupt.")
		<-sigCtx.Done()
	} else {
		serveHttp(sigCtx, tesConfig, extract)
	}

	if ocrService != nil {
		// no new requests; the ones running still reply on the open connection
		if err := ocrService.Stop(); err != nil {
			logger.Warn("Stopping NATS micro service failed", "err", err)
		}
	}
	extract.Close()
	if nc != nil {
		if err := tesnats.Drain(nc, 10*time.Second); err != nil {
			logger.Warn("Draining NATS connection failed", "err", err)
		}
	}
	pool.Close(ctx)
	if errs := buffers.Free(); len(errs) > 0 {
		logger.Warn("Unmapping buffers failed", "err", errors.Join(errs...))
	}
}

func connectNats(tesConfig config.TesConfig) *nats.Conn {
	var nc *nats.Conn
	var err error
	switch {
	case tesConfig.NatsUrl != "":
		nc, err = tesnats.SetupNatsConnection(tesConfig, logger)
	case tesnats.NatsEmbedded:
		nc, err = tesnats.ConnectToEmbeddedNatsServer(tesConfig, logger)
	default:
		return nil
	}
	if err != nil {
		if tesConfig.FailWithoutJetstream {
			logger.Error("FATAL: NATS unavailable", "err", err)
			os.Exit(1)
		}
		logger.Error("NATS unavailable. Continuing without cache and NATS interface", "err", err)
		return nil
	}
	return nc
}

func serveHttp(ctx context.Context, tesConfig *config.TesConfig, extract *extractor.Extractor) {
	if !tesConfig.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(sloggin.New(logger), gin.Recovery())
	extract.Register(router)
	router.GET("/debug/vars", expvar.Handler())

	srv := &http.Server{Addr: tesConfig.SrvAddr, Handler: router}
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tesConfig.OcrTimeout+5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown failed", "err", err)
		}
	}()
	logger.Info("Service started", "address", srv.Addr)
	defer logger.Info("HTTP Server stopped.")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		// Error starting or closing listener:
		logger.Error("Webserver failed", "err", err)
		return
	}
	// wait for running requests
	<-idle
}
