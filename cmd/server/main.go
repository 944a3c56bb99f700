package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"occupancy-service/internal/client"
	"occupancy-service/internal/config"
	"occupancy-service/internal/counting"
	"occupancy-service/internal/db"
	occuhttp "occupancy-service/internal/http"
	"occupancy-service/internal/profile"
	"occupancy-service/internal/repository"
	"occupancy-service/internal/service"
	"occupancy-service/internal/store"
	"occupancy-service/internal/tracker"
	"occupancy-service/internal/video"
	"occupancy-service/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ./config.yaml)")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		log = log.Level(level)
	} else {
		log.Warn().Str("level", cfg.Log.Level).Msg("unknown log level, keeping info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional event archive. Without a DSN the service runs on its
	// in-memory logs alone.
	var archive service.Archive
	var sink worker.EventSink
	if cfg.Database.DSN != "" {
		database, err := db.Connect(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		eventArchive := repository.NewEventArchive(database, log)
		go eventArchive.Run(ctx)
		archive = eventArchive
		sink = eventArchive
		log.Info().Msg("event archive enabled")
	}

	svc := service.NewOccupancyService(ctx, archive, log)

	engineCfg := counting.Config{
		Cooldown:    cfg.Counting.Cooldown,
		IdleTimeout: cfg.Counting.IdleTimeout,
	}

	for _, camCfg := range cfg.Cameras {
		camera := camCfg.ToDomain()
		events := store.NewEventStore(camera.ID, cfg.Counting.EventCapacity)
		frames := store.NewFrameBuffer()
		w := worker.New(
			camera,
			video.NewRTSPSource(camera.ID, camera.SourceURL, log),
			client.NewDetectorClient(cfg.Detector.URL, cfg.Detector.Timeout, cfg.Detector.Confidence, log),
			tracker.NewIoUTracker(0, 0),
			counting.NewEngine(camera, engineCfg, log),
			events,
			frames,
			worker.NewFrameAnnotator(log),
			profile.NewProfiler(),
			sink,
			worker.Config{},
			log,
		)
		svc.Register(&service.CameraRuntime{
			Camera: camera,
			Events: events,
			Frames: frames,
			Worker: w,
		})
		if err := svc.StartCamera(camera.ID); err != nil {
			log.Warn().Err(err).Str("camera_id", camera.ID).Msg("failed to start camera worker")
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(occuhttp.CORSMiddleware())

	handler := occuhttp.NewHandler(svc, log)
	handler.Register(router, occuhttp.JWTAuthMiddleware(cfg.Auth.JWTSecret))

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	for _, camera := range svc.Cameras() {
		if err := svc.StopCamera(camera.ID); err != nil {
			log.Warn().Err(err).Str("camera_id", camera.ID).Msg("failed to stop camera worker")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	log.Info().Msg("shutdown complete")
}
