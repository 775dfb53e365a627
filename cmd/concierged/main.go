package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/remember-rp/concierge/internal/absence"
	"github.com/remember-rp/concierge/internal/availability"
	"github.com/remember-rp/concierge/internal/board"
	appconfig "github.com/remember-rp/concierge/internal/config"
	"github.com/remember-rp/concierge/internal/gateway"
	"github.com/remember-rp/concierge/internal/handlers"
	"github.com/remember-rp/concierge/internal/links"
	"github.com/remember-rp/concierge/internal/negotiation"
	"github.com/remember-rp/concierge/internal/outbox"
	"github.com/remember-rp/concierge/internal/panel"
	"github.com/remember-rp/concierge/internal/storage"
	"github.com/remember-rp/concierge/internal/sweeper"
	"github.com/remember-rp/concierge/libs/config"
	"github.com/remember-rp/concierge/libs/db"
	"github.com/remember-rp/concierge/libs/httpx"
	"github.com/remember-rp/concierge/libs/kafkax"
	otelx "github.com/remember-rp/concierge/libs/otel"
	"github.com/remember-rp/concierge/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "concierged")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	cfg, err := appconfig.Load(config.String("CONFIG_PATH", "config.yaml"))
	if err != nil {
		logger.Error("config load failed", "err", err)
		panic(err)
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
	}

	outboxRepo := outbox.NewRepository(pool)
	apptRepo := storage.NewAppointmentRepository(pool, outboxRepo)
	absenceRepo := storage.NewAbsenceRepository(pool, outboxRepo)
	panelRepo := storage.NewPanelRepository(pool)
	linkRepo := storage.NewLinkRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	var sessions negotiation.SessionStore
	if rdb != nil {
		sessions = negotiation.NewRedisSessionStore(rdb)
	} else {
		logger.Warn("redis not configured, sessions are in-memory only")
		sessions = negotiation.NewMemorySessionStore()
	}

	// TODO: replace the log gateway with the real chat platform adapter once
	// its credentials flow is settled.
	messenger := gateway.NewLogMessenger(logger)
	notifier := gateway.NewLogNotifier(logger, cfg.OversightRef)

	avail := availability.NewIndex(apptRepo)
	engine := negotiation.NewEngine(sessions, avail, apptRepo, notifier, logger, negotiation.Config{
		DecisionDeadline: time.Duration(cfg.DecisionDeadline),
		DefaultHour:      cfg.DefaultHour,
	})
	absenceSvc := absence.NewService(absenceRepo, logger)
	linkSvc := links.NewService(linkRepo)

	sync := panel.NewSynchronizer(panelRepo, messenger, logger, panel.GuardedKeys...)
	boardRefresher := board.NewRefresher(sync, apptRepo, absenceSvc, linkSvc, cfg, logger)

	sweep := sweeper.New(apptRepo, absenceSvc, boardRefresher, logger)
	cronRunner, err := sweep.Start(ctx, cfg.SweepCron)
	if err != nil {
		logger.Error("sweep schedule invalid", "spec", cfg.SweepCron, "err", err)
		panic(err)
	}
	defer cronRunner.Stop()

	// Draw every panel once at startup so a fresh deployment is never blank.
	boardRefresher.All(ctx)

	negotiationHandler := handlers.NewNegotiationHandler(engine, boardRefresher, cfg.Hours, logger)
	absenceHandler := handlers.NewAbsenceHandler(absenceSvc, boardRefresher, logger)
	planningHandler := handlers.NewPlanningHandler(apptRepo, linkSvc, boardRefresher, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.HandleFunc("/api/v1/negotiations", negotiationHandler.Propose)
	mux.HandleFunc("/api/v1/negotiations/accept", negotiationHandler.Accept)
	mux.HandleFunc("/api/v1/negotiations/counter", negotiationHandler.Counter)
	mux.HandleFunc("/api/v1/negotiations/restart", negotiationHandler.Restart)
	mux.HandleFunc("/api/v1/days", negotiationHandler.DayOptions)
	mux.HandleFunc("/api/v1/appointments", planningHandler.List)
	mux.HandleFunc("/api/v1/appointments/cancel", negotiationHandler.CancelAppointment)
	mux.HandleFunc("/api/v1/appointments/clear", planningHandler.Clear)
	mux.HandleFunc("/api/v1/absences", absenceHandler.List)
	mux.HandleFunc("/api/v1/absences/declare", absenceHandler.Declare)
	mux.HandleFunc("/api/v1/absences/force", absenceHandler.ForceDeclare)
	mux.HandleFunc("/api/v1/absences/delete", absenceHandler.Delete)
	mux.HandleFunc("/api/v1/absences/clear", absenceHandler.Clear)
	mux.HandleFunc("/api/v1/links", planningHandler.AddLink)
	mux.HandleFunc("/api/v1/links/remove", planningHandler.RemoveLink)
	mux.HandleFunc("/calendar.ics", planningHandler.Feed)

	middleware := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1 << 20),
	}
	if rdb != nil {
		limit, _ := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "120"))
		limiter := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, service)
		middleware = append(middleware, limiter.Middleware(logger, true))
	}
	httpHandler := httpx.Chain(mux, middleware...)
	httpHandler = otelhttp.NewHandler(httpHandler, service)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
