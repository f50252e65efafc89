package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/example/ridebook/internal/directory"
	outboxworker "github.com/example/ridebook/internal/outbox"
	"github.com/example/ridebook/internal/quote"
	"github.com/example/ridebook/internal/reservation/availability"
	"github.com/example/ridebook/internal/reservation/domain"
	"github.com/example/ridebook/internal/reservation/handler"
	"github.com/example/ridebook/internal/reservation/repository"
	reservationservice "github.com/example/ridebook/internal/reservation/service"
	"github.com/example/ridebook/internal/sweeper"
	"github.com/example/ridebook/pkg/observability"
	outboxpkg "github.com/example/ridebook/pkg/outbox"
)

type appConfig struct {
	HTTPAddr      string
	GRPCAddr      string
	PostgresDSN   string
	RedisAddr     string
	NATSURL       string
	EventTopic    string
	SweepInterval time.Duration
	SweepTimeout  time.Duration
	OutboxPoll    time.Duration
	OutboxBatch   int
	OutboxRetry   int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	logger := observability.SetupLogger("reservation-service")
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "reservation-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	cfg := loadConfig()

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connect", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Fatal("postgres ping", zap.Error(err))
		}
		defer db.Close()

		if err := repository.Migrate(db); err != nil {
			logger.Fatal("migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("reservationservice")); err == nil {
			natsConn = conn
			defer conn.Drain()
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	repo := buildRepository(db)
	idem := buildIdempotencyRepo(redisClient)
	publisher := buildPublisher(db, natsConn, cfg.EventTopic)

	drivers := directory.NewMemoryDirectory()
	svc := reservationservice.New(repo, drivers, publisher, domain.SystemClock{}, idem)
	engine := availability.New(repo, drivers)
	quotes := quote.New(drivers)
	reservationHTTP := handler.NewHTTP(svc, engine, quotes)

	r := chi.NewRouter()
	r.Mount("/", reservationHTTP.Router())
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sw := sweeper.New(svc, logger.Named("sweeper"), sweeper.Config{
		Interval: cfg.SweepInterval,
		Timeout:  cfg.SweepTimeout,
	})
	go func() {
		if err := sw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sweeper stopped", zap.Error(err))
		}
	}()

	if db != nil && natsConn != nil {
		worker := outboxworker.NewWorker(db, natsConn, logger.Named("outbox"), outboxworker.WorkerConfig{
			PollInterval: cfg.OutboxPoll,
			BatchSize:    cfg.OutboxBatch,
			RetryMax:     cfg.OutboxRetry,
		})
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("outbox worker disabled", zap.Bool("db", db != nil), zap.Bool("nats", natsConn != nil))
	}

	go runGRPC(logger, cfg.GRPCAddr, drivers)

	go func() {
		logger.Info("reservation service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func buildRepository(db *sql.DB) domain.Repository {
	if db == nil {
		return repository.NewMemoryRepository()
	}
	return repository.NewPostgresRepository(db)
}

func buildIdempotencyRepo(redisClient *redis.Client) domain.IdempotencyRepository {
	if redisClient == nil {
		return repository.NewMemoryIdempotencyRepo()
	}
	return repository.NewRedisIdempotencyRepo(redisClient, "", 0)
}

func buildPublisher(db *sql.DB, natsConn *nats.Conn, topic string) domain.EventPublisher {
	if db != nil {
		return repository.NewOutboxPublisher(db, topic)
	}
	return outboxpkg.NewPublisher(natsConn, topic)
}

func runGRPC(logger *zap.Logger, addr string, drivers *directory.MemoryDirectory) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("listen grpc", zap.Error(err))
	}

	srv := grpc.NewServer()
	directory.RegisterDirectoryServer(srv, directory.NewServer(drivers))
	logger.Info("directory grpc listening", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil {
		logger.Fatal("grpc serve", zap.Error(err))
	}
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:      getenv("GRPC_ADDR", ":9090"),
		PostgresDSN:   firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		NATSURL:       os.Getenv("NATS_URL"),
		EventTopic:    getenv("EVENT_TOPIC", "reservation.events"),
		SweepInterval: time.Duration(parseIntEnv("SWEEP_INTERVAL_SEC", 60)) * time.Second,
		SweepTimeout:  time.Duration(parseIntEnv("SWEEP_TIMEOUT_SEC", 30)) * time.Second,
		OutboxPoll:    time.Duration(parseIntEnv("OUTBOX_POLL_MS", 200)) * time.Millisecond,
		OutboxBatch:   parseIntEnv("OUTBOX_BATCH", 100),
		OutboxRetry:   parseIntEnv("OUTBOX_RETRY_MAX", 3),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
