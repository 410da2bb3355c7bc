package app

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "github.com/brianDahlin/Star-driver/internal/api/http"
	auditpkg "github.com/brianDahlin/Star-driver/internal/audit"
	auditpostgres "github.com/brianDahlin/Star-driver/internal/audit/postgres"
	"github.com/brianDahlin/Star-driver/internal/client/fragment"
	"github.com/brianDahlin/Star-driver/internal/config"
	"github.com/brianDahlin/Star-driver/internal/dedup"
	eventkafka "github.com/brianDahlin/Star-driver/internal/event/kafka"
	"github.com/brianDahlin/Star-driver/internal/logging"
	"github.com/brianDahlin/Star-driver/internal/notify"
	"github.com/brianDahlin/Star-driver/internal/observability"
	registrypkg "github.com/brianDahlin/Star-driver/internal/registry"
	registrymemory "github.com/brianDahlin/Star-driver/internal/registry/memory"
	registryredis "github.com/brianDahlin/Star-driver/internal/registry/redis"
	"github.com/brianDahlin/Star-driver/internal/service"
	"github.com/brianDahlin/Star-driver/internal/shutdown"
	"github.com/brianDahlin/Star-driver/internal/telegram"
	"github.com/brianDahlin/Star-driver/internal/verify"
)

// App содержит все зависимости для запуска и корректного shutdown шлюза
type App struct {
	logger      *zap.Logger
	server      *http.Server
	fragment    *fragment.Client
	shutdownMgr *shutdown.Manager
}

// noopResolver используется когда Telegram отключён: username не разрешается,
// оркестратор подставит синтетического получателя
type noopResolver struct{}

func (noopResolver) ResolveUsername(ctx context.Context, requesterID int64) (string, error) {
	return "", nil
}

// Build создаёт и настраивает все зависимости шлюза
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"

	logger, err := logging.New(logging.Config{
		ServiceName: "star-gateway",
		Env:         string(cfg.AppEnv),
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building star gateway",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("redis_addr", cfg.RedisAddr),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.Bool("telegram_enabled", cfg.TelegramEnabled),
	)

	shutdownMgr := shutdown.New(cfg.ShutdownTimeout, logger)

	// OpenTelemetry (noop если выключен)
	otelShutdown, err := observability.Init(context.Background(), observability.Config{
		Enabled:               cfg.OtelEnabled,
		OTLPEndpoint:          cfg.OtelOTLPEndpoint,
		SamplingRatio:         cfg.OtelSamplingRatio,
		ServiceName:           "star-gateway",
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return nil, err
	}
	shutdownMgr.Add("observability", otelShutdown)

	// Реестр заказов и стор дедупликации: Redis в проде, память без него
	var (
		orderRegistry registrypkg.Registry
		claims        dedup.Claimer
		redisClient   *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, err
		}
		logger.Info("Redis connection established")

		orderRegistry = registryredis.NewOrderRegistry(redisClient, logger)
		claims = dedup.NewRedisClaimer(redisClient, logger, cfg.DedupTTL)
	} else {
		logger.Warn("Redis not configured, using in-memory registry and dedup store")
		orderRegistry = registrymemory.NewMemoryRegistry()
		claims = dedup.NewMemoryClaimer(cfg.DedupTTL)
	}

	// Журнал аудита: PostgreSQL в проде, лог без него
	var (
		auditLog auditpkg.Log
		pool     *pgxpool.Pool
	)
	if cfg.PostgresDSN != "" {
		pool, err = pgxpool.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pool.Ping(context.Background()); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("PostgreSQL connection established")

		if err := applyMigrations(cfg.PostgresDSN); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("Database migrations applied successfully")

		auditLog = auditpostgres.NewRepository(pool)
	} else {
		logger.Warn("PostgreSQL not configured, audit records go to the log only")
		auditLog = auditpkg.NewZapLog(logger)
	}

	// Publisher событий об обработанных вебхуках
	var publisher service.ProcessedEventPublisher
	var kafkaPublisher *eventkafka.WebhookProcessedPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher = eventkafka.NewWebhookProcessedPublisher(logger, cfg.KafkaBrokers, cfg.WebhookProcessedTopic)
		publisher = kafkaPublisher
	} else {
		logger.Warn("Kafka not configured, processed events are not published")
		publisher = eventkafka.NewNoOpPublisher(logger)
	}

	// Fragment API - выдача звёзд
	fragmentClient := fragment.NewClient(logger, fragment.Config{
		BaseURL:  cfg.FragmentBaseURL,
		APIKey:   cfg.FragmentAPIKey,
		Phone:    cfg.FragmentPhone,
		Mnemonic: cfg.FragmentMnemonic,
	})

	// Telegram - уведомления и разрешение username
	var (
		sender   telegram.Sender
		resolver service.RecipientResolver
	)
	if cfg.TelegramEnabled {
		tgClient := telegram.NewClient(logger, cfg.TelegramBotToken)
		sender = tgClient
		resolver = tgClient
	} else {
		logger.Warn("Telegram disabled, using no-op sender")
		sender = telegram.NewNoOpSender(logger)
		resolver = noopResolver{}
	}
	notifier := notify.NewTelegramNotifier(logger, sender)

	orchestrator := service.NewOrchestrator(
		logger,
		orderRegistry,
		claims,
		fragmentClient,
		resolver,
		notifier,
		auditLog,
		publisher,
	)

	// Функция readiness для health check
	readiness := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return false
			}
		}
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				return false
			}
		}
		return true
	}

	handler := httpapi.NewHandler(
		logger,
		orchestrator,
		orderRegistry,
		claims,
		verify.NewWataVerifier(logger, cfg.WataKeyURL),
		cfg.CrypayAPIKey,
		cfg.PayportPrivateKey,
		cfg.MinStarsQuantity,
	)
	router := httpapi.NewRouter(handler, readiness, logger)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// Регистрируем shutdown функции в обратном порядке выполнения
	shutdownMgr.Add("http_server", shutdown.ShutdownHTTPServer(server))
	if kafkaPublisher != nil {
		shutdownMgr.Add("kafka_publisher", func(ctx context.Context) error {
			return kafkaPublisher.Close()
		})
	}
	if redisClient != nil {
		shutdownMgr.Add("redis_client", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}
	if pool != nil {
		shutdownMgr.Add("postgres_pool", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
	}

	return &App{
		logger:      logger,
		server:      server,
		fragment:    fragmentClient,
		shutdownMgr: shutdownMgr,
	}, nil
}

// applyMigrations применяет goose-миграции из каталога migrations
func applyMigrations(dsn string) error {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	return goose.Up(db, filepath.Join(wd, "migrations"))
}

// Run запускает шлюз и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	defer logging.Sync(a.logger)

	a.logger.Info("Starting star gateway")

	// Аутентификация во Fragment API. Ошибка не фатальна: вебхуки с оплатой
	// будут падать на выдаче и ретраиться провайдером, пока доступ не восстановится
	if err := a.fragment.Authenticate(context.Background()); err != nil {
		a.logger.Error("fragment authentication failed on startup", zap.Error(err))
	}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	a.logger.Info("HTTP server listening", zap.String("addr", a.server.Addr))

	a.shutdownMgr.Wait()

	a.logger.Info("Star gateway stopped")
	return nil
}
