package bootstrap

import (
	"context"
	"log"
	"path/filepath"

	"eis-ingest-be/internal/config"
	"eis-ingest-be/internal/controller"
	"eis-ingest-be/internal/handler"
	"eis-ingest-be/internal/pkg/logger"
	"eis-ingest-be/internal/repository/contract"
	"eis-ingest-be/internal/repository/implementation"
	"eis-ingest-be/internal/repository/memory"
	"eis-ingest-be/internal/service"
	"eis-ingest-be/internal/subscriber"
	"eis-ingest-be/internal/websocket"
	"eis-ingest-be/pkg/events"
	pktNats "eis-ingest-be/pkg/nats"
	"eis-ingest-be/pkg/store"
	"eis-ingest-be/pkg/validation"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SessionController    controller.ISessionController
	StatisticsController controller.IStatisticsController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// Event fan-out
	EventHub           *events.Hub
	EventStreamHandler *handler.EventStreamHandler
	WebSocketHub       *websocket.Hub

	SessionService service.ISessionService
	Logger         logger.ILogger

	closers []func()
}

// NewContainer wires the ingestion server. db may be nil, in which case
// transfer summaries are kept in memory only.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c := &Container{Logger: sysLogger}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	// 3. Repositories
	var summaryRepo contract.TransferSummaryRepository
	if db != nil {
		summaryRepo = implementation.NewTransferSummaryRepository(db)
		log.Printf("[INFO] Transfer summaries stored in PostgreSQL")
	} else {
		summaryRepo = memory.NewTransferSummaryRepository(0)
		log.Printf("[INFO] Transfer summaries kept in memory")
	}

	// 4. Event hub and subscribers
	hub := events.NewHub(events.Thresholds{
		VoltageThreshold:     cfg.Thresholds.Voltage,
		ImpedanceThreshold:   cfg.Thresholds.Impedance,
		DeviationPercent:     cfg.Thresholds.DeviationPercent,
		TemperatureDelta:     cfg.Thresholds.TemperatureDelta,
		MinSamplesForAverage: cfg.Thresholds.MinSamplesForAverage,
	}, sysLogger)
	c.EventHub = hub

	hub.Subscribe("console", subscriber.NewConsole(color.Output, cfg.Logging.DetailedConsole, cfg.Logging.WarningConsole))

	if cfg.Logging.File {
		eventLogger := logger.NewIsolatedLogger(filepath.Join(cfg.Logging.Directory, "events.log"))
		hub.Subscribe("file", subscriber.NewFileLog(eventLogger))
	}

	stats := subscriber.NewStatistics()
	if cfg.Logging.Statistics {
		hub.Subscribe("statistics", stats)
	}

	publisherService := service.NewPublisherService(cfg.App.SummaryTopic, pubSub)
	hub.Subscribe("summary", subscriber.NewSummaryPublisher(publisherService))
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.App.SummaryTopic, summaryRepo, sysLogger)

	// NATS
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, cfg.App.NatsSubject)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			hub.Subscribe("nats", subscriber.NewNatsBridge(natsPub))
			c.closers = append(c.closers, natsPub.Close)
		}
	}

	// Redis
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(filepath.Join(cfg.Logging.Directory, "websocket.log"))
	wsHub := websocket.NewHub(rdb, wsLogger)
	hub.Subscribe("websocket", wsHub)
	c.WebSocketHub = wsHub
	c.EventStreamHandler = handler.NewEventStreamHandler(wsHub, wsLogger)

	// 5. Session pipeline
	sessionStore := store.NewSessionStore(store.Options{
		DataDir:          cfg.Storage.DataDir,
		FailedSamplesDir: cfg.Storage.FailedSamplesDir,
		Injector:         store.InjectorForRate(cfg.FaultInjection.AcceptedWriteFailureRate),
		Logger:           sysLogger,
	})
	if rate := cfg.FaultInjection.AcceptedWriteFailureRate; rate > 0 {
		log.Printf("[WARN] Fault injection enabled: %.0f%% of accepted writes will fail", rate*100)
	}

	c.SessionService = service.NewSessionService(sessionStore, hub, validation.Bounds{
		ResistanceMin: cfg.Bounds.ResistanceMin,
		ResistanceMax: cfg.Bounds.ResistanceMax,
		RangeMin:      cfg.Bounds.RangeMin,
		RangeMax:      cfg.Bounds.RangeMax,
	}, sysLogger)

	// 6. Controllers
	c.SessionController = controller.NewSessionController(c.SessionService)
	c.StatisticsController = controller.NewStatisticsController(stats, summaryRepo)

	return c
}

// Close releases broker connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
