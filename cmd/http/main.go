package main

import (
	"context"
	"log"

	"github.com/hilthontt/ticketchat/internal/application/chat"
	"github.com/hilthontt/ticketchat/internal/domain"
	"github.com/hilthontt/ticketchat/internal/infrastructure/auth"
	"github.com/hilthontt/ticketchat/internal/infrastructure/clock"
	"github.com/hilthontt/ticketchat/internal/infrastructure/configs"
	"github.com/hilthontt/ticketchat/internal/infrastructure/dedup"
	"github.com/hilthontt/ticketchat/internal/infrastructure/events"
	"github.com/hilthontt/ticketchat/internal/infrastructure/logging"
	"github.com/hilthontt/ticketchat/internal/infrastructure/messaging"
	"github.com/hilthontt/ticketchat/internal/infrastructure/metrics"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/ticketchat/internal/infrastructure/tracing"
	"github.com/hilthontt/ticketchat/internal/infrastructure/validate"
	"github.com/hilthontt/ticketchat/internal/infrastructure/ws"
	"github.com/hilthontt/ticketchat/internal/persistence/cache"
	"github.com/hilthontt/ticketchat/internal/persistence/db"
	"github.com/hilthontt/ticketchat/internal/persistence/memory"
	"github.com/hilthontt/ticketchat/internal/persistence/repository"
	"github.com/hilthontt/ticketchat/internal/presentation/api"
	"github.com/hilthontt/ticketchat/internal/presentation/handler/health"
	"github.com/hilthontt/ticketchat/internal/presentation/handler/socket"
)

// stores bundles the three persistence ports the coordinator needs.
type stores struct {
	profiles domain.ProfileRepository
	tickets  domain.TicketDirectory
	messages domain.MessageStore
	close    func()
}

func main() {
	cfg, err := configs.Load(configs.DetermineConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&cfg.Logger)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "failed to initialize the tracer", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	defer shutdownTracer(ctx)

	st := openStores(ctx, cfg, logger)
	defer st.close()

	var publisher domain.MessagePublisher
	if cfg.RabbitMQ.URI != "" {
		rabbitmq, err := messaging.NewRabbitMQ(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal(logging.RabbitMQ, logging.Startup, "failed to connect to rabbitmq", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		}
		defer rabbitmq.Close()

		publisher = events.NewMessagePublisher(rabbitmq)
		logger.Info(logging.RabbitMQ, logging.Startup, "publishing message events", map[logging.ExtraKey]any{
			"exchange": cfg.RabbitMQ.Exchange,
		})
	}

	clk := clock.Real()
	m := metrics.New()

	dedupCache := dedup.New(dedup.Options{
		Retention:     cfg.Chat.DedupRetention,
		SweepInterval: cfg.Chat.DedupSweepInterval,
		Clock:         clk,
	})
	defer dedupCache.Close()

	sendLimiter := ratelimiter.NewSlidingWindow(ratelimiter.SlidingWindowOptions{
		Limit:  cfg.Chat.SendLimit,
		Window: cfg.Chat.SendWindow,
		Clock:  clk,
	})
	defer sendLimiter.Close()

	coordinator := chat.NewCoordinator(chat.Options{
		Verifier:       auth.NewJWTVerifier(cfg.Auth.JWTSecret, st.profiles, logger),
		Tickets:        st.tickets,
		Store:          st.messages,
		Publisher:      publisher,
		Dedup:          dedupCache,
		Limiter:        sendLimiter,
		Validator:      validate.New(),
		Clock:          clk,
		Logger:         logger,
		Metrics:        m,
		TypingTimeout:  cfg.Chat.TypingTimeout,
		PersistTimeout: cfg.Chat.PersistTimeout,
		MaxBodyLength:  cfg.Chat.MaxBodyLength,
	})

	upgradeLimiter := ratelimiter.New(ratelimiter.Options{
		MaxRatePerSecond: cfg.RateLimiter.MaxRatePerSecond,
		MaxBurst:         cfg.RateLimiter.MaxBurst,
		IdleTTL:          cfg.RateLimiter.CacheTTL,
		SourceHeaderKey:  cfg.RateLimiter.SourceHeaderKey,
	})
	defer upgradeLimiter.Close()

	socketHandler := socket.NewHandler(coordinator, ws.NewUpgrader(cfg.HTTP.AllowedOrigins), ws.ClientOptions{
		SendBuffer:     cfg.Websocket.SendBuffer,
		PingInterval:   cfg.Websocket.PingPeriod,
		PongWait:       cfg.Websocket.PongWait,
		WriteWait:      cfg.Websocket.WriteWait,
		MaxMessageSize: cfg.Websocket.MaxMessageSize,
	}, logger)
	healthHandler := health.NewHandler(coordinator)

	app := api.NewApplication(*cfg, socketHandler, healthHandler, logger, upgradeLimiter, m)

	mux := app.Mount()
	if err := app.Run(mux, coordinator.Close); err != nil {
		logger.Error(logging.General, logging.Shutdown, "server stopped with error", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	// Run does not wait for shutdown hooks; drain publishes before the
	// deferred broker close.
	coordinator.Close()
}

// openStores picks MongoDB (with an optional Redis profile cache) when a
// URI is configured and the seeded in-memory store otherwise.
func openStores(ctx context.Context, cfg *configs.Config, logger logging.Logger) stores {
	if cfg.Mongo.URI == "" {
		logger.Warn(logging.General, logging.Startup, "no mongo uri configured, using in-memory stores", nil)
		return memoryStores(cfg.Memory)
	}

	client, err := db.NewMongoClient(ctx, cfg.Mongo, logger)
	if err != nil {
		logger.Fatal(logging.MongoDB, logging.Startup, "failed to connect to mongodb", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}
	database := client.Database(cfg.Mongo.Database)
	closers := []func(){func() { _ = db.DisconnectMongo(context.Background(), client, logger) }}

	var profiles domain.ProfileRepository = repository.NewUserRepository(database)
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn(logging.Redis, logging.Startup, "redis unavailable, profile cache disabled", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
		} else {
			profiles = cache.NewProfileCache(profiles, rdb, cfg.Redis.ProfileTTL, logger)
			closers = append(closers, func() { _ = rdb.Close() })
		}
	}

	tickets := repository.NewTicketRepository(database, profiles)
	if err := tickets.EnsureIndexes(ctx); err != nil {
		logger.Warn(logging.MongoDB, logging.Startup, "failed to ensure ticket indexes", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
	}

	return stores{
		profiles: profiles,
		tickets:  tickets,
		messages: tickets,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}
}

func memoryStores(seed configs.MemoryConfig) stores {
	store := memory.NewStore()
	for _, u := range seed.Users {
		store.PutUser(domain.Identity{ID: u.ID, Fullname: u.Fullname, AvatarURL: u.AvatarURL, Email: u.Email})
	}
	for _, t := range seed.Tickets {
		store.PutTicket(t.ID, t.Creator, t.AssignedTo)
	}

	return stores{
		profiles: store,
		tickets:  store,
		messages: store,
		close:    func() {},
	}
}
