package container

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/admission-go/internal/analytics"
	analyticsstore "github.com/serroba/admission-go/internal/analytics/store"
	"github.com/serroba/admission-go/internal/handlers"
	"github.com/serroba/admission-go/internal/health"
	"github.com/serroba/admission-go/internal/messaging"
	"github.com/serroba/admission-go/internal/middleware"
	"github.com/serroba/admission-go/internal/ratelimit"
	"github.com/serroba/admission-go/internal/store"
	"go.uber.org/zap"
)

// RedisConn owns the Redis client shared by the rate limiter and messaging.
type RedisConn struct {
	Client *redis.Client
}

// Shutdown closes the client.
func (c *RedisConn) Shutdown() error {
	return c.Client.Close()
}

// PostgresConn owns the PostgreSQL pool.
type PostgresConn struct {
	Pool *pgxpool.Pool
}

// Shutdown closes the pool.
func (c *PostgresConn) Shutdown() error {
	c.Pool.Close()

	return nil
}

// LoggerPackage provides the process logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "console" {
			return zap.NewDevelopment()
		}

		return zap.NewProduction()
	})
}

// RedisPackage provides the Redis connection. It is only invoked when
// Options.RedisAddr is set.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisConn, error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.SharedBackend() {
			return nil, fmt.Errorf("redis requested but no address configured")
		}

		timeout := opts.RedisTimeout()

		client := redis.NewClient(&redis.Options{
			Addr:         opts.RedisAddr,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		})

		return &RedisConn{Client: client}, nil
	})

	do.Provide(injector, func(i *do.Injector) (*store.RedisStore, error) {
		return store.NewRedisStore(do.MustInvoke[*RedisConn](i).Client)
	})
}

// PostgresPackage provides the throttle event store: PostgreSQL when
// Options.DatabaseURL is set, a logging no-op otherwise.
func PostgresPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*PostgresConn, error) {
		opts := do.MustInvoke[*Options](i)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		return &PostgresConn{Pool: pool}, nil
	})

	do.Provide(injector, func(i *do.Injector) (analytics.Store, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.DatabaseURL == "" {
			logger.Info("no database configured, throttle events will only be logged")

			return analyticsstore.NewNoop(logger), nil
		}

		pg := analyticsstore.NewPostgres(do.MustInvoke[*PostgresConn](i).Pool)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure throttle_events schema: %w", err)
		}

		return pg, nil
	})

	do.Provide(injector, func(i *do.Injector) (analytics.Query, error) {
		query, ok := do.MustInvoke[analytics.Store](i).(analytics.Query)
		if !ok {
			return nil, fmt.Errorf("throttle event store cannot be queried")
		}

		return query, nil
	})
}

// RateLimitPackage provides the local and shared stores, the decision engine
// and the admission guard.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*store.LocalStore, error) {
		opts := do.MustInvoke[*Options](i)

		local := store.NewLocalStore(store.WithSweepInterval(opts.SweepInterval()))
		local.StartSweeper(context.Background())

		return local, nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.Limiter, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		local := do.MustInvoke[*store.LocalStore](i)

		if !opts.SharedBackend() {
			logger.Info("no shared backend configured, rate limiting is local to this process")

			return ratelimit.NewLimiter(local, logger), nil
		}

		shared := do.MustInvoke[*store.RedisStore](i)

		logger.Info("shared rate limit backend configured", zap.String("redis", opts.RedisAddr))

		return ratelimit.NewLimiter(local, logger, ratelimit.WithSharedStore(shared)), nil
	})

	do.Provide(injector, func(_ *do.Injector) (*ratelimit.PolicyTable, error) {
		return ratelimit.NewPolicyTable(ratelimit.SitePolicies())
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.Admission, error) {
		return ratelimit.NewAdmission(
			do.MustInvoke[*ratelimit.Limiter](i),
			do.MustInvoke[*ratelimit.PolicyTable](i),
			do.MustInvoke[ratelimit.DenyReporter](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// PublisherGroupPackage provides the throttle event publisher and the denial
// reporter built on it.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)
		if !opts.SharedBackend() || !opts.PublishThrottled {
			return messaging.NewPublisherGroup(nil), nil
		}

		conn := do.MustInvoke[*RedisConn](i)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client:     conn.Client,
				Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
				Maxlens: map[string]int64{
					analytics.TopicThrottled: opts.StreamMaxlen,
				},
			},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			return nil, fmt.Errorf("create throttle event publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (ratelimit.DenyReporter, error) {
		group := do.MustInvoke[*messaging.PublisherGroup](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var publish messaging.Publish[analytics.ThrottledEvent]
		if group.Publisher() != nil {
			publish = messaging.NewPublishFunc[analytics.ThrottledEvent](group.Publisher(), analytics.TopicThrottled)
		} else {
			publish = messaging.NewLogPublishFunc[analytics.ThrottledEvent](analytics.TopicThrottled, logger)
		}

		// Bounded by the Redis timeout so a dead broker cannot back up the queue for long.
		return analytics.NewReporter(publish, logger,
			analytics.WithPublishTimeout(do.MustInvoke[*Options](i).RedisTimeout())), nil
	})
}

// ConsumerGroupPackage provides the consumer group persisting throttle events.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		conn := do.MustInvoke[*RedisConn](i)
		eventStore := do.MustInvoke[analytics.Store](i)

		subscriber, err := redisstream.NewSubscriber(
			redisstream.SubscriberConfig{
				Client:        conn.Client,
				Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
				ConsumerGroup: opts.ConsumerGroup,
			},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			return nil, fmt.Errorf("create throttle event subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(analytics.NewConsumer(subscriber, eventStore, logger))

		return group, nil
	})
}

// HTTPPackage provides the router and the huma API with all routes registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		return chi.NewMux(), nil
	})

	do.Provide(injector, func(i *do.Injector) (*middleware.ProxyAuth, error) {
		return middleware.NewProxyAuth(do.MustInvoke[*Options](i).TrustedProxies)
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)
		admission := do.MustInvoke[*ratelimit.Admission](i)
		auth := do.MustInvoke[*middleware.ProxyAuth](i)

		api := humachi.New(router, huma.DefaultConfig("Admission Control", "1.0.0"))
		api.UseMiddleware(
			middleware.RequestMeta(api, auth),
			middleware.RateLimiter(api, admission, logger),
		)

		forms := handlers.NewFormHandler(logger)
		handlers.RegisterRoutes(api, forms)
		handlers.RegisterTicketRoutes(router, admission, auth, forms)
		handlers.RegisterAdminRoutes(api, handlers.NewAdminHandler(admission, do.MustInvoke[analytics.Query](i)))

		var checker health.Checker
		if opts.SharedBackend() {
			checker = do.MustInvoke[*store.RedisStore](i)
		}

		health.RegisterRoutes(api, health.NewHandler(checker))

		router.Handle("/metrics", promhttp.Handler())

		return api, nil
	})
}
