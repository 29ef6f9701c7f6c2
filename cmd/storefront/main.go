package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/catalog"
	"github.com/noah-isme/storefront/internal/checkout"
	"github.com/noah-isme/storefront/internal/config"
	"github.com/noah-isme/storefront/internal/events"
	"github.com/noah-isme/storefront/internal/health"
	"github.com/noah-isme/storefront/internal/money"
	"github.com/noah-isme/storefront/internal/obs"
	"github.com/noah-isme/storefront/internal/payment"
	"github.com/noah-isme/storefront/internal/ratelimit"
	"github.com/noah-isme/storefront/internal/resilience"
	"github.com/noah-isme/storefront/internal/security"
	"github.com/noah-isme/storefront/internal/session"
	"github.com/noah-isme/storefront/internal/storefront"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
		resilience.RegisterMetrics(cfg.MetricsNamespace, nil)
	}

	tracingEnabled := cfg.TracingEnabled
	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		Enabled:       cfg.TracingEnabled,
		ServiceName:   "storefront",
		Endpoint:      cfg.OTLPEndpoint,
		SamplingRatio: cfg.TracingSamplingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		tracingEnabled = false
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	conv, err := money.NewConvention(cfg.CurrencyCode, cfg.CurrencyLocale, cfg.CurrencySymbol)
	if err != nil {
		logger.Fatal().Err(err).Msg("currency convention")
	}

	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	}

	loadCtx, cancelLoad := context.WithTimeout(ctx, 15*time.Second)
	listing, err := catalog.Load(loadCtx, catalogSource(cfg, redisClient, logger))
	cancelLoad()
	if err != nil {
		logger.Fatal().Err(err).Msg("load catalog")
	}
	logger.Info().Int("books", listing.Len()).Str("source", cfg.CatalogSource).Msg("catalog loaded")

	bus := &events.Bus{
		Store:     events.NewMemoryStore(0),
		Notifiers: []events.Notifier{events.LogNotifier{Logger: obs.Component(logger, "events")}},
	}
	if cfg.AMQPURL != "" {
		amqpConn, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error().Err(err).Msg("connect amqp; events stay local")
		} else {
			defer func() {
				if err := amqpConn.Close(); err != nil {
					logger.Error().Err(err).Msg("close amqp")
				}
			}()
			bus.Notifiers = append(bus.Notifiers, amqpConn.Notifier(cfg.AMQPExchange))
			logger.Info().Str("exchange", cfg.AMQPExchange).Strs("topics", events.DefaultTopics()).Msg("publishing events to amqp")
		}
	}

	hub := storefront.NewHub(conv, obs.Component(logger, "stream"))
	manager := cart.NewManager(listing, hub)
	loop := session.New(session.Config{Manager: manager, Logger: obs.Component(logger, "session")})

	provider, sandbox, webhookProviders := paymentProvider(cfg, logger)
	recorder := &checkout.Recorder{}
	loop.SetCheckout(checkout.NewService(checkout.Config{
		Cart:       manager,
		Provider:   provider,
		Money:      conv,
		References: &checkout.ReferenceGenerator{Prefix: cfg.ReferencePrefix},
		Dispatch:   loop.Post,
		Reporters:  []checkout.OutcomeReporter{recorder},
		Events:     bus,
		Logger:     obs.Component(logger, "checkout"),
	}))

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go loop.Run(loopCtx)

	var replay payment.ReplayGuard = payment.NewMemoryReplay(4096, cfg.WebhookReplayTTL)
	if redisClient != nil {
		replay = payment.RedisReplay{Client: redisClient, TTL: cfg.WebhookReplayTTL}
	}
	webhook := payment.NewWebhook(replay, obs.Component(logger, "webhook"), webhookProviders...)

	var canceller payment.Canceller
	if c, ok := provider.(payment.Canceller); ok {
		canceller = c
	}

	probes := map[string]health.Probe{"session": health.DoneProbe(loop.Done(), "session")}
	if redisClient != nil {
		probes["redis"] = health.RedisProbe(redisClient)
	}

	var httpMetrics *obs.HTTPMetrics
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsMS), nil)
		metricsHandler = promhttp.Handler()
	}

	router := storefront.NewRouter(storefront.RouterConfig{
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Tracing:        tracingEnabled,
		Metrics:        httpMetrics,
		MetricsHandler: metricsHandler,
		Health:         health.Handler{Probes: probes},
		Catalog:        catalog.NewHandler(catalog.HandlerConfig{Catalog: listing, Money: conv}),
		Storefront: storefront.NewHandler(storefront.HandlerConfig{
			Session:   loop,
			Hub:       hub,
			Money:     conv,
			Canceller: canceller,
			Outcomes:  recorder,
			Sandbox:   sandbox,
			Logger:    obs.Component(logger, "storefront"),
		}),
		Webhook: webhook.Handle,
		Middleware: []func(http.Handler) http.Handler{
			security.Headers{Enable: cfg.SecurityHeadersEnabled, EnableHSTS: cfg.AppEnv == "production"}.Middleware,
			security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware,
		},
		CheckoutLimit: checkoutLimit(cfg, redisClient, logger),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(hub.Close)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("provider", provider.Name()).Msg("server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
	}
	stopLoop()
	<-loop.Done()
	logger.Info().Msg("server stopped")
}

func connectRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	if cfg.RedisURL == "" {
		logger.Info().Msg("redis not configured; using in-memory replay guard and rate limiter")
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func catalogSource(cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger) catalog.Source {
	if cfg.CatalogSource != config.CatalogHTTP {
		return catalog.StaticSource{}
	}
	return catalog.HTTPSource{
		URL:    cfg.CatalogURL,
		Client: outboundClient("catalog", 5*time.Second, logger),
		Cache:  catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Logger: obs.Component(logger, "catalog"),
	}
}

func paymentProvider(cfg *config.Config, logger zerolog.Logger) (payment.Provider, *payment.Sandbox, []payment.WebhookProvider) {
	if cfg.PaymentProvider == config.ProviderSandbox {
		sandbox := payment.NewSandbox(cfg.PublicBaseURL)
		return sandbox, sandbox, nil
	}
	paystack := payment.NewPaystack(payment.PaystackConfig{
		PublicKey:   cfg.PaystackPublicKey,
		SecretKey:   cfg.PaystackSecretKey,
		BaseURL:     cfg.PaystackBaseURL,
		CallbackURL: cfg.PaystackCallbackURL,
		Client:      outboundClient(payment.PaystackName, cfg.PaymentTimeout, logger),
		Logger:      obs.Component(logger, payment.PaystackName),
	})
	if err := paystack.Configured(); err != nil {
		logger.Warn().Err(err).Msg("paystack not configured; checkout will be refused")
	}
	return paystack, nil, []payment.WebhookProvider{paystack}
}

func outboundClient(target string, timeout time.Duration, logger zerolog.Logger) resilience.HTTPClient {
	breakerLogger := obs.Component(logger, "breaker")
	return resilience.HTTPClient{
		Client: resilience.NewInstrumentedClient(0),
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Target: target,
			Logger: &breakerLogger,
		}),
		BaseBackoff: 200 * time.Millisecond,
		MaxAttempts: 3,
		Jitter:      0.2,
		Timeout:     timeout,
	}
}

func checkoutLimit(cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger) func(http.Handler) http.Handler {
	if cfg.CheckoutRatePerMinute <= 0 {
		return nil
	}
	var limiter ratelimit.Allower = ratelimit.NewMemory("storefront:rl")
	if redisClient != nil {
		limiter = ratelimit.Limiter{Client: redisClient, Prefix: "storefront:rl:"}
	}
	return ratelimit.Handler{
		Limiter: limiter,
		Config: ratelimit.Config{
			Key:    ratelimit.Prefixed("checkout", ratelimit.ClientIP),
			Window: time.Minute,
			Max:    cfg.CheckoutRatePerMinute,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("checkout rate limiter unavailable")
		},
	}.Middleware
}
