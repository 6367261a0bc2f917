package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/order-relay/internal/delivery"
	"github.com/xenking/order-relay/internal/handler"
	"github.com/xenking/order-relay/internal/relay"
	"github.com/xenking/order-relay/internal/render"
	"github.com/xenking/order-relay/pkg/health"
	"github.com/xenking/order-relay/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("orders_dir", cfg.OrdersDir),
		zap.String("delivery", cfg.Delivery.Backend),
	)

	renderer := newRenderer(cfg)
	if err := renderer.EnsureDir(); err != nil {
		return errors.Wrap(err, "prepare orders directory")
	}

	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)
	dispatcher, err := newDispatcher(cfg, transport)
	if err != nil {
		return errors.Wrap(err, "create dispatcher")
	}

	svc, err := relay.NewService(renderer, dispatcher, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create relay service")
	}

	healthSvc := health.New()
	healthSvc.AddReadinessCheck("orders_dir", 5*time.Second, renderer.CheckWritable)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCPauseCheck(time.Second))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Requests wait for the outbound delivery.
		WriteTimeout:      cfg.Delivery.Timeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc, healthSvc, m.TracerProvider(), m.MeterProvider()),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSvc.Run(gCtx, 10*time.Second)
	})
	g.Go(func() error {
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		healthSvc.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}

// newHandler routes the order and probe endpoints behind the middleware
// chain. The context logger becomes the base logger of every request.
func newHandler(
	ctx context.Context,
	cfg *Config,
	svc handler.Processor,
	healthSvc *health.Health,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	handler.NewHandler(handler.HandlerConfig{}, svc).Register(mux)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins: cfg.CORS.Origins,
		}),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.Instrument("order-relay", tp, mp),
		httpmiddleware.LogRequests(),
	)
}

func newRenderer(cfg *Config) *render.Renderer {
	return render.New(render.Config{
		Dir: cfg.OrdersDir,
		Company: render.Company{
			Name:    cfg.Company.Name,
			TaxID:   cfg.Company.TaxID,
			Phone:   cfg.Company.Phone,
			Address: cfg.Company.Address,
		},
	})
}

// newDispatcher builds the configured delivery backend. Telegram requests go
// through transport.
func newDispatcher(cfg *Config, transport http.RoundTripper) (delivery.Dispatcher, error) {
	switch cfg.Delivery.Backend {
	case BackendTelegram:
		return delivery.NewTelegram(delivery.TelegramConfig{
			Token:    cfg.Telegram.Token,
			ChatID:   cfg.Telegram.ChatID,
			Endpoint: cfg.Telegram.Endpoint,
			Timeout:  cfg.Delivery.Timeout,
		}, transport)
	case BackendSMTP:
		return delivery.NewSMTP(delivery.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			To:       cfg.SMTP.To,
			Timeout:  cfg.Delivery.Timeout,
		})
	default:
		return nil, errors.Errorf("unknown delivery backend %q", cfg.Delivery.Backend)
	}
}
