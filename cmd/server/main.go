package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/wallet-checkout/internal/adapter"
	"github.com/yourorg/wallet-checkout/internal/adapter/devicewallet"
	"github.com/yourorg/wallet-checkout/internal/adapter/genericwallet"
	"github.com/yourorg/wallet-checkout/internal/adapter/walletclient"
	"github.com/yourorg/wallet-checkout/internal/checkout"
	"github.com/yourorg/wallet-checkout/internal/config"
	"github.com/yourorg/wallet-checkout/internal/coordinator"
	"github.com/yourorg/wallet-checkout/internal/logging"
	"github.com/yourorg/wallet-checkout/internal/monitor"
	"github.com/yourorg/wallet-checkout/internal/payment"
	"github.com/yourorg/wallet-checkout/internal/policy"
	"github.com/yourorg/wallet-checkout/internal/processor"
	"github.com/yourorg/wallet-checkout/internal/reporting"
	"github.com/yourorg/wallet-checkout/internal/router"
	"github.com/yourorg/wallet-checkout/internal/router/circuitbreaker"
	"github.com/yourorg/wallet-checkout/internal/tracing"
	"github.com/yourorg/wallet-checkout/internal/uistate"
)

// app holds everything the HTTP handlers need.
type app struct {
	cfg         *config.Config
	log         *logrus.Entry
	state       *uistate.State
	coordinator *coordinator.Coordinator
	router      *router.Router
	builder     *checkout.Builder
	contract    *monitor.ContractMonitor
	journal     reporting.Journal
	reporter    *reporting.RetrospectiveReporter
	probes      *probeLimiter

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      logging.Component(logger, "server"),
		state:    uistate.New(cfg.InitialReadiness),
		reporter: reporting.NewRetrospectiveReporter(),
		probes:   newProbeLimiter(cfg.Probes.MinInterval),
	}

	var err error
	if cfg.CheckoutSchemaPath != "" {
		a.contract, err = monitor.NewContractMonitor(cfg.CheckoutSchemaPath)
	} else {
		a.contract, err = monitor.NewCheckoutMonitor()
	}
	if err != nil {
		return nil, err
	}

	adapters, err := newAdapters(cfg, logger)
	if err != nil {
		return nil, err
	}
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
	})
	a.router, err = router.NewRouter(cb, adapters...)
	if err != nil {
		return nil, err
	}

	proc, err := processor.NewProcessor(processor.DefaultTables()...)
	if err != nil {
		return nil, err
	}
	pol, err := policy.NewReadinessPolicy(policy.DefaultRules())
	if err != nil {
		return nil, err
	}

	a.journal = reporting.NewMemoryJournal(int(cfg.Redis.MaxEntries))
	if cfg.Redis.Enabled() {
		rdb, err := reporting.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.journal = reporting.NewRedisJournal(rdb, cfg.Redis.Key, cfg.Redis.MaxEntries)
	}

	a.coordinator, err = coordinator.New(coordinator.Config{
		Router:     a.router,
		Processor:  proc,
		Policy:     pol,
		State:      a.state,
		Journal:    a.journal,
		Logger:     logging.Component(logger, "coordinator"),
		AckTimeout: cfg.AckTimeout,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.coordinator.Close)

	if cfg.Probes.Schedule != "" {
		stop, err := startProbeSchedule(a, cfg.Probes.Schedule)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, stop)
	}

	merchants := checkout.NewInMemoryMerchantConfigRepository(checkout.MerchantConfig{
		ID:              cfg.Merchant.ID,
		Name:            cfg.Merchant.Name,
		CountryCode:     cfg.Merchant.CountryCode,
		DefaultCurrency: cfg.Merchant.DefaultCurrency,
		OrderPrefix:     cfg.Merchant.OrderPrefix,
	})
	a.builder, err = checkout.NewBuilder(merchants, cfg.Merchant.ID)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newAdapters connects to the configured gateways. A wallet without a
// gateway URL is simulated in process.
func newAdapters(cfg *config.Config, logger *logrus.Logger) ([]adapter.WalletProviderAdapter, error) {
	log := logging.Component(logger, "adapter")
	httpClient := &http.Client{Timeout: cfg.Polling.RequestTimeout}
	var out []adapter.WalletProviderAdapter

	if cfg.GenericWallet.GatewayURL == "" {
		log.WithField("provider", payment.GenericWallet.String()).Warn("no gateway configured, simulating wallet")
		out = append(out, newSimulatedGenericWallet(log))
	} else {
		a, err := genericwallet.NewAdapter(genericwallet.Config{
			Client: walletclient.Config{
				BaseURL:       cfg.GenericWallet.GatewayURL,
				APIKey:        cfg.GenericWallet.APIKey,
				HTTPClient:    httpClient,
				PollInterval:  cfg.Polling.Interval,
				MaxPollErrors: cfg.Polling.MaxErrors,
				Logger:        log,
			},
			Merchant: genericwallet.Merchant{
				Name:              cfg.Merchant.Name,
				CountryCode:       cfg.Merchant.CountryCode,
				Gateway:           cfg.GenericWallet.Gateway,
				GatewayMerchantID: cfg.GenericWallet.GatewayMerchantID,
			},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}

	if cfg.DeviceWallet.GatewayURL == "" {
		log.WithField("provider", payment.DeviceWallet.String()).Warn("no gateway configured, simulating wallet")
		out = append(out, newSimulatedDeviceWallet(log))
	} else {
		a, err := devicewallet.NewAdapter(devicewallet.Config{
			Client: walletclient.Config{
				BaseURL:       cfg.DeviceWallet.GatewayURL,
				APIKey:        cfg.DeviceWallet.APIKey,
				ServiceID:     cfg.DeviceWallet.ServiceID,
				HTTPClient:    httpClient,
				PollInterval:  cfg.Polling.Interval,
				MaxPollErrors: cfg.Polling.MaxErrors,
				Logger:        log,
			},
			Merchant: devicewallet.Merchant{
				ID:                    cfg.Merchant.ID,
				Name:                  cfg.Merchant.Name,
				CardHolderNameEnabled: true,
			},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	shutdownTracing, err := tracing.Init(cfg.Tracing.Enabled, cfg.Tracing.ServiceName, os.Stdout)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize tracing")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize service")
	}

	// The screen shows the configured readiness until these answer.
	for _, p := range a.router.Providers() {
		a.coordinator.ProbeReadiness(ctx, p)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: setupRouter(a)}
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server shutdown incomplete")
	}
	a.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracing shutdown incomplete")
	}
}
