package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/api"
	"expensetracker/internal/backend"
	"expensetracker/internal/cache"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/router"
	"expensetracker/internal/services"
	"expensetracker/internal/session"
	"expensetracker/internal/views"
	"expensetracker/internal/worker"
)

// IO is where commands read answers and write output.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// App holds the wired components shared by all commands.
type App struct {
	Config   *config.Config
	Logger   *log.Logger
	Out      io.Writer
	Err      io.Writer
	Prompt   *Prompter
	Sessions *session.Manager
	Cache    *cache.Store
	Expenses *services.ExpenseService
	Auth     *services.AuthService
	Payments *services.PaymentService
	Guard    *router.Guard
	Bus      *worker.InvalidationWorker

	now     func() time.Time
	closers []func(context.Context) error
}

// NewApp builds the session store, API client, data cache and services from
// cfg, restores the saved session and starts the optional invalidation bus.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger, stdio IO) (*App, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if stdio.In == nil {
		stdio.In = os.Stdin
	}
	if stdio.Out == nil {
		stdio.Out = os.Stdout
	}
	if stdio.Err == nil {
		stdio.Err = os.Stderr
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Out:    stdio.Out,
		Err:    stdio.Err,
		now:    time.Now,
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	if res.Cleanup != nil {
		a.onClose(func(context.Context) error { return res.Cleanup() })
	}

	a.Sessions = session.NewManager(res.Store, logger)
	if _, err := a.Sessions.Hydrate(ctx); err != nil {
		logger.WarnContext(ctx, "Could not restore session", log.FieldError, err.Error())
	}

	client, err := api.New(cfg.APIBaseURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithTokenSource(a.Sessions.Token),
		api.WithLogger(logger))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("create api client: %w", err)
	}

	a.Cache = cache.New(cache.Options{
		MaxEntries: cfg.CacheMaxEntries,
		MaxAge:     cfg.CacheMaxAge,
		Retention:  cfg.CacheRetention,
		Logger:     logger,
	})
	manager := cache.NewManager(logger)
	manager.Register(a.Cache)
	if cfg.CacheCleanupInterval > 0 {
		manager.StartCleanup(cfg.CacheCleanupInterval)
	}
	a.onClose(func(context.Context) error {
		manager.Stop()
		return nil
	})

	a.Prompt = NewPrompter(stdio.In, stdio.Out)
	a.Expenses = services.NewExpenseService(client, a.Cache, logger)
	a.Auth = services.NewAuthService(client, a.Sessions, a.Cache, logger)
	a.Payments = services.NewPaymentService(client, NewTerminalCheckout(a.Prompt, stdio.Out), a.Sessions, a.Cache, logger)
	a.Guard = router.NewGuard(a.Sessions.Current, logger)

	if cfg.AMQPURL != "" {
		a.startBus(ctx)
	}
	if cfg.MetricsAddr != "" {
		a.onClose(ServeMetrics(cfg.MetricsAddr, logger))
	}
	return a, nil
}

// startBus connects the invalidation bus. Without a broker the app keeps
// working on its local cache alone.
func (a *App) startBus(ctx context.Context) {
	client, err := amqp.NewClient(a.Config.AMQPURL, a.Config.AMQPExchange, a.Config.AMQPQueue, a.Logger)
	if err != nil {
		a.Logger.WarnContext(ctx, "Invalidation bus unavailable", log.FieldError, err.Error())
		return
	}
	a.onClose(func(context.Context) error { return client.Close() })

	w := worker.NewInvalidationWorker(client, a.Cache, a.Sessions.UserID, a.Logger)
	if err := w.Start(context.WithoutCancel(ctx)); err != nil {
		a.Logger.WarnContext(ctx, "Invalidation worker not started", log.FieldError, err.Error())
		return
	}
	a.Bus = w
	a.onClose(w.Stop)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases everything NewApp started, in reverse order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) viewOptions() views.Options {
	return views.Options{
		Currency: a.Config.Currency,
		Now:      a.now,
		Logger:   a.Logger,
	}
}
