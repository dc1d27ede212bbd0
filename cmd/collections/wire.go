package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"condo_collections/internal/app"
	"condo_collections/internal/domain/notification"
	"condo_collections/internal/infra/database"
	"condo_collections/internal/infra/events"
	"condo_collections/internal/infra/logger"
	"condo_collections/internal/infra/mailer"
	"condo_collections/internal/infra/metrics"
	"condo_collections/internal/infra/retry"
	"condo_collections/internal/infra/scheduler"
	"condo_collections/internal/infra/telegram"
	"condo_collections/internal/infra/templates"
)

// env holds everything a command needs. Close releases it.
type env struct {
	store     *database.Store
	units     *database.UnitRepository
	records   *database.NotificationRepository
	events    *database.EventRepository
	cycles    *database.CycleRepository
	service   *app.CollectionService
	scheduler *scheduler.CollectionsScheduler
	bot       *telebot.Bot // nil without TELEGRAM_TOKEN
	registry  *prom.Registry
	closers   []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// openStore connects and applies the schema.
func openStore(ctx context.Context) (*database.Store, error) {
	store, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}
	logger.Log.WithField("driver", cfg.DatabaseDriver).Info("Database connection established successfully.")
	return store, nil
}

// buildEnv wires the pipeline. withMetrics registers Prometheus collectors;
// one-shot commands skip them.
func buildEnv(ctx context.Context, withMetrics bool) (*env, error) {
	e := &env{}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	e.store = store
	e.closers = append(e.closers, func() { store.Close() })

	e.units = database.NewUnitRepository(store)
	e.records = database.NewNotificationRepository(store)
	e.events = database.NewEventRepository(store)
	e.cycles = database.NewCycleRepository(store)
	contacts := database.NewContactRepository(store)

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if withMetrics {
		e.registry = prom.NewRegistry()
		e.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec = metrics.NewPrometheusRecorder(e.registry)
	}

	catalog, err := templates.LoadCatalog(cfg.NoticeTemplatesPath)
	if err != nil {
		return nil, fmt.Errorf("could not load notice templates: %w", err)
	}
	renderer := templates.NewRenderer(catalog)

	mail := buildMailer()

	var boardChat *app.BoardChat
	if cfg.TelegramToken != "" {
		e.bot, err = newBot()
		if err != nil {
			return nil, err
		}
		if cfg.BoardTelegramChatID != 0 {
			boardChat = &app.BoardChat{
				Transport: telegram.NewTelebotAdapter(e.bot),
				ChatID:    strconv.FormatInt(cfg.BoardTelegramChatID, 10),
			}
		}
	}

	var publisher app.EventPublisher = events.Noop{}
	if cfg.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, logger.Component("events"))
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, np.Close)
		publisher = np
	}

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.DispatchMaxAttempts
	policy.InitialBackoff = cfg.DispatchInitialBackoff

	applier := app.NewApplier(e.units, e.events, publisher, rec, logger.Component("applier"))
	dispatcher := app.NewDispatcher(app.DispatcherConfig{
		AssociationName: cfg.AssociationName,
		Location:        cfg.Location,
		Retry:           policy,
		Timeout:         cfg.DispatchTimeout,
	}, e.records, e.units, e.events, mail, boardChat, renderer, rec, logger.Component("dispatcher"))

	e.service = app.NewCollectionService(e.units, contacts, e.cycles, applier, dispatcher, publisher, rec,
		logger.Component("collections"), cfg.DispatchConcurrency)
	e.scheduler = scheduler.NewCollectionsScheduler(e.service, cfg.CronSpecCollections, cfg.Location, rec,
		logger.Component("scheduler"))

	ok = true
	return e, nil
}

func buildMailer() notification.Transport {
	if cfg.SMTPHost == "" {
		logger.Log.Warn("SMTP_HOST is not set. Mail is logged, not sent.")
		return mailer.NewLogMailer(logger.Component("mailer"))
	}
	return mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:          cfg.SMTPHost,
		Port:          cfg.SMTPPort,
		Username:      cfg.SMTPUsername,
		Password:      cfg.SMTPPassword,
		From:          cfg.SMTPFrom,
		RatePerSecond: cfg.SMTPRatePerSecond,
	}, logger.Component("mailer"))
}

func newBot() (*telebot.Bot, error) {
	botLogger := logger.Component("telebot")
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler error")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return bot, nil
}
