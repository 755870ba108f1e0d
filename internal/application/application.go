package application

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/psds-microservice/support-bot/internal/bot"
	"github.com/psds-microservice/support-bot/internal/cache"
	"github.com/psds-microservice/support-bot/internal/config"
	"github.com/psds-microservice/support-bot/internal/database"
	"github.com/psds-microservice/support-bot/internal/engine"
	"github.com/psds-microservice/support-bot/internal/handler"
	"github.com/psds-microservice/support-bot/internal/i18n"
	"github.com/psds-microservice/support-bot/internal/kafka"
	"github.com/psds-microservice/support-bot/internal/logging"
	"github.com/psds-microservice/support-bot/internal/poller"
	"github.com/psds-microservice/support-bot/internal/router"
	"github.com/psds-microservice/support-bot/internal/store"
	"github.com/psds-microservice/support-bot/internal/translate"
	"github.com/rs/zerolog"
)

// App — собранное приложение: Telegram-бот, воркер истории, поллер
// очереди уведомлений и операционный HTTP API над одним хранилищем.
type App struct {
	cfg      *config.Config
	log      zerolog.Logger
	bot      *bot.Bot
	relay    *engine.Relay
	poller   *poller.StatusPoller
	producer *kafka.Producer
	httpSrv  *http.Server
}

func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logging.New(cfg.LogLevel, cfg.AppEnv)

	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	st := store.New(db)
	ch := cache.New(st)

	table := i18n.NewTable(st)
	if err := table.Reload(context.Background()); err != nil {
		return nil, fmt.Errorf("i18n: %w", err)
	}

	translator := translate.New(cfg.Translator.APIKey, cfg.Translator.BaseURL, cfg.Translator.Model, log)
	producer := kafka.NewProducer(kafka.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.Topic, log)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	transport := bot.NewTransport(api)

	tickets := engine.NewTickets(st, ch, producer, log)
	announcer := engine.NewAnnouncer(st, ch, transport, translator, table, cfg.PrimaryLanguage, log)
	relay := engine.NewRelay(st, ch, transport, translator, table, tickets, log)

	b := bot.New(bot.Deps{
		API:        api,
		Transport:  transport,
		Config:     cfg,
		Store:      st,
		Cache:      ch,
		I18n:       table,
		Tickets:    tickets,
		Announcer:  announcer,
		Relay:      relay,
		Translator: translator,
	}, log)

	statusPoller := poller.New(st, transport, table, cfg.AdminPanelURL, cfg.PollInterval, log)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(handler.NewTicketHandler(st)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &App{
		cfg:      cfg,
		log:      log,
		bot:      b,
		relay:    relay,
		poller:   statusPoller,
		producer: producer,
		httpSrv:  httpSrv,
	}, nil
}

// Run запускает все контуры и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.log.Info().Str("addr", a.httpSrv.Addr).Msg("http server listening")

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error().Err(err).Msg("http server")
		}
	}()
	go a.relay.Run(ctx)
	go a.poller.Run(ctx)
	go a.bot.Run(ctx)

	<-ctx.Done()
	a.log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := a.producer.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close kafka producer")
	}
	return nil
}
