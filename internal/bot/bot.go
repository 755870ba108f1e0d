package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/psds-microservice/support-bot/internal/cache"
	"github.com/psds-microservice/support-bot/internal/config"
	"github.com/psds-microservice/support-bot/internal/engine"
	"github.com/psds-microservice/support-bot/internal/i18n"
	"github.com/psds-microservice/support-bot/internal/store"
	"github.com/psds-microservice/support-bot/internal/translate"
	"github.com/rs/zerolog"
)

// Bot — транспортный слой: long-poll цикл апдейтов Telegram и маршрутизация
// событий в движок (машина состояний, анонсер, релей).
type Bot struct {
	api        *tgbotapi.BotAPI
	transport  *Transport
	cfg        *config.Config
	store      store.Store
	cache      *cache.Cache
	i18n       *i18n.Table
	tickets    *engine.Tickets
	announcer  *engine.Announcer
	relay      *engine.Relay
	translator translate.Translator
	states     *StateManager
	log        zerolog.Logger
}

type Deps struct {
	API        *tgbotapi.BotAPI
	Transport  *Transport
	Config     *config.Config
	Store      store.Store
	Cache      *cache.Cache
	I18n       *i18n.Table
	Tickets    *engine.Tickets
	Announcer  *engine.Announcer
	Relay      *engine.Relay
	Translator translate.Translator
}

func New(d Deps, log zerolog.Logger) *Bot {
	return &Bot{
		api:        d.API,
		transport:  d.Transport,
		cfg:        d.Config,
		store:      d.Store,
		cache:      d.Cache,
		i18n:       d.I18n,
		tickets:    d.Tickets,
		announcer:  d.Announcer,
		relay:      d.Relay,
		translator: d.Translator,
		states:     NewStateManager(),
		log:        log.With().Str("component", "bot").Logger(),
	}
}

// Run читает апдейты до отмены ctx.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.log.Info().Str("username", b.api.Self.UserName).Msg("bot is polling")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}
