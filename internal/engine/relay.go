package engine

import (
	"context"
	"errors"

	"github.com/psds-microservice/support-bot/internal/cache"
	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/i18n"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/store"
	"github.com/psds-microservice/support-bot/internal/translate"
	"github.com/rs/zerolog"
)

// persistQueueSize — ёмкость очереди фоновой записи истории. Переполнение
// роняет запись (at-most-once) с логом, но не доставку.
const persistQueueSize = 256

// Inbound — входящий ход беседы из личного чата.
type Inbound struct {
	SenderID     int64
	ChatID       int64
	Text         string
	Caption      string
	PhotoFileID  string
	MediaGroupID string
}

func (m Inbound) content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// Relay пересылает ходы беседы между пользователем и назначенным
// модератором активного тикета, переводя текст при несовпадении языков.
// Запись истории — фоновая: доставка получателю её не ждёт.
type Relay struct {
	store      store.Store
	cache      *cache.Cache
	transport  ChatTransport
	translator translate.Translator
	i18n       *i18n.Table
	tickets    *Tickets
	log        zerolog.Logger

	persistCh chan *model.ConversationMessage
}

func NewRelay(s store.Store, c *cache.Cache, tr ChatTransport, tl translate.Translator, table *i18n.Table, tickets *Tickets, log zerolog.Logger) *Relay {
	return &Relay{
		store:      s,
		cache:      c,
		transport:  tr,
		translator: tl,
		i18n:       table,
		tickets:    tickets,
		log:        log.With().Str("component", "relay").Logger(),
		persistCh:  make(chan *model.ConversationMessage, persistQueueSize),
	}
}

// Run — воркер фоновой записи истории; живёт до отмены ctx.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-r.persistCh:
			if err := r.store.AppendMessage(context.WithoutCancel(ctx), m); err != nil {
				r.log.Error().Err(err).Uint64("ticket_id", m.TicketID).Int64("sender_id", m.SenderID).Msg("persist relayed message")
			}
		}
	}
}

// EnqueueHistory ставит ход в очередь фоновой записи, не блокируясь.
func (r *Relay) EnqueueHistory(m *model.ConversationMessage) {
	select {
	case r.persistCh <- m:
	default:
		r.log.Error().Uint64("ticket_id", m.TicketID).Msg("persist queue full, dropping history record")
	}
}

// HandlePrivateMessage обрабатывает один ход беседы. Политика фильтрации:
// фото без подписи и элементы медиагрупп не ретранслируются; неизвестная
// роль отправителя молча игнорируется.
func (r *Relay) HandlePrivateMessage(ctx context.Context, msg Inbound) error {
	if msg.MediaGroupID != "" {
		return nil
	}
	if msg.PhotoFileID != "" && msg.Caption == "" {
		return nil
	}

	sender, err := r.cache.User(ctx, msg.SenderID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}

	switch sender.Role {
	case model.RoleModerator, model.RoleAdmin:
		return r.handleModeratorTurn(ctx, sender, msg)
	case model.RoleUser:
		return r.handleUserTurn(ctx, sender, msg)
	default:
		return nil
	}
}

func (r *Relay) handleModeratorTurn(ctx context.Context, sender *model.User, msg Inbound) error {
	ticket, err := r.cache.ActiveTicketByModerator(ctx, sender.ID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	// Текст, совпадающий с локализованной кнопкой «закрыть», — команда, а не ход.
	if msg.Text != "" && msg.Text == r.i18n.T(i18n.KeyCloseButton, sender.LanguageCode) {
		if ticket == nil {
			_, sendErr := r.transport.SendText(ctx, sender.ID, r.i18n.T(i18n.KeyNoActiveRequest, sender.LanguageCode), nil)
			return sendErr
		}
		return r.closeTicket(ctx, sender, ticket)
	}

	if ticket == nil {
		return nil
	}

	user, err := r.cache.User(ctx, ticket.UserID)
	if err != nil {
		return err
	}
	return r.forward(ctx, sender, user.ID, user.LanguageCode, ticket, msg)
}

func (r *Relay) handleUserTurn(ctx context.Context, sender *model.User, msg Inbound) error {
	ticket, err := r.cache.ActiveTicketByUser(ctx, sender.ID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}
	if ticket.AssignedModeratorID == nil {
		// До claim собеседника нет: группа уже уведомлена анонсом.
		return nil
	}
	moderator, err := r.cache.User(ctx, *ticket.AssignedModeratorID)
	if err != nil {
		return err
	}
	return r.forward(ctx, sender, moderator.ID, moderator.LanguageCode, ticket, msg)
}

// forward доставляет ход получателю (перевод — если языки различаются,
// получателю уходит только перевод) и ставит в фон запись истории,
// в которой оригинал и перевод склеены переводом строки.
func (r *Relay) forward(ctx context.Context, sender *model.User, targetID int64, targetLang string, ticket *model.Ticket, msg Inbound) error {
	original := msg.content()
	delivered := original
	stored := original
	if original != "" && sender.LanguageCode != targetLang {
		translated := r.translator.Translate(ctx, original, LanguageName(ctx, r.cache, targetLang))
		delivered = translated
		if translated != original {
			stored = original + "\n" + translated
		}
	}

	var sendErr error
	if msg.PhotoFileID != "" {
		_, sendErr = r.transport.SendPhoto(ctx, targetID, msg.PhotoFileID, "📨 "+delivered, nil)
	} else {
		_, sendErr = r.transport.SendText(ctx, targetID, "📨 "+delivered, nil)
	}
	if sendErr != nil {
		r.log.Error().Err(sendErr).Uint64("ticket_id", ticket.ID).Int64("target_id", targetID).Msg("forward turn")
		return sendErr
	}

	record := &model.ConversationMessage{
		TicketID: ticket.ID,
		SenderID: sender.ID,
	}
	if msg.PhotoFileID != "" {
		record.PhotoFileID = msg.PhotoFileID
		record.Caption = stored
	} else {
		record.Text = stored
	}
	r.EnqueueHistory(record)
	return nil
}

func (r *Relay) closeTicket(ctx context.Context, moderator *model.User, ticket *model.Ticket) error {
	if err := r.tickets.Close(ctx, ticket); err != nil {
		return err
	}

	confirm := r.i18n.T(i18n.KeyRequestClosedConfirm, moderator.LanguageCode)
	if _, err := r.transport.SendText(ctx, moderator.ID, confirm, &Markup{RemoveReply: true}); err != nil {
		r.log.Warn().Err(err).Int64("moderator_id", moderator.ID).Msg("notify moderator on close")
	}

	notice := r.i18n.T(i18n.KeyRequestClosed, ticket.Language)
	userMarkup := &Markup{ReplyButtons: []string{r.i18n.T(i18n.KeyContactSupport, ticket.Language)}}
	if _, err := r.transport.SendText(ctx, ticket.UserID, notice, userMarkup); err != nil {
		r.log.Warn().Err(err).Int64("user_id", ticket.UserID).Msg("notify user on close")
	}
	return nil
}
