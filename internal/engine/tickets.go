package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/psds-microservice/support-bot/internal/cache"
	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/kafka"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/store"
	"github.com/rs/zerolog"
)

// Tickets — машина состояний тикета: pending → in_progress → closed,
// без пропусков и откатов. Единственная операция с жёсткой гарантией
// атомарности — Claim, и она делегирована условному UPDATE в store.
type Tickets struct {
	store  store.Store
	cache  *cache.Cache
	events kafka.TicketEventProducer
	log    zerolog.Logger
	now    func() time.Time
}

func NewTickets(s store.Store, c *cache.Cache, events kafka.TicketEventProducer, log zerolog.Logger) *Tickets {
	return &Tickets{
		store:  s,
		cache:  c,
		events: events,
		log:    log.With().Str("component", "tickets").Logger(),
		now:    time.Now,
	}
}

// Create создаёт pending-тикет. Возвращает ErrConflict, если у
// пользователя уже есть незакрытый тикет (проверка через кеш —
// advisory, как и договорились в дизайне).
func (t *Tickets) Create(ctx context.Context, userID int64, lang string) (*model.Ticket, error) {
	if _, err := t.cache.ActiveTicketByUser(ctx, userID); err == nil {
		return nil, errs.ErrConflict
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("%w: check active ticket for user %d: %v", errs.ErrStoreUnavailable, userID, err)
	}

	ticket, err := t.store.CreateTicket(ctx, userID, lang)
	if err != nil {
		t.log.Error().Err(err).Int64("user_id", userID).Msg("create ticket")
		return nil, fmt.Errorf("%w: create ticket for user %d: %v", errs.ErrStoreUnavailable, userID, err)
	}
	t.cache.InvalidateActiveTicketByUser(userID)
	t.log.Info().Uint64("ticket_id", ticket.ID).Int64("user_id", userID).Str("lang", lang).Msg("ticket created")
	t.events.ProduceTicketEvent(ctx, kafka.EventTicketCreated, map[string]interface{}{
		"ticket_id": ticket.ID,
		"user_id":   userID,
		"language":  lang,
	})
	return ticket, nil
}

// Claim — критическая точка гонки: из N одновременных модераторов
// выигрывает ровно один, остальным возвращается false без ошибки.
func (t *Tickets) Claim(ctx context.Context, ticketID uint64, moderatorID int64) (bool, error) {
	ok, err := t.store.ClaimTicket(ctx, ticketID, moderatorID, t.now())
	if err != nil {
		t.log.Error().Err(err).Uint64("ticket_id", ticketID).Int64("moderator_id", moderatorID).Msg("claim ticket")
		return false, fmt.Errorf("%w: claim ticket %d: %v", errs.ErrStoreUnavailable, ticketID, err)
	}
	if !ok {
		return false, nil
	}
	t.cache.InvalidateTicket(ticketID)
	t.cache.InvalidateActiveTicketByModerator(moderatorID)
	t.log.Info().Uint64("ticket_id", ticketID).Int64("moderator_id", moderatorID).Msg("ticket claimed")
	t.events.ProduceTicketEvent(ctx, kafka.EventTicketClaimed, map[string]interface{}{
		"ticket_id":    ticketID,
		"moderator_id": moderatorID,
	})
	return true, nil
}

// Close закрывает тикет. Защита от повторного закрытия — на вызывающем:
// он обязан сперва убедиться в активном назначении.
func (t *Tickets) Close(ctx context.Context, ticket *model.Ticket) error {
	if err := t.store.CloseTicket(ctx, ticket.ID, t.now()); err != nil {
		t.log.Error().Err(err).Uint64("ticket_id", ticket.ID).Msg("close ticket")
		return fmt.Errorf("%w: close ticket %d: %v", errs.ErrStoreUnavailable, ticket.ID, err)
	}
	// Ключ «активный тикет модератора» выбивается синхронно: иначе второй
	// взгляд модератора увидит ложное «нет активного тикета».
	if ticket.AssignedModeratorID != nil {
		t.cache.InvalidateActiveTicketByModerator(*ticket.AssignedModeratorID)
	}
	t.cache.InvalidateActiveTicketByUser(ticket.UserID)
	t.cache.InvalidateTicket(ticket.ID)
	t.log.Info().Uint64("ticket_id", ticket.ID).Msg("ticket closed")
	t.events.ProduceTicketEvent(ctx, kafka.EventTicketClosed, map[string]interface{}{
		"ticket_id": ticket.ID,
		"user_id":   ticket.UserID,
	})
	return nil
}
