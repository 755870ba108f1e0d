package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/store"
)

// TTL по волатильности данных: пользователи и активные тикеты — минута,
// справочники (языки, группы) — пять минут, точечные выборки по тикету —
// полминуты.
const (
	userTTL      = 60 * time.Second
	ticketTTL    = 60 * time.Second
	lookupTTL    = 30 * time.Second
	referenceTTL = 300 * time.Second
)

type entry struct {
	value    interface{}
	notFound bool
	expires  time.Time
}

// Cache — read-through TTL-мемоизация поверх Store. Промах или истечение
// всегда проваливаются в store и перезаполняют запись; попадание store не
// трогает. Исход «не найдено» тоже кешируется — он штатный.
//
// Кеш только оптимизация: авторитетная гарантия claim остаётся за условным
// UPDATE в store, кешированное «нет активного тикета» решением не является.
type Cache struct {
	store store.Store

	mu      sync.RWMutex
	entries map[string]entry

	now func() time.Time
}

func New(s store.Store) *Cache {
	return &Cache{
		store:   s,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *Cache) fetch(key string, ttl time.Duration, load func() (interface{}, error)) (interface{}, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		if e.notFound {
			return nil, errs.ErrNotFound
		}
		return e.value, nil
	}

	v, err := load()
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = entry{
		value:    v,
		notFound: err != nil,
		expires:  c.now().Add(ttl),
	}
	c.mu.Unlock()
	if err != nil {
		return nil, errs.ErrNotFound
	}
	return v, nil
}

func (c *Cache) invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

func userKey(id int64) string              { return fmt.Sprintf("user:%d", id) }
func activeByUserKey(id int64) string      { return fmt.Sprintf("active_ticket_by_user:%d", id) }
func activeByModeratorKey(id int64) string { return fmt.Sprintf("active_ticket_by_moderator:%d", id) }
func ticketKey(id uint64) string           { return fmt.Sprintf("ticket:%d", id) }
func initialMessageKey(id uint64) string   { return fmt.Sprintf("initial_message:%d", id) }

func (c *Cache) User(ctx context.Context, id int64) (*model.User, error) {
	v, err := c.fetch(userKey(id), userTTL, func() (interface{}, error) {
		return c.store.GetUser(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.User), nil
}

func (c *Cache) ActiveTicketByUser(ctx context.Context, userID int64) (*model.Ticket, error) {
	v, err := c.fetch(activeByUserKey(userID), ticketTTL, func() (interface{}, error) {
		return c.store.ActiveTicketByUser(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Ticket), nil
}

func (c *Cache) ActiveTicketByModerator(ctx context.Context, moderatorID int64) (*model.Ticket, error) {
	v, err := c.fetch(activeByModeratorKey(moderatorID), ticketTTL, func() (interface{}, error) {
		return c.store.ActiveTicketByModerator(ctx, moderatorID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Ticket), nil
}

func (c *Cache) Ticket(ctx context.Context, id uint64) (*model.Ticket, error) {
	v, err := c.fetch(ticketKey(id), lookupTTL, func() (interface{}, error) {
		return c.store.GetTicket(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Ticket), nil
}

func (c *Cache) InitialMessage(ctx context.Context, ticketID uint64) (*model.ConversationMessage, error) {
	v, err := c.fetch(initialMessageKey(ticketID), lookupTTL, func() (interface{}, error) {
		return c.store.InitialMessage(ctx, ticketID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ConversationMessage), nil
}

func (c *Cache) Languages(ctx context.Context) ([]model.Language, error) {
	v, err := c.fetch("languages", referenceTTL, func() (interface{}, error) {
		return c.store.ListLanguages(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Language), nil
}

func (c *Cache) Groups(ctx context.Context) ([]model.SupportGroup, error) {
	v, err := c.fetch("groups", referenceTTL, func() (interface{}, error) {
		return c.store.ListGroups(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.SupportGroup), nil
}

// Инвалидация: каждая мутация, меняющая видимое состояние кешируемой
// сущности, обязана синхронно выбить соответствующие ключи.

func (c *Cache) InvalidateUser(id int64) { c.invalidate(userKey(id)) }

func (c *Cache) InvalidateActiveTicketByUser(userID int64) {
	c.invalidate(activeByUserKey(userID))
}

func (c *Cache) InvalidateActiveTicketByModerator(moderatorID int64) {
	c.invalidate(activeByModeratorKey(moderatorID))
}

func (c *Cache) InvalidateTicket(id uint64) { c.invalidate(ticketKey(id)) }

func (c *Cache) InvalidateGroups() { c.invalidate("groups") }
