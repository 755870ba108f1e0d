package store

import (
	"context"
	"time"

	"github.com/psds-microservice/support-bot/internal/model"
)

// Store — граница персистентности ядра. Интерфейс нужен для подмены
// фейком в тестах движка и кеша.
type Store interface {
	UpsertUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	SetUserLanguage(ctx context.Context, id int64, lang string) error

	CreateTicket(ctx context.Context, userID int64, lang string) (*model.Ticket, error)
	GetTicket(ctx context.Context, id uint64) (*model.Ticket, error)
	ListTickets(ctx context.Context, filter map[string]interface{}, limit, offset int) ([]model.Ticket, int64, error)
	ActiveTicketByUser(ctx context.Context, userID int64) (*model.Ticket, error)
	ActiveTicketByModerator(ctx context.Context, moderatorID int64) (*model.Ticket, error)
	// ClaimTicket — единственная операция с жёсткой гарантией атомарности:
	// один условный UPDATE, победитель ровно один, проигравшие получают false.
	ClaimTicket(ctx context.Context, id uint64, moderatorID int64, takenAt time.Time) (bool, error)
	CloseTicket(ctx context.Context, id uint64, closedAt time.Time) error

	AppendMessage(ctx context.Context, m *model.ConversationMessage) error
	InitialMessage(ctx context.Context, ticketID uint64) (*model.ConversationMessage, error)
	ListMessages(ctx context.Context, ticketID uint64) ([]model.ConversationMessage, error)

	AppendAnnouncement(ctx context.Context, a *model.AnnouncementRecord) error
	ListAnnouncements(ctx context.Context, ticketID uint64) ([]model.AnnouncementRecord, error)

	ListLanguages(ctx context.Context) ([]model.Language, error)
	ListGroups(ctx context.Context) ([]model.SupportGroup, error)
	GetGroup(ctx context.Context, id int64) (*model.SupportGroup, error)
	UpsertGroup(ctx context.Context, g *model.SupportGroup) error

	ListTranslations(ctx context.Context) ([]model.Translation, error)

	EnqueueNotification(ctx context.Context, n *model.PendingNotification) error
	ListPendingNotifications(ctx context.Context) ([]model.PendingNotification, error)
	DeleteNotification(ctx context.Context, id int64) error
}
