package store

import (
	"context"
	"errors"
	"time"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) UpsertUser(ctx context.Context, u *model.User) (*model.User, error) {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "full_name", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, u.ID)
}

func (s *gormStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *gormStore) SetUserLanguage(ctx context.Context, id int64, lang string) error {
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("language_code", lang).Error
}

func (s *gormStore) CreateTicket(ctx context.Context, userID int64, lang string) (*model.Ticket, error) {
	t := &model.Ticket{
		UserID:   userID,
		Language: lang,
		Status:   model.TicketStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (s *gormStore) GetTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *gormStore) ListTickets(ctx context.Context, filter map[string]interface{}, limit, offset int) ([]model.Ticket, int64, error) {
	var items []model.Ticket
	var total int64
	tx := s.db.WithContext(ctx).Model(&model.Ticket{})
	for k, v := range filter {
		tx = tx.Where(k, v)
	}
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *gormStore) ActiveTicketByUser(ctx context.Context, userID int64) (*model.Ticket, error) {
	var t model.Ticket
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID,
			[]model.TicketStatus{model.TicketStatusPending, model.TicketStatusInProgress}).
		Order("created_at DESC").
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *gormStore) ActiveTicketByModerator(ctx context.Context, moderatorID int64) (*model.Ticket, error) {
	var t model.Ticket
	err := s.db.WithContext(ctx).
		Where("assigned_moderator_id = ? AND status = ?", moderatorID, model.TicketStatusInProgress).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ClaimTicket переводит pending → in_progress одним условным UPDATE; при
// конкурентных вызовах строку изменяет ровно один из них.
func (s *gormStore) ClaimTicket(ctx context.Context, id uint64, moderatorID int64, takenAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Ticket{}).
		Where("id = ? AND status = ?", id, model.TicketStatusPending).
		Updates(map[string]interface{}{
			"status":                model.TicketStatusInProgress,
			"assigned_moderator_id": moderatorID,
			"taken_at":              takenAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) CloseTicket(ctx context.Context, id uint64, closedAt time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Ticket{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":    model.TicketStatusClosed,
			"closed_at": closedAt,
		}).Error
}

func (s *gormStore) AppendMessage(ctx context.Context, m *model.ConversationMessage) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *gormStore) InitialMessage(ctx context.Context, ticketID uint64) (*model.ConversationMessage, error) {
	var m model.ConversationMessage
	err := s.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("id ASC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *gormStore) ListMessages(ctx context.Context, ticketID uint64) ([]model.ConversationMessage, error) {
	var items []model.ConversationMessage
	err := s.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (s *gormStore) AppendAnnouncement(ctx context.Context, a *model.AnnouncementRecord) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *gormStore) ListAnnouncements(ctx context.Context, ticketID uint64) ([]model.AnnouncementRecord, error) {
	var items []model.AnnouncementRecord
	err := s.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Find(&items).Error
	return items, err
}

func (s *gormStore) ListLanguages(ctx context.Context) ([]model.Language, error) {
	var items []model.Language
	err := s.db.WithContext(ctx).
		Where("available = ?", true).
		Order("code ASC").
		Find(&items).Error
	return items, err
}

func (s *gormStore) ListGroups(ctx context.Context) ([]model.SupportGroup, error) {
	var items []model.SupportGroup
	err := s.db.WithContext(ctx).
		Preload("Languages").
		Find(&items).Error
	return items, err
}

func (s *gormStore) GetGroup(ctx context.Context, id int64) (*model.SupportGroup, error) {
	var g model.SupportGroup
	err := s.db.WithContext(ctx).Preload("Languages").First(&g, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (s *gormStore) UpsertGroup(ctx context.Context, g *model.SupportGroup) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "photo_url"}),
	}).Create(g).Error
}

func (s *gormStore) ListTranslations(ctx context.Context) ([]model.Translation, error) {
	var items []model.Translation
	err := s.db.WithContext(ctx).Find(&items).Error
	return items, err
}

func (s *gormStore) EnqueueNotification(ctx context.Context, n *model.PendingNotification) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"language_code", "role", "text"}),
	}).Create(n).Error
}

func (s *gormStore) ListPendingNotifications(ctx context.Context) ([]model.PendingNotification, error) {
	var items []model.PendingNotification
	err := s.db.WithContext(ctx).Find(&items).Error
	return items, err
}

func (s *gormStore) DeleteNotification(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&model.PendingNotification{}, "id = ?", id).Error
}
