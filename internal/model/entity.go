package model

import "time"

type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// User — участник: Telegram ID как первичный ключ. Роль и язык читаются
// намного чаще, чем пишутся, поэтому кешируются.
type User struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"type:varchar(100)" json:"username,omitempty"`
	FullName     string `gorm:"type:varchar(255)" json:"full_name,omitempty"`
	LanguageCode string `gorm:"type:varchar(5)" json:"language_code,omitempty"`
	Role         Role   `gorm:"type:varchar(50);default:'user'" json:"role"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ticket — обращение в поддержку: pending → in_progress → closed.
// AssignedModeratorID заполняется только успешным conditional claim.
type Ticket struct {
	ID                  uint64       `gorm:"primaryKey" json:"id"`
	UserID              int64        `gorm:"index;not null" json:"user_id"`
	AssignedModeratorID *int64       `gorm:"index" json:"assigned_moderator_id,omitempty"`
	Language            string       `gorm:"type:varchar(5);not null" json:"language"`
	Status              TicketStatus `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`

	CreatedAt time.Time  `json:"created_at"`
	TakenAt   *time.Time `json:"taken_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// ConversationMessage — append-only история переписки по тикету.
type ConversationMessage struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	TicketID    uint64    `gorm:"index;not null" json:"ticket_id"`
	SenderID    int64     `gorm:"not null" json:"sender_id"`
	Text        string    `gorm:"type:text" json:"text,omitempty"`
	Caption     string    `gorm:"type:text" json:"caption,omitempty"`
	PhotoFileID string    `gorm:"type:varchar(255)" json:"photo_file_id,omitempty"`
	Timestamp   time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

// AnnouncementRecord — одна строка на пару (тикет, чат назначения): по ней
// Announcer находит и редактирует каждый экземпляр анонса. Каскадно
// удаляется вместе с тикетом.
type AnnouncementRecord struct {
	TicketID    uint64 `gorm:"primaryKey" json:"ticket_id"`
	ChatID      int64  `gorm:"primaryKey" json:"chat_id"`
	MessageID   int    `gorm:"not null" json:"message_id"`
	Text        string `gorm:"type:text" json:"text,omitempty"`
	Caption     string `gorm:"type:text" json:"caption,omitempty"`
	PhotoFileID string `gorm:"type:varchar(255)" json:"photo_file_id,omitempty"`
}

// SupportGroup — чат назначения для фан-аута анонсов.
type SupportGroup struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Title    string `gorm:"type:varchar(255)" json:"title"`
	PhotoURL string `gorm:"type:varchar(512)" json:"photo_url,omitempty"`

	Languages []SupportGroupLanguage `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"languages,omitempty"`
}

type SupportGroupLanguage struct {
	GroupID      int64  `gorm:"primaryKey" json:"group_id"`
	LanguageCode string `gorm:"primaryKey;type:varchar(5)" json:"language_code"`
}

// Language — каталог поддерживаемых языков.
type Language struct {
	Code      string `gorm:"primaryKey;type:varchar(10)" json:"code"`
	Name      string `gorm:"type:varchar(50);not null" json:"name"`
	NameRu    string `gorm:"type:varchar(50);not null" json:"name_ru"`
	Emoji     string `gorm:"type:varchar(10)" json:"emoji,omitempty"`
	Available bool   `gorm:"default:true" json:"available"`
}

// Translation — строка таблицы локализации (ключ, язык, текст).
type Translation struct {
	ID   uint64 `gorm:"primaryKey" json:"id"`
	Key  string `gorm:"type:varchar(100);index" json:"key"`
	Lang string `gorm:"type:varchar(5)" json:"lang"`
	Text string `gorm:"type:text" json:"text"`
}

// PendingNotification — очередь разовых уведомлений (назначение роли,
// выдача учётных данных); Status Poller удаляет запись после попытки
// доставки.
type PendingNotification struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	LanguageCode string `gorm:"type:varchar(5)" json:"language_code"`
	Role         Role   `gorm:"type:varchar(50)" json:"role"`
	Text         string `gorm:"type:text" json:"text,omitempty"`
}

func (PendingNotification) TableName() string { return "pending_notifications" }

// Credentials — выданные пользователю учётные данные админ-панели.
type Credentials struct {
	UserID       int64  `gorm:"primaryKey" json:"user_id"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
}

func (Credentials) TableName() string { return "credentials" }
