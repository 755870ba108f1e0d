package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/i18n"
	"github.com/psds-microservice/support-bot/internal/model"
)

// fakeStore — in-memory реализация store.Store для тестов движка.
type fakeStore struct {
	mu            sync.Mutex
	users         map[int64]*model.User
	tickets       map[uint64]*model.Ticket
	nextTicketID  uint64
	messages      []model.ConversationMessage
	announcements []model.AnnouncementRecord
	languages     []model.Language
	groups        []model.SupportGroup
	translations  []model.Translation
	notifications []model.PendingNotification

	claimErr error
	closeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[int64]*model.User),
		tickets: make(map[uint64]*model.Ticket),
	}
}

func (f *fakeStore) UpsertUser(_ context.Context, u *model.User) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.users[u.ID]; ok {
		existing.Username = u.Username
		existing.FullName = u.FullName
		return existing, nil
	}
	cp := *u
	if cp.Role == "" {
		cp.Role = model.RoleUser
	}
	f.users[u.ID] = &cp
	return &cp, nil
}

func (f *fakeStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) SetUserLanguage(_ context.Context, id int64, lang string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.LanguageCode = lang
	return nil
}

func (f *fakeStore) CreateTicket(_ context.Context, userID int64, lang string) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTicketID++
	t := &model.Ticket{
		ID:        f.nextTicketID,
		UserID:    userID,
		Language:  lang,
		Status:    model.TicketStatusPending,
		CreatedAt: time.Now(),
	}
	f.tickets[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeStore) GetTicket(_ context.Context, id uint64) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListTickets(_ context.Context, _ map[string]interface{}, _, _ int) ([]model.Ticket, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Ticket
	for _, t := range f.tickets {
		out = append(out, *t)
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) ActiveTicketByUser(_ context.Context, userID int64) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.UserID == userID && t.Status != model.TicketStatusClosed {
			cp := *t
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeStore) ActiveTicketByModerator(_ context.Context, moderatorID int64) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tickets {
		if t.Status == model.TicketStatusInProgress && t.AssignedModeratorID != nil && *t.AssignedModeratorID == moderatorID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeStore) ClaimTicket(_ context.Context, id uint64, moderatorID int64, takenAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, f.claimErr
	}
	t, ok := f.tickets[id]
	if !ok || t.Status != model.TicketStatusPending {
		return false, nil
	}
	t.Status = model.TicketStatusInProgress
	t.AssignedModeratorID = &moderatorID
	t.TakenAt = &takenAt
	return true, nil
}

func (f *fakeStore) CloseTicket(_ context.Context, id uint64, closedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeErr != nil {
		return f.closeErr
	}
	t, ok := f.tickets[id]
	if !ok {
		return errs.ErrNotFound
	}
	t.Status = model.TicketStatusClosed
	t.ClosedAt = &closedAt
	return nil
}

func (f *fakeStore) AppendMessage(_ context.Context, m *model.ConversationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	cp.ID = uint64(len(f.messages) + 1)
	f.messages = append(f.messages, cp)
	return nil
}

func (f *fakeStore) InitialMessage(_ context.Context, ticketID uint64) (*model.ConversationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].TicketID == ticketID {
			cp := f.messages[i]
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeStore) ListMessages(_ context.Context, ticketID uint64) ([]model.ConversationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ConversationMessage
	for _, m := range f.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendAnnouncement(_ context.Context, a *model.AnnouncementRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announcements = append(f.announcements, *a)
	return nil
}

func (f *fakeStore) ListAnnouncements(_ context.Context, ticketID uint64) ([]model.AnnouncementRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AnnouncementRecord
	for _, a := range f.announcements {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListLanguages(_ context.Context) ([]model.Language, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Language(nil), f.languages...), nil
}

func (f *fakeStore) ListGroups(_ context.Context) ([]model.SupportGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SupportGroup(nil), f.groups...), nil
}

func (f *fakeStore) GetGroup(_ context.Context, id int64) (*model.SupportGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.groups {
		if f.groups[i].ID == id {
			cp := f.groups[i]
			return &cp, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeStore) UpsertGroup(_ context.Context, g *model.SupportGroup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.groups {
		if f.groups[i].ID == g.ID {
			f.groups[i] = *g
			return nil
		}
	}
	f.groups = append(f.groups, *g)
	return nil
}

func (f *fakeStore) ListTranslations(_ context.Context) ([]model.Translation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Translation(nil), f.translations...), nil
}

func (f *fakeStore) EnqueueNotification(_ context.Context, n *model.PendingNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, *n)
	return nil
}

func (f *fakeStore) ListPendingNotifications(_ context.Context) ([]model.PendingNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PendingNotification(nil), f.notifications...), nil
}

func (f *fakeStore) DeleteNotification(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications = append(f.notifications[:i], f.notifications[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

type sentMessage struct {
	ChatID      int64
	Text        string
	Caption     string
	PhotoFileID string
	Markup      *Markup
}

type editedMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	IsCaption bool
}

// fakeTransport запоминает все отправки и редактирования; для чатов из
// failChats возвращает ошибку.
type fakeTransport struct {
	mu        sync.Mutex
	sent      []sentMessage
	edits     []editedMessage
	answers   []string
	nextMsgID int
	failChats map[int64]bool
	editErrs  map[int64]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		failChats: make(map[int64]bool),
		editErrs:  make(map[int64]error),
	}
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string, markup *Markup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failChats[chatID] {
		return 0, fmt.Errorf("send to %d failed", chatID)
	}
	f.nextMsgID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, Markup: markup})
	return f.nextMsgID, nil
}

func (f *fakeTransport) SendPhoto(_ context.Context, chatID int64, photoFileID, caption string, markup *Markup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failChats[chatID] {
		return 0, fmt.Errorf("send to %d failed", chatID)
	}
	f.nextMsgID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Caption: caption, PhotoFileID: photoFileID, Markup: markup})
	return f.nextMsgID, nil
}

func (f *fakeTransport) EditText(_ context.Context, chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editErrs[chatID]; err != nil {
		return err
	}
	f.edits = append(f.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (f *fakeTransport) EditCaption(_ context.Context, chatID int64, messageID int, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editErrs[chatID]; err != nil {
		return err
	}
	f.edits = append(f.edits, editedMessage{ChatID: chatID, MessageID: messageID, Text: caption, IsCaption: true})
	return nil
}

func (f *fakeTransport) AnswerCallback(_ context.Context, callbackID, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeTransport) sentTo(chatID int64) []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMessage
	for _, m := range f.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// fakeTranslator детерминированно помечает перевод, чтобы тесты отличали
// его от оригинала.
type fakeTranslator struct{}

func (fakeTranslator) Translate(_ context.Context, text, langName string) string {
	return "<" + langName + ">" + text
}

// fakeEvents собирает имена событий жизненного цикла.
type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) ProduceTicketEvent(_ context.Context, event string, _ map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeEvents) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// newTestTable собирает таблицу локализации из пар (ключ, язык, текст).
func newTestTable(rows ...[3]string) *i18n.Table {
	s := newFakeStore()
	for _, r := range rows {
		s.translations = append(s.translations, model.Translation{Key: r[0], Lang: r[1], Text: r[2]})
	}
	t := i18n.NewTable(s)
	if err := t.Reload(context.Background()); err != nil {
		panic(err)
	}
	return t
}
