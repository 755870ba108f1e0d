package poller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/psds-microservice/support-bot/internal/engine"
	"github.com/psds-microservice/support-bot/internal/i18n"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	store.Store
	mu      sync.Mutex
	pending []model.PendingNotification
	listErr error
}

func (s *stubStore) ListTranslations(_ context.Context) ([]model.Translation, error) {
	return []model.Translation{
		{Key: i18n.KeyAssignedAdmin, Lang: "en", Text: "You are an admin now"},
		{Key: i18n.KeyAssignedMod, Lang: "en", Text: "You are a moderator now"},
		{Key: i18n.KeyAssignedUser, Lang: "en", Text: "You are a user now"},
		{Key: i18n.KeyContactSupport, Lang: "en", Text: "Contact support"},
	}, nil
}

func (s *stubStore) ListPendingNotifications(_ context.Context) ([]model.PendingNotification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]model.PendingNotification(nil), s.pending...), nil
}

func (s *stubStore) DeleteNotification(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pending {
		if s.pending[i].ID == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("notification %d not found", id)
}

func (s *stubStore) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

type sentMessage struct {
	ChatID int64
	Text   string
	Markup *engine.Markup
}

type stubTransport struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]bool
}

func (t *stubTransport) SendText(_ context.Context, chatID int64, text string, markup *engine.Markup) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failFor[chatID] {
		return 0, fmt.Errorf("blocked by user %d", chatID)
	}
	t.sent = append(t.sent, sentMessage{ChatID: chatID, Text: text, Markup: markup})
	return len(t.sent), nil
}

func (t *stubTransport) SendPhoto(_ context.Context, _ int64, _, _ string, _ *engine.Markup) (int, error) {
	return 0, nil
}
func (t *stubTransport) EditText(_ context.Context, _ int64, _ int, _ string) error    { return nil }
func (t *stubTransport) EditCaption(_ context.Context, _ int64, _ int, _ string) error { return nil }
func (t *stubTransport) AnswerCallback(_ context.Context, _, _ string, _ bool) error   { return nil }

func (t *stubTransport) sentTo(chatID int64) []sentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []sentMessage
	for _, m := range t.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func newPoller(t *testing.T, s *stubStore, tr *stubTransport) *StatusPoller {
	t.Helper()
	table := i18n.NewTable(s)
	require.NoError(t, table.Reload(context.Background()))
	return New(s, tr, table, "https://panel.example", 10*time.Millisecond, zerolog.Nop())
}

func TestDrainOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers role-specific notifications and empties the queue", func(t *testing.T) {
		s := &stubStore{pending: []model.PendingNotification{
			{ID: 1, LanguageCode: "en", Role: model.RoleAdmin, Text: "login: a@example.com"},
			{ID: 2, LanguageCode: "en", Role: model.RoleModerator},
			{ID: 3, LanguageCode: "en", Role: model.RoleUser},
		}}
		tr := &stubTransport{}
		p := newPoller(t, s, tr)

		p.DrainOnce(ctx)
		require.Zero(t, s.remaining())

		admin := tr.sentTo(1)
		require.Len(t, admin, 1)
		require.Contains(t, admin[0].Text, "You are an admin now")
		require.Contains(t, admin[0].Text, "https://panel.example")
		require.Contains(t, admin[0].Text, "login: a@example.com")
		require.True(t, admin[0].Markup.RemoveReply)

		mod := tr.sentTo(2)
		require.Len(t, mod, 1)
		require.Equal(t, "You are a moderator now", mod[0].Text)
		require.True(t, mod[0].Markup.RemoveReply)

		user := tr.sentTo(3)
		require.Len(t, user, 1)
		require.Equal(t, "You are a user now", user[0].Text)
		require.Equal(t, []string{"Contact support"}, user[0].Markup.ReplyButtons)
	})

	t.Run("entry is deleted even when delivery fails", func(t *testing.T) {
		s := &stubStore{pending: []model.PendingNotification{
			{ID: 1, LanguageCode: "en", Role: model.RoleModerator},
			{ID: 2, LanguageCode: "en", Role: model.RoleModerator},
		}}
		tr := &stubTransport{failFor: map[int64]bool{1: true}}
		p := newPoller(t, s, tr)

		p.DrainOnce(ctx)
		require.Zero(t, s.remaining())
		require.Empty(t, tr.sentTo(1))
		require.Len(t, tr.sentTo(2), 1)
	})

	t.Run("admin without credentials gets no panel link", func(t *testing.T) {
		s := &stubStore{pending: []model.PendingNotification{
			{ID: 1, LanguageCode: "en", Role: model.RoleAdmin},
		}}
		tr := &stubTransport{}
		p := newPoller(t, s, tr)

		p.DrainOnce(ctx)
		msgs := tr.sentTo(1)
		require.Len(t, msgs, 1)
		require.Equal(t, "You are an admin now", msgs[0].Text)
	})
}

func TestRun(t *testing.T) {
	t.Run("polls until the context is cancelled", func(t *testing.T) {
		s := &stubStore{pending: []model.PendingNotification{
			{ID: 1, LanguageCode: "en", Role: model.RoleModerator},
		}}
		tr := &stubTransport{}
		p := newPoller(t, s, tr)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			p.Run(ctx)
			close(done)
		}()

		require.Eventually(t, func() bool { return s.remaining() == 0 }, 2*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("poller did not stop on cancel")
		}
	})
}
