package i18n

import (
	"context"
	"errors"
	"testing"

	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/store"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	store.Store
	rows []model.Translation
	err  error
}

func (s *stubStore) ListTranslations(_ context.Context) ([]model.Translation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.rows, nil
}

func TestTableLookup(t *testing.T) {
	s := &stubStore{rows: []model.Translation{
		{Key: "welcome", Lang: "en", Text: "Welcome!"},
		{Key: "welcome", Lang: "ru", Text: "Добро пожаловать!"},
		{Key: "multiline", Lang: "en", Text: `line one\nline two`},
	}}
	table := NewTable(s)
	require.NoError(t, table.Reload(context.Background()))

	require.Equal(t, "Welcome!", table.T("welcome", "en"))
	require.Equal(t, "Добро пожаловать!", table.T("welcome", "ru"))

	t.Run("literal newline markers are expanded", func(t *testing.T) {
		require.Equal(t, "line one\nline two", table.T("multiline", "en"))
	})

	t.Run("missing key or language is visible", func(t *testing.T) {
		require.Equal(t, "[welcome]", table.T("welcome", "de"))
		require.Equal(t, "[no_such_key]", table.T("no_such_key", "en"))
	})

	t.Run("empty table before first reload", func(t *testing.T) {
		fresh := NewTable(s)
		require.Equal(t, "[welcome]", fresh.T("welcome", "en"))
		require.Equal(t, int64(0), fresh.Version())
	})
}

func TestTableReload(t *testing.T) {
	s := &stubStore{rows: []model.Translation{{Key: "welcome", Lang: "en", Text: "Welcome!"}}}
	table := NewTable(s)
	require.NoError(t, table.Reload(context.Background()))
	require.Equal(t, int64(1), table.Version())

	t.Run("new snapshot replaces the old one atomically", func(t *testing.T) {
		s.rows = []model.Translation{{Key: "welcome", Lang: "en", Text: "Hi!"}}
		require.NoError(t, table.Reload(context.Background()))
		require.Equal(t, "Hi!", table.T("welcome", "en"))
		require.Equal(t, int64(2), table.Version())
	})

	t.Run("failed reload keeps the current snapshot", func(t *testing.T) {
		before := table.Version()
		s.err = errors.New("connection refused")
		require.Error(t, table.Reload(context.Background()))
		require.Equal(t, "Hi!", table.T("welcome", "en"))
		require.Equal(t, before, table.Version())
	})
}
