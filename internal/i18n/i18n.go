package i18n

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/psds-microservice/support-bot/internal/store"
)

// Ключи таблицы локализации, используемые ядром.
const (
	KeyWelcome              = "welcome"
	KeyWelcomeBack          = "welcome_back"
	KeyWelcomeInfo          = "welcome_info"
	KeyLanguageSelected     = "language_selected"
	KeyContactSupport       = "contact_support"
	KeyEnterRequest         = "enter_request"
	KeyNewRequestText       = "new_request_text"
	KeyRequestSent          = "request_sent"
	KeyTakeRequestButton    = "take_request_button"
	KeyTakenBy              = "taken_by"
	KeyTakenSuccess         = "taken_success"
	KeyOnlyModerator        = "only_moderator"
	KeyAlreadyInProgress    = "already_in_progress"
	KeyAlreadyInProgressMod = "already_in_progress_mod"
	KeyYouAssigned          = "you_assigned"
	KeyModeratorConnected   = "moderator_connected"
	KeyCloseButton          = "close_button"
	KeyNoActiveRequest      = "no_active_request"
	KeyRequestClosed        = "request_closed"
	KeyRequestClosedConfirm = "request_closed_confirm"
	KeyHaveActiveRequest    = "you_have_active_request"
	KeyTryAgainLater        = "try_again_later"
	KeyAssignedAdmin        = "assigned_admin"
	KeyAssignedMod          = "assigned_mod"
	KeyAssignedUser         = "assigned_user"
)

type snapshot struct {
	version int64
	byKey   map[string]map[string]string
}

// Table — таблица строк локализации. Держит неизменяемый снапшот,
// собранный из БД; Reload строит новый снапшот и подменяет его атомарно,
// читатели никогда не видят частично обновлённую таблицу.
type Table struct {
	store store.Store
	snap  atomic.Pointer[snapshot]
}

func NewTable(s store.Store) *Table {
	t := &Table{store: s}
	t.snap.Store(&snapshot{byKey: map[string]map[string]string{}})
	return t
}

// Reload перечитывает таблицу переводов и публикует новый снапшот.
func (t *Table) Reload(ctx context.Context) error {
	rows, err := t.store.ListTranslations(ctx)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}
	byKey := make(map[string]map[string]string, len(rows))
	for _, r := range rows {
		m := byKey[r.Key]
		if m == nil {
			m = make(map[string]string)
			byKey[r.Key] = m
		}
		m[r.Lang] = r.Text
	}
	old := t.snap.Load()
	t.snap.Store(&snapshot{version: old.version + 1, byKey: byKey})
	return nil
}

// Version — номер опубликованного снапшота, растёт на каждом Reload.
func (t *Table) Version() int64 {
	return t.snap.Load().version
}

// T возвращает строку для ключа и языка; при отсутствии — "[key]",
// чтобы дыры в таблице были видны, а не молчали.
func (t *Table) T(key, lang string) string {
	if m := t.snap.Load().byKey[key]; m != nil {
		if s, ok := m[lang]; ok && s != "" {
			return strings.ReplaceAll(s, `\n`, "\n")
		}
	}
	return "[" + key + "]"
}
