package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/psds-microservice/support-bot/internal/cache"
	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/i18n"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/store"
	"github.com/psds-microservice/support-bot/internal/translate"
	"github.com/rs/zerolog"
)

// Announcer рассылает анонс нового тикета во все группы, подписанные на
// его язык, и после claim сводит все экземпляры анонса к финальному виду.
// Фан-аут best-effort: отказ по одному направлению не трогает остальные.
type Announcer struct {
	store       store.Store
	cache       *cache.Cache
	transport   ChatTransport
	translator  translate.Translator
	i18n        *i18n.Table
	primaryLang string
	log         zerolog.Logger
}

func NewAnnouncer(s store.Store, c *cache.Cache, tr ChatTransport, tl translate.Translator, table *i18n.Table, primaryLang string, log zerolog.Logger) *Announcer {
	return &Announcer{
		store:       s,
		cache:       c,
		transport:   tr,
		translator:  tl,
		i18n:        table,
		primaryLang: primaryLang,
		log:         log.With().Str("component", "announcer").Logger(),
	}
}

func groupServes(g model.SupportGroup, lang string) bool {
	for _, l := range g.Languages {
		if l.LanguageCode == lang {
			return true
		}
	}
	return false
}

// Announce отправляет анонс в каждую группу с языком тикета. Группа,
// подписанная заодно на язык операторов, получает вдогонку машинный
// перевод текста на него. Каждая отправка фиксируется строкой
// AnnouncementRecord с нативным message id — по ней MarkClaimed потом
// найдёт и отредактирует анонс.
func (a *Announcer) Announce(ctx context.Context, ticket *model.Ticket, renderedText, photoFileID string) ([]model.AnnouncementRecord, error) {
	groups, err := a.cache.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list groups: %v", errs.ErrStoreUnavailable, err)
	}

	var destinations []model.SupportGroup
	for _, g := range groups {
		if groupServes(g, ticket.Language) {
			destinations = append(destinations, g)
		}
	}
	if len(destinations) == 0 {
		a.log.Warn().Uint64("ticket_id", ticket.ID).Str("lang", ticket.Language).Msg("no destination groups for ticket language")
		return nil, nil
	}

	// Группа, обслуживающая и язык операторов: её анонс дополняется переводом.
	var primaryDest *model.SupportGroup
	if ticket.Language != a.primaryLang {
		for i := range destinations {
			if groupServes(destinations[i], a.primaryLang) {
				primaryDest = &destinations[i]
				break
			}
		}
	}
	translated := ""
	if primaryDest != nil {
		translated = a.translator.Translate(ctx, renderedText, LanguageName(ctx, a.cache, a.primaryLang))
	}

	markup := &Markup{
		Inline: []InlineButton{{
			Label: a.i18n.T(i18n.KeyTakeRequestButton, ticket.Language),
			Data:  ClaimCallbackData(ticket.ID),
		}},
	}

	var records []model.AnnouncementRecord
	for _, dest := range destinations {
		final := renderedText
		if primaryDest != nil && dest.ID == primaryDest.ID && translated != "" {
			final = renderedText + "\n\n" + translated
		}

		rec := model.AnnouncementRecord{TicketID: ticket.ID, ChatID: dest.ID}
		var msgID int
		var sendErr error
		if photoFileID != "" {
			msgID, sendErr = a.transport.SendPhoto(ctx, dest.ID, photoFileID, final, markup)
			rec.Caption = final
			rec.PhotoFileID = photoFileID
		} else {
			msgID, sendErr = a.transport.SendText(ctx, dest.ID, final, markup)
			rec.Text = final
		}
		if sendErr != nil {
			a.log.Error().Err(sendErr).Uint64("ticket_id", ticket.ID).Int64("chat_id", dest.ID).Msg("send announcement")
			continue
		}
		rec.MessageID = msgID
		if err := a.store.AppendAnnouncement(ctx, &rec); err != nil {
			a.log.Error().Err(err).Uint64("ticket_id", ticket.ID).Int64("chat_id", dest.ID).Msg("record announcement")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// MarkClaimed сводит все анонсы тикета к виду «взят»: в чате, откуда
// пришёл claim, дописывается имя модератора; в остальных — название
// разобравшей группы (анонимность модератора за её пределами). Редактирование
// снимает кнопку. Отказ по одному анонсу логируется и не прерывает цикл.
func (a *Announcer) MarkClaimed(ctx context.Context, ticket *model.Ticket, moderatorLabel string, claimingChatID int64) error {
	records, err := a.store.ListAnnouncements(ctx, ticket.ID)
	if err != nil {
		return fmt.Errorf("%w: list announcements for ticket %d: %v", errs.ErrStoreUnavailable, ticket.ID, err)
	}

	claimedTitle := "Группа"
	if groups, err := a.cache.Groups(ctx); err == nil {
		for _, g := range groups {
			if g.ID == claimingChatID {
				claimedTitle = g.Title
				break
			}
		}
	}

	template := a.i18n.T(i18n.KeyTakenBy, ticket.Language)
	for _, rec := range records {
		label := "✅ " + claimedTitle
		if rec.ChatID == claimingChatID {
			label = moderatorLabel
		}
		suffix := strings.ReplaceAll(template, "{moderator}", label)

		var editErr error
		if rec.PhotoFileID != "" {
			editErr = a.transport.EditCaption(ctx, rec.ChatID, rec.MessageID, rec.Caption+"\n\n"+suffix)
		} else {
			editErr = a.transport.EditText(ctx, rec.ChatID, rec.MessageID, rec.Text+"\n\n"+suffix)
		}
		if editErr != nil {
			a.log.Warn().Err(editErr).Uint64("ticket_id", ticket.ID).Int64("chat_id", rec.ChatID).Msg("edit announcement")
		}
	}
	return nil
}
