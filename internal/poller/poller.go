package poller

import (
	"context"
	"time"

	"github.com/psds-microservice/support-bot/internal/engine"
	"github.com/psds-microservice/support-bot/internal/i18n"
	"github.com/psds-microservice/support-bot/internal/model"
	"github.com/psds-microservice/support-bot/internal/store"
	"github.com/rs/zerolog"
)

// StatusPoller — фоновый цикл, разгребающий очередь разовых уведомлений
// (подтверждение роли, выдача учётных данных). Доставка at-most-once:
// запись удаляется после попытки, отказ по одной записи логируется и не
// блокирует остальные. Цикл останавливается отменой ctx.
type StatusPoller struct {
	store     store.Store
	transport engine.ChatTransport
	i18n      *i18n.Table
	// adminPanelURL дописывается к уведомлению о назначении роли admin.
	adminPanelURL string
	interval      time.Duration
	log           zerolog.Logger
}

func New(s store.Store, tr engine.ChatTransport, table *i18n.Table, adminPanelURL string, interval time.Duration, log zerolog.Logger) *StatusPoller {
	return &StatusPoller{
		store:         s,
		transport:     tr,
		i18n:          table,
		adminPanelURL: adminPanelURL,
		interval:      interval,
		log:           log.With().Str("component", "status_poller").Logger(),
	}
}

// Run крутит цикл опроса до отмены ctx.
func (p *StatusPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.DrainOnce(ctx)
		}
	}
}

// DrainOnce — один проход по очереди уведомлений.
func (p *StatusPoller) DrainOnce(ctx context.Context) {
	entries, err := p.store.ListPendingNotifications(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("list pending notifications")
		return
	}
	for _, entry := range entries {
		p.deliver(ctx, entry)
		// Удаляем после попытки, чтобы не дублировать доставку.
		if err := p.store.DeleteNotification(ctx, entry.ID); err != nil {
			p.log.Error().Err(err).Int64("recipient_id", entry.ID).Msg("delete notification")
		}
	}
}

func (p *StatusPoller) deliver(ctx context.Context, entry model.PendingNotification) {
	var text string
	var markup *engine.Markup

	switch entry.Role {
	case model.RoleAdmin:
		text = p.i18n.T(i18n.KeyAssignedAdmin, entry.LanguageCode)
		if entry.Text != "" {
			if p.adminPanelURL != "" {
				text += "\n\n" + p.adminPanelURL
			}
			text += "\n\n" + entry.Text
		}
		markup = &engine.Markup{RemoveReply: true}
	case model.RoleModerator:
		text = p.i18n.T(i18n.KeyAssignedMod, entry.LanguageCode)
		markup = &engine.Markup{RemoveReply: true}
	default:
		text = p.i18n.T(i18n.KeyAssignedUser, entry.LanguageCode)
		markup = &engine.Markup{ReplyButtons: []string{p.i18n.T(i18n.KeyContactSupport, entry.LanguageCode)}}
	}

	if _, err := p.transport.SendText(ctx, entry.ID, text, markup); err != nil {
		p.log.Error().Err(err).Int64("recipient_id", entry.ID).Str("role", string(entry.Role)).Msg("deliver notification")
		return
	}
	p.log.Info().Int64("recipient_id", entry.ID).Str("role", string(entry.Role)).Msg("notification delivered")
}
