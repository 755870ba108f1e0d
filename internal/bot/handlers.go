package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/psds-microservice/support-bot/internal/engine"
	"github.com/psds-microservice/support-bot/internal/errs"
	"github.com/psds-microservice/support-bot/internal/i18n"
	"github.com/psds-microservice/support-bot/internal/model"
)

func photoFileID(msg *tgbotapi.Message) string {
	if len(msg.Photo) == 0 {
		return ""
	}
	// Последний элемент — самое крупное превью.
	return msg.Photo[len(msg.Photo)-1].FileID
}

func moderatorLabel(u *model.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

func (b *Bot) mainKeyboard(lang string) *engine.Markup {
	return &engine.Markup{ReplyButtons: []string{b.i18n.T(i18n.KeyContactSupport, lang)}}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.Chat.IsPrivate() {
		if msg.IsCommand() {
			b.handleCommand(ctx, msg)
			return
		}
		b.handlePrivate(ctx, msg)
		return
	}
	// В группах бот реагирует только на регистрацию; остальной шум игнорируется.
	if msg.IsCommand() && msg.Command() == "add_group" {
		b.handleAddGroup(ctx, msg)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "reload_translations":
		b.handleReloadTranslations(ctx, msg)
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	// Сброс старой клавиатуры и приветствие по умолчанию.
	if _, err := b.transport.SendText(ctx, chatID, b.i18n.T(i18n.KeyWelcome, "en"), &engine.Markup{RemoveReply: true}); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", chatID).Msg("send welcome")
	}

	fullName := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	user, err := b.store.UpsertUser(ctx, &model.User{
		ID:       msg.From.ID,
		Username: msg.From.UserName,
		FullName: fullName,
	})
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("upsert user")
		return
	}
	b.cache.InvalidateUser(user.ID)
	b.log.Info().Int64("user_id", user.ID).Msg("user started bot")

	if user.LanguageCode == "" {
		b.sendLanguageKeyboard(ctx, chatID)
		return
	}

	lang := user.LanguageCode
	greeting := b.i18n.T(i18n.KeyWelcomeBack, lang)
	if user.Role == model.RoleAdmin || user.Role == model.RoleModerator {
		_, _ = b.transport.SendText(ctx, chatID, greeting, nil)
		return
	}
	if _, err := b.cache.ActiveTicketByUser(ctx, user.ID); err == nil {
		_, _ = b.transport.SendText(ctx, chatID, b.i18n.T(i18n.KeyHaveActiveRequest, lang), nil)
		return
	}
	_, _ = b.transport.SendText(ctx, chatID, greeting, b.mainKeyboard(lang))
}

func (b *Bot) sendLanguageKeyboard(ctx context.Context, chatID int64) {
	langs, err := b.cache.Languages(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("list languages")
		return
	}
	markup := &engine.Markup{}
	for _, l := range langs {
		label := strings.TrimSpace(l.Emoji + " " + l.Name)
		markup.Inline = append(markup.Inline, engine.InlineButton{Label: label, Data: "lang:" + l.Code})
	}
	_, _ = b.transport.SendText(ctx, chatID, "Выберите язык / Choose your language:", markup)
}

// isAdmin — админ по роли в БД либо по списку ADMIN_IDS из конфигурации.
func (b *Bot) isAdmin(ctx context.Context, userID int64) bool {
	if b.cfg.IsAdmin(userID) {
		return true
	}
	user, err := b.cache.User(ctx, userID)
	return err == nil && user.Role == model.RoleAdmin
}

func (b *Bot) handleReloadTranslations(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(ctx, msg.From.ID) {
		_, _ = b.transport.SendText(ctx, msg.Chat.ID, "❌ Команда доступна только администраторам.", nil)
		b.log.Warn().Int64("user_id", msg.From.ID).Msg("unauthorized reload_translations attempt")
		return
	}
	if err := b.i18n.Reload(ctx); err != nil {
		b.log.Error().Err(err).Msg("reload translations")
		_, _ = b.transport.SendText(ctx, msg.Chat.ID, "⚠ Не удалось обновить переводы.", nil)
		return
	}
	_, _ = b.transport.SendText(ctx, msg.Chat.ID, "✅ Переводы успешно обновлены.", nil)
	b.log.Info().Int64("user_id", msg.From.ID).Int64("version", b.i18n.Version()).Msg("translations reloaded")
}

func (b *Bot) handleAddGroup(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(ctx, msg.From.ID) {
		_, _ = b.transport.SendText(ctx, msg.Chat.ID, "❌ У вас нет доступа к этой команде.", nil)
		return
	}

	title := msg.Chat.Title
	if title == "" {
		title = "Без названия"
	}

	photoURL := ""
	if chat, err := b.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: msg.Chat.ID}}); err == nil && chat.Photo != nil {
		if file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: chat.Photo.BigFileID}); err == nil {
			photoURL = file.FilePath
		}
	}

	_, getErr := b.store.GetGroup(ctx, msg.Chat.ID)
	existed := getErr == nil

	if err := b.store.UpsertGroup(ctx, &model.SupportGroup{ID: msg.Chat.ID, Title: title, PhotoURL: photoURL}); err != nil {
		b.log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("upsert support group")
		return
	}
	b.cache.InvalidateGroups()
	b.log.Info().Int64("chat_id", msg.Chat.ID).Str("title", title).Msg("support group registered")

	if existed {
		_, _ = b.transport.SendText(ctx, msg.Chat.ID, "🔄 Группа уже была зарегистрирована, данные обновлены.", nil)
	} else {
		_, _ = b.transport.SendText(ctx, msg.Chat.ID, "✅ Группа успешно зарегистрирована.", nil)
	}
}

// isSupportTrigger сравнивает текст с локализованной кнопкой «написать в
// поддержку» на каждом доступном языке.
func (b *Bot) isSupportTrigger(ctx context.Context, text string) bool {
	if text == "" {
		return false
	}
	langs, err := b.cache.Languages(ctx)
	if err != nil {
		return false
	}
	for _, l := range langs {
		if label := b.i18n.T(i18n.KeyContactSupport, l.Code); label == text && !strings.HasPrefix(label, "[") {
			return true
		}
	}
	return false
}

func (b *Bot) handlePrivate(ctx context.Context, msg *tgbotapi.Message) {
	sender, err := b.cache.User(ctx, msg.From.ID)
	if err != nil {
		return
	}

	if b.isSupportTrigger(ctx, msg.Text) {
		if sender.Role == model.RoleAdmin || sender.Role == model.RoleModerator {
			b.log.Info().Int64("user_id", sender.ID).Str("role", string(sender.Role)).Msg("ignored support trigger from staff")
			return
		}
		b.states.SetAwaitingRequest(sender.ID)
		_, _ = b.transport.SendText(ctx, msg.Chat.ID, b.i18n.T(i18n.KeyEnterRequest, sender.LanguageCode), nil)
		return
	}

	if b.states.IsAwaitingRequest(sender.ID) {
		b.states.Clear(sender.ID)
		if sender.Role == model.RoleAdmin || sender.Role == model.RoleModerator {
			return
		}
		b.createRequest(ctx, sender, msg)
		return
	}

	if err := b.relay.HandlePrivateMessage(ctx, engine.Inbound{
		SenderID:     msg.From.ID,
		ChatID:       msg.Chat.ID,
		Text:         msg.Text,
		Caption:      msg.Caption,
		PhotoFileID:  photoFileID(msg),
		MediaGroupID: msg.MediaGroupID,
	}); err != nil {
		b.log.Error().Err(err).Int64("sender_id", msg.From.ID).Msg("relay turn")
	}
}

// createRequest — приём текста обращения: тикет, запись истории, фан-аут
// анонса, подтверждение пользователю.
func (b *Bot) createRequest(ctx context.Context, user *model.User, msg *tgbotapi.Message) {
	ticket, err := b.tickets.Create(ctx, user.ID, user.LanguageCode)
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			_, _ = b.transport.SendText(ctx, msg.Chat.ID, b.i18n.T(i18n.KeyHaveActiveRequest, user.LanguageCode), nil)
			return
		}
		_, _ = b.transport.SendText(ctx, msg.Chat.ID, b.i18n.T(i18n.KeyTryAgainLater, user.LanguageCode), nil)
		return
	}

	b.relay.EnqueueHistory(&model.ConversationMessage{
		TicketID:    ticket.ID,
		SenderID:    user.ID,
		Text:        msg.Text,
		Caption:     msg.Caption,
		PhotoFileID: photoFileID(msg),
	})

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	rendered := strings.ReplaceAll(b.i18n.T(i18n.KeyNewRequestText, user.LanguageCode), "{text}", content)

	if _, err := b.announcer.Announce(ctx, ticket, rendered, photoFileID(msg)); err != nil {
		b.log.Error().Err(err).Uint64("ticket_id", ticket.ID).Msg("announce ticket")
	}

	_, _ = b.transport.SendText(ctx, msg.Chat.ID, b.i18n.T(i18n.KeyRequestSent, user.LanguageCode), &engine.Markup{RemoveReply: true})
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}
	if ticketID, ok := engine.ParseClaimCallback(cb.Data); ok {
		b.handleClaim(ctx, cb, ticketID)
		return
	}
	if code, ok := strings.CutPrefix(cb.Data, "lang:"); ok {
		b.handleLanguageSelected(ctx, cb, code)
	}
}

func (b *Bot) handleLanguageSelected(ctx context.Context, cb *tgbotapi.CallbackQuery, code string) {
	userID := cb.From.ID
	// Язык сохраняется в фоне: ответ пользователю не ждёт записи.
	go func() {
		if err := b.store.SetUserLanguage(context.WithoutCancel(ctx), userID, code); err != nil {
			b.log.Error().Err(err).Int64("user_id", userID).Str("lang", code).Msg("set user language")
			return
		}
		b.cache.InvalidateUser(userID)
	}()
	b.log.Info().Int64("user_id", userID).Str("lang", code).Msg("language selected")

	if cb.Message != nil {
		_ = b.transport.EditText(ctx, cb.Message.Chat.ID, cb.Message.MessageID, b.i18n.T(i18n.KeyLanguageSelected, code))
		_, _ = b.transport.SendText(ctx, cb.Message.Chat.ID, b.i18n.T(i18n.KeyWelcomeInfo, code), b.mainKeyboard(code))
	}
	_ = b.transport.AnswerCallback(ctx, cb.ID, "", false)
}

// handleClaim — гонка за тикет: advisory-проверка занятости модератора по
// кешу, затем авторитетный условный claim; проигравшие получают alert, а
// не ошибку.
func (b *Bot) handleClaim(ctx context.Context, cb *tgbotapi.CallbackQuery, ticketID uint64) {
	moderator, err := b.cache.User(ctx, cb.From.ID)
	if err != nil || (moderator.Role != model.RoleModerator && moderator.Role != model.RoleAdmin) {
		lang := "en"
		if err == nil && moderator.LanguageCode != "" {
			lang = moderator.LanguageCode
		}
		b.log.Warn().Int64("user_id", cb.From.ID).Msg("non-moderator tried to take request")
		_ = b.transport.AnswerCallback(ctx, cb.ID, b.i18n.T(i18n.KeyOnlyModerator, lang), true)
		return
	}
	lang := moderator.LanguageCode

	if _, err := b.cache.ActiveTicketByModerator(ctx, moderator.ID); err == nil {
		_ = b.transport.AnswerCallback(ctx, cb.ID, b.i18n.T(i18n.KeyAlreadyInProgressMod, lang), true)
		return
	}

	ok, err := b.tickets.Claim(ctx, ticketID, moderator.ID)
	if err != nil {
		_ = b.transport.AnswerCallback(ctx, cb.ID, b.i18n.T(i18n.KeyTryAgainLater, lang), true)
		return
	}
	if !ok {
		_ = b.transport.AnswerCallback(ctx, cb.ID, b.i18n.T(i18n.KeyAlreadyInProgress, lang), true)
		return
	}

	ticket, err := b.cache.Ticket(ctx, ticketID)
	if err != nil {
		b.log.Error().Err(err).Uint64("ticket_id", ticketID).Msg("load claimed ticket")
		_ = b.transport.AnswerCallback(ctx, cb.ID, b.i18n.T(i18n.KeyTakenSuccess, lang), false)
		return
	}

	closeKeyboard := &engine.Markup{ReplyButtons: []string{b.i18n.T(i18n.KeyCloseButton, lang)}}
	_, _ = b.transport.SendText(ctx, moderator.ID, b.i18n.T(i18n.KeyYouAssigned, lang), closeKeyboard)

	b.sendInitialMessage(ctx, ticket, moderator)

	_, _ = b.transport.SendText(ctx, ticket.UserID, b.i18n.T(i18n.KeyModeratorConnected, ticket.Language), &engine.Markup{RemoveReply: true})

	claimingChatID := int64(0)
	if cb.Message != nil {
		claimingChatID = cb.Message.Chat.ID
	}
	if err := b.announcer.MarkClaimed(ctx, ticket, moderatorLabel(moderator), claimingChatID); err != nil {
		b.log.Error().Err(err).Uint64("ticket_id", ticket.ID).Msg("mark claimed")
	}

	_ = b.transport.AnswerCallback(ctx, cb.ID, b.i18n.T(i18n.KeyTakenSuccess, lang), false)
}

// sendInitialMessage доставляет модератору исходное обращение; при
// несовпадении языков — с дописанным переводом.
func (b *Bot) sendInitialMessage(ctx context.Context, ticket *model.Ticket, moderator *model.User) {
	initial, err := b.cache.InitialMessage(ctx, ticket.ID)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			b.log.Error().Err(err).Uint64("ticket_id", ticket.ID).Msg("load initial message")
		}
		return
	}

	original := initial.Caption
	if original == "" {
		original = initial.Text
	}
	final := original
	if original != "" && ticket.Language != moderator.LanguageCode {
		translated := b.translator.Translate(ctx, original, engine.LanguageName(ctx, b.cache, moderator.LanguageCode))
		final = original + "\n\n" + translated
	}

	if initial.PhotoFileID != "" {
		_, _ = b.transport.SendPhoto(ctx, moderator.ID, initial.PhotoFileID, final, nil)
	} else if final != "" {
		_, _ = b.transport.SendText(ctx, moderator.ID, final, nil)
	}
}
