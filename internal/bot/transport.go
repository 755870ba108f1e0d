package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/psds-microservice/support-bot/internal/engine"
)

// Transport — реализация engine.ChatTransport поверх Bot API.
type Transport struct {
	api *tgbotapi.BotAPI
}

func NewTransport(api *tgbotapi.BotAPI) *Transport {
	return &Transport{api: api}
}

func toReplyMarkup(m *engine.Markup) interface{} {
	if m == nil {
		return nil
	}
	if len(m.Inline) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.Inline))
		for _, b := range m.Inline {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data),
			))
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if len(m.ReplyButtons) > 0 {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(m.ReplyButtons))
		for _, label := range m.ReplyButtons {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(label)))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.ResizeKeyboard = true
		return kb
	}
	if m.RemoveReply {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	return nil
}

func (t *Transport) SendText(_ context.Context, chatID int64, text string, markup *engine.Markup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if rm := toReplyMarkup(markup); rm != nil {
		msg.ReplyMarkup = rm
	}
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *Transport) SendPhoto(_ context.Context, chatID int64, photoFileID, caption string, markup *engine.Markup) (int, error) {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(photoFileID))
	msg.Caption = caption
	if rm := toReplyMarkup(markup); rm != nil {
		msg.ReplyMarkup = rm
	}
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// isNotModified — Bot API отвечает ошибкой на редактирование без видимых
// изменений; для нас это успех (идемпотентный no-op).
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func (t *Transport) EditText(_ context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := t.api.Request(edit); err != nil && !isNotModified(err) {
		return err
	}
	return nil
}

func (t *Transport) EditCaption(_ context.Context, chatID int64, messageID int, caption string) error {
	edit := tgbotapi.NewEditMessageCaption(chatID, messageID, caption)
	if _, err := t.api.Request(edit); err != nil && !isNotModified(err) {
		return err
	}
	return nil
}

func (t *Transport) AnswerCallback(_ context.Context, callbackID, text string, showAlert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = showAlert
	_, err := t.api.Request(cb)
	return err
}
