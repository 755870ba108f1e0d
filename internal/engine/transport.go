package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// InlineButton — кнопка-действие под сообщением; Data уходит обратно
// callback-событием.
type InlineButton struct {
	Label string
	Data  string
}

// Markup — платформонезависимое описание элементов управления при
// сообщении. Нулевое значение — без клавиатуры.
type Markup struct {
	// Inline — inline-кнопки, по одной в строке.
	Inline []InlineButton
	// ReplyButtons — reply-клавиатура в один столбец.
	ReplyButtons []string
	// RemoveReply сбрасывает reply-клавиатуру получателя.
	RemoveReply bool
}

// ClaimCallbackData кодирует id тикета в данные кнопки «взять запрос».
func ClaimCallbackData(ticketID uint64) string {
	return fmt.Sprintf("take:%d", ticketID)
}

// ParseClaimCallback разбирает данные кнопки «взять запрос».
func ParseClaimCallback(data string) (uint64, bool) {
	rest, ok := strings.CutPrefix(data, "take:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ChatTransport — узкая граница чат-платформы, которую потребляет ядро.
// Реализация обязана трактовать редактирование без видимых изменений как
// успех. Интерфейс нужен для подмены фейком в тестах.
type ChatTransport interface {
	SendText(ctx context.Context, chatID int64, text string, markup *Markup) (messageID int, err error)
	SendPhoto(ctx context.Context, chatID int64, photoFileID, caption string, markup *Markup) (messageID int, err error)
	// EditText/EditCaption заменяют текст и снимают inline-клавиатуру.
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	EditCaption(ctx context.Context, chatID int64, messageID int, caption string) error
	AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error
}
