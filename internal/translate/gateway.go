package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"
)

// maxInFlight ограничивает одновременные обращения к API перевода.
const maxInFlight = 5

// Translator — интерфейс для подмены моком в тестах движка.
type Translator interface {
	Translate(ctx context.Context, text, langName string) string
}

// Gateway переводит текст через OpenAI-совместимый chat completions API.
// Best-effort: ошибок не возвращает, при исчерпании ретраев отдаёт
// исходный текст — вызывающий должен быть готов, что «перевод» может
// совпасть с оригиналом.
type Gateway struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	sem        *semaphore.Weighted
	log        zerolog.Logger
}

func New(apiKey, baseURL, model string, log zerolog.Logger) *Gateway {
	return &Gateway{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		sem: semaphore.NewWeighted(maxInFlight),
		log: log.With().Str("component", "translate").Logger(),
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func systemPrompt(langName string) string {
	return fmt.Sprintf(
		"Ты — профессиональный переводчик и носитель языка (%s).\n"+
			"Твоя задача — перевести сообщение для службы поддержки на %s.\n\n"+
			"Переводи так, как сказал бы реальный человек. Разрешён лёгкий неформальный стиль, если он уместен.\n\n"+
			"Важно:\n"+
			"- Не добавляй ничего лишнего. Ответ — только перевод оригинального текста.",
		langName, langName)
}

// Translate возвращает перевод text на язык langName (отображаемое имя
// языка). Параллелизм ограничен семафором, транзиентные отказы (429, 5xx,
// транспорт) ретраятся с экспоненциальным бэкоффом.
func (g *Gateway) Translate(ctx context.Context, text, langName string) string {
	if g.apiKey == "" || text == "" {
		return text
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return text
	}
	defer g.sem.Release(1)

	var out string
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		translated, err := g.complete(ctx, text, langName)
		if err != nil {
			return err
		}
		out = translated
		return nil
	})
	if err != nil {
		g.log.Warn().Err(err).Str("lang", langName).Msg("translation degraded, returning original text")
		return text
	}
	return out
}

func (g *Gateway) complete(ctx context.Context, text, langName string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(langName)},
			{Role: "user", Content: text},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", retry.RetryableError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", retry.RetryableError(fmt.Errorf("translate: status %d", resp.StatusCode))
	default:
		return "", fmt.Errorf("translate: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", retry.RetryableError(err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return text, nil
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
