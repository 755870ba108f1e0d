package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// События жизненного цикла тикета.
const (
	EventTicketCreated = "ticket.created"
	EventTicketClaimed = "ticket.claimed"
	EventTicketClosed  = "ticket.closed"
)

// TicketEventProducer — интерфейс для подмены моком в тестах движка.
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{})
}

// Producer пишет события жизненного цикла тикетов в топик Kafka
// (best-effort, не блокирует обработку апдейтов).
type Producer struct {
	writer *kafka.Writer
	topic  string
	log    zerolog.Logger
}

// NewProducer создаёт продюсер. Если brokers или topic пустые — методы no-op.
func NewProducer(brokers []string, topic string, log zerolog.Logger) *Producer {
	p := &Producer{topic: topic, log: log.With().Str("component", "kafka").Logger()}
	if len(brokers) == 0 || topic == "" {
		return p
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return p
}

// ProduceTicketEvent отправляет событие тикета. payload: ticket_id, user_id,
// moderator_id, language, status.
func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, payload map[string]interface{}) {
	if p.writer == nil {
		return
	}
	msg := map[string]interface{}{"event": event, "at": time.Now().UTC()}
	for k, v := range payload {
		msg[k] = v
	}
	body, err := json.Marshal(msg)
	if err != nil {
		p.log.Error().Err(err).Str("event", event).Msg("marshal ticket event")
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: body}); err != nil {
		p.log.Error().Err(err).Str("event", event).Msg("write ticket event")
	}
}

// Close закрывает writer.
func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// ParseBrokers разбивает строку брокеров "host1:9092,host2:9092" на слайс.
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
