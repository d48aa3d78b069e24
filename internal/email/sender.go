package email

import (
	"context"

	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

// Message es un mail ya renderizado.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender entrega un mail.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender imprime el mail en el log. Es el sender por defecto.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	logger.From(ctx).Info(msg.TextBody,
		logger.Component("email"),
		logger.String("to", msg.To),
		logger.String("subject", msg.Subject),
	)
	return nil
}

// MultiSender entrega a todos; devuelve el primer error pero sigue con el resto.
type MultiSender []Sender

func (m MultiSender) Send(ctx context.Context, msg Message) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}
