package notification

import (
	"strconv"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/cassette/internal/infra/config"
	"github.com/osa030/cassette/internal/infra/metrics"
)

// Sink receives rendered messages.
type Sink interface {
	Send(message string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(message string)

// Send calls f(message).
func (f SinkFunc) Send(message string) {
	f(message)
}

// Notifier renders message codes through the configured templates and
// hands the result to a Sink.
type Notifier struct {
	messages config.MessagesConfig
	sink     Sink
}

// NewNotifier creates a notifier that renders with messages and sends to sink.
func NewNotifier(messages config.MessagesConfig, sink Sink) *Notifier {
	return &Notifier{
		messages: messages,
		sink:     sink,
	}
}

// Notify renders the template for code with args and sends it.
func (n *Notifier) Notify(code string, args ...string) {
	message := Format(n.messages.Get(code), args...)
	metrics.NotificationsTotal.WithLabelValues(code).Inc()
	zlog.Debug().Msgf("notification: code=%s message=%q", code, message)
	n.sink.Send(message)
}

// Format replaces {0}, {1}, ... in template with args.
func Format(template string, args ...string) string {
	if len(args) == 0 {
		return template
	}
	pairs := make([]string, 0, len(args)*2)
	for i, arg := range args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", arg)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
