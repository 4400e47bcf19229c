package notify

import "fmt"

// Config selects and parameterizes the notifier backend.
type Config struct {
	Mode         string // "http", "amqp" or "none"
	Endpoint     string // http mode
	AMQPURL      string // amqp mode
	AMQPExchange string
	AMQPQueue    string
}

// New builds the notifier for the configured mode.
func New(cfg Config) (Notifier, error) {
	switch cfg.Mode {
	case "http":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("http notifier requires an endpoint")
		}
		return NewHTTPNotifier(cfg.Endpoint), nil
	case "amqp":
		return NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	case "none", "":
		return NopNotifier{}, nil
	default:
		return nil, fmt.Errorf("unknown notifier mode %q", cfg.Mode)
	}
}
