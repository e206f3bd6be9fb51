package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/catalyser/internal/config"
	obscontext "github.com/smallbiznis/catalyser/internal/observability/context"
	"github.com/smallbiznis/catalyser/internal/observability/tracing"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const HeaderCorrelationID = "X-Correlation-Id"

// Conn is the subset of *nats.Conn used for publishing.
type Conn interface {
	PublishMsg(msg *nats.Msg) error
}

type NATSPublisher struct {
	conn Conn
}

func NewNATSPublisher(conn Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, event Event) error {
	if event.CorrelationID == "" {
		event.CorrelationID = obscontext.CorrelationIDFromContext(ctx)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = payload
	if event.CorrelationID != "" {
		msg.Header.Set(HeaderCorrelationID, event.CorrelationID)
	}
	tracing.InjectContext(ctx, propagation.HeaderCarrier(msg.Header))

	return p.conn.PublishMsg(msg)
}

// Connect dials NATS and drains the connection on shutdown.
func Connect(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(strings.TrimSpace(cfg.NATSURL),
		nats.Name(cfg.AppName),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return conn.Drain()
		},
	})
	return conn, nil
}

type publisherParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

type publisherResult struct {
	fx.Out

	Publisher Publisher
	Conn      *nats.Conn
}

// ProvidePublisher wires NATS when enabled and a no-op publisher otherwise.
// A nil *nats.Conn tells NATS consumers to stay idle.
func ProvidePublisher(p publisherParams) (publisherResult, error) {
	if !p.Config.NATSEnabled {
		p.Log.Info("nats disabled, events are dropped")
		return publisherResult{Publisher: NoopPublisher{}}, nil
	}
	conn, err := Connect(p.Lifecycle, p.Config, p.Log)
	if err != nil {
		return publisherResult{}, err
	}
	return publisherResult{Publisher: NewNATSPublisher(conn), Conn: conn}, nil
}

var Module = fx.Module("events",
	fx.Provide(ProvidePublisher),
)
