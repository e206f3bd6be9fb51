package assistant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smallbiznis/catalyser/internal/config"
	"github.com/smallbiznis/catalyser/internal/events"
	obscontext "github.com/smallbiznis/catalyser/internal/observability/context"
	"github.com/smallbiznis/catalyser/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

type subscriberParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Conn      *nats.Conn `optional:"true"`
	Handler   *Handler
	Log       *zap.Logger
}

// Subscribe joins the assistant queue group. It stays idle when NATS is off.
func Subscribe(p subscriberParams) {
	if p.Conn == nil {
		p.Log.Info("assistant bridge idle, nats disabled")
		return
	}

	var sub *nats.Subscription
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var err error
			sub, err = p.Conn.QueueSubscribe(SubjectPriceQuote, p.Config.NATSQueueGroup, func(msg *nats.Msg) {
				reply := p.Handler.serve(msg)
				if msg.Reply == "" {
					return
				}
				data, err := json.Marshal(reply)
				if err != nil {
					p.Log.Error("encode assistant reply failed", zap.Error(err))
					return
				}
				if err := msg.Respond(data); err != nil {
					p.Log.Warn("assistant reply failed", zap.Error(err))
				}
			})
			if err != nil {
				return err
			}
			p.Log.Info("assistant bridge subscribed",
				zap.String("subject", SubjectPriceQuote),
				zap.String("queue", p.Config.NATSQueueGroup),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			if sub == nil {
				return nil
			}
			return sub.Drain()
		},
	})
}

func (h *Handler) serve(msg *nats.Msg) Reply {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if msg.Header != nil {
		ctx = tracing.ExtractContext(ctx, propagation.HeaderCarrier(msg.Header))
		ctx = obscontext.WithCorrelationID(ctx, msg.Header.Get(events.HeaderCorrelationID))
	}
	ctx, _ = obscontext.EnsureCorrelationID(ctx)

	ctx, span := otel.Tracer("catalyser/assistant").Start(ctx, "assistant.price_quote",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.destination.name", msg.Subject)),
	)
	defer span.End()

	reply := h.HandleQuote(ctx, msg.Data)
	if reply.Error != nil {
		span.SetAttributes(attribute.String("error.type", reply.Error.Type))
	}
	return reply
}
