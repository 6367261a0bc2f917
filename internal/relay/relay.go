// Package relay runs the render-then-deliver pipeline for a single order.
package relay

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/order-relay/internal/delivery"
	"github.com/xenking/order-relay/internal/domain/order"
	"github.com/xenking/order-relay/internal/render"
)

// Renderer produces the document for an order.
type Renderer interface {
	Render(ctx context.Context, o *order.Order) (*render.Artifact, error)
}

// Outcome is the terminal state of a processed order.
type Outcome string

const (
	// Accepted means the document was rendered and delivered.
	Accepted Outcome = "accepted"
	// Rejected means the order was invalid or could not be rendered.
	// Nothing was delivered.
	Rejected Outcome = "rejected"
	// Undelivered means the document exists on disk but the messaging
	// channel did not take it.
	Undelivered Outcome = "undelivered"
)

// DeliveryError is returned when the dispatcher reported a remote failure.
// The artifact stays on disk.
type DeliveryError struct {
	Order   string
	Channel string
	Path    string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("Falha no envio para %s", e.Channel)
}

// OutcomeOf classifies the error returned by Process.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return Accepted
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return Undelivered
	}
	return Rejected
}

// Service composes a Renderer and a Dispatcher. It keeps no per-order state.
type Service struct {
	renderer   Renderer
	dispatcher delivery.Dispatcher
	tracer     trace.Tracer
	processed  metric.Int64Counter
}

// NewService creates a Service instrumented with the given providers.
func NewService(
	renderer Renderer,
	dispatcher delivery.Dispatcher,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter("github.com/xenking/order-relay/internal/relay")
	processed, err := meter.Int64Counter("relay.orders.processed",
		metric.WithDescription("Orders processed, by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create counter")
	}
	return &Service{
		renderer:   renderer,
		dispatcher: dispatcher,
		tracer:     tp.Tracer("github.com/xenking/order-relay/internal/relay"),
		processed:  processed,
	}, nil
}

// Process renders o and delivers the result. On success it returns the
// artifact. Errors are one of *order.ValidationError (or ValidationErrors),
// *render.Error, *DeliveryError, or a wrapped local delivery failure; use
// OutcomeOf to classify them.
func (s *Service) Process(ctx context.Context, o *order.Order) (_ *render.Artifact, rerr error) {
	ctx, span := s.tracer.Start(ctx, "relay.Process")
	defer func() {
		outcome := OutcomeOf(rerr)
		span.SetAttributes(attribute.String("relay.outcome", string(outcome)))
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
		s.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}()

	if o == nil {
		return nil, order.Missing("pedido")
	}
	span.SetAttributes(attribute.String("order.number", o.Number))

	lg := zctx.From(ctx).With(zap.String("order", o.Number))
	lg.Info("Processing order", zap.Int("items", len(o.Items)))

	artifact, err := s.render(ctx, o)
	if err != nil {
		lg.Error("Order rejected", zap.String("stage", "render"), zap.Error(err))
		return nil, err
	}

	delivered, err := s.deliver(ctx, artifact, o)
	if err != nil {
		lg.Error("Order rejected", zap.String("stage", "deliver"), zap.Error(err))
		return nil, errors.Wrap(err, "deliver")
	}
	if !delivered {
		lg.Error("Order undelivered",
			zap.String("stage", "deliver"),
			zap.String("channel", s.dispatcher.Channel()),
			zap.String("path", artifact.Path),
		)
		return nil, &DeliveryError{Order: o.Number, Channel: s.dispatcher.Channel(), Path: artifact.Path}
	}

	lg.Info("Order processed",
		zap.String("path", artifact.Path),
		zap.String("total", artifact.GrandTotal.StringFixed(2)),
	)
	return artifact, nil
}

func (s *Service) render(ctx context.Context, o *order.Order) (*render.Artifact, error) {
	ctx, span := s.tracer.Start(ctx, "relay.Render")
	defer span.End()
	return s.renderer.Render(ctx, o)
}

func (s *Service) deliver(ctx context.Context, a *render.Artifact, o *order.Order) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "relay.Deliver",
		trace.WithAttributes(attribute.String("relay.channel", s.dispatcher.Channel())),
	)
	defer span.End()
	return s.dispatcher.Deliver(ctx, a.Path, o, a.GrandTotal)
}
