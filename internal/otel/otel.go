package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/recordgql/internal/eventbus"
	events "github.com/hanpama/recordgql/internal/events"
	reqid "github.com/hanpama/recordgql/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const tracerName = "recordgql"

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	detach := Attach(tp.Tracer(tracerName))
	return func(ctx context.Context) error {
		detach()
		return tp.Shutdown(ctx)
	}, nil
}

// Attach turns projection events into spans of tracer.
func Attach(tracer trace.Tracer) (detach func()) {
	sub := &subscriber{tracer: tracer}
	return sub.register()
}

type subscriber struct {
	tracer trace.Tracer
	spans  sync.Map // rid -> trace.Span
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.ProjectionStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "projection.assemble")
			span.SetAttributes(
				attribute.String("projection.object", e.Object),
				attribute.Int("projection.depth", e.Depth),
				attribute.Int("projection.requested", e.Requested),
			)
			s.spans.Store(rid, span)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.RelationDegraded) {
			span, ok := s.active(ctx)
			if !ok {
				return
			}
			span.AddEvent("relation.degraded", trace.WithAttributes(
				attribute.String("projection.object", e.Object),
				attribute.String("projection.field", e.Field),
				attribute.String("projection.target", e.Target),
				attribute.String("projection.reason", e.Reason),
			))
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.VisibleFieldSkipped) {
			span, ok := s.active(ctx)
			if !ok {
				return
			}
			span.AddEvent("field.skipped", trace.WithAttributes(
				attribute.String("projection.field_id", e.FieldID),
			))
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ProjectionFinish) {
			rid, _ := reqid.FromContext(ctx)
			v, ok := s.spans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(
				attribute.Int("projection.fields", e.Fields),
				attribute.Int("projection.entries", e.Entries),
				attribute.Int("projection.nesting", e.Nesting),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, e.Err.Error())
			}
			span.End()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (s *subscriber) active(ctx context.Context) (trace.Span, bool) {
	rid, ok := reqid.FromContext(ctx)
	if !ok {
		return nil, false
	}
	v, ok := s.spans.Load(rid)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}
