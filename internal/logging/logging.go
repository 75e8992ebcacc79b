// Package logging writes projection events to a zap logger.
package logging

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	eventbus "github.com/hanpama/recordgql/internal/eventbus"
	events "github.com/hanpama/recordgql/internal/events"
	reqid "github.com/hanpama/recordgql/internal/reqid"
)

// New builds a console logger writing to stderr at the given level
// (debug, info, warn or error).
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	enc := zap.NewDevelopmentEncoderConfig()
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), lvl)
	return zap.New(core), nil
}

// Attach subscribes log to the projection events of the global bus.
// The returned function detaches it.
func Attach(log *zap.Logger) (detach func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.RelationDegraded) {
			log.Warn("relation projected as leaf",
				buildID(ctx),
				zap.String("object", e.Object),
				zap.String("field", e.Field),
				zap.String("target", e.Target),
				zap.String("reason", e.Reason),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.VisibleFieldSkipped) {
			log.Debug("visible field skipped",
				buildID(ctx),
				zap.String("object", e.Object),
				zap.String("fieldId", e.FieldID),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ProjectionFinish) {
			if e.Err != nil {
				log.Error("projection failed", buildID(ctx), zap.String("object", e.Object), zap.Error(e.Err))
				return
			}
			log.Debug("projection assembled",
				buildID(ctx),
				zap.String("object", e.Object),
				zap.Int("fields", e.Fields),
				zap.Int("entries", e.Entries),
				zap.Int("nesting", e.Nesting),
				zap.Duration("duration", e.Duration),
			)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func buildID(ctx context.Context) zap.Field {
	id, ok := reqid.FromContext(ctx)
	if !ok {
		return zap.Skip()
	}
	return zap.Int64("build", id)
}
