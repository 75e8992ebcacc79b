package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	eventbus "github.com/hanpama/recordgql/internal/eventbus"
	events "github.com/hanpama/recordgql/internal/events"
	metadata "github.com/hanpama/recordgql/internal/metadata"
	policy "github.com/hanpama/recordgql/internal/policy"
	reqid "github.com/hanpama/recordgql/internal/reqid"
)

// ErrObjectNotFound is returned when the root object of a projection is not
// in the registry.
var ErrObjectNotFound = errors.New("object metadata not found")

// attachmentDepth is the depth attachments are projected at.
const attachmentDepth = 1

// Options configures an Assembler.
type Options struct {
	// Policy lists fields projected regardless of visibility.
	Policy policy.Table

	// Attachments are relation collections projected on every record.
	Attachments []policy.Attachment
}

// Option sets a field of Options.
type Option func(*Options)

// WithPolicy sets the forced-inclusion table.
func WithPolicy(t policy.Table) Option { return func(o *Options) { o.Policy = t } }

// WithAttachment attaches the collection field, whose records are of object.
func WithAttachment(field, object string) Option {
	return func(o *Options) {
		o.Attachments = append(o.Attachments, policy.Attachment{Field: field, Object: object})
	}
}

// WithAttachments appends a to the attachments.
func WithAttachments(a ...policy.Attachment) Option {
	return func(o *Options) { o.Attachments = append(o.Attachments, a...) }
}

// WithConfig applies both parts of a policy file.
func WithConfig(cfg *policy.Config) Option {
	return func(o *Options) {
		if cfg == nil {
			return
		}
		o.Policy = cfg.ForcedInclusion
		o.Attachments = append(o.Attachments, cfg.AlwaysInclude...)
	}
}

// Request describes one record projection.
type Request struct {
	// VisibleFieldIDs are the field ids the view currently renders. Unknown
	// ids are skipped.
	VisibleFieldIDs []string
	// AdditionalFieldID is an extra field to request, e.g. one being edited.
	AdditionalFieldID string
	// Depth bounds relation expansion; use DefaultDepth for record tables.
	Depth int
}

// Assembler composes the selection a record view must fetch.
// It is safe for concurrent use.
type Assembler struct {
	snapshot func() metadata.Registry
	opt      Options
}

// NewAssembler creates an assembler reading from reg.
func NewAssembler(reg metadata.Registry, opts ...Option) *Assembler {
	return newAssembler(func() metadata.Registry { return reg }, opts)
}

// NewStoreAssembler creates an assembler that reads st.Current() once per
// Assemble call, so a Replace never affects a build in progress.
func NewStoreAssembler(st *metadata.Store, opts ...Option) *Assembler {
	return newAssembler(func() metadata.Registry { return st.Current() }, opts)
}

func newAssembler(snapshot func() metadata.Registry, opts []Option) *Assembler {
	var op Options
	for _, f := range opts {
		f(&op)
	}
	return &Assembler{snapshot: snapshot, opt: op}
}

// Attachments returns the attachments every projection carries, for
// renderers that need to know which keys are not fields of the object.
func (a *Assembler) Attachments() []policy.Attachment {
	return append([]policy.Attachment(nil), a.opt.Attachments...)
}

// Assemble returns the selection for records of objectNameOrID. It fails
// only when the object itself is unknown; every other gap degrades.
func (a *Assembler) Assemble(ctx context.Context, objectNameOrID string, req Request) (sel Selection, err error) {
	ctx, _ = reqid.Ensure(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.ProjectionStart{
		Object:    objectNameOrID,
		Depth:     req.Depth,
		Requested: len(req.VisibleFieldIDs),
	})
	defer func() {
		finish := events.ProjectionFinish{Object: objectNameOrID, Err: err, Duration: time.Since(start)}
		if err == nil {
			finish.Fields = len(sel)
			finish.Entries = sel.Size()
			finish.Nesting = sel.Depth()
		}
		eventbus.Publish(ctx, finish)
	}()

	reg := a.snapshot()
	if reg == nil {
		return nil, fmt.Errorf("%w: %q", ErrObjectNotFound, objectNameOrID)
	}
	obj, ok := reg.Lookup(objectNameOrID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrObjectNotFound, objectNameOrID)
	}
	return a.assemble(ctx, reg, obj, req), nil
}

func (a *Assembler) assemble(ctx context.Context, reg metadata.Registry, obj *metadata.Object, req Request) Selection {
	visible := resolveFields(ctx, obj, req.VisibleFieldIDs)
	fields := a.opt.Policy.Apply(obj.NameSingular, visible, obj.Fields)

	var additional *metadata.Field
	if req.AdditionalFieldID != "" {
		if f, ok := obj.FieldByID(req.AdditionalFieldID); ok {
			additional = f
		} else {
			eventbus.Publish(ctx, events.VisibleFieldSkipped{Object: obj.NameSingular, FieldID: req.AdditionalFieldID})
		}
	}

	sel := identitySelection(obj, additional)
	sel.Merge(Build(ctx, reg, obj, fields, req.Depth))
	withSystemFields(sel)

	for _, att := range a.opt.Attachments {
		target, ok := reg.Lookup(att.Object)
		if !ok {
			eventbus.Publish(ctx, events.RelationDegraded{
				Object: obj.NameSingular,
				Field:  att.Field,
				Target: att.Object,
				Reason: "attachment object not found",
			})
			continue
		}
		sel[att.Field] = Nested(ObjectSelection(ctx, reg, target, attachmentDepth))
	}
	return sel
}

// resolveFields maps ids to fields of obj, dropping unknown ids and duplicates.
func resolveFields(ctx context.Context, obj *metadata.Object, ids []string) []*metadata.Field {
	out := make([]*metadata.Field, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		f, ok := obj.FieldByID(id)
		if !ok {
			eventbus.Publish(ctx, events.VisibleFieldSkipped{Object: obj.NameSingular, FieldID: id})
			continue
		}
		out = append(out, f)
	}
	return out
}
