package projection

import (
	"context"

	eventbus "github.com/hanpama/recordgql/internal/eventbus"
	events "github.com/hanpama/recordgql/internal/events"
	metadata "github.com/hanpama/recordgql/internal/metadata"
)

// DefaultDepth expands relations one hop for record tables.
const DefaultDepth = 1

// IDFieldName is requested on every projected object.
const IDFieldName = "id"

// SystemFields are requested on every projected object.
var SystemFields = []string{"createdAt", "updatedAt", "deletedAt"}

// Build projects fields of root. Relation fields are expanded into the full
// selection of their target while depth > 0 and become leaves otherwise;
// relations whose target does not resolve degrade to leaves.
//
// fields must already be unique by id. ctx only carries event publication.
func Build(ctx context.Context, reg metadata.Registry, root *metadata.Object, fields []*metadata.Field, depth int) Selection {
	sel := make(Selection, len(fields))
	for _, f := range fields {
		if f == nil {
			continue
		}
		sel[f.Name] = buildField(ctx, reg, root, f, depth)
	}
	return sel
}

func buildField(ctx context.Context, reg metadata.Registry, root *metadata.Object, f *metadata.Field, depth int) Node {
	switch f.Kind {
	case metadata.KindScalar, metadata.KindEnum, metadata.KindComposite:
		return Leaf()
	case metadata.KindRelation:
		if depth <= 0 {
			return Leaf()
		}
		related, ok := reg.Lookup(f.RelationTarget)
		if !ok {
			reason := "target object not found"
			if f.RelationTarget == "" {
				reason = "relation has no target"
			}
			eventbus.Publish(ctx, events.RelationDegraded{
				Object: objectName(root),
				Field:  f.Name,
				Target: f.RelationTarget,
				Reason: reason,
			})
			return Leaf()
		}
		return Nested(ObjectSelection(ctx, reg, related, depth-1))
	}
	panic("unreachable")
}

// ObjectSelection projects every field of obj together with its id,
// identifiers, position and system fields.
func ObjectSelection(ctx context.Context, reg metadata.Registry, obj *metadata.Object, depth int) Selection {
	sel := identitySelection(obj, nil)
	sel.Merge(Build(ctx, reg, obj, obj.Fields, depth))
	return withSystemFields(sel)
}

// identitySelection holds the fields a record cannot be displayed without.
func identitySelection(obj *metadata.Object, additional *metadata.Field) Selection {
	sel := Selection{IDFieldName: Leaf()}
	if additional != nil {
		sel[additional.Name] = Leaf()
	}
	if f, ok := metadata.LabelIdentifier(obj); ok {
		sel[f.Name] = Leaf()
	}
	if f, ok := metadata.ImageIdentifier(obj); ok {
		sel[f.Name] = Leaf()
	}
	if metadata.HasPositionField(obj) {
		sel[metadata.PositionFieldName] = Leaf()
	}
	return sel
}

func withSystemFields(sel Selection) Selection {
	for _, name := range SystemFields {
		sel[name] = Leaf()
	}
	return sel
}

func objectName(obj *metadata.Object) string {
	if obj == nil {
		return ""
	}
	return obj.NameSingular
}
