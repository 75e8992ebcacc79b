// Package render turns a projection into a GraphQL query document.
//
// The walk follows the selection alongside the object metadata so that the
// result is a valid query even where the projection holds a leaf:
//   - a leaf relation is requested as `field { id }`,
//   - a leaf composite with known properties requests its properties,
//   - to-many relations are wrapped in `edges { node { ... } }`,
//   - attachment keys render as connections of their attachment object.
//
// Keys are emitted in lexical order, so equal projections render equal text.
package render

import (
	"sort"
	"unicode"

	language "github.com/hanpama/recordgql/internal/language"
	metadata "github.com/hanpama/recordgql/internal/metadata"
	policy "github.com/hanpama/recordgql/internal/policy"
	projection "github.com/hanpama/recordgql/internal/projection"
)

// FindMany builds `query FindMany<Plural> { <plural> { edges { node { ... } } } }`.
// attachments are the ones sel was assembled with.
func FindMany(reg metadata.Registry, obj *metadata.Object, sel projection.Selection, attachments ...policy.Attachment) *language.QueryDocument {
	root := &language.Field{
		Name:         obj.NamePlural,
		SelectionSet: connection(rootSet(reg, obj, sel, attachments)),
	}
	return document(&language.OperationDefinition{
		Operation:    language.Query,
		Name:         "FindMany" + upperFirst(obj.NamePlural),
		SelectionSet: language.SelectionSet{root},
	})
}

// FindOne builds `query FindOne<Singular>($filter: <Singular>FilterInput!) { <singular>(filter: $filter) { ... } }`.
func FindOne(reg metadata.Registry, obj *metadata.Object, sel projection.Selection, attachments ...policy.Attachment) *language.QueryDocument {
	typeName := upperFirst(obj.NameSingular)
	root := &language.Field{
		Name: obj.NameSingular,
		Arguments: language.ArgumentList{{
			Name:  "filter",
			Value: &language.Value{Kind: language.Variable, Raw: "filter"},
		}},
		SelectionSet: rootSet(reg, obj, sel, attachments),
	}
	return document(&language.OperationDefinition{
		Operation: language.Query,
		Name:      "FindOne" + typeName,
		VariableDefinitions: language.VariableDefinitions{{
			Variable: "filter",
			Type:     language.NamedType(typeName+"FilterInput", true),
		}},
		SelectionSet: language.SelectionSet{root},
	})
}

// Format prints doc as query text.
func Format(doc *language.QueryDocument) string { return language.FormatQuery(doc) }

func document(op *language.OperationDefinition) *language.QueryDocument {
	return &language.QueryDocument{Operations: language.OperationList{op}}
}

// rootSet renders the record selection. Keys that are attachments and not
// fields of obj are rendered against the attachment object.
func rootSet(reg metadata.Registry, obj *metadata.Object, sel projection.Selection, attachments []policy.Attachment) language.SelectionSet {
	var attached map[string]string
	for _, att := range attachments {
		if _, ok := obj.FieldByName(att.Field); ok {
			continue
		}
		if attached == nil {
			attached = make(map[string]string, len(attachments))
		}
		attached[att.Field] = att.Object
	}
	if len(attached) == 0 {
		return selectionSet(reg, obj, sel)
	}

	rest := make(projection.Selection, len(sel))
	out := make(language.SelectionSet, 0, len(sel))
	for _, name := range sel.Keys() {
		object, ok := attached[name]
		if !ok {
			rest[name] = sel[name]
			continue
		}
		var target *metadata.Object
		if reg != nil {
			target, _ = reg.Lookup(object)
		}
		inner := leafSet(projection.IDFieldName)
		if node := sel[name]; !node.IsLeaf() {
			inner = selectionSet(reg, target, node.Fields)
		}
		out = append(out, &language.Field{Name: name, SelectionSet: connection(inner)})
	}
	return sortedByName(append(out, selectionSet(reg, obj, rest)...))
}

// selectionSet renders sel for records of obj. obj may be nil when the
// metadata of a nested selection is unknown; keys then render as given.
func selectionSet(reg metadata.Registry, obj *metadata.Object, sel projection.Selection) language.SelectionSet {
	out := make(language.SelectionSet, 0, len(sel))
	for _, name := range sel.Keys() {
		node := sel[name]
		var f *metadata.Field
		if obj != nil {
			f, _ = obj.FieldByName(name)
		}
		field := &language.Field{Name: name}
		switch {
		case !node.IsLeaf():
			var target *metadata.Object
			if f.IsRelation() && reg != nil {
				target, _ = reg.Lookup(f.RelationTarget)
			}
			field.SelectionSet = relationSet(f, selectionSet(reg, target, node.Fields))
		case f.IsRelation():
			field.SelectionSet = relationSet(f, leafSet(projection.IDFieldName))
		case f != nil && f.Kind == metadata.KindComposite && len(f.Properties) > 0:
			field.SelectionSet = leafSet(f.Properties...)
		}
		out = append(out, field)
	}
	return out
}

func sortedByName(ss language.SelectionSet) language.SelectionSet {
	sort.SliceStable(ss, func(i, j int) bool {
		return ss[i].(*language.Field).Name < ss[j].(*language.Field).Name
	})
	return ss
}

func relationSet(f *metadata.Field, inner language.SelectionSet) language.SelectionSet {
	if f.IsRelation() && f.Cardinality == metadata.Many {
		return connection(inner)
	}
	return inner
}

func connection(inner language.SelectionSet) language.SelectionSet {
	node := &language.Field{Name: "node", SelectionSet: inner}
	return language.SelectionSet{&language.Field{Name: "edges", SelectionSet: language.SelectionSet{node}}}
}

func leafSet(names ...string) language.SelectionSet {
	out := make(language.SelectionSet, 0, len(names))
	for _, n := range names {
		out = append(out, &language.Field{Name: n})
	}
	return out
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
