package metadata

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/vektah/gqlparser/v2/gqlerror"

	language "github.com/hanpama/recordgql/internal/language"
)

// Directives understood by LoadSDL.
const (
	directiveObject          = "object"
	directiveLabelIdentifier = "labelIdentifier"
	directiveImageIdentifier = "imageIdentifier"
	directiveSystem          = "system"
)

var rootTypeNames = map[string]bool{"Query": true, "Mutation": true, "Subscription": true}

// LoadSDL builds a snapshot from object types written as GraphQL SDL.
//
//	type Person @object(plural: "people") {
//	  id: ID!
//	  name: FullName @labelIdentifier
//	  company: Company
//	  createdAt: DateTime @system
//	}
//
// Object types with an id field are records; object types without one are
// composite types. Extensions are merged into their base definition.
func LoadSDL(name, source string) (*Snapshot, error) {
	doc, err := language.ParseSchema(name, source)
	if err != nil {
		return nil, sdlError(name, err)
	}

	defs := map[string]*language.Definition{}
	var order []string
	var errs ValidationError
	for _, def := range doc.Definitions {
		if _, dup := defs[def.Name]; dup {
			errs = append(errs, violationAt(fmt.Sprintf("type %s defined more than once", def.Name), def.Position))
			continue
		}
		cp := *def
		cp.Fields = append(language.FieldList(nil), def.Fields...)
		defs[def.Name] = &cp
		order = append(order, def.Name)
	}
	for _, ext := range doc.Extensions {
		base, ok := defs[ext.Name]
		if !ok {
			errs = append(errs, violationAt(fmt.Sprintf("extension of undefined type %s", ext.Name), ext.Position))
			continue
		}
		base.Fields = append(base.Fields, ext.Fields...)
		base.Directives = append(base.Directives, ext.Directives...)
	}

	var objects []*Object
	for _, typeName := range order {
		def := defs[typeName]
		if !isRecordType(def) {
			continue
		}
		obj, violations := buildSDLObject(def, defs)
		errs = append(errs, violations...)
		objects = append(objects, obj)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return NewSnapshot(objects...)
}

func isRecordType(def *language.Definition) bool {
	if def.Kind != language.Object && def.Kind != language.Interface {
		return false
	}
	if rootTypeNames[def.Name] {
		return false
	}
	return def.Fields.ForName("id") != nil
}

func buildSDLObject(def *language.Definition, defs map[string]*language.Definition) (*Object, ValidationError) {
	singular := lowerCamel(def.Name)
	plural := ""
	if d := def.Directives.ForName(directiveObject); d != nil {
		if arg := d.Arguments.ForName("plural"); arg != nil && arg.Value != nil {
			plural = arg.Value.Raw
		}
	}
	obj := NewObject(def.Name, singular, plural)

	var errs ValidationError
	for _, fd := range def.Fields {
		f := &Field{
			ID:       def.Name + "." + fd.Name,
			Name:     fd.Name,
			IsSystem: fd.Directives.ForName(directiveSystem) != nil,
		}
		named := fd.Type.Name()
		target := defs[named]
		switch {
		case target == nil || target.Kind == language.Scalar:
			f.Kind = KindScalar
		case target.Kind == language.Enum:
			f.Kind = KindEnum
		case isRecordType(target):
			f.Kind = KindRelation
			f.RelationTarget = target.Name
			if fd.Type.Elem != nil {
				f.Cardinality = Many
			}
		case target.Kind == language.Object:
			f.Kind = KindComposite
			for _, sub := range target.Fields {
				f.Properties = append(f.Properties, sub.Name)
			}
		default:
			errs = append(errs, violationAt(fmt.Sprintf("field %s.%s has unsupported type %s", def.Name, fd.Name, named), fd.Position))
			continue
		}
		if fd.Directives.ForName(directiveLabelIdentifier) != nil {
			if obj.LabelIdentifierFieldID != "" {
				errs = append(errs, violationAt(fmt.Sprintf("type %s has more than one @labelIdentifier", def.Name), fd.Position))
			}
			obj.SetLabelIdentifier(f.ID)
		}
		if fd.Directives.ForName(directiveImageIdentifier) != nil {
			if obj.ImageIdentifierFieldID != "" {
				errs = append(errs, violationAt(fmt.Sprintf("type %s has more than one @imageIdentifier", def.Name), fd.Position))
			}
			obj.SetImageIdentifier(f.ID)
		}
		obj.AddField(f)
	}
	return obj, errs
}

func sdlError(file string, err error) error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		v := &Violation{Message: gqlErr.Message, File: file}
		if len(gqlErr.Locations) > 0 {
			v.Line = gqlErr.Locations[0].Line
			v.Column = gqlErr.Locations[0].Column
		}
		return ValidationError{v}
	}
	return fmt.Errorf("parse %s: %w", file, err)
}

func lowerCamel(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
