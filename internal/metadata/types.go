package metadata

import (
	"fmt"
	"strings"
)

// FieldKind classifies how a field is projected.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindEnum
	KindComposite
	KindRelation
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "SCALAR"
	case KindEnum:
		return "ENUM"
	case KindComposite:
		return "COMPOSITE"
	case KindRelation:
		return "RELATION"
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// fieldTypeKinds maps canonical kind names and Twenty field types to kinds.
var fieldTypeKinds = map[string]FieldKind{
	"SCALAR":    KindScalar,
	"ENUM":      KindEnum,
	"COMPOSITE": KindComposite,
	"RELATION":  KindRelation,

	"TEXT":      KindScalar,
	"NUMBER":    KindScalar,
	"NUMERIC":   KindScalar,
	"UUID":      KindScalar,
	"DATE":      KindScalar,
	"DATE_TIME": KindScalar,
	"BOOLEAN":   KindScalar,
	"POSITION":  KindScalar,
	"RAW_JSON":  KindScalar,
	"ARRAY":     KindScalar,
	"TS_VECTOR": KindScalar,

	"SELECT":       KindEnum,
	"MULTI_SELECT": KindEnum,
	"RATING":       KindEnum,

	"FULL_NAME":    KindComposite,
	"LINKS":        KindComposite,
	"CURRENCY":     KindComposite,
	"EMAILS":       KindComposite,
	"PHONES":       KindComposite,
	"ADDRESS":      KindComposite,
	"ACTOR":        KindComposite,
	"RICH_TEXT":    KindComposite,
	"RICH_TEXT_V2": KindComposite,

	"MORPH_RELATION": KindRelation,
}

// compositeProperties are the sub-fields of Twenty composite field types.
var compositeProperties = map[string][]string{
	"FULL_NAME":    {"firstName", "lastName"},
	"LINKS":        {"primaryLinkUrl", "primaryLinkLabel", "secondaryLinks"},
	"CURRENCY":     {"amountMicros", "currencyCode"},
	"EMAILS":       {"primaryEmail", "additionalEmails"},
	"PHONES":       {"primaryPhoneNumber", "primaryPhoneCountryCode", "primaryPhoneCallingCode", "additionalPhones"},
	"ADDRESS":      {"addressStreet1", "addressStreet2", "addressCity", "addressState", "addressCountry", "addressPostcode", "addressLat", "addressLng"},
	"ACTOR":        {"source", "workspaceMemberId", "name", "context"},
	"RICH_TEXT":    {"blocknote", "markdown"},
	"RICH_TEXT_V2": {"blocknote", "markdown"},
}

// ParseFieldKind resolves a field type name. Names are case-insensitive.
func ParseFieldKind(name string) (FieldKind, error) {
	k, ok := fieldTypeKinds[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("unknown field type %q", name)
	}
	return k, nil
}

// DefaultProperties returns the known sub-fields of a composite field type, or nil.
func DefaultProperties(fieldType string) []string {
	props := compositeProperties[strings.ToUpper(fieldType)]
	if props == nil {
		return nil
	}
	return append([]string(nil), props...)
}

// Cardinality of a relation field.
type Cardinality int

const (
	One Cardinality = iota
	Many
)

// Field describes one field of an object.
type Field struct {
	ID             string
	Name           string
	Kind           FieldKind
	RelationTarget string      // object id, relations only
	Cardinality    Cardinality // relations only
	IsSystem       bool
	Properties     []string // composite sub-fields
}

// IsRelation reports whether the field points to another object.
func (f *Field) IsRelation() bool { return f != nil && f.Kind == KindRelation }

// Object describes an object type and its fields.
type Object struct {
	ID                     string
	NameSingular           string
	NamePlural             string
	Fields                 []*Field
	LabelIdentifierFieldID string
	ImageIdentifierFieldID string
}

// FieldByID returns the field with the given id.
func (o *Object) FieldByID(id string) (*Field, bool) {
	for _, f := range o.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// FieldByName returns the field with the given name.
func (o *Object) FieldByName(name string) (*Field, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// NewObject creates an object. NamePlural defaults to NameSingular+"s".
func NewObject(id, nameSingular, namePlural string) *Object {
	if namePlural == "" {
		namePlural = nameSingular + "s"
	}
	return &Object{ID: id, NameSingular: nameSingular, NamePlural: namePlural}
}

func (o *Object) AddField(f *Field) *Object {
	o.Fields = append(o.Fields, f)
	return o
}

func (o *Object) SetLabelIdentifier(fieldID string) *Object {
	o.LabelIdentifierFieldID = fieldID
	return o
}

func (o *Object) SetImageIdentifier(fieldID string) *Object {
	o.ImageIdentifierFieldID = fieldID
	return o
}

func NewScalarField(id, name string) *Field {
	return &Field{ID: id, Name: name, Kind: KindScalar}
}

func NewEnumField(id, name string) *Field {
	return &Field{ID: id, Name: name, Kind: KindEnum}
}

func NewCompositeField(id, name string, properties ...string) *Field {
	return &Field{ID: id, Name: name, Kind: KindComposite, Properties: properties}
}

func NewRelationField(id, name, target string, card Cardinality) *Field {
	return &Field{ID: id, Name: name, Kind: KindRelation, RelationTarget: target, Cardinality: card}
}

// System marks the field as system-managed.
func (f *Field) System() *Field {
	f.IsSystem = true
	return f
}
