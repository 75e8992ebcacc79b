package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type jsonExport struct {
	Objects []jsonObject `json:"objects"`
}

type jsonObject struct {
	ID                             string      `json:"id"`
	NameSingular                   string      `json:"nameSingular"`
	NamePlural                     string      `json:"namePlural"`
	LabelIdentifierFieldMetadataID *string     `json:"labelIdentifierFieldMetadataId"`
	ImageIdentifierFieldMetadataID *string     `json:"imageIdentifierFieldMetadataId"`
	Fields                         []jsonField `json:"fields"`
}

type jsonField struct {
	ID                             string   `json:"id"`
	Name                           string   `json:"name"`
	Type                           string   `json:"type"`
	IsSystem                       bool     `json:"isSystem"`
	RelationTargetObjectMetadataID *string  `json:"relationTargetObjectMetadataId"`
	RelationType                   string   `json:"relationType"`
	Properties                     []string `json:"properties"`
}

// LoadJSON reads a metadata export:
//
//	{"objects": [{"id": "...", "nameSingular": "task", "fields": [...]}]}
func LoadJSON(r io.Reader) (*Snapshot, error) {
	var exp jsonExport
	dec := json.NewDecoder(r)
	if err := dec.Decode(&exp); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	objects := make([]*Object, 0, len(exp.Objects))
	for _, jo := range exp.Objects {
		obj := NewObject(jo.ID, jo.NameSingular, jo.NamePlural)
		if jo.LabelIdentifierFieldMetadataID != nil {
			obj.SetLabelIdentifier(*jo.LabelIdentifierFieldMetadataID)
		}
		if jo.ImageIdentifierFieldMetadataID != nil {
			obj.SetImageIdentifier(*jo.ImageIdentifierFieldMetadataID)
		}
		for _, jf := range jo.Fields {
			f, err := jf.field()
			if err != nil {
				return nil, fmt.Errorf("object %s: %w", jo.NameSingular, err)
			}
			obj.AddField(f)
		}
		objects = append(objects, obj)
	}
	return NewSnapshot(objects...)
}

func (jf jsonField) field() (*Field, error) {
	kind, err := ParseFieldKind(jf.Type)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", jf.Name, err)
	}
	f := &Field{ID: jf.ID, Name: jf.Name, Kind: kind, IsSystem: jf.IsSystem}
	switch kind {
	case KindRelation:
		if jf.RelationTargetObjectMetadataID != nil {
			f.RelationTarget = *jf.RelationTargetObjectMetadataID
		}
		if strings.EqualFold(jf.RelationType, "ONE_TO_MANY") {
			f.Cardinality = Many
		}
	case KindComposite:
		f.Properties = jf.Properties
		if len(f.Properties) == 0 {
			f.Properties = DefaultProperties(jf.Type)
		}
	case KindScalar, KindEnum:
	default:
		panic("unreachable")
	}
	return f, nil
}

// LoadFile loads metadata from a .json export or a .graphql/.gql SDL file.
func LoadFile(path string) (*Snapshot, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		fh, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		return LoadJSON(fh)
	case ".graphql", ".gql":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return LoadSDL(path, string(content))
	default:
		return nil, fmt.Errorf("unsupported metadata file extension %q", ext)
	}
}
