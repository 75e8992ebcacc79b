package metadata

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// Registry resolves object metadata by id or name.
// Implementations must return a consistent view for the duration of a build.
type Registry interface {
	// Lookup returns the object whose id, singular name or plural name matches.
	Lookup(nameOrID string) (*Object, bool)
	// Objects returns all objects in a stable order.
	Objects() []*Object
}

// Snapshot is an immutable Registry. Objects passed to NewSnapshot must not
// be modified afterwards.
type Snapshot struct {
	objects []*Object
	index   map[string]*Object
}

var _ Registry = (*Snapshot)(nil)

// NewSnapshot indexes objects by id, singular name and plural name.
func NewSnapshot(objects ...*Object) (*Snapshot, error) {
	s := &Snapshot{index: make(map[string]*Object, len(objects)*3)}
	ids := make(map[string]bool, len(objects))
	fieldIDs := map[string]string{}
	for _, obj := range objects {
		if obj == nil {
			continue
		}
		if obj.ID == "" {
			return nil, fmt.Errorf("object %q has no id", obj.NameSingular)
		}
		if ids[obj.ID] {
			return nil, fmt.Errorf("duplicate object id %q", obj.ID)
		}
		ids[obj.ID] = true

		names := make(map[string]bool, len(obj.Fields))
		for _, f := range obj.Fields {
			if owner, ok := fieldIDs[f.ID]; ok {
				return nil, fmt.Errorf("duplicate field id %q in %s and %s", f.ID, owner, obj.NameSingular)
			}
			fieldIDs[f.ID] = obj.NameSingular
			if names[f.Name] {
				return nil, fmt.Errorf("duplicate field name %q in %s", f.Name, obj.NameSingular)
			}
			names[f.Name] = true
		}
		s.objects = append(s.objects, obj)
	}
	// ids win over names when they collide
	for _, obj := range s.objects {
		for _, key := range []string{obj.NamePlural, obj.NameSingular} {
			if key != "" {
				if _, taken := s.index[key]; !taken {
					s.index[key] = obj
				}
			}
		}
	}
	for _, obj := range s.objects {
		s.index[obj.ID] = obj
	}
	sort.SliceStable(s.objects, func(i, j int) bool {
		return s.objects[i].NameSingular < s.objects[j].NameSingular
	})
	return s, nil
}

// MustSnapshot is like NewSnapshot but panics on error.
func MustSnapshot(objects ...*Object) *Snapshot {
	s, err := NewSnapshot(objects...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Snapshot) Lookup(nameOrID string) (*Object, bool) {
	if s == nil {
		return nil, false
	}
	obj, ok := s.index[nameOrID]
	return obj, ok
}

func (s *Snapshot) Objects() []*Object {
	if s == nil {
		return nil
	}
	return append([]*Object(nil), s.objects...)
}

// Validate reports dangling relation targets and identifier ids.
// It returns nil when the snapshot is consistent.
func (s *Snapshot) Validate() error {
	var errs ValidationError
	for _, obj := range s.objects {
		for _, f := range obj.Fields {
			if !f.IsRelation() {
				continue
			}
			if f.RelationTarget == "" {
				errs = append(errs, &Violation{Message: fmt.Sprintf("relation %s.%s has no target", obj.NameSingular, f.Name)})
				continue
			}
			if _, ok := s.index[f.RelationTarget]; !ok {
				errs = append(errs, &Violation{Message: fmt.Sprintf("relation %s.%s targets unknown object %q", obj.NameSingular, f.Name, f.RelationTarget)})
			}
		}
		if id := obj.LabelIdentifierFieldID; id != "" {
			if _, ok := obj.FieldByID(id); !ok {
				errs = append(errs, &Violation{Message: fmt.Sprintf("label identifier %q of %s names no field", id, obj.NameSingular)})
			}
		}
		if id := obj.ImageIdentifierFieldID; id != "" {
			if _, ok := obj.FieldByID(id); !ok {
				errs = append(errs, &Violation{Message: fmt.Sprintf("image identifier %q of %s names no field", id, obj.NameSingular)})
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Store holds the current snapshot. Replace swaps it atomically; builds that
// already called Current keep reading the snapshot they got.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store holding s.
func NewStore(s *Snapshot) *Store {
	st := &Store{}
	st.current.Store(s)
	return st
}

// Current returns the snapshot to use for one build.
func (st *Store) Current() *Snapshot { return st.current.Load() }

// Replace installs a new snapshot and returns the previous one.
func (st *Store) Replace(s *Snapshot) *Snapshot { return st.current.Swap(s) }
