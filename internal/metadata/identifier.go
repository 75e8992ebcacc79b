package metadata

// PositionFieldName is the field that orders records in a view.
const PositionFieldName = "position"

// LabelIdentifier returns the field that labels records of obj.
// It reports false when the object has no label identifier or the
// referenced field no longer exists.
func LabelIdentifier(obj *Object) (*Field, bool) {
	if obj == nil || obj.LabelIdentifierFieldID == "" {
		return nil, false
	}
	return obj.FieldByID(obj.LabelIdentifierFieldID)
}

// ImageIdentifier returns the field holding the preview image of obj, if any.
func ImageIdentifier(obj *Object) (*Field, bool) {
	if obj == nil || obj.ImageIdentifierFieldID == "" {
		return nil, false
	}
	return obj.FieldByID(obj.ImageIdentifierFieldID)
}

// HasPositionField reports whether obj has a field named "position".
func HasPositionField(obj *Object) bool {
	if obj == nil {
		return false
	}
	_, ok := obj.FieldByName(PositionFieldName)
	return ok
}
