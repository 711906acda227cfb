package groups

import "reflect"

// Element is a polymorphic group member identified by a stable, non-negative
// integer assigned at construction.
type Element interface {
	ElementID() int
}

var elementInterface = reflect.TypeFor[Element]()

// TypeTag identifies the concrete element type a group slot holds. The zero
// value is not a valid tag.
type TypeTag struct {
	typ reflect.Type
}

// TagOf returns the tag for E.
func TagOf[E Element]() TypeTag {
	return TypeTag{typ: reflect.TypeFor[E]()}
}

// TagFor wraps an arbitrary reflect.Type. The result is not checked for
// Element capability; the reconciler does that before every run.
func TagFor(t reflect.Type) TypeTag {
	return TypeTag{typ: t}
}

// Type returns the underlying reflect.Type, or nil for the zero tag.
func (t TypeTag) Type() reflect.Type {
	return t.typ
}

// IsZero reports whether the tag wraps no type.
func (t TypeTag) IsZero() bool {
	return t.typ == nil
}

// IsElement reports whether values of the tagged type satisfy Element.
func (t TypeTag) IsElement() bool {
	if t.typ == nil {
		return false
	}
	return t.typ.Implements(elementInterface)
}

// String returns the qualified type name.
func (t TypeTag) String() string {
	if t.typ == nil {
		return "<nil>"
	}
	return t.typ.String()
}

// accepts reports whether el may be installed into a slot tagged with t.
func (t TypeTag) accepts(el Element) bool {
	if el == nil || t.typ == nil {
		return false
	}
	return reflect.TypeOf(el).AssignableTo(t.typ)
}
