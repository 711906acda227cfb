package groups

import (
	"fmt"
	"reflect"
)

// Owner identifies the host object that owns a group slot. Its namespace is
// the first segment of the persisted key.
type Owner interface {
	Namespace() string
}

// NamespaceOwner is an Owner that is nothing but its namespace.
type NamespaceOwner string

// Namespace implements Owner.
func (o NamespaceOwner) Namespace() string {
	return string(o)
}

// AttributeAccessor reads and writes the live content of one host slot. The
// host supplies it at registration; the core never touches the slot directly.
// Write must either replace the slot content entirely or leave it untouched.
type AttributeAccessor interface {
	Read(owner Owner) ([]Element, error)
	Write(owner Owner, elements []Element) error
}

// AccessorFuncs adapts a pair of functions to AttributeAccessor. A nil
// function reports ErrSlotUnavailable.
type AccessorFuncs struct {
	ReadFunc  func(owner Owner) ([]Element, error)
	WriteFunc func(owner Owner, elements []Element) error
}

// Read implements AttributeAccessor.
func (a AccessorFuncs) Read(owner Owner) ([]Element, error) {
	if a.ReadFunc == nil {
		return nil, ErrSlotUnavailable
	}
	return a.ReadFunc(owner)
}

// Write implements AttributeAccessor.
func (a AccessorFuncs) Write(owner Owner, elements []Element) error {
	if a.WriteFunc == nil {
		return ErrSlotUnavailable
	}
	return a.WriteFunc(owner, elements)
}

// SliceAccessor binds a typed slice owned by the host. The slice header is
// replaced on write, never patched.
type SliceAccessor[E Element] struct {
	slot *[]E
}

// NewSliceAccessor returns an accessor over *slot.
func NewSliceAccessor[E Element](slot *[]E) *SliceAccessor[E] {
	return &SliceAccessor[E]{slot: slot}
}

// Read implements AttributeAccessor.
func (a *SliceAccessor[E]) Read(Owner) ([]Element, error) {
	if a == nil || a.slot == nil {
		return nil, ErrSlotUnavailable
	}
	out := make([]Element, len(*a.slot))
	for i, el := range *a.slot {
		out[i] = el
	}
	return out, nil
}

// Write implements AttributeAccessor. Elements that are not E fail the whole
// write.
func (a *SliceAccessor[E]) Write(_ Owner, elements []Element) error {
	if a == nil || a.slot == nil {
		return ErrSlotUnavailable
	}
	next := make([]E, len(elements))
	for i, el := range elements {
		typed, ok := el.(E)
		if !ok {
			return fmt.Errorf("element %d has type %T, want %s", i, el, reflect.TypeFor[E]())
		}
		next[i] = typed
	}
	*a.slot = next
	return nil
}

// FieldAccessor reaches an exported slice field of a struct by name. target
// must be a non-nil pointer to a struct. Problems with the target or field
// surface as AccessError on every call rather than at construction, so a
// misdeclared host degrades to the read fallbacks instead of panicking.
type FieldAccessor struct {
	target any
	field  string
}

// NewFieldAccessor returns an accessor for target.field.
func NewFieldAccessor(target any, field string) *FieldAccessor {
	return &FieldAccessor{target: target, field: field}
}

// Read implements AttributeAccessor.
func (a *FieldAccessor) Read(Owner) ([]Element, error) {
	value, err := a.resolve()
	if err != nil {
		return nil, wrapAccessError(AccessRead, a.field, err)
	}
	if !value.Type().Elem().Implements(elementInterface) {
		return nil, &AccessError{Op: AccessRead, Field: a.field, Err: ErrNotElementType}
	}
	out := make([]Element, value.Len())
	for i := range out {
		item := value.Index(i)
		if item.Kind() == reflect.Interface && item.IsNil() {
			continue
		}
		out[i] = item.Interface().(Element)
	}
	return out, nil
}

// Write implements AttributeAccessor.
func (a *FieldAccessor) Write(_ Owner, elements []Element) error {
	value, err := a.resolve()
	if err != nil {
		return wrapAccessError(AccessWrite, a.field, err)
	}
	sliceType := value.Type()
	next := reflect.MakeSlice(sliceType, len(elements), len(elements))
	for i, el := range elements {
		if el == nil {
			return &AccessError{Op: AccessWrite, Field: a.field, Err: fmt.Errorf("element %d is nil", i)}
		}
		item := reflect.ValueOf(el)
		if !item.Type().AssignableTo(sliceType.Elem()) {
			return &AccessError{
				Op:    AccessWrite,
				Field: a.field,
				Err:   fmt.Errorf("element %d has type %s, want %s", i, item.Type(), sliceType.Elem()),
			}
		}
		next.Index(i).Set(item)
	}
	value.Set(next)
	return nil
}

func (a *FieldAccessor) resolve() (reflect.Value, error) {
	if a == nil || a.target == nil {
		return reflect.Value{}, ErrSlotUnavailable
	}
	rv := reflect.ValueOf(a.target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("%w: target must be a non-nil pointer", ErrSlotUnavailable)
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: target must point to a struct", ErrSlotUnavailable)
	}
	sf, ok := rv.Type().FieldByName(a.field)
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: no field %q", ErrSlotUnavailable, a.field)
	}
	if !sf.IsExported() {
		return reflect.Value{}, fmt.Errorf("%w: field %q is not exported", ErrSlotUnavailable, a.field)
	}
	field := rv.FieldByIndex(sf.Index)
	if field.Kind() != reflect.Slice {
		return reflect.Value{}, fmt.Errorf("%w: field %q", ErrNotGroupContainer, a.field)
	}
	return field, nil
}

// FieldType returns the declared type of target.field, or nil when the field
// cannot be found. It lets hosts feed DiscoverType without spelling the type.
func FieldType(target any, field string) reflect.Type {
	rt := reflect.TypeOf(target)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil
	}
	sf, ok := rt.FieldByName(field)
	if !ok {
		return nil
	}
	return sf.Type
}
