package groups

import (
	"errors"
	"fmt"
	"reflect"
)

// Classification carries host render metadata. The core passes it through
// untouched.
type Classification struct {
	ElementType string
	RenderState string
}

// GroupDescriptor binds one host slot to its discovered element type,
// classification, default count and accessor. It is immutable after
// construction.
type GroupDescriptor struct {
	owner          Owner
	field          string
	tag            TypeTag
	classification Classification
	defaultCount   int
	accessor       AttributeAccessor
}

// NewDescriptor discovers the element type of declared and returns a
// descriptor for the slot. All failures are DiscoveryErrors and no descriptor
// is produced. Element capability of the discovered type is not checked here;
// the reconciler rejects such descriptors with a ValidationError.
func NewDescriptor(owner Owner, fieldName string, declared reflect.Type, classification Classification, defaultCount int, accessor AttributeAccessor) (*GroupDescriptor, error) {
	if err := validateRegistration(owner, fieldName, defaultCount, accessor); err != nil {
		return nil, err
	}

	tag, err := DiscoverType(declared)
	if err != nil {
		var discoveryErr *DiscoveryError
		if errors.As(err, &discoveryErr) && discoveryErr.Field == "" {
			discoveryErr.Field = fieldName
		}
		return nil, err
	}
	return &GroupDescriptor{
		owner:          owner,
		field:          fieldName,
		tag:            tag,
		classification: classification,
		defaultCount:   defaultCount,
		accessor:       accessor,
	}, nil
}

// DescriptorFor is NewDescriptor for a slot statically declared as []E.
func DescriptorFor[E Element](owner Owner, fieldName string, classification Classification, defaultCount int, accessor AttributeAccessor) (*GroupDescriptor, error) {
	return NewDescriptor(owner, fieldName, reflect.TypeFor[[]E](), classification, defaultCount, accessor)
}

func validateRegistration(owner Owner, fieldName string, defaultCount int, accessor AttributeAccessor) error {
	switch {
	case owner == nil:
		return &DiscoveryError{Field: fieldName, Err: errors.New("owner is required")}
	case fieldName == "":
		return &DiscoveryError{Err: errors.New("field name is required")}
	case accessor == nil:
		return &DiscoveryError{Field: fieldName, Err: errors.New("accessor is required")}
	case defaultCount < 0:
		return &DiscoveryError{Field: fieldName, Err: fmt.Errorf("default count %d is negative", defaultCount)}
	}
	return nil
}

// ConfigKey returns the persisted storage key for the group's id list. The
// format is a storage contract and must not change.
func (d *GroupDescriptor) ConfigKey() string {
	namespace := ""
	if d.owner != nil {
		namespace = d.owner.Namespace()
	}
	return namespace + ".groupedOverlay." + d.field + ".ids"
}

// ElementCount returns the live element count, or the default count when the
// slot cannot be read.
func (d *GroupDescriptor) ElementCount() int {
	if d.accessor == nil {
		return d.defaultCount
	}
	elements, err := d.accessor.Read(d.owner)
	if err != nil {
		return d.defaultCount
	}
	return len(elements)
}

// Elements returns the live elements, or an empty slice when the slot cannot
// be read. Callers poll this from refresh loops, so errors never escape.
func (d *GroupDescriptor) Elements() []Element {
	if d.accessor == nil {
		return []Element{}
	}
	elements, err := d.accessor.Read(d.owner)
	if err != nil || elements == nil {
		return []Element{}
	}
	return elements
}

// ReadElements returns the live elements or the read failure as an
// *AccessError. Unlike Elements it never substitutes an empty slot, so callers
// that persist what they read cannot mistake a lost host for an empty group.
func (d *GroupDescriptor) ReadElements() ([]Element, error) {
	if d.accessor == nil {
		return nil, &AccessError{Op: AccessRead, Field: d.field, Err: ErrSlotUnavailable}
	}
	elements, err := d.accessor.Read(d.owner)
	if err != nil {
		return nil, wrapAccessError(AccessRead, d.field, err)
	}
	return elements, nil
}

// TypeTag returns the discovered element type.
func (d *GroupDescriptor) TypeTag() TypeTag {
	return d.tag
}

// DefaultCount returns the fallback element count.
func (d *GroupDescriptor) DefaultCount() int {
	return d.defaultCount
}

// Classification returns the host render metadata.
func (d *GroupDescriptor) Classification() Classification {
	return d.classification
}

// Owner returns the host owner.
func (d *GroupDescriptor) Owner() Owner {
	return d.owner
}

// FieldName returns the slot's field name.
func (d *GroupDescriptor) FieldName() string {
	return d.field
}

// Accessor returns the slot capability.
func (d *GroupDescriptor) Accessor() AttributeAccessor {
	return d.accessor
}

// DefaultIDs returns the id list a freshly registered group starts with:
// 0 through DefaultCount()-1.
func (d *GroupDescriptor) DefaultIDs() IDList {
	ids := make(IDList, d.defaultCount)
	for i := range ids {
		ids[i] = ValidID(i)
	}
	return ids
}
