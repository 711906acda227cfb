package groups

import (
	"fmt"
	"reflect"
)

// DiscoverType extracts the element type from a declared slot type. The slot
// must be a slice, named or not; its element type becomes the tag. Any other
// shape fails with a DiscoveryError wrapping ErrNotGroupContainer.
//
// Discovery does not require the element type to implement Element. That is
// checked by NewDescriptor and again by the reconciler.
func DiscoverType(declared reflect.Type) (TypeTag, error) {
	if declared == nil {
		return TypeTag{}, &DiscoveryError{Err: ErrNotGroupContainer}
	}
	if declared.Kind() != reflect.Slice {
		return TypeTag{}, &DiscoveryError{
			Type: declared.String(),
			Err:  fmt.Errorf("%w: kind %s", ErrNotGroupContainer, declared.Kind()),
		}
	}
	return TypeTag{typ: declared.Elem()}, nil
}

// DiscoverValue is DiscoverType for the dynamic type of slot.
func DiscoverValue(slot any) (TypeTag, error) {
	return DiscoverType(reflect.TypeOf(slot))
}
