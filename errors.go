package groups

import (
	"errors"
	"fmt"
)

var (
	// ErrNotGroupContainer indicates a declared slot type is not a slice.
	ErrNotGroupContainer = errors.New("slot is not a group container")
	// ErrNotElementType indicates a type tag does not implement Element.
	ErrNotElementType = errors.New("type is not an element")
	// ErrNoConstructor indicates the factory has nothing registered for a tag.
	ErrNoConstructor = errors.New("no constructor registered")
	// ErrSlotUnavailable is a convenience error for accessors whose host slot
	// cannot currently be read or written.
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrInvalidID marks a persisted entry that is null or negative.
	ErrInvalidID = errors.New("id is null or negative")
	// ErrRejectedByRule marks an id the admission rule evaluated to false.
	ErrRejectedByRule = errors.New("rejected by admission rule")
	// ErrFunctionName marks a rule function name that is not an identifier or
	// collides with a rule variable.
	ErrFunctionName = errors.New("invalid rule function name")
	// ErrUnknownFunction marks a rule calling a function nobody registered.
	ErrUnknownFunction = errors.New("rule function not registered")
)

// DiscoveryError reports a slot that cannot back a group. It is raised once,
// at registration, and is never recoverable by retrying.
type DiscoveryError struct {
	Field string
	Type  string
	Err   error
}

func (e *DiscoveryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("groups: discover field=%s type=%s: %v", describeField(e.Field), describeType(e.Type), e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError reports a descriptor that failed the element capability
// recheck at reconcile time.
type ValidationError struct {
	Key string
	Tag string
	Err error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("groups: validate key=%s tag=%s: %v", describeField(e.Key), describeType(e.Tag), e.Err)
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ConstructionError reports a single id that could not become an element.
type ConstructionError struct {
	Tag string
	ID  int
	Err error
}

func (e *ConstructionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("groups: construct tag=%s id=%d: %v", describeType(e.Tag), e.ID, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AccessOp names the accessor operation that failed.
type AccessOp string

const (
	AccessRead  AccessOp = "read"
	AccessWrite AccessOp = "write"
)

// AccessError reports a host slot that could not be read or written.
type AccessError struct {
	Op    AccessOp
	Field string
	Err   error
}

func (e *AccessError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("groups: %s field=%s: %v", e.Op, describeField(e.Field), e.Err)
}

func (e *AccessError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WriteError reports a failed commit. The slot keeps its previous content.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("groups: commit key=%s: %v", describeField(e.Key), e.Err)
}

func (e *WriteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeField(name string) string {
	if name == "" {
		return "<empty>"
	}
	return name
}

func describeType(name string) string {
	if name == "" {
		return "<nil>"
	}
	return name
}

// wrapAccessError attaches op and field to err unless it already carries them.
func wrapAccessError(op AccessOp, field string, err error) error {
	if err == nil {
		return nil
	}

	var accessErr *AccessError
	if errors.As(err, &accessErr) {
		if accessErr.Op == "" {
			accessErr.Op = op
		}
		if accessErr.Field == "" {
			accessErr.Field = field
		}
		return err
	}
	return &AccessError{Op: op, Field: field, Err: err}
}

func wrapConstructionError(tag TypeTag, id int, err error) error {
	if err == nil {
		return nil
	}

	var constructErr *ConstructionError
	if errors.As(err, &constructErr) {
		if constructErr.Tag == "" {
			constructErr.Tag = tag.String()
		}
		return err
	}
	return &ConstructionError{Tag: tag.String(), ID: id, Err: err}
}
