package groups

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ElementFactory constructs one element of the tagged type from an id.
type ElementFactory interface {
	Construct(tag TypeTag, id int) (Element, error)
}

// ElementFactoryFunc adapts a function to ElementFactory.
type ElementFactoryFunc func(tag TypeTag, id int) (Element, error)

// Construct implements ElementFactory.
func (f ElementFactoryFunc) Construct(tag TypeTag, id int) (Element, error) {
	if f == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoConstructor, tag)
	}
	return f(tag, id)
}

// Constructor builds one element from its id.
type Constructor func(id int) (Element, error)

// FactoryRegistry maps element type tags to constructors. It is safe for
// concurrent use.
type FactoryRegistry struct {
	mu           sync.RWMutex
	constructors map[reflect.Type]Constructor
}

// NewFactoryRegistry constructs an empty registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{
		constructors: make(map[reflect.Type]Constructor),
	}
}

// Register stores fn for tag guarding against duplicates and non-element tags.
func (r *FactoryRegistry) Register(tag TypeTag, fn Constructor) error {
	if fn == nil {
		return fmt.Errorf("groups: constructor for %s is nil", tag)
	}
	if !tag.IsElement() {
		return fmt.Errorf("groups: register %s: %w", tag, ErrNotElementType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.constructors == nil {
		r.constructors = make(map[reflect.Type]Constructor)
	}
	if _, exists := r.constructors[tag.typ]; exists {
		return fmt.Errorf("groups: constructor for %s already registered", tag)
	}
	r.constructors[tag.typ] = fn
	return nil
}

// RegisterConstructor registers a typed constructor for E.
func RegisterConstructor[E Element](r *FactoryRegistry, fn func(id int) (E, error)) error {
	if fn == nil {
		return fmt.Errorf("groups: constructor for %s is nil", TagOf[E]())
	}
	return r.Register(TagOf[E](), func(id int) (Element, error) {
		el, err := fn(id)
		if err != nil {
			return nil, err
		}
		return el, nil
	})
}

// MustRegisterConstructor is RegisterConstructor that panics on error. It is
// meant for package init blocks.
func MustRegisterConstructor[E Element](r *FactoryRegistry, fn func(id int) (E, error)) {
	if err := RegisterConstructor(r, fn); err != nil {
		panic(err)
	}
}

// Construct implements ElementFactory.
func (r *FactoryRegistry) Construct(tag TypeTag, id int) (Element, error) {
	if r == nil {
		return nil, fmt.Errorf("groups: factory registry is nil")
	}
	r.mu.RLock()
	fn := r.constructors[tag.typ]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoConstructor, tag)
	}
	return fn(id)
}

// Has reports whether a constructor is registered for tag.
func (r *FactoryRegistry) Has(tag TypeTag) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[tag.typ]
	return ok
}

// Clone returns a shallow copy of the registry.
func (r *FactoryRegistry) Clone() *FactoryRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FactoryRegistry{
		constructors: make(map[reflect.Type]Constructor, len(r.constructors)),
	}
	for typ, fn := range r.constructors {
		clone.constructors[typ] = fn
	}
	return clone
}

// Tags returns registered type names sorted alphabetically.
func (r *FactoryRegistry) Tags() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for typ := range r.constructors {
		names = append(names, typ.String())
	}
	sort.Strings(names)
	return names
}
