package groups

import (
	"errors"
	"sync"
	"testing"
)

type textOverlay struct {
	id    int
	label string
}

func (o *textOverlay) ElementID() int { return o.id }

type iconOverlay struct{ id int }

func (o *iconOverlay) ElementID() int { return o.id }

type overlayHost struct {
	Overlays []*textOverlay
	Icons    []*iconOverlay
	Count    int
	hidden   []*textOverlay
}

func newOverlayRegistry(t *testing.T) *FactoryRegistry {
	t.Helper()
	registry := NewFactoryRegistry()
	if err := RegisterConstructor(registry, func(id int) (*textOverlay, error) {
		return &textOverlay{id: id}, nil
	}); err != nil {
		t.Fatalf("register textOverlay: %v", err)
	}
	return registry
}

func newOverlayDescriptor(t *testing.T, slot *[]*textOverlay, defaultCount int) *GroupDescriptor {
	t.Helper()
	d, err := DescriptorFor[*textOverlay](
		NamespaceOwner("combat"),
		"myOverlays",
		Classification{ElementType: "text", RenderState: "hud"},
		defaultCount,
		NewSliceAccessor(slot),
	)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	return d
}

func newReconciler(t *testing.T, factory ElementFactory, opts ...Option) *Reconciler {
	t.Helper()
	r, err := NewReconciler(factory, opts...)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}
	return r
}

var errBrokenSlot = errors.New("broken slot")

// brokenAccessor fails every call it is configured to fail, and otherwise
// behaves like a SliceAccessor.
type brokenAccessor struct {
	slot       *[]*textOverlay
	failRead   bool
	failWrite  bool
	writeCalls int
}

func (a *brokenAccessor) Read(owner Owner) ([]Element, error) {
	if a.failRead {
		return nil, errBrokenSlot
	}
	return NewSliceAccessor(a.slot).Read(owner)
}

func (a *brokenAccessor) Write(owner Owner, elements []Element) error {
	a.writeCalls++
	if a.failWrite {
		return errBrokenSlot
	}
	return NewSliceAccessor(a.slot).Write(owner, elements)
}

type logRecorder struct {
	mu     sync.Mutex
	events []ReconcileLogEvent
}

func (r *logRecorder) LogReconcile(event ReconcileLogEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *logRecorder) stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stage, len(r.events))
	for i, event := range r.events {
		out[i] = event.Stage
	}
	return out
}

func elementIDs(elements []Element) []int {
	out := make([]int, len(elements))
	for i, el := range elements {
		out[i] = el.ElementID()
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
