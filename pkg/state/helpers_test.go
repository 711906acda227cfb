package state_test

import (
	"context"
	"testing"

	groups "github.com/goliatone/go-groups"
	"github.com/goliatone/go-groups/pkg/state"
)

type badge struct{ id int }

func (b *badge) ElementID() int { return b.id }

type badgeHost struct {
	Badges []*badge
}

func newBadgeGroup(t *testing.T, defaultCount int) (*badgeHost, *groups.GroupDescriptor, *groups.Reconciler) {
	t.Helper()
	host := &badgeHost{}
	d, err := groups.DescriptorFor[*badge](
		groups.NamespaceOwner("profile"),
		"badges",
		groups.Classification{ElementType: "badge"},
		defaultCount,
		groups.NewSliceAccessor(&host.Badges),
	)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	registry := groups.NewFactoryRegistry()
	groups.MustRegisterConstructor(registry, func(id int) (*badge, error) { return &badge{id: id}, nil })
	r, err := groups.NewReconciler(registry)
	if err != nil {
		t.Fatalf("reconciler: %v", err)
	}
	return host, d, r
}

func hostIDs(host *badgeHost) []int {
	out := make([]int, len(host.Badges))
	for i, b := range host.Badges {
		out[i] = b.id
	}
	return out
}

// recordingStore wraps a store and counts calls.
type recordingStore struct {
	inner     state.Store
	loadErr   error
	saveErr   error
	saveCalls int
	lastMeta  state.Meta
}

func (s *recordingStore) Load(ctx context.Context, key string) (groups.IDList, state.Meta, bool, error) {
	if s.loadErr != nil {
		return nil, state.Meta{}, false, s.loadErr
	}
	return s.inner.Load(ctx, key)
}

func (s *recordingStore) Save(ctx context.Context, key string, ids groups.IDList, meta state.Meta) (state.Meta, error) {
	s.saveCalls++
	s.lastMeta = meta
	if s.saveErr != nil {
		return state.Meta{}, s.saveErr
	}
	return s.inner.Save(ctx, key, ids, meta)
}
