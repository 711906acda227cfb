package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	groups "github.com/goliatone/go-groups"
)

// ErrETagMismatch reports a save whose expected etag no longer matches the
// stored revision.
var ErrETagMismatch = errors.New("state: etag mismatch")

// Meta is storage-owned metadata used for audit and optimistic concurrency.
// ETag is assigned by the store on every save; a non-empty ETag passed to Save
// must match the stored one.
type Meta struct {
	ETag      string            `json:"etag,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Store loads and saves the persisted id list of one group, addressed by its
// config key.
type Store interface {
	Load(ctx context.Context, key string) (ids groups.IDList, meta Meta, ok bool, err error)
	Save(ctx context.Context, key string, ids groups.IDList, meta Meta) (Meta, error)
}

// ClosableStore is a Store holding resources that must be released.
type ClosableStore interface {
	Store
	Close() error
}

// Mutator edits a loaded id list and returns the list to save.
type Mutator func(ids groups.IDList) (groups.IDList, error)

// Resolver connects a Store to a Reconciler: it loads the list stored under a
// descriptor's config key and reconciles it, and it saves edited lists back.
type Resolver struct {
	Store      Store
	Reconciler *groups.Reconciler
}

// Resolve loads the list for d and reconciles it. A key that was never saved
// resolves to d.DefaultIDs(), the list of a freshly registered group. The
// returned error covers loading only; the outcome reports the commit.
func (r Resolver) Resolve(ctx context.Context, d *groups.GroupDescriptor) (groups.Outcome, error) {
	if err := r.check(d); err != nil {
		return groups.Outcome{}, err
	}
	ids, _, err := r.load(ctx, d)
	if err != nil {
		return groups.Outcome{}, err
	}
	return r.Reconciler.Reconcile(d, ids), nil
}

// Persist saves the ids of the elements currently held by d. A slot that
// cannot be read fails with the accessor's *groups.AccessError and the stored
// list is left alone.
func (r Resolver) Persist(ctx context.Context, d *groups.GroupDescriptor) (Meta, error) {
	if r.Store == nil {
		return Meta{}, fmt.Errorf("state: store is required")
	}
	if d == nil {
		return Meta{}, fmt.Errorf("state: descriptor is required")
	}
	key := d.ConfigKey()
	elements, err := d.ReadElements()
	if err != nil {
		return Meta{}, fmt.Errorf("state: persist %q: %w", key, err)
	}
	meta, err := r.Store.Save(ctx, key, groups.IDsOf(elements), Meta{})
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %q: %w", key, err)
	}
	return meta, nil
}

// Mutate loads the list for d, applies fn, saves the result and reconciles
// it. When meta carries an ETag it must match the stored one. Nothing is saved
// or reconciled when fn fails.
func (r Resolver) Mutate(ctx context.Context, d *groups.GroupDescriptor, meta Meta, fn Mutator) (groups.Outcome, Meta, error) {
	if err := r.check(d); err != nil {
		return groups.Outcome{}, Meta{}, err
	}
	if fn == nil {
		return groups.Outcome{}, Meta{}, fmt.Errorf("state: mutator is required")
	}

	ids, loadedMeta, err := r.load(ctx, d)
	if err != nil {
		return groups.Outcome{}, Meta{}, err
	}
	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return groups.Outcome{}, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	next, err := fn(ids.Clone())
	if err != nil {
		return groups.Outcome{}, loadedMeta, err
	}

	key := d.ConfigKey()
	savedMeta, err := r.Store.Save(ctx, key, next, mergeMeta(loadedMeta, meta))
	if err != nil {
		return groups.Outcome{}, loadedMeta, fmt.Errorf("state: save %q: %w", key, err)
	}
	return r.Reconciler.Reconcile(d, next), savedMeta, nil
}

// AddElement appends the lowest id not yet in use and reconciles. The new id
// is the last entry of the saved list.
func (r Resolver) AddElement(ctx context.Context, d *groups.GroupDescriptor) (groups.Outcome, Meta, error) {
	return r.Mutate(ctx, d, Meta{}, func(ids groups.IDList) (groups.IDList, error) {
		return append(ids, groups.ValidID(ids.NextFreeID())), nil
	})
}

// RemoveElement drops every entry equal to id and reconciles.
func (r Resolver) RemoveElement(ctx context.Context, d *groups.GroupDescriptor, id int) (groups.Outcome, Meta, error) {
	return r.Mutate(ctx, d, Meta{}, func(ids groups.IDList) (groups.IDList, error) {
		return ids.Without(id), nil
	})
}

func (r Resolver) check(d *groups.GroupDescriptor) error {
	switch {
	case r.Store == nil:
		return fmt.Errorf("state: store is required")
	case r.Reconciler == nil:
		return fmt.Errorf("state: reconciler is required")
	case d == nil:
		return fmt.Errorf("state: descriptor is required")
	}
	return nil
}

func (r Resolver) load(ctx context.Context, d *groups.GroupDescriptor) (groups.IDList, Meta, error) {
	key := d.ConfigKey()
	ids, meta, ok, err := r.Store.Load(ctx, key)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q: %w", key, err)
	}
	if !ok {
		return d.DefaultIDs(), Meta{}, nil
	}
	return ids, meta, nil
}

// mergeMeta builds the meta for a save that follows a load. UpdatedAt is never
// carried over so the store stamps the new revision.
func mergeMeta(base, override Meta) Meta {
	out := base
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	out.UpdatedAt = override.UpdatedAt
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("state: key is required")
	}
	return nil
}

// checkRevision compares an expected etag with the stored revision. Stores
// use the revision counter as their etag.
func checkRevision(expected string, current int64) error {
	if expected == "" {
		return nil
	}
	if expected != revisionETag(current) {
		return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, revisionETag(current))
	}
	return nil
}

func revisionETag(revision int64) string {
	if revision == 0 {
		return ""
	}
	return strconv.FormatInt(revision, 10)
}
