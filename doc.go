// Package groups keeps dynamically sized groups of polymorphic elements in
// step with a persisted list of integer ids.
//
// A GroupDescriptor binds an owner, a slice-typed slot and the element type
// discovered from that slot's declared type. A Reconciler turns an IDList into
// freshly constructed elements through an ElementFactory and replaces the slot
// content in one write. Ids that are null or negative, ids rejected by an
// optional admission rule, and ids whose construction fails are skipped and
// reported in the Outcome; only a failed validation or write aborts the call.
//
//	host := &Scene{}
//	d, err := groups.DescriptorFor[*Overlay](host, "Overlays", groups.Classification{}, 2,
//		groups.NewSliceAccessor(&host.Overlays))
//	...
//	r, err := groups.NewReconciler(registry, groups.WithAdmissionRule("id < 16"))
//	outcome := r.Reconcile(d, groups.IDs(0, 3, 7))
//
// Persistence lives in pkg/state; rule engines are expr (default), cel and js
// (with the js_eval build tag).
package groups
