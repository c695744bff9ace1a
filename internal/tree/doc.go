// Package tree implements an incremental, lazily expanded tree of nodes for
// views that mirror an externally mutating data source.
//
// Nodes compute their children on demand and keep them until Refresh
// invalidates them. Composite nodes use a Reconciler to merge a freshly
// fetched item set into the previous child list, keeping node instances
// (and therefore their subscriptions) alive for keys that did not change.
// A Driver exposes the graph to a host and emits change notifications
// scoped to the smallest affected subtree.
package tree
