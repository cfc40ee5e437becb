// Package window defines the window and namespace types used to scope keyed state and timers.
//
// Window assignment and merging happen upstream: by the time an element reaches the stateful engine its
// windows are final. The engine treats a Window as an opaque, equatable and orderable value. Equality is
// decided by ID, ordering by end time, then start time, then ID.
//
// A Namespace is the (key, window) pair under which state cells and timers are addressed.
package window
