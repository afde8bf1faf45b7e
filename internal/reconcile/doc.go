// Package reconcile implements the desired/implemented state control
// loop and the operation executor that drives remote applies.
//
// ARCHITECTURE:
//
// Level-Triggered Reconciliation:
// Reconcile() reads current state and dispatches work; it never reacts
// to individual events. It is called synchronously after every desired
// state mutation and after every operation settles (success, failure,
// stale discard, timeout). Calling it redundantly is free and safe: the
// per-entity in-flight slot makes dispatch idempotent.
//
// Single Serializing Lock:
// All state (desired, implemented, in-flight slots, statuses) is guarded
// by one mutex. Remote applies run on their own goroutines outside the
// lock, one at a time per entity, concurrently across entities.
//
// Optimistic Tag Check:
// Every dispatched operation carries an immutable tag snapshotting the
// target state. In-flight operations are never cancelled; a response is
// validated on arrival instead. A response whose tag no longer owns the
// entity's slot (a newer operation or a timeout superseded it), or whose
// target no longer equals the current desired state, is discarded
// without touching implemented state. The next reconcile pass converges
// on whatever the desired state is by then.
//
// Retry and Timeout:
// Remote failures progress Processing -> Retry -> ... -> Error over
// maxRetries+1 attempts. A Processing status older than the timeout is
// converted into the same failure path by the background sweep. Error is
// sticky: reconciliation skips the entity until RetryOperation clears it
// or a newer desired state supersedes it. Terminal statuses are garbage
// collected after a fixed delay; implemented state is never touched by
// cleanup.
package reconcile
