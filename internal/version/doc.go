// Package version provides the identity and monotonicity layer shared by
// every mixable model in Jubatus-Go.
//
// Four concepts, in dependency order:
//
//   - Owner: who made a change (a stable process identity).
//   - Version: a per-owner monotonic counter.
//   - Stamp: (Owner, Version) attached to a single row, used for
//     last-writer-wins resolution during MIX.
//   - Clock: owner -> highest-observed-version, used by push-mixable
//     models to compute what a peer still needs to see.
//
// Nothing in this package knows about storage, mixing, or the network; it
// is the leaf of the module's dependency order.
package version
