// Package coordinator is the sync core of the buddy inbox.
//
// A Coordinator owns the session, the message ledger, the presence tracker
// and the active message source, and keeps them consistent with the local
// store and, in a room, with the cloud mirror. UIs call its methods, then
// re-render from Snapshot whenever an OnChange listener fires.
//
// # Concurrency
//
// All state is guarded by one mutex, so each operation, heartbeat, store
// notification and remote delivery is applied as a single step. Listeners
// run after the mutex is released and may call back into the Coordinator.
// Leaving a room bumps a generation counter before the old subscription is
// closed; deliveries carrying an older generation are dropped.
//
// # Sources
//
// In local mode messages live under bb_messages in the store. In a room
// the mirror is authoritative: sends are appended remotely and come back
// through the subscription, and bb_messages is left untouched.
package coordinator
