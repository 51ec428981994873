// Package cli provides the interactive buddy inbox command line.
//
// App wraps a coordinator.Coordinator with a read-eval-print loop. Typical
// flow: log in with a name, send yourself messages, read them back with
// show, and optionally join a cloud room others can open from a link.
//
// Key features:
//   - login / logout, users
//   - send, show, inbox, outbox, delete, clear
//   - lock / unlock with a PIN read without echo
//   - export / import backups (local file, optional S3 copy)
//   - room, link for cloud rooms
//
// The REPL is started via App.Run, which blocks until the user exits or
// input ends.
package cli
