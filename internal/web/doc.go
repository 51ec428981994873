// Package web serves the buddy inbox over HTTP.
//
// It exposes a small JSON API over a coordinator.Coordinator and a
// WebSocket endpoint (/ws) that pushes a fresh models.Snapshot whenever
// the coordinator reports a change. The index page renders from those
// snapshots, so every open tab re-renders on each change.
package web
