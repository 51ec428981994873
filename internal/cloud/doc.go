// Package cloud mirrors a room's messages through Redis Streams so several
// buddy processes on different machines see the same conversation.
//
// Each room is one stream, rooms:<room>:messages, whose entries carry the
// JSON message in the "msg" field. Redis assigns entry ids, so the stream
// order is the order every subscriber sees.
//
// When Redis is not configured or not reachable at startup, Open returns
// LocalOnly and the app stays in local mode for the rest of the process.
package cloud
