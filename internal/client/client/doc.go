// Package client contains the client-side transports for gophchat.
//
// Realtime is the websocket session: it authenticates once, sends
// commands and exposes inbound frames on a channel. Pull wraps the gRPC
// pull API, attaching the bearer credential to every call and mapping
// status codes to the sentinel errors below. Pull.Upload performs the
// presign-then-PUT flow for file and audio messages.
package client
