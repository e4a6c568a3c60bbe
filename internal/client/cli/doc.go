// Package cli provides the interactive gophchat terminal client.
//
// It connects the websocket session and the gRPC pull API with one bearer
// credential, prints inbound events as they arrive and runs a small REPL
// for listing conversations, reading history, sending text, file and audio
// messages, recalling and marking read.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
