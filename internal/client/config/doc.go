// Package config loads runtime configuration for the gophchat terminal client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the gRPC pull API
//	-w string   websocket URL of the gateway
//	-k string   bearer credential (prompted for when empty)
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
//	{
//	  "grpc_addr": "127.0.0.1:50051",
//	  "ws_url": "ws://127.0.0.1:8080/ws",
//	  "online_check_interval": "3s"
//	}
package config
