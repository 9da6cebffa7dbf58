// Package ipc exposes daemon control over a Unix domain socket using JSON-RPC.
// The CLI is the only intended client; the wire types live in types.go.
package ipc
