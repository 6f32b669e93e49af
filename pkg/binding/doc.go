// Package binding defines the wire contract between the control core
// and foreign callers (the scripting front end).
package binding

// The boundary is a serialization boundary: samples, commands and
// configurations cross it in a stable, versioned little-endian layout
// that is independent of any host-language representation. Each
// request/reply pair travels as one packet over a PacketReadWriter;
// the transport below it may be a unix socket, a pipe, or a websocket.
//
// Errors are surfaced as one-byte kinds mirroring the session's error
// taxonomy, so a caller in any language can dispatch on them without
// parsing strings.
