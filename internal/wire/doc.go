// Package wire implements the Lattice wire format: the front-consumable
// byte buffer each connection uses for its incoming and outgoing streams,
// and the length-prefixed request and response frames carried on it.
//
// All multi-byte fields are little-endian.
package wire
