// Package transport defines the abstract byte-stream a client engine reads
// control packets from and writes them to, independent of the concrete
// carrier (TCP, TLS, a WebSocket, an in-memory pipe for tests).
package transport

import "io"

// Stream is the minimal carrier contract the engine depends on: a plain
// reader/writer pair. Anything satisfying net.Conn already satisfies this,
// but nothing here requires net.Conn specifically — a test can hand the
// engine a bytes.Buffer pair or an in-process pipe.
type Stream interface {
	io.Reader
	io.Writer
}

// Closer is implemented by streams that own an underlying resource (a
// socket, a file descriptor) that must be released when the engine is
// done with it. Not folded into Stream itself so that non-closable
// streams (e.g. a bytes.Buffer used in tests) still satisfy Stream.
type Closer interface {
	Close() error
}
