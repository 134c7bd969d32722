package session

import (
	"bytes"
	"io"
	"sync"
)

// Conn is the uniform surface the session state machine is written
// against. Real transport-backed connections and in-memory virtual
// connections implement it identically, so session logic never knows
// which variant is driving it.
type Conn interface {
	Write(p []byte) (int, error)

	// InjectInput feeds one line of input into the session bound to this
	// connection. Real transports call it from their read loop; tests
	// call it directly.
	InjectInput(line string)

	IsActive() bool
	Close() error
}

// inputSink is installed by the session manager when a session is bound
// to a connection.
type inputSink func(line string)

// VirtualConn is the in-memory connection used to drive session logic
// without a socket. All written output accumulates in an append-only
// buffer that is readable synchronously once InjectInput returns.
type VirtualConn struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	sink   inputSink
	closed bool
}

func NewVirtualConn() *VirtualConn {
	return &VirtualConn{}
}

func (c *VirtualConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	return c.buf.Write(p)
}

func (c *VirtualConn) InjectInput(line string) {
	c.mu.Lock()
	sink := c.sink
	closed := c.closed
	c.mu.Unlock()

	if closed || sink == nil {
		return
	}
	sink(line)
}

func (c *VirtualConn) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *VirtualConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Output returns everything written so far, retaining the buffer.
func (c *VirtualConn) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Drain returns everything written so far and clears the buffer.
func (c *VirtualConn) Drain() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.buf.String()
	c.buf.Reset()
	return out
}

func (c *VirtualConn) bind(sink inputSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// remoteConn adapts a transport-backed io.ReadWriter. The listener layer
// owns the socket lifecycle; Close here only marks the session side
// inactive so the read loop unwinds.
type remoteConn struct {
	mu     sync.Mutex
	rw     io.ReadWriter
	sink   inputSink
	closed bool
}

func newRemoteConn(rw io.ReadWriter) *remoteConn {
	return &remoteConn{rw: rw}
}

func (c *remoteConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	return c.rw.Write(p)
}

func (c *remoteConn) InjectInput(line string) {
	c.mu.Lock()
	sink := c.sink
	closed := c.closed
	c.mu.Unlock()

	if closed || sink == nil {
		return
	}
	sink(line)
}

func (c *remoteConn) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *remoteConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *remoteConn) bind(sink inputSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

// bindable is satisfied by both connection variants.
type bindable interface {
	Conn
	bind(inputSink)
}
