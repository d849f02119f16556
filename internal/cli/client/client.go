// Package client provides the blocking TCP client lattice-cli uses to
// talk to a Lattice server.
package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/latticekv/lattice/internal/wire"
)

// Default timeouts for dialing and for a single request's response.
const (
	DefaultDialTimeout    = 5 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Client is a connection to a Lattice server. Every request expects
// exactly one response; Do is not safe for concurrent use.
type Client struct {
	conn    net.Conn
	timeout time.Duration
	acc     *wire.Buffer
	chunk   []byte
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout sets the per-request response timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Dial connects to the server at addr.
func Dial(addr string, opts ...Option) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, DefaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}

	c := &Client{
		conn:    conn,
		timeout: DefaultRequestTimeout,
		acc:     wire.NewBuffer(),
		chunk:   make([]byte, 4096),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends one command and reads its response.
func (c *Client) Do(cmd ...string) (*wire.Response, error) {
	buf := wire.NewBufferCap(wire.RequestHeaderLen + wire.MaxRequestLen)
	if err := wire.NewRequest(cmd...).Marshal(buf); err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}
	for buf.Len() > 0 {
		n, err := c.conn.Write(buf.Data())
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		buf.Consume(n)
	}

	return c.readResponse()
}

func (c *Client) readResponse() (*wire.Response, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}

	for {
		resp, n, err := wire.UnmarshalResponse(c.acc.Data())
		if err == nil {
			c.acc.Consume(n)
			return resp, nil
		}
		if !errors.Is(err, wire.ErrIncomplete) {
			return nil, fmt.Errorf("decode response: %w", err)
		}

		n, rerr := c.conn.Read(c.chunk)
		if n > 0 {
			c.acc.Append(c.chunk[:n])
			continue
		}
		if rerr != nil {
			return nil, fmt.Errorf("read response: %w", rerr)
		}
	}
}
