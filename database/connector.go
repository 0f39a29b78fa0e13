package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
)

// State is the connection lifecycle of a Connector
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrConnectorClosed is returned by Acquire after Close
var ErrConnectorClosed = errors.New("database connector closed")

// Dialer opens a new pool
type Dialer func(ctx context.Context) (Pool, error)

// Connector owns the process-wide pool. It connects lazily, drops the pool
// when a transport error is reported and reconnects on the next Acquire.
type Connector struct {
	dial Dialer

	mu         sync.Mutex
	state      State
	pool       Pool
	connecting chan struct{} // closed when the in-flight dial finishes
	lastErr    error
	closed     bool
}

// NewConnector creates a disconnected connector
func NewConnector(dial Dialer) *Connector {
	return &Connector{dial: dial}
}

// State returns the current connection state
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Acquire returns the live pool, connecting first when disconnected. A call
// makes at most one connect attempt; when another goroutine is already
// connecting the call waits for that attempt instead.
func (c *Connector) Acquire(ctx context.Context) (Pool, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectorClosed
	}

	switch c.state {
	case StateConnected:
		pool := c.pool
		c.mu.Unlock()
		return pool, nil

	case StateConnecting:
		wait := c.connecting
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == StateConnected {
			return c.pool, nil
		}
		return nil, fmt.Errorf("failed to connect to database: %w", c.lastErr)

	default:
		c.state = StateConnecting
		done := make(chan struct{})
		c.connecting = done
		c.mu.Unlock()

		pool, err := c.dial(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		defer close(done)

		if err != nil {
			c.state = StateDisconnected
			c.lastErr = err
			log.WithError(err).Warn("Database connection attempt failed")
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if c.closed {
			pool.Close()
			c.state = StateDisconnected
			c.lastErr = ErrConnectorClosed
			return nil, ErrConnectorClosed
		}

		c.state = StateConnected
		c.pool = pool
		c.lastErr = nil
		log.Info("Connected to database")
		return pool, nil
	}
}

// MarkDisconnected drops pool after a transport failure so the next Acquire
// reconnects. Reports about a pool that was already replaced are ignored.
func (c *Connector) MarkDisconnected(pool Pool) {
	c.mu.Lock()
	if c.state != StateConnected || c.pool != pool {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.pool = nil
	c.mu.Unlock()

	log.Warn("Database connection lost, will reconnect on next use")
	// In-flight queries on the old pool fail with a closed-pool error and are retried
	pool.Close()
}

// Ping checks the live pool, connecting first when needed
func (c *Connector) Ping(ctx context.Context) error {
	pool, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		if IsTransportError(err) {
			c.MarkDisconnected(pool)
		}
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close releases the pool. Later Acquire calls fail with ErrConnectorClosed.
func (c *Connector) Close() {
	c.mu.Lock()
	pool := c.pool
	c.pool = nil
	c.state = StateDisconnected
	c.closed = true
	c.mu.Unlock()

	if pool != nil {
		pool.Close()
	}
}

// IsTransportError reports whether err means the connection itself is gone,
// as opposed to a query or constraint failure on a healthy connection.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception; 57P01-57P03 are server shutdowns
		return strings.HasPrefix(pgErr.Code, "08") ||
			pgErr.Code == "57P01" || pgErr.Code == "57P02" || pgErr.Code == "57P03"
	}

	return strings.Contains(err.Error(), "closed pool") ||
		strings.Contains(err.Error(), "conn closed")
}
