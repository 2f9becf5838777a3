package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// DialFunc establishes a client. ConnectMongo bound to a URI is the production dialer.
type DialFunc func(ctx context.Context) (*mongo.Client, error)

// Connector owns the process-wide Mongo client. It is built once during startup and
// handed to every repository. The first Client call dials; later calls share the
// result. A failed dial is not remembered, so the next caller tries again.
type Connector struct {
	dial DialFunc

	mu     sync.Mutex
	client *mongo.Client
}

// NewConnector returns a Connector that dials uri with the given timeout.
func NewConnector(uri string, timeout time.Duration) *Connector {
	return NewConnectorWithDialer(func(ctx context.Context) (*mongo.Client, error) {
		return ConnectMongo(ctx, uri, timeout)
	})
}

func NewConnectorWithDialer(dial DialFunc) *Connector {
	return &Connector{dial: dial}
}

// Client returns the shared client, dialing on first use.
func (c *Connector) Client(ctx context.Context) (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// Database returns a handle to the named database on the shared client.
func (c *Connector) Database(ctx context.Context, name string) (*mongo.Database, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(name), nil
}

// Connected reports whether a client has been established.
func (c *Connector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// Ping checks the shared client. It does not dial.
func (c *Connector) Ping(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return fmt.Errorf("mongo: not connected")
	}
	return client.Ping(ctx, nil)
}

// Disconnect closes the shared client if one was established.
func (c *Connector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

// ConnectWithRetry dials through the connector with exponential backoff, tolerating
// startup races with the database container.
func (c *Connector) ConnectWithRetry(ctx context.Context, attempts int, backoff time.Duration, onRetry func(attempt int, err error)) (*mongo.Client, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		client, err := c.Client(ctx)
		if err == nil {
			return client, nil
		}
		lastErr = err
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("mongo: giving up after %d attempts: %w", attempts, lastErr)
}
