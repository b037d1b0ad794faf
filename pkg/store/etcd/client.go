// Layer 2: etcd client wrapper (depends on logger)
package etcd

import (
	"context"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/orion-compute/orion-engine/pkg/logger"
)

// Client: Wrapper around the etcd client for all etcd operations
type Client struct {
	cli     *clientv3.Client
	timeout time.Duration
	log     *logger.Logger
}

// NewClient: Connect to etcd
func NewClient(endpoints []string, timeout time.Duration) (*Client, error) {
	log := logger.Get()

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		log.Error("Failed to connect to etcd: %v", err)
		return nil, err
	}

	log.Info("Connected to etcd at %v", endpoints)

	return &Client{
		cli:     cli,
		timeout: timeout,
		log:     log,
	}, nil
}

// Close: Close etcd connection
func (c *Client) Close() error {
	return c.cli.Close()
}

// ============================================================================
// BASIC OPERATIONS
// ============================================================================

// Put: Store a key-value pair
func (c *Client) Put(ctx context.Context, key, value string) error {
	_, err := c.cli.Put(ctx, key, value)
	if err != nil {
		c.log.Error("Failed to put key %s: %v", key, err)
		return err
	}
	c.log.Debug("Put key: %s", key)
	return nil
}

// Get: Retrieve a value by key. Empty string when the key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	resp, err := c.cli.Get(ctx, key)
	if err != nil {
		c.log.Error("Failed to get key %s: %v", key, err)
		return "", err
	}
	if len(resp.Kvs) == 0 {
		return "", nil
	}
	return string(resp.Kvs[0].Value), nil
}

// GetWithRevision: Retrieve a value and its mod revision.
// found=false when the key is absent.
func (c *Client) GetWithRevision(ctx context.Context, key string) (value string, rev int64, found bool, err error) {
	resp, err := c.cli.Get(ctx, key)
	if err != nil {
		c.log.Error("Failed to get key %s: %v", key, err)
		return "", 0, false, err
	}
	if len(resp.Kvs) == 0 {
		return "", 0, false, nil
	}
	kv := resp.Kvs[0]
	return string(kv.Value), kv.ModRevision, true, nil
}

// GetAll: Get all keys with prefix, in etcd's sorted key order
func (c *Client) GetAll(ctx context.Context, prefix string) (map[string]string, error) {
	resp, err := c.cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, kv := range resp.Kvs {
		result[string(kv.Key)] = string(kv.Value)
	}

	c.log.Debug("Got %d keys with prefix: %s", len(result), prefix)
	return result, nil
}

// GetAllOrdered: Get values with prefix, preserving etcd's key order
func (c *Client) GetAllOrdered(ctx context.Context, prefix string) ([]string, error) {
	resp, err := c.cli.Get(ctx, prefix, clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		values = append(values, string(kv.Value))
	}
	return values, nil
}

// Delete: Delete a key
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.cli.Delete(ctx, key)
	if err != nil {
		c.log.Error("Failed to delete key %s: %v", key, err)
		return err
	}
	return nil
}

// DeletePrefix: Delete every key under a prefix
func (c *Client) DeletePrefix(ctx context.Context, prefix string) error {
	resp, err := c.cli.Delete(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		c.log.Error("Failed to delete prefix %s: %v", prefix, err)
		return err
	}
	c.log.Debug("Deleted %d keys with prefix: %s", resp.Deleted, prefix)
	return nil
}

// ============================================================================
// TRANSACTIONS & LOCKING
// ============================================================================

// Txn: Start a raw transaction for compare-and-swap commits
func (c *Client) Txn(ctx context.Context) clientv3.Txn {
	return c.cli.Txn(ctx)
}

// CreateIfAbsent: Atomic "put if key does not exist"
// Returns true when this call created the key.
func (c *Client) CreateIfAbsent(ctx context.Context, key, value string) (bool, error) {
	resp, err := c.cli.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, value)).
		Commit()
	if err != nil {
		c.log.Error("CreateIfAbsent failed on key %s: %v", key, err)
		return false, err
	}
	return resp.Succeeded, nil
}

// NewSession: Create a session for distributed mutexes
func (c *Client) NewSession(ttlSeconds int) (*concurrency.Session, error) {
	sess, err := concurrency.NewSession(c.cli, concurrency.WithTTL(ttlSeconds))
	if err != nil {
		return nil, err
	}
	c.log.Debug("Created session: %d", sess.Lease())
	return sess, nil
}
