package noderpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/rpcclient"
)

// methodBlockchainActivity reports the block and transaction processing
// the node still has in flight.
const methodBlockchainActivity = "getblockchainactivity"

// ErrNoHost is returned when creating a client without an RPC host.
var ErrNoHost = errors.New("no RPC host configured")

// Activity maps each category of asynchronous node work to the number of
// items in flight.
type Activity map[string]int64

// Total returns the number of in flight items over every category.
func (a Activity) Total() int64 {
	var total int64
	for _, n := range a {
		total += n
	}

	return total
}

// Config holds the connection parameters of the node's JSON-RPC server.
type Config struct {
	// Host is the host:port of the RPC server.
	Host string

	// User and Pass are the basic auth credentials.
	User string
	Pass string

	// DisableTLS talks plain HTTP to the server.
	DisableTLS bool

	// Certificates are the PEM encoded certificates used to verify the
	// server when TLS is enabled.
	Certificates []byte
}

// Client queries the node over JSON-RPC in HTTP POST mode.
type Client struct {
	rpc *rpcclient.Client
}

// New creates a client for the node described by cfg.
func New(cfg *Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, ErrNoHost
	}

	rpc, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		DisableTLS:   cfg.DisableTLS,
		Certificates: cfg.Certificates,
		HTTPPostMode: true,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to create RPC client: %w", err)
	}

	log.Debugf("Created RPC client for %v", cfg.Host)

	return &Client{rpc: rpc}, nil
}

// BlockchainActivity returns the node's in flight block and transaction
// processing. A zero Total means the node drained all asynchronous work
// triggered by the messages sent so far.
func (c *Client) BlockchainActivity(ctx context.Context) (Activity, error) {
	type result struct {
		raw json.RawMessage
		err error
	}

	future := c.rpc.RawRequestAsync(methodBlockchainActivity, nil)
	resChan := make(chan result, 1)
	go func() {
		raw, err := future.Receive()
		resChan <- result{raw: raw, err: err}
	}()

	var res result
	select {
	case res = <-resChan:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, fmt.Errorf("%v failed: %w", methodBlockchainActivity,
			res.err)
	}

	var activity Activity
	if err := json.Unmarshal(res.raw, &activity); err != nil {
		return nil, fmt.Errorf("unable to parse %v result: %w",
			methodBlockchainActivity, err)
	}

	log.Tracef("Blockchain activity: %v", activity)

	return activity, nil
}

// Shutdown stops the client and waits for its requests to finish.
func (c *Client) Shutdown() {
	c.rpc.Shutdown()
	c.rpc.WaitForShutdown()
}
