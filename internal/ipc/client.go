package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client is a JSON-RPC connection to a running daemon. It is not safe for
// use after Close.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon socket at path. Errors from the dial are
// returned unwrapped so callers can test for ENOENT and ECONNREFUSED.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: jsonrpc.NewClient(conn)}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if c == nil || c.rpc == nil {
		return nil
	}
	return c.rpc.Close()
}

func invoke[Resp, Req any](c *Client, method string, req Req) (*Resp, error) {
	resp := new(Resp)
	if err := c.rpc.Call(serviceName+"."+method, req, resp); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return resp, nil
}

// Start asks the daemon to begin polling.
func (c *Client) Start() (*StartResponse, error) {
	return invoke[StartResponse](c, "Start", StartRequest{})
}

// Stop asks the daemon to stop polling. The daemon keeps running.
func (c *Client) Stop() (*StopResponse, error) {
	return invoke[StopResponse](c, "Stop", StopRequest{})
}

func (c *Client) Status() (*StatusResponse, error) {
	return invoke[StatusResponse](c, "Status", StatusRequest{})
}

// Scan requests an immediate scan cycle.
func (c *Client) Scan() (*ScanResponse, error) {
	return invoke[ScanResponse](c, "Scan", ScanRequest{})
}

// History lists up to limit recent runs; limit <= 0 returns all.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	return invoke[HistoryResponse](c, "History", HistoryRequest{Limit: limit})
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	return invoke[ShutdownResponse](c, "Shutdown", ShutdownRequest{})
}

func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return invoke[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
