package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Conveyor.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Conveyor.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Conveyor.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BuildSubmit enqueues a pipeline file as a new build.
func (c *Client) BuildSubmit(path string) (*BuildSubmitResponse, error) {
	var resp BuildSubmitResponse
	if err := c.client.Call("Conveyor.BuildSubmit", BuildSubmitRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BuildList returns builds optionally filtered by statuses.
func (c *Client) BuildList(statuses []string) (*BuildListResponse, error) {
	var resp BuildListResponse
	if err := c.client.Call("Conveyor.BuildList", BuildListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BuildDescribe returns details for a single build and its jobs.
func (c *Client) BuildDescribe(id int64) (*BuildDescribeResponse, error) {
	var resp BuildDescribeResponse
	if err := c.client.Call("Conveyor.BuildDescribe", BuildDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BuildCancel cancels a build that has not started yet.
func (c *Client) BuildCancel(id int64) (*BuildCancelResponse, error) {
	var resp BuildCancelResponse
	if err := c.client.Call("Conveyor.BuildCancel", BuildCancelRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BuildRetry requeues a finished build.
func (c *Client) BuildRetry(id int64) (*BuildRetryResponse, error) {
	var resp BuildRetryResponse
	if err := c.client.Call("Conveyor.BuildRetry", BuildRetryRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail reads lines from the daemon log or from a job's command log.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Conveyor.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes builds from the queue.
func (c *Client) QueueClear(finishedOnly bool) (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.client.Call("Conveyor.QueueClear", QueueClearRequest{FinishedOnly: finishedOnly}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
