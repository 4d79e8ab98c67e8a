package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/cryguy/jsbridge/internal/codec"
)

// ErrClientClosed is returned for requests on a closed client.
var ErrClientClosed = errors.New("remote: client closed")

// Client sends requests to a Server. It is safe for concurrent use.
type Client struct {
	conn  *websocket.Conn
	codec *codec.Codec

	writeMu sync.Mutex

	mu      sync.Mutex
	waiting map[string]chan Response
	err     error
	done    chan struct{}
}

// Dial connects to a Server at url, e.g. "ws://127.0.0.1:8765".
func Dial(ctx context.Context, url string, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	conn.SetReadLimit(MaxMessageBytes)
	c := &Client{
		conn:    conn,
		codec:   codec.New(log),
		waiting: make(map[string]chan Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var resp Response
		if err := wsjson.Read(context.Background(), c.conn, &resp); err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		c.mu.Lock()
		ch, ok := c.waiting[resp.ID]
		delete(c.waiting, resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// Call runs the engine function args[0] with the remaining arguments.
func (c *Client) Call(ctx context.Context, args ...any) (any, error) {
	vals, err := c.codec.FromHostArgs(args)
	if err != nil {
		return nil, fmt.Errorf("call: %w", err)
	}
	return c.do(ctx, Request{Op: OpCall, Args: vals})
}

// Eval evaluates script, at global scope when global is set.
func (c *Client) Eval(ctx context.Context, script string, global bool) (any, error) {
	mode := ModeDirect
	if global {
		mode = ModeGlobal
	}
	return c.do(ctx, Request{Op: OpEval, Script: script, Mode: mode})
}

func (c *Client) do(ctx context.Context, req Request) (any, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	req.ID = id.String()
	ch := make(chan Response, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.waiting[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err = wsjson.Write(ctx, c.conn, req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return nil, fmt.Errorf("sending %s: %w", req.Op, err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error.asError(req.Op)
		}
		if resp.Result == nil {
			return nil, nil
		}
		return c.codec.ToHost(*resp.Result)
	case <-c.done:
		return nil, ErrClientClosed
	case <-ctx.Done():
		c.forget(req.ID)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.waiting, id)
	c.mu.Unlock()
}

// Close closes the connection.
func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	<-c.done
	return err
}
