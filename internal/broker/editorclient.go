// Package broker wires the subsystems in internal/lsp, internal/watcher and
// internal/semtok into one process: it owns the editor-facing peer
// connection, dispatches editor requests/notifications through the router,
// and satisfies lsp.EditorPeer so workspace edits and higher-level editor
// commands can be sent back out.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lspbroker/lspbroker/internal/lsp"
	"github.com/lspbroker/lspbroker/internal/logging"
)

// EditorClient is the counter-peer of the editor side: a JSON-RPC 2.0
// connection framed with a blank line between messages (see
// lsp.FramingBlankLine), used both to receive editor requests/notifications
// and to drive the editor with call/notify/command/eval.
//
// Its pending-replies table and id counter mirror lsp.Transport's; the
// difference is the message shape is classified generically via
// lsp.ClassifyMessage rather than assumed to always be a reply, since the
// editor channel carries requests, notifications and replies interleaved in
// both directions.
type EditorClient struct {
	codec  *lsp.Codec
	router *lsp.Router
	logger *logging.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan *editorReply

	closed atomic.Bool
	done   chan struct{}
}

type editorReply struct {
	result json.RawMessage
	err    *lsp.RPCError
}

// editorEnvelope is the union of every field that can appear on a message
// read from the editor channel; which ones are populated is decided by
// lsp.ClassifyMessage before this is unmarshaled.
type editorEnvelope struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *lsp.RPCError   `json:"error,omitempty"`
}

type outboundEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method,omitempty"`
	Params  any    `json:"params,omitempty"`
}

// NewEditorClient creates an editor peer over codec, dispatching inbound
// requests and notifications through router.
func NewEditorClient(codec *lsp.Codec, router *lsp.Router, logger *logging.Logger) *EditorClient {
	return &EditorClient{
		codec:   codec,
		router:  router,
		logger:  logger,
		pending: make(map[int64]chan *editorReply),
		done:    make(chan struct{}),
	}
}

// Run reads messages from the editor channel until the stream ends, ctx is
// canceled, or Close is called. ctx and Close are checked between messages
// only: a read already blocked on the stream is not interrupted, and Run
// returns once that read completes or fails.
func (c *EditorClient) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		data, err := c.codec.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return nil
			}
			return fmt.Errorf("broker: read editor message: %w", err)
		}
		c.handleMessage(ctx, data)
	}
}

func (c *EditorClient) handleMessage(ctx context.Context, data []byte) {
	shape := lsp.ClassifyMessage(data)

	var env editorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("malformed editor message: %v", err)
		return
	}

	switch {
	case shape.IsReply():
		c.handleReply(env)
	case shape.IsRequest():
		c.handleRequest(env)
	case shape.IsNotification():
		c.handleNotification(env)
	default:
		c.logger.Warn("unclassifiable editor message: %s", string(data))
	}
}

func (c *EditorClient) handleReply(env editorEnvelope) {
	var id int64
	if err := json.Unmarshal(env.ID, &id); err != nil {
		c.logger.Warn("editor reply with non-numeric id: %v", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if !ok {
		return // late reply for a dropped/timed-out slot; discard per cancellation policy
	}
	ch <- &editorReply{result: env.Result, err: env.Error}
}

func (c *EditorClient) handleRequest(env editorEnvelope) {
	id := env.ID
	if c.router == nil {
		return
	}
	c.router.DispatchRequest(lsp.InboundRequest{
		PeerTag: "editor",
		ID:      id,
		Method:  env.Method,
		Params:  env.Params,
		Reply: func(result any, rpcErr *lsp.RPCError) {
			c.writeReply(id, result, rpcErr)
		},
	})
}

func (c *EditorClient) handleNotification(env editorEnvelope) {
	if c.router == nil {
		return
	}
	c.router.DispatchNotification(lsp.InboundNotification{
		PeerTag: "editor",
		Method:  env.Method,
		Params:  env.Params,
	})
}

func (c *EditorClient) writeReply(id json.RawMessage, result any, rpcErr *lsp.RPCError) {
	msg := struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result,omitempty"`
		Error   *lsp.RPCError   `json:"error,omitempty"`
	}{JSONRPC: "2.0", ID: id, Result: result, Error: rpcErr}

	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal editor reply: %v", err)
		return
	}
	c.writeRaw(data)
}

func (c *EditorClient) writeRaw(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.codec.WriteMessage(data); err != nil {
		c.logger.Warn("write to editor failed: %v", err)
	}
}

// Call sends a "call" request naming an editor-side function with
// positional args and decodes its result into result (if non-nil). This and
// Notify together satisfy lsp.EditorPeer.
func (c *EditorClient) Call(ctx context.Context, function string, args []any, result any) error {
	return c.doCall(ctx, "call", []any{function, args}, result)
}

// Notify sends a fire-and-forget "notify" naming an editor-side function
// with positional args.
func (c *EditorClient) Notify(ctx context.Context, function string, args []any) error {
	return c.doNotify(ctx, "notify", []any{function, args})
}

// Command runs an editor ex command (the editor-facing "command" primitive).
func (c *EditorClient) Command(ctx context.Context, cmd string) error {
	return c.doNotify(ctx, "command", []any{cmd})
}

// Eval evaluates an editor expression and decodes the result into result.
func (c *EditorClient) Eval(ctx context.Context, expr string, result any) error {
	return c.doCall(ctx, "eval", []any{expr}, result)
}

func (c *EditorClient) doCall(ctx context.Context, method string, params any, result any) error {
	if c.closed.Load() {
		return lsp.ErrShutdown
	}

	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan *editorReply, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := json.Marshal(outboundEnvelope{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal editor call: %w", err)
	}
	c.writeRaw(data)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return lsp.ErrShutdown
	case reply := <-ch:
		if reply.err != nil {
			return reply.err
		}
		if result != nil && len(reply.result) > 0 {
			if err := json.Unmarshal(reply.result, result); err != nil {
				return fmt.Errorf("unmarshal editor call result: %w", err)
			}
		}
		return nil
	}
}

func (c *EditorClient) doNotify(ctx context.Context, method string, params any) error {
	if c.closed.Load() {
		return lsp.ErrShutdown
	}
	data, err := json.Marshal(outboundEnvelope{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal editor notification: %w", err)
	}
	c.writeRaw(data)
	return nil
}

// Close fails every pending call with ErrShutdown and makes Run return
// before its next read.
func (c *EditorClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)
	return nil
}
