package lsp

import (
	"encoding/json"
	"fmt"
	"sync"
)

// InboundRequest is a request arriving from a peer (editor or language
// server) that requires a reply.
type InboundRequest struct {
	PeerTag string
	ID      json.RawMessage // echoed back verbatim; LSP ids may be numbers or strings
	Method  string
	Params  json.RawMessage
	Reply   func(result any, rpcErr *RPCError)
}

// InboundNotification is a notification arriving from a peer; it has no ID
// and no reply.
type InboundNotification struct {
	PeerTag string
	Method  string
	Params  json.RawMessage
}

// RequestHandlerFunc handles an inbound request and returns a result or an
// error to send back. A returned error that is not already an *RPCError is
// wrapped as an internal error.
type RequestHandlerFunc func(req InboundRequest) (result any, err error)

// NotificationHandlerFunc handles an inbound notification. Any returned
// error is logged, never surfaced to the sender.
type NotificationHandlerFunc func(notif InboundNotification) error

// Router demultiplexes inbound calls from any peer onto handler functions
// keyed by method name. User-registered handlers (added at any time, from
// any goroutine) are consulted before the static table built at
// construction, matching the precedence the distilled broker spec requires.
type Router struct {
	logger func(msg string, args ...any)

	staticRequests      map[string]RequestHandlerFunc
	staticNotifications map[string]NotificationHandlerFunc

	userRequests      sync.Map // string -> RequestHandlerFunc
	userNotifications sync.Map // string -> NotificationHandlerFunc

	closeMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

// RouterOption configures a Router at construction.
type RouterOption func(*Router)

// WithRouterLogger sets the logging sink for dispatch errors and unknown
// methods.
func WithRouterLogger(logger func(msg string, args ...any)) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// NewRouter creates a Router with the given static method table. requests
// and notifications may be nil; entries are looked up by method name.
func NewRouter(requests map[string]RequestHandlerFunc, notifications map[string]NotificationHandlerFunc, opts ...RouterOption) *Router {
	r := &Router{
		staticRequests:      requests,
		staticNotifications: notifications,
	}
	if r.staticRequests == nil {
		r.staticRequests = make(map[string]RequestHandlerFunc)
	}
	if r.staticNotifications == nil {
		r.staticNotifications = make(map[string]NotificationHandlerFunc)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// spawn runs job on a fresh goroutine, one ephemeral task per incoming
// call, so a handler blocked on a slow peer (a gopls hover call can sit on
// the wire for minutes) never holds up dispatch of anything else. Close
// waits for every spawned job to finish via wg; a job submitted after Close
// has already closed the gate is dropped rather than leaked.
func (r *Router) spawn(job func()) {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		job()
	}()
}

// RegisterRequestHandler installs or replaces a user-registered request
// handler for method. Safe to call concurrently with dispatch.
func (r *Router) RegisterRequestHandler(method string, fn RequestHandlerFunc) {
	r.userRequests.Store(method, fn)
}

// RegisterNotificationHandler installs or replaces a user-registered
// notification handler for method.
func (r *Router) RegisterNotificationHandler(method string, fn NotificationHandlerFunc) {
	r.userNotifications.Store(method, fn)
}

// UnregisterRequestHandler removes a user-registered request handler.
func (r *Router) UnregisterRequestHandler(method string) {
	r.userRequests.Delete(method)
}

// UnregisterNotificationHandler removes a user-registered notification
// handler.
func (r *Router) UnregisterNotificationHandler(method string) {
	r.userNotifications.Delete(method)
}

// DispatchRequest spawns a fresh goroutine to handle req. The reply is sent
// asynchronously via req.Reply once the handler returns.
func (r *Router) DispatchRequest(req InboundRequest) {
	r.spawn(func() {
		fn, ok := r.lookupRequest(req.Method)
		if !ok {
			req.Reply(nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method %q", req.Method)})
			r.logf("router: unknown request method %q from %s", req.Method, req.PeerTag)
			return
		}

		result, err := fn(req)
		if err != nil {
			req.Reply(nil, toRPCError(err))
			return
		}
		req.Reply(result, nil)
	})
}

// DispatchNotification spawns a fresh goroutine to handle notif. Handler
// errors are logged only; notifications never get a reply.
func (r *Router) DispatchNotification(notif InboundNotification) {
	r.spawn(func() {
		fn, ok := r.lookupNotification(notif.Method)
		if !ok {
			r.logf("router: unknown notification method %q from %s", notif.Method, notif.PeerTag)
			return
		}
		if err := fn(notif); err != nil {
			r.logf("router: notification handler for %q failed: %v", notif.Method, err)
		}
	})
}

func (r *Router) lookupRequest(method string) (RequestHandlerFunc, bool) {
	if v, ok := r.userRequests.Load(method); ok {
		return v.(RequestHandlerFunc), true
	}
	fn, ok := r.staticRequests[method]
	return fn, ok
}

func (r *Router) lookupNotification(method string) (NotificationHandlerFunc, bool) {
	if v, ok := r.userNotifications.Load(method); ok {
		return v.(NotificationHandlerFunc), true
	}
	fn, ok := r.staticNotifications[method]
	return fn, ok
}

func (r *Router) logf(msg string, args ...any) {
	if r.logger != nil {
		r.logger(msg, args...)
	}
}

// Close stops accepting new work and waits for in-flight handlers to drain.
func (r *Router) Close() {
	r.closeMu.Lock()
	r.closed = true
	r.closeMu.Unlock()
	r.wg.Wait()
}

// toRPCError normalizes any error into an *RPCError suitable for a JSON-RPC
// response, wrapping unrecognized errors as an internal error.
func toRPCError(err error) *RPCError {
	if rpcErr, ok := err.(*RPCError); ok {
		return rpcErr
	}
	return &RPCError{Code: CodeInternalError, Message: err.Error()}
}
