package httpclient

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/merge"
	"github.com/unkn0wn-root/patchcat/internal/telemetry"
	"nhooyr.io/websocket"
)

const (
	wsReadLimit = 32 << 20

	// CloseAbnormal is reported when the socket drops without a close frame.
	CloseAbnormal = int(websocket.StatusAbnormalClosure)
	CloseNormal   = int(websocket.StatusNormalClosure)
)

// Handlers receive socket lifecycle callbacks from the connection goroutines.
// OnClose fires exactly once per connection.
type Handlers struct {
	OnOpen    func()
	OnMessage func(text string)
	OnError   func(err error)
	OnClose   func(code int, reason string)
}

type WSConn struct {
	conn     *websocket.Conn
	handlers Handlers
	span     telemetry.RequestSpan

	writeCh chan wsOutbound
	done    chan struct{}

	mu           sync.Mutex
	clientClosed bool
	closeOnce    sync.Once
	reportOnce   sync.Once
}

type wsOutbound struct {
	ctx     context.Context
	payload string
	result  chan error
}

// ValidWebSocketURL reports whether raw is an absolute ws:// or wss:// URL.
func ValidWebSocketURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "ws" || u.Scheme == "wss"
}

// DialWebSocket opens a socket and starts its read and write loops. ctx bounds
// the handshake only. OnOpen runs before DialWebSocket returns.
func (c *Client) DialWebSocket(
	ctx context.Context,
	target string,
	headers []merge.Pair,
	h Handlers,
) (*WSConn, error) {
	if !ValidWebSocketURL(target) {
		return nil, errdef.New(errdef.CodeValidation, "invalid websocket url %q", target)
	}

	hdr := make(http.Header, len(headers))
	for _, p := range headers {
		hdr.Add(p.Key, p.Value)
	}
	opts := &websocket.DialOptions{HTTPHeader: hdr}
	client, err := c.wsHTTPClient(c.opts)
	if err != nil {
		return nil, err
	}
	opts.HTTPClient = client

	_, span := c.instrumenter().Start(ctx, telemetry.RequestStart{
		Kind:   "websocket",
		Method: http.MethodGet,
		URL:    target,
	})

	dialCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	conn, resp, err := c.wsDial(dialCtx, target, opts)
	if err != nil {
		result := telemetry.RequestResult{Err: err}
		if resp != nil {
			result.StatusCode = resp.StatusCode
		}
		span.End(result)
		return nil, errdef.Wrap(errdef.CodeHTTP, err, "dial websocket")
	}
	conn.SetReadLimit(wsReadLimit)

	ws := &WSConn{
		conn:     conn,
		handlers: h,
		span:     span,
		writeCh:  make(chan wsOutbound),
		done:     make(chan struct{}),
	}
	span.Event("websocket.open", nil)
	if h.OnOpen != nil {
		h.OnOpen()
	}
	go ws.readLoop()
	go ws.writeLoop()
	return ws, nil
}

func (w *WSConn) readLoop() {
	for {
		typ, data, err := w.conn.Read(context.Background())
		if err != nil {
			w.finish(err)
			return
		}
		text := string(data)
		if typ == websocket.MessageBinary {
			text = base64.StdEncoding.EncodeToString(data)
		}
		if w.handlers.OnMessage != nil {
			w.handlers.OnMessage(text)
		}
	}
}

func (w *WSConn) writeLoop() {
	for {
		select {
		case <-w.done:
			return
		case msg := <-w.writeCh:
			err := w.conn.Write(msg.ctx, websocket.MessageText, []byte(msg.payload))
			msg.result <- err
		}
	}
}

// finish reports the terminal state of the socket once.
func (w *WSConn) finish(readErr error) {
	w.reportOnce.Do(func() {
		defer w.shutdown()

		code, reason := CloseAbnormal, ""
		var ce websocket.CloseError
		switch {
		case errors.As(readErr, &ce):
			code, reason = int(ce.Code), ce.Reason
		case w.closedByClient():
			code = CloseNormal
		default:
			if w.handlers.OnError != nil {
				w.handlers.OnError(readErr)
			}
		}

		w.span.End(telemetry.RequestResult{})
		if w.handlers.OnClose != nil {
			w.handlers.OnClose(code, reason)
		}
	})
}

func (w *WSConn) shutdown() {
	w.closeOnce.Do(func() {
		close(w.done)
	})
}

func (w *WSConn) closedByClient() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.clientClosed
}

// Send writes one text frame. It fails once the socket is closed.
func (w *WSConn) Send(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	msg := wsOutbound{ctx: ctx, payload: text, result: make(chan error, 1)}
	select {
	case <-w.done:
		return errdef.New(errdef.CodeHTTP, "websocket closed")
	case <-ctx.Done():
		return ctx.Err()
	case w.writeCh <- msg:
	}
	select {
	case err := <-msg.result:
		if err != nil {
			return errdef.Wrap(errdef.CodeHTTP, err, "websocket write")
		}
		w.span.Event("websocket.send", nil)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close starts a normal close handshake. It is safe to call more than once;
// OnClose is delivered by the read loop.
func (w *WSConn) Close() error {
	w.mu.Lock()
	already := w.clientClosed
	w.clientClosed = true
	w.mu.Unlock()
	if already {
		return nil
	}
	err := w.conn.Close(websocket.StatusNormalClosure, "")
	if err != nil {
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return nil
		}
	}
	return err
}

// Done is closed once the socket has terminated.
func (w *WSConn) Done() <-chan struct{} {
	return w.done
}
