package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
	"github.com/unkn0wn-root/patchcat/internal/httpclient"
	"github.com/unkn0wn-root/patchcat/internal/merge"
	"github.com/unkn0wn-root/patchcat/internal/model"
	"github.com/unkn0wn-root/patchcat/internal/workspace"
)

const (
	MsgInvalidWSURL   = "Error: Invalid WebSocket URL. Must start with ws:// or wss://"
	MsgWSEstablished  = "Connection established."
	MsgWSError        = "An error occurred with the connection."
	closeWaitTimeout  = 5 * time.Second
	noReasonSpecified = "No reason specified"
)

func connectingMessage(url string) string {
	return fmt.Sprintf("Connecting to %s...", url)
}

func closedMessage(code int, reason string) string {
	if reason == "" {
		reason = noReasonSpecified
	}
	return fmt.Sprintf("Connection closed. Code: %d. Reason: %s", code, reason)
}

func (s *Session) system(tabID, content string) {
	s.Dispatch(workspace.NewWSMessage(tabID, model.WSSystem, content, s.now()))
}

// ConnectWS opens the tab's socket and blocks until the handshake finishes.
// Invalid URLs and dial failures are reported as system messages on the tab.
func (s *Session) ConnectWS(ctx context.Context, tabID string) error {
	tab, settings, ok := s.tab(tabID)
	if !ok {
		return ErrUnknownTab
	}
	if tab.Request.Protocol != model.ProtocolWebSocket {
		return errdef.New(errdef.CodeValidation, "tab %q is not a websocket tab", tab.Name)
	}
	if s.liveSocket(tabID) != nil {
		return nil
	}

	eff, err := merge.Build(tab.Request, settings)
	if err != nil || !httpclient.ValidWebSocketURL(eff.URL) {
		s.system(tabID, MsgInvalidWSURL)
		return nil
	}
	if s.transport == nil {
		s.system(tabID, MsgWSError)
		return nil
	}

	s.Dispatch(workspace.SetWSStatus{TabID: tabID, Status: model.WSConnecting})
	s.system(tabID, connectingMessage(eff.URL))

	conn, err := s.transport.DialWebSocket(ctx, eff.URL, eff.Headers, httpclient.Handlers{
		OnOpen: func() {
			s.Dispatch(workspace.SetWSStatus{TabID: tabID, Status: model.WSConnected})
			s.system(tabID, MsgWSEstablished)
		},
		OnMessage: func(text string) {
			s.Dispatch(workspace.NewWSMessage(tabID, model.WSReceived, text, s.now()))
		},
		OnError: func(err error) {
			s.logf("websocket error: %v", err)
			s.system(tabID, MsgWSError)
		},
		OnClose: func(code int, reason string) {
			s.Dispatch(workspace.SetWSStatus{TabID: tabID, Status: model.WSDisconnected})
			s.system(tabID, closedMessage(code, reason))
		},
	})
	if err != nil {
		s.logf("websocket dial error: %v", err)
		s.system(tabID, MsgWSError)
		s.Dispatch(workspace.SetWSStatus{TabID: tabID, Status: model.WSDisconnected})
		s.system(tabID, closedMessage(httpclient.CloseAbnormal, ""))
		return nil
	}

	s.mu.Lock()
	s.sockets[tabID] = conn
	s.mu.Unlock()
	go s.forget(tabID, conn)
	return nil
}

// forget drops conn from the socket table once it has terminated.
func (s *Session) forget(tabID string, conn *httpclient.WSConn) {
	<-conn.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sockets[tabID] == conn {
		delete(s.sockets, tabID)
	}
}

func (s *Session) liveSocket(tabID string) *httpclient.WSConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := s.sockets[tabID]
	if conn == nil {
		return nil
	}
	select {
	case <-conn.Done():
		return nil
	default:
		return conn
	}
}

// SendWS writes one text frame and records it as sent. Empty text is ignored.
func (s *Session) SendWS(ctx context.Context, tabID, text string) error {
	if text == "" {
		return nil
	}
	conn := s.liveSocket(tabID)
	if conn == nil {
		return ErrNotConnected
	}
	s.Dispatch(workspace.NewWSMessage(tabID, model.WSSent, text, s.now()))
	if err := conn.Send(ctx, text); err != nil {
		s.logf("websocket send error: %v", err)
		s.system(tabID, MsgWSError)
		return err
	}
	return nil
}

// DisconnectWS closes the tab's socket and waits briefly for the close to be
// reported. Without a socket it only makes sure the tab reads disconnected.
func (s *Session) DisconnectWS(tabID string) {
	s.mu.Lock()
	conn := s.sockets[tabID]
	s.mu.Unlock()

	if conn == nil {
		tab, _, ok := s.tab(tabID)
		if ok && tab.WSStatus != "" && tab.WSStatus != model.WSDisconnected {
			s.Dispatch(workspace.SetWSStatus{TabID: tabID, Status: model.WSDisconnected})
		}
		return
	}

	if err := conn.Close(); err != nil {
		s.logf("websocket close error: %v", err)
	}
	select {
	case <-conn.Done():
	case <-time.After(closeWaitTimeout):
		s.logf("websocket close timed out for tab %s", tabID)
		s.abandon(tabID, conn)
	}
}

// abandon drops a socket that never reported its close and marks the tab
// disconnected. A late OnClose from conn still records the closed message.
func (s *Session) abandon(tabID string, conn *httpclient.WSConn) {
	s.mu.Lock()
	if s.sockets[tabID] == conn {
		delete(s.sockets, tabID)
	}
	s.mu.Unlock()
	if tab, _, ok := s.tab(tabID); ok && tab.WSStatus != model.WSDisconnected {
		s.Dispatch(workspace.SetWSStatus{TabID: tabID, Status: model.WSDisconnected})
	}
}
