package rest

import (
	"encoding/json"
	"net/http"
	"sync"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/httpapi"
	"github.com/studycommons/studycommons/internal/platform/requestctx"
	"github.com/studycommons/studycommons/internal/services/notifications/storage"
	"golang.org/x/net/websocket"
	"golang.org/x/text/message"
)

// feedEvent is one frame on the websocket feed.
type feedEvent struct {
	Type         string              `json:"type"`
	Notification notificationPayload `json:"notification"`
}

// feedPeer writes feed events to one websocket connection. The printer is
// fixed at upgrade time from the request's language.
type feedPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
	printer *message.Printer
}

func newFeedPeer(encoder *json.Encoder, printer *message.Printer) *feedPeer {
	return &feedPeer{encoder: encoder, printer: printer}
}

// Deliver renders and writes one notification. Write errors are dropped; the
// read loop notices the dead connection and unsubscribes.
func (p *feedPeer) Deliver(n storage.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.encoder.Encode(feedEvent{Type: "notification", Notification: toPayload(n, p.printer)})
}

func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	if userID == "" {
		httpapi.WriteError(w, r, apperrors.New(apperrors.CodeUnauthenticated, "authentication required"))
		return
	}
	printer := message.NewPrinter(httpapi.ResolveTag(r))

	websocket.Handler(func(conn *websocket.Conn) {
		h.serveFeed(conn, userID, printer)
	}).ServeHTTP(w, r)
}

// serveFeed subscribes the connection to the user's feed and blocks until the
// client disconnects. The feed is write-only; inbound frames are discarded.
func (h *Handler) serveFeed(conn *websocket.Conn, userID string, printer *message.Printer) {
	peer := newFeedPeer(json.NewEncoder(conn), printer)
	hub := h.svc.Hub()
	hub.Subscribe(userID, peer)
	defer hub.Unsubscribe(userID, peer)

	decoder := json.NewDecoder(conn)
	for {
		var discard json.RawMessage
		if err := decoder.Decode(&discard); err != nil {
			return
		}
	}
}
