package channel

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/stellarlinkco/edusphere/internal/bus"
	"github.com/stellarlinkco/edusphere/internal/chat"
	"github.com/stellarlinkco/edusphere/internal/config"
	"github.com/stellarlinkco/edusphere/internal/nav"
)

//go:embed static
var staticFiles embed.FS

const webUIChannelName = "webui"

// Frame types on the /ws socket.
const (
	frameMessage  = "message"
	frameReset    = "reset"
	frameGreeting = "greeting"
)

const writeTimeout = 5 * time.Second

type wsMessage struct {
	Type     string        `json:"type"`
	Content  string        `json:"content,omitempty"`
	Segments []nav.Segment `json:"segments,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	id   string
}

type WebUIChannel struct {
	BaseChannel
	addr     string
	server   *http.Server
	listener net.Listener
	clients  sync.Map
	nextID   atomic.Int64

	// ctx bounds inbound publishing; set by Start.
	ctx context.Context
}

func NewWebUIChannel(cfg config.WebUIConfig, gwCfg config.GatewayConfig, b *bus.MessageBus) (*WebUIChannel, error) {
	port := gwCfg.Port
	if port == 0 {
		port = config.DefaultPort
	}

	ch := &WebUIChannel{
		BaseChannel: NewBaseChannel(webUIChannelName, b, cfg.AllowFrom),
		addr:        net.JoinHostPort(gwCfg.Host, fmt.Sprint(port)),
		ctx:         context.Background(),
	}
	return ch, nil
}

// Handler serves the chat page at / and the socket at /ws.
func (w *WebUIChannel) Handler() (http.Handler, error) {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("embed static fs: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", w.handleWS)
	return mux, nil
}

func (w *WebUIChannel) Start(ctx context.Context) error {
	handler, err := w.Handler()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", w.addr, err)
	}
	w.listener = ln
	w.ctx = ctx
	w.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		w.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := w.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr is the bound listen address once started.
func (w *WebUIChannel) Addr() string {
	if w.listener == nil {
		return w.addr
	}
	return w.listener.Addr().String()
}

func (w *WebUIChannel) handleWS(wr http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(wr, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		w.logger.Warn("websocket accept error", zap.Error(err))
		return
	}

	clientID := fmt.Sprintf("webui-%d", w.nextID.Add(1))
	client := &wsClient{conn: conn, id: clientID}
	w.clients.Store(clientID, client)
	w.logger.Info("client connected", zap.String("client", clientID))

	defer func() {
		w.clients.Delete(clientID)
		conn.CloseNow()
		// the conversation dies with the socket
		ctx, cancel := context.WithTimeout(w.ctx, time.Second)
		w.publish(ctx, w.inbound(clientID, "", bus.CommandReset))
		cancel()
		w.logger.Info("client disconnected", zap.String("client", clientID))
	}()

	if err := w.write(r.Context(), client, wsMessage{Type: frameGreeting, Content: chat.Greeting}); err != nil {
		return
	}

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if !w.IsAllowed(clientID) {
			w.logger.Warn("rejected message", zap.String("client", clientID))
			continue
		}

		switch {
		case msg.Type == frameReset:
			w.publish(r.Context(), w.inbound(clientID, "", bus.CommandReset))
		case msg.Type == frameMessage && msg.Content != "":
			w.publish(r.Context(), w.inbound(clientID, msg.Content, ""))
		}
	}
}

func (w *WebUIChannel) inbound(clientID, content, command string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:   webUIChannelName,
		SenderID:  clientID,
		ChatID:    clientID,
		Content:   content,
		Command:   command,
		Timestamp: time.Now(),
	}
}

func (w *WebUIChannel) write(ctx context.Context, c *wsClient, msg wsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Send delivers a reply to its client. Replies for clients that already
// left are dropped.
func (w *WebUIChannel) Send(msg bus.OutboundMessage) error {
	client, ok := w.clients.Load(msg.ChatID)
	if !ok {
		w.logger.Debug("reply for departed client dropped", zap.String("client", msg.ChatID))
		return nil
	}

	return w.write(context.Background(), client.(*wsClient), wsMessage{
		Type:     frameMessage,
		Content:  msg.Content,
		Segments: msg.Segments,
	})
}

func (w *WebUIChannel) Stop() error {
	if w.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.server.Shutdown(ctx); err != nil {
			w.logger.Warn("shutdown error", zap.Error(err))
		}
	}
	w.clients.Range(func(key, value any) bool {
		c := value.(*wsClient)
		c.conn.CloseNow()
		return true
	})
	w.logger.Info("stopped")
	return nil
}
