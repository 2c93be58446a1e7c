// ABOUTME: Streaming output serving encoded audio to websocket clients
// ABOUTME: Paced by a wall-clock timer; each client gets its own writer goroutine
package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/encode"
	"github.com/Resonate-Protocol/playd/pkg/audio/timer"
)

const (
	httpdWriteDeadline = 10 * time.Second
	httpdPingInterval  = 30 * time.Second
	httpdSendQueue     = 256
	httpdShutdownWait  = 2 * time.Second
)

// StreamMessage is the JSON envelope of every text frame sent to clients
type StreamMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// StreamStart announces the format of the binary frames that follow
type StreamStart struct {
	Codec      string `json:"codec"`
	SampleRate uint32 `json:"sample_rate"`
	Channels   uint8  `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
}

// StreamTag carries song metadata
type StreamTag struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Name   string `json:"name,omitempty"`
}

type httpdClient struct {
	id       string
	conn     *websocket.Conn
	sendChan chan interface{}
	done     chan struct{}
}

// HTTPD streams audio over websockets. Clients connecting mid-stream get
// the current stream/start header and the last tag first.
type HTTPD struct {
	addr       string
	name       string
	codec      string
	maxClients int
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	clients  map[string]*httpdClient
	header   *StreamMessage
	lastTag  *StreamMessage
	listener net.Listener
	server   *http.Server
	group    *errgroup.Group

	format  audio.Format
	encoder encode.Encoder
	timer   *timer.Timer
}

// NewHTTPD creates a streaming output listening on addr
func NewHTTPD(addr, name, codec string, maxClients int) *HTTPD {
	return &HTTPD{
		addr:       addr,
		name:       name,
		codec:      codec,
		maxClients: maxClients,
		clients:    make(map[string]*httpdClient),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func newHTTPDFromParams(params audio.Params) (Plugin, error) {
	maxClients, err := params.GetInt("max_clients", 0)
	if err != nil {
		return nil, fmt.Errorf("httpd output: %w", err)
	}
	codec := params.Get("encoder", "opus")
	var narrowed audio.Format
	if err := encode.NarrowFormat(codec, &narrowed); err != nil {
		return nil, fmt.Errorf("httpd output: %w", err)
	}
	return NewHTTPD(params.Get("bind_to_address", ":8000"), params.Get("name", "playd"), codec, maxClients), nil
}

// Addr returns the listening address once enabled
func (h *HTTPD) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return h.addr
	}
	return h.listener.Addr().String()
}

// ClientCount returns the number of connected clients
func (h *HTTPD) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Enable binds the listener and starts serving
func (h *HTTPD) Enable() error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleWebSocket)
	server := &http.Server{Handler: mux}

	g := new(errgroup.Group)
	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	h.mu.Lock()
	h.listener = ln
	h.server = server
	h.group = g
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{"addr": ln.Addr().String(), "codec": h.codec}).Info("HTTPD output listening")
	return nil
}

func (h *HTTPD) Disable() {
	h.mu.Lock()
	server, g := h.server, h.group
	h.server, h.group, h.listener = nil, nil, nil
	clients := h.clients
	h.clients = make(map[string]*httpdClient)
	h.mu.Unlock()

	if server == nil {
		return
	}

	for _, c := range clients {
		c.conn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), httpdShutdownWait)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("HTTPD shutdown")
	}
	if err := g.Wait(); err != nil {
		logrus.WithError(err).Warn("HTTPD server error")
	}
}

func (h *HTTPD) Open(format *audio.Format) error {
	if err := encode.NarrowFormat(h.codec, format); err != nil {
		return err
	}
	enc, err := encode.New(h.codec, *format)
	if err != nil {
		return fmt.Errorf("failed to create %s encoder: %w", h.codec, err)
	}

	h.format = *format
	h.encoder = enc
	h.timer = timer.New(*format)

	header := &StreamMessage{Type: "stream/start", Payload: StreamStart{
		Codec:      enc.Codec(),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		BitDepth:   format.Format.Bits(),
	}}

	h.mu.Lock()
	h.header = header
	h.mu.Unlock()
	h.broadcast(header)
	return nil
}

func (h *HTTPD) Close() {
	if h.encoder != nil {
		if err := h.encoder.Close(); err != nil {
			logrus.WithError(err).Debug("Encoder close")
		}
		h.encoder = nil
	}
	h.timer = nil

	h.mu.Lock()
	h.header = nil
	h.mu.Unlock()
	h.broadcast(&StreamMessage{Type: "stream/end"})
}

func (h *HTTPD) Delay() time.Duration {
	if h.timer == nil || !h.timer.IsStarted() {
		return 0
	}
	return h.timer.Delay()
}

func (h *HTTPD) Play(data []byte) (int, error) {
	if !h.timer.IsStarted() {
		h.timer.Start()
	}
	h.timer.Add(len(data))

	packets, err := h.encoder.Encode(data)
	if err != nil {
		return 0, fmt.Errorf("failed to encode: %w", err)
	}
	for _, p := range packets {
		h.broadcast(p)
	}
	return len(data), nil
}

func (h *HTTPD) Drain() {
	if h.timer != nil && h.timer.IsStarted() {
		h.timer.Synchronize()
	}
}

func (h *HTTPD) Cancel() {
	if h.timer != nil {
		h.timer.Reset()
	}
}

// Pause keeps clients connected; they simply receive nothing
func (h *HTTPD) Pause() bool {
	if h.timer != nil {
		h.timer.Reset()
	}
	time.Sleep(pauseInterval)
	return true
}

func (h *HTTPD) SendTag(tag *audio.Tag) {
	msg := &StreamMessage{Type: "stream/tag", Payload: StreamTag{
		Title:  tag.Title,
		Artist: tag.Artist,
		Album:  tag.Album,
		Name:   tag.Name,
	}}

	h.mu.Lock()
	h.lastTag = msg
	h.mu.Unlock()
	h.broadcast(msg)
}

// broadcast queues msg to every client; slow clients lose packets
func (h *HTTPD) broadcast(msg interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.clients {
		select {
		case c.sendChan <- msg:
		default:
			logrus.WithField("client", c.id).Debug("Client send queue full, dropping")
		}
	}
}

func (h *HTTPD) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	full := h.maxClients > 0 && len(h.clients) >= h.maxClients
	h.mu.Unlock()
	if full {
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	client := &httpdClient{
		id:       uuid.New().String(),
		conn:     conn,
		sendChan: make(chan interface{}, httpdSendQueue),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	client.sendChan <- &StreamMessage{Type: "server/hello", Payload: map[string]string{
		"client_id": client.id,
		"name":      h.name,
	}}
	if h.header != nil {
		client.sendChan <- h.header
		if h.lastTag != nil {
			client.sendChan <- h.lastTag
		}
	}
	h.clients[client.id] = client
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{"client": client.id, "remote": r.RemoteAddr}).Info("Stream client connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.clientWriter(client)
	}()

	// Only control frames are expected; reading detects the disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("client", client.id).Debug("WebSocket error")
			}
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, client.id)
	h.mu.Unlock()
	close(client.done)
	<-writerDone

	logrus.WithField("client", client.id).Info("Stream client disconnected")
}

func (h *HTTPD) clientWriter(client *httpdClient) {
	ticker := time.NewTicker(httpdPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			return

		case msg := <-client.sendChan:
			var err error
			client.conn.SetWriteDeadline(time.Now().Add(httpdWriteDeadline))
			switch v := msg.(type) {
			case []byte:
				err = client.conn.WriteMessage(websocket.BinaryMessage, v)
			default:
				var data []byte
				data, err = json.Marshal(v)
				if err != nil {
					logrus.WithError(err).Warn("Error marshaling message")
					continue
				}
				err = client.conn.WriteMessage(websocket.TextMessage, data)
			}
			if err != nil {
				logrus.WithError(err).WithField("client", client.id).Debug("Error writing message")
				client.conn.Close()
				return
			}

		case <-ticker.C:
			if err := client.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(httpdWriteDeadline)); err != nil {
				client.conn.Close()
				return
			}
		}
	}
}
