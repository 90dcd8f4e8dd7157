package audionode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrNoSession = errors.New("audio node session not ready")
	ErrClosed    = errors.New("audio node client closed")
)

// RESTError is the error body returned by the node for a failed request.
type RESTError struct {
	Status  int    `json:"status"`
	Reason  string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (e *RESTError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	return fmt.Sprintf("node %s: %d %s", e.Path, e.Status, msg)
}

type Config struct {
	Name       string
	Host       string
	Port       int
	Password   string
	Secure     bool
	ClientName string
	// ResumeTimeout is how long the node keeps players alive after the socket drops.
	ResumeTimeout time.Duration
}

func (c Config) hostPort() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

func (c Config) restBase() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return scheme + "://" + c.hostPort()
}

func (c Config) wsURL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return scheme + "://" + c.hostPort() + "/v4/websocket"
}

// Client talks to one audio node over REST and keeps its event websocket open.
type Client struct {
	cfg    Config
	http   *http.Client
	dialer *websocket.Dialer
	log    *slog.Logger

	mu        sync.RWMutex
	userID    string
	sessionID string
	stats     *Stats
	handler   func(Event)
	ready     chan struct{}
	readyOnce sync.Once
}

func New(cfg Config) *Client {
	if cfg.ClientName == "" {
		cfg.ClientName = "lavabot/1.0"
	}
	if cfg.ResumeTimeout == 0 {
		cfg.ResumeTimeout = 60 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 15 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    slog.With("component", "node", "node", cfg.Name),
		ready:  make(chan struct{}),
	}
}

func (c *Client) Name() string { return c.cfg.Name }

// SetUserID sets the bot user id sent on the websocket handshake.
func (c *Client) SetUserID(id string) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

// OnEvent installs the handler for player-scoped events. It is called from the reader goroutine.
func (c *Client) OnEvent(h func(Event)) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// LastStats returns the most recent stats frame pushed by the node, if any.
func (c *Client) LastStats() *Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// WaitReady blocks until the first ready frame arrives.
func (c *Client) WaitReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run keeps the websocket connected until ctx is cancelled, reconnecting with backoff
// and resuming the previous session when the node still holds it.
func (c *Client) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = time.Second
		}
		c.log.Warn("node connection lost, reconnecting", "err", err, "in", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (c *Client) session(ctx context.Context) (bool, error) {
	c.mu.RLock()
	h := http.Header{}
	h.Set("Authorization", c.cfg.Password)
	h.Set("User-Id", c.userID)
	h.Set("Client-Name", c.cfg.ClientName)
	if c.sessionID != "" {
		h.Set("Session-Id", c.sessionID)
	}
	c.mu.RUnlock()

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.wsURL(), h)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	c.log.Info("connected to audio node", "url", c.cfg.wsURL())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		f, err := decodeFrame(msg)
		if err != nil {
			c.log.Debug("skipping node frame", "err", err)
			continue
		}
		c.dispatch(ctx, f)
	}
}

func (c *Client) dispatch(ctx context.Context, f frame) {
	switch f.op {
	case "ready":
		c.mu.Lock()
		c.sessionID = f.session
		c.mu.Unlock()
		c.log.Info("audio node ready", "session", f.session, "resumed", f.resumed)
		if err := c.enableResume(ctx); err != nil {
			c.log.Warn("failed to enable session resuming", "err", err)
		}
		c.readyOnce.Do(func() { close(c.ready) })
	case "stats":
		c.mu.Lock()
		c.stats = f.stats
		c.mu.Unlock()
	default:
		if f.event == nil {
			return
		}
		c.mu.RLock()
		h := c.handler
		c.mu.RUnlock()
		if h != nil {
			h(*f.event)
		}
	}
}

func (c *Client) enableResume(ctx context.Context) error {
	sid := c.SessionID()
	body := map[string]any{
		"resuming": true,
		"timeout":  int(c.cfg.ResumeTimeout.Seconds()),
	}
	return c.do(ctx, http.MethodPatch, "/v4/sessions/"+sid, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.restBase()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.cfg.Password)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		re := &RESTError{Status: resp.StatusCode, Path: path}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if len(b) > 0 {
			_ = json.Unmarshal(b, re)
		}
		re.Status = resp.StatusCode
		if re.Path == "" {
			re.Path = path
		}
		return re
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// LoadTracks resolves a URL or a prefixed search ("ytsearch:...").
func (c *Client) LoadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	var res LoadResult
	if err := c.do(ctx, http.MethodGet, "/v4/loadtracks?identifier="+url.QueryEscape(identifier), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.do(ctx, http.MethodGet, "/v4/stats", nil, &s); err != nil {
		if last := c.LastStats(); last != nil {
			return last, nil
		}
		return nil, err
	}
	return &s, nil
}

func (c *Client) playerPath(guildID string) (string, error) {
	sid := c.SessionID()
	if sid == "" {
		return "", ErrNoSession
	}
	return "/v4/sessions/" + sid + "/players/" + guildID, nil
}

// UpdatePlayer patches the guild's player on the node.
func (c *Client) UpdatePlayer(ctx context.Context, guildID string, u PlayerUpdate) error {
	p, err := c.playerPath(guildID)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, p, u, nil)
}

func (c *Client) Play(ctx context.Context, guildID string, req PlayRequest) error {
	return c.UpdatePlayer(ctx, guildID, req.update())
}

func (c *Client) Pause(ctx context.Context, guildID string, paused bool) error {
	return c.UpdatePlayer(ctx, guildID, PlayerUpdate{Paused: &paused})
}

func (c *Client) SetVolume(ctx context.Context, guildID string, volume int) error {
	return c.UpdatePlayer(ctx, guildID, PlayerUpdate{Volume: &volume})
}

func (c *Client) SetEqualizer(ctx context.Context, guildID string, bands []Band) error {
	return c.UpdatePlayer(ctx, guildID, PlayerUpdate{Filters: &Filters{Equalizer: bands}})
}

func (c *Client) Seek(ctx context.Context, guildID string, pos time.Duration) error {
	ms := pos.Milliseconds()
	return c.UpdatePlayer(ctx, guildID, PlayerUpdate{Position: &ms})
}

// Stop ends the current track; the node answers with a TrackEndEvent reason "stopped".
func (c *Client) Stop(ctx context.Context, guildID string) error {
	return c.UpdatePlayer(ctx, guildID, PlayerUpdate{Track: &updateTrack{Encoded: nil}})
}

func (c *Client) UpdateVoice(ctx context.Context, guildID string, v VoiceState) error {
	return c.UpdatePlayer(ctx, guildID, PlayerUpdate{Voice: &v})
}

// Destroy removes the guild's player from the node. A missing player is not an error.
func (c *Client) Destroy(ctx context.Context, guildID string) error {
	p, err := c.playerPath(guildID)
	if err != nil {
		return err
	}
	err = c.do(ctx, http.MethodDelete, p, nil, nil)
	var re *RESTError
	if errors.As(err, &re) && re.Status == http.StatusNotFound {
		return nil
	}
	return err
}
