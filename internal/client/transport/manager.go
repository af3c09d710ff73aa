// Package transport owns the WebSocket connection to the backend: connect and
// disconnect lifecycle, reconnect with exponential backoff, heartbeat and
// inbound frame dispatch.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/events"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/pkg/api"
)

const sendBufferSize = 256

// Config параметры соединения и переподключения
type Config struct {
	URL                  string
	BaseDelay            time.Duration
	MaxDelay             time.Duration
	MaxReconnectAttempts int
	DialTimeout          time.Duration
	WriteWait            time.Duration
	PongWait             time.Duration
	PingPeriod           time.Duration
}

// DefaultConfig возвращает параметры по умолчанию для url
func DefaultConfig(url string) Config {
	return Config{
		URL:                  url,
		BaseDelay:            time.Second,
		MaxDelay:             30 * time.Second,
		MaxReconnectAttempts: 5,
		DialTimeout:          10 * time.Second,
		WriteWait:            10 * time.Second,
		PongWait:             60 * time.Second,
		PingPeriod:           54 * time.Second,
	}
}

// TokenSource выдает актуальный bearer credential перед переподключением
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Manager владеет сокетом и состоянием соединения.
type Manager struct {
	dialer      Dialer
	tokens      TokenSource
	bus         *events.Bus
	logger      *slog.Logger
	schedule    Scheduler
	onFrame     func(api.Frame)
	onState     func(models.ConnectionState)
	current     *connection
	cancelRetry func() bool
	credential  string
	state       models.ConnectionState
	cfg         Config
	attempts    int // переподключений запланировано с последнего open
	failures    int // подряд неудачных попыток соединения
	gen         uint64
	mu          sync.Mutex
}

// Option настраивает Manager
type Option func(*Manager)

// WithScheduler подменяет планировщик переподключений
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) {
		m.schedule = s
	}
}

// WithTokenSource задает источник credential для переподключений
func WithTokenSource(ts TokenSource) Option {
	return func(m *Manager) {
		m.tokens = ts
	}
}

// NewManager создает Manager в состоянии disconnected
func NewManager(cfg Config, dialer Dialer, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		dialer:   dialer,
		bus:      events.NewBus(),
		logger:   logger,
		schedule: TimerScheduler,
		state:    models.StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetFrameHandler регистрирует получателя всех корректных входящих кадров (EventRouter).
// В отличие от подписок On не сбрасывается при Disconnect.
func (m *Manager) SetFrameHandler(fn func(api.Frame)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onFrame = fn
}

// SetStateHandler регистрирует получателя смены состояния (оркестратор).
func (m *Manager) SetStateHandler(fn func(models.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onState = fn
}

// On подписывает handler на локальное событие и возвращает функцию отписки
func (m *Manager) On(event string, handler events.Handler) (unsubscribe func()) {
	return m.bus.On(event, handler)
}

// State текущее состояние соединения
func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts число подряд неудачных попыток соединения
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// Connect открывает соединение с credential.
// No-op, если соединение уже открыто или открывается. Ручной вызов сбрасывает
// счетчики попыток и выводит Manager из состояния failed.
// При ошибке рукопожатия эмитится ws:connect_error и планируется переподключение.
func (m *Manager) Connect(ctx context.Context, credential string) error {
	m.mu.Lock()
	if m.state == models.StateConnected || m.state == models.StateConnecting {
		m.mu.Unlock()
		return nil
	}
	m.stopRetryLocked()
	m.attempts = 0
	m.failures = 0
	if credential != "" {
		m.credential = credential
	}
	gen := m.gen
	m.mu.Unlock()

	return m.dial(ctx, gen)
}

// Disconnect закрывает сокет, отменяет переподключение и очищает подписки.
// Идемпотентен.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	m.stopRetryLocked()
	c := m.current
	m.current = nil
	prev := m.state
	m.state = models.StateDisconnected
	m.attempts = 0
	m.failures = 0
	m.mu.Unlock()

	if c != nil {
		c.close()
	}
	if prev != models.StateDisconnected {
		m.logger.Info("Disconnected", "previous_state", prev)
		m.notifyState(models.StateDisconnected)
		m.bus.Emit(events.Disconnected, reasonJSON("client disconnect"))
	}
	m.bus.Clear()
}

// Send отправляет кадр {type, data}
func (m *Manager) Send(msgType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	return m.SendFrame(api.Frame{Type: msgType, Data: raw})
}

// SendFrame отправляет готовый кадр (кадры мутаций с opId)
func (m *Manager) SendFrame(frame api.Frame) error {
	m.mu.Lock()
	c := m.current
	state := m.state
	m.mu.Unlock()

	if c == nil {
		return ErrNotConnected
	}
	if state != models.StateConnected {
		return ErrNotReady
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	return c.enqueue(payload)
}

func (m *Manager) dial(ctx context.Context, gen uint64) error {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return nil
	}
	m.state = models.StateConnecting
	credential := m.credential
	m.mu.Unlock()
	m.notifyState(models.StateConnecting)

	header := http.Header{}
	if credential != "" {
		header.Set("Authorization", "Bearer "+credential)
	}

	if m.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.DialTimeout)
		defer cancel()
	}

	var conn Conn
	target, dialErr := connectURL(m.cfg.URL, credential)
	if dialErr == nil {
		conn, dialErr = m.dialer.Dial(ctx, target, header)
	}

	m.mu.Lock()
	if gen != m.gen {
		// Disconnect во время рукопожатия
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	if dialErr != nil {
		m.mu.Unlock()
		m.logger.Warn("WebSocket connect failed", "url", m.cfg.URL, "error", dialErr)
		m.bus.Emit(events.ConnectError, reasonJSON(dialErr.Error()))
		m.connectFailed(gen)
		return fmt.Errorf("failed to connect: %w", dialErr)
	}

	c := newConnection(conn, m.cfg, m.logger)
	m.current = c
	m.state = models.StateConnected
	m.attempts = 0
	m.failures = 0
	m.mu.Unlock()

	m.logger.Info("WebSocket connected", "url", m.cfg.URL)
	m.notifyState(models.StateConnected)
	m.bus.Emit(events.Connected, nil)

	// read loop стартует после уведомления: подписчики успевают подготовиться к push
	go c.writePump()
	go m.readPump(c, gen)
	return nil
}

// connectFailed учитывает неудачную попытку; после MaxReconnectAttempts подряд - failed
func (m *Manager) connectFailed(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.failures++
	if m.failures >= m.cfg.MaxReconnectAttempts {
		m.state = models.StateFailed
		failures := m.failures
		m.mu.Unlock()

		m.logger.Error("Giving up reconnecting", "attempts", failures)
		m.notifyState(models.StateFailed)
		m.bus.Emit(events.MaxReconnectFailed, attemptJSON(failures, 0))
		return
	}
	m.mu.Unlock()

	m.scheduleReconnect(gen)
}

// scheduleReconnect планирует попытку через min(base*2^attempts, max)
func (m *Manager) scheduleReconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	delay := Backoff(m.attempts, m.cfg.BaseDelay, m.cfg.MaxDelay)
	m.attempts++
	attempt := m.attempts
	m.state = models.StateReconnecting
	m.stopRetryLocked()
	m.cancelRetry = m.schedule(delay, func() { m.reconnect(gen) })
	m.mu.Unlock()

	m.logger.Info("Reconnect scheduled", "attempt", attempt, "delay", delay)
	m.notifyState(models.StateReconnecting)
	m.bus.Emit(events.Reconnecting, attemptJSON(attempt, delay))
}

func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != models.StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.cancelRetry = nil
	m.mu.Unlock()

	ctx := context.Background()
	if m.tokens != nil {
		token, err := m.tokens.Token(ctx)
		if err != nil {
			m.logger.Warn("Failed to refresh credential before reconnect", "error", err)
		} else {
			m.mu.Lock()
			m.credential = token
			m.mu.Unlock()
		}
	}

	_ = m.dial(ctx, gen)
}

func (m *Manager) readPump(c *connection, gen uint64) {
	defer func() {
		c.close()

		m.mu.Lock()
		if m.current != c || gen != m.gen {
			// закрыто намеренно
			m.mu.Unlock()
			return
		}
		m.current = nil
		m.mu.Unlock()

		m.logger.Warn("WebSocket connection lost")
		m.bus.Emit(events.Disconnected, reasonJSON("connection lost"))
		m.scheduleReconnect(gen)
	}()

	if m.cfg.PongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(m.cfg.PongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(m.cfg.PongWait))
		})
	}

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !c.isClosed() {
				m.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}
		m.dispatch(message)
	}
}

func (m *Manager) dispatch(message []byte) {
	var frame api.Frame
	if err := json.Unmarshal(message, &frame); err != nil || frame.Type == "" {
		m.logger.Warn("Dropping malformed frame", "size", len(message), "error", err)
		return
	}

	m.mu.Lock()
	onFrame := m.onFrame
	m.mu.Unlock()
	if onFrame != nil {
		onFrame(frame)
	}
}

func (m *Manager) notifyState(state models.ConnectionState) {
	m.mu.Lock()
	onState := m.onState
	m.mu.Unlock()

	if onState != nil {
		onState(state)
	}
	raw, _ := json.Marshal(state)
	m.bus.Emit(events.StateChanged, raw)
}

func (m *Manager) stopRetryLocked() {
	if m.cancelRetry != nil {
		m.cancelRetry()
		m.cancelRetry = nil
	}
}

func connectURL(raw, credential string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if credential != "" {
		q := u.Query()
		q.Set("token", credential)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func reasonJSON(reason string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"reason": reason})
	return raw
}

func attemptJSON(attempt int, delay time.Duration) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{"attempt": attempt, "delayMs": delay.Milliseconds()})
	return raw
}

// connection одно открытое соединение и его write pump
type connection struct {
	conn      Conn
	logger    *slog.Logger
	send      chan []byte
	done      chan struct{}
	cfg       Config
	closeOnce sync.Once
}

func newConnection(conn Conn, cfg Config, logger *slog.Logger) *connection {
	return &connection{
		conn:   conn,
		cfg:    cfg,
		logger: logger,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

func (c *connection) enqueue(payload []byte) error {
	select {
	case <-c.done:
		return ErrNotReady
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *connection) writePump() {
	var tick <-chan time.Time
	if c.cfg.PingPeriod > 0 {
		ticker := time.NewTicker(c.cfg.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.setWriteDeadline()
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("WebSocket write failed", "error", err)
				return
			}
		case <-tick:
			c.setWriteDeadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("WebSocket ping failed", "error", err)
				return
			}
		}
	}
}

func (c *connection) setWriteDeadline() {
	if c.cfg.WriteWait > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	}
}

func (c *connection) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug("WebSocket close", "error", err)
		}
	})
}
