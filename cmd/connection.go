// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/boardlink/pkg/link"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Connection provides a common interface for reading/writing bytes from serial or WebSocket.
// Read returns (0, nil) when nothing arrived within the read timeout.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection wraps a WebSocket connection for byte-level reading.
// A read pump goroutine owns conn.ReadMessage so Read can time out.
type WebSocketConnection struct {
	conn        *websocket.Conn
	readTimeout time.Duration
	messages    chan []byte
	pumpDone    chan struct{}
	buf         []byte
	bufOffset   int
	closeOnce   sync.Once
	writeMu     sync.Mutex
}

func newWebSocketConnection(conn *websocket.Conn, readTimeout time.Duration) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:        conn,
		readTimeout: readTimeout,
		messages:    make(chan []byte, 16),
		pumpDone:    make(chan struct{}),
	}
	go w.readPump()
	return w
}

func (w *WebSocketConnection) readPump() {
	defer close(w.pumpDone)
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("websocket read pump stopped")
			return
		}
		// Text and binary frames both carry raw line bytes
		w.messages <- data
	}
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// If we have buffered data, return it first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	timer := time.NewTimer(w.readTimeout)
	defer timer.Stop()

	select {
	case data := <-w.messages:
		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	case <-w.pumpDone:
		// Drain anything queued before the pump exited
		select {
		case data := <-w.messages:
			w.buf = data
			n := copy(p, w.buf)
			w.bufOffset = n
			return n, nil
		default:
		}
		return 0, ErrConnectionClosed
	case <-timer.C:
		return 0, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.conn.Close()
		// Unblock the pump if it is waiting to hand over a message
		go func() {
			for {
				select {
				case <-w.messages:
				case <-w.pumpDone:
					return
				}
			}
		}()
	})
	return err
}

// OpenSerialConnection opens a serial port connection in 8N1 mode
func OpenSerialConnection(portName string, baudRate int, readTimeout time.Duration) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(ctx context.Context, wsURL, username, password string, skipSSLVerify bool, readTimeout time.Duration) (Connection, error) {
	// Parse and validate URL
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	// Validate scheme
	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	// Create dialer with timeout
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	// Configure TLS for wss://
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify, //nolint:gosec // opt-in via --no-ssl-verify
		}
	}

	// Build HTTP headers with Basic auth
	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	// Connect
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return newWebSocketConnection(conn, readTimeout), nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("BOARDLINK_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr) // newline after password
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr) // newline after password
	return string(passwordBytes), nil
}

// connector opens connections using the effective settings. The password is
// resolved once up front so reconnects never prompt.
type connector struct {
	portName    string
	baudRate    int
	readTimeout time.Duration
	url         string
	username    string
	password    string
	noSSLVerify bool
}

// newConnector builds a connector from the effective configuration
func newConnector() (*connector, error) {
	c := &connector{
		portName:    cfg.Port,
		baudRate:    cfg.Baud,
		readTimeout: cfg.ReadTimeout(),
		url:         cfg.URL,
		username:    cfg.Username,
		noSSLVerify: cfg.NoSSLVerify,
	}

	if c.url == "" && c.portName == "" {
		return nil, errors.New("either --port or --url must be specified")
	}

	if c.url != "" && c.username != "" {
		password, err := GetPassword()
		if err != nil {
			return nil, err
		}
		c.password = password
	}
	return c, nil
}

// Describe returns a short human-readable connection label
func (c *connector) Describe() string {
	if c.url != "" {
		return fmt.Sprintf("WebSocket: %s", c.url)
	}
	return fmt.Sprintf("Serial: %s @ %d baud", c.portName, c.baudRate)
}

// Open opens either a serial or WebSocket connection
func (c *connector) Open(ctx context.Context) (Connection, error) {
	if c.url != "" {
		return OpenWebSocketConnection(ctx, c.url, c.username, c.password, c.noSSLVerify, c.readTimeout)
	}
	return OpenSerialConnection(c.portName, c.baudRate, c.readTimeout)
}

// Dialer adapts Open for the link worker
func (c *connector) Dialer() link.Dialer {
	return func(ctx context.Context) (link.Port, error) {
		conn, err := c.Open(ctx)
		if err != nil {
			return nil, err
		}
		log.Info().Str("connection", c.Describe()).Msg("opened connection")
		return conn, nil
	}
}

// OpenConnection opens a single connection based on flags, for one-shot commands
func OpenConnection() (Connection, string, error) {
	c, err := newConnector()
	if err != nil {
		return nil, "", err
	}

	conn, err := c.Open(context.Background())
	if err != nil {
		return nil, "", err
	}
	return conn, c.Describe(), nil
}
