// Package deepgram implements the streaming recognizer on Deepgram's
// websocket listen API. Audio flows from the base input queue onto the
// socket; recognition messages flow back through the base's side modules. A
// background silence generator keeps the socket's endpointing timers honest
// while the caller is quiet.
package deepgram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lariatvoice/lariat-core/core/pipeline"
	"github.com/lariatvoice/lariat-core/core/transcriber"
)

const (
	defaultModel    = "nova-3"
	defaultLanguage = "en-US"

	listenEndpoint = "wss://api.deepgram.com/v1/listen"
)

type Client struct {
	*transcriber.Base

	apiKey   string
	model    string
	language string

	conn   *websocket.Conn
	connMu sync.Mutex

	// lastAudioAt drives the silence generator's state machine.
	lastAudioAt   time.Time
	lastAudioAtMu sync.Mutex

	// accumulated collects finalized segments until the endpoint decides the
	// utterance is over.
	accumulated    string
	confidence     float64
	unendedSegment bool

	sendWorker *pipeline.QueueWorker[[]byte]
	done       chan struct{}
}

type Option func(*Client)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithLanguage(language string) Option {
	return func(c *Client) { c.language = language }
}

func NewClient(ctx context.Context, config transcriber.Config, opts ...Option) (*Client, error) {
	c := &Client{
		Base:     transcriber.NewBase(ctx, config),
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		model:    defaultModel,
		language: defaultLanguage,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	if err := c.Config().Encoding.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transcriber encoding: %w", err)
	}

	c.sendWorker = pipeline.NewQueueWorker(c.InputQueue(), c.sendChunk)
	return c, nil
}

// Start opens the websocket and launches the send worker, the read loop, and
// the silence generator.
func (c *Client) Start(ctx context.Context) error {
	conn, err := c.connect()
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.SetReady(true)

	c.sendWorker.Start(ctx)
	go c.readLoop(ctx, conn)
	go c.generateSilence(ctx)

	return nil
}

func (c *Client) connect() (*websocket.Conn, error) {
	encoding := c.Config().Encoding

	listenURL, _ := url.Parse(listenEndpoint)
	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("language", c.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

func (c *Client) sendChunk(_ context.Context, chunk []byte) error {
	c.lastAudioAtMu.Lock()
	c.lastAudioAt = time.Now()
	c.lastAudioAtMu.Unlock()

	return c.writeBinary(chunk)
}

func (c *Client) writeBinary(chunk []byte) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("failed to write to deepgram socket: %w", err)
	}
	return nil
}

func (c *Client) writeJSON(message any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}
	if err := c.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write to deepgram socket: %w", err)
	}
	return nil
}

func (c *Client) sinceLastAudio() time.Duration {
	c.lastAudioAtMu.Lock()
	defer c.lastAudioAtMu.Unlock()
	return time.Since(c.lastAudioAt)
}

// StopStream asks the endpoint to flush and finalize anything buffered.
func (c *Client) StopStream() error {
	return c.writeJSON(struct {
		Type string `json:"type"`
	}{Type: "CloseStream"})
}

func (c *Client) Close() error {
	c.sendWorker.Terminate()

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.SetReady(false)
	return err
}

// AwaitDone blocks until the read loop exited.
func (c *Client) AwaitDone() { <-c.done }
