// Package deepgram implements the synthesizer on Deepgram's speak API. The
// whole utterance is requested as a WAV file over the base's instrumented
// HTTP client and converted to the configured output encoding by the base.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"go.opentelemetry.io/otel/codes"

	"github.com/lariatvoice/lariat-core/core/audio"
	"github.com/lariatvoice/lariat-core/core/message"
	"github.com/lariatvoice/lariat-core/core/synthesizer"
)

const (
	defaultVoice  = "aura-2-thalia-en"
	speakEndpoint = "https://api.deepgram.com/v1/speak"
)

type Client struct {
	*synthesizer.Base

	apiKey   string
	voice    string
	endpoint string
}

type Option func(*Client)

// WithAPIKey overrides the DEEPGRAM_API_KEY environment variable.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithVoice(voice string) Option {
	return func(c *Client) { c.voice = voice }
}

// WithEndpoint overrides the speak endpoint, for tests and proxies.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

func NewClient(config synthesizer.Config, opts ...Option) (*Client, error) {
	if config.Type == "" {
		config.Type = "deepgram"
	}

	base, err := synthesizer.NewBase(config)
	if err != nil {
		return nil, err
	}

	c := &Client{
		Base:     base,
		apiKey:   os.Getenv("DEEPGRAM_API_KEY"),
		voice:    defaultVoice,
		endpoint: speakEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	return c, nil
}

func (c *Client) CreateSpeech(
	ctx context.Context,
	msg message.Message,
	chunkSize int,
) (*synthesizer.SynthesisResult, error) {
	ctx, span := tracer.Start(ctx, "synthesizer.deepgram.create_total")
	defer span.End()

	wav, err := c.fetchWAV(ctx, msg.Text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "speech synthesis failed")
		return nil, err
	}

	return c.ResultFromWAV(wav, msg, chunkSize)
}

// fetchWAV requests the utterance as linear16 WAV at the output sample rate;
// the base handles any µ-law companding afterwards.
func (c *Client) fetchWAV(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode speak request: %w", err)
	}

	speakURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid speak endpoint: %w", err)
	}
	queryParams := speakURL.Query()
	queryParams.Set("model", c.voice)
	queryParams.Set("encoding", audio.EncodingLinear16.Name())
	queryParams.Set("sample_rate", strconv.Itoa(c.Config().Encoding.SampleRate))
	queryParams.Set("container", "wav")
	speakURL.RawQuery = queryParams.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, speakURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build speak request: %w", err)
	}
	request.Header.Set("Authorization", "Token "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.HTTPClient().Do(request)
	if err != nil {
		return nil, fmt.Errorf("failed to reach deepgram: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, fmt.Errorf("deepgram speak returned %d: %s", response.StatusCode, detail)
	}

	wav, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return wav, nil
}
