// Package synthesizer turns agent messages into streamed audio chunks.
// Concrete voices (see the deepgram subpackage) embed Base, which owns the
// validated output encoding, the instrumented HTTP client, and the canned
// audio sets used for filler, back-tracking, and follow-up cues.
package synthesizer

import (
	"context"
	"math/rand/v2"
	"net/http"
	"sync"

	"github.com/jinzhu/copier"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lariatvoice/lariat-core/core/message"
)

// Synthesizer is the contract playback consumes: one message in, one chunked
// audio stream out.
type Synthesizer interface {
	Config() Config
	CreateSpeech(ctx context.Context, msg message.Message, chunkSize int) (*SynthesisResult, error)
	Teardown(ctx context.Context) error
}

type Base struct {
	config Config

	httpClient *http.Client
	// ownsHTTPClient records whether Teardown should release the client's
	// connections; a shared injected client is left alone.
	ownsHTTPClient bool

	mu                 sync.Mutex
	fillerAudios       []FillerAudio
	backTrackingAudios []FillerAudio
	followUpAudios     []FillerAudio
}

type Option func(*Base)

// WithHTTPClient shares an existing client across synthesizers; Teardown will
// not touch it.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Base) {
		b.httpClient = client
		b.ownsHTTPClient = false
	}
}

func NewBase(config Config, opts ...Option) (*Base, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Base{
		config: config,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		ownsHTTPClient: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Base) Config() Config { return b.config }

// HTTPClient is the instrumented client concrete synthesizers should issue
// their requests through.
func (b *Base) HTTPClient() *http.Client { return b.httpClient }

func (b *Base) Teardown(context.Context) error {
	if b.ownsHTTPClient {
		b.httpClient.CloseIdleConnections()
	}
	return nil
}

// SetFillerAudios stores deep copies of the pre-synthesized filler phrases;
// later caller mutations do not leak into playback.
func (b *Base) SetFillerAudios(audios []FillerAudio) error {
	return b.storeAudios(&b.fillerAudios, audios)
}

func (b *Base) SetBackTrackingAudios(audios []FillerAudio) error {
	return b.storeAudios(&b.backTrackingAudios, audios)
}

func (b *Base) SetFollowUpAudios(audios []FillerAudio) error {
	return b.storeAudios(&b.followUpAudios, audios)
}

func (b *Base) storeAudios(target *[]FillerAudio, audios []FillerAudio) error {
	copied := make([]FillerAudio, 0, len(audios))
	if err := copier.CopyWithOption(&copied, &audios, copier.Option{DeepCopy: true}); err != nil {
		return err
	}

	b.mu.Lock()
	*target = copied
	b.mu.Unlock()
	return nil
}

// FillerAudio picks a random canned filler; ok is false when none are set.
func (b *Base) FillerAudio() (FillerAudio, bool) { return b.pickAudio(&b.fillerAudios) }

func (b *Base) BackTrackingAudio() (FillerAudio, bool) { return b.pickAudio(&b.backTrackingAudios) }

// FollowUpAudio picks a nudge for a caller who went quiet. secondsSpoken is
// accepted for implementations that size the nudge to played audio.
func (b *Base) FollowUpAudio(secondsSpoken float64) (FillerAudio, bool) {
	return b.pickAudio(&b.followUpAudios)
}

func (b *Base) pickAudio(source *[]FillerAudio) (FillerAudio, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(*source) == 0 {
		return FillerAudio{}, false
	}
	return (*source)[rand.IntN(len(*source))], true
}
