package deepgram

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	"github.com/lariatvoice/lariat-core/core/transcriber"
)

func transcription(text string, confidence float64, isFinal bool) transcriber.Transcription {
	return transcriber.Transcription{Text: text, Confidence: confidence, IsFinal: isFinal}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer close(c.done)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Error("failed to read deepgram socket message", "error", err)
			}

			c.connMu.Lock()
			c.conn = nil
			c.connMu.Unlock()
			c.SetReady(false)
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			c.processMessage(msg)
		}
	}
}

func (c *Client) processMessage(msg []byte) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &header); err != nil {
		logger.Error("failed to parse deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(header.Type) {
	case api.TypeMessageResponse:
		var response api.MessageResponse
		if err := json.Unmarshal(msg, &response); err != nil {
			logger.Error("failed to parse deepgram transcription message", "error", err)
			return
		}
		c.processTranscriptionMessage(response)

	case api.TypeUtteranceEndResponse:
		// The endpoint gave up waiting for a speech_final; commit whatever
		// was accumulated.
		if c.unendedSegment {
			c.commitUtterance()
		}

	case api.TypeSpeechStartedResponse:
		c.unendedSegment = true
	}
}

func (c *Client) processTranscriptionMessage(response api.MessageResponse) {
	if len(response.Channel.Alternatives) == 0 {
		return
	}
	alternative := response.Channel.Alternatives[0]
	text := strings.TrimSpace(alternative.Transcript)
	if text == "" {
		return
	}

	if !response.IsFinal {
		c.EmitTranscription(transcription(strings.TrimSpace(c.accumulated+" "+text), alternative.Confidence, false))
		return
	}

	c.accumulated = strings.TrimSpace(c.accumulated + " " + text)
	c.confidence = alternative.Confidence
	if response.SpeechFinal {
		c.commitUtterance()
	}
}

func (c *Client) commitUtterance() {
	c.unendedSegment = false

	text := strings.TrimSpace(c.accumulated)
	c.accumulated = ""
	if text == "" {
		return
	}

	c.EmitTranscription(transcription(text, c.confidence, true))
}

// generateSilence keeps the socket's endpointing timers running while the
// caller is quiet: after 50ms without audio it starts sending silent chunks,
// and after a second of that it degrades to keep-alive pings every 5 seconds.
func (c *Client) generateSilence(ctx context.Context) {
	type generatorState int
	const (
		stateWaiting generatorState = iota
		stateSilence
		stateKeepAlive
	)

	const tick = 50 * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	encoding := c.Config().Encoding
	chunk := encoding.SilentChunk(encoding.BytesPerSecond() * int(tick.Milliseconds()) / 1000)

	state := stateWaiting
	var silenceStarted time.Time
	var lastKeepAlive time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		switch state {
		case stateWaiting:
			if c.sinceLastAudio() > tick {
				state = stateSilence
				silenceStarted = time.Now()
			}

		case stateSilence:
			if c.sinceLastAudio() < tick {
				state = stateWaiting
				continue
			}
			if time.Since(silenceStarted) >= time.Second {
				state = stateKeepAlive
				lastKeepAlive = time.Now()
				continue
			}

			if err := c.writeBinary(chunk); err != nil {
				logger.Error("failed to send silence", "error", err)
			}

		case stateKeepAlive:
			if c.sinceLastAudio() < tick {
				state = stateWaiting
				continue
			}
			if time.Since(lastKeepAlive) >= 5*time.Second {
				lastKeepAlive = time.Now()
				if err := c.writeJSON(struct {
					Type string `json:"type"`
				}{Type: "KeepAlive"}); err != nil {
					logger.Error("failed to send keep-alive", "error", err)
				}
			}
		}
	}
}
