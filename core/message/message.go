// Package message holds the plain-text message unit exchanged between the
// agent and the synthesizer.
package message

type Message struct {
	Text string `json:"text"`
}

func New(text string) Message {
	return Message{Text: text}
}
