// Package transcript keeps the append-only conversation log: human and bot
// utterances plus action start/finish records. The transcript is owned by the
// conversation and borrowed by the agent; appends happen from the
// conversation's task, which keeps a single-writer discipline, but the log is
// guarded anyway so snapshots are always consistent.
package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type EntryKind string

const (
	EntryKindHumanMessage EntryKind = "human_message"
	EntryKindBotMessage   EntryKind = "bot_message"
	EntryKindActionStart  EntryKind = "action_start"
	EntryKindActionFinish EntryKind = "action_finish"
)

type Entry struct {
	ID             string
	Kind           EntryKind
	ConversationID string
	Timestamp      time.Time

	// Text is the utterance for message entries and empty for action records.
	Text       string
	Confidence float64

	ActionType   string
	ActionInput  string
	ActionOutput string
}

type Transcript struct {
	mu      sync.Mutex
	entries []Entry

	onEntry func(Entry)
}

type Option func(*Transcript)

// WithEntryCallback registers an observer invoked for every appended entry.
func WithEntryCallback(onEntry func(Entry)) Option {
	return func(t *Transcript) { t.onEntry = onEntry }
}

func New(opts ...Option) *Transcript {
	t := &Transcript{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transcript) AddHumanMessage(text, conversationID string, confidence float64) {
	t.append(Entry{
		Kind:           EntryKindHumanMessage,
		ConversationID: conversationID,
		Text:           text,
		Confidence:     confidence,
	})
}

func (t *Transcript) AddBotMessage(text, conversationID string) {
	t.append(Entry{
		Kind:           EntryKindBotMessage,
		ConversationID: conversationID,
		Text:           text,
		Confidence:     1.0,
	})
}

func (t *Transcript) AddActionStartLog(actionType, actionInput, conversationID string) {
	t.append(Entry{
		Kind:           EntryKindActionStart,
		ConversationID: conversationID,
		ActionType:     actionType,
		ActionInput:    actionInput,
	})
}

func (t *Transcript) AddActionFinishLog(actionType, actionInput, actionOutput, conversationID string) {
	t.append(Entry{
		Kind:           EntryKindActionFinish,
		ConversationID: conversationID,
		ActionType:     actionType,
		ActionInput:    actionInput,
		ActionOutput:   actionOutput,
	})
}

// UpdateLastBotMessage replaces the text of the most recent bot entry. The
// playback layer uses it on barge-in to record only the prefix the caller
// actually heard.
func (t *Transcript) UpdateLastBotMessage(text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Kind == EntryKindBotMessage {
			t.entries[i].Text = text
			return true
		}
	}
	return false
}

// Entries returns a point-in-time copy of the log.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]Entry, len(t.entries))
	copy(entries, t.entries)
	return entries
}

func (t *Transcript) append(entry Entry) {
	entry.ID = uuid.NewString()
	entry.Timestamp = time.Now()

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	onEntry := t.onEntry
	t.mu.Unlock()

	if onEntry != nil {
		onEntry(entry)
	}
}
