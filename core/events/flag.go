package events

import (
	"sync"
	"sync/atomic"
)

// InterruptionFlag is a set-once boolean shared by every holder of an event.
// Setting it is idempotent and one-way; observers can either poll IsSet or
// select on Done.
type InterruptionFlag struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

func NewInterruptionFlag() *InterruptionFlag {
	return &InterruptionFlag{done: make(chan struct{})}
}

func (f *InterruptionFlag) Set() {
	if f == nil {
		return
	}

	f.once.Do(func() {
		f.set.Store(true)
		close(f.done)
	})
}

func (f *InterruptionFlag) IsSet() bool {
	return f != nil && f.set.Load()
}

// Done returns a channel that is closed once the flag is set.
func (f *InterruptionFlag) Done() <-chan struct{} {
	return f.done
}
