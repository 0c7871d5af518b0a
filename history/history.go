// Package history records encoded selection states, so an explorer session can be resumed and
// navigated backward and forward.
package history

import (
	"sync"
)

// Channel is the navigation history of one explorer session. Entries are encoded selection states.
type Channel interface {
	// Current returns the entry at the cursor. ok is false if the history is empty.
	Current() (encoded string, ok bool, err error)
	// Push appends an entry after the cursor, discarding any entries ahead of it, and moves the
	// cursor to it.
	Push(encoded string) error
	// Back moves the cursor one entry back. ok is false at the oldest entry.
	Back() (encoded string, ok bool, err error)
	// Forward moves the cursor one entry forward. ok is false at the newest entry.
	Forward() (encoded string, ok bool, err error)
}

type stack struct {
	Entries []string `json:"entries"`
	Cursor  int      `json:"cursor"`
}

func newStack() stack {
	return stack{Cursor: -1}
}

func (history *stack) current() (string, bool) {
	if history.Cursor < 0 || history.Cursor >= len(history.Entries) {
		return "", false
	}
	return history.Entries[history.Cursor], true
}

func (history *stack) push(encoded string) {
	history.Entries = append(history.Entries[:history.Cursor+1], encoded)
	history.Cursor = len(history.Entries) - 1
}

func (history *stack) back() (string, bool) {
	if history.Cursor <= 0 {
		return "", false
	}
	history.Cursor--
	return history.current()
}

func (history *stack) forward() (string, bool) {
	if history.Cursor >= len(history.Entries)-1 {
		return "", false
	}
	history.Cursor++
	return history.current()
}

// Memory is a Channel that lives as long as the process.
type Memory struct {
	mu      sync.Mutex
	history stack
}

func NewMemory() *Memory {
	return &Memory{history: newStack()}
}

func (memory *Memory) Current() (string, bool, error) {
	memory.mu.Lock()
	defer memory.mu.Unlock()

	encoded, ok := memory.history.current()
	return encoded, ok, nil
}

func (memory *Memory) Push(encoded string) error {
	memory.mu.Lock()
	defer memory.mu.Unlock()

	memory.history.push(encoded)
	return nil
}

func (memory *Memory) Back() (string, bool, error) {
	memory.mu.Lock()
	defer memory.mu.Unlock()

	encoded, ok := memory.history.back()
	return encoded, ok, nil
}

func (memory *Memory) Forward() (string, bool, error) {
	memory.mu.Lock()
	defer memory.mu.Unlock()

	encoded, ok := memory.history.forward()
	return encoded, ok, nil
}

// Entries returns every entry, oldest first, and the cursor position.
func (memory *Memory) Entries() ([]string, int) {
	memory.mu.Lock()
	defer memory.mu.Unlock()

	return append([]string(nil), memory.history.Entries...), memory.history.Cursor
}
