package history

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/dgraph-io/badger/v4"
	"hermannm.dev/wrap"
)

// Badger is a Channel persisted in a BadgerDB, so a session survives restarts of the process.
// Several sessions can share one database.
type Badger struct {
	db  *badger.DB
	key []byte
}

// OpenBadger opens (or creates) the database in dir. An empty dir opens an in-memory database.
func OpenBadger(dir string) (*badger.DB, error) {
	var options badger.Options
	if dir == "" {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, wrap.Errorf(err, "failed to create history directory '%s'", dir)
		}
		options = badger.DefaultOptions(dir)
	}

	db, err := badger.Open(options.WithLogger(nil))
	if err != nil {
		return nil, wrap.Error(err, "failed to open history database")
	}
	return db, nil
}

// NewBadger returns the history of the named session in db.
func NewBadger(db *badger.DB, session string) *Badger {
	return &Badger{db: db, key: []byte("history/" + session)}
}

func (history *Badger) Current() (encoded string, ok bool, err error) {
	err = history.db.View(func(txn *badger.Txn) error {
		stack, err := history.load(txn)
		if err != nil {
			return err
		}
		encoded, ok = stack.current()
		return nil
	})
	return encoded, ok, err
}

func (history *Badger) Push(encoded string) error {
	return history.update(func(stack *stack) bool {
		stack.push(encoded)
		return true
	})
}

func (history *Badger) Back() (encoded string, ok bool, err error) {
	err = history.update(func(stack *stack) bool {
		encoded, ok = stack.back()
		return ok
	})
	return encoded, ok, err
}

func (history *Badger) Forward() (encoded string, ok bool, err error) {
	err = history.update(func(stack *stack) bool {
		encoded, ok = stack.forward()
		return ok
	})
	return encoded, ok, err
}

// update applies modify to the stored stack, saving it if modify returns true.
func (history *Badger) update(modify func(stack *stack) bool) error {
	err := history.db.Update(func(txn *badger.Txn) error {
		stack, err := history.load(txn)
		if err != nil {
			return err
		}

		if !modify(&stack) {
			return nil
		}

		bytes, err := json.Marshal(stack)
		if err != nil {
			return wrap.Error(err, "failed to serialize history")
		}
		return txn.Set(history.key, bytes)
	})
	if err != nil {
		return wrap.Errorf(err, "failed to update history '%s'", history.key)
	}
	return nil
}

func (history *Badger) load(txn *badger.Txn) (stack, error) {
	item, err := txn.Get(history.key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return newStack(), nil
	}
	if err != nil {
		return stack{}, wrap.Errorf(err, "failed to read history '%s'", history.key)
	}

	loaded := newStack()
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &loaded)
	})
	if err != nil {
		return stack{}, wrap.Errorf(err, "failed to deserialize history '%s'", history.key)
	}
	return loaded, nil
}
