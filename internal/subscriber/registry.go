package subscriber

import (
	"context"
	"sort"
	"sync"
	"time"

	logx "veloxbot/pkg/logx"
)

// Registry is the single writer for the subscriber mapping.
//
// It keeps the authoritative state in memory and writes the whole mapping
// through to the store before a mutation is acknowledged: if the store
// rejects the write, the in-memory state is left untouched so memory and
// disk never disagree. Reads return copies, so an in-flight fan-out is not
// affected by concurrent subscribe/unsubscribe.
type Registry struct {
	log   logx.Logger
	store Store
	now   func() time.Time

	mu   sync.Mutex
	subs map[int64]Subscriber
}

// NewRegistry loads the persisted mapping and returns a ready registry.
func NewRegistry(ctx context.Context, store Store, log logx.Logger) (*Registry, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	loaded, err := store.LoadSubscribers(ctx)
	if err != nil {
		return nil, err
	}
	subs := make(map[int64]Subscriber, len(loaded))
	for _, s := range loaded {
		subs[s.ChatID] = s
	}
	log.Debug("subscriber registry loaded", logx.Int("count", len(subs)))
	return &Registry{log: log, store: store, now: time.Now, subs: subs}, nil
}

// Subscribe adds a chat. It is idempotent: subscribing twice leaves exactly
// one record, and the return value reports whether the chat was newly added.
func (r *Registry) Subscribe(ctx context.Context, chatID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[chatID]; ok {
		return false, nil
	}
	sub := Subscriber{ChatID: chatID, SubscribedAt: r.now()}
	if err := r.persistWith(ctx, sub, 0); err != nil {
		return false, err
	}
	r.subs[chatID] = sub
	r.log.Info("subscriber added", logx.Int64("chat_id", chatID))
	return true, nil
}

// Unsubscribe removes a chat and reports whether a record was actually
// removed. Unsubscribing an unknown chat is a no-op, never an error.
func (r *Registry) Unsubscribe(ctx context.Context, chatID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[chatID]; !ok {
		return false, nil
	}
	if err := r.persistWithout(ctx, chatID); err != nil {
		return false, err
	}
	delete(r.subs, chatID)
	r.log.Info("subscriber removed", logx.Int64("chat_id", chatID))
	return true, nil
}

// ToggleNoChangeNotify flips the no-change preference and returns the new
// value. Fails with ErrNotFound when the chat is not subscribed.
func (r *Registry) ToggleNoChangeNotify(ctx context.Context, chatID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[chatID]
	if !ok {
		return false, ErrNotFound
	}
	sub.NotifyNoChange = !sub.NotifyNoChange
	if err := r.persistWith(ctx, sub, chatID); err != nil {
		return false, err
	}
	r.subs[chatID] = sub
	return sub.NotifyNoChange, nil
}

// ListEligible returns the recipients for one cycle as a point-in-time copy,
// sorted by chat ID. With noChangeOnly set, only subscribers that opted into
// no-change notifications are included. Concurrent mutation after the call
// does not affect the returned slice.
func (r *Registry) ListEligible(noChangeOnly bool) []Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		if noChangeOnly && !s.NotifyNoChange {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out
}

// Count returns the number of subscribed chats.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// persistWith writes the current mapping plus/replacing one record.
// replacing is the chat ID being replaced (0 for pure additions; chat IDs
// are never 0 on Telegram). Caller holds r.mu.
func (r *Registry) persistWith(ctx context.Context, sub Subscriber, replacing int64) error {
	next := make([]Subscriber, 0, len(r.subs)+1)
	for id, s := range r.subs {
		if id == sub.ChatID || id == replacing {
			continue
		}
		next = append(next, s)
	}
	next = append(next, sub)
	sortByChatID(next)
	return r.store.SaveSubscribers(ctx, next)
}

// persistWithout writes the current mapping minus one record. Caller holds r.mu.
func (r *Registry) persistWithout(ctx context.Context, chatID int64) error {
	next := make([]Subscriber, 0, len(r.subs))
	for id, s := range r.subs {
		if id == chatID {
			continue
		}
		next = append(next, s)
	}
	sortByChatID(next)
	return r.store.SaveSubscribers(ctx, next)
}

func sortByChatID(subs []Subscriber) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].ChatID < subs[j].ChatID })
}
