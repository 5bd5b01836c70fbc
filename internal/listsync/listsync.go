// Package listsync keeps a local ordered copy of the remote item collection.
//
// Every mutation issues exactly one remote call and, only when it succeeds,
// patches the local copy with the values the request carried. There is no
// confirming re-fetch. Updates are addressed by item id; each id has a
// monotonic request counter so a response that arrives after a newer one for
// the same item is dropped instead of overwriting it.
package listsync

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/idilsaglam/posts/internal/model"
)

// Remote is the collection resource. *api.Client implements it.
type Remote interface {
	List(ctx context.Context) ([]model.Item, error)
	Create(ctx context.Context, req model.CreateRequest) (model.Item, error)
	Update(ctx context.Context, id string, req model.UpdateRequest) error
	Delete(ctx context.Context, id string) error
}

// Notifier receives the user-facing message of a failed operation.
type Notifier interface {
	Notify(msg string)
}

// NotifyFunc adapts a function to Notifier.
type NotifyFunc func(msg string)

func (f NotifyFunc) Notify(msg string) { f(msg) }

type tickets struct {
	issued  uint64
	applied uint64
}

// Synchronizer is safe for concurrent use. The lock is never held across a
// remote call.
type Synchronizer struct {
	remote   Remote
	notifier Notifier
	log      *log.Logger
	now      func() time.Time
	votes    VotePolicy

	mu      sync.Mutex
	items   []model.Item
	index   map[string]int
	tickets map[string]*tickets
	loading bool
	loadGen uint64
}

type Option func(*Synchronizer)

func WithNotifier(n Notifier) Option { return func(s *Synchronizer) { s.notifier = n } }

func WithLogger(l *log.Logger) Option { return func(s *Synchronizer) { s.log = l } }

// WithClock overrides time.Now for due-date computation.
func WithClock(now func() time.Time) Option { return func(s *Synchronizer) { s.now = now } }

func WithVotePolicy(p VotePolicy) Option { return func(s *Synchronizer) { s.votes = p } }

// New returns an empty synchronizer in the loading state.
func New(remote Remote, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		remote:  remote,
		log:     log.StandardLogger(),
		now:     time.Now,
		index:   make(map[string]int),
		tickets: make(map[string]*tickets),
		loading: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load replaces the local list with the remote collection. The loading flag is
// cleared whether or not the fetch succeeds; on failure the list is left as is.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	items, err := s.remote.List(ctx)

	s.mu.Lock()
	if gen != s.loadGen {
		s.mu.Unlock()
		s.log.WithField("generation", gen).Debug("dropping superseded load")
		return nil
	}
	s.loading = false
	if err == nil {
		s.replaceLocked(items)
	}
	n := len(s.items)
	s.mu.Unlock()

	if err != nil {
		return s.fail(OpLoad, "", err)
	}
	s.log.WithField("items", n).Debug("list loaded")
	return nil
}

func (s *Synchronizer) replaceLocked(items []model.Item) {
	s.items = make([]model.Item, 0, len(items))
	s.index = make(map[string]int, len(items))
	for _, it := range items {
		if _, dup := s.index[it.ID]; dup {
			s.log.WithField("id", it.ID).Warn("duplicate id in list response")
			continue
		}
		s.index[it.ID] = len(s.items)
		s.items = append(s.items, it)
	}
}

// Create adds a new item due seven days from now and appends the server's copy.
// The name is sent as given; only a blank name is rejected.
func (s *Synchronizer) Create(ctx context.Context, name string) (model.Item, error) {
	if strings.TrimSpace(name) == "" {
		return model.Item{}, ErrEmptyName
	}
	req := model.CreateRequest{Name: name, DueDate: model.DueDate(s.now())}

	it, err := s.remote.Create(ctx, req)
	if err != nil {
		return model.Item{}, s.fail(OpCreate, "", err)
	}

	s.mu.Lock()
	if pos, ok := s.index[it.ID]; ok {
		s.items[pos] = it
	} else {
		s.index[it.ID] = len(s.items)
		s.items = append(s.items, it)
	}
	s.mu.Unlock()

	s.log.WithField("id", it.ID).Debug("item created")
	return it, nil
}

// Delete removes item id remotely and then locally. A successful delete wins
// over any update response for the same id, earlier or later.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.index[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.issueLocked(id)
	s.mu.Unlock()

	if err := s.remote.Delete(ctx, id); err != nil {
		return s.fail(OpDelete, id, err)
	}

	s.mu.Lock()
	s.removeLocked(id)
	s.mu.Unlock()
	s.log.WithField("id", id).Debug("item deleted")
	return nil
}

func (s *Synchronizer) removeLocked(id string) {
	pos, ok := s.index[id]
	if !ok {
		return
	}
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	delete(s.index, id)
	delete(s.tickets, id)
	for i := pos; i < len(s.items); i++ {
		s.index[s.items[i].ID] = i
	}
}

// ToggleDone flips the completion flag of item id.
func (s *Synchronizer) ToggleDone(ctx context.Context, id string) error {
	return s.update(ctx, OpToggle, id, func(it model.Item) (model.UpdateRequest, model.UpdateRequest) {
		u := it.Update()
		u.Done = !u.Done
		return u, u
	})
}

// Upvote adds one upvote to item id.
func (s *Synchronizer) Upvote(ctx context.Context, id string) error {
	return s.update(ctx, OpUpvote, id, func(it model.Item) (model.UpdateRequest, model.UpdateRequest) {
		return s.votes.vote(it, true)
	})
}

// Downvote adds one downvote to item id.
func (s *Synchronizer) Downvote(ctx context.Context, id string) error {
	return s.update(ctx, OpDownvote, id, func(it model.Item) (model.UpdateRequest, model.UpdateRequest) {
		return s.votes.vote(it, false)
	})
}

// Rename changes the name of item id.
func (s *Synchronizer) Rename(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	return s.update(ctx, OpRename, id, func(it model.Item) (model.UpdateRequest, model.UpdateRequest) {
		u := it.Update()
		u.Name = name
		return u, u
	})
}

// update snapshots item id, sends the body built by mutate and, on success,
// applies the local patch unless a newer response was applied meanwhile.
func (s *Synchronizer) update(ctx context.Context, op Op, id string, mutate func(model.Item) (send, local model.UpdateRequest)) error {
	s.mu.Lock()
	pos, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	snapshot := s.items[pos]
	ticket := s.issueLocked(id)
	s.mu.Unlock()

	send, local := mutate(snapshot)
	if err := s.remote.Update(ctx, id, send); err != nil {
		return s.fail(op, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acceptLocked(id, ticket) {
		return nil
	}
	pos, ok = s.index[id]
	if !ok {
		s.log.WithFields(log.Fields{"op": op, "id": id}).Debug("item gone before response")
		return nil
	}
	s.items[pos] = s.items[pos].Apply(local)
	return nil
}

func (s *Synchronizer) issueLocked(id string) uint64 {
	t, ok := s.tickets[id]
	if !ok {
		t = &tickets{}
		s.tickets[id] = t
	}
	t.issued++
	return t.issued
}

// acceptLocked reports whether the response for ticket is newer than anything
// already applied for id, and records it as applied.
func (s *Synchronizer) acceptLocked(id string, ticket uint64) bool {
	t, ok := s.tickets[id]
	if !ok {
		return false
	}
	if ticket <= t.applied {
		s.log.WithFields(log.Fields{"id": id, "ticket": ticket, "applied": t.applied}).Debug("dropping stale response")
		return false
	}
	t.applied = ticket
	return true
}

func (s *Synchronizer) fail(op Op, id string, err error) error {
	opErr := &OpError{Op: op, ID: id, Err: err}
	s.log.WithFields(log.Fields{"op": op, "id": id}).WithError(err).Warn("remote call failed")
	if s.notifier != nil && !errors.Is(err, context.Canceled) {
		s.notifier.Notify(opErr.Message())
	}
	return opErr
}

// Items returns a copy of the local list in display order.
func (s *Synchronizer) Items() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Item returns the local copy of item id.
func (s *Synchronizer) Item(id string) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.index[id]
	if !ok {
		return model.Item{}, false
	}
	return s.items[pos], true
}

// IDAt resolves a 0-based display position to an item id.
func (s *Synchronizer) IDAt(index int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.items) {
		return "", false
	}
	return s.items[index].ID, true
}

func (s *Synchronizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Loading reports whether a load is in flight.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Stats counts done and pending items.
func (s *Synchronizer) Stats() (done, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.Done {
			done++
		} else {
			pending++
		}
	}
	return
}
