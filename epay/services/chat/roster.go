package chat

import (
	"context"
	"sync"

	"epay/epay/sources/psql/models"
	"epay/epay/sources/realtime"
	"epay/epay/utils/logging"
	"epay/epay/utils/metrics"

	"go.uber.org/zap"
)

// RosterState is an immutable snapshot of the conversation list.
type RosterState struct {
	Entries        []models.ChatUser `json:"entries"`
	Loading        bool              `json:"loading"`
	SelectedUserID string            `json:"selected_user_id,omitempty"`
	Version        uint64            `json:"version"`
}

// SessionFactory builds the controller for a selected user.
type SessionFactory func(userID string) *Session

// Roster keeps the conversation list current and owns at most one open
// session. Any insert on the message table triggers a full refresh;
// inserts that arrive while a refresh is running are folded into the next.
type Roster struct {
	deps       Deps
	newSession SessionFactory
	onChange   func(RosterState)

	mu       sync.Mutex
	state    RosterState
	session  *Session
	sub      *realtime.Subscription
	closed   bool
	started  bool
	ctx      context.Context
	cancel   context.CancelFunc
	kick     chan struct{}
	notifyMu sync.Mutex

	refreshMu sync.Mutex
	closeOnce sync.Once
}

// NewRoster builds a roster. newSession may be nil, in which case sessions
// are created from deps without a change listener.
func NewRoster(deps Deps, newSession SessionFactory, onChange func(RosterState)) *Roster {
	if newSession == nil {
		newSession = func(userID string) *Session {
			return NewSession(deps, userID, nil)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Roster{
		deps:       deps,
		newSession: newSession,
		onChange:   onChange,
		state:      RosterState{Entries: []models.ChatUser{}},
		ctx:        ctx,
		cancel:     cancel,
		kick:       make(chan struct{}, 1),
	}
}

// Start subscribes to every message insert and loads the roster.
func (r *Roster) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRosterClosed
	}
	if r.started {
		r.mu.Unlock()
		return r.Refresh(ctx)
	}
	r.started = true
	r.mu.Unlock()

	sub, err := r.deps.Bus.Subscribe(r.ctx, realtime.TableMessages, realtime.Filter{})
	if err != nil {
		// let the next Start retry the subscription
		r.mu.Lock()
		r.started = false
		r.mu.Unlock()
		err = storeErr("subscribe", err)
		raise(ctx, r.deps.alerter(), "subscribe", "Failed to connect to live updates", err)
		return err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		sub.Unsubscribe()
		return ErrRosterClosed
	}
	r.sub = sub
	r.mu.Unlock()

	go r.pump(sub)
	go r.refresher()

	return r.Refresh(ctx)
}

func (r *Roster) pump(sub *realtime.Subscription) {
	inv, _ := r.deps.Conversations.(Invalidator)
	for range sub.Events() {
		if inv != nil {
			inv.Invalidate()
		}
		select {
		case r.kick <- struct{}{}:
		default:
			// a refresh is already queued
		}
	}
}

func (r *Roster) refresher() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.kick:
			if err := r.Refresh(r.ctx); err != nil {
				logging.AppLogger.Debug("roster refresh after insert failed", zap.Error(err))
			}
		}
	}
}

// Refresh reloads the whole roster. On failure the previous entries stay.
func (r *Roster) Refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	if !r.mutate(func(st *RosterState) { st.Loading = true }) {
		return ErrRosterClosed
	}

	users, err := r.deps.Conversations.Conversations(ctx)

	applied := r.mutate(func(st *RosterState) {
		st.Loading = false
		if err == nil {
			st.Entries = users
		}
	})
	if !applied {
		return ErrRosterClosed
	}

	if err != nil {
		metrics.RosterRefreshes.WithLabelValues("error").Inc()
		raise(ctx, r.deps.alerter(), "conversations", "Failed to load conversations", err)
		return err
	}
	metrics.RosterRefreshes.WithLabelValues("ok").Inc()
	return nil
}

// Select closes the open session, if any, and opens userID. The returned
// session is ready or has already reported its load failure.
func (r *Roster) Select(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, required("user_id")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRosterClosed
	}
	prev := r.session
	if prev != nil && prev.UserID() == userID {
		r.mu.Unlock()
		return prev, nil
	}
	next := r.newSession(userID)
	r.session = next
	r.state.SelectedUserID = userID
	r.state.Version++
	r.mu.Unlock()
	r.notify()

	if prev != nil {
		prev.Close()
	}

	err := next.Open(ctx)

	r.mu.Lock()
	superseded := r.session != next
	r.mu.Unlock()
	if superseded {
		// another Select or Close won the race
		next.Close()
		return nil, ErrSessionClosed
	}
	if err != nil {
		logging.AppLogger.Warn("chat session opened with errors",
			zap.String("user_id", userID),
			zap.Error(err))
	}
	return next, err
}

// Deselect closes the open session.
func (r *Roster) Deselect() {
	r.mu.Lock()
	prev := r.session
	r.session = nil
	changed := r.state.SelectedUserID != ""
	r.state.SelectedUserID = ""
	if changed {
		r.state.Version++
	}
	closed := r.closed
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	if changed && !closed {
		r.notify()
	}
}

// Session returns the open session or nil.
func (r *Roster) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *Roster) Snapshot() RosterState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Roster) snapshotLocked() RosterState {
	st := r.state
	st.Entries = append([]models.ChatUser(nil), r.state.Entries...)
	return st
}

// Close ends the subscription and the open session. It is safe to call
// more than once.
func (r *Roster) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		sub := r.sub
		session := r.session
		r.session = nil
		r.mu.Unlock()

		r.cancel()
		if sub != nil {
			sub.Unsubscribe()
		}
		if session != nil {
			session.Close()
		}
	})
}

// mutate applies fn and notifies. It reports false once closed.
func (r *Roster) mutate(fn func(st *RosterState)) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	fn(&r.state)
	r.state.Version++
	r.mu.Unlock()
	r.notify()
	return true
}

func (r *Roster) notify() {
	if r.onChange == nil {
		return
	}
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	st := r.snapshotLocked()
	r.mu.Unlock()

	r.onChange(st)
}
