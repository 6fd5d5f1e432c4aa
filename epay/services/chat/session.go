package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"epay/epay/sources/psql/models"
	"epay/epay/sources/realtime"
	"epay/epay/sources/storage"
	"epay/epay/utils/logging"
	"epay/epay/utils/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultImagePlaceholder = "Sent an image"

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
)

// DraftPolicy decides what happens to the compose box when a send fails.
type DraftPolicy int

const (
	// DraftDiscard leaves the compose box empty after a failed send.
	DraftDiscard DraftPolicy = iota
	// DraftRestore puts the failed text back into the compose box.
	DraftRestore
)

// MessageService is what a session needs from the message store.
type MessageService interface {
	ListMessages(ctx context.Context, userID string) ([]models.Message, error)
	AppendMessage(ctx context.Context, userID, content string, imageRef *string) (*models.Message, error)
	UploadAttachment(ctx context.Context, f storage.File) (string, error)
}

// ReplyService is what a session needs from the saved reply store.
type ReplyService interface {
	List(ctx context.Context) ([]models.SavedReply, error)
	Create(ctx context.Context, title, body string) (*models.SavedReply, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ConversationSource produces the roster.
type ConversationSource interface {
	Conversations(ctx context.Context) ([]models.ChatUser, error)
}

// Invalidator is implemented by conversation sources that share or cache
// builds. The roster calls Invalidate before refreshing after an insert.
type Invalidator interface {
	Invalidate()
}

type Options struct {
	DraftPolicy      DraftPolicy
	ImagePlaceholder string
}

// Deps bundles the process-wide collaborators shared by every controller.
type Deps struct {
	Messages      MessageService
	Replies       ReplyService
	Conversations ConversationSource
	Bus           realtime.Bus
	Alerter       Alerter
	Options       Options
}

func (d Deps) alerter() Alerter {
	if d.Alerter == nil {
		return nopAlerter{}
	}
	return d.Alerter
}

func (d Deps) placeholder() string {
	if d.Options.ImagePlaceholder == "" {
		return DefaultImagePlaceholder
	}
	return d.Options.ImagePlaceholder
}

// SessionState is an immutable snapshot of one open conversation.
type SessionState struct {
	UserID         string              `json:"user_id"`
	Status         Status              `json:"status"`
	Messages       []models.Message    `json:"messages"`
	Draft          string              `json:"draft"`
	Sending        bool                `json:"sending"`
	UploadingImage bool                `json:"uploading_image"`
	SavedReplies   []models.SavedReply `json:"saved_replies"`
	Version        uint64              `json:"version"`
}

// Session is the controller of one open conversation. It subscribes to the
// user's inserts before fetching the log, buffers what arrives while
// loading, and merges by message id, so nothing inserted during the fetch
// is lost. Once closed, late fetch results, send completions and events
// are dropped silently.
type Session struct {
	userID   string
	deps     Deps
	onChange func(SessionState)

	mu      sync.Mutex
	state   SessionState
	pending []models.Message
	seen    map[uuid.UUID]struct{}
	loadGen uint64
	// replyGen orders saved reply loads so a stale list never wins.
	replyGen     uint64
	replyApplied uint64
	closed       bool
	sub          *realtime.Subscription
	cancel       context.CancelFunc
	ctx          context.Context

	notifyMu  sync.Mutex
	closeOnce sync.Once
}

// NewSession prepares a controller for userID. onChange, if set, receives a
// snapshot after every visible change; it must not call back into the
// session's mutating methods synchronously.
func NewSession(deps Deps, userID string, onChange func(SessionState)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		userID:   userID,
		deps:     deps,
		onChange: onChange,
		state: SessionState{
			UserID:       userID,
			Status:       StatusLoading,
			Messages:     []models.Message{},
			SavedReplies: []models.SavedReply{},
		},
		seen:   make(map[uuid.UUID]struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Session) UserID() string { return s.userID }

// Open subscribes to the user's inserts, loads the log and becomes ready.
// Saved replies load in the background.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.sub != nil {
		s.mu.Unlock()
		return s.Reload(ctx)
	}
	s.mu.Unlock()

	sub, err := s.deps.Bus.Subscribe(s.ctx, realtime.TableMessages, realtime.Eq("user_id", s.userID))
	if err != nil {
		err = storeErr("subscribe", err)
		s.alert(ctx, "subscribe", "Failed to connect to live updates", err)
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return ErrSessionClosed
	}
	s.sub = sub
	s.mu.Unlock()

	metrics.SessionsOpen.Inc()
	logging.AppLogger.Info("chat session opened", zap.String("user_id", s.userID))

	go s.pump(sub)
	go s.refreshReplies(s.ctx)

	return s.Reload(ctx)
}

// Reload refetches the whole log. Inserts delivered meanwhile are kept.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.loadGen++
	gen := s.loadGen
	s.state.Status = StatusLoading
	s.pending = nil
	s.bump()
	s.mu.Unlock()
	s.notify()

	msgs, err := s.deps.Messages.ListMessages(ctx, s.userID)

	s.mu.Lock()
	if s.closed || gen != s.loadGen {
		s.mu.Unlock()
		return err
	}
	if err != nil {
		// keep what was shown before, plus anything that arrived
		s.appendLocked(s.pending)
	} else {
		s.resetLocked(msgs)
	}
	s.pending = nil
	s.state.Status = StatusReady
	s.bump()
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.alert(ctx, "list_messages", "Failed to load messages", err)
	}
	return err
}

// resetLocked replaces the log with fetched plus buffered inserts the
// fetch did not already contain.
func (s *Session) resetLocked(fetched []models.Message) {
	s.seen = make(map[uuid.UUID]struct{}, len(fetched)+len(s.pending))
	s.state.Messages = make([]models.Message, 0, len(fetched)+len(s.pending))
	s.appendLocked(fetched)
	s.appendLocked(s.pending)
}

func (s *Session) appendLocked(msgs []models.Message) {
	for _, m := range msgs {
		if _, dup := s.seen[m.ID]; dup {
			continue
		}
		s.seen[m.ID] = struct{}{}
		s.state.Messages = append(s.state.Messages, m)
	}
}

func (s *Session) pump(sub *realtime.Subscription) {
	for event := range sub.Events() {
		var msg models.Message
		if err := event.Decode(&msg); err != nil {
			logging.ErrorLogger.Error("undecodable message event",
				zap.String("user_id", s.userID),
				zap.Error(err))
			continue
		}
		s.OnRemoteInsert(msg)
	}
}

// OnRemoteInsert appends a delivered message in delivery order. Messages
// already in the log are ignored.
func (s *Session) OnRemoteInsert(msg models.Message) {
	s.mu.Lock()
	if s.closed || msg.UserID != s.userID {
		s.mu.Unlock()
		return
	}
	if s.state.Status == StatusLoading {
		s.pending = append(s.pending, msg)
		s.mu.Unlock()
		return
	}
	if _, dup := s.seen[msg.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[msg.ID] = struct{}{}
	s.state.Messages = append(s.state.Messages, msg)
	s.bump()
	s.mu.Unlock()
	s.notify()
}

// SetDraft replaces the compose box text.
func (s *Session) SetDraft(text string) {
	s.mutate(func(st *SessionState) { st.Draft = text })
}

// Send stores text as an agent message. Blank text is ignored. The message
// shows up in the log when its insert event arrives, not before.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state.Sending {
		s.mu.Unlock()
		return ErrSendInProgress
	}
	s.state.Sending = true
	s.bump()
	s.mu.Unlock()
	s.notify()

	_, err := s.deps.Messages.AppendMessage(ctx, s.userID, text, nil)

	s.mutate(func(st *SessionState) {
		st.Sending = false
		if err != nil && s.deps.Options.DraftPolicy == DraftRestore {
			st.Draft = text
			return
		}
		st.Draft = ""
	})

	if err != nil {
		s.alert(ctx, "send", "Failed to send message", err)
	}
	return err
}

// SendImage uploads f and sends it with the placeholder text. Nothing is
// stored if either step fails.
func (s *Session) SendImage(ctx context.Context, f storage.File) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state.UploadingImage {
		s.mu.Unlock()
		return ErrUploadInProgress
	}
	s.state.UploadingImage = true
	s.bump()
	s.mu.Unlock()
	s.notify()

	defer s.mutate(func(st *SessionState) { st.UploadingImage = false })

	url, err := s.deps.Messages.UploadAttachment(ctx, f)
	if err == nil {
		_, err = s.deps.Messages.AppendMessage(ctx, s.userID, s.deps.placeholder(), &url)
	}
	if err != nil {
		s.alert(ctx, "send_image", "Failed to upload image", err)
	}
	return err
}

// ApplySavedReply copies a reply's body into the compose box, replacing
// any draft. It never sends.
func (s *Session) ApplySavedReply(id uuid.UUID) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	var body string
	found := false
	for _, r := range s.state.SavedReplies {
		if r.ID == id {
			body, found = r.Content, true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return ErrReplyNotFound
	}
	s.state.Draft = body
	s.bump()
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Session) CreateSavedReply(ctx context.Context, title, body string) (*models.SavedReply, error) {
	reply, err := s.deps.Replies.Create(ctx, title, body)
	if err != nil {
		var invalid *ValidationError
		if !errors.As(err, &invalid) {
			s.alert(ctx, "create_saved_reply", "Failed to create saved reply", err)
		}
		return nil, err
	}
	s.refreshReplies(ctx)
	return reply, nil
}

func (s *Session) DeleteSavedReply(ctx context.Context, id uuid.UUID) error {
	if err := s.deps.Replies.Delete(ctx, id); err != nil {
		s.alert(ctx, "delete_saved_reply", "Failed to delete saved reply", err)
		return err
	}
	s.refreshReplies(ctx)
	return nil
}

// refreshReplies reloads the saved reply panel. Failures are logged only.
func (s *Session) refreshReplies(ctx context.Context) {
	s.mu.Lock()
	s.replyGen++
	gen := s.replyGen
	s.mu.Unlock()

	replies, err := s.deps.Replies.List(ctx)
	if err != nil {
		logging.ErrorLogger.Error("failed to fetch saved replies",
			zap.String("user_id", s.userID),
			zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.closed || gen < s.replyApplied {
		s.mu.Unlock()
		return
	}
	s.replyApplied = gen
	s.state.SavedReplies = replies
	s.bump()
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() SessionState {
	st := s.state
	st.Messages = append([]models.Message(nil), s.state.Messages...)
	st.SavedReplies = append([]models.SavedReply(nil), s.state.SavedReplies...)
	return st
}

// Close releases the subscription. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		sub := s.sub
		s.mu.Unlock()

		s.cancel()
		if sub != nil {
			sub.Unsubscribe()
			metrics.SessionsOpen.Dec()
			logging.AppLogger.Info("chat session closed", zap.String("user_id", s.userID))
		}
	})
}

// mutate applies fn unless the session is closed, then notifies.
func (s *Session) mutate(fn func(st *SessionState)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	fn(&s.state)
	s.bump()
	s.mu.Unlock()
	s.notify()
}

// alert surfaces a failure unless the session has been closed meanwhile.
func (s *Session) alert(ctx context.Context, op, message string, err error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		logging.AppLogger.Debug("dropped alert for closed session",
			zap.String("user_id", s.userID),
			zap.String("op", op),
			zap.Error(err))
		return
	}
	raise(ctx, s.deps.alerter(), op, message, err)
}

func (s *Session) bump() {
	s.state.Version++
}

// notify delivers snapshots in version order.
func (s *Session) notify() {
	if s.onChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.onChange(st)
}
