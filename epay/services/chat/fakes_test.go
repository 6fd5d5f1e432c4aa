package chat

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"epay/epay/sources/psql/models"
	"epay/epay/sources/realtime"
	"epay/epay/sources/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// --- message repository ---

type fakeMessageRepo struct {
	mu        sync.Mutex
	msgs      []models.Message
	creates   int
	createErr error
	listErr   error
	recentErr error
	// listHook runs inside ListByUser before the rows are read.
	listHook func()
	block    chan struct{}
}

func (r *fakeMessageRepo) ListByUser(ctx context.Context, userID string) ([]models.Message, error) {
	if r.listHook != nil {
		r.listHook()
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.Message
	for _, m := range r.msgs {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return r.createErr
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *fakeMessageRepo) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recentErr != nil {
		return nil, r.recentErr
	}
	out := append([]models.Message(nil), r.msgs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) seed(userID, text string, at time.Time) models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := models.Message{ID: uuid.New(), UserID: userID, Content: &text, CreatedAt: at}
	r.msgs = append(r.msgs, m)
	return m
}

func (r *fakeMessageRepo) createCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

// --- blob store ---

type fakeBlobs struct {
	mu      sync.Mutex
	err     error
	uploads []string
}

func (b *fakeBlobs) Upload(ctx context.Context, f storage.File, bucket, folder string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	if _, err := io.ReadAll(f.Body); err != nil {
		return "", err
	}
	url := "https://cdn.example.com/images/" + folder + "/" + f.Name
	b.uploads = append(b.uploads, url)
	return url, nil
}

// --- profiles ---

type fakeProfiles struct {
	mu    sync.Mutex
	users map[string]models.ChatUser
	err   error
	calls int
}

func newFakeProfiles(ids ...string) *fakeProfiles {
	p := &fakeProfiles{users: map[string]models.ChatUser{}}
	for _, id := range ids {
		name := strings.ToUpper(id)
		p.users[id] = models.ChatUser{ID: id, FullName: &name}
	}
	return p
}

func (p *fakeProfiles) GetProfilesByIDs(ctx context.Context, ids []string) ([]models.ChatUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	var out []models.ChatUser
	for _, id := range ids {
		if u, ok := p.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// --- saved replies ---

type fakeReplyRepo struct {
	mu      sync.Mutex
	replies []models.SavedReply
	err     error
}

func (r *fakeReplyRepo) CreateSavedReply(ctx context.Context, reply *models.SavedReply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	reply.ID = uuid.New()
	reply.CreatedAt = time.Now()
	r.replies = append([]models.SavedReply{*reply}, r.replies...)
	return nil
}

func (r *fakeReplyRepo) ListSavedReplies(ctx context.Context) ([]models.SavedReply, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]models.SavedReply{}, r.replies...), nil
}

func (r *fakeReplyRepo) DeleteSavedReply(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	for i, reply := range r.replies {
		if reply.ID == id {
			r.replies = append(r.replies[:i], r.replies[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// --- alerts ---

type alertRecorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (a *alertRecorder) Alert(ctx context.Context, alert Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
}

func (a *alertRecorder) ops() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, alert := range a.alerts {
		out = append(out, alert.Op)
	}
	return out
}

// --- state recorder ---

type stateLog struct {
	mu     sync.Mutex
	states []SessionState
}

func (l *stateLog) record(st SessionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, st)
}

func (l *stateLog) all() []SessionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]SessionState(nil), l.states...)
}

// --- harness ---

type harness struct {
	repo     *fakeMessageRepo
	blobs    *fakeBlobs
	profiles *fakeProfiles
	replies  *fakeReplyRepo
	bus      *realtime.MemoryBus
	alerts   *alertRecorder
	store    *MessageStore
	deps     Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:     &fakeMessageRepo{},
		blobs:    &fakeBlobs{},
		profiles: newFakeProfiles(),
		replies:  &fakeReplyRepo{},
		bus:      realtime.NewMemoryBus(0),
		alerts:   &alertRecorder{},
	}
	h.store = NewMessageStore(h.repo, h.blobs, h.bus, StoreOptions{Timeout: time.Second})
	h.deps = Deps{
		Messages:      h.store,
		Replies:       NewSavedReplyStore(h.replies, time.Second),
		Conversations: NewAggregator(h.store, h.profiles, 0, time.Second),
		Bus:           h.bus,
		Alerter:       h.alerts,
	}
	t.Cleanup(func() { h.bus.Close() })
	return h
}

func (h *harness) openSession(t *testing.T, userID string) (*Session, *stateLog) {
	t.Helper()
	log := &stateLog{}
	s := NewSession(h.deps, userID, log.record)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(s.Close)
	return s, log
}

func imageFile(name string) storage.File {
	body := "fake-png-bytes"
	return storage.File{
		Name:        name,
		ContentType: "image/png",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

const eventually = 2 * time.Second
const tick = 5 * time.Millisecond
