package chat

import (
	"context"
	"testing"
	"time"

	"epay/epay/sources/psql/models"
	"epay/epay/sources/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_OpenLoadsAscending(t *testing.T) {
	h := newHarness(t)
	base := time.Now().Add(-time.Hour)
	h.repo.seed("u1", "t10", base.Add(10*time.Second))
	h.repo.seed("u1", "t5", base.Add(5*time.Second))
	h.repo.seed("u2", "elsewhere", base)

	s, _ := h.openSession(t, "u1")

	st := s.Snapshot()
	assert.Equal(t, StatusReady, st.Status)
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "t5", st.Messages[0].Text())
	assert.Equal(t, "t10", st.Messages[1].Text())
}

func TestSession_SendBlankIsNoop(t *testing.T) {
	h := newHarness(t)
	s, log := h.openSession(t, "u1")

	for _, text := range []string{"", "   ", "\n\t "} {
		require.NoError(t, s.Send(context.Background(), text))
	}

	assert.Equal(t, 0, h.repo.createCount())
	for _, st := range log.all() {
		assert.False(t, st.Sending)
	}
}

func TestSession_SendAppearsOnceViaBus(t *testing.T) {
	h := newHarness(t)
	s, log := h.openSession(t, "u1")
	s.SetDraft("  hello there ")

	require.NoError(t, s.Send(context.Background(), s.Snapshot().Draft))

	require.Eventually(t, func() bool { return len(s.Snapshot().Messages) == 1 }, eventually, tick)
	st := s.Snapshot()
	assert.Equal(t, "hello there", st.Messages[0].Text())
	assert.True(t, st.Messages[0].IsAdmin)
	assert.Equal(t, "", st.Draft)
	assert.False(t, st.Sending)

	sawSending := false
	for _, snap := range log.all() {
		if snap.Sending {
			sawSending = true
		}
	}
	assert.True(t, sawSending)

	// a redelivery of the same row is ignored
	s.OnRemoteInsert(st.Messages[0])
	assert.Len(t, s.Snapshot().Messages, 1)
}

func TestSession_SendFailureDraftPolicy(t *testing.T) {
	tests := []struct {
		name      string
		policy    DraftPolicy
		wantDraft string
	}{
		{"discard", DraftDiscard, ""},
		{"restore", DraftRestore, "will fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.repo.createErr = errBoom
			h.deps.Options.DraftPolicy = tt.policy
			s, _ := h.openSession(t, "u1")
			s.SetDraft("will fail")

			err := s.Send(context.Background(), "will fail")

			var storeErr *StoreError
			require.ErrorAs(t, err, &storeErr)
			st := s.Snapshot()
			assert.Equal(t, tt.wantDraft, st.Draft)
			assert.False(t, st.Sending)
			assert.Empty(t, st.Messages)
			assert.Equal(t, []string{"send"}, h.alerts.ops())
		})
	}
}

func TestSession_SendRejectsConcurrentSend(t *testing.T) {
	h := newHarness(t)
	s, _ := h.openSession(t, "u1")

	s.mu.Lock()
	s.state.Sending = true
	s.mu.Unlock()

	err := s.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrSendInProgress)
	assert.Equal(t, 0, h.repo.createCount())
}

func TestSession_SendImageSuccess(t *testing.T) {
	h := newHarness(t)
	s, log := h.openSession(t, "u1")

	require.NoError(t, s.SendImage(context.Background(), imageFile("pic.png")))

	require.Eventually(t, func() bool { return len(s.Snapshot().Messages) == 1 }, eventually, tick)
	msg := s.Snapshot().Messages[0]
	assert.Equal(t, DefaultImagePlaceholder, msg.Text())
	require.NotNil(t, msg.ImageURL)
	assert.Equal(t, "https://cdn.example.com/images/chat/pic.png", *msg.ImageURL)
	assert.Equal(t, 1, h.repo.count())
	assert.False(t, s.Snapshot().UploadingImage)

	sawUploading := false
	for _, snap := range log.all() {
		sawUploading = sawUploading || snap.UploadingImage
	}
	assert.True(t, sawUploading)
}

func TestSession_SendImageFailure(t *testing.T) {
	h := newHarness(t)
	h.blobs.err = errBoom
	s, _ := h.openSession(t, "u1")

	err := s.SendImage(context.Background(), imageFile("pic.png"))

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, 0, h.repo.count())
	assert.Empty(t, s.Snapshot().Messages)
	assert.False(t, s.Snapshot().UploadingImage)
	assert.Equal(t, []string{"send_image"}, h.alerts.ops())
}

func TestSession_EventsAfterCloseAreIgnored(t *testing.T) {
	h := newHarness(t)
	s, log := h.openSession(t, "u1")
	s.SetDraft("keep me")

	s.Close()
	s.Close()
	before := s.Snapshot()
	notified := len(log.all())

	late := models.Message{ID: uuid.New(), UserID: "u1", CreatedAt: time.Now()}
	s.OnRemoteInsert(late)
	s.SetDraft("changed")
	ev, err := realtime.NewInsertEvent(realtime.TableMessages, late)
	require.NoError(t, err)
	require.NoError(t, h.bus.Publish(context.Background(), ev))

	assert.Equal(t, before, s.Snapshot())
	assert.Len(t, log.all(), notified)
	assert.ErrorIs(t, s.Send(context.Background(), "x"), ErrSessionClosed)
}

func TestSession_InsertDuringLoadIsKeptOnce(t *testing.T) {
	h := newHarness(t)
	h.repo.seed("u1", "old", time.Now().Add(-time.Minute))

	// not in the store, only announced while the fetch runs
	ghost := models.Message{ID: uuid.New(), UserID: "u1", Content: strPtr("ghost"), CreatedAt: time.Now()}

	h.repo.listHook = func() {
		h.repo.listHook = nil
		// stored and announced: arrives both in the fetch and on the bus
		_, err := h.store.AppendMessage(context.Background(), "u1", "during load", nil)
		require.NoError(t, err)
		ev, err := realtime.NewInsertEvent(realtime.TableMessages, ghost)
		require.NoError(t, err)
		require.NoError(t, h.bus.Publish(context.Background(), ev))
	}

	s, _ := h.openSession(t, "u1")

	require.Eventually(t, func() bool { return len(s.Snapshot().Messages) == 3 }, eventually, tick)
	time.Sleep(20 * time.Millisecond)

	var texts []string
	for _, m := range s.Snapshot().Messages {
		texts = append(texts, m.Text())
	}
	assert.ElementsMatch(t, []string{"old", "during load", "ghost"}, texts)
	assert.Equal(t, "old", texts[0])
}

func TestSession_IgnoresOtherUsers(t *testing.T) {
	h := newHarness(t)
	s, _ := h.openSession(t, "u1")

	_, err := h.store.AppendMessage(context.Background(), "u2", "not yours", nil)
	require.NoError(t, err)
	_, err = h.store.AppendMessage(context.Background(), "u1", "yours", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(s.Snapshot().Messages) == 1 }, eventually, tick)
	assert.Equal(t, "yours", s.Snapshot().Messages[0].Text())
}

func TestSession_ReloadFailureKeepsLog(t *testing.T) {
	h := newHarness(t)
	h.repo.seed("u1", "first", time.Now())
	s, _ := h.openSession(t, "u1")
	require.Len(t, s.Snapshot().Messages, 1)

	h.repo.mu.Lock()
	h.repo.listErr = errBoom
	h.repo.mu.Unlock()

	err := s.Reload(context.Background())
	require.Error(t, err)
	st := s.Snapshot()
	assert.Equal(t, StatusReady, st.Status)
	assert.Len(t, st.Messages, 1)
	assert.Contains(t, h.alerts.ops(), "list_messages")
}

func TestSession_SavedReplies(t *testing.T) {
	h := newHarness(t)
	s, _ := h.openSession(t, "u1")
	ctx := context.Background()

	reply, err := s.CreateSavedReply(ctx, "Greeting", "Hello! How can I help?")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(s.Snapshot().SavedReplies) == 1 }, eventually, tick)

	s.SetDraft("something else")
	require.NoError(t, s.ApplySavedReply(reply.ID))
	assert.Equal(t, "Hello! How can I help?", s.Snapshot().Draft)
	assert.Equal(t, 0, h.repo.createCount(), "applying a reply never sends")

	assert.ErrorIs(t, s.ApplySavedReply(uuid.New()), ErrReplyNotFound)

	require.NoError(t, s.DeleteSavedReply(ctx, reply.ID))
	require.NoError(t, s.DeleteSavedReply(ctx, reply.ID))
	assert.Empty(t, s.Snapshot().SavedReplies)

	_, err = s.CreateSavedReply(ctx, " ", "body")
	var invalid *ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Empty(t, h.alerts.ops())
}

func TestSession_VersionsIncrease(t *testing.T) {
	h := newHarness(t)
	s, log := h.openSession(t, "u1")
	s.SetDraft("a")
	s.SetDraft("b")

	states := log.all()
	require.NotEmpty(t, states)
	for i := 1; i < len(states); i++ {
		assert.GreaterOrEqual(t, states[i].Version, states[i-1].Version)
	}
	assert.Equal(t, "b", s.Snapshot().Draft)
}

func strPtr(s string) *string { return &s }
