package chat

import (
	"context"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"epay/epay/sources/psql/models"
	"epay/epay/utils/logging"

	"golang.org/x/sync/singleflight"
)

const DefaultRosterWindow = 100

type RecentMessageSource interface {
	RecentMessages(ctx context.Context, limit int) ([]models.Message, error)
}

type ProfileDirectory interface {
	GetProfilesByIDs(ctx context.Context, ids []string) ([]models.ChatUser, error)
}

// Aggregator derives the roster from the newest Window messages. A user
// whose latest message is older than the window does not appear.
type Aggregator struct {
	messages RecentMessageSource
	profiles ProfileDirectory
	window   int
	timeout  time.Duration
	group    singleflight.Group
	// gen advances on every observed insert; builds are shared per gen.
	gen atomic.Uint64
}

func NewAggregator(messages RecentMessageSource, profiles ProfileDirectory, window int, timeout time.Duration) *Aggregator {
	if window <= 0 {
		window = DefaultRosterWindow
	}
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return &Aggregator{messages: messages, profiles: profiles, window: window, timeout: timeout}
}

// Invalidate marks builds already in flight as stale, so callers reacting
// to a newer insert do not join them.
func (a *Aggregator) Invalidate() {
	a.gen.Add(1)
}

// Conversations returns the roster, most recently active first. Concurrent
// callers since the last Invalidate share one round trip; each gets its
// own copy of the result.
func (a *Aggregator) Conversations(ctx context.Context) ([]models.ChatUser, error) {
	key := "roster:" + strconv.FormatUint(a.gen.Load(), 10)
	ch := a.group.DoChan(key, func() (interface{}, error) {
		// detached so one caller's cancellation does not fail the others
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		return a.build(callCtx)
	})

	select {
	case <-ctx.Done():
		return nil, storeErr("conversations", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]models.ChatUser)
		out := make([]models.ChatUser, len(shared))
		copy(out, shared)
		return out, nil
	}
}

func (a *Aggregator) build(ctx context.Context) ([]models.ChatUser, error) {
	defer logging.LogDuration(ctx, "chat_aggregator_build")()

	recent, err := a.messages.RecentMessages(ctx, a.window)
	if err != nil {
		return nil, storeErr("conversations", err)
	}

	// the window is newest first, so the first sighting is the latest
	ids := make([]string, 0, len(recent))
	lastAt := make(map[string]time.Time, len(recent))
	for _, m := range recent {
		if _, ok := lastAt[m.UserID]; ok {
			continue
		}
		lastAt[m.UserID] = m.CreatedAt
		ids = append(ids, m.UserID)
	}
	if len(ids) == 0 {
		return []models.ChatUser{}, nil
	}

	users, err := a.profiles.GetProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr("get_profiles", err)
	}

	out := make([]models.ChatUser, 0, len(users))
	for _, u := range users {
		if ts, ok := lastAt[u.ID]; ok {
			t := ts
			u.LastMessageAt = &t
		}
		out = append(out, u)
	}
	SortByActivity(out)
	return out, nil
}

// SortByActivity orders newest activity first; users without a timestamp
// go last.
func SortByActivity(users []models.ChatUser) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i].LastMessageAt, users[j].LastMessageAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
