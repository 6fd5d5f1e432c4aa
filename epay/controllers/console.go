package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"epay/epay/services/chat"
	"epay/epay/sources/storage"
	"epay/epay/utils/logging"
	"epay/epay/utils/types"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ConsoleController binds one browser connection to one roster and its
// selected session.
type ConsoleController struct {
	deps          chat.Deps
	maxImageBytes int64
}

func NewConsoleController(deps chat.Deps, maxImageBytes int64) *ConsoleController {
	if maxImageBytes <= 0 {
		maxImageBytes = 10 << 20
	}
	return &ConsoleController{deps: deps, maxImageBytes: maxImageBytes}
}

// frameQueue keeps only the newest roster and session snapshot, so a slow
// browser sees the latest state instead of a backlog. Alerts are queued.
type frameQueue struct {
	mu      sync.Mutex
	roster  json.RawMessage
	session json.RawMessage
	alerts  []json.RawMessage
	ready   chan struct{}
}

func newFrameQueue() *frameQueue {
	return &frameQueue{ready: make(chan struct{}, 1)}
}

func (q *frameQueue) put(kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.ErrorLogger.Error("failed to encode console frame", zap.String("type", kind), zap.Error(err))
		return
	}
	q.mu.Lock()
	switch kind {
	case types.FrameRoster:
		q.roster = data
	case types.FrameSession:
		q.session = data
	default:
		q.alerts = append(q.alerts, data)
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *frameQueue) drain() []types.ConsoleFrame {
	q.mu.Lock()
	defer q.mu.Unlock()

	var frames []types.ConsoleFrame
	for _, a := range q.alerts {
		frames = append(frames, types.ConsoleFrame{Type: types.FrameAlert, Payload: a})
	}
	if q.roster != nil {
		frames = append(frames, types.ConsoleFrame{Type: types.FrameRoster, Payload: q.roster})
	}
	if q.session != nil {
		frames = append(frames, types.ConsoleFrame{Type: types.FrameSession, Payload: q.session})
	}
	q.alerts, q.roster, q.session = nil, nil, nil
	return frames
}

type consoleConn struct {
	ctrl   *ConsoleController
	queue  *frameQueue
	roster *chat.Roster
	tasks  *errgroup.Group
	ctx    context.Context
}

// Serve runs the console protocol until the browser disconnects or ctx ends.
func (c *ConsoleController) Serve(ctx context.Context, conn *websocket.Conn, agentID string) {
	defer conn.Close(websocket.StatusInternalError, "internal error")
	// base64 inflates uploads by a third
	conn.SetReadLimit(c.maxImageBytes*4/3 + 64<<10)

	queue := newFrameQueue()
	deps := c.deps
	deps.Alerter = chat.AlerterFunc(func(_ context.Context, a chat.Alert) {
		queue.put(types.FrameAlert, a)
	})

	newSession := func(userID string) *chat.Session {
		return chat.NewSession(deps, userID, func(st chat.SessionState) {
			queue.put(types.FrameSession, st)
		})
	}
	roster := chat.NewRoster(deps, newSession, func(st chat.RosterState) {
		queue.put(types.FrameRoster, st)
	})
	defer roster.Close()

	g, gctx := errgroup.WithContext(ctx)
	cc := &consoleConn{ctrl: c, queue: queue, roster: roster, tasks: g, ctx: gctx}

	logging.AppLogger.Info("console connected", zap.String("agent_id", agentID))

	g.Go(func() error { return cc.writeLoop(conn) })
	g.Go(func() error { return cc.readLoop(conn) })
	g.Go(func() error {
		if err := roster.Start(gctx); err != nil && !errors.Is(err, chat.ErrRosterClosed) {
			logging.AppLogger.Warn("console roster start failed", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	status := websocket.CloseStatus(err)
	if err != nil && status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, context.Canceled) {
		logging.ErrorLogger.Error("console connection ended", zap.String("agent_id", agentID), zap.Error(err))
	}
	logging.AppLogger.Info("console disconnected", zap.String("agent_id", agentID))
	conn.Close(websocket.StatusNormalClosure, "")
}

func (cc *consoleConn) writeLoop(conn *websocket.Conn) error {
	for {
		select {
		case <-cc.ctx.Done():
			return cc.ctx.Err()
		case <-cc.queue.ready:
			for _, frame := range cc.queue.drain() {
				data, err := json.Marshal(frame)
				if err != nil {
					return err
				}
				if err := conn.Write(cc.ctx, websocket.MessageText, data); err != nil {
					return err
				}
			}
		}
	}
}

func (cc *consoleConn) readLoop(conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(cc.ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			cc.reject("unsupported", errors.New("unsupported data"))
			continue
		}
		var cmd types.ConsoleCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			cc.reject("invalid", errors.New("invalid json"))
			continue
		}
		cc.dispatch(cmd)
	}
}

// dispatch runs quick state changes inline and anything that talks to a
// store in the background, so drafts keep flowing while a send is running.
func (cc *consoleConn) dispatch(cmd types.ConsoleCommand) {
	switch cmd.Type {
	case types.CommandDraft:
		if s := cc.roster.Session(); s != nil {
			s.SetDraft(cmd.Text)
		}
	case types.CommandDeselect:
		cc.roster.Deselect()
		cc.queue.put(types.FrameSession, nil)
	case types.CommandApplyReply:
		cc.withSession(cmd.Type, func(s *chat.Session) error {
			id, err := uuid.Parse(cmd.ReplyID)
			if err != nil {
				return &chat.ValidationError{Field: "reply_id", Reason: "invalid uuid"}
			}
			return s.ApplySavedReply(id)
		})
	default:
		cc.tasks.Go(func() error {
			cc.run(cmd)
			return nil
		})
	}
}

func (cc *consoleConn) run(cmd types.ConsoleCommand) {
	ctx := cc.ctx
	switch cmd.Type {
	case types.CommandSelect:
		_, err := cc.roster.Select(ctx, cmd.UserID)
		if err != nil && !errors.Is(err, chat.ErrSessionClosed) {
			cc.reject(cmd.Type, err)
		}
	case types.CommandRefresh:
		err := cc.roster.Refresh(ctx)
		if s := cc.roster.Session(); s != nil && err == nil {
			err = s.Reload(ctx)
		}
		cc.reject(cmd.Type, err)
	case types.CommandSend:
		cc.withSession(cmd.Type, func(s *chat.Session) error {
			return s.Send(ctx, cmd.Text)
		})
	case types.CommandSendImage:
		cc.withSession(cmd.Type, func(s *chat.Session) error {
			f, err := cc.decodeImage(cmd)
			if err != nil {
				return err
			}
			return s.SendImage(ctx, f)
		})
	case types.CommandCreateReply:
		cc.withSession(cmd.Type, func(s *chat.Session) error {
			_, err := s.CreateSavedReply(ctx, cmd.Title, cmd.Content)
			return err
		})
	case types.CommandDeleteReply:
		cc.withSession(cmd.Type, func(s *chat.Session) error {
			id, err := uuid.Parse(cmd.ReplyID)
			if err != nil {
				return &chat.ValidationError{Field: "reply_id", Reason: "invalid uuid"}
			}
			return s.DeleteSavedReply(ctx, id)
		})
	default:
		cc.reject(cmd.Type, fmt.Errorf("unknown command %q", cmd.Type))
	}
}

func (cc *consoleConn) withSession(op string, fn func(s *chat.Session) error) {
	s := cc.roster.Session()
	if s == nil {
		cc.reject(op, errors.New("no conversation selected"))
		return
	}
	cc.reject(op, fn(s))
}

// reject pushes an alert for err unless the chat core already raised one.
func (cc *consoleConn) reject(op string, err error) {
	if err == nil || cc.ctx.Err() != nil {
		return
	}
	var storeErr *chat.StoreError
	var uploadErr *chat.UploadError
	if errors.As(err, &storeErr) || errors.As(err, &uploadErr) {
		return
	}
	cc.queue.put(types.FrameAlert, chat.Alert{Op: op, Message: err.Error()})
}

func (cc *consoleConn) decodeImage(cmd types.ConsoleCommand) (storage.File, error) {
	raw, err := base64.StdEncoding.DecodeString(cmd.Data)
	if err != nil || len(raw) == 0 {
		return storage.File{}, &chat.ValidationError{Field: "data", Reason: "invalid base64 image"}
	}
	if int64(len(raw)) > cc.ctrl.maxImageBytes {
		return storage.File{}, &chat.ValidationError{Field: "data", Reason: "image too large"}
	}
	name := cmd.FileName
	if name == "" {
		name = "image.png"
	}
	return storage.File{
		Name:        name,
		ContentType: cmd.ContentType,
		Size:        int64(len(raw)),
		Body:        bytes.NewReader(raw),
	}, nil
}
