// Command-line front end for the support inbox
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"epay/epay/app"
	"epay/epay/config"
	"epay/epay/services/chat"
	"epay/epay/sources/psql/models"
	"epay/epay/sources/storage"
	"epay/epay/utils/color"
	"epay/epay/utils/logging"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	logging.InitLogger(cfg.LogDir)
	defer logging.Sync()

	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	a, err := app.New(startCtx, cfg, app.Options{})
	cancel()
	if err != nil {
		fmt.Println(color.ColorError(err.Error()))
		logging.ErrorLogger.Error("startup error", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	alerter := chat.AlerterFunc(func(_ context.Context, alert chat.Alert) {
		fmt.Println(color.ColorError("! " + alert.Message))
	})

	switch {
	case args[0] == "inbox":
		err = runInbox(ctx, a.Deps(alerter))
	case args[0] == "chat" && len(args) == 2:
		err = runChat(ctx, a.Deps(alerter), args[1])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Println(color.ColorError(err.Error()))
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("epay CLI usage:")
	fmt.Println("  epay inbox            # Watch the conversation list")
	fmt.Println("  epay chat <user_id>   # Open a conversation")
}

func runInbox(ctx context.Context, deps chat.Deps) error {
	var last uint64
	var mu sync.Mutex
	roster := chat.NewRoster(deps, nil, func(st chat.RosterState) {
		mu.Lock()
		defer mu.Unlock()
		if st.Loading || st.Version <= last {
			return
		}
		last = st.Version
		printRoster(st.Entries)
	})
	defer roster.Close()

	if err := roster.Start(ctx); err != nil {
		return err
	}
	fmt.Println(color.ColorInfo("Watching the inbox. Press Ctrl+C to quit."))
	<-ctx.Done()
	fmt.Println("👋 Goodbye!")
	return nil
}

func printRoster(users []models.ChatUser) {
	fmt.Println()
	fmt.Println(color.ColorPrompt("Conversations"))
	if len(users) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, u := range users {
		when := "New"
		if u.LastMessageAt != nil {
			when = u.LastMessageAt.Local().Format("Jan 2 15:04")
		}
		fmt.Printf("  %-32s %-14s %s\n", u.DisplayName(), when, u.ID)
	}
}

// transcript prints messages once, in arrival order.
type transcript struct {
	mu      sync.Mutex
	printed int
	draft   string
}

func (t *transcript) update(st chat.SessionState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st.Status != chat.StatusReady {
		return
	}
	if t.printed > len(st.Messages) {
		t.printed = 0
	}
	for _, m := range st.Messages[t.printed:] {
		printMessage(m)
	}
	t.printed = len(st.Messages)
	if st.Draft != t.draft && st.Draft != "" {
		fmt.Println(color.ColorInfo("draft: " + st.Draft))
	}
	t.draft = st.Draft
}

func printMessage(m models.Message) {
	ts := m.CreatedAt.Local().Format("15:04")
	line := m.Text()
	if m.ImageURL != nil {
		line = strings.TrimSpace(line + " " + *m.ImageURL)
	}
	if m.IsAdmin {
		fmt.Printf("%s %s\n", ts, color.ColorAgentResponse("agent: "+line))
		return
	}
	fmt.Printf("%s %s\n", ts, "user:  "+line)
}

func runChat(ctx context.Context, deps chat.Deps, userID string) error {
	t := &transcript{}
	roster := chat.NewRoster(deps, func(id string) *chat.Session {
		return chat.NewSession(deps, id, t.update)
	}, nil)
	defer roster.Close()

	session, err := roster.Select(ctx, userID)
	if err != nil && session == nil {
		return err
	}

	fmt.Println(color.ColorInfo("Chatting with " + userID))
	fmt.Println("Type a message and press enter. Commands:")
	fmt.Println("  /replies               list saved replies")
	fmt.Println("  /reply <n>             put saved reply n in the draft")
	fmt.Println("  /send                  send the draft")
	fmt.Println("  /save <title> | <body> create a saved reply")
	fmt.Println("  /delete <n>            delete saved reply n")
	fmt.Println("  /image <path>          send an image")
	fmt.Println("  exit                   quit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print(color.ColorPrompt("epay> "))
		var line string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok = <-lines:
			if !ok {
				return nil
			}
		}
		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			fmt.Println("👋 Goodbye!")
			return nil
		}
		if err := handleLine(ctx, session, line); err != nil && !alerted(err) {
			fmt.Println(color.ColorWarning(err.Error()))
		}
	}
}

func handleLine(ctx context.Context, s *chat.Session, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/replies":
		replies := s.Snapshot().SavedReplies
		if len(replies) == 0 {
			fmt.Println("  (no saved replies)")
		}
		for i, r := range replies {
			fmt.Printf("  %d. %s: %s\n", i+1, r.Title, r.Content)
		}
		return nil
	case "/reply", "/delete":
		reply, err := pickReply(s, rest)
		if err != nil {
			return err
		}
		if cmd == "/reply" {
			return s.ApplySavedReply(reply.ID)
		}
		return s.DeleteSavedReply(ctx, reply.ID)
	case "/send":
		return s.Send(ctx, s.Snapshot().Draft)
	case "/save":
		title, body, found := strings.Cut(rest, "|")
		if !found {
			return fmt.Errorf("usage: /save <title> | <body>")
		}
		_, err := s.CreateSavedReply(ctx, strings.TrimSpace(title), strings.TrimSpace(body))
		return err
	case "/image":
		f, closeFn, err := openImage(rest)
		if err != nil {
			return err
		}
		defer closeFn()
		return s.SendImage(ctx, f)
	default:
		if strings.HasPrefix(line, "/") {
			return errUnknownCommand
		}
		return s.Send(ctx, line)
	}
}

var errUnknownCommand = errors.New("unknown command; use /replies, /reply <n>, /send, /save <title> | <body>, /delete <n> or /image <path>")

// alerted reports whether the chat core already printed err.
func alerted(err error) bool {
	var storeErr *chat.StoreError
	var uploadErr *chat.UploadError
	return errors.As(err, &storeErr) || errors.As(err, &uploadErr)
}

func pickReply(s *chat.Session, arg string) (models.SavedReply, error) {
	replies := s.Snapshot().SavedReplies
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(replies) {
		return models.SavedReply{}, fmt.Errorf("pick a reply between 1 and %d", len(replies))
	}
	return replies[n-1], nil
}

func openImage(path string) (storage.File, func(), error) {
	if path == "" {
		return storage.File{}, nil, fmt.Errorf("usage: /image <path>")
	}
	fh, err := os.Open(path)
	if err != nil {
		return storage.File{}, nil, err
	}
	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return storage.File{}, nil, err
	}
	return storage.File{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Size:        info.Size(),
		Body:        fh,
	}, func() { fh.Close() }, nil
}
