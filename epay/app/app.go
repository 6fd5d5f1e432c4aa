// Package app builds the process-wide handles shared by the server and the
// CLI: database, blob store, event bus and the chat stores over them.
package app

import (
	"context"
	"fmt"

	"epay/epay/config"
	"epay/epay/services/chat"
	"epay/epay/sources/psql"
	"epay/epay/sources/psql/dao"
	"epay/epay/sources/realtime"
	"epay/epay/sources/storage"
	"epay/epay/utils/logging"

	"go.uber.org/zap"
)

type App struct {
	Config   config.Config
	DB       *psql.Database
	Blobs    *storage.MinIOClient
	Bus      realtime.Bus
	Profiles *dao.ProfileDAO

	Messages   *chat.MessageStore
	Replies    *chat.SavedReplyStore
	Aggregator *chat.Aggregator
}

// Options control how strict startup is.
type Options struct {
	// RequireBlobs fails startup when the blob store is unreachable. When
	// false the app runs without image uploads.
	RequireBlobs bool
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := psql.NewDatabase(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection error: %w", err)
	}

	var blobs *storage.MinIOClient
	blobs, err = storage.NewMinIOClient(ctx, cfg)
	if err != nil {
		if opts.RequireBlobs {
			db.Close()
			return nil, fmt.Errorf("minio connection error: %w", err)
		}
		logging.AppLogger.Warn("running without blob store", zap.Error(err))
		blobs = nil
	}

	bus, err := realtime.NewBus(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("event bus error: %w", err)
	}

	messageDAO := dao.NewMessageDAO(db.DB)
	profileDAO := dao.NewProfileDAO(db.DB)
	replyDAO := dao.NewSavedReplyDAO(db.DB)

	var blobStore chat.BlobStore
	if blobs != nil {
		blobStore = blobs
	}
	messages := chat.NewMessageStore(messageDAO, blobStore, bus, chat.StoreOptions{
		Timeout:     cfg.Chat.OpTimeout,
		ImageBucket: cfg.MinIOBucket,
		ImageFolder: cfg.Chat.ImageFolder,
	})

	return &App{
		Config:     cfg,
		DB:         db,
		Blobs:      blobs,
		Bus:        bus,
		Profiles:   profileDAO,
		Messages:   messages,
		Replies:    chat.NewSavedReplyStore(replyDAO, cfg.Chat.OpTimeout),
		Aggregator: chat.NewAggregator(messages, profileDAO, cfg.Chat.RosterWindow, cfg.Chat.OpTimeout),
	}, nil
}

// Deps returns the controller dependencies with the given alerter.
func (a *App) Deps(alerter chat.Alerter) chat.Deps {
	policy := chat.DraftDiscard
	if a.Config.Chat.RestoreDraftOnFailure {
		policy = chat.DraftRestore
	}
	return chat.Deps{
		Messages:      a.Messages,
		Replies:       a.Replies,
		Conversations: a.Aggregator,
		Bus:           a.Bus,
		Alerter:       alerter,
		Options: chat.Options{
			DraftPolicy:      policy,
			ImagePlaceholder: a.Config.Chat.ImagePlaceholder,
		},
	}
}

func (a *App) Close() {
	if err := a.Bus.Close(); err != nil {
		logging.ErrorLogger.Error("event bus close error", zap.Error(err))
	}
	a.DB.Close()
}
