package main

import (
	"context"
	"testing"

	"epay/epay/services/chat"
	"epay/epay/sources/psql/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMessages struct {
	chat.MessageService
	sent []string
}

func (m *recordingMessages) AppendMessage(ctx context.Context, userID, content string, imageRef *string) (*models.Message, error) {
	m.sent = append(m.sent, content)
	return &models.Message{UserID: userID, Content: &content}, nil
}

func TestHandleLine_RejectsUnknownSlashCommand(t *testing.T) {
	msgs := &recordingMessages{}
	s := chat.NewSession(chat.Deps{Messages: msgs}, "u1", nil)
	t.Cleanup(s.Close)

	err := handleLine(context.Background(), s, "/replys")
	require.ErrorIs(t, err, errUnknownCommand)
	assert.Empty(t, msgs.sent)
}
