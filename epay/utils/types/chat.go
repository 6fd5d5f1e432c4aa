package types

import "encoding/json"

type SendMessageRequest struct {
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url,omitempty"`
}

type CreateSavedReplyRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Op    string `json:"op,omitempty"`
	Field string `json:"field,omitempty"`
}

type UploadResponse struct {
	URL string `json:"url"`
}

// Console command types sent by the browser.
const (
	CommandSelect      = "select"
	CommandDeselect    = "deselect"
	CommandDraft       = "draft"
	CommandSend        = "send"
	CommandSendImage   = "send_image"
	CommandApplyReply  = "apply_reply"
	CommandCreateReply = "create_reply"
	CommandDeleteReply = "delete_reply"
	CommandRefresh     = "refresh"
)

// Console frame types pushed to the browser.
const (
	FrameRoster  = "roster"
	FrameSession = "session"
	FrameAlert   = "alert"
)

// ConsoleCommand is one inbound websocket message. Only the fields the
// command type needs are set.
type ConsoleCommand struct {
	Type        string `json:"type"`
	UserID      string `json:"user_id,omitempty"`
	Text        string `json:"text,omitempty"`
	ReplyID     string `json:"reply_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Data        string `json:"data,omitempty"` // base64
}

// ConsoleFrame is one outbound websocket message.
type ConsoleFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
