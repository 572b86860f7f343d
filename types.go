package leaflog

import (
	"time"
)

// Error codes shared between the RPC surface and its clients.
const (
	ErrCodeMissingParams     = "missing_params"
	ErrCodeNotFound          = "not_found"
	ErrCodeDBError           = "db_error"
	ErrCodeNoOpenID          = "no_openid"
	ErrCodeUploadFailed      = "upload_failed"
	ErrCodeDownloadFailed    = "download_failed"
	ErrCodeTokenFailed       = "token_failed"
	ErrCodeRecognitionFailed = "recognition_failed"
	ErrCodeUnknownAction     = "unknown_action"
	ErrCodeNotImplemented    = "not_implemented"
)

// Response is the RPC envelope. Errors are returned, never thrown:
// clients only ever check OK.
type Response struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func OKResponse(data any) Response {
	return Response{OK: true, Data: data}
}

func ErrResponse(code, message string) Response {
	return Response{OK: false, Error: code, Message: message}
}

// InteractionEvent is published when someone likes or comments on a
// shared plant, and streamed over the realtime socket.
type InteractionEvent struct {
	Type          string    `json:"type"` // like, comment
	OwnerOpenID   string    `json:"ownerOpenId"`
	PlantID       int64     `json:"plantId"`
	ImageKey      string    `json:"imageKey,omitempty"`
	ActorOpenID   string    `json:"actorOpenId"`
	ActorNickname string    `json:"actorNickname,omitempty"`
	Time          time.Time `json:"time"`
}
