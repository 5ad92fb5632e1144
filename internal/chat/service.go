package chat

import (
	"context"
	"iter"
)

// AssetState is the processing state of a file held by the remote service.
type AssetState string

const (
	AssetPending AssetState = "PENDING"
	AssetActive  AssetState = "ACTIVE"
	AssetFailed  AssetState = "FAILED"
	AssetUnknown AssetState = "UNKNOWN"
)

// Asset is a file uploaded to the remote service. Name is the opaque handle
// used for status queries and deletion; URI is what generation requests
// reference.
type Asset struct {
	Name      string
	URI       string
	MIMEType  string
	LocalPath string
	SizeBytes int64
	State     AssetState
}

// Part is one piece of a generation request: either text or a reference to
// an uploaded file.
type Part struct {
	Text     string
	FileURI  string
	MIMEType string
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// AssetPart returns a part referencing an uploaded asset.
func AssetPart(a *Asset) Part {
	return Part{FileURI: a.URI, MIMEType: a.MIMEType}
}

// GenerationConfig holds the sampling parameters of a request. A zero TopK
// means the parameter is not sent.
type GenerationConfig struct {
	Temperature     float32
	TopP            float32
	TopK            int
	MaxOutputTokens int32
	// StopSequences is sent only when non-nil.
	StopSequences []string
}

// Service is the remote generative-AI API. Implementations perform a single
// call per method; retries and polling live in Client and Tracker.
type Service interface {
	ListModels(ctx context.Context) ([]string, error)
	UploadFile(ctx context.Context, path, mimeType string) (*Asset, error)
	GetFile(ctx context.Context, name string) (*Asset, error)
	DeleteFile(ctx context.Context, name string) error
	GenerateContent(ctx context.Context, model string, parts []Part, cfg GenerationConfig) (string, error)
	// GenerateContentStream returns a lazy sequence of text fragments. The
	// request is sent when iteration starts.
	GenerateContentStream(ctx context.Context, model string, parts []Part, cfg GenerationConfig) iter.Seq2[string, error]
	StartChat(ctx context.Context, model string, cfg GenerationConfig) (Session, error)
}

// Session is a multi-turn conversation opened by Service.StartChat.
type Session interface {
	SendMessage(ctx context.Context, parts []Part) (string, error)
	SendMessageStream(ctx context.Context, parts []Part) iter.Seq2[string, error]
}
