package capability

import (
	"context"
)

// DownloadRequest asks the channel's media service for the binary behind a
// provider message. A public link is preferred over an inline payload when
// the provider supports it.
type DownloadRequest struct {
	MessageID         string `json:"messageId"`
	InboxID           string `json:"inboxId"`
	WantTranscription bool   `json:"wantTranscription"`
	WantPublicLink    bool   `json:"wantPublicLink"`
	Language          string `json:"language,omitempty"`
}

type DownloadResult struct {
	FileURL       string `json:"fileUrl,omitempty"`
	Base64        string `json:"base64,omitempty"`
	Transcription string `json:"transcription,omitempty"`
	MimeType      string `json:"mimeType,omitempty"`
}

type MediaDownloader interface {
	Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error)
}

// Transcriber runs one speech-to-text pass over a local audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, filePath, language, quality string) (string, error)
}

type GenerateRequest struct {
	Text           string `json:"text"`
	TenantID       string `json:"tenantId"`
	ConversationID string `json:"conversationId"`
}

type GenerateResult struct {
	Success   bool   `json:"success"`
	ReplyText string `json:"replyText"`
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

type AnalyzeRequest struct {
	FilePath string `json:"filePath"`
	Kind     string `json:"kind"` // "image" or "document"
	TenantID string `json:"tenantId"`
}

type AnalyzeResult struct {
	Success      bool   `json:"success"`
	SummaryText  string `json:"summaryText"`
	ActionSignal bool   `json:"actionSignal"`
}

type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error)
}

// SentimentClassifier maps free text to a 1-5 satisfaction rating.
type SentimentClassifier interface {
	Classify(ctx context.Context, text string) (int, error)
}

type Sender interface {
	SendText(ctx context.Context, tenantID, inboxID, recipient, text string) bool
	SendMedia(ctx context.Context, tenantID, inboxID, recipient, fileURL, caption string) bool
}
