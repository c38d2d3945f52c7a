package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/config"
)

// jsonClient posts a JSON body and decodes a JSON response with a hard
// per-call timeout. All capability services speak this shape.
type jsonClient struct {
	baseURL string
	client  *http.Client
}

func newJSONClient(baseURL string, timeout time.Duration) *jsonClient {
	return &jsonClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *jsonClient) post(ctx context.Context, path string, in, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("capability endpoint not configured")
	}

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("call %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// HTTPMediaDownloader talks to the channel media service.
type HTTPMediaDownloader struct {
	client *jsonClient
}

func NewHTTPMediaDownloader(baseURL string) *HTTPMediaDownloader {
	return &HTTPMediaDownloader{client: newJSONClient(baseURL, config.MediaDownloadTimeout)}
}

func (d *HTTPMediaDownloader) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	var result DownloadResult
	if err := d.client.post(ctx, "/media/download", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type transcribeRequest struct {
	FilePath string `json:"filePath"`
	Language string `json:"language,omitempty"`
	Quality  string `json:"quality,omitempty"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// HTTPTranscriber runs one transcription pass against the media service.
type HTTPTranscriber struct {
	client *jsonClient
}

func NewHTTPTranscriber(baseURL string) *HTTPTranscriber {
	return &HTTPTranscriber{client: newJSONClient(baseURL, config.TranscriptionTimeout)}
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, filePath, language, quality string) (string, error) {
	var resp transcribeResponse
	err := t.client.post(ctx, "/media/transcribe", transcribeRequest{
		FilePath: filePath,
		Language: language,
		Quality:  quality,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// HTTPGenerator calls the AI text generation engine.
type HTTPGenerator struct {
	client *jsonClient
}

func NewHTTPGenerator(baseURL string) *HTTPGenerator {
	return &HTTPGenerator{client: newJSONClient(baseURL, config.GenerationTimeout)}
}

func (g *HTTPGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	var result GenerateResult
	if err := g.client.post(ctx, "/ai/generate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HTTPAnalyzer calls vision/document understanding.
type HTTPAnalyzer struct {
	client *jsonClient
}

func NewHTTPAnalyzer(baseURL string) *HTTPAnalyzer {
	return &HTTPAnalyzer{client: newJSONClient(baseURL, config.AnalysisTimeout)}
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	var result AnalyzeResult
	if err := a.client.post(ctx, "/ai/analyze", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Rating int `json:"rating"`
}

// HTTPSentimentClassifier maps free text to a 1-5 rating via the AI engine.
type HTTPSentimentClassifier struct {
	client *jsonClient
}

func NewHTTPSentimentClassifier(baseURL string) *HTTPSentimentClassifier {
	return &HTTPSentimentClassifier{client: newJSONClient(baseURL, config.GenerationTimeout)}
}

func (s *HTTPSentimentClassifier) Classify(ctx context.Context, text string) (int, error) {
	var resp classifyResponse
	if err := s.client.post(ctx, "/ai/sentiment", classifyRequest{Text: text}, &resp); err != nil {
		return 0, err
	}
	if resp.Rating < 1 || resp.Rating > 5 {
		return 0, fmt.Errorf("classifier returned rating out of range: %d", resp.Rating)
	}
	return resp.Rating, nil
}

type sendTextRequest struct {
	TenantID  string `json:"tenantId"`
	InboxID   string `json:"inboxId"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

type sendMediaRequest struct {
	TenantID  string `json:"tenantId"`
	InboxID   string `json:"inboxId"`
	Recipient string `json:"recipient"`
	FileURL   string `json:"fileUrl"`
	Caption   string `json:"caption,omitempty"`
}

type sendResponse struct {
	Success bool `json:"success"`
}

// HTTPSender dispatches outbound messages through the per-channel delivery
// service. Failures are logged, never raised: the message row already
// carries a send-failure marker when dispatch does not succeed.
type HTTPSender struct {
	client *jsonClient
}

func NewHTTPSender(baseURL string) *HTTPSender {
	return &HTTPSender{client: newJSONClient(baseURL, config.SendTimeout)}
}

func (s *HTTPSender) SendText(ctx context.Context, tenantID, inboxID, recipient, text string) bool {
	var resp sendResponse
	err := s.client.post(ctx, "/send/text", sendTextRequest{
		TenantID: tenantID, InboxID: inboxID, Recipient: recipient, Text: text,
	}, &resp)
	if err != nil {
		log.Warn().Err(err).Str("inboxId", inboxID).Msg("outbound text send failed")
		return false
	}
	return resp.Success
}

func (s *HTTPSender) SendMedia(ctx context.Context, tenantID, inboxID, recipient, fileURL, caption string) bool {
	var resp sendResponse
	err := s.client.post(ctx, "/send/media", sendMediaRequest{
		TenantID: tenantID, InboxID: inboxID, Recipient: recipient, FileURL: fileURL, Caption: caption,
	}, &resp)
	if err != nil {
		log.Warn().Err(err).Str("inboxId", inboxID).Msg("outbound media send failed")
		return false
	}
	return resp.Success
}
