package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/omnidesk/ingest-server-go/internal/capability"
	"github.com/omnidesk/ingest-server-go/internal/config"
	"github.com/omnidesk/ingest-server-go/internal/model"
)

var pdfMagic = []byte("%PDF")

// browser-recorded voice containers that need transcoding before they play
// everywhere.
var transcodeExtensions = map[string]bool{
	".webm": true,
	".ogg":  true,
	".oga":  true,
}

// TranscriptionSettings are resolved per tenant from inbox settings with
// service-wide defaults.
type TranscriptionSettings struct {
	Language string
	Quality  string
	Delay    time.Duration
}

// Enrichment is what the orchestrator produced for one message. Zero value
// means "no enrichment": the message keeps its placeholder content.
type Enrichment struct {
	Content       string
	Transcription *model.Transcription
	PdfSummary    *model.PdfSummary
	// SkipGeneration: content was produced by document or image analysis
	// and already is the reply; the arbiter persists/sends it without its
	// own generation call.
	SkipGeneration bool
}

// MediaOrchestrator downloads attached media, normalizes the container
// format, and enriches the event content through transcription or AI
// analysis. Every stage fails soft: an exception anywhere degrades to no
// enrichment, never to a lost message. The orchestrator never dispatches
// anything itself; outbound replies belong to the arbiter, whose
// reply-once guard keeps requeued jobs idempotent.
type MediaOrchestrator struct {
	downloader  capability.MediaDownloader
	transcriber capability.Transcriber
	analyzer    capability.Analyzer

	mediaDir   string
	ffmpegPath string
	defaults   TranscriptionSettings
}

func NewMediaOrchestrator(
	downloader capability.MediaDownloader,
	transcriber capability.Transcriber,
	analyzer capability.Analyzer,
	mediaDir, ffmpegPath string,
	defaults TranscriptionSettings,
) *MediaOrchestrator {
	return &MediaOrchestrator{
		downloader:  downloader,
		transcriber: transcriber,
		analyzer:    analyzer,
		mediaDir:    mediaDir,
		ffmpegPath:  ffmpegPath,
		defaults:    defaults,
	}
}

func (o *MediaOrchestrator) settingsFor(inbox *model.Inbox) TranscriptionSettings {
	s := o.defaults
	parsed := inbox.ParseSettings()
	if parsed.TranscriptionLanguage != "" {
		s.Language = parsed.TranscriptionLanguage
	}
	if parsed.TranscriptionQuality != "" {
		s.Quality = parsed.TranscriptionQuality
	}
	if parsed.TranscriptionDelayMs > 0 {
		s.Delay = time.Duration(parsed.TranscriptionDelayMs) * time.Millisecond
	}
	return s
}

// Enrich runs the full media pipeline for a persisted message.
func (o *MediaOrchestrator) Enrich(ctx context.Context, inbox *model.Inbox, msg *model.Message, ev *InboundEvent) Enrichment {
	if !ev.HasMedia() || o.downloader == nil {
		return Enrichment{}
	}

	filePath, providerTranscript, err := o.fetch(ctx, inbox, msg.ContentType, ev)
	if err != nil {
		log.Warn().Err(err).Str("messageId", msg.ID).Msg("media fetch failed, keeping placeholder content")
		return Enrichment{}
	}
	defer os.Remove(filePath)

	switch msg.ContentType {
	case model.ContentAudio, model.ContentPTT:
		filePath = o.normalizeAudio(ctx, filePath)
		return o.transcribe(ctx, inbox, msg, filePath, providerTranscript)

	case model.ContentDocument:
		if isPDF(filePath) {
			return o.analyzeDocument(ctx, inbox, msg, filePath)
		}
		return Enrichment{}

	case model.ContentImage:
		return o.analyzeImage(ctx, inbox, msg, filePath)

	default:
		return Enrichment{}
	}
}

// fetch asks the channel's media service for the binary, preferring a
// public link over an inline payload, and persists it under the media dir.
// For voice messages the provider is also asked for its own transcript,
// which feeds the consensus as a free extra pass when present.
func (o *MediaOrchestrator) fetch(ctx context.Context, inbox *model.Inbox, contentType model.ContentType, ev *InboundEvent) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.MediaDownloadTimeout)
	defer cancel()

	wantTranscript := contentType == model.ContentAudio || contentType == model.ContentPTT
	result, err := o.downloader.Download(ctx, capability.DownloadRequest{
		MessageID:         ev.ProviderMessageID,
		InboxID:           inbox.ID,
		WantTranscription: wantTranscript,
		WantPublicLink:    true,
		Language:          o.settingsFor(inbox).Language,
	})
	if err != nil {
		return "", "", fmt.Errorf("download media: %w", err)
	}

	var data []byte
	switch {
	case result.FileURL != "":
		data, err = fetchURL(ctx, result.FileURL)
		if err != nil {
			return "", "", fmt.Errorf("fetch media url: %w", err)
		}
	case result.Base64 != "":
		data, err = base64.StdEncoding.DecodeString(result.Base64)
		if err != nil {
			return "", "", fmt.Errorf("decode inline media: %w", err)
		}
	default:
		return "", "", fmt.Errorf("media service returned neither url nor payload")
	}

	if err := os.MkdirAll(o.mediaDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create media dir: %w", err)
	}

	name := uuid.NewString() + extensionFor(result.MimeType, result.FileURL)
	path := filepath.Join(o.mediaDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("persist media: %w", err)
	}
	return path, strings.TrimSpace(result.Transcription), nil
}

// normalizeAudio transcodes browser voice containers into mp3. On timeout
// or failure the original file is kept and the pipeline proceeds.
func (o *MediaOrchestrator) normalizeAudio(ctx context.Context, filePath string) string {
	if !transcodeExtensions[strings.ToLower(filepath.Ext(filePath))] {
		return filePath
	}

	out := strings.TrimSuffix(filePath, filepath.Ext(filePath)) + ".mp3"
	ctx, cancel := context.WithTimeout(ctx, config.TranscodeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, o.ffmpegPath, "-y", "-i", filePath, "-codec:a", "libmp3lame", out)
	if err := cmd.Run(); err != nil {
		log.Warn().Err(err).Str("file", filePath).Msg("audio transcode failed, keeping original container")
		return filePath
	}
	os.Remove(filePath)
	return out
}

// transcribe runs the two-pass consensus. Identical passes (case
// insensitive) use either; differing passes prefer the longer transcript;
// one successful pass is accepted alone; zero leaves the placeholder. A
// provider-supplied transcript stands in for the first pass.
func (o *MediaOrchestrator) transcribe(ctx context.Context, inbox *model.Inbox, msg *model.Message, filePath, providerTranscript string) Enrichment {
	if o.transcriber == nil {
		return Enrichment{}
	}
	settings := o.settingsFor(inbox)

	first := providerTranscript
	var firstErr error
	if first == "" {
		first, firstErr = o.transcribeOnce(ctx, filePath, settings)
	}

	// A cancellation during the inter-pass delay keeps whatever the first
	// pass produced instead of throwing it away.
	var second string
	secondErr := ctx.Err()
	select {
	case <-ctx.Done():
	case <-time.After(settings.Delay):
		second, secondErr = o.transcribeOnce(ctx, filePath, settings)
	}

	final, passes := ReconcileTranscripts(first, firstErr == nil, second, secondErr == nil)
	if passes == 0 {
		log.Warn().
			Str("messageId", msg.ID).
			AnErr("firstErr", firstErr).
			AnErr("secondErr", secondErr).
			Msg("both transcription passes failed")
		return Enrichment{}
	}

	return Enrichment{
		Content: final,
		Transcription: &model.Transcription{
			Text:     final,
			Language: settings.Language,
			Passes:   passes,
		},
	}
}

func (o *MediaOrchestrator) transcribeOnce(ctx context.Context, filePath string, s TranscriptionSettings) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.TranscriptionTimeout)
	defer cancel()
	text, err := o.transcriber.Transcribe(ctx, filePath, s.Language, s.Quality)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ReconcileTranscripts merges two transcription passes into the final
// transcript, returning how many passes contributed. Longer wins on
// disagreement as a precision heuristic: truncated decodes are the common
// failure mode.
func ReconcileTranscripts(first string, firstOK bool, second string, secondOK bool) (string, int) {
	firstOK = firstOK && first != ""
	secondOK = secondOK && second != ""

	switch {
	case firstOK && secondOK:
		if strings.EqualFold(first, second) {
			return first, 2
		}
		if len(second) > len(first) {
			return second, 2
		}
		return first, 2
	case firstOK:
		return first, 1
	case secondOK:
		return second, 1
	default:
		return "", 0
	}
}

// analyzeDocument runs document understanding over a PDF. The summary text
// becomes the event content handed to the arbiter, which then skips its own
// generation call.
func (o *MediaOrchestrator) analyzeDocument(ctx context.Context, inbox *model.Inbox, msg *model.Message, filePath string) Enrichment {
	if o.analyzer == nil {
		return Enrichment{}
	}

	ctx, cancel := context.WithTimeout(ctx, config.AnalysisTimeout)
	defer cancel()

	result, err := o.analyzer.Analyze(ctx, capability.AnalyzeRequest{
		FilePath: filePath,
		Kind:     "document",
		TenantID: inbox.TenantID,
	})
	if err != nil || !result.Success || strings.TrimSpace(result.SummaryText) == "" {
		if err != nil {
			log.Warn().Err(err).Str("messageId", msg.ID).Msg("document analysis failed")
		}
		return Enrichment{}
	}

	return Enrichment{
		Content:        result.SummaryText,
		PdfSummary:     &model.PdfSummary{Text: result.SummaryText},
		SkipGeneration: true,
	}
}

// analyzeImage runs vision analysis. An action signal promotes the
// analysis text to the reply itself; the arbiter persists and dispatches
// it like a document summary, so redelivered jobs stay idempotent.
func (o *MediaOrchestrator) analyzeImage(ctx context.Context, inbox *model.Inbox, msg *model.Message, filePath string) Enrichment {
	if o.analyzer == nil {
		return Enrichment{}
	}

	actx, cancel := context.WithTimeout(ctx, config.AnalysisTimeout)
	defer cancel()

	result, err := o.analyzer.Analyze(actx, capability.AnalyzeRequest{
		FilePath: filePath,
		Kind:     "image",
		TenantID: inbox.TenantID,
	})
	if err != nil || !result.Success || strings.TrimSpace(result.SummaryText) == "" {
		if err != nil {
			log.Warn().Err(err).Str("messageId", msg.ID).Msg("image analysis failed")
		}
		return Enrichment{}
	}

	if result.ActionSignal {
		return Enrichment{Content: result.SummaryText, SkipGeneration: true}
	}
	return Enrichment{Content: result.SummaryText}
}

func isPDF(filePath string) bool {
	f, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, pdfMagic)
}

func fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func extensionFor(mimeType, fileURL string) string {
	switch {
	case strings.Contains(mimeType, "ogg"):
		return ".ogg"
	case strings.Contains(mimeType, "webm"):
		return ".webm"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return ".mp3"
	case strings.Contains(mimeType, "pdf"):
		return ".pdf"
	case strings.Contains(mimeType, "jpeg"), strings.Contains(mimeType, "jpg"):
		return ".jpg"
	case strings.Contains(mimeType, "png"):
		return ".png"
	}
	if q := strings.IndexByte(fileURL, '?'); q >= 0 {
		fileURL = fileURL[:q]
	}
	if ext := filepath.Ext(fileURL); len(ext) > 1 && len(ext) <= 5 {
		return ext
	}
	return ".bin"
}
