package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/omnidesk/ingest-server-go/internal/model"
)

func TestReconcileTranscripts(t *testing.T) {
	t.Run("equal passes keep either", func(t *testing.T) {
		text, passes := ReconcileTranscripts("quero cancelar", true, "quero cancelar", true)
		assert.Equal(t, "quero cancelar", text)
		assert.Equal(t, 2, passes)
	})

	t.Run("equality ignores case", func(t *testing.T) {
		text, passes := ReconcileTranscripts("Quero Cancelar", true, "quero cancelar", true)
		assert.Equal(t, "Quero Cancelar", text)
		assert.Equal(t, 2, passes)
	})

	t.Run("divergent passes keep the longer", func(t *testing.T) {
		text, passes := ReconcileTranscripts("quero cancelar", true, "quero cancelar minha assinatura", true)
		assert.Equal(t, "quero cancelar minha assinatura", text)
		assert.Equal(t, 2, passes)
	})

	t.Run("single successful pass is used", func(t *testing.T) {
		text, passes := ReconcileTranscripts("", false, "quero cancelar", true)
		assert.Equal(t, "quero cancelar", text)
		assert.Equal(t, 1, passes)

		text, passes = ReconcileTranscripts("quero cancelar", true, "", false)
		assert.Equal(t, "quero cancelar", text)
		assert.Equal(t, 1, passes)
	})

	t.Run("both failed yields nothing", func(t *testing.T) {
		text, passes := ReconcileTranscripts("", false, "", false)
		assert.Empty(t, text)
		assert.Zero(t, passes)
	})
}

func TestIsPDF(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, content []byte) string {
		path := filepath.Join(dir, name)
		assert.NoError(t, os.WriteFile(path, content, 0o644))
		return path
	}

	t.Run("pdf magic bytes", func(t *testing.T) {
		path := write("doc.bin", []byte("%PDF-1.7 rest of file"))
		assert.True(t, isPDF(path))
	})

	t.Run("non-pdf content", func(t *testing.T) {
		path := write("doc2.bin", []byte("PK\x03\x04 zip archive"))
		assert.False(t, isPDF(path))
	})

	t.Run("missing file", func(t *testing.T) {
		assert.False(t, isPDF(filepath.Join(dir, "missing.bin")))
	})
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		fileURL  string
		expected string
	}{
		{"from mime type", "audio/ogg", "", ".ogg"},
		{"from url path", "", "https://cdn.example.com/files/voice.webm?sig=1", ".webm"},
		{"mime wins over url", "application/pdf", "https://cdn/file.bin", ".pdf"},
		{"unknown falls back to bin", "", "https://cdn/file", ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extensionFor(tt.mimeType, tt.fileURL))
		})
	}
}

func mediaOrchestrator(t *testing.T, transcriber *mockTranscriber, analyzer *mockAnalyzer) *MediaOrchestrator {
	t.Helper()
	return NewMediaOrchestrator(nil, transcriber, analyzer, t.TempDir(), "ffmpeg", TranscriptionSettings{
		Language: "pt",
		Quality:  "standard",
		Delay:    time.Millisecond,
	})
}

func TestTranscribe(t *testing.T) {
	inbox := &model.Inbox{ID: "i1", TenantID: "t1"}
	msg := &model.Message{ID: "m1", ContentType: model.ContentPTT}

	t.Run("cancellation during the delay keeps the first pass", func(t *testing.T) {
		transcriber := &mockTranscriber{text: "quero cancelar"}
		o := mediaOrchestrator(t, transcriber, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		enr := o.transcribe(ctx, inbox, msg, "voice.mp3", "")

		assert.Equal(t, "quero cancelar", enr.Content)
		assert.Equal(t, 1, enr.Transcription.Passes)
		assert.Equal(t, 1, transcriber.calls)
	})

	t.Run("provider transcript stands in for the first pass", func(t *testing.T) {
		transcriber := &mockTranscriber{fail: true}
		o := mediaOrchestrator(t, transcriber, nil)

		enr := o.transcribe(context.Background(), inbox, msg, "voice.mp3", "quero segunda via")

		assert.Equal(t, "quero segunda via", enr.Content)
		assert.Equal(t, 1, enr.Transcription.Passes)
		assert.Equal(t, 1, transcriber.calls)
	})

	t.Run("provider transcript agrees with local pass", func(t *testing.T) {
		transcriber := &mockTranscriber{text: "quero segunda via"}
		o := mediaOrchestrator(t, transcriber, nil)

		enr := o.transcribe(context.Background(), inbox, msg, "voice.mp3", "quero segunda via")

		assert.Equal(t, "quero segunda via", enr.Content)
		assert.Equal(t, 2, enr.Transcription.Passes)
		assert.Equal(t, 1, transcriber.calls)
	})
}

func TestAnalyzeImage(t *testing.T) {
	inbox := &model.Inbox{ID: "i1", TenantID: "t1"}
	msg := &model.Message{ID: "m1", ContentType: model.ContentImage}

	t.Run("action signal promotes the analysis to a precomposed reply", func(t *testing.T) {
		analyzer := &mockAnalyzer{summary: "Detectei um boleto vencido", actionSignal: true}
		o := mediaOrchestrator(t, nil, analyzer)

		enr := o.analyzeImage(context.Background(), inbox, msg, "photo.png")

		assert.Equal(t, "Detectei um boleto vencido", enr.Content)
		assert.True(t, enr.SkipGeneration)
	})

	t.Run("plain analysis only enriches the content", func(t *testing.T) {
		analyzer := &mockAnalyzer{summary: "uma foto de um recibo"}
		o := mediaOrchestrator(t, nil, analyzer)

		enr := o.analyzeImage(context.Background(), inbox, msg, "photo.png")

		assert.Equal(t, "uma foto de um recibo", enr.Content)
		assert.False(t, enr.SkipGeneration)
	})

	t.Run("analysis failure degrades to no enrichment", func(t *testing.T) {
		analyzer := &mockAnalyzer{fail: true}
		o := mediaOrchestrator(t, nil, analyzer)

		enr := o.analyzeImage(context.Background(), inbox, msg, "photo.png")

		assert.Zero(t, enr)
	})
}
