package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/course-supporter/platform/internal/domain"
	"github.com/course-supporter/platform/internal/llm"
)

// TextProcessor handles already-textual material: no heavy step, no LLM
// call, just a direct decode.
type TextProcessor struct{}

func (TextProcessor) Process(_ context.Context, _ *llm.Router, _ *domain.MaterialEntry, raw []byte) (string, error) {
	return string(raw), nil
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// WebProcessor strips markup down to plain text. The scraping and
// readability heuristics a production extractor would need are out of
// scope here; this processor exists to give the web source type a working
// contract, not a faithful HTML renderer.
type WebProcessor struct{}

func (WebProcessor) Process(_ context.Context, _ *llm.Router, _ *domain.MaterialEntry, raw []byte) (string, error) {
	text := htmlTagPattern.ReplaceAllString(string(raw), " ")
	text = strings.Join(strings.Fields(text), " ")
	return text, nil
}

// VideoProcessor represents the transcription heavy step: in production
// this decodes audio and invokes a speech model; here it delegates to the
// injected model router under the "video_transcription" action so the
// fallback chain, cost accounting, and audit logging all exercise the same
// path a real transcription call would.
type VideoProcessor struct{}

func (VideoProcessor) Process(ctx context.Context, router *llm.Router, entry *domain.MaterialEntry, raw []byte) (string, error) {
	if router == nil {
		return "", fmt.Errorf("video processor requires a model router")
	}
	req := llm.Request{
		Prompt:       fmt.Sprintf("Transcribe the audio track of the uploaded video material (%d bytes) and return a clean transcript.", len(raw)),
		SystemPrompt: "You produce accurate, speaker-neutral transcripts of spoken course content.",
	}
	resp, err := router.Complete(ctx, "video_transcription", "default", req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// PresentationProcessor represents the vision-description heavy step:
// extracting per-slide text and visual description. Slide rendering (PDF
// or deck format decoding) is out of scope; this processor hands the raw
// bytes to the router under "slide_description" for the same reason the
// video path delegates transcription.
type PresentationProcessor struct{}

func (PresentationProcessor) Process(ctx context.Context, router *llm.Router, entry *domain.MaterialEntry, raw []byte) (string, error) {
	if router == nil {
		return "", fmt.Errorf("presentation processor requires a model router")
	}
	req := llm.Request{
		Prompt:       fmt.Sprintf("Describe the content of each slide in this presentation (%d bytes), in slide order.", len(raw)),
		SystemPrompt: "You extract structured, slide-by-slide summaries of presentation decks.",
	}
	resp, err := router.Complete(ctx, "slide_description", "default", req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// DefaultRegistry wires the four source types named in the material entry
// contract to their processors.
func DefaultRegistry() Registry {
	return Registry{
		domain.SourceText:         TextProcessor{},
		domain.SourceWeb:          WebProcessor{},
		domain.SourceVideo:        VideoProcessor{},
		domain.SourcePresentation: PresentationProcessor{},
	}
}
