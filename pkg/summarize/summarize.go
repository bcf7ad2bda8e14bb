// Package summarize turns a finished tutoring transcript into a short title
// and summary using the Gemini API.
package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/tutorvox/tutorvox/pkg/core"
	"github.com/tutorvox/tutorvox/pkg/store"
)

const summaryPrompt = `You are given the transcript of a %s tutoring session.
Write a title of at most 8 words on the first line, then a blank line, then a
summary of at most 120 words covering what the student worked on and where
they struggled. Output nothing else.

Transcript:
%s`

// generator is the slice of the genai client the summarizer calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Summarizer generates post-session titles and summaries.
type Summarizer struct {
	models generator
	model  string
	logger *slog.Logger
}

// New builds a Summarizer against the Gemini API.
func New(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Summarizer, error) {
	if apiKey == "" {
		return nil, core.NewSetupError("summarizer requires an API key", nil)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewSetupError("gemini client init failed", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{models: client.Models, model: model, logger: logger}, nil
}

// Summarize produces a title and summary for a session transcript.
func (s *Summarizer) Summarize(ctx context.Context, sess store.Session) (string, string, error) {
	prompt := buildPrompt(sess)
	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return "", "", core.NewAPIError("summary generation failed")
	}

	title, summary := parseSummary(resp.Text())
	if title == "" {
		return "", "", core.NewAPIError("summary response was empty")
	}
	s.logger.Debug("session summarized", "session_id", sess.ID, "title", title)
	return title, summary, nil
}

func buildPrompt(sess store.Session) string {
	subject := sess.SessionType
	if sess.SessionType == "code" && sess.CodeLanguage != "" {
		subject = sess.CodeLanguage + " coding"
	}

	var b strings.Builder
	for _, m := range sess.Messages {
		role := "Student"
		if m.Role == "ai" {
			role = "Tutor"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	return fmt.Sprintf(summaryPrompt, subject, b.String())
}

// parseSummary splits the model output into its first line and the rest.
func parseSummary(text string) (title, summary string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	title, summary, found := strings.Cut(text, "\n")
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), "#*"))
	if !found {
		return title, ""
	}
	return title, strings.TrimSpace(summary)
}
