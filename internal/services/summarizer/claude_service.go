// -----------------------------------------------------------------------
// Claude Summarizer - AI summaries of parsed filings via Anthropic
// -----------------------------------------------------------------------

package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/common"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/interfaces"
	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

const systemPrompt = "You summarize SEC filings for retail investors. " +
	"Be concise and concrete: lead with what changed, quantify where the filing does, " +
	"and avoid boilerplate. Plain prose, no preamble."

// ClaudeService implements SummaryService using the Anthropic Claude API
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// NewClaudeService creates a Claude-backed summary service
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (interfaces.SummaryService, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or claude.api_key in config)")
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid claude timeout '%s': %w", config.Timeout, err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	service := &ClaudeService{
		config:    config,
		logger:    logger,
		client:    anthropic.NewClient(option.WithAPIKey(config.APIKey)),
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude summarizer initialized")

	return service, nil
}

// Summarize produces a summary of the filing document. Chunked documents
// are summarized from their chunks with headings preserved so section
// context survives the split.
func (s *ClaudeService) Summarize(ctx context.Context, filing *models.Filing, doc *models.FilingDocument) (*models.Summary, error) {
	prompt := buildPrompt(filing, doc)
	if prompt == "" {
		return nil, fmt.Errorf("filing %s has no text to summarize", filing.ID)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	s.logger.Debug().
		Str("filing_id", filing.ID).
		Str("ticker", filing.Ticker).
		Int("prompt_length", len(prompt)).
		Msg("Requesting filing summary")

	resp, err := s.client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude summarization failed for filing %s: %w", filing.ID, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("claude returned no text for filing %s", filing.ID)
	}

	s.logger.Info().
		Str("filing_id", filing.ID).
		Int("summary_length", text.Len()).
		Dur("duration", time.Since(started)).
		Msg("Filing summarized")

	return &models.Summary{
		ID:        common.NewSummaryID(),
		FilingID:  filing.ID,
		Text:      text.String(),
		Model:     s.config.Model,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// buildPrompt assembles the summarization input from the document. Chunks
// win over full text when present: they carry heading context and have
// already been size-bounded.
func buildPrompt(filing *models.Filing, doc *models.FilingDocument) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summarize this %s filing from %s (%s), filed %s.\n\n",
		filing.FilingType, filing.CompanyName, filing.Ticker,
		filing.FilingDate.Format("2006-01-02"))

	if doc.Chunked && len(doc.Chunks) > 0 {
		for _, chunk := range doc.Chunks {
			if len(chunk.Metadata.Headings) > 0 {
				fmt.Fprintf(&sb, "[%s]\n", strings.Join(chunk.Metadata.Headings, " > "))
			}
			sb.WriteString(chunk.Content)
			sb.WriteString("\n\n")
		}
	} else if doc.FullText != "" {
		sb.WriteString(doc.FullText)
	} else {
		return ""
	}

	return sb.String()
}
