// -----------------------------------------------------------------------
// Chunker - bounded-size splitting of filing text for summarization
// -----------------------------------------------------------------------

package document

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/wilfred-py/tldrsec-ai-sub003/internal/models"
)

// ChunkConfig controls how filing text is split
type ChunkConfig struct {
	MaxChunkSize              int
	ChunkOverlap              int
	RespectSemanticBoundaries bool
	Separator                 string
}

// Validate fails fast on configurations that would produce a non-positive
// sliding-window step. Never silently clamps.
func (c *ChunkConfig) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("max chunk size must be positive, got %d", c.MaxChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.MaxChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be strictly less than max chunk size (%d)", c.ChunkOverlap, c.MaxChunkSize)
	}
	return nil
}

// ChunkText splits text into bounded chunks. Semantic mode aligns splits
// to paragraph and heading boundaries; otherwise a fixed-size window
// slides over raw characters.
func ChunkText(text string, cfg ChunkConfig) ([]models.DocumentChunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	if cfg.RespectSemanticBoundaries {
		return chunkSemantic(text, cfg), nil
	}
	return chunkSliding(text, cfg), nil
}

// ReconstructDocument rebuilds a readable document from chunks, sorted by
// ID and joined with the separator. Best-effort readable, not byte-exact:
// overlap seeding is not deduplicated on rejoin.
func ReconstructDocument(chunks []models.DocumentChunk, separator string) string {
	ordered := make([]models.DocumentChunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(a, b int) bool {
		return ordered[a].ID < ordered[b].ID
	})

	parts := make([]string, 0, len(ordered))
	for _, chunk := range ordered {
		parts = append(parts, chunk.Content)
	}
	return strings.Join(parts, separator)
}

// paragraph is one paragraph-break-delimited span of the source text
type paragraph struct {
	text    string
	start   int
	heading bool
}

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(text string) []paragraph {
	breaks := paragraphBreak.FindAllStringIndex(text, -1)

	var paras []paragraph
	spanStart := 0
	addSpan := func(start, end int) {
		span := text[start:end]
		trimmed := strings.TrimSpace(span)
		if trimmed == "" {
			return
		}
		start += strings.Index(span, trimmed[:1])
		paras = append(paras, paragraph{
			text:    trimmed,
			start:   start,
			heading: isHeading(trimmed),
		})
	}
	for _, brk := range breaks {
		addSpan(spanStart, brk[0])
		spanStart = brk[1]
	}
	addSpan(spanStart, len(text))
	return paras
}

// Heading shapes in SEC filings: "PART II", "ITEM 1A. Risk Factors", or a
// standalone all-caps line.
var (
	partPattern = regexp.MustCompile(`^PART\s+[IVXLCDM]+\b`)
	itemPattern = regexp.MustCompile(`^ITEM\s+\d+[A-Za-z]?\.\s+\S`)
)

func isHeading(line string) bool {
	if strings.Contains(line, "\n") {
		return false
	}
	if partPattern.MatchString(line) || itemPattern.MatchString(line) {
		return true
	}
	return isAllCaps(line)
}

func isAllCaps(line string) bool {
	if len(line) > 120 {
		return false
	}
	hasLetter := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

func chunkSemantic(text string, cfg ChunkConfig) []models.DocumentChunk {
	paras := splitParagraphs(text)

	var chunks []models.DocumentChunk
	var current []paragraph
	var headings []string
	currentLen := 0
	chunkStart := 0
	chunkEnd := 0
	lastHeading := ""

	appendPara := func(p paragraph) {
		if len(current) > 0 {
			currentLen += 2 // joining "\n\n"
		} else {
			chunkStart = p.start
		}
		current = append(current, p)
		currentLen += len(p.text)
		if p.heading {
			headings = append(headings, p.text)
		}
	}

	closeChunk := func() {
		if len(current) == 0 {
			return
		}
		parts := make([]string, len(current))
		for i, p := range current {
			parts[i] = p.text
		}
		content := strings.Join(parts, "\n\n")
		chunks = append(chunks, models.DocumentChunk{
			ID:      len(chunks),
			Content: content,
			Metadata: models.ChunkMetadata{
				Start:     chunkStart,
				End:       chunkEnd,
				CharCount: len(content),
				Headings:  append([]string(nil), headings...),
			},
		})
		current = nil
		headings = nil
		currentLen = 0
	}

	for i, p := range paras {
		// A paragraph longer than the limit becomes its own chunk,
		// unmodified. Never drop content.
		if len(p.text) > cfg.MaxChunkSize {
			closeChunk()
			appendPara(p)
			chunkEnd = p.start + len(p.text)
			closeChunk()
			if p.heading {
				lastHeading = p.text
			}
			continue
		}

		needed := len(p.text)
		if len(current) > 0 {
			needed += 2
		}
		if currentLen+needed > cfg.MaxChunkSize && len(current) > 0 {
			closeChunk()

			// A heading is a hard boundary: the new chunk starts fresh
			// with it. Anything else carries context backward: the most
			// recent heading plus preceding body paragraphs within the
			// overlap budget.
			if !p.heading {
				seeds := overlapSeeds(paras, i, lastHeading, cfg, len(p.text))
				for _, seed := range seeds {
					appendPara(seed)
				}
				if len(seeds) > 0 {
					// Positional metadata tracks forward progress, not
					// the copied-back seed text.
					chunkStart = p.start
				}
			}
		}

		appendPara(p)
		chunkEnd = p.start + len(p.text)
		if p.heading {
			lastHeading = p.text
		}
	}
	closeChunk()

	return chunks
}

// overlapSeeds collects the context carried into a freshly opened chunk:
// the last heading plus as many immediately preceding body paragraphs as
// fit in the overlap budget, walked backward. The seed total is trimmed so
// the triggering paragraph still fits under the size limit.
func overlapSeeds(paras []paragraph, index int, lastHeading string, cfg ChunkConfig, triggerLen int) []paragraph {
	var body []paragraph
	budget := cfg.ChunkOverlap
	for j := index - 1; j >= 0; j-- {
		q := paras[j]
		if q.heading {
			break
		}
		if len(q.text) > budget {
			break
		}
		budget -= len(q.text)
		body = append([]paragraph{q}, body...)
	}

	var seeds []paragraph
	if lastHeading != "" {
		seeds = append(seeds, paragraph{text: lastHeading, heading: true})
	}
	seeds = append(seeds, body...)

	// Trim oldest seeds until seed + trigger fits inside one chunk
	for len(seeds) > 0 {
		total := triggerLen
		for _, seed := range seeds {
			total += len(seed.text) + 2
		}
		if total <= cfg.MaxChunkSize {
			break
		}
		seeds = seeds[1:]
	}
	return seeds
}

// chunkSliding is the non-semantic mode: a fixed window stepping by
// maxChunkSize-chunkOverlap over raw characters, final window clipped.
func chunkSliding(text string, cfg ChunkConfig) []models.DocumentChunk {
	step := cfg.MaxChunkSize - cfg.ChunkOverlap

	var chunks []models.DocumentChunk
	for start := 0; start < len(text); start += step {
		end := start + cfg.MaxChunkSize
		if end > len(text) {
			end = len(text)
		}
		content := text[start:end]
		chunks = append(chunks, models.DocumentChunk{
			ID:      len(chunks),
			Content: content,
			Metadata: models.ChunkMetadata{
				Start:     start,
				End:       end,
				CharCount: len(content),
			},
		})
		if end == len(text) {
			break
		}
	}
	return chunks
}
