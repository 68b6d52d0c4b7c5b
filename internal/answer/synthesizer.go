package answer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/rank"
	"github.com/xxxsen/docqa/internal/segment"
)

const (
	MessageNoDocuments = "I couldn't find any documents to answer your question. Please make sure documents are available in the configured source and reload them."
	MessageNoMatch     = "I couldn't find relevant information in the loaded documents to answer your question. Try rephrasing your question or asking about a different topic."

	systemInstruction = "You are a helpful assistant that answers questions based on provided context from documents."
	answerInstruction = "Answer the question based solely on the provided context. " +
		"If the context doesn't contain enough information to answer the question, " +
		"say so. Be concise and accurate in your response."

	DefaultTemperature        = 0.7
	DefaultMaxTokens          = 500
	DefaultMaxContextSegments = 5
	DefaultTimeout            = 60 * time.Second

	maxFallbackRunes   = 500
	truncationMarker   = "..."
	minFallbackWordLen = 3
)

var sentenceSplitRe = regexp.MustCompile(`[.!?]+`)

// Config is built once at startup. A disabled model or a blank key always
// selects the local extraction path.
type Config struct {
	Enabled            bool
	APIKey             string
	Model              string
	Temperature        float64
	MaxTokens          int
	MaxContextSegments int
	Timeout            time.Duration
}

type Synthesizer struct {
	cfg      Config
	provider ai.IProvider
}

func New(cfg Config, provider ai.IProvider) *Synthesizer {
	if cfg.MaxContextSegments <= 0 {
		cfg.MaxContextSegments = DefaultMaxContextSegments
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Synthesizer{cfg: cfg, provider: provider}
}

func (s *Synthesizer) modelEnabled() bool {
	return s.cfg.Enabled && strings.TrimSpace(s.cfg.APIKey) != "" && s.provider != nil
}

// Result is a synthesized answer. Degraded is set when the model was
// configured but failed and the text came from local extraction instead.
type Result struct {
	Text     string
	Degraded bool
}

// Synthesize produces the final answer for question from the ranked segments, best first.
// The question is passed to the model as typed. corpusSize is the number of segments in
// the generation the ranking ran against and only decides which message is returned
// when segments is empty. It never fails: every model error degrades to local extraction.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, segments []segment.Segment, corpusSize int) Result {
	if len(segments) == 0 {
		if corpusSize == 0 {
			return Result{Text: MessageNoDocuments}
		}
		return Result{Text: MessageNoMatch}
	}
	if !s.modelEnabled() {
		return Result{Text: Extract(question, segments[0].Text)}
	}
	out, err := s.complete(ctx, question, segments)
	if err != nil {
		logutil.GetLogger(ctx).Warn("model completion failed, use local extraction",
			zap.String("provider", s.provider.Name()), zap.Error(err))
		return Result{Text: Extract(question, segments[0].Text), Degraded: true}
	}
	return Result{Text: out}
}

func (s *Synthesizer) complete(ctx context.Context, question string, segments []segment.Segment) (string, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := s.provider.Complete(ctx, &ai.CompletionRequest{
		Model: s.cfg.Model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: systemInstruction},
			{Role: ai.RoleUser, Content: BuildPrompt(question, segments, s.cfg.MaxContextSegments)},
		},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ai.ErrMalformedResponse
	}
	logutil.GetLogger(ctx).Debug("model completion finished",
		zap.String("provider", s.provider.Name()), zap.Duration("cost", time.Since(start)))
	return out, nil
}

// BuildPrompt embeds at most limit segments, labeled [Document 1..n], ahead of the question.
func BuildPrompt(question string, segments []segment.Segment, limit int) string {
	var sb strings.Builder
	sb.WriteString("Context from documents:\n")
	for i, seg := range segments {
		if i >= limit {
			break
		}
		fmt.Fprintf(&sb, "\n[Document %d]\n%s\n", i+1, seg.Text)
	}
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	sb.WriteString(answerInstruction)
	return sb.String()
}

// Extract answers from a single segment without a model: sentences sharing a
// query word longer than three runes are kept in order, otherwise the whole
// segment is used. The result is capped at 500 runes plus "...".
func Extract(query, text string) string {
	words := rank.QueryWords(rank.NormalizeQuery(query), minFallbackWordLen)
	var kept []string
	for _, sentence := range sentenceSplitRe.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, w := range words {
			if strings.Contains(lower, w) {
				kept = append(kept, sentence)
				break
			}
		}
	}
	result := text
	if len(kept) > 0 {
		result = strings.Join(kept, " ")
	}
	return truncate(result, maxFallbackRunes)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + truncationMarker
}
