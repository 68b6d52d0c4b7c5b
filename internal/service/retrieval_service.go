package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/answer"
	"github.com/xxxsen/docqa/internal/chunker"
	"github.com/xxxsen/docqa/internal/ingest"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
	"github.com/xxxsen/docqa/internal/rank"
	"github.com/xxxsen/docqa/internal/segment"
)

// AnswerTopK is the number of segments handed to the synthesizer.
const AnswerTopK = 3

type ReloadResult struct {
	Generation uint64        `json:"generation"`
	Documents  int           `json:"documents"`
	ChunkCount int           `json:"chunkCount"`
	Duration   time.Duration `json:"-"`
}

type Status struct {
	ChunksLoaded int        `json:"chunksLoaded"`
	Ready        bool       `json:"ready"`
	Generation   uint64     `json:"generation"`
	Documents    int        `json:"documents"`
	LoadedAt     *time.Time `json:"loadedAt,omitempty"`
}

// ProgressFunc is called after each document has been segmented.
type ProgressFunc func(done, total int)

type CacheOptions struct {
	Size int
	TTL  time.Duration
}

type RetrievalService struct {
	source  ingest.Source
	chunker chunker.Chunker
	scorer  *rank.Scorer
	synth   *answer.Synthesizer
	store   *segment.Store

	reloadMu sync.Mutex
	cache    *expirable.LRU[string, string]
}

func NewRetrievalService(source ingest.Source, ch chunker.Chunker, synth *answer.Synthesizer, cacheOpts CacheOptions) *RetrievalService {
	s := &RetrievalService{
		source:  source,
		chunker: ch,
		scorer:  rank.NewScorer(),
		synth:   synth,
		store:   segment.NewStore(),
	}
	if cacheOpts.Size > 0 {
		s.cache = expirable.NewLRU[string, string](cacheOpts.Size, nil, cacheOpts.TTL)
	}
	return s
}

func (s *RetrievalService) Reload(ctx context.Context) (*ReloadResult, error) {
	return s.ReloadWithProgress(ctx, nil)
}

// ReloadWithProgress extracts and segments every document and publishes the
// result as a new generation. On extraction failure the current generation stays
// in place. Concurrent calls run one at a time.
func (s *RetrievalService) ReloadWithProgress(ctx context.Context, fn ProgressFunc) (*ReloadResult, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	logger := logutil.GetLogger(ctx).With(zap.String("source", s.source.Type()))
	logger.Info("reload started")
	docs, err := s.source.Extract(ctx)
	if err != nil {
		logger.Error("extract documents failed, keep current generation", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", appErr.ErrIngestion, err)
	}
	var segments []segment.Segment
	for i, doc := range docs {
		for _, text := range s.chunker.Chunk(doc.Text) {
			segments = append(segments, segment.Segment{Source: doc.Name, Text: text})
		}
		if fn != nil {
			fn(i+1, len(docs))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", appErr.ErrIngestion, err)
	}
	if len(docs) == 0 {
		logger.Warn("no documents found, publish empty generation")
	}
	gen := s.store.Publish(segments, len(docs))
	res := &ReloadResult{
		Generation: gen.ID,
		Documents:  gen.Documents,
		ChunkCount: gen.Len(),
		Duration:   time.Since(start),
	}
	logger.Info("reload finished",
		zap.Uint64("generation", res.Generation),
		zap.Int("documents", res.Documents),
		zap.Int("chunks", res.ChunkCount),
		zap.Duration("cost", res.Duration))
	return res, nil
}

// Search ranks the current generation against question and returns at most k candidates.
func (s *RetrievalService) Search(ctx context.Context, question string, k int) ([]rank.Candidate, error) {
	query := rank.NormalizeQuery(question)
	if query == "" {
		return nil, appErr.ErrEmptyQuestion
	}
	return s.search(ctx, s.store.Current(), query, k), nil
}

func (s *RetrievalService) search(ctx context.Context, gen *segment.Generation, query string, k int) []rank.Candidate {
	top := rank.Select(s.scorer.ScoreAll(gen, query), k)
	logutil.GetLogger(ctx).Debug("search finished",
		zap.Uint64("generation", gen.ID),
		zap.Int("segments", gen.Len()),
		zap.Int("results", len(top)))
	return top
}

// Answer searches the current generation and synthesizes an answer from the top
// segments. Model failures never surface here; only a blank question is an error.
// Answers produced by the extraction fallback after a model failure are not cached.
func (s *RetrievalService) Answer(ctx context.Context, question string) (string, error) {
	query := rank.NormalizeQuery(question)
	if query == "" {
		return "", appErr.ErrEmptyQuestion
	}
	gen := s.store.Current()
	key := cacheKey(gen.ID, query)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}
	top := s.search(ctx, gen, query, AnswerTopK)
	segments := make([]segment.Segment, len(top))
	for i, c := range top {
		segments[i] = c.Segment
	}
	res := s.synth.Synthesize(ctx, question, segments, gen.Len())
	if s.cache != nil && !res.Degraded {
		s.cache.Add(key, res.Text)
	}
	return res.Text, nil
}

func (s *RetrievalService) Status() Status {
	gen := s.store.Current()
	st := Status{
		ChunksLoaded: gen.Len(),
		Ready:        !gen.Empty(),
		Generation:   gen.ID,
		Documents:    gen.Documents,
	}
	if !gen.LoadedAt.IsZero() {
		loadedAt := gen.LoadedAt
		st.LoadedAt = &loadedAt
	}
	return st
}

// Source exposes the configured document source, e.g. to find the directory to watch.
func (s *RetrievalService) Source() ingest.Source {
	return s.source
}

func cacheKey(generation uint64, query string) string {
	sum := sha256.Sum256([]byte(query))
	return strconv.FormatUint(generation, 10) + ":" + hex.EncodeToString(sum[:])
}
