package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/answer"
	"github.com/xxxsen/docqa/internal/chunker"
	"github.com/xxxsen/docqa/internal/ingest"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

type fakeSource struct {
	mu   sync.Mutex
	docs []ingest.Document
	err  error
}

func (f *fakeSource) Type() string { return "fake" }

func (f *fakeSource) Extract(ctx context.Context) ([]ingest.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]ingest.Document(nil), f.docs...), nil
}

func (f *fakeSource) set(docs []ingest.Document, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = docs
	f.err = err
}

type countingProvider struct {
	calls atomic.Int32
	out   string
	err   error

	mu     sync.Mutex
	prompt string
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Complete(ctx context.Context, req *ai.CompletionRequest) (string, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.prompt = req.Messages[len(req.Messages)-1].Content
	p.mu.Unlock()
	return p.out, p.err
}

func (p *countingProvider) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prompt
}

// newTestService keeps every sentence as its own segment.
func newTestService(src ingest.Source, synth *answer.Synthesizer, cache CacheOptions) *RetrievalService {
	if synth == nil {
		synth = answer.New(answer.Config{}, nil)
	}
	return NewRetrievalService(src, chunker.NewSentenceChunker(1, 0), synth, cache)
}

func catMatSource() *fakeSource {
	return &fakeSource{docs: []ingest.Document{
		{Name: "pets.txt", Text: "The cat sat on the mat. Dogs bark loudly at night."},
	}}
}

func TestReloadPublishesGeneration(t *testing.T) {
	svc := newTestService(catMatSource(), nil, CacheOptions{})
	require.Equal(t, Status{}, svc.Status())

	var progress []int
	res, err := svc.ReloadWithProgress(context.Background(), func(done, total int) {
		require.Equal(t, 1, total)
		progress = append(progress, done)
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Generation)
	require.Equal(t, 1, res.Documents)
	require.Equal(t, 2, res.ChunkCount)
	require.Equal(t, []int{1}, progress)

	st := svc.Status()
	require.True(t, st.Ready)
	require.Equal(t, 2, st.ChunksLoaded)
	require.Equal(t, uint64(1), st.Generation)
	require.NotNil(t, st.LoadedAt)
}

func TestReloadFailureKeepsPreviousGeneration(t *testing.T) {
	src := catMatSource()
	svc := newTestService(src, nil, CacheOptions{})
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	src.set(nil, errors.New("disk unplugged"))
	_, err = svc.Reload(context.Background())
	require.Error(t, err)
	require.True(t, appErr.IsIngestion(err))
	require.Contains(t, err.Error(), "disk unplugged")

	st := svc.Status()
	require.Equal(t, 2, st.ChunksLoaded)
	require.Equal(t, uint64(1), st.Generation)
}

func TestReloadZeroDocumentsPublishesEmpty(t *testing.T) {
	src := catMatSource()
	svc := newTestService(src, nil, CacheOptions{})
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	src.set(nil, nil)
	res, err := svc.Reload(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.ChunkCount)
	st := svc.Status()
	require.False(t, st.Ready)
	require.Equal(t, uint64(2), st.Generation)

	out, err := svc.Answer(context.Background(), "cat")
	require.NoError(t, err)
	require.Equal(t, answer.MessageNoDocuments, out)
}

func TestSearchRanksCatFirst(t *testing.T) {
	svc := newTestService(catMatSource(), nil, CacheOptions{})
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	top, err := svc.Search(context.Background(), "  What did the CAT do ", 3)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "The cat sat on the mat.", top[0].Segment.Text)
	require.Equal(t, "pets.txt", top[0].Segment.Source)
	require.Greater(t, top[0].Score, top[1].Score)

	top, err = svc.Search(context.Background(), "cat", 0)
	require.NoError(t, err)
	require.Empty(t, top)
}

func TestAnswerFallbackExtraction(t *testing.T) {
	svc := newTestService(catMatSource(), nil, CacheOptions{})
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	out, err := svc.Answer(context.Background(), "what did the cat do")
	require.NoError(t, err)
	require.Contains(t, out, "The cat sat on the mat")

	// nothing scores above zero, so the first stored segment is returned whole
	out, err = svc.Answer(context.Background(), "quantum entanglement")
	require.NoError(t, err)
	require.Equal(t, "The cat sat on the mat.", out)
}

func TestEmptyQuestionRejected(t *testing.T) {
	svc := newTestService(catMatSource(), nil, CacheOptions{})
	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := svc.Answer(context.Background(), q)
		require.ErrorIs(t, err, appErr.ErrEmptyQuestion)
		require.True(t, appErr.IsInvalid(err))
		_, err = svc.Search(context.Background(), q, 3)
		require.ErrorIs(t, err, appErr.ErrEmptyQuestion)
	}
}

func TestAnswerModelFailureNeverSurfaces(t *testing.T) {
	p := &countingProvider{err: errors.New("connection reset")}
	synth := answer.New(answer.Config{Enabled: true, APIKey: "k", Model: "m"}, p)
	svc := newTestService(catMatSource(), synth, CacheOptions{})
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	out, err := svc.Answer(context.Background(), "where do dogs bark loudly")
	require.NoError(t, err)
	require.Equal(t, "Dogs bark loudly at night", out)
	require.Equal(t, int32(1), p.calls.Load())
}

func TestAnswerCachePerGeneration(t *testing.T) {
	p := &countingProvider{out: "On the mat."}
	synth := answer.New(answer.Config{Enabled: true, APIKey: "k", Model: "m"}, p)
	svc := newTestService(catMatSource(), synth, CacheOptions{Size: 8, TTL: time.Minute})
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	for _, q := range []string{"Where is the cat", "where  is the CAT"} {
		out, err := svc.Answer(context.Background(), q)
		require.NoError(t, err)
		require.Equal(t, "On the mat.", out)
	}
	require.Equal(t, int32(1), p.calls.Load())

	_, err = svc.Reload(context.Background())
	require.NoError(t, err)
	_, err = svc.Answer(context.Background(), "where is the cat")
	require.NoError(t, err)
	require.Equal(t, int32(2), p.calls.Load())
}

func TestAnswerPromptKeepsLiteralQuestion(t *testing.T) {
	p := &countingProvider{out: "On the mat."}
	synth := answer.New(answer.Config{Enabled: true, APIKey: "k", Model: "m"}, p)
	svc := newTestService(catMatSource(), synth, CacheOptions{Size: 8, TTL: time.Minute})
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	question := "Did the Cat sit on the NASA  mat?"
	out, err := svc.Answer(context.Background(), question)
	require.NoError(t, err)
	require.Equal(t, "On the mat.", out)
	prompt := p.lastPrompt()
	require.Contains(t, prompt, "[Document 1]\nThe cat sat on the mat.")
	require.Contains(t, prompt, "\n\nQuestion: "+question+"\n\n")
	require.NotContains(t, prompt, "did the cat sit on the nasa mat?")

	// differently spaced and cased forms still share the cache entry
	_, err = svc.Answer(context.Background(), "did the cat sit on the nasa mat?")
	require.NoError(t, err)
	require.Equal(t, int32(1), p.calls.Load())
}

func TestAnswerFallbackNotCached(t *testing.T) {
	p := &countingProvider{err: errors.New("503 service unavailable")}
	synth := answer.New(answer.Config{Enabled: true, APIKey: "k", Model: "m"}, p)
	svc := newTestService(catMatSource(), synth, CacheOptions{Size: 8, TTL: time.Hour})
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	out, err := svc.Answer(context.Background(), "where is the cat")
	require.NoError(t, err)
	require.Equal(t, "The cat sat on the mat.", out)

	p.err = nil
	p.out = "On the mat."
	for i := 0; i < 2; i++ {
		out, err = svc.Answer(context.Background(), "where is the cat")
		require.NoError(t, err)
		require.Equal(t, "On the mat.", out)
	}
	require.Equal(t, int32(2), p.calls.Load())
}

func TestSearchSeesWholeGenerations(t *testing.T) {
	docsFor := func(tag string, n int) []ingest.Document {
		docs := make([]ingest.Document, n)
		for i := range docs {
			docs[i] = ingest.Document{Name: tag, Text: fmt.Sprintf("shared %s sentence number %d.", tag, i)}
		}
		return docs
	}
	src := &fakeSource{docs: docsFor("alpha", 4)}
	svc := newTestService(src, nil, CacheOptions{})
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ctx.Err() == nil; i++ {
			if i%2 == 0 {
				src.set(docsFor("beta", 7), nil)
			} else {
				src.set(docsFor("alpha", 4), nil)
			}
			_, _ = svc.Reload(ctx)
		}
	}()

	for i := 0; i < 200; i++ {
		top, err := svc.Search(context.Background(), "shared sentence", 10)
		require.NoError(t, err)
		require.NotEmpty(t, top)
		tag := top[0].Segment.Source
		if tag == "alpha" {
			require.Len(t, top, 4)
		} else {
			require.Len(t, top, 7)
		}
		for j, c := range top {
			require.Equal(t, tag, c.Segment.Source)
			require.True(t, strings.HasPrefix(c.Segment.Text, "shared "+tag))
			if j > 0 {
				require.LessOrEqual(t, c.Score, top[j-1].Score)
			}
		}
	}
	cancel()
	wg.Wait()
}

func TestConcurrentReloadsSerialize(t *testing.T) {
	svc := newTestService(catMatSource(), nil, CacheOptions{})
	var wg sync.WaitGroup
	ids := make([]uint64, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Reload(context.Background())
			if err == nil {
				ids[i] = res.Generation
			}
		}(i)
	}
	wg.Wait()
	seen := map[uint64]bool{}
	for _, id := range ids {
		require.NotZero(t, id)
		require.False(t, seen[id])
		seen[id] = true
	}
	require.Equal(t, uint64(8), svc.Status().Generation)
}
