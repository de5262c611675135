package answer

import (
	"context"
	"strings"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/metrics"
	"github.com/akolanti/DocuSense/internal/rag/embedding"
	"github.com/akolanti/DocuSense/internal/rag/memory"
	"github.com/akolanti/DocuSense/internal/rag/router"
	"github.com/akolanti/DocuSense/internal/rag/vectorDB"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

type IndexProvider interface {
	GetOrBuild(ctx context.Context, identity docModel.DocumentIdentity) (vectorDB.Index, error)
	Invalidate(ctx context.Context, identity docModel.DocumentIdentity) error
}

type Inference interface {
	Generate(ctx context.Context, cfg docModel.ModelConfig, prompt string) (string, error)
	Stream(ctx context.Context, cfg docModel.ModelConfig, prompt string, out chan<- docModel.StreamToken) error
}

type WebSearch interface {
	Search(ctx context.Context, query string, maxResults int) string
}

type State string

const (
	StateInit           State = "INIT"
	StateRetrieving     State = "RETRIEVING"
	StateGenerating     State = "GENERATING"
	StateWeak           State = "WEAK"
	StateFallbackSearch State = "FALLBACK_SEARCH"
	StateRegenerating   State = "REGENERATING"
	StateDone           State = "DONE"
	StateFailed         State = "FAILED"
)

type Source struct {
	Source   string  `json:"source"`
	Page     int     `json:"page"`
	Sequence int     `json:"sequence"`
	Score    float32 `json:"score"`
}

type Result struct {
	Answer       string
	FallbackUsed bool
	Decision     docModel.FallbackDecision
	Sources      []Source
	States       []State
}

type Orchestrator struct {
	indexes  IndexProvider
	embedder embedding.Embedder
	memory   memory.Store
	models   Inference
	search   WebSearch
	history  jobModel.HistoryStore

	topK         int
	memoryWindow int
	bufferSize   int
	minFlush     int
	logger       *logger_i.Logger
}

// New wires the orchestrator. history may be nil.
func New(indexes IndexProvider, embedder embedding.Embedder, mem memory.Store, models Inference, search WebSearch, history jobModel.HistoryStore) *Orchestrator {
	return &Orchestrator{
		indexes:      indexes,
		embedder:     embedder,
		memory:       mem,
		models:       models,
		search:       search,
		history:      history,
		topK:         config.GetInt("RETRIEVAL_TOP_K", config.RetrievalTopK),
		memoryWindow: config.GetInt("MEMORY_WINDOW", config.MemoryWindow),
		bufferSize:   config.GetInt("STREAM_BUFFER_SIZE", config.StreamBufferSize),
		minFlush:     config.GetInt("STREAM_MIN_FLUSH_SIZE", config.StreamMinFlushSize),
		logger:       logger_i.NewLogger("answer"),
	}
}

// tracker records the state path of one request.
type tracker struct {
	states []State
	log    *logger_i.Logger
}

func (t *tracker) to(s State) {
	t.states = append(t.states, s)
	t.log.Debug("state", "state", s)
}

func (o *Orchestrator) newTracker(ctx context.Context, identity docModel.DocumentIdentity) *tracker {
	t := &tracker{log: o.logger.WithTrace(ctx).With("identity", identity.Key())}
	t.to(StateInit)
	return t
}

// retrieval is everything the prompts need.
type retrieval struct {
	cfg    docModel.ModelConfig
	chunks []docModel.ScoredChunk
	turns  []docModel.Turn
}

func (o *Orchestrator) BuildOrReuseIndex(ctx context.Context, identity docModel.DocumentIdentity) error {
	_, err := o.indexes.GetOrBuild(ctx, identity)
	return err
}

// DropIndex forces the next question on the identity to rebuild its index.
func (o *Orchestrator) DropIndex(ctx context.Context, identity docModel.DocumentIdentity) error {
	if !identity.Valid() {
		return ragErrors.New(ragErrors.InvalidInput, "owner and document are required", nil)
	}
	return o.indexes.Invalidate(ctx, identity)
}

func (o *Orchestrator) retrieve(ctx context.Context, question string, identity docModel.DocumentIdentity) (retrieval, error) {
	if strings.TrimSpace(question) == "" {
		return retrieval{}, ragErrors.New(ragErrors.InvalidInput, "question is empty", nil)
	}

	idx, err := o.indexes.GetOrBuild(ctx, identity)
	if err != nil {
		return retrieval{}, err
	}

	vec, err := o.embedder.GetEmbedding(ctx, question)
	if err != nil {
		if ctx.Err() != nil {
			return retrieval{}, ctx.Err()
		}
		return retrieval{}, ragErrors.New(ragErrors.ModelInferenceFailed, "embedding question", err)
	}

	chunks, err := idx.Search(ctx, vec, o.topK)
	if err != nil {
		return retrieval{}, ragErrors.New(ragErrors.IndexLoadFailed, "searching index", err)
	}

	conv, err := o.memory.GetOrCreate(ctx, identity)
	if err != nil {
		return retrieval{}, err
	}

	return retrieval{
		cfg:    router.Resolve(string(identity.Domain)),
		chunks: chunks,
		turns:  conv.Recent(o.memoryWindow),
	}, nil
}

// Answer runs the full pipeline and returns the final text. A weak first
// answer triggers one web search and one regeneration, whose result is final.
func (o *Orchestrator) Answer(ctx context.Context, question string, identity docModel.DocumentIdentity) (Result, error) {
	start := time.Now()
	t := o.newTracker(ctx, identity)

	res, err := o.answer(ctx, question, identity, t)
	res.States = t.states
	if err != nil {
		t.to(StateFailed)
		res.States = t.states
		metrics.CaptureJobMetrics("answer_failed", time.Since(start))
		return res, err
	}
	metrics.CaptureJobMetrics("answer", time.Since(start))
	return res, nil
}

func (o *Orchestrator) answer(ctx context.Context, question string, identity docModel.DocumentIdentity, t *tracker) (Result, error) {
	t.to(StateRetrieving)
	r, err := o.retrieve(ctx, question, identity)
	if err != nil {
		return Result{}, err
	}
	res := Result{Sources: sourcesOf(r.chunks)}

	t.to(StateGenerating)
	text, err := o.models.Generate(ctx, r.cfg, BuildPrompt(question, r.chunks, r.turns))
	if err != nil {
		return res, err
	}
	text = Normalize(text)

	res.Decision = ClassifyAnswer(text)
	if res.Decision.IsWeak {
		t.to(StateWeak)
		t.log.Info("weak answer, falling back to web search", "reason", res.Decision.Reason)
		metrics.AnswerFallback()

		t.to(StateFallbackSearch)
		web := o.search.Search(ctx, question, config.WebSearchMaxResults)

		t.to(StateRegenerating)
		text, err = o.models.Generate(ctx, r.cfg, BuildFallbackPrompt(question, r.chunks, r.turns, web))
		if err != nil {
			return res, err
		}
		text = Normalize(text)
		res.FallbackUsed = true
	}

	res.Answer = text
	if err := o.complete(ctx, question, identity, text, res.FallbackUsed); err != nil {
		return res, err
	}
	t.to(StateDone)
	return res, nil
}

// complete persists a finished exchange. Memory failures fail the call,
// history failures are only logged.
func (o *Orchestrator) complete(ctx context.Context, question string, identity docModel.DocumentIdentity, answer string, fallback bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.memory.Append(ctx, identity, question, answer); err != nil {
		return err
	}
	if o.history == nil {
		return nil
	}
	rec := docModel.HistoryRecord{
		OwnerId:     identity.OwnerId,
		DocumentRef: identity.DocumentRef,
		Question:    question,
		Answer:      answer,
		Domain:      identity.Domain,
		Fallback:    fallback,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.history.Log(ctx, rec); err != nil {
		o.logger.WithTrace(ctx).Warn("history log failed", "identity", identity.Key(), "error", err)
	}
	return nil
}

func sourcesOf(chunks []docModel.ScoredChunk) []Source {
	out := make([]Source, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, Source{Source: c.Chunk.Source, Page: c.Chunk.PageNum, Sequence: c.Chunk.Sequence, Score: c.Score})
	}
	return out
}
