package answer

import (
	"context"
	"strings"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/metrics"
	"github.com/akolanti/DocuSense/internal/rag/llm"
)

// StreamAnswer returns fragments as the model produces them. Errors up to and
// including the model's first token are returned directly and no stream is
// opened. Once open, the stream ends with exactly one done or error fragment,
// unless ctx is cancelled, in which case it just closes and nothing is saved.
//
// A weak first answer is followed by a retract fragment and the regenerated
// answer.
func (o *Orchestrator) StreamAnswer(ctx context.Context, question string, identity docModel.DocumentIdentity) (<-chan docModel.Fragment, error) {
	t := o.newTracker(ctx, identity)

	t.to(StateRetrieving)
	r, err := o.retrieve(ctx, question, identity)
	if err != nil {
		t.to(StateFailed)
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)

	t.to(StateGenerating)
	tokens := o.produce(streamCtx, r.cfg, BuildPrompt(question, r.chunks, r.turns))
	first, err := firstToken(streamCtx, tokens)
	if err != nil {
		cancel()
		t.to(StateFailed)
		return nil, err
	}

	out := make(chan docModel.Fragment, o.bufferSize)
	go func() {
		defer cancel()
		defer close(out)
		o.consume(streamCtx, question, identity, r, t, first, tokens, out)
	}()
	return out, nil
}

// produce runs the model in its own goroutine. The channel always ends with an
// EOS token carrying the model error, unless ctx ends first.
func (o *Orchestrator) produce(ctx context.Context, cfg docModel.ModelConfig, prompt string) <-chan docModel.StreamToken {
	tokens := make(chan docModel.StreamToken, o.bufferSize)
	go func() {
		defer close(tokens)
		err := o.models.Stream(ctx, cfg, prompt, tokens)
		_ = llm.Send(ctx, tokens, docModel.StreamToken{EOS: true, Err: err})
	}()
	return tokens
}

func next(ctx context.Context, tokens <-chan docModel.StreamToken) docModel.StreamToken {
	select {
	case tok, ok := <-tokens:
		if !ok {
			return docModel.StreamToken{EOS: true, Err: ctx.Err()}
		}
		return tok
	case <-ctx.Done():
		return docModel.StreamToken{EOS: true, Err: ctx.Err()}
	}
}

func firstToken(ctx context.Context, tokens <-chan docModel.StreamToken) (docModel.StreamToken, error) {
	tok := next(ctx, tokens)
	if tok.EOS && tok.Err != nil {
		return tok, tok.Err
	}
	return tok, nil
}

func (o *Orchestrator) consume(ctx context.Context, question string, identity docModel.DocumentIdentity, r retrieval, t *tracker,
	first docModel.StreamToken, tokens <-chan docModel.StreamToken, out chan<- docModel.Fragment) {

	emit := func(f docModel.Fragment) bool {
		select {
		case out <- f:
			metrics.StreamFragment(string(f.Kind))
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		t.to(StateFailed)
		if ctx.Err() != nil {
			return
		}
		emit(docModel.Fragment{Kind: docModel.FragmentError, Err: err})
	}

	text, emitted, err := o.relay(ctx, &first, tokens, emit)
	if err != nil {
		fail(err)
		return
	}

	fallback := false
	if decision := ClassifyAnswer(text); decision.IsWeak {
		t.to(StateWeak)
		t.log.Info("weak streamed answer, falling back to web search", "reason", decision.Reason)
		metrics.AnswerFallback()
		if emitted && !emit(docModel.Fragment{Kind: docModel.FragmentRetract}) {
			return
		}

		t.to(StateFallbackSearch)
		web := o.search.Search(ctx, question, config.WebSearchMaxResults)

		t.to(StateRegenerating)
		regen := o.produce(ctx, r.cfg, BuildFallbackPrompt(question, r.chunks, r.turns, web))
		text, _, err = o.relay(ctx, nil, regen, emit)
		if err != nil {
			fail(err)
			return
		}
		fallback = true
	}

	if err := o.complete(ctx, question, identity, text, fallback); err != nil {
		fail(err)
		return
	}
	t.to(StateDone)
	emit(docModel.Fragment{Kind: docModel.FragmentDone, Text: text, Fallback: fallback})
}

// relay reassembles tokens into token fragments until EOS and returns the
// normalized full text.
func (o *Orchestrator) relay(ctx context.Context, first *docModel.StreamToken, tokens <-chan docModel.StreamToken,
	emit func(docModel.Fragment) bool) (string, bool, error) {

	re := NewReassembler(o.minFlush)
	var full strings.Builder
	emitted := false

	send := func(s string) error {
		full.WriteString(s)
		emitted = true
		if !emit(docModel.Fragment{Kind: docModel.FragmentToken, Text: s}) {
			return ctx.Err()
		}
		return nil
	}

	var tok docModel.StreamToken
	for {
		if first != nil {
			tok, first = *first, nil
		} else {
			tok = next(ctx, tokens)
		}
		if tok.EOS {
			break
		}
		if s, ok := re.Push(tok.Text); ok {
			if err := send(s); err != nil {
				return "", emitted, err
			}
		}
	}
	if tok.Err != nil {
		return "", emitted, tok.Err
	}
	if s := re.Flush(); s != "" {
		if err := send(s); err != nil {
			return "", emitted, err
		}
	}
	return full.String(), emitted, nil
}
