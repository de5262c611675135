package answer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/llm"
	"github.com/akolanti/DocuSense/internal/rag/memory"
	"github.com/akolanti/DocuSense/internal/rag/vectorDB"
	"github.com/google/go-cmp/cmp"
)

type mockIndexes struct {
	getFunc func(ctx context.Context, identity docModel.DocumentIdentity) (vectorDB.Index, error)
	dropped atomic.Int32
}

func (m *mockIndexes) GetOrBuild(ctx context.Context, identity docModel.DocumentIdentity) (vectorDB.Index, error) {
	return m.getFunc(ctx, identity)
}

func (m *mockIndexes) Invalidate(ctx context.Context, identity docModel.DocumentIdentity) error {
	m.dropped.Add(1)
	return nil
}

type mockEmbedder struct{}

func (mockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (mockEmbedder) BatchEmbedding(ctx context.Context, chunks []string, isHuge bool) ([][]float32, error) {
	return nil, errors.New("not used")
}

// mockInference answers the n-th call (starting at 0) with replies[n].
type mockInference struct {
	mu      sync.Mutex
	prompts []string
	replies []string
	errs    []error
	// streamFunc overrides streaming when set
	streamFunc func(ctx context.Context, call int, out chan<- docModel.StreamToken) error
}

func (m *mockInference) call(prompt string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return len(m.prompts) - 1
}

func (m *mockInference) reply(n int) (string, error) {
	if n < len(m.errs) && m.errs[n] != nil {
		return "", m.errs[n]
	}
	if n < len(m.replies) {
		return m.replies[n], nil
	}
	return "", errors.New("unexpected model call")
}

func (m *mockInference) Generate(ctx context.Context, cfg docModel.ModelConfig, prompt string) (string, error) {
	return m.reply(m.call(prompt))
}

func (m *mockInference) Stream(ctx context.Context, cfg docModel.ModelConfig, prompt string, out chan<- docModel.StreamToken) error {
	n := m.call(prompt)
	if m.streamFunc != nil {
		return m.streamFunc(ctx, n, out)
	}
	text, err := m.reply(n)
	if err != nil {
		return err
	}
	for _, w := range strings.SplitAfter(text, " ") {
		if err := llm.Send(ctx, out, docModel.StreamToken{Text: w}); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockInference) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

type mockSearch struct {
	calls atomic.Int32
}

func (m *mockSearch) Search(ctx context.Context, query string, maxResults int) string {
	m.calls.Add(1)
	return "[1] Paris - Capital of France (https://en.wikipedia.org/wiki/Paris)"
}

type mockHistory struct {
	mu      sync.Mutex
	records []docModel.HistoryRecord
}

func (m *mockHistory) Log(ctx context.Context, r docModel.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *mockHistory) List(ctx context.Context, owner, ref string) ([]docModel.HistoryRecord, error) {
	return nil, nil
}

var doc = docModel.NewIdentity("alice", "/docs/geo.pdf", "education")

func readyIndex() *mockIndexes {
	idx := vectorDB.NewMemoryIndex(doc.Key(), time.Now(), []docModel.Chunk{
		{Text: "France is a country in Europe.", Source: "/docs/geo.pdf", Sequence: 0, PageNum: 1},
		{Text: "Its cities include Lyon and Marseille.", Source: "/docs/geo.pdf", Sequence: 1, PageNum: 2},
	}, [][]float32{{1, 0}, {0.5, 0.5}})
	return &mockIndexes{getFunc: func(ctx context.Context, identity docModel.DocumentIdentity) (vectorDB.Index, error) {
		return idx, nil
	}}
}

type fixture struct {
	orch    *Orchestrator
	models  *mockInference
	search  *mockSearch
	memory  *memory.InMemoryStore
	history *mockHistory
}

func newFixture(indexes *mockIndexes, models *mockInference) fixture {
	f := fixture{models: models, search: &mockSearch{}, memory: memory.NewInMemoryStore(), history: &mockHistory{}}
	f.orch = New(indexes, mockEmbedder{}, f.memory, models, f.search, f.history)
	f.orch.minFlush = 8
	return f
}

func (f fixture) turns(t *testing.T) []docModel.Turn {
	t.Helper()
	c, err := f.memory.GetOrCreate(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	return c.Recent(0)
}

func TestClassifyAnswer(t *testing.T) {
	tests := []struct {
		text string
		weak bool
	}{
		{"I don't know", true},
		{"Paris is the capital of France.", false},
		{"", true},
		{"   ", true},
		{"Oslo", true},
		{"I’m not sure, the text is unclear.", true},
		{"Sorry, that information is not provided here.", true},
		{"The document does not contain a start date.", true},
		{"The lease starts on 1 March 2024 and runs for a year.", false},
	}
	for _, tt := range tests {
		if got := ClassifyAnswer(tt.text); got.IsWeak != tt.weak {
			t.Errorf("ClassifyAnswer(%q) = %+v; want weak=%v", tt.text, got, tt.weak)
		} else if got.IsWeak && got.Reason == "" {
			t.Errorf("ClassifyAnswer(%q) gave no reason", tt.text)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  Hello   world  ":         "Hello world",
		"Paris , France .":          "Paris, France.",
		"line one  \n  line two":    "line one\n line two",
		"tabs\t\tand  spaces":       "tabs and spaces",
		"(see page 2 ) for details": "(see page 2) for details",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q; want %q", in, got, want)
		}
	}
}

func reassemble(minFlush int, tokens []string) (string, int) {
	r := NewReassembler(minFlush)
	var sb strings.Builder
	n := 0
	for _, tok := range tokens {
		if s, ok := r.Push(tok); ok {
			sb.WriteString(s)
			n++
		}
	}
	if s := r.Flush(); s != "" {
		sb.WriteString(s)
		n++
	}
	return sb.String(), n
}

func TestReassembler_MatchesNormalizedText(t *testing.T) {
	inputs := []string{
		"  The tenant pays rent monthly .  Late fees apply , see clause 4 !\n\nQuestions?  ",
		"Leave: twenty days.Sick leave: ten days .",
		"日本語 のテキスト 。 Mixed   text , here.",
	}
	for _, in := range inputs {
		want := Normalize(in)
		runes := []rune(in)
		// every split point, and every token size from 1 to 5 runes
		for size := 1; size <= 5; size++ {
			var tokens []string
			for i := 0; i < len(runes); i += size {
				end := min(i+size, len(runes))
				tokens = append(tokens, string(runes[i:end]))
			}
			for _, minFlush := range []int{1, 5, 24} {
				got, _ := reassemble(minFlush, tokens)
				if diff := cmp.Diff(want, got); diff != "" {
					t.Errorf("size=%d minFlush=%d mismatch (-want +got):\n%s", size, minFlush, diff)
				}
			}
		}
	}
}

func TestReassembler_FlushesOnSentenceEnd(t *testing.T) {
	r := NewReassembler(100)
	if _, ok := r.Push("Short"); ok {
		t.Error("should buffer below the minimum size")
	}
	s, ok := r.Push(" sentence.")
	if !ok || s != "Short sentence." {
		t.Errorf("Push = %q, %v; want a flush at the full stop", s, ok)
	}
	if rest := r.Flush(); rest != "" {
		t.Errorf("nothing should remain, got %q", rest)
	}
}

func TestReassembler_TrailingSpaceWaitsForNextToken(t *testing.T) {
	r := NewReassembler(100)
	if s, ok := r.Push("Late fees apply "); ok {
		t.Errorf("a trailing space alone should not flush, got %q", s)
	}
	s, ok := r.Push(", see clause 4.")
	if !ok || s != "Late fees apply, see clause 4." {
		t.Errorf("Push = %q, %v; want the space before the comma dropped", s, ok)
	}

	// across a size flush the held space still meets the punctuation
	r = NewReassembler(1)
	first, _ := r.Push("apply ")
	second, _ := r.Push(", see.")
	if got := first + second + r.Flush(); got != "apply, see." {
		t.Errorf("fragments joined = %q, want %q", got, "apply, see.")
	}
}

func TestReassembler_FlushesOnSize(t *testing.T) {
	_, fragments := reassemble(4, []string{"abcd", "efgh", "ij"})
	if fragments != 3 {
		t.Errorf("expected 3 fragments, got %d", fragments)
	}
}

func TestAnswer_StrongAnswer(t *testing.T) {
	f := newFixture(readyIndex(), &mockInference{replies: []string{"Lyon and  Marseille are French cities ."}})

	res, err := f.orch.Answer(context.Background(), "Name two cities.", doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "Lyon and Marseille are French cities." {
		t.Errorf("answer = %q", res.Answer)
	}
	if res.FallbackUsed || f.search.calls.Load() != 0 {
		t.Error("a strong answer must not search")
	}
	if diff := cmp.Diff([]State{StateInit, StateRetrieving, StateGenerating, StateDone}, res.States); diff != "" {
		t.Errorf("states (-want +got):\n%s", diff)
	}
	if len(res.Sources) != 2 || res.Sources[0].Page != 1 {
		t.Errorf("unexpected sources %+v", res.Sources)
	}
	if turns := f.turns(t); len(turns) != 1 || turns[0].Answer != res.Answer {
		t.Errorf("memory = %+v", turns)
	}
	if len(f.history.records) != 1 || f.history.records[0].Domain != docModel.DomainEducation {
		t.Errorf("history = %+v", f.history.records)
	}
	if p := f.models.Prompts()[0]; !strings.Contains(p, "France is a country in Europe.") || !strings.Contains(p, "Name two cities.") {
		t.Errorf("prompt is missing context or question:\n%s", p)
	}
}

func TestAnswer_WeakAnswerSearchesOnceAndRegenerates(t *testing.T) {
	f := newFixture(readyIndex(), &mockInference{replies: []string{"I don't know", "Paris is the capital of France."}})

	res, err := f.orch.Answer(context.Background(), "What is the capital of France?", doc)
	if err != nil {
		t.Fatal(err)
	}
	if f.search.calls.Load() != 1 {
		t.Errorf("expected exactly one search, got %d", f.search.calls.Load())
	}
	if !res.FallbackUsed || res.Answer != "Paris is the capital of France." {
		t.Errorf("unexpected result %+v", res)
	}
	want := []State{StateInit, StateRetrieving, StateGenerating, StateWeak, StateFallbackSearch, StateRegenerating, StateDone}
	if diff := cmp.Diff(want, res.States); diff != "" {
		t.Errorf("states (-want +got):\n%s", diff)
	}
	prompts := f.models.Prompts()
	if len(prompts) != 2 || !strings.Contains(prompts[1], "did not answer") || !strings.Contains(prompts[1], "wikipedia.org/wiki/Paris") {
		t.Errorf("fallback prompt is wrong: %q", prompts)
	}
	if turns := f.turns(t); len(turns) != 1 || turns[0].Answer != "Paris is the capital of France." {
		t.Errorf("only the final answer is remembered, got %+v", turns)
	}
}

func TestAnswer_RegeneratedAnswerIsFinalEvenIfWeak(t *testing.T) {
	f := newFixture(readyIndex(), &mockInference{replies: []string{"Not sure.", "Still not sure."}})

	res, err := f.orch.Answer(context.Background(), "Who?", doc)
	if err != nil {
		t.Fatal(err)
	}
	if res.Answer != "Still not sure." || f.search.calls.Load() != 1 || len(f.models.Prompts()) != 2 {
		t.Errorf("expected one fallback round, got %+v", res)
	}
}

func TestAnswer_MemoryFeedsNextPrompt(t *testing.T) {
	f := newFixture(readyIndex(), &mockInference{replies: []string{
		"France is a country in Europe.",
		"Its cities include Lyon and Marseille.",
	}})

	if _, err := f.orch.Answer(context.Background(), "Where is France?", doc); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orch.Answer(context.Background(), "And its cities?", doc); err != nil {
		t.Fatal(err)
	}
	second := f.models.Prompts()[1]
	if !strings.Contains(second, "User: Where is France?") || !strings.Contains(second, "Assistant: France is a country in Europe.") {
		t.Errorf("second prompt lacks the first exchange:\n%s", second)
	}
}

func TestAnswer_Failures(t *testing.T) {
	t.Run("empty question", func(t *testing.T) {
		f := newFixture(readyIndex(), &mockInference{})
		_, err := f.orch.Answer(context.Background(), "  ", doc)
		if !errors.Is(err, ragErrors.ErrInvalidInput) {
			t.Errorf("expected InvalidInput, got %v", err)
		}
	})

	t.Run("index build", func(t *testing.T) {
		indexes := &mockIndexes{getFunc: func(ctx context.Context, identity docModel.DocumentIdentity) (vectorDB.Index, error) {
			return nil, ragErrors.New(ragErrors.IndexBuildFailed, "extraction", ragErrors.ErrSourceUnavailable)
		}}
		f := newFixture(indexes, &mockInference{})
		res, err := f.orch.Answer(context.Background(), "q?", doc)
		if !errors.Is(err, ragErrors.ErrIndexBuildFailed) {
			t.Errorf("expected IndexBuildFailed, got %v", err)
		}
		if res.States[len(res.States)-1] != StateFailed {
			t.Errorf("expected FAILED as the last state, got %v", res.States)
		}
		if len(f.turns(t)) != 0 {
			t.Error("nothing must be remembered on failure")
		}
	})

	t.Run("model", func(t *testing.T) {
		f := newFixture(readyIndex(), &mockInference{errs: []error{ragErrors.New(ragErrors.ModelUnavailable, "groq", nil)}})
		_, err := f.orch.Answer(context.Background(), "q?", doc)
		if !errors.Is(err, ragErrors.ErrModelUnavailable) {
			t.Errorf("expected ModelUnavailable, got %v", err)
		}
	})
}

func TestDropIndex(t *testing.T) {
	indexes := readyIndex()
	f := newFixture(indexes, &mockInference{})
	if err := f.orch.DropIndex(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	if indexes.dropped.Load() != 1 {
		t.Error("expected the index to be invalidated")
	}
	if err := f.orch.DropIndex(context.Background(), docModel.DocumentIdentity{}); !errors.Is(err, ragErrors.ErrInvalidInput) {
		t.Errorf("expected InvalidInput, got %v", err)
	}
}

func collect(t *testing.T, ch <-chan docModel.Fragment) []docModel.Fragment {
	t.Helper()
	var out []docModel.Fragment
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, f)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func kinds(frags []docModel.Fragment) (tokens, retracts, dones, errs int) {
	for _, f := range frags {
		switch f.Kind {
		case docModel.FragmentToken:
			tokens++
		case docModel.FragmentRetract:
			retracts++
		case docModel.FragmentDone:
			dones++
		case docModel.FragmentError:
			errs++
		}
	}
	return
}

func TestStreamAnswer_ExactlyOneDone(t *testing.T) {
	f := newFixture(readyIndex(), &mockInference{replies: []string{"France  is a country in Europe , next to Spain."}})

	ch, err := f.orch.StreamAnswer(context.Background(), "Where is France?", doc)
	if err != nil {
		t.Fatal(err)
	}
	frags := collect(t, ch)

	tokens, retracts, dones, errs := kinds(frags)
	if dones != 1 || errs != 0 || retracts != 0 || tokens == 0 {
		t.Fatalf("unexpected fragment mix: %+v", frags)
	}
	last := frags[len(frags)-1]
	if last.Kind != docModel.FragmentDone {
		t.Fatalf("done must be the last fragment, got %s", last.Kind)
	}

	var sb strings.Builder
	for _, fr := range frags[:len(frags)-1] {
		sb.WriteString(fr.Text)
	}
	if sb.String() != "France is a country in Europe, next to Spain." || last.Text != sb.String() {
		t.Errorf("streamed %q, done carried %q", sb.String(), last.Text)
	}
	if turns := f.turns(t); len(turns) != 1 {
		t.Errorf("expected the exchange in memory, got %d turns", len(turns))
	}
}

func TestStreamAnswer_WeakAnswerIsRetracted(t *testing.T) {
	f := newFixture(readyIndex(), &mockInference{replies: []string{"I don't know", "Paris is the capital of France."}})

	ch, err := f.orch.StreamAnswer(context.Background(), "Capital of France?", doc)
	if err != nil {
		t.Fatal(err)
	}
	frags := collect(t, ch)

	_, retracts, dones, errs := kinds(frags)
	if retracts != 1 || dones != 1 || errs != 0 {
		t.Fatalf("unexpected fragment mix: %+v", frags)
	}
	if f.search.calls.Load() != 1 {
		t.Errorf("expected one search, got %d", f.search.calls.Load())
	}

	var after strings.Builder
	seenRetract := false
	for _, fr := range frags {
		if fr.Kind == docModel.FragmentRetract {
			seenRetract = true
			continue
		}
		if seenRetract && fr.Kind == docModel.FragmentToken {
			after.WriteString(fr.Text)
		}
	}
	done := frags[len(frags)-1]
	if after.String() != "Paris is the capital of France." || !done.Fallback || done.Text != after.String() {
		t.Errorf("regenerated stream %q, done %+v", after.String(), done)
	}
}

func TestStreamAnswer_ErrorBeforeFirstTokenOpensNoStream(t *testing.T) {
	f := newFixture(readyIndex(), &mockInference{errs: []error{ragErrors.New(ragErrors.ModelUnavailable, "no provider", nil)}})

	ch, err := f.orch.StreamAnswer(context.Background(), "q?", doc)
	if ch != nil {
		t.Error("no stream should be opened")
	}
	if !errors.Is(err, ragErrors.ErrModelUnavailable) {
		t.Errorf("expected ModelUnavailable, got %v", err)
	}
}

func TestStreamAnswer_IndexFailureOpensNoStream(t *testing.T) {
	indexes := &mockIndexes{getFunc: func(ctx context.Context, identity docModel.DocumentIdentity) (vectorDB.Index, error) {
		return nil, ragErrors.New(ragErrors.IndexBuildFailed, "boom", nil)
	}}
	f := newFixture(indexes, &mockInference{})
	ch, err := f.orch.StreamAnswer(context.Background(), "q?", doc)
	if ch != nil || !errors.Is(err, ragErrors.ErrIndexBuildFailed) {
		t.Errorf("expected IndexBuildFailed and no stream, got %v", err)
	}
}

func TestStreamAnswer_FailureAfterStart(t *testing.T) {
	models := &mockInference{streamFunc: func(ctx context.Context, call int, out chan<- docModel.StreamToken) error {
		_ = llm.Send(ctx, out, docModel.StreamToken{Text: "The answer is. "})
		return ragErrors.New(ragErrors.ModelInferenceFailed, "connection reset", nil)
	}}
	f := newFixture(readyIndex(), models)

	ch, err := f.orch.StreamAnswer(context.Background(), "q?", doc)
	if err != nil {
		t.Fatal(err)
	}
	frags := collect(t, ch)

	_, _, dones, errs := kinds(frags)
	if errs != 1 || dones != 0 || frags[len(frags)-1].Kind != docModel.FragmentError {
		t.Fatalf("expected a single terminal error, got %+v", frags)
	}
	if !errors.Is(frags[len(frags)-1].Err, ragErrors.ErrModelInferenceFailed) {
		t.Errorf("error fragment lost its kind: %v", frags[len(frags)-1].Err)
	}
	if len(f.turns(t)) != 0 {
		t.Error("a failed stream must not be remembered")
	}
}

func TestStreamAnswer_DisconnectPersistsNothing(t *testing.T) {
	started := make(chan struct{})
	stopped := make(chan struct{})
	models := &mockInference{streamFunc: func(ctx context.Context, call int, out chan<- docModel.StreamToken) error {
		defer close(stopped)
		_ = llm.Send(ctx, out, docModel.StreamToken{Text: "Partial answer that goes on. "})
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
	f := newFixture(readyIndex(), models)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.orch.StreamAnswer(ctx, "q?", doc)
	if err != nil {
		t.Fatal(err)
	}
	<-started
	cancel()
	frags := collect(t, ch)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("producer was not cancelled")
	}
	if _, _, dones, _ := kinds(frags); dones != 0 {
		t.Error("a cancelled stream must not complete")
	}
	if len(f.turns(t)) != 0 || len(f.history.records) != 0 {
		t.Error("a cancelled stream must not be persisted")
	}
}
