package docModel

// StreamToken is one unit from the model. EOS marks the end of the stream so an
// empty Text is never mistaken for completion.
type StreamToken struct {
	Text string
	EOS  bool
	Err  error
}

type FragmentKind string

const (
	FragmentToken   FragmentKind = "token"
	FragmentRetract FragmentKind = "retract" // the text streamed so far was a weak answer and is being replaced
	FragmentDone    FragmentKind = "done"
	FragmentError   FragmentKind = "error"
)

// Fragment is what the orchestrator hands to the stream writer.
type Fragment struct {
	Kind     FragmentKind
	Text     string
	Fallback bool
	Err      error
}
