package domain

import "fmt"

// Stage identifies where in the answer pipeline a failure occurred.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageHistory   Stage = "history"
	StageEmbed     Stage = "embed"
	StageSearch    Stage = "search"
	StageFragments Stage = "fragments"
	StageGenerate  Stage = "generate"
)

// ValidationError reports a request rejected before any collaborator call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RetrievalError wraps an embedding, index, or fragment store failure. The
// answer is not generated when retrieval fails.
type RetrievalError struct {
	Stage Stage
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed at %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError wraps a generation service failure. No partial answer is
// returned.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// HistoryError wraps a history backend failure. It is logged by callers and
// never blocks answer delivery.
type HistoryError struct {
	Op  string
	Err error
}

func (e *HistoryError) Error() string {
	return fmt.Sprintf("history %s failed: %v", e.Op, e.Err)
}

func (e *HistoryError) Unwrap() error { return e.Err }
