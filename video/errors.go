package video

import (
	"fmt"
	"strings"
)

// ValidationError reports a missing or malformed request field. It is raised
// before any external process runs, so nothing needs cleaning up.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// SourceNotFoundError reports a reference that is neither a URL nor an
// existing local path, or a URL that could not be fetched.
type SourceNotFoundError struct {
	Ref string
	Err error
}

func (e *SourceNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source not found: %s: %v", e.Ref, e.Err)
	}
	return fmt.Sprintf("source not found: %s", e.Ref)
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

// StrategyFailure records why one extraction strategy was abandoned.
type StrategyFailure struct {
	Strategy string
	Reason   string
}

// ExtractionExhaustedError aggregates every strategy failure once the whole
// fallback chain has been tried.
type ExtractionExhaustedError struct {
	URL      string
	Failures []StrategyFailure
}

func (e *ExtractionExhaustedError) Error() string {
	reasons := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		reasons[i] = fmt.Sprintf("%s: %s", f.Strategy, f.Reason)
	}
	return fmt.Sprintf("all extraction strategies failed for %s (%s)", e.URL, strings.Join(reasons, "; "))
}

// StageError reports a non-zero exit from an external-process stage. Stderr is
// size-bounded by the runner before it gets here.
type StageError struct {
	Stage  string
	Stderr string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FilesystemError reports an expected file missing after a stage claimed
// success. This usually means a tool version mismatch.
type FilesystemError struct {
	Stage string
	Path  string
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("stage %s reported success but %s does not exist", e.Stage, e.Path)
}
