package video

import (
	"context"
	"fmt"
	"os"
	"sync"
)

type runnerCall struct {
	stage string
	bin   string
	args  []string
}

// fakeRunner scripts the external processes: it records every call, fails the
// stages it is told to, and fabricates the output files a successful tool run
// would have produced.
type fakeRunner struct {
	mu         sync.Mutex
	failStages map[string]bool
	failFirstN map[string]int
	probeOut   map[string]string
	calls      []runnerCall
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		failStages: map[string]bool{},
		failFirstN: map[string]int{},
		probeOut:   map[string]string{},
	}
}

func (f *fakeRunner) Run(ctx context.Context, stage, bin string, args []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runnerCall{stage: stage, bin: bin, args: args})

	if n := f.failFirstN[stage]; n > 0 {
		f.failFirstN[stage] = n - 1
		return &StageError{Stage: stage, Err: fmt.Errorf("scripted failure")}
	}
	if f.failStages[stage] {
		return &StageError{Stage: stage, Err: fmt.Errorf("scripted failure")}
	}

	// Fabricate the file the real tool would write.
	for i, a := range args {
		if i+1 >= len(args) {
			break
		}
		switch a {
		case "-y":
			os.WriteFile(args[i+1], []byte("media"), 0o644)
		case "-o":
			os.WriteFile(args[i+1]+".mp3", []byte("audio"), 0o644)
		}
	}
	return nil
}

func (f *fakeRunner) Output(ctx context.Context, stage, bin string, args []string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, runnerCall{stage: stage, bin: bin, args: args})

	if f.failStages[stage] {
		return nil, &StageError{Stage: stage, Err: fmt.Errorf("scripted failure")}
	}
	return []byte(f.probeOut[stage]), nil
}

func (f *fakeRunner) stages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.stage
	}
	return out
}

func (f *fakeRunner) callsFor(stage string) []runnerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []runnerCall
	for _, c := range f.calls {
		if c.stage == stage {
			out = append(out, c)
		}
	}
	return out
}
