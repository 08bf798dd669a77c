package pipeline

import (
	"context"
	"strings"

	"phaseweaver/internal/core"
)

// stubRunner records every command and fails those whose argv contains a
// configured fragment.
type stubRunner struct {
	failOn   map[string]int
	errOn    map[string]error
	cancelOn string
	cancel   context.CancelFunc
	calls    []core.Command
}

func (s *stubRunner) Run(ctx context.Context, c core.Command) (*core.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.ErrInterrupted
	}
	s.calls = append(s.calls, c)
	joined := strings.Join(c.Argv, " ")
	if s.cancelOn != "" && strings.Contains(joined, s.cancelOn) {
		s.cancel()
		return nil, core.ErrInterrupted
	}
	for frag, err := range s.errOn {
		if strings.Contains(joined, frag) {
			return nil, err
		}
	}
	for frag, code := range s.failOn {
		if strings.Contains(joined, frag) {
			return &core.Result{ExitCode: code, LogPath: "/runlogs/" + frag + ".log"}, nil
		}
	}
	return &core.Result{LogPath: "/runlogs/ok.log"}, nil
}

func (s *stubRunner) argvs() []string {
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = strings.Join(c.Argv, " ")
	}
	return out
}
