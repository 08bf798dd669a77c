package core

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrStart marks a command whose process could not be started.
	ErrStart = errors.New("command could not be started")

	// ErrInterrupted marks a command aborted because its context was cancelled.
	ErrInterrupted = errors.New("command interrupted")
)

// Runner executes Commands one at a time, capturing each invocation's output
// in its own log file under LogDir.
//
// The runner does not inspect output content. It only reports the exit status.
type Runner struct {
	// ProjectRoot is the default working directory.
	ProjectRoot string

	// LogDir is the run-log directory. It is created on first use.
	LogDir string

	logger *zap.Logger
	now    func() time.Time
	seq    atomic.Uint64
}

// NewRunner creates a Runner rooted at projectRoot that writes logs to logDir.
func NewRunner(projectRoot, logDir string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		ProjectRoot: projectRoot,
		LogDir:      logDir,
		logger:      logger.Named("runner"),
		now:         time.Now,
	}
}

// Run executes c and waits for it to exit.
//
// A non-zero exit is reported through Result.ExitCode with a nil error. The
// returned error wraps ErrStart when the process could not be started and
// ErrInterrupted when ctx was cancelled; in the latter case the child's whole
// process group is killed before Run returns.
func (r *Runner) Run(ctx context.Context, c Command) (*Result, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(ErrInterrupted, "%s: %v", c.Description, err)
	}

	if err := os.MkdirAll(r.LogDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create run log dir")
	}
	logPath := r.nextLogPath(c)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "create command log")
	}
	defer logFile.Close()

	dir := c.Dir
	if dir == "" {
		dir = r.ProjectRoot
	}

	cmd := exec.Command(c.Argv[0], c.Argv[1:]...)
	cmd.Dir = dir
	cmd.Env = mergeEnv(os.Environ(), c.Env)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// Own process group so an interrupt can take down the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	log := r.logger.With(
		zap.String("command", c.String()),
		zap.String("dir", dir),
		zap.String("log", logPath),
	)
	log.Debug("starting command")

	start := r.now()
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(logFile, "%s: %v\n", c.Argv[0], err)
		log.Warn("command failed to start", zap.Error(err))
		return nil, errors.Wrapf(ErrStart, "%s: %v", c.Argv[0], err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		log.Warn("command interrupted")
		return nil, errors.Wrapf(ErrInterrupted, "%s: %v", c.Description, ctx.Err())
	case waitErr = <-done:
	}

	res := &Result{LogPath: logPath, Duration: r.now().Sub(start)}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, errors.Wrapf(ErrStart, "%s: %v", c.Argv[0], waitErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	log.Debug("command finished", zap.Int("exit_code", res.ExitCode), zap.Duration("duration", res.Duration))
	return res, nil
}

// nextLogPath returns <LogDir>/<stem>_<unix>_<seq>.log. The sequence number is
// monotonic per runner, so two commands started in the same second never
// share a file.
func (r *Runner) nextLogPath(c Command) string {
	n := r.seq.Add(1)
	name := fmt.Sprintf("%s_%d_%03d.log", c.logStem(), r.now().Unix(), n)
	return filepath.Join(r.LogDir, name)
}

// mergeEnv appends the declared variables to base in sorted key order.
// exec.Cmd uses the last value of a duplicated key, so declared values win.
func mergeEnv(base []string, declared map[string]string) []string {
	out := make([]string, 0, len(base)+len(declared))
	out = append(out, base...)
	keys := make([]string, 0, len(declared))
	for k := range declared {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+declared[k])
	}
	return out
}
