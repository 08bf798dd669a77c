package cli

import (
	"context"
	"fmt"
)

// Run is the high-level entrypoint used by main and by black-box tests. It
// takes the arguments after argv[0] and returns the exit code plus any error.
func Run(ctx context.Context, args []string, streams IO) (res Result, err error) {
	a := &app{streams: streams}
	root := newRootCommand(a)
	root.SetArgs(args)

	defer func() {
		if r := recover(); r != nil {
			res = Result{ExitCode: ExitFailure}
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := root.ExecuteContext(ctx); err != nil {
		if !a.entered {
			err = asInvocationError(err)
		}
		a.result.ExitCode = ExitCode(err)
		return a.result, err
	}
	if !a.entered {
		// --help, --version or a bare root command.
		a.result.ExitCode = ExitSuccess
	}
	return a.result, nil
}

func asInvocationError(err error) error {
	if ExitCode(err) == ExitInvalidInvocation {
		return err
	}
	return invalidInvocationf("%v", err)
}
