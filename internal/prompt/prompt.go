// Package prompt collects run options interactively. It only produces an
// Options value; it never runs anything.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"phaseweaver/internal/config"
	"phaseweaver/internal/pipeline"
)

// ErrExit is returned when the user picks the exit choice.
var ErrExit = errors.New("exit requested")

// ErrInvalidChoice is returned for a mode choice outside the menu.
var ErrInvalidChoice = errors.New("invalid mode choice")

// Options is what the interactive session decided.
type Options struct {
	ProjectDir string
	Snapshot   string
	App        string
	Mode       pipeline.Mode
}

var menu = []struct {
	choice string
	label  string
	mode   pipeline.Mode
}{
	{"1", "Analysis Only", pipeline.ModeAnalysis},
	{"2", "Transform and Build", pipeline.ModeTransformBuild},
	{"3", "Full Pipeline (Analysis + Transform + Build)", pipeline.ModeFull},
}

// Prompter asks its questions on out and reads answers line by line from in.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	// DeliveriesDir is the project-relative directory listing snapshots.
	DeliveriesDir string
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, DeliveriesDir: "deliveries"}
}

// Collect runs the whole session. A missing project directory returns an
// error wrapping config.ErrProjectNotFound, with ProjectDir set to the answer;
// choosing exit returns ErrExit.
func (p *Prompter) Collect() (Options, error) {
	var opts Options

	dir, err := p.ask("Enter project directory path: ")
	if err != nil {
		return opts, err
	}
	p.println("")
	opts.ProjectDir = dir
	if info, err := os.Stat(dir); dir == "" || err != nil || !info.IsDir() {
		return opts, errors.Wrapf(config.ErrProjectNotFound, "directory '%s'", dir)
	}

	if opts.Snapshot, err = p.snapshot(dir); err != nil {
		return opts, err
	}
	p.println("")

	if opts.App, err = p.ask("Enter application name: "); err != nil {
		return opts, err
	}
	p.println("")

	if opts.Mode, err = p.mode(); err != nil {
		return opts, err
	}
	return opts, nil
}

func (p *Prompter) snapshot(projectDir string) (string, error) {
	snapshots, err := ListSnapshots(filepath.Join(projectDir, p.DeliveriesDir))
	if err != nil || snapshots == nil {
		return config.DefaultSnapshot, nil
	}

	p.println("Available snapshots:")
	for i, s := range snapshots {
		p.printf("  %d. %s\n", i+1, s)
	}
	p.println("")

	choice, err := p.ask("Select snapshot (or press Enter for default): ")
	if err != nil {
		return "", err
	}
	if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(snapshots) {
		return snapshots[n-1], nil
	}
	return config.DefaultSnapshot, nil
}

func (p *Prompter) mode() (pipeline.Mode, error) {
	p.println("Execution Modes:")
	for _, m := range menu {
		p.printf("  %s. %s\n", m.choice, m.label)
	}
	p.println("  4. Exit")
	p.println("")

	choice, err := p.ask("Select mode: ")
	if err != nil {
		return "", err
	}
	if choice == "4" {
		p.println("Exiting.")
		return "", ErrExit
	}
	for _, m := range menu {
		if m.choice == choice {
			return m.mode, nil
		}
	}
	return "", errors.Wrapf(ErrInvalidChoice, "%q", choice)
}

// ListSnapshots returns the names of the subdirectories of dir, sorted. A
// missing dir yields nil and no error.
func ListSnapshots(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// ask prints question and returns the trimmed answer. EOF after a partial
// line counts as an answer; EOF with nothing read is an error.
func (p *Prompter) ask(question string) (string, error) {
	p.printf("%s", question)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", errors.Wrap(err, "read answer")
	}
	return strings.TrimSpace(line), nil
}

func (p *Prompter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

func (p *Prompter) println(s string) {
	_, _ = fmt.Fprintln(p.out, s)
}
