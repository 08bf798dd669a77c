package artifact

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Stager copies selected artifacts from a source tree into a target tree,
// preserving each file's path relative to the source root.
type Stager struct {
	// Source is the tree holding transformed files.
	Source string

	// Target is the staging tree handed to the build tool.
	Target string

	logger *zap.Logger
}

// StagingResult reports what a Stage call copied.
type StagingResult struct {
	// Copied is the number of files copied.
	Copied int

	// Paths are the copied files relative to Source, in walk order.
	Paths []string
}

// NewStager creates a Stager from source to target.
func NewStager(source, target string, logger *zap.Logger) *Stager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stager{Source: source, Target: target, logger: logger.Named("stager")}
}

// Stem returns the identifier used to match artifacts: the case-folded
// basename without its extension. A name made only of a leading-dot part,
// such as ".profile", has no extension.
func Stem(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if strings.TrimLeft(base, ".") == strings.TrimPrefix(ext, ".") {
		ext = ""
	}
	return strings.ToLower(strings.TrimSuffix(base, ext))
}

// StemSet builds the set of stems for the selected artifact names.
func StemSet(selected []string) map[string]struct{} {
	set := make(map[string]struct{}, len(selected))
	for _, name := range selected {
		set[Stem(name)] = struct{}{}
	}
	return set
}

// Stage walks Source and copies every file whose stem is selected to the
// same relative path under Target, creating directories as needed.
//
// Target is always created. A missing Source stages nothing.
func (s *Stager) Stage(selected []string) (*StagingResult, error) {
	if err := os.MkdirAll(s.Target, 0o755); err != nil {
		return nil, errors.Wrap(err, "create staging dir")
	}

	res := &StagingResult{Paths: []string{}}
	if _, err := os.Stat(s.Source); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("source tree missing, nothing staged", zap.String("source", s.Source))
			return res, nil
		}
		return nil, errors.Wrap(err, "stat source tree")
	}

	stems := StemSet(selected)
	if len(stems) == 0 {
		return res, nil
	}

	err := filepath.WalkDir(s.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := stems[Stem(d.Name())]; !ok {
			return nil
		}
		if !stageable(path, d) {
			s.logger.Debug("skipping non-regular entry", zap.String("path", path))
			return nil
		}
		rel, err := filepath.Rel(s.Source, path)
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(s.Target, rel)); err != nil {
			return errors.Wrapf(err, "stage %s", rel)
		}
		res.Copied++
		res.Paths = append(res.Paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "walk source tree")
	}

	s.logger.Info("artifacts staged", zap.Int("copied", res.Copied), zap.String("target", s.Target))
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// stageable reports whether d is a regular file or a symlink resolving to one.
func stageable(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
