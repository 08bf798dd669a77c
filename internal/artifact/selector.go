package artifact

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Select returns the names of all successful records in the log at path, in
// file order. Duplicates are kept.
//
// A missing log is not an error: it yields an empty selection, which
// downstream steps treat as "nothing staged".
func Select(path string, schema Schema) ([]string, error) {
	selected := []string{}
	err := scanLines(path, func(line string) {
		if rec, ok := schema.ParseRecord(line); ok && rec.Success {
			selected = append(selected, rec.Name)
		}
	})
	if err != nil {
		return nil, err
	}
	return selected, nil
}

// CountRecords returns the number of lines in the log at path that reference
// any of the recognized extensions. A missing log counts as zero.
func CountRecords(path string, schema Schema, extensions []string) (int, error) {
	total := 0
	err := scanLines(path, func(line string) {
		if schema.References(line, extensions) {
			total++
		}
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func scanLines(path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "open transformation log")
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			fn(strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read transformation log %s", path)
		}
	}
}
