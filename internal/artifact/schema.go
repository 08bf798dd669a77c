package artifact

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultNamePattern matches an artifact file name with an extension.
var DefaultNamePattern = regexp.MustCompile(`^.+\.\w+$`)

// Schema describes how transformation log lines are read.
//
// A record is the first field matching NamePattern that is followed by a
// field holding an integer error count. The record succeeded when the trimmed
// error-count field equals SuccessValue exactly.
type Schema struct {
	// Delimiter separates fields, "|" by default.
	Delimiter string

	// NamePattern identifies the artifact file-name field.
	NamePattern *regexp.Regexp

	// SuccessValue is the literal error count of a successful record.
	SuccessValue string
}

// DefaultSchema returns the pipe-delimited, zero-error schema.
func DefaultSchema() Schema {
	return Schema{
		Delimiter:    "|",
		NamePattern:  DefaultNamePattern,
		SuccessValue: "0",
	}
}

// Record is one parsed transformation log line.
type Record struct {
	// Name is the artifact file name as written in the log.
	Name string

	// ErrorField is the raw, trimmed error-count field.
	ErrorField string

	// Errors is ErrorField parsed as an integer.
	Errors int

	// Success reports whether the record matched the success predicate.
	Success bool
}

// IsSuccess is the success predicate applied to an error-count field.
func (s Schema) IsSuccess(errorField string) bool {
	return strings.TrimSpace(errorField) == s.SuccessValue
}

// ParseRecord extracts the record carried by line, if any.
func (s Schema) ParseRecord(line string) (Record, bool) {
	if s.Delimiter == "" || !strings.Contains(line, s.Delimiter) {
		return Record{}, false
	}
	pattern := s.NamePattern
	if pattern == nil {
		pattern = DefaultNamePattern
	}

	fields := strings.Split(line, s.Delimiter)
	for i := 0; i+1 < len(fields); i++ {
		name := strings.TrimSpace(fields[i])
		if !pattern.MatchString(name) {
			continue
		}
		errField := strings.TrimSpace(fields[i+1])
		n, err := strconv.Atoi(errField)
		if err != nil {
			continue
		}
		return Record{
			Name:       name,
			ErrorField: errField,
			Errors:     n,
			Success:    s.IsSuccess(errField),
		}, true
	}
	return Record{}, false
}

// References reports whether line is a delimited line mentioning any of the
// recognized extensions. Matching is by substring, so "a.dat.bak" counts for
// ".dat".
func (s Schema) References(line string, extensions []string) bool {
	if s.Delimiter == "" || !strings.Contains(line, s.Delimiter) {
		return false
	}
	for _, ext := range extensions {
		if ext != "" && strings.Contains(line, ext) {
			return true
		}
	}
	return false
}
