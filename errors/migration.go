package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies a class of migration failure.
type ErrorCode string

const (
	// ErrEmptyInput indicates the document text is empty or blank.
	ErrEmptyInput ErrorCode = "scesim-empty-input"
	// ErrInputTooLarge indicates the document exceeds the configured size limit.
	ErrInputTooLarge ErrorCode = "scesim-input-too-large"
	// ErrVersionNotFound indicates no version="X.Y" token could be extracted.
	ErrVersionNotFound ErrorCode = "scesim-version-not-found"
	// ErrUnsupportedVersion indicates the file version has no migration path to the current version.
	ErrUnsupportedVersion ErrorCode = "scesim-unsupported-version"
	// ErrStructure indicates a migration step did not find the structure its source version guarantees.
	ErrStructure ErrorCode = "scesim-structure"
	// ErrInvalidReference indicates a reference pointer could not be resolved.
	ErrInvalidReference ErrorCode = "scesim-invalid-reference"
	// ErrXMLParse indicates the document text could not be parsed.
	ErrXMLParse ErrorCode = "xml-parse-error"
	// ErrXMLWrite indicates the migrated document could not be serialized.
	ErrXMLWrite ErrorCode = "xml-write-error"
	// ErrInvalidOptions indicates a migrator was configured with invalid options.
	ErrInvalidOptions ErrorCode = "scesim-invalid-options"
)

// Migration describes a fatal migration failure.
// Step and Path are set for structural failures; Version is the file version when known.
//
//nolint:errname // public API name uses the domain term.
type Migration struct {
	Err     error
	Code    string
	Message string
	Step    string
	Path    string
	Version string
}

// Error formats the failure for display, including code, message, and context.
func (m *Migration) Error() string {
	if m == nil {
		return "migration <nil>"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", m.Code, m.Message))
	if m.Step != "" {
		b.WriteString(fmt.Sprintf(" (step %s)", m.Step))
	}
	if m.Path != "" {
		b.WriteString(fmt.Sprintf(" at %s", m.Path))
	}
	if m.Version != "" && m.Step == "" {
		b.WriteString(fmt.Sprintf(" (version: %s)", m.Version))
	}
	if m.Err != nil {
		b.WriteString(": ")
		b.WriteString(m.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (m *Migration) Unwrap() error {
	if m == nil {
		return nil
	}
	return m.Err
}

// New builds a Migration with a code and message.
func New(code ErrorCode, msg string) *Migration {
	return &Migration{Code: string(code), Message: msg}
}

// Newf formats a message and builds a Migration.
func Newf(code ErrorCode, format string, args ...any) *Migration {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap builds a Migration that carries err as its cause.
func Wrap(code ErrorCode, err error, msg string) *Migration {
	m := New(code, msg)
	m.Err = err
	return m
}

// Structure builds an ErrStructure failure for a missing node at path.
func Structure(path, format string, args ...any) *Migration {
	m := Newf(ErrStructure, format, args...)
	m.Path = path
	return m
}

// As extracts the outermost Migration from err.
func As(err error) (*Migration, bool) {
	if err == nil {
		return nil, false
	}
	var m *Migration
	if errors.As(err, &m) && m != nil {
		return m, true
	}
	return nil, false
}

// HasCode reports whether any Migration in the chain of err carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		m, ok := As(err)
		if !ok {
			return false
		}
		if m.Code == string(code) {
			return true
		}
		err = m.Err
	}
	return false
}

// InStep attributes err to the named migration step. A Migration keeps its
// code and gains the step; any other error becomes an ErrStructure cause.
func InStep(err error, step string) error {
	if err == nil {
		return nil
	}
	if m, ok := As(err); ok {
		c := *m
		if c.Step == "" {
			c.Step = step
		}
		return &c
	}
	w := Wrap(ErrStructure, err, "migration step failed")
	w.Step = step
	return w
}
