// Package diagnostic implements the uniform error and warning surface for the
// build pipeline. Problems are constructed with a fluent builder, accumulated
// on a List, and flushed at phase boundaries where a non-empty list becomes a
// single labeled failure.
package diagnostic

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/radical-ui/objection/internal/logging"
)

// Location points at a position in a runtime source file.
type Location struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Filename, l.Line, l.Col)
}

const (
	boldCode  = "\x1b[1m"
	blueCode  = "\x1b[34m"
	resetCode = "\x1b[0m"
)

var styled = stderrIsTerminal()

func stderrIsTerminal() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func bold(text string) string {
	if !styled {
		return text
	}
	return boldCode + text + resetCode
}

func arrow() string {
	if !styled {
		return "--> "
	}
	return boldCode + blueCode + "--> " + resetCode
}

// Diagnostic is a rendered, human-oriented message. The text is stable for a
// given build but carries no machine contract.
type Diagnostic struct {
	text string
}

// FromError renders an error chain as a diagnostic, emphasizing the first
// line.
func FromError(err error) Diagnostic {
	text := fmt.Sprintf("%v", err)

	if index := strings.IndexByte(text, '\n'); index >= 0 {
		text = bold(text[:index]) + text[index:]
	} else {
		text = bold(text)
	}

	return Diagnostic{text: text}
}

// Start begins building a diagnostic with an initial message.
func Start(initial any) *Builder {
	builder := &Builder{}
	return builder.Text(initial)
}

// Error converts the diagnostic into an error value.
func (d Diagnostic) Error() error {
	return errors.New(d.text)
}

// Context attaches the diagnostic as context on an existing error.
func (d Diagnostic) Context(err error) error {
	return fmt.Errorf("%s: %w", d.text, err)
}

// PrintError prints the diagnostic at error level.
func (d Diagnostic) PrintError() {
	logging.Sugar(logging.CategoryCollect).Error(d.text)
}

// PrintWarn prints the diagnostic at warning level.
func (d Diagnostic) PrintWarn() {
	logging.Sugar(logging.CategoryCollect).Warn(d.text)
}

func (d Diagnostic) String() string {
	return d.text
}

// Builder assembles a diagnostic. The primary message is emphasized until
// Shift is called, after which text lands on an indented context line.
type Builder struct {
	parts    []string
	didShift bool
}

// Text appends a fragment. Values are rendered with the fmt defaults.
func (b *Builder) Text(value any) *Builder {
	text := fmt.Sprintf("%v", value)
	if !b.didShift {
		text = bold(text)
	}

	b.parts = append(b.parts, text)
	return b
}

// Code appends an inline code fragment.
func (b *Builder) Code(code any) *Builder {
	return b.Text(fmt.Sprintf("`%v`", code))
}

// Shift ends the primary message and starts the source-context line.
func (b *Builder) Shift() *Builder {
	b.parts = append(b.parts, "\n  "+arrow())
	b.didShift = true
	return b
}

// Location appends a file:line:col reference.
func (b *Builder) Location(location Location) *Builder {
	b.parts = append(b.parts, location.String())
	return b
}

// JoinList appends the items comma-joined, each as inline code.
func (b *Builder) JoinList(items []string) *Builder {
	for index, item := range items {
		if index > 0 {
			b.parts = append(b.parts, ", ")
		}
		b.Code(item)
	}
	return b
}

// Build finishes the diagnostic.
func (b *Builder) Build() Diagnostic {
	return Diagnostic{text: strings.Join(b.parts, "")}
}
