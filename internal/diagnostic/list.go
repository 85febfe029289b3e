package diagnostic

// List accumulates problems across a phase. Adding is never fatal; the caller
// decides at Flush whether a non-empty list fails the phase.
type List struct {
	diagnostics []Diagnostic
}

// NewList returns an empty list.
func NewList() *List {
	return &List{}
}

// Add appends a diagnostic.
func (l *List) Add(d Diagnostic) {
	l.diagnostics = append(l.diagnostics, d)
}

// AddError appends an error, rendered as a diagnostic.
func (l *List) AddError(err error) {
	l.diagnostics = append(l.diagnostics, FromError(err))
}

// Len reports how many diagnostics are pending.
func (l *List) Len() int {
	return len(l.diagnostics)
}

// Flush prints every pending diagnostic and empties the list. When any were
// pending, the returned error names the operation that cannot proceed.
func (l *List) Flush(operation string) error {
	count := len(l.diagnostics)

	for _, d := range l.diagnostics {
		d.PrintError()
	}
	l.diagnostics = nil

	if count == 0 {
		return nil
	}

	plural := "s"
	if count == 1 {
		plural = ""
	}

	return Start("Could not ").
		Text(operation).
		Text(" due to ").
		Text(count).
		Text(" previous error").
		Text(plural).
		Build().
		Error()
}
