// Package cleaner provides interfaces and implementations for cleaning
// extracted CV text. Cleaners transform raw document text into a normalized
// form suitable for LLM extraction.
package cleaner

// Cleaner transforms extracted text into a cleaner form.
type Cleaner interface {
	// Clean transforms the input text. Implementations must be safe for
	// concurrent use.
	Clean(text string) (string, error)

	// Name returns the cleaner type for logging/debugging.
	Name() string
}

// Func adapts a plain function to the Cleaner interface.
type Func struct {
	name string
	fn   func(string) string
}

// NewFunc wraps fn as a named Cleaner.
func NewFunc(name string, fn func(string) string) *Func {
	return &Func{name: name, fn: fn}
}

// Clean applies the wrapped function.
func (f *Func) Clean(text string) (string, error) {
	return f.fn(text), nil
}

// Name returns the cleaner name.
func (f *Func) Name() string {
	return f.name
}

// Built-in cleaners.
var (
	// Text applies the light stage-one cleanup that keeps headings and layout clues.
	Text Cleaner = NewFunc("text", CleanText)

	// Unicode folds compatibility forms, ligatures, quotes and dashes.
	Unicode Cleaner = NewFunc("unicode", NormalizeUnicode)

	// Layout repairs line-level artifacts of PDF extraction.
	Layout Cleaner = NewFunc("layout", RepairLayout)
)
