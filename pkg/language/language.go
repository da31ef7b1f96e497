// Package language detects the natural language of extracted CV text.
package language

import (
	"strings"

	"github.com/RadhiFadlillah/whatlanggo"
)

// Unknown is reported for empty text or text without a recognizable script.
const Unknown = "unknown"

// maxSample bounds the text handed to the detector; the head of a CV is
// representative and detection cost grows with length.
const maxSample = 4000

// Result is a detection outcome.
type Result struct {
	Code       string  `json:"code"` // ISO 639-1 (639-3 when there is none), or "unknown"
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`

	// Reliable is false when the detector's confidence is below its
	// threshold. Short list-style CVs often are.
	Reliable bool `json:"reliable"`
}

// Known reports whether a language was identified.
func (r Result) Known() bool {
	return r.Code != Unknown
}

// Detect identifies the language of text.
func Detect(text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Code: Unknown, Name: Unknown}
	}
	if len(text) > maxSample {
		text = strings.ToValidUTF8(text[:maxSample], "")
	}

	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		code = info.Lang.Iso6393()
	}
	if info.Script == nil || code == "" {
		return Result{Code: Unknown, Name: Unknown}
	}
	return Result{
		Code:       code,
		Name:       info.Lang.String(),
		Confidence: info.Confidence,
		Reliable:   info.IsReliable(),
	}
}

// Code is a convenience wrapper returning only the ISO 639-1 code.
func Code(text string) string {
	return Detect(text).Code
}
