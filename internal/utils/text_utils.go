package utils

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^<>]+?>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Fold case-folds a string for caseless comparison
func Fold(s string) string {
	return cases.Fold().String(s)
}

// TextProcessor provides utilities for preparing email text for scoring
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// Clean strips HTML tags, collapses whitespace and case-folds the text
func (tp *TextProcessor) Clean(text string) string {
	clean := htmlTagRe.ReplaceAllString(text, " ")
	clean = whitespaceRe.ReplaceAllString(clean, " ")
	return Fold(strings.TrimSpace(clean))
}

// Tokenize cleans the text and splits it into case-folded word tokens.
// Punctuation separates tokens; apostrophes stay inside a token.
func (tp *TextProcessor) Tokenize(text string) []string {
	clean := tp.Clean(text)
	return strings.FieldsFunc(clean, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]

	// Trim bytes until the tail is a valid UTF-8 sequence
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// SanitizeUTF8 ensures the string contains only valid UTF-8 characters
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				continue
			}
		}
		result = append(result, r)
	}

	return string(result)
}

// ProcessText truncates and sanitizes text in one operation
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.SanitizeUTF8(tp.TruncateText(text, maxSize))
}
