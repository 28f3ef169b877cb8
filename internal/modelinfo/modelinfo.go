// internal/modelinfo/modelinfo.go
// Package modelinfo derives categorical fields from model identifier strings.
// All functions are pure: identical input yields identical output.
package modelinfo

import (
	"regexp"
	"strconv"
	"strings"
)

// UnknownLabel is the sentinel returned when no matcher applies.
const UnknownLabel = "Unknown"

// quantMatcher pairs a scheme name with the pattern that recognizes it.
// Matchers are evaluated in order; the first match wins. New quantization
// schemes are added here without touching call sites.
type quantMatcher struct {
	scheme  string
	pattern *regexp.Regexp
}

var quantMatchers = []quantMatcher{
	// Bit-width tokens: a digit-prefixed width optionally followed by one or
	// two qualifier tokens, e.g. q4_0, q5_k, q4_k_m, iq2_xxs.
	{scheme: "bit-width", pattern: regexp.MustCompile(`(?i)\b(iq\d(?:_[a-z0-9]{1,3}){0,2}|q\d(?:_[a-z0-9]{1,3}){0,2})\b`)},
	// Floating-point precision tokens, e.g. f16, bf16, fp32.
	{scheme: "float-precision", pattern: regexp.MustCompile(`(?i)\b(bf16|fp16|fp32|f16|f32)\b`)},
}

// Quantization extracts the quantization label from a model identifier.
// Matching is case-insensitive and the result is upper-cased; identifiers
// with no recognizable token yield UnknownLabel.
func Quantization(identifier string) string {
	for _, m := range quantMatchers {
		if token := m.pattern.FindString(identifier); token != "" {
			return strings.ToUpper(token)
		}
	}
	return UnknownLabel
}

// ShortName returns the last path-separated segment of a model identifier,
// e.g. "meta-llama/Llama-3-8B" -> "Llama-3-8B".
func ShortName(identifier string) string {
	trimmed := strings.TrimRight(identifier, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

var paramSizePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)b\b`)

// ParamSizeB extracts the parameter-count token from a model identifier in
// billions, e.g. "Llama-3-8B" -> 8. Identifiers without a recognizable token
// rank as 0.
func ParamSizeB(identifier string) float64 {
	match := paramSizePattern.FindStringSubmatch(identifier)
	if match == nil {
		return 0
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return value
}

// NormalizeSize parses an optional model size in gigabytes. An absent or
// unparsable value ranks as 0 but displays as UnknownLabel.
func NormalizeSize(raw string) (float64, string) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimSuffix(strings.TrimSuffix(trimmed, "GB"), "gb")
	trimmed = strings.TrimSuffix(strings.TrimSuffix(trimmed, "G"), "g")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return 0, UnknownLabel
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || value < 0 {
		return 0, UnknownLabel
	}
	return value, strconv.FormatFloat(value, 'f', -1, 64) + " GB"
}
