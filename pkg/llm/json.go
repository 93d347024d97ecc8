package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const codeFence = "```"

// thinkTagPattern matches a reasoning block some models emit before the answer.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// StripCodeFence removes markdown code-fence decoration from a completion.
// Text that does not start with a fence (after trimming) is returned unchanged.
// For fenced text the content of the first fenced block is returned with its
// language tag line (e.g. "sql", "json") removed and surrounding whitespace trimmed.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, codeFence) {
		return text
	}

	inner := strings.Split(trimmed, codeFence)[1]
	if newline := strings.IndexByte(inner, '\n'); newline != -1 {
		inner = inner[newline+1:]
	}
	return strings.TrimSpace(inner)
}

// Parsed is the two-armed result of parsing a completion that was asked for
// structured output. Exactly one arm is meaningful: Value when IsStructured
// reports true, Raw otherwise. Raw always holds the fence-stripped text.
type Parsed[T any] struct {
	Value      T
	Raw        string
	structured bool
}

// IsStructured reports whether the completion parsed into T.
func (p Parsed[T]) IsStructured() bool {
	return p.structured
}

// Structured builds the structured arm.
func Structured[T any](value T, raw string) Parsed[T] {
	return Parsed[T]{Value: value, Raw: raw, structured: true}
}

// Raw builds the raw-text arm.
func Raw[T any](raw string) Parsed[T] {
	return Parsed[T]{Raw: raw}
}

// Recognizer is implemented by reply types that can tell a real reply from
// an unrelated JSON value that happened to decode into them.
type Recognizer interface {
	Recognized() bool
}

// ParseStructured strips code fences and decodes the first JSON object or
// array in the completion that unmarshals into T. When T is a Recognizer,
// candidates it does not recognize are skipped too. No match yields the Raw arm.
func ParseStructured[T any](completion string) Parsed[T] {
	stripped := strings.TrimSpace(StripCodeFence(completion))

	for _, candidate := range jsonCandidates(stripped) {
		var value T
		if err := json.Unmarshal(candidate, &value); err != nil {
			continue
		}
		if r, ok := any(value).(Recognizer); ok && !r.Recognized() {
			continue
		}
		return Structured(value, stripped)
	}
	return Raw[T](stripped)
}

// ExtractJSON returns the first JSON object or array embedded in a
// completion, ignoring a leading <think> block and any surrounding prose.
// The returned text is byte-for-byte what the model wrote.
func ExtractJSON(response string) (string, error) {
	candidates := jsonCandidates(response)
	if len(candidates) == 0 {
		return "", fmt.Errorf("no valid JSON found in response")
	}
	return string(candidates[0]), nil
}

// jsonCandidates returns, in order, the top-level JSON objects and arrays
// found in response once a leading <think> block is removed. Values nested
// inside a candidate are not candidates themselves.
func jsonCandidates(response string) []json.RawMessage {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	var out []json.RawMessage
	for i := 0; i < len(cleaned); i++ {
		if cleaned[i] != '{' && cleaned[i] != '[' {
			continue
		}
		var raw json.RawMessage
		dec := json.NewDecoder(strings.NewReader(cleaned[i:]))
		if err := dec.Decode(&raw); err == nil {
			out = append(out, raw)
			i += int(dec.InputOffset()) - 1
		}
	}
	return out
}

// ParseJSONResponse decodes the first JSON object or array in response into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var out T

	text, err := ExtractJSON(response)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return out, nil
}
