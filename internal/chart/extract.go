package chart

import (
	"encoding/json"
	"strings"
)

// scanState is the lexer state of the candidate scanner.
type scanState int

const (
	stateNormal scanState = iota
	stateString
	stateEscape
)

// Payload is the chart part of an analysis response.
type Payload struct {
	Kind  Kind
	Items []string
}

// ExtractPayload turns a payload into chart objects, in item order.
// Image payloads are passed through as references.
func ExtractPayload(p Payload, rule Rule) []Object {
	var out []Object
	for _, item := range p.Items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		if p.Kind == KindImage {
			out = append(out, NewImage(item))
			continue
		}
		out = append(out, Extract(item, rule)...)
	}
	return out
}

// Extract returns every accepted chart object embedded in text. A text that
// is exactly one object is parsed directly; anything else is scanned.
func Extract(text string, rule Rule) []Object {
	trimmed := strings.TrimSpace(text)
	if obj, ok := parse(trimmed, rule); ok {
		return []Object{obj}
	}
	return Scan(text, rule)
}

// Scan walks text once, collecting top-level brace-balanced spans outside
// JSON strings and keeping those that parse and satisfy rule.
func Scan(text string, rule Rule) []Object {
	var out []Object
	state := stateNormal
	depth := 0
	start := -1

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch state {
		case stateEscape:
			state = stateString
			continue
		case stateString:
			switch c {
			case '\\':
				state = stateEscape
			case '"':
				state = stateNormal
			}
			continue
		}

		switch c {
		case '"':
			state = stateString
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				// unmatched closer
				continue
			}
			depth--
			if depth == 0 {
				if obj, ok := parse(text[start:i+1], rule); ok {
					out = append(out, obj)
				}
				start = -1
			}
		}
	}
	return out
}

func parse(span string, rule Rule) (Object, bool) {
	if !strings.HasPrefix(span, "{") {
		return Object{}, false
	}
	var value map[string]any
	if err := json.Unmarshal([]byte(span), &value); err != nil {
		return Object{}, false
	}
	// Duplicate keys decode to the last occurrence, so the rule and the
	// traces read the re-encoded value rather than the span.
	canonical, err := json.Marshal(value)
	if err != nil {
		return Object{}, false
	}
	if !rule.Accepts(string(canonical)) {
		return Object{}, false
	}
	return Object{Kind: KindPlot, Plot: newPlot(span, string(canonical), value, rule)}, true
}
