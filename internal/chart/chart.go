// Package chart recovers chart descriptions from the loosely formatted chart
// payloads returned by the analysis service.
package chart

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind selects how a chart payload is interpreted.
type Kind int

const (
	KindPlot Kind = iota
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindPlot:
		return "plot"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// ParseKind maps the service's chart kind discriminator to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plot", "plotly", "json", "structured":
		return KindPlot, true
	case "image", "png", "img":
		return KindImage, true
	}
	return KindPlot, false
}

// Object is a validated chart. Exactly one of Plot or Image is set,
// matching Kind.
type Object struct {
	Kind  Kind
	Plot  *Plot
	Image *Image
}

// Plot is a structured plot description.
type Plot struct {
	// Value is the object as decoded by a strict JSON parse.
	Value  map[string]any
	Raw    string
	Title  string
	Traces []Trace
}

// Trace is one plotted series.
type Trace struct {
	Name string
	Type string
	X    []any
	Y    []any
}

// Image is an opaque image reference, usually a base64 data URI.
type Image struct {
	Ref       string
	MediaType string
}

// NewImage wraps a reference as an image object.
func NewImage(ref string) Object {
	ref = strings.TrimSpace(ref)
	img := &Image{Ref: ref}
	if rest, ok := strings.CutPrefix(ref, "data:"); ok {
		if i := strings.IndexAny(rest, ";,"); i > 0 {
			img.MediaType = rest[:i]
		}
	}
	return Object{Kind: KindImage, Image: img}
}

// Data decodes the payload of a base64 data URI.
func (i *Image) Data() ([]byte, error) {
	_, enc, ok := strings.Cut(i.Ref, ";base64,")
	if !ok {
		return nil, fmt.Errorf("image reference is not a base64 data URI")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(enc))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return data, nil
}

// newPlot decodes title and traces from canonical, the re-encoded value.
func newPlot(raw, canonical string, value map[string]any, rule Rule) *Plot {
	p := &Plot{Value: value, Raw: raw}

	title := gjson.Get(canonical, "layout.title")
	if title.IsObject() {
		title = title.Get("text")
	}
	if title.Type == gjson.String {
		p.Title = title.String()
	}

	series := gjson.Get(canonical, rule.field())
	decode := func(t gjson.Result) {
		if !t.IsObject() {
			return
		}
		p.Traces = append(p.Traces, Trace{
			Name: t.Get("name").String(),
			Type: t.Get("type").String(),
			X:    values(t.Get("x")),
			Y:    values(t.Get("y")),
		})
	}
	if series.IsArray() {
		for _, t := range series.Array() {
			decode(t)
		}
	} else {
		decode(series)
	}
	return p
}

func values(r gjson.Result) []any {
	if !r.IsArray() {
		return nil
	}
	arr := r.Array()
	out := make([]any, 0, len(arr))
	for _, v := range arr {
		out = append(out, v.Value())
	}
	return out
}

// Numbers returns the numeric entries of vals. Numeric strings count;
// anything else is skipped.
func Numbers(vals []any) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		switch n := v.(type) {
		case float64:
			out = append(out, n)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				out = append(out, f)
			}
		}
	}
	return out
}

// Labels renders vals as strings, for categorical axes.
func Labels(vals []any) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		switch s := v.(type) {
		case string:
			out = append(out, s)
		case float64:
			out = append(out, strconv.FormatFloat(s, 'g', -1, 64))
		case nil:
			out = append(out, "")
		default:
			out = append(out, fmt.Sprint(s))
		}
	}
	return out
}
