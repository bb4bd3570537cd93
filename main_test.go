//go:build !gui

package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/metcalfc/spectra/internal/chart"
	"github.com/metcalfc/spectra/internal/client"
	"github.com/metcalfc/spectra/internal/conversation"
	"github.com/metcalfc/spectra/internal/errs"
	"github.com/metcalfc/spectra/internal/logging"
	"github.com/metcalfc/spectra/internal/prose"
	"github.com/metcalfc/spectra/internal/reveal"
)

type stubBackend struct {
	text string
	err  error
}

func (s *stubBackend) Upload(context.Context, string, string) (string, error) {
	return "File uploaded successfully", s.err
}

func (s *stubBackend) Analyze(context.Context, string) (*client.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &client.Response{RequestID: "req", Text: s.text}, nil
}

func (s *stubBackend) Profile(context.Context) (*client.Profile, error) {
	return &client.Profile{RequestID: "req", Text: s.text}, s.err
}

func testModel(b conversation.Backend) model {
	conv := conversation.New(b, conversation.Options{
		Reveal: reveal.Options{Granularity: reveal.Word, Interval: time.Millisecond, Stream: true},
	}, nil)
	return newModel(context.Background(), conv, logging.Nop(), "notty")
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func reply(query, text string) replyMsg {
	return replyMsg{query: query, reply: conversation.Reply{Query: query, Answer: prose.Answer{Text: text}}}
}

func TestRevealThroughTicks(t *testing.T) {
	m := testModel(&stubBackend{})
	m, cmd := update(t, m, reply("q", "alpha beta gamma"))
	if cmd == nil {
		t.Fatal("expected a reveal tick to be scheduled")
	}

	turn := m.conv.Latest()
	id := turn.Session().ID()
	ticks := 0
	for cmd != nil {
		m, cmd = update(t, m, revealTickMsg{id: id, every: time.Millisecond})
		ticks++
		if ticks > 10 {
			t.Fatal("reveal did not finish")
		}
	}
	if ticks != 3 {
		t.Errorf("ticks = %d, want 3", ticks)
	}
	if got := turn.Text(); got != "alpha beta gamma" {
		t.Errorf("Text() = %q", got)
	}
	if !strings.Contains(m.View(), "gamma") {
		t.Errorf("View() does not show the answer:\n%s", m.View())
	}
}

func TestStaleTickIgnored(t *testing.T) {
	m := testModel(&stubBackend{})
	m, _ = update(t, m, reply("a", "one two three"))
	first := m.conv.Latest().Session().ID()
	m, _ = update(t, m, reply("b", "four five"))

	m, cmd := update(t, m, revealTickMsg{id: first, every: time.Millisecond})
	if cmd != nil {
		t.Error("tick for a superseded session must not reschedule")
	}
	if got := m.conv.Latest().Text(); got != "" {
		t.Errorf("new answer advanced by a stale tick: %q", got)
	}
	if got := m.conv.Turns()[0].Text(); got != "one two three" {
		t.Errorf("superseded answer = %q, want full text", got)
	}
}

func TestEscSkipsReveal(t *testing.T) {
	m := testModel(&stubBackend{})
	m, _ = update(t, m, reply("q", "a b c d"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	turn := m.conv.Latest()
	if turn.Revealing() {
		t.Error("reveal still running after ESC")
	}
	if turn.Text() != "a b c d" {
		t.Errorf("Text() = %q", turn.Text())
	}
}

func TestAskRunsFetch(t *testing.T) {
	m := testModel(&stubBackend{text: "Sales rose."})
	m.input.SetValue("how did sales do?")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.busy {
		t.Error("model should be busy while the answer is fetched")
	}
	if cmd == nil {
		t.Fatal("expected a fetch command")
	}

	var got *replyMsg
	if batch, ok := cmd().(tea.BatchMsg); ok {
		for _, c := range batch {
			if r, ok := c().(replyMsg); ok {
				got = &r
			}
		}
	}
	if got == nil {
		t.Fatal("fetch command did not produce a reply")
	}
	if got.err != nil || got.reply.Answer.Text != "Sales rose." {
		t.Errorf("reply = %+v", got)
	}

	m, _ = update(t, m, *got)
	if m.busy {
		t.Error("model still busy after the reply")
	}
}

func TestFetchErrorShown(t *testing.T) {
	m := testModel(&stubBackend{})
	m, cmd := update(t, m, replyMsg{query: "q", err: errors.New("server down")})
	if cmd != nil {
		t.Error("failed answer must not schedule ticks")
	}
	if !strings.Contains(m.View(), "Error: server down") {
		t.Errorf("View() missing error:\n%s", m.View())
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		input  string
		status string
	}{
		{"/upload", "usage: /upload <file.csv>"},
		{"/bogus", "unknown command /bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m := testModel(&stubBackend{})
			m.input.SetValue(tt.input)
			m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
			if m.status != tt.status {
				t.Errorf("status = %q, want %q", m.status, tt.status)
			}
		})
	}
}

func TestClearCommand(t *testing.T) {
	m := testModel(&stubBackend{})
	m, _ = update(t, m, reply("q", "text"))
	m.input.SetValue("/clear")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(m.conv.Turns()) != 0 {
		t.Errorf("turns = %d after /clear", len(m.conv.Turns()))
	}
}

func TestQuit(t *testing.T) {
	m := testModel(&stubBackend{})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.quitting || cmd == nil {
		t.Error("ctrl+c should quit")
	}
	if m.View() != "" {
		t.Error("View() should be empty when quitting")
	}
}

func TestUploadStatus(t *testing.T) {
	m := testModel(&stubBackend{})
	m.busy = true
	m, _ = update(t, m, uploadMsg{err: errors.New("no such file")})
	if m.busy || m.status != "upload failed: no such file" {
		t.Errorf("busy=%v status=%q", m.busy, m.status)
	}
}

func TestChartCard(t *testing.T) {
	objs := chart.Extract(`{"data":[{"name":"revenue","type":"bar","x":["a","b","c"],"y":[1,2,3]}],"layout":{"title":"Revenue"}}`, chart.Rule{})
	if len(objs) != 1 {
		t.Fatalf("got %d objects", len(objs))
	}
	card := chartCard(objs[0])
	for _, want := range []string{"Revenue", "revenue (bar)", "3 points", "min 1", "mean 2", "max 3"} {
		if !strings.Contains(card, want) {
			t.Errorf("card missing %q:\n%s", want, card)
		}
	}

	img := chartCard(chart.NewImage("data:image/png;base64,AAAA"))
	if !strings.Contains(img, "image/png") {
		t.Errorf("image card:\n%s", img)
	}
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		ys       []float64
		lo, hi   float64
		expected string
	}{
		{[]float64{0, 1}, 0, 1, "▁█"},
		{[]float64{5, 5, 5}, 5, 5, "▁▁▁"},
		{[]float64{0, 7, 14}, 0, 14, "▁▄█"},
	}
	for _, tt := range tests {
		if got := sparkline(tt.ys, tt.lo, tt.hi); got != tt.expected {
			t.Errorf("sparkline(%v) = %q, want %q", tt.ys, got, tt.expected)
		}
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SPECTRA_SERVER_URL", "")
	cfg, err := loadConfig("http://analysis:9000", "char", 10*time.Millisecond, true)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.URL != "http://analysis:9000" {
		t.Errorf("URL = %q", cfg.Server.URL)
	}
	if cfg.Reveal.Granularity != reveal.Char || cfg.Reveal.Tick != 10*time.Millisecond || cfg.Reveal.Stream {
		t.Errorf("reveal = %+v", cfg.Reveal)
	}

	if _, err := loadConfig("", "sentence", 0, false); err == nil {
		t.Error("expected an error for an unknown granularity")
	}
	if _, err := loadConfig("ftp://nope", "", 0, false); err == nil {
		t.Error("expected an error for a non-http server")
	}
}

func TestOutlineLine(t *testing.T) {
	tests := []struct {
		name     string
		headings []prose.Heading
		expected string
	}{
		{"none", nil, ""},
		{"top level only", []prose.Heading{{Title: "Summary", Level: 1}, {Title: "Detail", Level: 2}, {Title: "Trends", Level: 1}}, "sections: Summary, Trends"},
		{"truncated", []prose.Heading{{Title: "A", Level: 0}, {Title: "B", Level: 0}, {Title: "C", Level: 0}, {Title: "D", Level: 0}, {Title: "E", Level: 0}}, "sections: A, B, C, D, ..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outlineLine(tt.headings); got != tt.expected {
				t.Errorf("outlineLine() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStatusShowsOutline(t *testing.T) {
	m := testModel(&stubBackend{})
	msg := reply("q", "# Revenue\nup\n# Costs\ndown")
	msg.reply.Answer = prose.Normalize(msg.reply.Answer.Text)
	m, _ = update(t, m, msg)
	if !strings.Contains(m.View(), "sections: Revenue, Costs") {
		t.Errorf("View() missing outline:\n%s", m.View())
	}
}

func TestUploadFailureMessages(t *testing.T) {
	tests := []struct {
		err    error
		prefix string
	}{
		{errs.New(errs.CodeDataset, "failed to open dataset"), "cannot read dataset: "},
		{errs.New(errs.CodeTransport, "POST /upload"), "server unreachable: "},
		{errs.New(errs.CodeServer, "/upload returned 413"), "server rejected the upload: "},
		{errors.New("boom"), "upload failed: "},
	}
	for _, tt := range tests {
		m := testModel(&stubBackend{})
		m.busy = true
		m, _ = update(t, m, uploadMsg{err: tt.err})
		if !strings.HasPrefix(m.status, tt.prefix) {
			t.Errorf("status = %q, want prefix %q", m.status, tt.prefix)
		}
	}
}
