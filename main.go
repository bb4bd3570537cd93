//go:build !gui

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/metcalfc/spectra/internal/chart"
	"github.com/metcalfc/spectra/internal/client"
	"github.com/metcalfc/spectra/internal/config"
	"github.com/metcalfc/spectra/internal/conversation"
	"github.com/metcalfc/spectra/internal/logging"
	"github.com/metcalfc/spectra/internal/reveal"
)

var (
	queryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00AFFF"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	revealStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5F87AF")).
			Padding(0, 1)

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))
)

const controls = "ENTER: ask  ESC: skip reveal  /upload <file>  /profile  /clear  /quit  CTRL+C: quit"

type model struct {
	ctx      context.Context
	conv     *conversation.Conversation
	logger   *zap.Logger
	input    textinput.Model
	view     viewport.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer
	mdStyle  string
	dataset  string
	busy     bool
	status   string
	quitting bool
	width    int
	height   int
}

// revealTickMsg advances the reveal session it was scheduled for.
type revealTickMsg struct {
	id    uint64
	every time.Duration
}

type replyMsg struct {
	query string
	reply conversation.Reply
	err   error
}

type uploadMsg struct {
	res conversation.UploadResult
	err error
}

func newModel(ctx context.Context, conv *conversation.Conversation, logger *zap.Logger, mdStyle string) model {
	in := textinput.New()
	in.Placeholder = "Ask a question about your dataset..."
	in.Prompt = "> "
	in.CharLimit = 2000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		ctx:     ctx,
		conv:    conv,
		logger:  logger,
		input:   in,
		spin:    sp,
		mdStyle: mdStyle,
		width:   80,
		height:  24,
	}
	m.resize(m.width, m.height)
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.dataset != "" {
		cmds = append(cmds, m.upload(m.dataset), m.spin.Tick)
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case tea.KeyEsc:
			m.conv.Skip()
			m.refresh()
			return m, nil

		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			return m.submit(text)

		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case replyMsg:
		m.busy = false
		if msg.err != nil {
			m.conv.Fail(msg.query, msg.err)
			m.status = ""
			m.refresh()
			return m, nil
		}
		turn := m.conv.Present(msg.reply)
		m.status = fmt.Sprintf("answered in %s", msg.reply.Elapsed.Round(time.Millisecond))
		m.refresh()
		if turn.Revealing() {
			return m, revealTick(turn.Session())
		}
		return m, nil

	case revealTickMsg:
		if !m.conv.Tick(msg.id) {
			m.refresh()
			return m, nil
		}
		m.refresh()
		return m, tickAfter(msg.id, msg.every)

	case uploadMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.status = uploadFailure(msg.err)
		case msg.res.Skipped:
			m.status = fmt.Sprintf("%s already uploaded", msg.res.Summary.Name)
		default:
			m.status = fmt.Sprintf("%s: %s", msg.res.Summary.Name, msg.res.Message)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

func (m model) submit(text string) (tea.Model, tea.Cmd) {
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		return m.command(text)
	}
	if m.busy {
		m.status = "still waiting for the previous answer"
		return m, nil
	}
	m.busy = true
	m.status = ""
	return m, tea.Batch(m.ask(text), m.spin.Tick)
}

func (m model) command(text string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/skip":
		m.conv.Skip()
		m.refresh()
		return m, nil

	case "/clear":
		m.conv.Clear()
		m.status = ""
		m.refresh()
		return m, nil

	case "/upload":
		if arg == "" {
			m.status = "usage: /upload <file.csv>"
			return m, nil
		}
		if m.busy {
			m.status = "still waiting for the previous request"
			return m, nil
		}
		m.busy = true
		m.status = "uploading " + arg
		return m, tea.Batch(m.upload(arg), m.spin.Tick)

	case "/profile":
		if m.busy {
			m.status = "still waiting for the previous request"
			return m, nil
		}
		m.busy = true
		m.status = ""
		return m, tea.Batch(m.profile(), m.spin.Tick)
	}

	m.status = "unknown command " + name
	return m, nil
}

func (m model) ask(query string) tea.Cmd {
	conv, ctx := m.conv, m.ctx
	return func() tea.Msg {
		reply, err := conv.Fetch(ctx, query)
		return replyMsg{query: query, reply: reply, err: err}
	}
}

func (m model) profile() tea.Cmd {
	conv, ctx := m.conv, m.ctx
	return func() tea.Msg {
		reply, err := conv.FetchProfile(ctx)
		return replyMsg{query: "/profile", reply: reply, err: err}
	}
}

func (m model) upload(path string) tea.Cmd {
	conv, ctx := m.conv, m.ctx
	return func() tea.Msg {
		res, err := conv.Upload(ctx, path)
		return uploadMsg{res: res, err: err}
	}
}

func revealTick(s *reveal.Session) tea.Cmd {
	return tickAfter(s.ID(), s.Interval())
}

func tickAfter(id uint64, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return revealTickMsg{id: id, every: d}
	})
}

func (m *model) resize(width, height int) {
	m.width = width
	m.height = height

	// Reserve 3 lines: status, input and controls
	vh := height - 3
	if vh < 1 {
		vh = 1
	}
	m.view = viewport.New(width, vh)
	m.input.Width = width - 4

	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.mdStyle),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		m.logger.Warn("markdown renderer unavailable", zap.Error(err))
	}
	m.renderer = r
}

func (m *model) refresh() {
	m.view.SetContent(m.renderHistory())
	m.view.GotoBottom()
}

func (m model) renderHistory() string {
	var sb strings.Builder
	for _, t := range m.conv.Turns() {
		sb.WriteString(queryStyle.Render("> " + t.Query))
		sb.WriteString("\n")
		if t.Err != nil {
			sb.WriteString(errorStyle.Render("Error: " + t.Err.Error()))
			sb.WriteString("\n\n")
			continue
		}
		sb.WriteString(m.markdown(t.Text()))
		if m.conv.ChartsVisible(t) {
			for _, c := range t.Reply.Charts {
				sb.WriteString(chartCard(c))
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m model) markdown(text string) string {
	if text == "" {
		return ""
	}
	if m.renderer == nil {
		return text + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

// chartCard summarizes a chart for the terminal, which cannot draw it.
func chartCard(c chart.Object) string {
	var lines []string
	switch c.Kind {
	case chart.KindImage:
		lines = append(lines, cardTitleStyle.Render("Image chart"))
		desc := c.Image.MediaType
		if desc == "" {
			desc = "external image"
		}
		if data, err := c.Image.Data(); err == nil {
			desc = fmt.Sprintf("%s, %.1f KB", desc, float64(len(data))/1024)
		}
		lines = append(lines, desc, controlsStyle.Render("open in the desktop build to view"))

	case chart.KindPlot:
		title := c.Plot.Title
		if title == "" {
			title = "Chart"
		}
		lines = append(lines, cardTitleStyle.Render(title))
		for i, tr := range c.Plot.Traces {
			lines = append(lines, traceSummary(i, tr))
		}
		if len(c.Plot.Traces) == 0 {
			lines = append(lines, "no series")
		}
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func traceSummary(i int, tr chart.Trace) string {
	name := tr.Name
	if name == "" {
		name = fmt.Sprintf("series %d", i+1)
	}
	if tr.Type != "" {
		name += " (" + tr.Type + ")"
	}
	ys := chart.Numbers(tr.Y)
	if len(ys) == 0 {
		return fmt.Sprintf("%s: %d points", name, len(tr.X))
	}
	data := stats.Float64Data(ys)
	lo, _ := data.Min()
	hi, _ := data.Max()
	mean, _ := data.Mean()
	return fmt.Sprintf("%s: %d points  min %.4g  mean %.4g  max %.4g  %s",
		name, len(ys), lo, mean, hi, sparkline(ys, lo, hi))
}

var sparks = []rune("▁▂▃▄▅▆▇█")

func sparkline(ys []float64, lo, hi float64) string {
	const maxWidth = 32
	if len(ys) > maxWidth {
		ys = ys[len(ys)-maxWidth:]
	}
	out := make([]rune, len(ys))
	for i, y := range ys {
		idx := 0
		if hi > lo {
			idx = int((y - lo) / (hi - lo) * float64(len(sparks)-1))
		}
		out[i] = sparks[idx]
	}
	return string(out)
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var parts []string
	if ds := m.conv.Dataset(); ds != nil {
		parts = append(parts, fmt.Sprintf("%s (%d rows, %d columns)", ds.Name, ds.Rows, len(ds.Columns)))
	} else {
		parts = append(parts, "no dataset")
	}
	if t := m.conv.Latest(); t != nil {
		if line := outlineLine(t.Reply.Answer.Outline); line != "" {
			parts = append(parts, line)
		}
		if t.Revealing() {
			n, total := t.Session().Progress()
			parts = append(parts, revealStyle.Render(fmt.Sprintf("revealing %d/%d", n, total)))
		}
	}
	if m.busy {
		parts = append(parts, m.spin.View()+" working")
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	status := statusStyle.Render(strings.Join(parts, " | "))

	var sb strings.Builder
	sb.WriteString(status)
	sb.WriteString("\n")
	sb.WriteString(m.view.View())
	sb.WriteString("\n")
	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	sb.WriteString(controlsStyle.Render(controls))
	return sb.String()
}

func main() {
	server := flag.String("s", "", "Analysis server URL (overrides "+config.EnvServerURL+")")
	gran := flag.String("g", "", "Reveal granularity: word or char")
	tickEvery := flag.Duration("t", 0, "Reveal tick interval, e.g. 35ms")
	noStream := flag.Bool("no-stream", false, "Show answers at once instead of revealing them")
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Spectra - Dataset Analysis Chat\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  spectra [options] [dataset.csv]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  spectra sales.csv                   Upload sales.csv and start chatting\n")
		fmt.Fprintf(os.Stderr, "  spectra -s http://host:8000         Use another analysis server\n")
		fmt.Fprintf(os.Stderr, "  spectra -g char -t 10ms sales.csv   Reveal answers character by character\n")
		fmt.Fprintf(os.Stderr, "\nCommands:\n")
		fmt.Fprintf(os.Stderr, "  /upload <file>   Upload a dataset\n")
		fmt.Fprintf(os.Stderr, "  /profile         Profile the uploaded dataset\n")
		fmt.Fprintf(os.Stderr, "  /skip            Show the current answer in full\n")
		fmt.Fprintf(os.Stderr, "  /clear           Clear the conversation\n")
		fmt.Fprintf(os.Stderr, "  /quit            Quit\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  Settings are read from .env and SPECTRA_* variables.\n")
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("spectra %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	cfg, err := loadConfig(*server, *gran, *tickEvery, *noStream)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("server", cfg.Server.URL),
		zap.Stringer("granularity", cfg.Reveal.Granularity),
		zap.Duration("tick", cfg.Reveal.Tick),
		zap.Bool("stream", cfg.Reveal.Stream))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := client.New(cfg.Server.URL, cfg.Server.Timeout, logger)
	conv := conversation.New(backend, conversation.Options{
		Reveal:          cfg.RevealOptions(),
		Rule:            cfg.ChartRule(),
		ChartsAfterText: cfg.Charts.AfterText,
	}, logger)

	mdStyle := "light"
	if lipgloss.HasDarkBackground() {
		mdStyle = "dark"
	}
	m := newModel(ctx, conv, logger, mdStyle)
	if flag.NArg() > 0 {
		m.dataset = flag.Arg(0)
		m.busy = true
		m.status = "uploading " + m.dataset
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("program failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
