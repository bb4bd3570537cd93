//go:build gui

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"github.com/metcalfc/spectra/internal/chart"
	"github.com/metcalfc/spectra/internal/client"
	"github.com/metcalfc/spectra/internal/conversation"
	"github.com/metcalfc/spectra/internal/logging"
	"github.com/metcalfc/spectra/internal/plot"
	"github.com/metcalfc/spectra/internal/reveal"
)

// ui holds the window state. Every method runs on the fyne goroutine.
type ui struct {
	ctx    context.Context
	conv   *conversation.Conversation
	logger *zap.Logger
	win    fyne.Window

	history *fyne.Container
	scroll  *container.Scroll
	status  *widget.Label
	entry   *widget.Entry

	liveTurn   *conversation.Turn
	liveText   *widget.RichText
	liveCharts *fyne.Container
	busy       bool
}

func (u *ui) rebuild() {
	u.history.Objects = nil
	u.liveTurn, u.liveText, u.liveCharts = nil, nil, nil
	latest := u.conv.Latest()
	for _, t := range u.conv.Turns() {
		u.history.Add(u.turnView(t, t == latest))
	}
	u.history.Refresh()
	u.scroll.ScrollToBottom()
	u.updateStatus()
}

func (u *ui) turnView(t *conversation.Turn, live bool) fyne.CanvasObject {
	query := widget.NewLabelWithStyle("> "+t.Query, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	if t.Err != nil {
		msg := widget.NewLabel("Error: " + t.Err.Error())
		msg.Importance = widget.DangerImportance
		msg.Wrapping = fyne.TextWrapWord
		return container.NewVBox(query, msg)
	}

	body := widget.NewRichTextFromMarkdown(t.Text())
	body.Wrapping = fyne.TextWrapWord
	charts := container.NewVBox()
	if u.conv.ChartsVisible(t) {
		u.fillCharts(charts, t)
	}
	if live {
		u.liveTurn, u.liveText, u.liveCharts = t, body, charts
	}
	return container.NewVBox(query, body, charts, widget.NewSeparator())
}

// onReveal repaints the latest answer after a reveal step.
func (u *ui) onReveal(string) {
	t := u.conv.Latest()
	if t == nil || t != u.liveTurn {
		return
	}
	u.liveText.ParseMarkdown(t.Text())
	if len(u.liveCharts.Objects) == 0 && u.conv.ChartsVisible(t) {
		u.fillCharts(u.liveCharts, t)
	}
	if !t.Revealing() {
		u.scroll.ScrollToBottom()
	}
	u.updateStatus()
}

func (u *ui) fillCharts(box *fyne.Container, t *conversation.Turn) {
	for i, c := range t.Reply.Charts {
		obj, err := chartView(c, i)
		if err != nil {
			u.logger.Warn("chart not shown", zap.String("turn", t.ID), zap.Int("chart", i), zap.Error(err))
			obj = widget.NewLabel("Chart unavailable: " + err.Error())
		}
		box.Add(obj)
	}
	box.Refresh()
}

func chartView(c chart.Object, i int) (fyne.CanvasObject, error) {
	switch c.Kind {
	case chart.KindPlot:
		img, err := plot.Render(c.Plot, plot.DefaultWidth, plot.DefaultHeight)
		if err != nil {
			return nil, err
		}
		ci := canvas.NewImageFromImage(img)
		ci.FillMode = canvas.ImageFillContain
		ci.SetMinSize(fyne.NewSize(640, 320))
		return ci, nil

	case chart.KindImage:
		if !strings.HasPrefix(c.Image.Ref, "data:") {
			u, err := url.Parse(c.Image.Ref)
			if err != nil {
				return nil, err
			}
			return widget.NewHyperlink("Open chart image", u), nil
		}
		data, err := c.Image.Data()
		if err != nil {
			return nil, err
		}
		ci := canvas.NewImageFromResource(fyne.NewStaticResource(fmt.Sprintf("chart-%d", i), data))
		ci.FillMode = canvas.ImageFillContain
		ci.SetMinSize(fyne.NewSize(640, 360))
		return ci, nil
	}
	return nil, fmt.Errorf("unknown chart kind %s", c.Kind)
}

func (u *ui) updateStatus() {
	var parts []string
	if ds := u.conv.Dataset(); ds != nil {
		parts = append(parts, fmt.Sprintf("%s (%d rows, %d columns)", ds.Name, ds.Rows, len(ds.Columns)))
	} else {
		parts = append(parts, "No dataset")
	}
	if t := u.conv.Latest(); t != nil {
		if line := outlineLine(t.Reply.Answer.Outline); line != "" {
			parts = append(parts, line)
		}
		if t.Revealing() {
			n, total := t.Session().Progress()
			parts = append(parts, fmt.Sprintf("Revealing %d/%d", n, total))
		}
	}
	if u.busy {
		parts = append(parts, "Working...")
	}
	u.status.SetText(strings.Join(parts, " | "))
}

func (u *ui) ask(query string) {
	query = strings.TrimSpace(query)
	if query == "" || u.busy {
		return
	}
	u.entry.SetText("")
	u.busy = true
	u.updateStatus()
	go func() {
		reply, err := u.conv.Fetch(u.ctx, query)
		fyne.Do(func() { u.present(query, reply, err) })
	}()
}

func (u *ui) profile() {
	if u.busy {
		return
	}
	u.busy = true
	u.updateStatus()
	go func() {
		reply, err := u.conv.FetchProfile(u.ctx)
		fyne.Do(func() { u.present("/profile", reply, err) })
	}()
}

func (u *ui) present(query string, reply conversation.Reply, err error) {
	u.busy = false
	if err != nil {
		u.conv.Fail(query, err)
	} else {
		u.conv.Present(reply)
	}
	u.rebuild()
}

func (u *ui) upload(path string) {
	u.busy = true
	u.updateStatus()
	go func() {
		res, err := u.conv.Upload(u.ctx, path)
		fyne.Do(func() {
			u.busy = false
			u.updateStatus()
			switch {
			case err != nil:
				dialog.ShowError(errors.New(uploadFailure(err)), u.win)
			case !res.Skipped:
				dialog.ShowInformation("Dataset uploaded", fmt.Sprintf("%s: %s", res.Summary.Name, res.Message), u.win)
			}
		})
	}()
}

func (u *ui) chooseDataset() {
	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, u.win)
			return
		}
		if r == nil {
			return
		}
		path := r.URI().Path()
		r.Close()
		u.upload(path)
	}, u.win)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".csv"}))
	d.Show()
}

func (u *ui) skip() {
	u.conv.Skip()
	u.onReveal("")
}

func (u *ui) clear() {
	u.conv.Clear()
	u.rebuild()
}

func main() {
	server := flag.String("s", "", "Analysis server URL")
	gran := flag.String("g", "", "Reveal granularity: word or char")
	tickEvery := flag.Duration("t", 0, "Reveal tick interval, e.g. 35ms")
	noStream := flag.Bool("no-stream", false, "Show answers at once instead of revealing them")
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Spectra - Dataset Analysis Chat (desktop)\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  spectra-gui [options] [dataset.csv]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("spectra-gui %s (commit: %s, built: %s)\n", version, commit, date)
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := app.New()
	w := a.NewWindow("spectra")

	u := &ui{ctx: ctx, logger: logger, win: w}
	u.conv = conversation.New(
		client.New(cfg.Server.URL, cfg.Server.Timeout, logger),
		conversation.Options{
			Reveal:          cfg.RevealOptions(),
			Rule:            cfg.ChartRule(),
			ChartsAfterText: cfg.Charts.AfterText,
			Scheduler:       reveal.Clock{},
			Post:            fyne.Do,
			OnReveal:        func(p string) { u.onReveal(p) },
		},
		logger,
	)

	u.history = container.NewVBox()
	u.scroll = container.NewVScroll(u.history)
	u.status = widget.NewLabel("")
	u.entry = widget.NewEntry()
	u.entry.SetPlaceHolder("Ask a question about your dataset...")
	u.entry.OnSubmitted = u.ask

	askBtn := widget.NewButton("Ask", func() { u.ask(u.entry.Text) })
	askBtn.Importance = widget.HighImportance
	toolbar := container.NewHBox(
		widget.NewButton("Upload...", u.chooseDataset),
		widget.NewButton("Profile", u.profile),
		widget.NewButton("Skip", u.skip),
		widget.NewButton("Clear", u.clear),
	)
	input := container.NewBorder(nil, nil, nil, askBtn, u.entry)
	top := container.NewBorder(nil, nil, toolbar, nil, u.status)

	w.SetContent(container.NewBorder(top, input, nil, nil, u.scroll))
	w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		if key.Name == fyne.KeyEscape {
			u.skip()
		}
	})
	w.Resize(fyne.NewSize(900, 700))
	w.SetOnClosed(cancel)

	u.updateStatus()
	if flag.NArg() > 0 {
		dataset := flag.Arg(0)
		go func() {
			time.Sleep(100 * time.Millisecond)
			fyne.Do(func() { u.upload(dataset) })
		}()
	}

	logger.Info("starting gui", zap.String("version", version), zap.String("server", cfg.Server.URL))
	w.ShowAndRun()
}
