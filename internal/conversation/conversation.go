// Package conversation keeps the question/answer history and the single
// reveal slot used for the latest answer.
//
// Fetch, Upload and FetchProfile only touch the network and may run on any
// goroutine. Every other method must be called from the UI goroutine.
package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/metcalfc/spectra/internal/chart"
	"github.com/metcalfc/spectra/internal/client"
	"github.com/metcalfc/spectra/internal/dataset"
	"github.com/metcalfc/spectra/internal/errs"
	"github.com/metcalfc/spectra/internal/prose"
	"github.com/metcalfc/spectra/internal/reveal"
)

// Backend is the analysis service.
type Backend interface {
	Upload(ctx context.Context, path, contentType string) (string, error)
	Analyze(ctx context.Context, query string) (*client.Response, error)
	Profile(ctx context.Context) (*client.Profile, error)
}

// Options configures a Conversation.
type Options struct {
	Reveal          reveal.Options
	Rule            chart.Rule
	ChartsAfterText bool
	// Scheduler, when set, drives reveal ticks itself. Without it the host
	// calls Tick for every tick it schedules.
	Scheduler reveal.Scheduler
	// Post runs scheduler callbacks on the UI goroutine.
	Post func(func())
	// OnReveal is called with every published prefix.
	OnReveal func(prefix string)
}

// Reply is a fetched, decoded answer that has not been shown yet.
type Reply struct {
	Query     string
	RequestID string
	Answer    prose.Answer
	Charts    []chart.Object
	Elapsed   time.Duration
}

// Turn is one question with its answer as shown on screen.
type Turn struct {
	ID      string
	Query   string
	Reply   Reply
	Err     error
	session *reveal.Session
	settled bool
}

// Text is the answer text to render right now.
func (t *Turn) Text() string {
	if t.session == nil || t.settled {
		return t.Reply.Answer.Text
	}
	return t.session.Display()
}

// Revealing reports whether the answer is still being played back.
func (t *Turn) Revealing() bool {
	return t.session != nil && !t.settled && t.session.Revealing()
}

// Session returns the reveal session of the turn, if any.
func (t *Turn) Session() *reveal.Session { return t.session }

// Conversation is the client-side state of a chat with the service.
type Conversation struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
	slot    *reveal.Slot
	driver  *reveal.Driver
	turns   []*Turn
	tracker dataset.Tracker
}

// New creates an empty conversation.
func New(backend Backend, opts Options, logger *zap.Logger) *Conversation {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Conversation{
		backend: backend,
		opts:    opts,
		logger:  logger,
		slot:    reveal.NewSlot(opts.OnReveal),
	}
	if opts.Scheduler != nil {
		c.driver = reveal.NewDriver(c.slot, opts.Scheduler, opts.Post)
	}
	return c
}

// Fetch asks the backend and decodes the answer.
func (c *Conversation) Fetch(ctx context.Context, query string) (Reply, error) {
	start := time.Now()
	resp, err := c.backend.Analyze(ctx, query)
	if err != nil {
		c.logger.Warn("analyze failed", zap.Error(err))
		return Reply{Query: query}, err
	}
	reply := c.decode(query, resp.RequestID, resp.Text, resp.Charts)
	reply.Elapsed = time.Since(start)
	return reply, nil
}

// FetchProfile asks the backend to profile the dataset.
func (c *Conversation) FetchProfile(ctx context.Context) (Reply, error) {
	start := time.Now()
	p, err := c.backend.Profile(ctx)
	if err != nil {
		c.logger.Warn("profile failed", zap.Error(err))
		return Reply{Query: "/profile"}, err
	}
	text := p.Text
	if p.Rows > 0 || p.Columns > 0 {
		text = fmt.Sprintf("**%d rows, %d columns**\n\n%s", p.Rows, p.Columns, text)
	}
	reply := c.decode("/profile", p.RequestID, text, p.Charts)
	reply.Elapsed = time.Since(start)
	return reply, nil
}

func (c *Conversation) decode(query, requestID, text string, payload chart.Payload) Reply {
	answer := prose.Normalize(text)
	charts := chart.ExtractPayload(payload, c.opts.Rule)
	for _, ref := range answer.Images {
		charts = append(charts, chart.NewImage(ref))
	}
	c.logger.Debug("reply decoded",
		zap.String("request_id", requestID),
		zap.Int("text_len", len(answer.Text)),
		zap.Int("payload_items", len(payload.Items)),
		zap.Stringer("payload_kind", payload.Kind),
		zap.Int("charts", len(charts)))
	return Reply{
		Query:     query,
		RequestID: requestID,
		Answer:    answer,
		Charts:    charts,
	}
}

// Present appends reply as the newest turn and starts revealing it,
// superseding any answer still being revealed.
func (c *Conversation) Present(reply Reply) *Turn {
	c.settle()
	t := &Turn{ID: uuid.NewString(), Query: reply.Query, Reply: reply}
	t.session = c.start(reply.Answer.Text, c.opts.Reveal)
	c.turns = append(c.turns, t)
	return t
}

// Fail appends a turn for a question that could not be answered.
func (c *Conversation) Fail(query string, err error) *Turn {
	c.settle()
	c.cancel()
	t := &Turn{ID: uuid.NewString(), Query: query, Err: err}
	c.turns = append(c.turns, t)
	return t
}

// Tick advances the reveal session with the given id. It reports whether
// another tick should be scheduled.
func (c *Conversation) Tick(id uint64) bool {
	return c.slot.Tick(id)
}

// Skip shows the latest answer in full at once.
func (c *Conversation) Skip() {
	t := c.Latest()
	if t == nil || !t.Revealing() {
		return
	}
	opts := c.opts.Reveal
	opts.Stream = false
	t.session = c.start(t.Reply.Answer.Text, opts)
}

// ChartsVisible reports whether the charts of t may be shown yet.
func (c *Conversation) ChartsVisible(t *Turn) bool {
	return !c.opts.ChartsAfterText || !t.Revealing()
}

// Turns returns the history, oldest first.
func (c *Conversation) Turns() []*Turn { return c.turns }

// Latest returns the newest turn, or nil.
func (c *Conversation) Latest() *Turn {
	if len(c.turns) == 0 {
		return nil
	}
	return c.turns[len(c.turns)-1]
}

// Clear drops the history and stops any reveal.
func (c *Conversation) Clear() {
	c.cancel()
	c.turns = nil
}

// Dataset returns the dataset the server holds, if known.
func (c *Conversation) Dataset() *dataset.Summary { return c.tracker.Current() }

// UploadResult describes an upload attempt.
type UploadResult struct {
	Summary *dataset.Summary
	Message string
	Skipped bool
}

// Upload inspects and sends the dataset at path unless the server already
// holds the same bytes.
func (c *Conversation) Upload(ctx context.Context, path string) (UploadResult, error) {
	format, err := dataset.Lookup(path)
	if err != nil {
		return UploadResult{}, err
	}
	summary, err := format.Inspect(path)
	if err != nil {
		return UploadResult{}, err
	}
	if !c.tracker.NeedsUpload(summary) {
		return UploadResult{Summary: summary, Message: "Dataset already uploaded", Skipped: true}, nil
	}
	msg, err := c.backend.Upload(ctx, path, format.ContentType())
	if err != nil {
		c.logger.Warn("upload failed", zap.String("dataset", summary.Name), zap.Error(err))
		// Unless the file could not be read, the server may have dropped
		// its previous dataset.
		if !errs.Is(err, errs.CodeDataset) {
			c.tracker.Clear()
		}
		return UploadResult{Summary: summary}, err
	}
	c.tracker.MarkUploaded(summary)
	c.logger.Info("dataset uploaded",
		zap.String("dataset", summary.Name),
		zap.String("fingerprint", summary.Fingerprint),
		zap.Int("rows", summary.Rows),
		zap.Int("columns", len(summary.Columns)))
	return UploadResult{Summary: summary, Message: msg}, nil
}

func (c *Conversation) start(text string, opts reveal.Options) *reveal.Session {
	if c.driver != nil {
		return c.driver.Start(text, opts)
	}
	return c.slot.Start(text, opts)
}

func (c *Conversation) cancel() {
	if c.driver != nil {
		c.driver.Cancel()
		return
	}
	c.slot.Cancel()
}

// settle freezes the latest turn at its full text before the slot moves on.
func (c *Conversation) settle() {
	if t := c.Latest(); t != nil {
		t.settled = true
	}
}
