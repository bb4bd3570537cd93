package main

import (
	"strings"
	"time"

	"github.com/metcalfc/spectra/internal/config"
	"github.com/metcalfc/spectra/internal/errs"
	"github.com/metcalfc/spectra/internal/prose"
	"github.com/metcalfc/spectra/internal/reveal"
)

// Version info (injected via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// loadConfig applies command line overrides on top of the environment.
func loadConfig(server, gran string, tickEvery time.Duration, noStream bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if server != "" {
		cfg.Server.URL = server
	}
	if gran != "" {
		g, err := reveal.ParseGranularity(gran)
		if err != nil {
			return nil, err
		}
		cfg.Reveal.Granularity = g
	}
	if tickEvery > 0 {
		cfg.Reveal.Tick = tickEvery
	}
	if noStream {
		cfg.Reveal.Stream = false
	}
	return cfg, cfg.Validate()
}

const maxOutline = 4

// outlineLine lists the top-level sections of an answer.
func outlineLine(headings []prose.Heading) string {
	if len(headings) == 0 {
		return ""
	}
	top := headings[0].Level
	for _, h := range headings {
		top = min(top, h.Level)
	}
	var titles []string
	for _, h := range headings {
		if h.Level == top {
			titles = append(titles, h.Title)
		}
	}
	more := ""
	if len(titles) > maxOutline {
		more = ", ..."
		titles = titles[:maxOutline]
	}
	return "sections: " + strings.Join(titles, ", ") + more
}

// uploadFailure describes a failed upload by where it went wrong.
func uploadFailure(err error) string {
	switch errs.CodeOf(err) {
	case errs.CodeDataset:
		return "cannot read dataset: " + err.Error()
	case errs.CodeTransport:
		return "server unreachable: " + err.Error()
	case errs.CodeServer:
		return "server rejected the upload: " + err.Error()
	}
	return "upload failed: " + err.Error()
}
