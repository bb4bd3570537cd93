// Package client talks to the analysis service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/metcalfc/spectra/internal/chart"
	"github.com/metcalfc/spectra/internal/errs"
)

// maxBody caps response bodies; image payloads can be several MB.
const maxBody = 64 << 20

// Client calls the analysis service endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New returns a client for the service at baseURL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Response is the result of an analyze call.
type Response struct {
	RequestID string
	Text      string
	Charts    chart.Payload
}

// Profile is the service's description of the uploaded dataset.
type Profile struct {
	RequestID string
	Text      string
	Rows      int
	Columns   int
	Charts    chart.Payload
}

// Upload sends the dataset at path as the multipart field "file".
func (c *Client) Upload(ctx context.Context, path, contentType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeDataset, "failed to open dataset")
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", errs.Wrap(err, errs.CodeInternal, "failed to build upload")
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", errs.Wrap(err, errs.CodeDataset, "failed to read dataset")
	}
	if err := mw.Close(); err != nil {
		return "", errs.Wrap(err, errs.CodeInternal, "failed to build upload")
	}

	body, _, err := c.do(ctx, "/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = "File uploaded successfully"
	}
	return msg, nil
}

// Analyze asks the service a question about the uploaded dataset.
func (c *Client) Analyze(ctx context.Context, query string) (*Response, error) {
	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "failed to encode query")
	}
	body, id, err := c.do(ctx, "/analyze", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, errs.Newf(errs.CodeDecode, "analyze returned invalid JSON (request %s)", id)
	}
	doc := gjson.ParseBytes(body)
	return &Response{
		RequestID: id,
		Text:      first(doc, "response", "answer", "text").String(),
		Charts:    decodeCharts(doc),
	}, nil
}

// Profile asks the service to profile the uploaded dataset.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	body, id, err := c.do(ctx, "/profile", "application/json", strings.NewReader("{}"))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, errs.Newf(errs.CodeDecode, "profile returned invalid JSON (request %s)", id)
	}
	doc := gjson.ParseBytes(body)
	return &Profile{
		RequestID: id,
		Text:      first(doc, "profile", "summary", "response").String(),
		Rows:      int(first(doc, "rows", "row_count", "shape.0").Int()),
		Columns:   int(first(doc, "columns.#", "column_count", "shape.1", "columns").Int()),
		Charts:    decodeCharts(doc),
	}, nil
}

func (c *Client) do(ctx context.Context, endpoint, contentType string, body io.Reader) ([]byte, string, error) {
	id := uuid.NewString()
	log := c.logger.With(zap.String("request_id", id), zap.String("endpoint", endpoint))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return nil, id, errs.Wrap(err, errs.CodeInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", id)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, id, errs.Wrapf(err, errs.CodeTransport, "POST %s", endpoint)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		log.Warn("failed to read response", zap.Error(err))
		return nil, id, errs.Wrapf(err, errs.CodeTransport, "failed to read %s response", endpoint)
	}
	log.Info("request done",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, id, errs.Newf(errs.CodeServer, "%s returned %d: %s", endpoint, resp.StatusCode, detail(data, resp.Status))
	}
	return data, id, nil
}

// detail pulls the error message out of an error body.
func detail(body []byte, status string) string {
	if gjson.ValidBytes(body) {
		d := first(gjson.ParseBytes(body), "detail", "error", "message")
		switch {
		case d.Type == gjson.String:
			return d.String()
		case d.Exists():
			return d.Raw
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) < 200 {
		return s
	}
	return status
}

// decodeCharts reads the chart payload and its kind discriminator.
// chart_data may be a string, an array, or null.
func decodeCharts(doc gjson.Result) chart.Payload {
	var p chart.Payload
	data := first(doc, "chart_data", "charts", "chart")
	switch {
	case data.IsArray():
		for _, item := range data.Array() {
			if item.Type == gjson.String {
				p.Items = append(p.Items, item.String())
			} else if item.IsObject() {
				p.Items = append(p.Items, item.Raw)
			}
		}
	case data.Type == gjson.String:
		p.Items = []string{data.String()}
	case data.IsObject():
		p.Items = []string{data.Raw}
	}

	if k, ok := chart.ParseKind(first(doc, "chart_kind", "chart_type").String()); ok {
		p.Kind = k
		return p
	}
	p.Kind = chart.KindPlot
	for _, item := range p.Items {
		if strings.HasPrefix(strings.TrimSpace(item), "data:image/") {
			p.Kind = chart.KindImage
			break
		}
	}
	return p
}

func first(doc gjson.Result, paths ...string) gjson.Result {
	for _, path := range paths {
		if r := doc.Get(path); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}
