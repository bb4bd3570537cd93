package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metcalfc/spectra/internal/chart"
	"github.com/metcalfc/spectra/internal/errs"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second, nil)
}

func TestAnalyzeSendsQuery(t *testing.T) {
	var gotQuery, gotID, gotType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		gotID = r.Header.Get("X-Request-ID")
		gotType = r.Header.Get("Content-Type")
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotQuery = body["query"]
		io.WriteString(w, `{"response":"Sales rose.","chart_data":null}`)
	})

	resp, err := c.Analyze(context.Background(), "how did sales do?")
	require.NoError(t, err)
	assert.Equal(t, "how did sales do?", gotQuery)
	assert.Equal(t, "application/json", gotType)
	assert.Len(t, gotID, 36)
	assert.Equal(t, gotID, resp.RequestID)
	assert.Equal(t, "Sales rose.", resp.Text)
	assert.Empty(t, resp.Charts.Items)
}

func TestAnalyzeChartPayloads(t *testing.T) {
	fig := `{"data":[{"y":[1,2]}]}`
	tests := []struct {
		name     string
		body     string
		wantKind chart.Kind
		want     []string
	}{
		{
			name:     "image string inferred",
			body:     `{"response":"x","chart_data":"data:image/png;base64,AAA="}`,
			wantKind: chart.KindImage,
			want:     []string{"data:image/png;base64,AAA="},
		},
		{
			name:     "array of serialized plots",
			body:     `{"response":"x","chart_kind":"plotly","chart_data":["` + `{\"data\":[]}{\"data\":[1]}` + `","` + `{\"data\":[2]}` + `"]}`,
			wantKind: chart.KindPlot,
			want:     []string{`{"data":[]}{"data":[1]}`, `{"data":[2]}`},
		},
		{
			name:     "embedded object items",
			body:     `{"response":"x","chart_data":[` + fig + `]}`,
			wantKind: chart.KindPlot,
			want:     []string{fig},
		},
		{
			name:     "explicit image kind",
			body:     `{"response":"x","chart_type":"image","chart_data":["https://host/c.png"]}`,
			wantKind: chart.KindImage,
			want:     []string{"https://host/c.png"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			})
			resp, err := c.Analyze(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, resp.Charts.Kind)
			assert.Equal(t, tt.want, resp.Charts.Items)
		})
	}
}

func TestAnalyzeServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"detail":"sandbox crashed"}`)
	})
	_, err := c.Analyze(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, errs.CodeServer, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "sandbox crashed")
	assert.Contains(t, err.Error(), "500")
}

func TestAnalyzeInvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>oops</html>`)
	})
	_, err := c.Analyze(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, errs.CodeDecode, errs.CodeOf(err))
}

func TestAnalyzeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second, nil).Analyze(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, errs.CodeTransport, errs.CodeOf(err))
}

func TestAnalyzeContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"response":"late"}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Analyze(ctx, "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0644))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload", r.URL.Path)
		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "sales.csv", hdr.Filename)
		assert.Equal(t, "text/csv", hdr.Header.Get("Content-Type"))
		assert.Equal(t, "a,b\n1,2\n", string(data))
		io.WriteString(w, `{"message":"File uploaded successfully","path":"/srv/uploads/dataset.csv"}`)
	})

	msg, err := c.Upload(context.Background(), path, "text/csv")
	require.NoError(t, err)
	assert.Equal(t, "File uploaded successfully", msg)
}

func TestUploadMissingFile(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second, nil)
	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "none.csv"), "text/csv")
	require.Error(t, err)
	assert.Equal(t, errs.CodeDataset, errs.CodeOf(err))
}

func TestProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profile", r.URL.Path)
		io.WriteString(w, `{"summary":"1000 rows of sales","shape":[1000,4],"columns":["a","b","c","d"]}`)
	})
	p, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000 rows of sales", p.Text)
	assert.Equal(t, 1000, p.Rows)
	assert.Equal(t, 4, p.Columns)
}

func TestDetailFallbacks(t *testing.T) {
	assert.Equal(t, "bad", detail([]byte(`{"error":"bad"}`), "400 Bad Request"))
	assert.Equal(t, `[{"loc":["body","query"]}]`, detail([]byte(`{"detail":[{"loc":["body","query"]}]}`), "422"))
	assert.Equal(t, "plain text", detail([]byte("plain text"), "500"))
	assert.Equal(t, "502 Bad Gateway", detail(nil, "502 Bad Gateway"))
}
