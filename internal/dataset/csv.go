package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/metcalfc/spectra/internal/errs"
)

// Summary is a local preview of a dataset.
type Summary struct {
	Name        string
	Format      string
	Columns     []string
	Rows        int
	Size        int64
	Fingerprint string
}

// CSVFormat implements Format for comma separated files.
type CSVFormat struct{}

func init() {
	Register(&CSVFormat{})
}

func (f *CSVFormat) Name() string         { return "CSV" }
func (f *CSVFormat) Extensions() []string { return []string{".csv"} }
func (f *CSVFormat) ContentType() string  { return "text/csv" }

// Inspect reads the header and counts data rows.
func (f *CSVFormat) Inspect(filename string) (*Summary, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeDataset, "failed to open dataset")
	}
	defer file.Close()

	st, err := file.Stat()
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeDataset, "failed to stat dataset")
	}

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errs.Newf(errs.CodeDataset, "%s is empty", filepath.Base(filename))
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeDataset, "failed to read CSV header")
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrapf(err, errs.CodeDataset, "failed to read CSV row %d", rows+2)
		}
		rows++
	}

	fp, err := ComputeHash(filename)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeDataset, "failed to fingerprint dataset")
	}

	return &Summary{
		Name:        filepath.Base(filename),
		Format:      f.Name(),
		Columns:     columns,
		Rows:        rows,
		Size:        st.Size(),
		Fingerprint: fp,
	}, nil
}
