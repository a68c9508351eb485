// Package schedule reads installment schedules from CSV/XLSX files and writes
// ledgers back out as XLSX.
package schedule

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"mime"
	"net/url"
	"path"
	"strconv"
	"strings"

	"debtster_installments/internal/installments"
	"debtster_installments/internal/models"
	"debtster_installments/internal/ports"

	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	maxFileSize = 16 << 20
)

var (
	ErrEmptySchedule = errors.New("schedule file has no rows")
	ErrNoAmountCol   = errors.New("schedule file needs an amount or percent column")
)

// header aliases, lower-cased
var columns = map[string]string{
	"amount":   "amount",
	"sum":      "amount",
	"сумма":    "amount",
	"percent":  "percent",
	"%":        "percent",
	"процент":  "percent",
	"due_date": "due_date",
	"date":     "due_date",
	"дата":     "due_date",
	"title":    "title",
	"name":     "title",
	"название": "title",
}

type Result struct {
	Source string
	Format string
	Inputs []installments.Input
	Meta   ports.Meta
}

type Importer struct {
	Opener ports.FileOpener
	Logger *log.Logger
}

func NewImporter(opener ports.FileOpener, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.Default()
	}
	return &Importer{Opener: opener, Logger: logger}
}

// Import opens filePath and parses it into editor inputs.
func (im *Importer) Import(ctx context.Context, filePath string) (Result, error) {
	rc, meta, err := im.Opener.Open(ctx, filePath)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()

	format := DetectFormat(filePath, meta.ContentType)
	inputs, format, err := Parse(rc, format)
	if err != nil {
		im.Logger.Printf("[SCHEDULE][IMPORT][ERR] path=%q fmt=%s err=%v", filePath, format, err)
		return Result{}, err
	}
	im.Logger.Printf("[SCHEDULE][IMPORT][OK] path=%q src=%s fmt=%s rows=%d", filePath, meta.Source, format, len(inputs))
	return Result{Source: meta.Source, Format: format, Inputs: inputs, Meta: meta}, nil
}

// Parse reads r as format; an unknown format tries XLSX then CSV. It returns
// the format that succeeded.
func Parse(r io.Reader, format string) ([]installments.Input, string, error) {
	buf, err := io.ReadAll(io.LimitReader(r, maxFileSize+1))
	if err != nil {
		return nil, format, err
	}
	if len(buf) > maxFileSize {
		return nil, format, fmt.Errorf("schedule file larger than %d bytes", maxFileSize)
	}

	switch format {
	case FormatCSV:
		rows, err := readCSV(buf)
		if err != nil {
			return nil, format, err
		}
		in, err := toInputs(rows)
		return in, format, err
	case FormatXLSX:
		rows, err := readXLSX(buf)
		if err != nil {
			return nil, format, err
		}
		in, err := toInputs(rows)
		return in, format, err
	default:
		if rows, err := readXLSX(buf); err == nil {
			in, err := toInputs(rows)
			return in, FormatXLSX, err
		}
		rows, err := readCSV(buf)
		if err != nil {
			return nil, FormatCSV, err
		}
		in, err := toInputs(rows)
		return in, FormatCSV, err
	}
}

func readCSV(buf []byte) ([][]string, error) {
	buf = bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bufio.NewReader(bytes.NewReader(buf)))
	reader.FieldsPerRecord = -1
	reader.Comma = sniffComma(buf)

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// sniffComma picks ';' for spreadsheets exported with a decimal comma locale.
func sniffComma(buf []byte) rune {
	line := buf
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		line = buf[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func readXLSX(buf []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}
	return f.GetRows(sheets[0])
}

func toInputs(rows [][]string) ([]installments.Input, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySchedule
	}

	idx := map[string]int{}
	for i, h := range rows[0] {
		if col, ok := columns[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := idx[col]; !dup {
				idx[col] = i
			}
		}
	}
	_, hasAmount := idx["amount"]
	_, hasPercent := idx["percent"]
	if !hasAmount && !hasPercent {
		return nil, ErrNoAmountCol
	}

	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]installments.Input, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		in := installments.Input{
			Percent: get(row, "percent"),
			DueDate: get(row, "due_date"),
			Title:   get(row, "title"),
		}
		if raw := models.NormalizeAmount(get(row, "amount")); raw != "" && in.Percent == "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				v = math.NaN()
			}
			in.Amount = &v
		}
		out = append(out, in)
	}
	if len(out) == 0 {
		return nil, ErrEmptySchedule
	}
	return out, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func DetectFormat(filePath, contentType string) string {
	p := filePath
	if u, err := url.Parse(filePath); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "xlsx":
		return FormatXLSX
	case "csv":
		return FormatCSV
	}
	med, _, _ := mime.ParseMediaType(contentType)
	switch med {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	case "text/csv", "application/csv", "text/plain":
		return FormatCSV
	}
	return ""
}
