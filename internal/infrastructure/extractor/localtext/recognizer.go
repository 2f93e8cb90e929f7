package localtext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

type format string

const (
	formatText format = "text"
	formatPDF  format = "pdf"
	formatXLSX format = "xlsx"
	formatNone format = ""
)

const (
	defaultMaxBytes = 32 << 20
	defaultMaxChars = 200_000
)

type Options struct {
	// MaxBytes caps how much of the file is read; larger files are rejected.
	MaxBytes int64
	// MaxChars truncates the transcription.
	MaxChars int
}

// Recognizer transcribes text locally from plain text, PDF and XLSX files.
type Recognizer struct {
	maxBytes int64
	maxChars int
}

func New(options Options) *Recognizer {
	r := &Recognizer{maxBytes: options.MaxBytes, maxChars: options.MaxChars}
	if r.maxBytes <= 0 {
		r.maxBytes = defaultMaxBytes
	}
	if r.maxChars <= 0 {
		r.maxChars = defaultMaxChars
	}
	return r
}

func (r *Recognizer) Transcribe(ctx context.Context, file domain.FileSource) (string, error) {
	if file.Open == nil {
		return "", domain.WrapError(domain.ErrExtraction, "transcribe", errors.New("file source cannot be opened"))
	}
	reader, err := file.Open()
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "transcribe", fmt.Errorf("open %s: %w", file.Name, err))
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, r.maxBytes+1))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "transcribe", fmt.Errorf("read %s: %w", file.Name, err))
	}
	if int64(len(raw)) > r.maxBytes {
		return "", domain.WrapError(domain.ErrExtraction, "transcribe", fmt.Errorf("%s exceeds %d bytes", file.Name, r.maxBytes))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var text string
	switch detect(raw, file.MimeType, file.Name) {
	case formatPDF:
		text, err = pdfText(raw)
	case formatXLSX:
		text, err = xlsxText(raw)
	case formatText:
		text = string(raw)
	default:
		err = fmt.Errorf("unsupported binary format: %s", file.Name)
	}
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "transcribe", err)
	}
	return truncateRunes(strings.TrimSpace(text), r.maxChars), nil
}

func detect(raw []byte, contentType, name string) format {
	ext := strings.ToLower(filepath.Ext(name))
	contentType = strings.ToLower(contentType)
	switch {
	case bytes.HasPrefix(raw, []byte("%PDF-")), ext == ".pdf", contentType == "application/pdf":
		return formatPDF
	case ext == ".xlsx",
		contentType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return formatXLSX
	case utf8.Valid(raw):
		return formatText
	default:
		return formatNone
	}
}

func pdfText(raw []byte) (text string, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("read pdf: malformed document: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(out), nil
}

// xlsxText renders every sheet as tab-separated rows under a sheet heading.
func xlsxText(raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("# ")
		b.WriteString(sheet)
		b.WriteString("\n")
		for _, row := range rows {
			cells := make([]string, len(row))
			for i, cell := range row {
				cells[i] = strings.TrimSpace(cell)
			}
			line := strings.TrimRight(strings.Join(cells, "\t"), "\t")
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
