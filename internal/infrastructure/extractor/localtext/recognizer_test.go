package localtext

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

func sourceOf(name, mimeType string, raw []byte) domain.FileSource {
	return domain.FileSource{
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(raw)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(raw)), nil
		},
	}
}

func TestTranscribePlainText(t *testing.T) {
	r := New(Options{})
	text, err := r.Transcribe(context.Background(), sourceOf("note.txt", "text/plain", []byte("  Invoice 42\nTotal: 10 EUR \n")))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "Invoice 42\nTotal: 10 EUR" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestTranscribeSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	_ = f.SetCellValue(sheet, "A1", "Item")
	_ = f.SetCellValue(sheet, "B1", "Amount")
	_ = f.SetCellValue(sheet, "A2", "Paper")
	_ = f.SetCellValue(sheet, "B2", 12)
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	_ = f.Close()

	r := New(Options{})
	text, err := r.Transcribe(context.Background(), sourceOf("costs.xlsx", "", buf.Bytes()))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if !strings.Contains(text, "Item\tAmount") || !strings.Contains(text, "Paper\t12") {
		t.Fatalf("unexpected spreadsheet text: %q", text)
	}
	if !strings.HasPrefix(text, "# "+sheet) {
		t.Fatalf("expected sheet heading, got %q", text)
	}
}

func TestTranscribeRejectsUnsupportedBinary(t *testing.T) {
	r := New(Options{})
	_, err := r.Transcribe(context.Background(), sourceOf("photo.jpg", "image/jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 0x80}))
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestTranscribeMalformedPDFIsExtractionError(t *testing.T) {
	r := New(Options{})
	_, err := r.Transcribe(context.Background(), sourceOf("broken.pdf", "application/pdf", []byte("%PDF-1.4\nnot really a pdf")))
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestTranscribeLimits(t *testing.T) {
	r := New(Options{MaxBytes: 8})
	_, err := r.Transcribe(context.Background(), sourceOf("big.txt", "text/plain", []byte("0123456789")))
	if !domain.IsKind(err, domain.ErrExtraction) {
		t.Fatalf("expected extraction error for oversized file, got %v", err)
	}

	r = New(Options{MaxChars: 3})
	text, err := r.Transcribe(context.Background(), sourceOf("short.txt", "text/plain", []byte("äöüß")))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "äöü" {
		t.Fatalf("expected rune-safe truncation, got %q", text)
	}
}
