package activity

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// DefaultReportTitle heads exports without an explicit title.
	DefaultReportTitle = "Activity Log Report"
	notAvailable       = "N/A"
	timestampLayout    = "2006-01-02 15:04:05"
	fileStampLayout    = "2006-01-02_15-04-05"
)

var exportColumns = []string{"Timestamp", "User", "Action", "Product Code", "Product Name"}

// Format selects the export encoding.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatCSV Format = "csv"
)

// Report is the input to an export renderer.
type Report struct {
	Title       string
	Company     string
	GeneratedAt time.Time
	Location    *time.Location
	Rows        []Entry
}

// ExportFileName names an export generated at ts. A specific action
// filter prefixes the name with the action.
func ExportFileName(action string, ts time.Time, format Format) string {
	prefix := "activity"
	if action != "" && action != "all" {
		prefix = action
	}
	return fmt.Sprintf("%s-logs-%s.%s", prefix, ts.Format(fileStampLayout), format)
}

func displayAction(a Action) string {
	return cases.Title(language.English).String(string(a))
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return notAvailable
	}
	return *s
}

func (rep Report) location() *time.Location {
	if rep.Location != nil {
		return rep.Location
	}
	return time.UTC
}

func (rep Report) row(e Entry) []string {
	return []string{
		e.CreatedAt.In(rep.location()).Format(timestampLayout),
		e.UserEmail,
		displayAction(e.Action),
		orNA(e.ProductCode),
		orNA(e.ProductName),
	}
}

// RenderPDF writes the report as an A4 table.
func RenderPDF(w io.Writer, rep Report) error {
	title := rep.Title
	if title == "" {
		title = DefaultReportTitle
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 28

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(contentW, 9, title, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(contentW, 6, "Generated on: "+rep.GeneratedAt.In(rep.location()).Format(timestampLayout), "", 1, "L", false, 0, "")

	if rep.Company != "" {
		pdf.SetFont("Helvetica", "B", 16)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(contentW, 9, rep.Company, "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	widths := []float64{contentW * 0.22, contentW * 0.26, contentW * 0.12, contentW * 0.16, contentW * 0.24}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(41, 128, 185)
	pdf.SetTextColor(255, 255, 255)
	for i, col := range exportColumns {
		pdf.CellFormat(widths[i], 7, col, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(0, 0, 0)
	for n, e := range rep.Rows {
		fill := n%2 == 1
		if fill {
			pdf.SetFillColor(240, 240, 240)
		}
		for i, cell := range rep.row(e) {
			pdf.CellFormat(widths[i], 6, tr(cell), "1", 0, "L", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("activity: render pdf: %w", err)
	}
	return nil
}

// RenderCSV writes the report rows with a header line.
func RenderCSV(w io.Writer, rep Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return err
	}
	for _, e := range rep.Rows {
		if err := cw.Write(rep.row(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Render encodes rep in the requested format.
func Render(format Format, rep Report) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatCSV:
		err = RenderCSV(&buf, rep)
	default:
		err = RenderPDF(&buf, rep)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
