package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ClaimSlipItem is one document entry on a pickup claim slip, paired with
// its rendered verification QR.
type ClaimSlipItem struct {
	DocumentType string
	Purpose      string
	Copies       int
	Status       string
	QRPNG        []byte
}

// ClaimSlip is the printable pickup stub for one request.
type ClaimSlip struct {
	Reference     string
	RequesterName string
	Role          string
	PreferredDate *time.Time
	PreferredTime string
	Items         []ClaimSlipItem
}

// ClaimSlipExporter renders pickup claim slips. The slip tracks the request,
// not the requested certificates themselves.
type ClaimSlipExporter struct{}

// NewClaimSlipExporter builds a claim slip exporter.
func NewClaimSlipExporter() *ClaimSlipExporter {
	return &ClaimSlipExporter{}
}

// Render produces the PDF bytes for a claim slip.
func (e *ClaimSlipExporter) Render(slip ClaimSlip) ([]byte, error) {
	if len(slip.Items) == 0 {
		return nil, fmt.Errorf("claim slip requires at least one item")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "DOCUMENT REQUEST CLAIM SLIP", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Reference: %s", slip.Reference), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Requester: %s (%s)", slip.RequesterName, slip.Role), "", 1, "C", false, 0, "")
	if slip.PreferredDate != nil {
		when := slip.PreferredDate.Format("January 2, 2006")
		if slip.PreferredTime != "" {
			when += " " + slip.PreferredTime
		}
		pdf.CellFormat(0, 6, fmt.Sprintf("Pickup: %s", when), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	for idx, item := range slip.Items {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, fmt.Sprintf("%d. %s", idx+1, item.DocumentType), "T", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 5, fmt.Sprintf("Purpose: %s    Copies: %d    Status: %s", item.Purpose, item.Copies, item.Status), "", 1, "", false, 0, "")

		if len(item.QRPNG) > 0 {
			name := fmt.Sprintf("qr-%d", idx)
			pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(item.QRPNG))
			x := pdf.GetX()
			y := pdf.GetY()
			pdf.ImageOptions(name, x, y, 35, 35, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
			pdf.SetY(y + 38)
		}
	}

	pdf.SetFont("Arial", "I", 8)
	pdf.Ln(2)
	pdf.CellFormat(0, 5, "Present this slip with a valid ID. Staff verify live status at the window; the QR snapshot does not reflect later changes.", "", 1, "", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render claim slip: %w", err)
	}
	return buf.Bytes(), nil
}
