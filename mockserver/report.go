package mockserver

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
)

// transaction is one stock movement kept for reporting.
type transaction struct {
	At        time.Time
	Name      string
	NameLocal string
	Action    string
	Qty       float64
	Unit      string
}

// record appends a movement of p to the ledger. Callers hold s.mu.
func (s *Server) record(p *product, action string, qty float64) {
	s.ledger = append(s.ledger, transaction{
		At:        s.now(),
		Name:      p.Name,
		NameLocal: p.NameLocal,
		Action:    action,
		Qty:       qty,
		Unit:      p.Unit,
	})
}

// removals returns REMOVE movements since the cutoff, newest first.
func (s *Server) removals(days int) []transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	var out []transaction
	for _, tx := range s.ledger {
		if tx.Action == "REMOVE" && !tx.At.Before(since) {
			out = append(out, tx)
		}
	}
	slices.SortStableFunc(out, func(a, b transaction) int { return b.At.Compare(a.At) })
	return out
}

func (s *Server) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]any{{
				"loc":  []string{"query", "days"},
				"msg":  "Input should be a valid integer",
				"type": "int_parsing",
			}}})
			return
		}
		days = n
	}
	if days != 1 && days != 7 && days != 28 {
		writeDetail(w, http.StatusBadRequest, "Invalid duration. Choose 1, 7, or 28 days.")
		return
	}

	txs := s.removals(days)
	if len(txs) == 0 {
		writeDetail(w, http.StatusNotFound, fmt.Sprintf("No sales or removals found in the last %d days.", days))
		return
	}

	data, err := renderSalesReport(txs, days, s.now())
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=SmartBiz_Sales_Report_%ddays.pdf", days))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func renderSalesReport(txs []transaction, days int, generated time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 15)
		pdf.CellFormat(0, 10, "SmartBiz Inventory System", "", 1, "C", false, 0, "")
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 6, "Automated Sales & Stock Removal Report", "", 1, "C", false, 0, "")
		pdf.Ln(6)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 10, fmt.Sprintf("Sales Report (Last %d Days)", days), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, "Generated on: "+generated.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{45, 95, 40}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(220, 220, 220)
	for i, h := range []string{"Date", "Item", "Qty Sold"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	var total float64
	for _, tx := range txs {
		item := tx.Name
		if tx.NameLocal != "" {
			item = fmt.Sprintf("%s (%s)", tx.Name, tx.NameLocal)
		}
		pdf.CellFormat(widths[0], 8, tx.At.Format("2006-01-02 15:04"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 8, tr(item), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 8, tr(formatQty(tx.Qty)+" "+tx.Unit), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
		total += tx.Qty
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 8, "Total Units Sold/Removed: "+formatQty(total), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}
