package inventory

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"slices"
	"strconv"
)

// ReportDays lists the windows the backend accepts for sales reports.
var ReportDays = []int{1, 7, 28}

// Report is a rendered sales report as returned by the server.
type Report struct {
	Filename string
	Data     []byte
}

// ValidReportDays reports whether days is an accepted report window.
func ValidReportDays(days int) bool { return slices.Contains(ReportDays, days) }

// ReportFilename is the name the server gives a report for days.
func ReportFilename(days int) string {
	return fmt.Sprintf("SmartBiz_Sales_Report_%ddays.pdf", days)
}

// SalesReport downloads the PDF of removals over the last days days.
// Rejections from the server come back as *auth.APIError carrying its detail.
func (c *Client) SalesReport(ctx context.Context, days int) (Report, error) {
	if !ValidReportDays(days) {
		return Report{}, fmt.Errorf("invalid duration %d: choose 1, 7, or 28 days", days)
	}
	body, header, err := c.get(ctx, "/api/reports/sales-pdf?days="+strconv.Itoa(days), "application/pdf")
	if err != nil {
		return Report{}, err
	}
	r := Report{Filename: ReportFilename(days), Data: body}
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil {
		// Never let the server pick a directory.
		if name := filepath.Base(params["filename"]); name != "." && name != "/" && params["filename"] != "" {
			r.Filename = name
		}
	}
	return r, nil
}
