package inventory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartbiz/auth"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

type noToken struct{}

func (noToken) Token() (string, error) { return "", errors.New("not logged in") }

const stockBody = `{"status":"success","inventory":[
	{"item":"Rice","item_nepali":"चामल","current_stock":120,"unit":"kg"},
	{"item":"Sugar","item_nepali":"चिनी","current_stock":12.5,"unit":"kg"},
	{"item":"Cooking Oil","item_nepali":"तेल","current_stock":3,"unit":"litre"}
]}`

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stock", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(stockBody))
	}))
	defer srv.Close()

	items, err := NewClient(srv.URL+"/", time.Second, staticToken("good")).List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "Rice", items[0].Name)
	require.Equal(t, "चामल", items[0].NameLocal)
	require.Equal(t, 12.5, items[1].Stock)

	_, err = NewClient(srv.URL, time.Second, staticToken("bad")).List(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = NewClient(srv.URL, time.Second, noToken{}).List(context.Background())
	require.Error(t, err)
}

func TestListServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"db down"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, nil).List(context.Background())
	require.ErrorContains(t, err, "db down")
}

func TestSearch(t *testing.T) {
	items := []Item{
		{Name: "Rice", NameLocal: "चामल"},
		{Name: "Basmati Rice", NameLocal: "बासमती"},
		{Name: "Sugar", NameLocal: "चिनी"},
	}
	require.Len(t, Search(items, "rice"), 2)
	require.Len(t, Search(items, "  RICE "), 2)
	require.Equal(t, "Sugar", Search(items, "चिनी")[0].Name)
	require.Empty(t, Search(items, "salt"))
	require.Len(t, Search(items, ""), 3)
}

func TestDashboard(t *testing.T) {
	s := Dashboard([]Item{
		{Name: "Rice", Stock: 120},
		{Name: "Sugar", Stock: 39.5},
		{Name: "Oil", Stock: 3},
		{Name: "Salt", Stock: 40},
	})
	require.Equal(t, 4, s.Total)
	require.Equal(t, 2, s.LowStock)
	require.Equal(t, "Oil", s.Low[0].Name)
	require.Equal(t, "Sugar", s.Low[1].Name)

	require.Zero(t, Dashboard(nil).LowStock)
}

func TestFormatStock(t *testing.T) {
	require.Equal(t, "5 kg", FormatStock(Item{Stock: 5, Unit: "kg"}))
	require.Equal(t, "2.5 litre", FormatStock(Item{Stock: 2.5, Unit: "litre"}))
	require.Equal(t, "7", FormatStock(Item{Stock: 7}))
}

func TestSalesReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/reports/sales-pdf", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Query().Get("days") {
		case "7":
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", "attachment; filename=../../etc/SmartBiz_Sales_Report_7days.pdf")
			w.Write([]byte("%PDF-1.3 body"))
		case "1":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.3 day"))
		case "28":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"No sales or removals found in the last 28 days."}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, staticToken("good"))
	rep, err := c.SalesReport(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "SmartBiz_Sales_Report_7days.pdf", rep.Filename)
	require.Equal(t, "%PDF-1.3 body", string(rep.Data))

	rep, err = c.SalesReport(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, ReportFilename(1), rep.Filename)

	_, err = c.SalesReport(context.Background(), 28)
	var apiErr *auth.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "No sales or removals found in the last 28 days.", apiErr.Detail)

	_, err = NewClient(srv.URL, time.Second, staticToken("bad")).SalesReport(context.Background(), 7)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSalesReportRejectsDaysLocally(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	for _, days := range []int{0, 3, 30, -7} {
		_, err := NewClient(srv.URL, time.Second, staticToken("good")).SalesReport(context.Background(), days)
		require.ErrorContains(t, err, "choose 1, 7, or 28 days")
	}
	require.Zero(t, calls)
	require.True(t, ValidReportDays(28))
}
