package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	_ "github.com/odyssey-erp/odyssey-pos/testing"
)

func sampleStatement() reports.ProfitLoss {
	return reports.ProfitLoss{
		Start:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		Revenue:      decimal.NewFromInt(1000),
		COGS:         decimal.NewFromInt(600),
		GrossProfit:  decimal.NewFromInt(400),
		NetProfit:    decimal.NewFromInt(250),
		ProfitMargin: decimal.NewFromInt(25),
		ExpensesByCategory: []reports.CategoryTotal{
			{Category: ledger.ExpenseRent, Count: 1, Total: decimal.NewFromInt(150)},
		},
		TotalExpenses: decimal.NewFromInt(150),
		SaleCount:     7,
	}
}

func TestProfitLossHTML(t *testing.T) {
	r := NewRenderer(nil, ledger.FixedClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)))
	html, err := r.ProfitLossHTML(sampleStatement())
	require.NoError(t, err)
	body := string(html)
	assert.Contains(t, body, "01.01.2026")
	assert.Contains(t, body, "31.01.2026")
	assert.Contains(t, body, "Rent (1)")
	assert.Contains(t, body, "25.00 %")
	assert.Contains(t, body, "7 satış")
}

func TestRenderProfitLossPostsToGotenberg(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		form = r.MultipartForm.Value
		file, _, err := r.FormFile("files")
		require.NoError(t, err)
		content, _ := io.ReadAll(file)
		assert.Contains(t, string(content), "Net kâr")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	pdf, err := NewRenderer(NewClient(srv.URL+"/", time.Second), nil).RenderProfitLoss(context.Background(), sampleStatement())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
	assert.Equal(t, []string{paperWidth}, form["paperWidth"])
}

func TestRenderFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.RenderHTML(context.Background(), []byte("<html></html>"))
	require.Error(t, err)
	require.Error(t, client.Ping(context.Background()))
}
