package report

import (
	"bytes"
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pos/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

var profitLossTemplate = template.Must(template.New("profit_loss").Funcs(template.FuncMap{
	"money": ledger.FormatMoney,
	"date":  func(t time.Time) string { return t.Format("02.01.2006") },
	"pct":   func(d decimal.Decimal) string { return d.StringFixed(2) + " %" },
}).Parse(`<!doctype html>
<html lang="tr"><head><meta charset="utf-8"><title>Kâr / Zarar</title>
<style>
body { font-family: sans-serif; font-size: 12px; margin: 32px; }
h1 { font-size: 18px; margin-bottom: 4px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
td { padding: 4px 0; border-bottom: 1px solid #ddd; }
td.amount { text-align: right; }
tr.total td { font-weight: bold; border-top: 2px solid #333; }
</style></head>
<body>
<h1>Kâr / Zarar Tablosu</h1>
<p>{{date .Start}} – {{date .End}} · {{.SaleCount}} satış</p>
<table>
<tr><td>Satış gelirleri</td><td class="amount">{{money .Revenue}}</td></tr>
<tr><td>Tahsil edilen KDV</td><td class="amount">{{money .TaxCollected}}</td></tr>
<tr><td>İndirimler</td><td class="amount">{{money .Discounts}}</td></tr>
<tr><td>Satılan malın maliyeti</td><td class="amount">{{money .COGS}}</td></tr>
<tr class="total"><td>Brüt kâr</td><td class="amount">{{money .GrossProfit}}</td></tr>
{{range .ExpensesByCategory}}<tr><td>{{.Category}} ({{.Count}})</td><td class="amount">{{money .Total}}</td></tr>
{{end}}<tr class="total"><td>Toplam giderler</td><td class="amount">{{money .TotalExpenses}}</td></tr>
<tr class="total"><td>Net kâr</td><td class="amount">{{money .NetProfit}}</td></tr>
<tr><td>Kâr marjı</td><td class="amount">{{pct .ProfitMargin}}</td></tr>
</table>
<p>Oluşturulma: {{date .GeneratedAt}}</p>
</body></html>`))

// Renderer produces PDF statements.
type Renderer struct {
	client *Client
	clock  ledger.Clock
}

// NewRenderer constructs a Renderer on top of a Gotenberg client.
func NewRenderer(client *Client, clock ledger.Clock) *Renderer {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	return &Renderer{client: client, clock: clock}
}

// ProfitLossHTML renders the statement as a standalone HTML page.
func (r *Renderer) ProfitLossHTML(pl reports.ProfitLoss) ([]byte, error) {
	var buf bytes.Buffer
	err := profitLossTemplate.Execute(&buf, struct {
		reports.ProfitLoss
		GeneratedAt time.Time
	}{pl, r.clock.Now()})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderProfitLoss converts the statement into a PDF document.
func (r *Renderer) RenderProfitLoss(ctx context.Context, pl reports.ProfitLoss) ([]byte, error) {
	html, err := r.ProfitLossHTML(pl)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}

// Handler manages report endpoints.
type Handler struct {
	client *Client
	logger *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
