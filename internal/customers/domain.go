// Package customers settles customer debt recorded by sales on account.
package customers

import (
	"github.com/shopspring/decimal"
)

// DebtPaymentInput records money received against a customer's balance.
type DebtPaymentInput struct {
	CustomerID int64
	Amount     decimal.Decimal
	Notes      string
	ActorID    int64
}

// DebtPaymentResult describes a committed debt payment.
type DebtPaymentResult struct {
	PaymentID     int64           `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
	RemainingDebt decimal.Decimal `json:"remaining_debt"`
	Message       string          `json:"-"`
}
