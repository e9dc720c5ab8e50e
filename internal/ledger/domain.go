// Package ledger holds the entities shared by every writer and reader of the
// point-of-sale ledger: products, customers, sales, payroll and expenses.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod enumerates how a sale was settled.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "CASH"
	PaymentCard  PaymentMethod = "CARD"
	PaymentDebt  PaymentMethod = "DEBT"
	PaymentSplit PaymentMethod = "SPLIT"
)

// Valid reports whether the method is one of the known values.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentDebt, PaymentSplit:
		return true
	}
	return false
}

// ExpenseCategory classifies an expense.
type ExpenseCategory string

const (
	ExpenseRent        ExpenseCategory = "Rent"
	ExpenseElectricity ExpenseCategory = "Electricity"
	ExpenseWater       ExpenseCategory = "Water"
	ExpenseGas         ExpenseCategory = "Gas"
	ExpenseInternet    ExpenseCategory = "Internet"
	ExpenseSalary      ExpenseCategory = "Salary"
	ExpenseSupplier    ExpenseCategory = "Supplier"
	ExpenseTax         ExpenseCategory = "Tax"
	ExpenseInsurance   ExpenseCategory = "Insurance"
	ExpenseMaintenance ExpenseCategory = "Maintenance"
	ExpenseTransport   ExpenseCategory = "Transport"
	ExpenseOther       ExpenseCategory = "Other"
)

// ExpenseCategories lists every category in declaration order.
var ExpenseCategories = []ExpenseCategory{
	ExpenseRent, ExpenseElectricity, ExpenseWater, ExpenseGas, ExpenseInternet, ExpenseSalary,
	ExpenseSupplier, ExpenseTax, ExpenseInsurance, ExpenseMaintenance, ExpenseTransport, ExpenseOther,
}

// Ordinal returns the declaration index of the category, or -1 when unknown.
func (c ExpenseCategory) Ordinal() int {
	for i, known := range ExpenseCategories {
		if known == c {
			return i
		}
	}
	return -1
}

// Valid reports whether the category is known.
func (c ExpenseCategory) Valid() bool { return c.Ordinal() >= 0 }

// EmployeeRole enumerates staff roles.
type EmployeeRole string

const (
	RoleAdmin   EmployeeRole = "ADMIN"
	RoleManager EmployeeRole = "MANAGER"
	RoleCashier EmployeeRole = "CASHIER"
)

// NotificationType enumerates generated notices.
type NotificationType string

const (
	NotificationLowStock     NotificationType = "LOW_STOCK"
	NotificationDebtReminder NotificationType = "DEBT_REMINDER"
	NotificationSalaryDue    NotificationType = "SALARY_DUE"
	NotificationSystem       NotificationType = "SYSTEM"
)

// DefaultCriticalStock is applied to products created without a threshold.
const DefaultCriticalStock = 10

// Product is a sellable item with a single-store stock counter.
type Product struct {
	ID            int64           `json:"id"`
	Barcode       string          `json:"barcode"`
	Name          string          `json:"name"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	StockQuantity int             `json:"stock_quantity"`
	CriticalStock int             `json:"critical_stock"`
	CategoryID    *int64          `json:"category_id,omitempty"`
}

// Customer carries the running debt balance.
type Customer struct {
	ID            int64           `json:"id"`
	FullName      string          `json:"full_name"`
	Phone         string          `json:"phone,omitempty"`
	Email         string          `json:"email,omitempty"`
	LoyaltyPoints int             `json:"loyalty_points"`
	DebtBalance   decimal.Decimal `json:"debt_balance"`
}

// Sale is an immutable committed sale header.
type Sale struct {
	ID             int64           `json:"id"`
	TransactionID  string          `json:"transaction_id"`
	Date           time.Time       `json:"date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	CustomerID     *int64          `json:"customer_id,omitempty"`
	EmployeeID     *int64          `json:"employee_id,omitempty"`
	PriceFlagged   bool            `json:"price_flagged"`
	Items          []SaleItem      `json:"items,omitempty"`
}

// SaleItem is a sale line with the prices captured at posting time.
type SaleItem struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Employee is a payroll subject.
type Employee struct {
	ID         int64           `json:"id"`
	Username   string          `json:"username"`
	FullName   string          `json:"full_name"`
	Role       EmployeeRole    `json:"role"`
	Active     bool            `json:"active"`
	BaseSalary decimal.Decimal `json:"base_salary"`
	SGKRate    decimal.Decimal `json:"sgk_rate"`
	TaxRate    decimal.Decimal `json:"tax_rate"`
}

// SalaryPayment records one paid salary for an employee and period.
type SalaryPayment struct {
	ID           int64           `json:"id"`
	EmployeeID   int64           `json:"employee_id"`
	EmployeeName string          `json:"employee_name,omitempty"`
	Period       Period          `json:"period"`
	Gross        decimal.Decimal `json:"gross"`
	Net          decimal.Decimal `json:"net"`
	Tax          decimal.Decimal `json:"tax"`
	SGK          decimal.Decimal `json:"sgk"`
	PaidAt       time.Time       `json:"paid_at"`
	Notes        string          `json:"notes,omitempty"`
}

// Expense is an outgoing payment grouped by category.
type Expense struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    ExpenseCategory `json:"category"`
	Date        time.Time       `json:"date"`
	EmployeeID  *int64          `json:"employee_id,omitempty"`
	Recurring   bool            `json:"recurring"`
	Notes       string          `json:"notes,omitempty"`
}

// DebtPayment reduces a customer's debt balance.
type DebtPayment struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	Notes      string          `json:"notes,omitempty"`
}

// Notification is a generated notice shown to staff.
type Notification struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
	RelatedID *int64           `json:"related_id,omitempty"`
}

// MovementKind classifies a stock movement.
type MovementKind string

const (
	MovementSale       MovementKind = "SALE"
	MovementReceipt    MovementKind = "IN"
	MovementAdjustment MovementKind = "ADJUST"
)

// StockMovement is one row of a product's stock card.
type StockMovement struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	Kind        MovementKind    `json:"kind"`
	Quantity    int             `json:"quantity"`
	StockBefore int             `json:"stock_before"`
	StockAfter  int             `json:"stock_after"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Note        string          `json:"note,omitempty"`
	SaleID      *int64          `json:"sale_id,omitempty"`
	ActorID     int64           `json:"actor_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
