package ledger

import (
	"errors"
	"fmt"
)

// Error kinds returned by ledger operations. Match with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyPaid       = errors.New("salary already paid")
	ErrNothingToDo       = errors.New("nothing to do")
	ErrStoreUnavailable  = errors.New("ledger store unavailable")
)

// Kind names an error kind at the operation boundary.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindAlreadyPaid       Kind = "already_paid"
	KindNothingToDo       Kind = "nothing_to_do"
	KindStoreUnavailable  Kind = "store_unavailable"
)

// opError carries a user-facing message for one of the kinds above.
type opError struct {
	kind error
	msg  string
}

func (e *opError) Error() string        { return e.msg }
func (e *opError) Is(target error) bool { return target == e.kind }

// Validationf builds a validation error.
func Validationf(format string, args ...any) error {
	return &opError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) error {
	return &opError{kind: ErrNotFound, msg: fmt.Sprintf(format, args...)}
}

// InsufficientStockf builds a stock error when line details are unknown.
func InsufficientStockf(format string, args ...any) error {
	return &opError{kind: ErrInsufficientStock, msg: fmt.Sprintf(format, args...)}
}

// AlreadyPaidf builds an already-paid error.
func AlreadyPaidf(format string, args ...any) error {
	return &opError{kind: ErrAlreadyPaid, msg: fmt.Sprintf(format, args...)}
}

// NothingToDof builds a nothing-to-do error.
func NothingToDof(format string, args ...any) error {
	return &opError{kind: ErrNothingToDo, msg: fmt.Sprintf(format, args...)}
}

// StockShortageError reports a line that exceeds the remaining stock.
type StockShortageError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

func (e *StockShortageError) Is(target error) bool { return target == ErrInsufficientStock }

// StoreError wraps a persistence failure. The cause is kept for logging only.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, ErrStoreUnavailable)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrStoreUnavailable, e.Cause)
}

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }
func (e *StoreError) Unwrap() error        { return e.Cause }

// Unavailable wraps cause as a StoreError unless it already carries a kind.
func Unavailable(op string, cause error) error {
	if cause == nil {
		return nil
	}
	if KindOf(cause) != "" {
		return cause
	}
	return &StoreError{Op: op, Cause: cause}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrAlreadyPaid):
		return KindAlreadyPaid
	case errors.Is(err, ErrNothingToDo):
		return KindNothingToDo
	case errors.Is(err, ErrStoreUnavailable):
		return KindStoreUnavailable
	}
	return ""
}

// UserMessage returns text safe to show to an operator.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if kind := KindOf(err); kind == "" || kind == KindStoreUnavailable {
		return "The ledger is temporarily unavailable, please try again."
	}
	var opErr *opError
	if errors.As(err, &opErr) {
		return opErr.msg
	}
	var shortage *StockShortageError
	if errors.As(err, &shortage) {
		return shortage.Error()
	}
	return err.Error()
}
