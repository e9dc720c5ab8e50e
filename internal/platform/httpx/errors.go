package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
)

// RequestError reports a malformed HTTP request before it reaches a service.
type RequestError struct {
	Message string
	Fields  map[string]string
}

func (e *RequestError) Error() string { return e.Message }

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindInsufficientStock, ledger.KindAlreadyPaid:
		return http.StatusConflict
	case ledger.KindNothingToDo:
		return http.StatusUnprocessableEntity
	case ledger.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// RespondError writes the failure envelope for err. Store failures and
// unclassified errors are logged with their cause and answered generically.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		JSON(w, http.StatusBadRequest, Result{Message: reqErr.Message, Kind: string(ledger.KindValidation), Fields: reqErr.Fields})
		return
	}
	kind := ledger.KindOf(err)
	if kind == "" {
		kind = ledger.KindStoreUnavailable
	}
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("ledger operation failed", slog.String("kind", string(kind)), slog.Any("error", err))
	}
	JSON(w, status, Result{Message: ledger.UserMessage(err), Kind: string(kind)})
}
