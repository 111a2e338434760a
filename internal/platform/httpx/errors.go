// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-pos/internal/shared"
)

// ErrMalformedBody indicates a request body that could not be decoded.
var ErrMalformedBody = shared.NewError(shared.KindValidation, "malformed request body")

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var domainErr *shared.Error
	if !errors.As(err, &domainErr) {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	switch domainErr.Kind {
	case shared.KindValidation:
		ProblemWithFields(w, http.StatusBadRequest, "Validation Failed", string(domainErr.Kind), domainErr.Message, domainErr.Fields)
	case shared.KindNotFound:
		ProblemWithFields(w, http.StatusNotFound, "Not Found", string(domainErr.Kind), domainErr.Message, nil)
	case shared.KindInvalidState:
		ProblemWithFields(w, http.StatusConflict, "Invalid State", string(domainErr.Kind), domainErr.Message, nil)
	case shared.KindIntegrity:
		ProblemWithFields(w, http.StatusInternalServerError, "Integrity Alarm", string(domainErr.Kind), domainErr.Message, nil)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
