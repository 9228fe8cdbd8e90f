package server

import (
	"errors"
	"net/http"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
)

type errorResponse struct {
	Error            string `json:"error"`
	Message          string `json:"message"`
	CreditsRemaining *int64 `json:"creditsRemaining,omitempty"`
	CreditsRequired  *int64 `json:"creditsRequired,omitempty"`
}

var kindStatus = map[common.Kind]int{
	common.KindInvalidInput:        http.StatusBadRequest,
	common.KindInsufficientCredits: http.StatusPaymentRequired,
	common.KindUnprocessable:       http.StatusUnprocessableEntity,
	common.KindExtractionEmpty:     http.StatusUnprocessableEntity,
	common.KindMissingCapability:   http.StatusServiceUnavailable,
	common.KindTimeout:             http.StatusGatewayTimeout,
	common.KindInferenceEmpty:      http.StatusBadGateway,
	common.KindInferenceMalformed:  http.StatusBadGateway,
	common.KindStoreError:          http.StatusInternalServerError,
	common.KindInternal:            http.StatusInternalServerError,
}

// statusFor maps an error to its HTTP status by kind.
func statusFor(err error) int {
	if errors.Is(err, common.ErrNotFound) {
		return http.StatusNotFound
	}
	if code, ok := kindStatus[common.KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func (a *API) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	body := errorResponse{
		Error:   string(common.KindOf(err)),
		Message: common.UserMessage(err),
	}
	if code == http.StatusNotFound {
		body.Error, body.Message = "NotFound", "resource not found"
	}

	var appErr *common.AppError
	if errors.As(err, &appErr) && appErr.Kind == common.KindInsufficientCredits {
		body.CreditsRemaining = &appErr.CreditsRemaining
		body.CreditsRequired = &appErr.CreditsRequired
	}

	attrs := []any{"status", code, "kind", body.Error, "error", err, "request_id", common.RequestIDFromContext(r.Context())}
	if code >= http.StatusInternalServerError {
		a.logger.Error("http.request_failed", attrs...)
	} else {
		a.logger.Warn("http.request_rejected", attrs...)
	}
	respondJSON(w, code, body)
}
