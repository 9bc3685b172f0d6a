package handlers

import (
	"net/http"
	"sync/atomic"

	apperrors "github.com/lsk7209/0-nkey-sub001/internal/errors"
)

// ErrorResponder writes err as an HTTP response.
type ErrorResponder func(http.ResponseWriter, *http.Request, error)

var errorResponder atomic.Pointer[ErrorResponder]

// SetHTTPErrorResponder routes handler errors through responder. nil restores
// the package default.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	if responder == nil {
		errorResponder.Store(nil)
		return
	}
	r := ErrorResponder(responder)
	errorResponder.Store(&r)
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if responder := errorResponder.Load(); responder != nil {
		(*responder)(w, r, err)
		return
	}
	apperrors.RespondWithError(w, r, err)
}
