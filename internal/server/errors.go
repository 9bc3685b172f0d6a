package server

import (
	"net/http"

	apperrors "github.com/lsk7209/0-nkey-sub001/internal/errors"
)

// HandleError is the single error responder for routes and handlers.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
