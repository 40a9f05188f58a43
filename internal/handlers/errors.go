package handlers

import (
	"errors"
	"fmt"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eldtechnologies/chatmsg/internal/apierror"
	"github.com/eldtechnologies/chatmsg/internal/pipeline"
)

// writeError renders a pipeline error. Anything outside the pipeline's error
// set is logged and reported as SERVER_ERROR without internal detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var missing *pipeline.MissingFieldError
	var notFound *pipeline.NotFoundError

	switch {
	case errors.As(err, &missing):
		apierror.Write(w, http.StatusBadRequest, apierror.CodeMissingField, missingFieldDetails(missing.Field))
	case errors.Is(err, pipeline.ErrInvalidSender):
		apierror.Write(w, http.StatusBadRequest, apierror.CodeInvalidSender, "")
	case errors.Is(err, pipeline.ErrDuplicateMessageID):
		apierror.Write(w, http.StatusConflict, apierror.CodeDuplicateMessageID, "")
	case errors.As(err, &notFound):
		apierror.Write(w, http.StatusNotFound, apierror.CodeNotFound,
			fmt.Sprintf("No %s were found for the given criteria", notFound.Resource))
	default:
		h.logger.Error().
			Err(err).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		apierror.Write(w, http.StatusInternalServerError, apierror.CodeServerError, "")
	}
}

func missingFieldDetails(field string) string {
	return fmt.Sprintf("The field '%s' is required and cannot be empty", field)
}
