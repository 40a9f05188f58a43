package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/eldtechnologies/chatmsg/internal/apierror"
	"github.com/eldtechnologies/chatmsg/internal/metrics"
	"github.com/eldtechnologies/chatmsg/internal/models"
	"github.com/eldtechnologies/chatmsg/internal/pipeline"
)

// Pagination bounds for ListMessages.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// CreateMessageRequest is the POST /api/messages body. Pointer fields tell an
// absent key apart from an empty value. Client-supplied timestamp and
// metadata are not decoded.
type CreateMessageRequest struct {
	MessageID *string `json:"message_id" validate:"required,max=64"`
	SessionID *string `json:"session_id" validate:"required,max=64"`
	Content   *string `json:"content" validate:"required"`
	Sender    *string `json:"sender" validate:"required"`
}

// ListMessagesQuery holds the pagination parameters of ListMessages.
type ListMessagesQuery struct {
	Limit  int `query:"limit" validate:"gte=0,lte=100"`
	Offset int `query:"offset" validate:"gte=0"`
}

// CreateMessage handles POST /api/messages.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDecodeError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeValidationError(w, r, err)
		return
	}

	msg := &models.Message{
		MessageID: *req.MessageID,
		SessionID: *req.SessionID,
		Content:   *req.Content,
		Sender:    *req.Sender,
	}

	saved, err := h.pipeline.ProcessAndSave(r.Context(), msg)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.MessagesCreated.WithLabelValues(saved.Sender).Inc()
	h.JSON(w, http.StatusCreated, saved)
}

// ListMessages handles GET /api/messages/{session_id}.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	page := ListMessagesQuery{Limit: DefaultLimit}
	var err error
	if v := params.Get("limit"); v != "" {
		if page.Limit, err = strconv.Atoi(v); err != nil {
			apierror.Write(w, http.StatusBadRequest, apierror.CodeInvalidFormat, "limit must be an integer")
			return
		}
	}
	if v := params.Get("offset"); v != "" {
		if page.Offset, err = strconv.Atoi(v); err != nil {
			apierror.Write(w, http.StatusBadRequest, apierror.CodeInvalidFormat, "offset must be an integer")
			return
		}
	}
	if err := h.validate.Struct(page); err != nil {
		h.writeValidationError(w, r, err)
		return
	}

	q := pipeline.Query{
		SessionID: chi.URLParam(r, "session_id"),
		Limit:     page.Limit,
		Offset:    page.Offset,
		Sender:    params.Get("sender"),
		Text:      params.Get("query"),
	}

	messages, err := h.pipeline.GetMessages(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.MessagesListed.WithLabelValues(strconv.FormatBool(q.Text != "")).Inc()
	h.JSON(w, http.StatusOK, messages)
}

func (h *Handler) writeDecodeError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &maxBytes):
		apierror.Write(w, http.StatusRequestEntityTooLarge, apierror.CodeInvalidFormat, "request body too large")
	case errors.Is(err, io.EOF):
		apierror.Write(w, http.StatusBadRequest, apierror.CodeInvalidFormat, "request body is required")
	case errors.As(err, &typeErr):
		apierror.Write(w, http.StatusBadRequest, apierror.CodeInvalidFormat,
			fmt.Sprintf("field '%s' must be a %s", typeErr.Field, typeErr.Type))
	default:
		apierror.Write(w, http.StatusBadRequest, apierror.CodeInvalidFormat, "invalid JSON body")
	}
}

// writeValidationError reports the first failing field. A failed "required"
// is MISSING_FIELD, any other rule INVALID_FORMAT.
func (h *Handler) writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		h.writeError(w, r, err)
		return
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		apierror.Write(w, http.StatusBadRequest, apierror.CodeMissingField, missingFieldDetails(fe.Field()))
	case "max":
		apierror.Write(w, http.StatusBadRequest, apierror.CodeInvalidFormat,
			fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
	case "gte", "lte":
		apierror.Write(w, http.StatusBadRequest, apierror.CodeInvalidFormat, boundsDetails(fe.Field()))
	default:
		apierror.Write(w, http.StatusBadRequest, apierror.CodeInvalidFormat, "")
	}
}

func boundsDetails(field string) string {
	if field == "limit" {
		return fmt.Sprintf("limit must be between 0 and %d", MaxLimit)
	}
	return field + " must not be negative"
}
