package handlers

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatmsg/internal/pipeline"
	"github.com/eldtechnologies/chatmsg/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	pipeline *pipeline.Pipeline
	store    store.MessageStore
	redis    *store.RedisStore
	logger   zerolog.Logger
	validate *validator.Validate
}

// NewHandler creates a new Handler. redis may be nil.
func NewHandler(p *pipeline.Pipeline, s store.MessageStore, redis *store.RedisStore, logger zerolog.Logger) *Handler {
	return &Handler{
		pipeline: p,
		store:    s,
		redis:    redis,
		logger:   logger,
		validate: newValidator(),
	}
}

// newValidator reports field errors under their JSON or query names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	return v
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
