// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/costtrack/costtrack/internal/handler/dto"
	"github.com/costtrack/costtrack/internal/i18n"
)

// Handler serves the endpoints that have no dependencies.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Hello handles GET /.
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.HelloResponse{Message: i18n.T(r.Context(), i18n.MsgHello)})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, dto.CodeNotFound, i18n.MsgNotFound)
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, dto.CodeMethodNotAllowed, i18n.MsgMethodNotAllowed)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("write response body", "error", err)
	}
}

// writeError writes a localized error body.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, key string, args ...any) {
	writeJSON(w, status, dto.ErrorResponse{
		Detail: i18n.T(r.Context(), key, args...),
		Code:   code,
	})
}

// writeFieldErrors writes a 422 with per-field messages.
func writeFieldErrors(w http.ResponseWriter, r *http.Request, fields []dto.FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{
		Detail: i18n.T(r.Context(), i18n.MsgValidationFailed),
		Code:   dto.CodeValidation,
		Errors: fields,
	})
}

var errTrailingData = errors.New("unexpected data after JSON body")

// decodeJSON strictly decodes a request body into dst. An empty body
// leaves dst untouched so required-field validation reports it.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}

// writeDecodeError maps a decodeJSON failure: oversize bodies get 413,
// well-formed JSON with wrong fields or types gets 422, anything else 400.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, r, http.StatusRequestEntityTooLarge, dto.CodePayloadTooLarge, i18n.MsgRequestTooLarge)
		return
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		writeFieldErrors(w, r, []dto.FieldError{{Field: field, Message: "invalid type, expected " + typeErr.Type.String()}})
		return
	}

	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		writeFieldErrors(w, r, []dto.FieldError{{Field: strings.Trim(name, `"`), Message: "extra fields not permitted"}})
		return
	}

	writeError(w, r, http.StatusBadRequest, dto.CodeBadRequest, i18n.MsgInvalidJSON)
}
