package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

const (
	errTypeInvalid  = "invalid_request_error"
	errTypeNotFound = "not_found_error"
	errTypeBusy     = "rate_limit_error"
	errTypeServer   = "server_error"
)

func writeError(c *echo.Context, status int, body ErrorBody) error {
	return c.JSON(status, map[string]any{"error": body})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, ErrorBody{Type: errTypeInvalid, Message: msg})
}

func writeNotFound(c *echo.Context, id string) error {
	return writeError(c, http.StatusNotFound, ErrorBody{
		Type:    errTypeNotFound,
		Message: fmt.Sprintf("generation %s not found", id),
		Param:   "id",
	})
}

// writeConflict reports an operation that the generation's current status
// does not allow; code carries that status.
func writeConflict(c *echo.Context, msg, status string) error {
	return writeError(c, http.StatusConflict, ErrorBody{Type: errTypeInvalid, Message: msg, Code: status})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(c *echo.Context, err error) error {
	var inv invalidRequestError
	switch {
	case errors.As(err, &inv):
		return writeError(c, http.StatusBadRequest, ErrorBody{Type: errTypeInvalid, Message: err.Error(), Param: inv.param})
	case errors.Is(err, ErrInvalidRequest):
		return writeBadRequest(c, err.Error())
	case errors.Is(err, ErrBusy):
		return writeError(c, http.StatusTooManyRequests, ErrorBody{Type: errTypeBusy, Message: err.Error(), Code: "busy"})
	default:
		return writeError(c, http.StatusInternalServerError, ErrorBody{Type: errTypeServer, Message: err.Error()})
	}
}

// decodeRequest reads exactly one JSON document from r.
func decodeRequest[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return out, errors.New("request body is empty")
		}
		return out, fmt.Errorf("malformed request body: %w", err)
	}
	if dec.More() {
		return out, errors.New("request body holds more than one JSON value")
	}
	return out, nil
}

func newGenerationID() string {
	return "gen_" + uuid.NewString()
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
