// Package api implements the thin Resource API handler contracts (spec
// §6): request/response shapes and gin routes over the workflow runtime,
// resource store, and artifact store, with no business logic of its own.
package api

import (
	"errors"
	"net/http"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/fluxweave/fluxweave/engine/store"
	"github.com/gin-gonic/gin"
)

// Response is the success envelope every handler returns, grounded on the
// {status, data} shape observed at engine/resources/router's call sites.
type Response struct {
	Status int `json:"status"`
	Data   any `json:"data,omitempty"`
}

// ErrorInfo is the error envelope's nested detail block.
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// ErrorEnvelope is the error response body shape, matching the
// {status, error: {code, message, details}} contract the resources router
// test asserts against.
type ErrorEnvelope struct {
	Status int       `json:"status"`
	Error  ErrorInfo `json:"error"`
}

// RespondOK writes a 200 with data wrapped in Response.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Status: http.StatusOK, Data: data})
}

// RespondCreated writes a 201, optionally setting Location when loc is
// non-empty (the resources router sets Location to the new resource's
// canonical path on create).
func RespondCreated(c *gin.Context, loc string, data any) {
	if loc != "" {
		c.Header("Location", loc)
	}
	c.JSON(http.StatusCreated, Response{Status: http.StatusCreated, Data: data})
}

// RespondAccepted writes a 202, used by the async run-submission path
// (wait=false).
func RespondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, Response{Status: http.StatusAccepted, Data: data})
}

// RespondNoContent writes a 200 with an empty data object, used by
// idempotent deletes.
func RespondNoContent(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Status: http.StatusOK})
}

// RespondWithError maps err onto the error taxonomy (spec §7) and writes
// the matching status and ErrorEnvelope. It is the single exit point
// every handler uses on failure, so the taxonomy's HTTP mapping lives in
// exactly one place.
func RespondWithError(c *gin.Context, err error) {
	status, code := statusForErr(err)
	problem := core.NormalizeProblem(&core.Problem{
		Status: status,
		Detail: err.Error(),
	})
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Status: status,
		Error: ErrorInfo{
			Code:    code,
			Message: problem.Title,
			Details: problem.Detail,
		},
	})
}

// statusForErr implements spec §7's error-taxonomy table: ValidationError
// and CyclicDependency -> 400, ResourceNotFound -> 404, an etag mismatch
// (store.ErrConflict, distinct from a duplicate-name Conflict) -> 409, a
// duplicate-unique-field Conflict -> 422, everything else -> 500.
func statusForErr(err error) (int, string) {
	if errors.Is(err, store.ErrConflict) {
		return http.StatusConflict, "CONFLICT"
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, core.CodeResourceNotFound
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return statusForCode(coreErr.Code), coreErr.Code
	}
	return http.StatusInternalServerError, core.CodeWriteError
}

func statusForCode(code string) int {
	switch code {
	case core.CodeValidationError, core.CodeCyclicDependency, core.CodeResourceExhausted:
		return http.StatusBadRequest
	case core.CodeResourceNotFound:
		return http.StatusNotFound
	case core.CodeConflict:
		return http.StatusUnprocessableEntity
	case core.CodeSchemaMismatch:
		return http.StatusUnprocessableEntity
	case core.CodeExecutorUnavailable, core.CodeBrokerError, core.CodeWriteError, core.CodeWorkflowExecutionError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler recovers panics raised by downstream handlers into a 500
// ErrorEnvelope instead of crashing the server, matching the teacher's
// server-wide gin.Recovery-adjacent middleware convention.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err, ok := r.(error)
				if !ok {
					err = errUnknownPanic
				}
				RespondWithError(c, err)
			}
		}()
		c.Next()
	}
}

var errUnknownPanic = errors.New("internal error")
