// internal/app/features/errors/errors.go
package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/app/system/httpjson"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Response is the JSON body of every error reply.
type Response struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Names     []string          `json:"names,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// ErrorLogger writes classified errors as JSON and logs the ones callers
// cannot act on.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

// Write maps err to a status and body. Internal errors are logged with the
// request id and answered with a generic message.
func (e *ErrorLogger) Write(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	kind := apperr.KindOf(err)
	resp := Response{
		Error:     kind.String(),
		RequestID: middleware.GetReqID(r.Context()),
	}

	if kind == apperr.KindInternal {
		e.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", resp.RequestID),
			zap.Error(err))
		resp.Message = "An internal error occurred."
		httpjson.Write(w, status, resp)
		return
	}

	var ae *apperr.Error
	if stderrors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Names = ae.Names
		resp.Fields = ae.Fields
	}
	e.Log.Debug("request rejected",
		zap.String("path", r.URL.Path),
		zap.String("kind", resp.Error),
		zap.Error(err))
	httpjson.Write(w, status, resp)
}

// LogBadRequest answers 400 with msg for input that never reached a
// service, e.g. a malformed path id.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error) {
	e.Write(w, r, &apperr.Error{Kind: apperr.KindValidation, Message: msg, Err: err})
}

// NotFound answers unknown routes.
func (e *ErrorLogger) NotFound(w http.ResponseWriter, r *http.Request) {
	e.Write(w, r, apperr.NotFound("no route for "+r.Method+" "+r.URL.Path))
}

// MethodNotAllowed answers known routes called with the wrong method.
func (e *ErrorLogger) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusMethodNotAllowed, Response{
		Error:     "method_not_allowed",
		Message:   r.Method + " is not allowed on " + r.URL.Path,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
