package apperr

import (
	"net/http"
	"strconv"
)

// Diagnostic header names. These are written on error responses for the
// operator-facing edge to read and strip before the body reaches clients.
const (
	HeaderCode       = "X-Error-Code"
	HeaderStatusCode = "X-Error-Status-Code"
	HeaderLogLevel   = "X-Error-Log-Level"
	HeaderMessage    = "X-Error-Message"
	HeaderDetail     = "X-Error-Detail"
)

// LogLevel returns the log severity for the kind.
func (k Kind) LogLevel() string {
	switch k {
	case Validation, Unauthorized, Forbidden, NotFound, Conflict:
		return "warn"
	default:
		return "error"
	}
}

// SetHeaders writes the diagnostic headers for e onto h.
func SetHeaders(h http.Header, e *Error) {
	if e == nil {
		return
	}
	h.Set(HeaderCode, strconv.Itoa(e.Kind.Code()))
	h.Set(HeaderStatusCode, strconv.Itoa(e.Kind.HTTPStatus()))
	h.Set(HeaderLogLevel, e.Kind.LogLevel())
	h.Set(HeaderMessage, e.Message)
	if e.Detail != "" {
		h.Set(HeaderDetail, e.Detail)
	}
}

// StripHeaders removes the diagnostic headers before a response leaves the
// trusted edge.
func StripHeaders(h http.Header) {
	h.Del(HeaderCode)
	h.Del(HeaderStatusCode)
	h.Del(HeaderLogLevel)
	h.Del(HeaderMessage)
	h.Del(HeaderDetail)
}
