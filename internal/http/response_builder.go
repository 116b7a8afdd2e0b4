package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"tipid/internal/services"
)

// ResponseBuilder builds a JSON response. Bodies are always the
// {success, message, data} envelope.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
	cookies    []*http.Cookie
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) Cookie(c *http.Cookie) *ResponseBuilder {
	b.cookies = append(b.cookies, c)
	return b
}

func (b *ResponseBuilder) Body(v any) *ResponseBuilder {
	b.body = v
	return b
}

func (b *ResponseBuilder) StatusCode() int {
	return b.statusCode
}

func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	for _, c := range b.cookies {
		http.SetCookie(w, c)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).Body(envelope{Message: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
		Header("Retry-After", "60")
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// notFoundMessages are the failures that mean the addressed record does
// not exist for the caller.
var notFoundMessages = []string{
	"Expense not found",
	"No savings goal found",
	"No active budget",
	"No market price for",
	"No recent purchases of",
}

// failureStatus maps a failed Result message to a status code: missing
// records are 404, collaborator failures 500, everything else is input the
// caller can fix.
func failureStatus(message string) int {
	for _, m := range notFoundMessages {
		if strings.HasPrefix(message, m) {
			return http.StatusNotFound
		}
	}
	for _, p := range []string{"Failed to", "An error occurred", "Registration failed:"} {
		if strings.HasPrefix(message, p) {
			return http.StatusInternalServerError
		}
	}
	return http.StatusBadRequest
}

// ResultResponse writes a service Result as-is, with 200 on success and the
// failureStatus of its message otherwise.
func ResultResponse[T any](res services.Result[T]) *ResponseBuilder {
	b := NewResponse().Body(res)
	if !res.Success {
		b.Status(failureStatus(res.Message))
	}
	return b
}

// Ok wraps data in a successful envelope.
func Ok[T any](message string, data T) *ResponseBuilder {
	return NewResponse().Body(services.Result[T]{Success: true, Message: message, Data: data})
}
