package errors

const (
	HttpInternalError       = "internal_error"
	HttpInvalidRequestError = "invalid_request"
	HttpTypeNotFoundError   = "type_not_found"
	HttpRangeError          = "range"
	HttpNotFoundError       = "not_found"
)

// ErrorResponse is the error response body for the read API.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
