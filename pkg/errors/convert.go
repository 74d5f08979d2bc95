package errors

import "net/http"

var codeMapping = map[string]int{
	ErrInternal:        http.StatusInternalServerError,
	ErrNotFound:        http.StatusNotFound,
	ErrInvalidArgument: http.StatusBadRequest,
	ErrBadGateway:      http.StatusBadGateway,
}

// ToHTTPStatus converts an error code into an HTTP status code.
// Unknown codes map to Internal Server Error.
func ToHTTPStatus(code string) int {
	if status, ok := codeMapping[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
