package vaulterrors

import "net/http"

// HTTPStatus maps a Kind to the status code the server layer should
// respond with.
func HTTPStatus(k Kind) int {
	switch k {
	case AuthFail, WrongPassword:
		return http.StatusUnauthorized
	case IntegrityFail:
		return http.StatusConflict
	case NotFound:
		return http.StatusNotFound
	case InvalidRequest:
		return http.StatusBadRequest
	case InvalidState:
		return http.StatusConflict
	case SyncFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
