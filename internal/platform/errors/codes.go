// Package errors provides structured error handling for the agent.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unclassified failure.
	CodeUnknown Code = "UNKNOWN"

	// Authentication errors
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeAccountExists      Code = "ACCOUNT_EXISTS"
	CodeNotAuthenticated   Code = "NOT_AUTHENTICATED"
	CodeNotAnonymous       Code = "NOT_ANONYMOUS"
	CodeNetworkError       Code = "NETWORK_ERROR"

	// Provider adapter errors
	CodeMissingClientConfiguration Code = "MISSING_CLIENT_CONFIGURATION"
	CodeUserCancelled              Code = "USER_CANCELLED"
	CodeMissingCredentials         Code = "MISSING_CREDENTIALS"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeDecodingError Code = "DECODING_ERROR"
)

// HTTPStatus maps an error code to the HTTP status the agent surface reports.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidCredentials, CodeMissingCredentials, CodeNotAuthenticated:
		return http.StatusUnauthorized
	case CodeAccountExists, CodeNotAnonymous, CodeUserCancelled:
		return http.StatusConflict
	case CodeMissingClientConfiguration:
		return http.StatusPreconditionFailed
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
