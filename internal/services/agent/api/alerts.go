package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/daybreak-app/daybreak/internal/platform/errors"
)

// statusSuccessful is the terminal status front ends treat as a navigation
// trigger after login, sign-up, and conversion.
const statusSuccessful = "successful"

// errNotSignedIn guards the preference endpoints, which only make sense while
// a session is active.
var errNotSignedIn = apperrors.New(apperrors.CodeNotAuthenticated, "no active session")

// alertPayload is the dismissible alert a front end shows for any failed
// operation.
type alertPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type errorResponse struct {
	Status string       `json:"status"`
	Code   string       `json:"code"`
	Alert  alertPayload `json:"alert"`
}

// alertForCode maps an error code to the user-facing title and message pair.
func alertForCode(code apperrors.Code) alertPayload {
	switch code {
	case apperrors.CodeInvalidCredentials:
		return alertPayload{Title: "Sign-in failed", Message: "The email or password is incorrect."}
	case apperrors.CodeAccountExists:
		return alertPayload{Title: "Account exists", Message: "An account already uses this email. Try signing in instead."}
	case apperrors.CodeNotAuthenticated:
		return alertPayload{Title: "Not signed in", Message: "Sign in before performing this action."}
	case apperrors.CodeNotAnonymous:
		return alertPayload{Title: "Already permanent", Message: "This account already has permanent credentials."}
	case apperrors.CodeNetworkError:
		return alertPayload{Title: "Connection problem", Message: "Could not reach the sign-in service. Check your connection and try again."}
	case apperrors.CodeMissingClientConfiguration:
		return alertPayload{Title: "Sign-in unavailable", Message: "This sign-in method is not configured on this device."}
	case apperrors.CodeUserCancelled:
		return alertPayload{Title: "Sign-in cancelled", Message: "The sign-in flow was dismissed before completing."}
	case apperrors.CodeMissingCredentials:
		return alertPayload{Title: "Sign-in incomplete", Message: "The provider returned no usable credentials. Try again."}
	case apperrors.CodeNotFound:
		return alertPayload{Title: "Not found", Message: "The requested item does not exist."}
	case apperrors.CodeDecodingError:
		return alertPayload{Title: "Data problem", Message: "Saved data could not be read."}
	default:
		return alertPayload{Title: "Something went wrong", Message: "An unexpected error occurred. Please try again."}
	}
}

// writeAlert maps an operation failure to its alert payload and HTTP status.
func writeAlert(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	writeJSON(w, code.HTTPStatus(), errorResponse{
		Status: "error",
		Code:   string(code),
		Alert:  alertForCode(code),
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Status: "error",
		Code:   string(apperrors.CodeUnknown),
		Alert:  alertPayload{Title: "Invalid request", Message: message},
	})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Status: "error",
		Code:   string(apperrors.CodeUnknown),
		Alert:  alertPayload{Title: "Invalid request", Message: "unsupported method"},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
