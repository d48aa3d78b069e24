package errors

import (
	"encoding/json"
	"net/http"
)

type errorItem struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
	Domain  string `json:"domain"`
}

type errorBody struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Errors  []errorItem `json:"errors"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// WriteError escribe el envelope de error estilo Google API:
//
//	{"error":{"code":400,"message":"EMAIL_EXISTS","errors":[{"message":"EMAIL_EXISTS","reason":"invalid","domain":"global"}]}}
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusBadRequest
	}
	msg := appErr.Message()

	reason := "invalid"
	if status == http.StatusForbidden {
		reason = "forbidden"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: errorBody{
		Code:    status,
		Message: msg,
		Errors:  []errorItem{{Message: msg, Reason: reason, Domain: "global"}},
	}})
}
