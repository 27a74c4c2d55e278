package handler

import (
	"encoding/json"
	"net/http"

	dErrors "bestiary/pkg/domain-errors"
)

// writeError translates domain errors into the JSON error envelope. Every
// failure carries its stable code so client tooling can present a specific
// corrective message.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": string(code),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
