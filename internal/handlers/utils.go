package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/symptomly/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

func userFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok || user.ID < 1 {
		return types.User{}, errors.New("missing user")
	}
	return user, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

type ErrorResponse struct {
	Error string `json:"error"`
}
