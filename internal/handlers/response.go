package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"taskPrioritizer/internal/handlers/dto"
	"taskPrioritizer/internal/service"
)

// RevisionHeader - ревизия списка задач владельца после запроса
const RevisionHeader = "X-Tasks-Revision"

type Payload struct {
	Key     string
	Payload any
}

func toPayload(key string, pl any) Payload {
	return Payload{Key: key, Payload: pl}
}

func toJSON(storage map[string]any, payload Payload) {
	storage[payload.Key] = payload.Payload
}

func responseWithJSON(w http.ResponseWriter, code int, payload ...Payload) {
	storage := make(map[string]any)
	for _, pl := range payload {
		toJSON(storage, pl)
	}
	writeJSON(w, code, storage)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func withRevision(w http.ResponseWriter, revision uint64) {
	w.Header().Set(RevisionHeader, strconv.FormatUint(revision, 10))
}

func responseWithError(w http.ResponseWriter, code int, errorCode, message string) {
	writeJSON(w, code, dto.ErrorResponse{Error: errorCode, Message: message})
}

func responseWithBusinessError(w http.ResponseWriter, code int, err *service.BusinessError) {
	res := dto.ErrorResponse{Error: err.Code, Message: err.Message}
	if len(err.Details) > 0 {
		res.Details = err.Details
	}
	writeJSON(w, code, res)
}

// WriteUnauthorized используется middleware авторизации
func WriteUnauthorized(w http.ResponseWriter, message string) {
	responseWithError(w, http.StatusUnauthorized, service.CodeUnauthorized, message)
}
