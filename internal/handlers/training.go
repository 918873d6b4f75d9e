package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/taskpilot/assistant-api/internal/corpus"
	"github.com/taskpilot/assistant-api/internal/logging"
)

/* TrainingHandlers handles the training-corpus CRUD endpoints */
type TrainingHandlers struct {
	corpus *corpus.Store
	logger *logging.Logger
}

/* NewTrainingHandlers creates new training handlers */
func NewTrainingHandlers(store *corpus.Store, logger *logging.Logger) *TrainingHandlers {
	return &TrainingHandlers{
		corpus: store,
		logger: logger,
	}
}

/* AddTrainingRequest is the create payload */
type AddTrainingRequest struct {
	Type     string `json:"type"`
	Question string `json:"question,omitempty"`
	Content  string `json:"content"`
}

/* ListTraining returns every corpus entry, newest first */
func (h *TrainingHandlers) ListTraining(w http.ResponseWriter, r *http.Request) {
	entries, err := h.corpus.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list training data", err, nil)
		WriteError(w, r, http.StatusInternalServerError, err)
		return
	}
	WriteSuccess(w, map[string]interface{}{"data": entries}, http.StatusOK)
}

/* AddTraining stores one corpus entry */
func (h *TrainingHandlers) AddTraining(w http.ResponseWriter, r *http.Request) {
	var req AddTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	entry, err := h.corpus.Add(r.Context(), req.Type, req.Question, req.Content)
	if err != nil {
		h.logger.Warn("Failed to add training data", map[string]interface{}{
			"type":  req.Type,
			"error": err.Error(),
		})
		WriteError(w, r, http.StatusBadRequest, err)
		return
	}

	WriteSuccess(w, entry, http.StatusCreated)
}

/* DeleteTraining removes one corpus entry by ID */
func (h *TrainingHandlers) DeleteTraining(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.corpus.Delete(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			WriteError(w, r, http.StatusNotFound, err)
			return
		}
		h.logger.Error("Failed to delete training data", err, map[string]interface{}{
			"id": id,
		})
		WriteError(w, r, http.StatusInternalServerError, err)
		return
	}

	WriteSuccess(w, map[string]string{"message": "Training data deleted"}, http.StatusOK)
}
