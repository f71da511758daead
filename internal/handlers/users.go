package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"skillgoblin/internal/database"
	"skillgoblin/internal/logging"
)

const maxProgressBody = 1 << 20

// DeleteUser removes a user together with their progress, favorites and settings.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.db.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			writeJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to delete user %s: %v", id, err)
		writeJSONError(w, "Failed to delete user", http.StatusInternalServerError)
		return
	}

	logging.Info("Deleted user %s", id)
	writeJSONOK(w, map[string]bool{"success": true})
}

// GetUserProgress returns the progress object of a user.
func (h *Handlers) GetUserProgress(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	progress, err := h.db.GetUserProgress(r.Context(), userID)
	if err != nil {
		logging.Error("Failed to load progress of %s: %v", userID, err)
		writeJSONError(w, "Failed to fetch progress", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONOK(w, progress)
}

// SetUserProgress replaces the progress object of a user.
func (h *Handlers) SetUserProgress(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProgressBody+1))
	if err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxProgressBody {
		writeJSONError(w, "Progress too large", http.StatusRequestEntityTooLarge)
		return
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		writeJSONError(w, "Progress must be a JSON object", http.StatusBadRequest)
		return
	}

	if err := h.db.SetUserProgress(r.Context(), userID, body); err != nil {
		logging.Error("Failed to save progress of %s: %v", userID, err)
		writeJSONError(w, "Failed to save progress", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}

// GetFavorites lists the favorite course ids of a user.
func (h *Handlers) GetFavorites(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	favorites, err := h.db.GetFavorites(r.Context(), userID)
	if err != nil {
		logging.Error("Failed to load favorites of %s: %v", userID, err)
		writeJSONError(w, "Failed to get favorites", http.StatusInternalServerError)
		return
	}
	if favorites == nil {
		favorites = []string{}
	}
	writeJSONOK(w, favorites)
}

func (h *Handlers) AddFavorite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.db.AddFavorite(r.Context(), vars["userId"], vars["courseId"]); err != nil {
		logging.Error("Failed to add favorite: %v", err)
		writeJSONError(w, "Failed to add favorite", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}

func (h *Handlers) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.db.RemoveFavorite(r.Context(), vars["userId"], vars["courseId"]); err != nil {
		logging.Error("Failed to remove favorite: %v", err)
		writeJSONError(w, "Failed to remove favorite", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "ok")
}
