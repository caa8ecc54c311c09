package notabene

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/notabene-app/notabene/pkg/models"
	"github.com/notabene-app/notabene/pkg/notes"
	"github.com/notabene-app/notabene/pkg/store"
)

// Router builds the HTTP API.
func (a *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/capture", a.handleCapture).Methods(http.MethodPost)
	api.HandleFunc("/undo/{id}", a.handleUndo).Methods(http.MethodPost)
	api.HandleFunc("/outbox", a.handleOutbox).Methods(http.MethodGet)

	api.HandleFunc("/notes/{kind}", a.handleList).Methods(http.MethodGet)
	api.HandleFunc("/notes/{kind}", a.handleAdd).Methods(http.MethodPost)
	api.HandleFunc("/notes/{kind}/watch", a.handleWatch).Methods(http.MethodGet)
	api.HandleFunc("/notes/{kind}/{id}", a.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/notes/{kind}/{id}", a.handleUpdate).Methods(http.MethodPatch)
	api.HandleFunc("/notes/{kind}/{id}", a.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/notes/{kind}/{id}/convert", a.handleConvert).Methods(http.MethodPost)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// pathVars resolves the kind and, when present, the id from the URL.
func pathVars(r *http.Request) (models.Kind, models.NoteID, error) {
	vars := mux.Vars(r)
	kind, ok := models.ParseKind(vars["kind"])
	if !ok {
		return "", models.NoteID{}, errors.New("unknown kind")
	}
	if raw, present := vars["id"]; present {
		id, err := models.ParseNoteID(raw)
		if err != nil {
			return "", models.NoteID{}, errors.New("malformed id")
		}
		return kind, id, nil
	}
	return kind, models.NoteID{}, nil
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"remote": a.remote != nil,
	})
}

func (a *App) handleCapture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	note, err := a.notes.Capture(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, notes.ErrEmptyCapture) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (a *App) handleList(w http.ResponseWriter, r *http.Request) {
	kind, _, err := pathVars(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	list, err := a.notes.List(r.Context(), kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []*models.Note{}
	}
	writeJSON(w, http.StatusOK, list)
}

type addRequest struct {
	Content  string          `json:"content"`
	Tags     models.Tags     `json:"tags,omitempty"`
	Priority models.Priority `json:"priority,omitempty"`
	DueDate  *time.Time      `json:"due_date,omitempty"`
}

func (a *App) handleAdd(w http.ResponseWriter, r *http.Request) {
	kind, _, err := pathVars(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	note, err := a.notes.Add(r.Context(), kind, &models.Note{
		Content:  req.Content,
		Tags:     req.Tags,
		Priority: req.Priority,
		DueDate:  req.DueDate,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (a *App) handleGet(w http.ResponseWriter, r *http.Request) {
	kind, id, err := pathVars(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	note, err := a.notes.Get(r.Context(), kind, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

type updateRequest struct {
	Content      *string          `json:"content,omitempty"`
	Tags         *models.Tags     `json:"tags,omitempty"`
	Completed    *bool            `json:"completed,omitempty"`
	Priority     *models.Priority `json:"priority,omitempty"`
	DueDate      *time.Time       `json:"due_date,omitempty"`
	ClearDueDate bool             `json:"clear_due_date,omitempty"`
}

func (a *App) handleUpdate(w http.ResponseWriter, r *http.Request) {
	kind, id, err := pathVars(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	patch := store.Patch{
		Content:      req.Content,
		Tags:         req.Tags,
		Completed:    req.Completed,
		Priority:     req.Priority,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
	}
	if patch.IsZero() {
		writeError(w, http.StatusBadRequest, errors.New("empty update"))
		return
	}
	note, err := a.notes.Update(r.Context(), kind, id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// handleDelete soft-deletes by default, keeping the note restorable through
// the undo endpoint for the retention window. ?hard=true skips the tombstone.
func (a *App) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, id, err := pathVars(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	if r.URL.Query().Get("hard") == "true" {
		if err := a.notes.Delete(r.Context(), kind, id); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if _, err := a.notes.SoftDelete(r.Context(), kind, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"undo": "/api/undo/" + id.String()})
}

func (a *App) handleUndo(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseNoteID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("malformed id"))
		return
	}
	if err := a.notes.Restore(r.Context(), id); err != nil {
		if errors.Is(err, notes.ErrUndoExpired) {
			writeError(w, http.StatusGone, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleConvert(w http.ResponseWriter, r *http.Request) {
	sourceKind, id, err := pathVars(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var req struct {
		Target string `json:"target"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	targetKind, ok := models.ParseKind(req.Target)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("unknown target kind"))
		return
	}
	note, err := a.notes.Convert(r.Context(), targetKind, id, sourceKind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (a *App) handleOutbox(w http.ResponseWriter, r *http.Request) {
	if a.dispatcher == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	pending, err := a.dispatcher.Pending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "pending": pending})
}

var upgrader = websocket.Upgrader{
	// The API is same-device; cross-origin browsers are not a concern.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWatch streams collection snapshots over a websocket: one message on
// connect, one after every change, each the full kind newest-first.
func (a *App) handleWatch(w http.ResponseWriter, r *http.Request) {
	kind, _, err := pathVars(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	unsubscribe, err := a.notes.Subscribe(r.Context(), kind, func(snapshot store.Snapshot) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(snapshot); err != nil {
			a.log.Debugw("watch write failed", "kind", kind, "error", err)
		}
	})
	if err != nil {
		writeMu.Lock()
		_ = conn.WriteJSON(map[string]string{"error": err.Error()})
		writeMu.Unlock()
		return
	}
	defer unsubscribe()

	// Block until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
