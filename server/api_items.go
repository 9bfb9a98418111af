package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// itemRequest is the editable part of an item. Clients usually send the whole
// item back, so unknown fields are ignored.
type itemRequest struct {
	ID          string     `json:"id"`
	StageID     string     `json:"stage_id"`
	Content     string     `json:"content"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	Subtasks    []Subtask  `json:"subtasks"`
	Activities  []Activity `json:"activities"`
}

func (req itemRequest) validate() string {
	switch {
	case strings.TrimSpace(req.StageID) == "":
		return "stage_id is required"
	case strings.TrimSpace(req.Content) == "":
		return "content is required"
	}
	return ""
}

func (req itemRequest) item() Item {
	status := req.Status
	if status == "" {
		status = defaultItemStatus
	}
	return Item{
		ID:          req.ID,
		StageID:     req.StageID,
		Content:     req.Content,
		Description: req.Description,
		Status:      status,
		Progress:    req.Progress,
		Subtasks:    req.Subtasks,
		Activities:  req.Activities,
	}
}

func (a *api) readItem(w http.ResponseWriter, r *http.Request) (Item, bool) {
	var req itemRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return Item{}, false
	}
	if msg := req.validate(); msg != "" {
		writeError(w, 422, msg)
		return Item{}, false
	}
	return req.item(), true
}

func (a *api) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "id")
	if !a.authorizeBoard(w, r, boardID) {
		return
	}
	it, ok := a.readItem(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(it.ID) == "" {
		it.ID = "item_" + newID()
	}
	created, err := a.store.CreateItem(r.Context(), boardID, it)
	if err != nil {
		a.writeStoreError(w, "create item", err)
		return
	}
	writeJSON(w, 201, created)
}

// authorizeItem is authorizeBoard for an item addressed through its board.
func (a *api) authorizeItem(w http.ResponseWriter, r *http.Request, boardID, itemID string) bool {
	u, _ := currentUser(r.Context())
	owner, err := a.store.ItemOwner(r.Context(), boardID, itemID)
	if err != nil {
		a.writeStoreError(w, "item owner", err)
		return false
	}
	if owner != u.ID {
		writeError(w, 403, "forbidden")
		return false
	}
	return true
}

func (a *api) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	boardID, itemID := chi.URLParam(r, "id"), chi.URLParam(r, "itemID")
	if !a.authorizeItem(w, r, boardID, itemID) {
		return
	}
	it, ok := a.readItem(w, r)
	if !ok {
		return
	}
	updated, err := a.store.UpdateItem(r.Context(), boardID, itemID, it)
	if err != nil {
		a.writeStoreError(w, "update item", err)
		return
	}
	writeJSON(w, 200, updated)
}

func (a *api) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	boardID, itemID := chi.URLParam(r, "id"), chi.URLParam(r, "itemID")
	if !a.authorizeItem(w, r, boardID, itemID) {
		return
	}
	if err := a.store.DeleteItem(r.Context(), boardID, itemID); err != nil {
		a.writeStoreError(w, "delete item", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}
