package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (a *api) handleListBoards(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r.Context())
	boards, err := a.store.ListBoards(r.Context(), u.ID)
	if err != nil {
		a.writeStoreError(w, "list boards", err)
		return
	}
	writeJSON(w, 200, boards)
}

func (a *api) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r.Context())
	var req struct {
		Title string `json:"title"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, 422, "title is required")
		return
	}
	b, err := a.store.CreateBoard(r.Context(), u.ID, req.Title)
	if err != nil {
		a.writeStoreError(w, "create board", err)
		return
	}
	writeJSON(w, 201, b)
}

func (a *api) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.authorizeBoard(w, r, id) {
		return
	}
	stages, err := a.store.StagesByBoard(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, "board stages", err)
		return
	}
	rows, err := a.store.ItemRowsByBoard(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, "board items", err)
		return
	}
	view, err := assembleBoard(stages, rows)
	if err != nil {
		a.writeStoreError(w, "assemble board", err)
		return
	}
	writeJSON(w, 200, view)
}

func (a *api) handleCreateStage(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "id")
	if !a.authorizeBoard(w, r, boardID) {
		return
	}
	var req struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, 422, "title is required")
		return
	}
	st, err := a.store.CreateStage(r.Context(), boardID, stageID(req.ID, boardID), req.Title)
	if err != nil {
		a.writeStoreError(w, "create stage", err)
		return
	}
	writeJSON(w, 201, st)
}

// stageID scopes a client supplied id to its board. Without one the stage
// gets a generated id.
func stageID(given, boardID string) string {
	if strings.TrimSpace(given) == "" {
		given = "stage_" + newID()
	}
	return given + "_" + boardID
}

func (a *api) handleDeleteStage(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "id")
	if !a.authorizeBoard(w, r, boardID) {
		return
	}
	if err := a.store.DeleteStage(r.Context(), boardID, chi.URLParam(r, "stageID")); err != nil {
		a.writeStoreError(w, "delete stage", err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}
