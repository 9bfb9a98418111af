package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (a *api) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.store.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeStoreError(w, "get user", err)
		return
	}
	writeJSON(w, 200, u)
}

func (a *api) handleUserBoards(w http.ResponseWriter, r *http.Request) {
	boards, err := a.store.ListBoards(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeStoreError(w, "user boards", err)
		return
	}
	writeJSON(w, 200, boards)
}

func (a *api) handleOppositeRole(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r.Context())
	all, err := a.store.ListUsers(r.Context())
	if err != nil {
		a.writeStoreError(w, "list users", err)
		return
	}
	writeJSON(w, 200, oppositeRoleFilter(u, all))
}

func (a *api) handleSuggestedMatches(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r.Context())
	all, err := a.store.ListUsers(r.Context())
	if err != nil {
		a.writeStoreError(w, "list users", err)
		return
	}
	writeJSON(w, 200, suggestMatches(u, all))
}

func (a *api) handleDisciples(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.Disciples(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeStoreError(w, "disciples", err)
		return
	}
	writeJSON(w, 200, users)
}

func (a *api) handleDiscipler(w http.ResponseWriter, r *http.Request) {
	u, err := a.store.Discipler(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeStoreError(w, "discipler", err)
		return
	}
	writeJSON(w, 200, u)
}

func (a *api) handleCreateDiscipleship(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisciplerID string `json:"discipler_id"`
		DiscipleID  string `json:"disciple_id"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if strings.TrimSpace(req.DisciplerID) == "" || strings.TrimSpace(req.DiscipleID) == "" {
		writeError(w, 422, "discipler_id and disciple_id are required")
		return
	}
	if req.DisciplerID == req.DiscipleID {
		writeError(w, 422, "a user cannot disciple themselves")
		return
	}
	discipler, err := a.store.GetUser(r.Context(), req.DisciplerID)
	if err != nil {
		a.writeStoreError(w, "discipleship discipler", err)
		return
	}
	disciple, err := a.store.GetUser(r.Context(), req.DiscipleID)
	if err != nil {
		a.writeStoreError(w, "discipleship disciple", err)
		return
	}
	if discipler.Role != RoleDiscipler || disciple.Role != RoleDisciple {
		writeError(w, 422, "discipler_id must be a Discipler and disciple_id a Disciple")
		return
	}
	d, err := a.store.CreateDiscipleship(r.Context(), req.DisciplerID, req.DiscipleID)
	if err != nil {
		a.writeStoreError(w, "create discipleship", err)
		return
	}
	writeJSON(w, 201, d)
}
