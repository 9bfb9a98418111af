package main

import (
	"net/http"
	"strings"
)

type signupRequest struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Role      Role     `json:"role"`
	Age       *int     `json:"age"`
	Location  string   `json:"location"`
	Interests []string `json:"interests"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
}

// validate returns the first problem with the request, or "".
func (req *signupRequest) validate() string {
	switch {
	case strings.TrimSpace(req.ID) == "":
		return "id is required"
	case strings.TrimSpace(req.Name) == "":
		return "name is required"
	case !req.Role.Valid():
		return "role must be Discipler or Disciple"
	case req.Age == nil:
		return "age is required"
	case *req.Age < 0:
		return "age must not be negative"
	case strings.TrimSpace(req.Email) == "":
		return "email is required"
	case req.Password == "":
		return "password is required"
	}
	return ""
}

func (a *api) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, 422, msg)
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		a.log.Error("bcrypt", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	u, err := a.store.CreateUser(r.Context(), User{
		ID:        req.ID,
		Name:      req.Name,
		Role:      req.Role,
		Age:       *req.Age,
		Location:  req.Location,
		Interests: req.Interests,
		Email:     strings.TrimSpace(req.Email),
	}, hash)
	if err != nil {
		a.writeStoreError(w, "signup", err)
		return
	}
	writeJSON(w, 201, u)
}

// loginUser is the user as echoed by login, with an explicit null password.
type loginUser struct {
	User
	Password *string `json:"password"`
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, 400, "invalid payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, 422, "email and password are required")
		return
	}
	u, err := a.store.Authenticate(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		a.writeStoreError(w, "login", err)
		return
	}
	token, err := a.tokens.Issue(u)
	if err != nil {
		a.log.Error("issue token", "err", err)
		writeError(w, 500, "internal error")
		return
	}
	writeJSON(w, 200, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         loginUser{User: u},
	})
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r.Context())
	writeJSON(w, 200, u)
}
