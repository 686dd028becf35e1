package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/card-market/internal/domain/identity"
)

// profileView is the wire shape of a user profile. email is null when
// the user has not provided one.
type profileView struct {
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

func toProfileView(p *identity.Profile) *profileView {
	if p == nil {
		return nil
	}
	v := &profileView{Name: p.Name}
	if p.Email != "" {
		v.Email = &p.Email
	}
	return v
}

func (h *Handler) callerProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.identities.Profile(r.Context(), CallerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	// A caller without a profile gets null, not an error.
	writeJSON(w, http.StatusOK, toProfileView(p))
}

type saveProfileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handler) saveCallerProfile(w http.ResponseWriter, r *http.Request) {
	var req saveProfileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.identities.SaveProfile(r.Context(), CallerFromContext(r.Context()), identity.Profile{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.identities.Profile(r.Context(), identity.ID(chi.URLParam(r, "user")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(p))
}

func (h *Handler) callerRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.identities.Role(r.Context(), CallerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"role": string(role)})
}

func (h *Handler) callerIsAdmin(w http.ResponseWriter, r *http.Request) {
	admin, err := h.identities.IsAdmin(r.Context(), CallerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"admin": admin})
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) assignUserRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.identities.AssignRole(r.Context(), CallerFromContext(r.Context()),
		identity.ID(chi.URLParam(r, "user")), identity.Role(req.Role))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
