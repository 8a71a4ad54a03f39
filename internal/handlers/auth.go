package handlers

import (
	"errors"
	"net/http"

	"plaxrec/internal/middleware"
	"plaxrec/internal/models"
	"plaxrec/internal/services"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,plaxemail"`
	Password string `json:"password" validate:"required,password"`
	Role     string `json:"role" validate:"omitempty,role"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token   string         `json:"token"`
	Profile models.Profile `json:"profile"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	role, _ := models.ParseRole(req.Role)
	session, err := h.profiles.Register(r.Context(), services.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		h.respondProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sessionResponse{Token: session.Token, Profile: session.Profile})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	session, err := h.profiles.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{Token: session.Token, Profile: session.Profile})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		h.respondProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=120"`
	Password *string `json:"password" validate:"omitempty,password"`
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req updateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	profile, err := h.profiles.UpdateProfile(r.Context(), userID, services.UpdateProfileRequest{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		h.respondProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

type selectRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

func (h *Handler) SelectRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req selectRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	role, _ := models.ParseRole(req.Role)
	session, err := h.profiles.SelectRole(r.Context(), userID, role)
	if err != nil {
		h.respondProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{Token: session.Token, Profile: session.Profile})
}

func (h *Handler) Directory(w http.ResponseWriter, r *http.Request) {
	role, ok := models.ParseRole(r.URL.Query().Get("role"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	entries, err := h.profiles.Directory(r.Context(), role)
	if err != nil {
		h.respondProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) respondProfileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidProfile):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, services.ErrEmailTaken):
		respondError(w, http.StatusConflict, "email_taken")
	case errors.Is(err, services.ErrRoleAlreadyChosen):
		respondError(w, http.StatusConflict, "role_already_chosen")
	case errors.Is(err, services.ErrRoleNotAllowed):
		respondError(w, http.StatusForbidden, "role_not_allowed")
	case errors.Is(err, services.ErrProfileNotFound):
		respondError(w, http.StatusNotFound, "profile_not_found")
	default:
		h.log.Error(r.Context(), "profile request failed", err)
		respondError(w, http.StatusInternalServerError, "internal_error")
	}
}
