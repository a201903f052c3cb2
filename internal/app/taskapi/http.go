package taskapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taskboard/realtime/internal/app/channels"
	"github.com/taskboard/realtime/internal/app/identity"
	"github.com/taskboard/realtime/internal/app/tasks"
	platformauth "github.com/taskboard/realtime/internal/platform/auth"
)

type Handler struct {
	Identity      *identity.Service
	Tasks         *tasks.Service
	Authorizer    *channels.Authorizer
	AllowedOrigin string
}

func NewHandler(identitySvc *identity.Service, taskSvc *tasks.Service, authorizer *channels.Authorizer, allowedOrigin string) *Handler {
	return &Handler{
		Identity:      identitySvc,
		Tasks:         taskSvc,
		Authorizer:    authorizer,
		AllowedOrigin: allowedOrigin,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.corsMiddleware)
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/api/v1/auth/register", h.handleRegister)
	r.Post("/api/v1/auth/login", h.handleLogin)
	r.Post("/api/v1/broadcasting/auth", h.handleBroadcastAuth)

	r.Group(func(authR chi.Router) {
		authR.Use(h.authMiddleware)
		authR.Get("/api/v1/tasks", h.handleListTasks)
		authR.Post("/api/v1/tasks", h.handleCreateTask)
		authR.Get("/api/v1/tasks/{taskID}", h.handleGetTask)
		authR.Patch("/api/v1/tasks/{taskID}", h.handleUpdateTask)
		authR.Delete("/api/v1/tasks/{taskID}", h.handleDeleteTask)
	})

	return r
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type broadcastAuthRequest struct {
	ChannelName string `json:"channel_name"`
	SocketID    string `json:"socket_id"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	resp, err := h.Identity.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidName), errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrInvalidPassword):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrEmailTaken):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	resp, err := h.Identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// handleBroadcastAuth is the server-side authorization callback the transport
// invokes once per subscription attempt. The raw bearer token goes straight
// to the authorizer; there is no auth middleware here so that a bad token
// yields the authorizer's own audit trail.
func (h *Handler) handleBroadcastAuth(w http.ResponseWriter, r *http.Request) {
	var req broadcastAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	token := platformauth.BearerToken(r.Header.Get("Authorization"))
	err := h.Authorizer.Authorize(r.Context(), token, req.ChannelName)
	if err != nil {
		switch {
		case errors.Is(err, channels.ErrUnauthenticated):
			h.writeError(w, http.StatusUnauthorized, "unauthenticated")
		case errors.Is(err, channels.ErrForbiddenChannel):
			h.writeError(w, http.StatusForbidden, "forbidden")
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"granted": true, "channel": req.ChannelName})
}

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	statusFilter := strings.TrimSpace(r.URL.Query().Get("status"))
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	list, err := h.Tasks.List(r.Context(), claims.Subject, statusFilter, limit)
	if err != nil {
		if errors.Is(err, tasks.ErrInvalidStatus) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req tasks.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	task, err := h.Tasks.Create(r.Context(), claims.Subject, req)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"task": task})
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	task, err := h.Tasks.Get(r.Context(), claims.Subject, chi.URLParam(r, "taskID"))
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req tasks.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	task, err := h.Tasks.Update(r.Context(), claims.Subject, chi.URLParam(r, "taskID"), req)
	if err != nil {
		h.writeTaskError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if err := h.Tasks.Delete(r.Context(), claims.Subject, chi.URLParam(r, "taskID")); err != nil {
		h.writeTaskError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrTitleRequired), errors.Is(err, tasks.ErrInvalidStatus):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tasks.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "task not found")
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin, Access-Control-Request-Headers")
		origin := strings.TrimSpace(h.AllowedOrigin)
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")

		requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers"))
		if requestHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		next.ServeHTTP(w, r)
	})
}

type claimsContextKey struct{}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := platformauth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			h.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := h.Identity.Tokens.Parse(token)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := contextWithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func contextWithClaims(ctx context.Context, claims platformauth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func claimsFromContext(ctx context.Context) platformauth.Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(platformauth.Claims)
	return claims
}
