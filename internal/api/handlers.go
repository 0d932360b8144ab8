package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mcphub/internal/auth"
	"mcphub/internal/config"
	"mcphub/internal/upstream"
	"mcphub/pkg/logging"
)

// serverView is the JSON shape of one upstream in list responses.
type serverView struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	ToolCount int    `json:"toolCount"`
	Error     string `json:"error,omitempty"`
}

// addServerRequest carries the upstream definition for the add endpoints.
// The kind comes from the route, not the body.
type addServerRequest struct {
	Name            string            `json:"name"`
	URL             string            `json:"url,omitempty"`
	AuthToken       string            `json:"authToken,omitempty"`
	Command         string            `json:"command,omitempty"`
	Args            []string          `json:"args,omitempty"`
	Env             map[string]string `json:"env,omitempty"`
	WorkingDir      string            `json:"workingDir,omitempty"`
	Port            int               `json:"port,omitempty"`
	HealthCheckPath string            `json:"healthCheckPath,omitempty"`
	StartupTimeout  int               `json:"startupTimeoutSeconds,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, ok := h.sessions.Login(req.Password, auth.ClientIP(r))
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Invalidate(auth.SessionToken(r))
	http.SetCookie(w, &http.Cookie{
		Name:     "session_id",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) listServers(w http.ResponseWriter, r *http.Request) {
	servers := h.registry.List()

	views := make([]serverView, 0, len(servers))
	for _, srv := range servers {
		view := serverView{
			Name:      srv.Name(),
			Kind:      string(srv.Definition().Kind),
			Status:    string(srv.Status()),
			ToolCount: h.catalog.Count(srv.Name()),
		}
		if err := srv.LastError(); err != nil {
			view.Error = err.Error()
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"servers": views})
}

func (h *Handler) addServer(kind config.UpstreamKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addServerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		def := config.UpstreamDefinition{
			Name:            req.Name,
			Kind:            kind,
			URL:             req.URL,
			AuthToken:       req.AuthToken,
			Command:         req.Command,
			Args:            req.Args,
			Env:             req.Env,
			WorkingDir:      req.WorkingDir,
			Port:            req.Port,
			HealthCheckPath: req.HealthCheckPath,
		}
		if req.StartupTimeout > 0 {
			def.StartupTimeout = time.Duration(req.StartupTimeout) * time.Second
		}
		config.ApplyUpstreamDefaults(&def)

		if err := h.manager.AddServer(r.Context(), def); err != nil {
			if upstream.IsConfigError(err) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		logging.Info("API", "Added %s server %s", kind, def.Name)
		writeJSON(w, http.StatusCreated, map[string]string{"status": "added", "name": def.Name})
	}
}

func (h *Handler) removeServer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.manager.RemoveServer(r.Context(), name); err != nil {
		if errors.Is(err, upstream.ErrServerNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logging.Info("API", "Removed server %s", name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "name": name})
}

func (h *Handler) reconnectServer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.manager.ReconnectServer(r.Context(), name); err != nil {
		if errors.Is(err, upstream.ErrServerNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	logging.Info("API", "Reconnected server %s", name)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reconnected", "name": name})
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requests": h.tracker.List(limit),
	})
}

func (h *Handler) requestStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.GetStatistics())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error("API", err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
