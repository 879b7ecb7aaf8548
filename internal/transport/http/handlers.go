// Package httptransport exposes the screen view bindings over HTTP.
package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"menuboard/internal/menu/menusync"
	"menuboard/internal/menu/models"
	"menuboard/internal/menu/settings"
	"menuboard/internal/platform/middleware"
	"menuboard/internal/screen"
	"menuboard/pkg/platform/httputil"
)

// maxWait bounds a long-poll on a screen's state.
const maxWait = 30 * time.Second

// Registry is the screen registry surface the handlers need.
type Registry interface {
	Screens() []screen.Definition
	Screen(name string) (*menusync.Session, screen.Definition, error)
	BuildYourOwn() *menusync.BuildYourOwn
	ScreenImage(ctx context.Context, name string, slot int) ([]byte, error)
	ScreenImages(ctx context.Context, name string) (map[string][]byte, error)
	Logo(ctx context.Context) ([]byte, error)
	Settings() (settings.Display, error)
}

type Handler struct {
	registry Registry
	logger   *slog.Logger
}

func NewHandler(registry Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{registry: registry, logger: logger}
}

// Register mounts the screen endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/screens", h.HandleListScreens)
	r.Get("/screens/{screen}", h.HandleScreenState)
	r.Post("/screens/{screen}/refetch", h.HandleScreenRefetch)
	r.Get("/screens/{screen}/images", h.HandleScreenImages)
	r.Get("/screens/{screen}/images/{slot}", h.HandleScreenImage)
	r.Get("/logo", h.HandleLogo)
	r.Get("/settings", h.HandleSettings)
	r.Get("/build-your-own", h.HandleBuildYourOwn)
	r.Post("/build-your-own/refetch", h.HandleBuildYourOwnRefetch)
}

// ScreenStateResponse is one published state of a screen session.
type ScreenStateResponse struct {
	Screen        string                       `json:"screen"`
	SessionID     string                       `json:"session_id"`
	Version       uint64                       `json:"version"`
	Loading       bool                         `json:"loading"`
	Error         string                       `json:"error,omitempty"`
	Categories    []string                     `json:"categories"`
	ResolvedNames map[models.CategoryID]string `json:"resolved_names"`
	Projection    models.Projection            `json:"projection"`
}

func toScreenState(name string, st menusync.State) ScreenStateResponse {
	categories := st.Categories
	if categories == nil {
		categories = []string{}
	}
	return ScreenStateResponse{
		Screen:        name,
		SessionID:     st.SessionID.String(),
		Version:       st.Version,
		Loading:       st.Loading,
		Error:         st.ErrorMessage(),
		Categories:    categories,
		ResolvedNames: st.ResolvedNames,
		Projection:    st.Projection,
	}
}

// BuildYourOwnResponse is the derived build-your-own view.
type BuildYourOwnResponse struct {
	Category     string                    `json:"category"`
	Version      uint64                    `json:"version"`
	Loading      bool                      `json:"loading"`
	Error        string                    `json:"error,omitempty"`
	Item         *models.Item              `json:"item"`
	ExtrasByType map[string][]models.Extra `json:"extras_by_type"`
}

func toBuildYourOwn(byo *menusync.BuildYourOwn) BuildYourOwnResponse {
	st := byo.State()
	return BuildYourOwnResponse{
		Category:     byo.Category(),
		Version:      st.Version,
		Loading:      st.Loading,
		Error:        st.ErrorMessage(),
		Item:         st.Item,
		ExtrasByType: st.ExtrasByType,
	}
}

// SettingsResponse carries the display settings. When the last load failed
// the values are the defaults and Error is set.
type SettingsResponse struct {
	settings.Display
	Error string `json:"error,omitempty"`
}

func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleListScreens(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string][]screen.Definition{"screens": h.registry.Screens()})
}

// HandleScreenState returns the current state. With ?since=N it waits (up to
// ?wait, at most 30s) for a version newer than N.
func (h *Handler) HandleScreenState(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "screen")
	session, _, err := h.registry.Screen(name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httputil.WriteErrorCode(w, http.StatusBadRequest, "bad_request", "since must be a version number")
			return
		}
		wait, err := parseWait(r.URL.Query().Get("wait"))
		if err != nil {
			httputil.WriteErrorCode(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), wait)
		defer cancel()
		waitForVersion(ctx, session, since)
	}

	httputil.WriteJSON(w, http.StatusOK, toScreenState(name, session.State()))
}

func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return maxWait, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errors.New("wait must be a positive duration")
	}
	return min(d, maxWait), nil
}

func waitForVersion(ctx context.Context, session *menusync.Session, since uint64) {
	for {
		changed := session.Changes()
		if session.State().Version > since {
			return
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) HandleScreenRefetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "screen")
	session, _, err := h.registry.Screen(name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := session.Refetch(ctx); err != nil {
		h.logger.WarnContext(ctx, "screen refetch failed",
			"request_id", middleware.GetRequestID(ctx),
			"screen", name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toScreenState(name, session.State()))
}

func (h *Handler) HandleScreenImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.registry.ScreenImages(r.Context(), chi.URLParam(r, "screen"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]map[string][]byte{"images": images})
}

func (h *Handler) HandleScreenImage(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || slot < 1 {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "bad_request", "slot must be a positive number")
		return
	}
	data, err := h.registry.ScreenImage(r.Context(), chi.URLParam(r, "screen"), slot)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeBlob(w, data)
}

func (h *Handler) HandleLogo(w http.ResponseWriter, r *http.Request) {
	data, err := h.registry.Logo(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeBlob(w, data)
}

func (h *Handler) HandleSettings(w http.ResponseWriter, _ *http.Request) {
	display, err := h.registry.Settings()
	resp := SettingsResponse{Display: display}
	if err != nil {
		resp.Error = err.Error()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleBuildYourOwn(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, toBuildYourOwn(h.registry.BuildYourOwn()))
}

func (h *Handler) HandleBuildYourOwnRefetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	byo := h.registry.BuildYourOwn()
	if err := byo.Refetch(ctx); err != nil {
		h.logger.WarnContext(ctx, "build-your-own refetch failed",
			"request_id", middleware.GetRequestID(ctx),
			"category", byo.Category(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBuildYourOwn(byo))
}

func writeBlob(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
