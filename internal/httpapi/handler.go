// Package httpapi exposes the core service over a JSON HTTP surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tannerln7/GrowTrialLab-sub001/internal/blob"
	"github.com/tannerln7/GrowTrialLab-sub001/internal/core"
	"github.com/tannerln7/GrowTrialLab-sub001/internal/draft"
	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

const apiPrefix = "/api/v1/"

// Handler provides HTTP access to placement, changeset, baseline, schedule,
// and rotation operations.
type Handler struct {
	Service *core.Service
	Photos  blob.Store
}

// NewHandler constructs the API handler. Photos may be nil, disabling the
// baseline photo endpoints.
func NewHandler(service *core.Service, photos blob.Store) *Handler {
	return &Handler{Service: service, Photos: photos}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		writeError(w, http.StatusInternalServerError, "service not configured")
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	if !strings.HasPrefix(path, apiPrefix) {
		http.NotFound(w, r)
		return
	}
	segments := strings.Split(strings.TrimPrefix(path, apiPrefix), "/")

	switch segments[0] {
	case "placement":
		h.handlePlacement(w, r, segments[1:])
	case "changesets":
		h.handleChangesets(w, r, segments[1:])
	case "plants":
		h.handlePlants(w, r, segments[1:])
	case "experiments":
		h.handleExperiments(w, r, segments[1:])
	case "trays":
		h.handleTrays(w, r, segments[1:])
	case "schedules":
		h.handleSchedules(w, r, segments[1:])
	case "rotations":
		h.handleRotations(w, r, segments[1:])
	case "tents":
		h.handleList(w, r, segments[1:], func() any { return h.Service.ListTents() })
	case "slots":
		h.handleList(w, r, segments[1:], func() any { return h.Service.ListSlots() })
	case "recipes":
		h.handleList(w, r, segments[1:], func() any { return h.Service.ListRecipes() })
	case "baselines":
		h.handleList(w, r, segments[1:], func() any { return h.Service.ListBaselines() })
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, rest []string, list func() any) {
	if len(rest) != 0 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list()})
}

func (h *Handler) handlePlacement(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) != 1 || rest[0] != "tree" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	tree, err := h.Service.GroupedPlacement(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

type changesetRequest struct {
	Entries draft.Changeset[draft.Ref] `json:"entries"`
}

func (h *Handler) handleChangesets(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) != 1 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req changesetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid changeset payload")
		return
	}

	var res core.Result
	var err error
	switch rest[0] {
	case "recipes":
		res, err = h.Service.ApplyRecipeChangeset(r.Context(), req.Entries)
	case "placement":
		res, err = h.Service.ApplyPlacementChangeset(r.Context(), req.Entries)
	case "slots":
		res, err = h.Service.ApplyTraySlotChangeset(r.Context(), req.Entries)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applied":    len(req.Entries),
		"violations": res.Violations,
	})
}

type baselineRequest struct {
	Metrics    domain.BaselineMetrics `json:"metrics"`
	Notes      string                 `json:"notes"`
	CapturedAt *time.Time             `json:"captured_at,omitempty"`
	PhotoKey   *string                `json:"photo_key,omitempty"`
}

type gradeRequest struct {
	Grade domain.Grade `json:"grade"`
}

func (h *Handler) handlePlants(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0:
		h.handleList(w, r, nil, func() any { return h.Service.ListPlants() })
	case len(rest) == 1:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		plant, ok := h.Service.GetPlant(rest[0])
		if !ok {
			writeError(w, http.StatusNotFound, "plant not found")
			return
		}
		writeJSON(w, http.StatusOK, plant)
	case len(rest) == 2 && rest[1] == "baseline":
		h.handleBaseline(w, r, rest[0])
	case len(rest) == 3 && rest[1] == "baseline" && rest[2] == "enqueue":
		h.handleBaselineEnqueue(w, r, rest[0])
	case len(rest) == 3 && rest[1] == "baseline" && rest[2] == "grade":
		h.handleBaselineGrade(w, r, rest[0])
	case len(rest) == 3 && rest[1] == "baseline" && rest[2] == "photo":
		h.handleBaselinePhoto(w, r, rest[0])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleBaseline(w http.ResponseWriter, r *http.Request, plantID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req baselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid baseline payload")
		return
	}
	record, _, err := h.Service.SaveBaseline(r.Context(), plantID, req.Metrics, req.Notes, req.CapturedAt, req.PhotoKey)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleBaselineEnqueue(w http.ResponseWriter, r *http.Request, plantID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	record, _, err := h.Service.EnqueueBaseline(r.Context(), plantID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleBaselineGrade(w http.ResponseWriter, r *http.Request, plantID string) {
	switch r.Method {
	case http.MethodPost:
		var req gradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid grade payload")
			return
		}
		record, _, err := h.Service.OverrideBaselineGrade(r.Context(), plantID, req.Grade)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	case http.MethodDelete:
		record, _, err := h.Service.RevertBaselineGrade(r.Context(), plantID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleBaselinePhoto(w http.ResponseWriter, r *http.Request, plantID string) {
	if h.Photos == nil {
		writeError(w, http.StatusNotImplemented, "photo storage not configured")
		return
	}
	switch r.Method {
	case http.MethodPut:
		filename := r.URL.Query().Get("filename")
		if filename == "" {
			filename = "baseline.jpg"
		}
		key := blob.BaselinePhotoKey(plantID, filename)
		info, err := h.Photos.Put(r.Context(), key, r.Body, blob.PutOptions{
			ContentType: r.Header.Get("Content-Type"),
			Metadata:    map[string]string{"plant_id": plantID},
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if _, _, err := h.Service.SaveBaselinePhotoKey(r.Context(), plantID, key); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, info)
	case http.MethodGet:
		prefix := blob.BaselinePhotoKey(plantID, "")
		infos, err := h.Photos.List(r.Context(), prefix)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for i := range infos {
			if url, err := h.Photos.PresignURL(r.Context(), infos[i].Key, blob.SignedURLOptions{}); err == nil {
				infos[i].URL = url
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": infos})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleExperiments(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0:
		h.handleList(w, r, nil, func() any { return h.Service.ListExperiments() })
	case len(rest) == 2 && rest[1] == "baseline-lock":
		var experiment core.Experiment
		var err error
		switch r.Method {
		case http.MethodPost:
			experiment, _, err = h.Service.LockBaselinePhase(r.Context(), rest[0])
		case http.MethodDelete:
			experiment, _, err = h.Service.UnlockBaselinePhase(r.Context(), rest[0])
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, experiment)
	default:
		http.NotFound(w, r)
	}
}

type rotateRequest struct {
	ToSlotID *string `json:"to_slot_id"`
	Actor    string  `json:"actor"`
	Notes    *string `json:"notes,omitempty"`
}

func (h *Handler) handleTrays(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0:
		h.handleList(w, r, nil, func() any { return h.Service.ListTrays() })
	case len(rest) == 2 && rest[1] == "rotate":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req rotateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid rotation payload")
			return
		}
		event, _, err := h.Service.RotateTray(r.Context(), rest[0], req.ToSlotID, req.Actor, req.Notes)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, event)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleSchedules(w http.ResponseWriter, r *http.Request, rest []string) {
	switch {
	case len(rest) == 0:
		h.handleList(w, r, nil, func() any { return h.Service.ListSchedules() })
	case len(rest) == 1 && rest[0] == "due":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		asOf := time.Now().UTC()
		if raw := r.URL.Query().Get("as_of"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "as_of must be RFC3339")
				return
			}
			asOf = parsed
		}
		due, err := h.Service.DueSchedules(r.Context(), asOf)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": due})
	case len(rest) == 2 && rest[1] == "complete":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		schedule, _, err := h.Service.CompleteSchedule(r.Context(), rest[0], time.Now().UTC())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, schedule)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleRotations(w http.ResponseWriter, r *http.Request, rest []string) {
	h.handleList(w, r, rest, func() any { return h.Service.ListRotations() })
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeServiceError maps service failures onto the API's error taxonomy:
// structured changeset rejections keep their reason counts, blocked rules
// surface their violations, and missing references become 404s.
func writeServiceError(w http.ResponseWriter, err error) {
	var submitErr *draft.SubmitError
	if errors.As(err, &submitErr) {
		writeJSON(w, http.StatusUnprocessableEntity, submitErr)
		return
	}
	var ruleErr domain.RuleViolationError
	if errors.As(err, &ruleErr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      ruleErr.Error(),
			"violations": ruleErr.Result.Violations,
		})
		return
	}
	var notFound core.ErrNotFound
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, notFound.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", err))
}
