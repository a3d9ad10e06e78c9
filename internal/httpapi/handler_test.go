package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tannerln7/GrowTrialLab-sub001/internal/blob"
	"github.com/tannerln7/GrowTrialLab-sub001/internal/core"
	"github.com/tannerln7/GrowTrialLab-sub001/internal/draft"
	"github.com/tannerln7/GrowTrialLab-sub001/pkg/domain"
)

type testEnv struct {
	handler *Handler
	svc     *core.Service

	experiment domain.Experiment
	tent       domain.Tent
	slot       domain.Slot
	tray       domain.Tray
	recipe     domain.Recipe
	plant      domain.Plant
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	svc := core.NewInMemoryService(nil)
	env := &testEnv{svc: svc, handler: NewHandler(svc, blob.NewMemory())}

	var err error
	if env.experiment, _, err = svc.CreateExperiment(ctx, domain.Experiment{Code: "EXP-1", Title: "Trial"}); err != nil {
		t.Fatalf("experiment: %v", err)
	}
	if env.tent, _, err = svc.CreateTent(ctx, domain.Tent{Name: "North"}); err != nil {
		t.Fatalf("tent: %v", err)
	}
	if env.slot, _, err = svc.CreateSlot(ctx, domain.Slot{TentID: env.tent.ID, Label: "A1", ShelfIndex: 1, SlotIndex: 1}); err != nil {
		t.Fatalf("slot: %v", err)
	}
	if env.tray, _, err = svc.CreateTray(ctx, domain.Tray{Label: "Tray 1", Capacity: 4, SlotID: &env.slot.ID}); err != nil {
		t.Fatalf("tray: %v", err)
	}
	if env.recipe, _, err = svc.CreateRecipe(ctx, domain.Recipe{Name: "Veg mix"}); err != nil {
		t.Fatalf("recipe: %v", err)
	}
	if env.plant, _, err = svc.CreatePlant(ctx, domain.Plant{Code: "B-01", Species: "basil", ExperimentID: env.experiment.ID}); err != nil {
		t.Fatalf("plant: %v", err)
	}
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestPlacementTree(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/placement/tree", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	payload := decode[map[string]json.RawMessage](t, rec)
	if _, ok := payload["tents"]; !ok {
		t.Fatalf("tree payload missing tents: %s", rec.Body)
	}
	if _, ok := payload["unplaced"]; !ok {
		t.Fatalf("tree payload missing unplaced: %s", rec.Body)
	}
}

func TestRecipeChangesetApply(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"entries": draft.Changeset[draft.Ref]{
		{EntityID: env.plant.ID, Value: draft.RefTo(env.recipe.ID)},
	}}
	rec := env.do(t, http.MethodPost, "/api/v1/changesets/recipes", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	resp := decode[map[string]any](t, rec)
	if resp["applied"] != float64(1) {
		t.Fatalf("applied = %v", resp["applied"])
	}
	plant, _ := env.svc.GetPlant(env.plant.ID)
	if plant.RecipeID == nil || *plant.RecipeID != env.recipe.ID {
		t.Fatalf("recipe not applied: %+v", plant.RecipeID)
	}
}

func TestRecipeChangesetRejectionPayload(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]any{"entries": draft.Changeset[draft.Ref]{
		{EntityID: env.plant.ID, Value: draft.RefTo("nope")},
		{EntityID: "ghost", Value: draft.RefTo(env.recipe.ID)},
	}}
	rec := env.do(t, http.MethodPost, "/api/v1/changesets/recipes", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	var resp draft.SubmitError
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ReasonCounts["unknown_recipe"] != 1 || resp.ReasonCounts["unknown_plant"] != 1 {
		t.Fatalf("reason counts = %+v", resp.ReasonCounts)
	}
	if len(resp.Rejected) != 2 {
		t.Fatalf("rejected = %+v", resp.Rejected)
	}
}

func TestPlacementChangesetRuleConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tiny, _, err := env.svc.CreateTray(ctx, domain.Tray{Label: "Tiny", Capacity: 1})
	if err != nil {
		t.Fatalf("tray: %v", err)
	}
	second, _, err := env.svc.CreatePlant(ctx, domain.Plant{Code: "B-02", ExperimentID: env.experiment.ID})
	if err != nil {
		t.Fatalf("plant: %v", err)
	}

	body := map[string]any{"entries": draft.Changeset[draft.Ref]{
		{EntityID: env.plant.ID, Value: draft.RefTo(tiny.ID)},
		{EntityID: second.ID, Value: draft.RefTo(tiny.ID)},
	}}
	rec := env.do(t, http.MethodPost, "/api/v1/changesets/placement", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	resp := decode[map[string]json.RawMessage](t, rec)
	if _, ok := resp["violations"]; !ok {
		t.Fatalf("conflict payload missing violations: %s", rec.Body)
	}
}

func TestTraySlotChangesetEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	other, _, err := env.svc.CreateSlot(ctx, domain.Slot{TentID: env.tent.ID, Label: "A2", ShelfIndex: 1, SlotIndex: 2})
	if err != nil {
		t.Fatalf("slot: %v", err)
	}

	body := map[string]any{"entries": draft.Changeset[draft.Ref]{
		{EntityID: env.tray.ID, Value: draft.RefTo(other.ID)},
	}}
	rec := env.do(t, http.MethodPost, "/api/v1/changesets/slots", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	tray, _ := env.svc.GetTray(env.tray.ID)
	if tray.SlotID == nil || *tray.SlotID != other.ID {
		t.Fatalf("slot not applied: %+v", tray.SlotID)
	}

	body = map[string]any{"entries": draft.Changeset[draft.Ref]{
		{EntityID: env.tray.ID, Value: draft.RefTo("nowhere")},
	}}
	rec = env.do(t, http.MethodPost, "/api/v1/changesets/slots", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	subErr := decode[draft.SubmitError](t, rec)
	if subErr.ReasonCounts["unknown_slot"] != 1 {
		t.Fatalf("reason counts = %+v", subErr.ReasonCounts)
	}
}

func TestPlacementChangesetLockedExperiment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, _, err := env.svc.LockBaselinePhase(ctx, env.experiment.ID); err != nil {
		t.Fatalf("lock: %v", err)
	}

	body := map[string]any{"entries": draft.Changeset[draft.Ref]{
		{EntityID: env.plant.ID, Value: draft.RefTo(env.tray.ID)},
	}}
	rec := env.do(t, http.MethodPost, "/api/v1/changesets/placement", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	subErr := decode[draft.SubmitError](t, rec)
	if subErr.ReasonCounts["experiment_locked"] != 1 {
		t.Fatalf("reason counts = %+v", subErr.ReasonCounts)
	}
	plant, _ := env.svc.GetPlant(env.plant.ID)
	if plant.TrayID != nil {
		t.Fatal("locked placement changeset must apply nothing")
	}
}

func TestBaselineEnqueueEndpoint(t *testing.T) {
	env := newTestEnv(t)
	path := fmt.Sprintf("/api/v1/plants/%s/baseline/enqueue", env.plant.ID)
	rec := env.do(t, http.MethodPost, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	record := decode[domain.BaselineRecord](t, rec)
	if record.Metrics.Vigor != 3 || record.Metrics.DamagePests != 3 {
		t.Fatalf("queued metrics = %+v", record.Metrics)
	}
	if record.Grade != domain.GradeB || record.GradeSource != domain.GradeSourceAuto {
		t.Fatalf("queued grade = %s/%s", record.Grade, record.GradeSource)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/plants/ghost/baseline/enqueue", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown plant status = %d", rec.Code)
	}
}

func TestBaselineSaveAndGradeOverride(t *testing.T) {
	env := newTestEnv(t)
	path := fmt.Sprintf("/api/v1/plants/%s/baseline", env.plant.ID)
	rec := env.do(t, http.MethodPost, path, map[string]any{
		"metrics": map[string]int{"vigor": 5, "feature_count": 5, "feature_quality": 5, "color_turgor": 5, "damage_pests": 5},
		"notes":   "looking strong",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d body %s", rec.Code, rec.Body)
	}
	record := decode[domain.BaselineRecord](t, rec)
	if record.Grade != domain.GradeA || record.GradeSource != domain.GradeSourceAuto {
		t.Fatalf("grade = %s/%s", record.Grade, record.GradeSource)
	}

	gradePath := path + "/grade"
	rec = env.do(t, http.MethodPost, gradePath, map[string]string{"grade": "C"})
	if rec.Code != http.StatusOK {
		t.Fatalf("override status = %d body %s", rec.Code, rec.Body)
	}
	record = decode[domain.BaselineRecord](t, rec)
	if record.Grade != domain.GradeC || record.GradeSource != domain.GradeSourceManual {
		t.Fatalf("override = %s/%s", record.Grade, record.GradeSource)
	}

	rec = env.do(t, http.MethodDelete, gradePath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("revert status = %d body %s", rec.Code, rec.Body)
	}
	record = decode[domain.BaselineRecord](t, rec)
	if record.Grade != domain.GradeA || record.GradeSource != domain.GradeSourceAuto {
		t.Fatalf("revert = %s/%s", record.Grade, record.GradeSource)
	}
}

func TestBaselineGradeUnknownPlant(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/plants/ghost/baseline/grade", map[string]string{"grade": "B"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
}

func TestBaselinePhotoUploadAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fives := domain.BaselineMetrics{Vigor: 5, FeatureCount: 5, FeatureQuality: 5, ColorTurgor: 5, DamagePests: 5}
	if _, _, err := env.svc.SaveBaseline(ctx, env.plant.ID, fives, "", nil, nil); err != nil {
		t.Fatalf("save baseline: %v", err)
	}

	path := fmt.Sprintf("/api/v1/plants/%s/baseline/photo?filename=front.jpg", env.plant.ID)
	req := httptest.NewRequest(http.MethodPut, path, strings.NewReader("jpeg-bytes"))
	req.Header.Set("Content-Type", "image/jpeg")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body %s", rec.Code, rec.Body)
	}

	record := env.svc.ListBaselines()[0]
	wantKey := blob.BaselinePhotoKey(env.plant.ID, "front.jpg")
	if record.PhotoKey == nil || *record.PhotoKey != wantKey {
		t.Fatalf("photo key = %v", record.PhotoKey)
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/plants/%s/baseline/photo", env.plant.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d body %s", rec.Code, rec.Body)
	}
	resp := decode[map[string][]blob.Info](t, rec)
	if items := resp["items"]; len(items) != 1 || items[0].Key != wantKey {
		t.Fatalf("items = %+v", resp["items"])
	}
}

func TestBaselineLockEndpoint(t *testing.T) {
	env := newTestEnv(t)
	path := fmt.Sprintf("/api/v1/experiments/%s/baseline-lock", env.experiment.ID)

	rec := env.do(t, http.MethodPost, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lock status = %d body %s", rec.Code, rec.Body)
	}
	experiment := decode[domain.Experiment](t, rec)
	if !experiment.BaselineLocked {
		t.Fatal("experiment not locked")
	}

	rec = env.do(t, http.MethodDelete, path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unlock status = %d body %s", rec.Code, rec.Body)
	}
	experiment = decode[domain.Experiment](t, rec)
	if experiment.BaselineLocked {
		t.Fatal("experiment still locked")
	}
}

func TestTrayRotateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	other, _, err := env.svc.CreateSlot(context.Background(), domain.Slot{TentID: env.tent.ID, Label: "A2", ShelfIndex: 1, SlotIndex: 2})
	if err != nil {
		t.Fatalf("slot: %v", err)
	}

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/trays/%s/rotate", env.tray.ID), map[string]any{
		"to_slot_id": other.ID,
		"actor":      "casey",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("rotate status = %d body %s", rec.Code, rec.Body)
	}
	event := decode[domain.RotationEvent](t, rec)
	if event.FromSlotID == nil || *event.FromSlotID != env.slot.ID {
		t.Fatalf("from = %v", event.FromSlotID)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/rotations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rotations status = %d", rec.Code)
	}
	resp := decode[map[string][]domain.RotationEvent](t, rec)
	if len(resp["items"]) != 1 {
		t.Fatalf("rotation items = %+v", resp["items"])
	}
}

func TestSchedulesDueEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, _, err := env.svc.CreateSchedule(ctx, domain.Schedule{
		ExperimentID: env.experiment.ID,
		Name:         "weekly feed",
		Action:       domain.ScheduleActionFeed,
		IntervalDays: 7,
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/schedules/due?as_of=2030-01-01T00:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("due status = %d body %s", rec.Code, rec.Body)
	}
	resp := decode[map[string][]domain.Schedule](t, rec)
	if len(resp["items"]) != 1 {
		t.Fatalf("due items = %+v", resp["items"])
	}

	rec = env.do(t, http.MethodGet, "/api/v1/schedules/due?as_of=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad as_of status = %d", rec.Code)
	}
}

func TestListEndpoints(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{
		"/api/v1/tents", "/api/v1/slots", "/api/v1/trays", "/api/v1/plants",
		"/api/v1/recipes", "/api/v1/experiments", "/api/v1/schedules", "/api/v1/baselines",
	} {
		rec := env.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}

func TestMethodAndPathErrors(t *testing.T) {
	env := newTestEnv(t)
	if rec := env.do(t, http.MethodDelete, "/api/v1/tents", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("tents DELETE = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/unknown", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/plants/ghost", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("ghost plant = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/changesets/unknown", map[string]any{"entries": []any{}}); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown changeset kind = %d", rec.Code)
	}
}
