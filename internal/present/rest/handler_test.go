package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/caselaw-dupcheck"
	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

// --- mocks ---

type mockRelations struct {
	relations []domain.DuplicateRelation
	statuses  []domain.RelationStatus
}

func (m *mockRelations) FindRelationsForUnit(ctx context.Context, id domain.UnitID, statuses []domain.RelationStatus) ([]domain.DuplicateRelation, error) {
	m.statuses = statuses
	return m.relations, nil
}

func (m *mockRelations) GetRelation(ctx context.Context, a, b domain.UnitID) (*domain.DuplicateRelation, error) {
	pair, err := domain.NewPair(a, b)
	if err != nil {
		return nil, err
	}
	for _, rel := range m.relations {
		if rel.Pair == pair {
			return &rel, nil
		}
	}
	return nil, domain.NotFoundError{Resource: "duplicate relation"}
}

type mockRuns struct {
	runs []domain.Run
}

func (m *mockRuns) GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	for _, r := range m.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, domain.NotFoundError{Resource: "run"}
}

func (m *mockRuns) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	return m.runs, nil
}

type mockTrigger struct {
	scope domain.Scope
	err   error
}

func (m *mockTrigger) Trigger(ctx context.Context, scope domain.Scope, trigger string) (*domain.Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.scope = scope
	return domain.NewRun(scope.Kind, trigger, time.Now()), nil
}

func setup(t *testing.T, relations *mockRelations, runs *mockRuns, trigger *mockTrigger) *echo.Echo {
	t.Helper()
	config := domain.Config{
		FileNumberThreshold: 50,
		EligibleCategories:  []string{"R"},
		Rules:               domain.AllReasons,
	}
	h := NewHandler(config, relations, runs, trigger, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestHandleUnitDuplicates(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	pair, _ := domain.NewPair(a, b)
	relations := &mockRelations{relations: []domain.DuplicateRelation{
		{Pair: pair, Status: domain.RelationStatusPending, Reasons: []domain.Reason{domain.ReasonECLI}},
	}}
	e := setup(t, relations, &mockRuns{}, &mockTrigger{})

	rec := do(e, http.MethodGet, "/units/"+a.String()+"/duplicates", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var got []dupcheck.Relation
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got) != 1 || got[0].LowerID != pair.Lower().String() || got[0].Reasons[0] != "ecli" {
		t.Fatalf("unexpected body: %+v", got)
	}
	if len(relations.statuses) != 1 || relations.statuses[0] != domain.RelationStatusPending {
		t.Fatalf("expected pending filter by default, got %v", relations.statuses)
	}

	rec = do(e, http.MethodGet, "/units/"+a.String()+"/duplicates?status=all", "")
	if rec.Code != http.StatusOK || relations.statuses != nil {
		t.Fatalf("expected unfiltered lookup, got %d %v", rec.Code, relations.statuses)
	}

	rec = do(e, http.MethodGet, "/units/"+a.String()+"/duplicates?status=maybe", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/units/not-a-uuid/duplicates", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestHandleRelation(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	pair, _ := domain.NewPair(a, b)
	relations := &mockRelations{relations: []domain.DuplicateRelation{{Pair: pair, Status: domain.RelationStatusIgnored}}}
	e := setup(t, relations, &mockRuns{}, &mockTrigger{})

	rec := do(e, http.MethodGet, "/relations/"+b.String()+"/"+a.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/relations/"+a.String()+"/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/relations/"+a.String()+"/"+a.String(), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for self pair got %d", rec.Code)
	}
}

func TestHandleReconcile(t *testing.T) {
	trigger := &mockTrigger{}
	e := setup(t, &mockRelations{}, &mockRuns{}, trigger)

	id := uuid.New()
	rec := do(e, http.MethodPost, "/reconcile", `{"scope":"units","unitIds":["`+id.String()+`"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rec.Code, rec.Body.String())
	}
	if trigger.scope.Kind != domain.ScopeUnits || trigger.scope.UnitIDs[0] != id {
		t.Fatalf("unexpected scope %+v", trigger.scope)
	}
	var report dupcheck.RunReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil || report.Result != "queued" {
		t.Fatalf("unexpected report %+v (%v)", report, err)
	}

	rec = do(e, http.MethodPost, "/reconcile", "")
	if rec.Code != http.StatusAccepted || trigger.scope.Kind != domain.ScopeChanged {
		t.Fatalf("expected changed scope by default, got %d %+v", rec.Code, trigger.scope)
	}

	rec = do(e, http.MethodPost, "/reconcile", `{"scope":"units"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	trigger.err = domain.ErrCycleInProgress
	rec = do(e, http.MethodPost, "/reconcile", `{"scope":"full"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
}

func TestHandleRuns(t *testing.T) {
	run := domain.NewRun(domain.ScopeFull, domain.TriggerCLI, time.Now())
	run.Result = domain.RunResultSucceeded
	e := setup(t, &mockRelations{}, &mockRuns{runs: []domain.Run{*run}}, &mockTrigger{})

	rec := do(e, http.MethodGet, "/runs/"+run.ID.String(), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"result":"succeeded"`) {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodGet, "/runs/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/runs?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/runs?limit=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestHandleWellKnown(t *testing.T) {
	e := setup(t, &mockRelations{}, &mockRuns{}, &mockTrigger{})

	rec := do(e, http.MethodGet, "/.well-known/dupcheck", "")
	var wk dupcheck.WellKnownDupcheck
	if err := json.Unmarshal(rec.Body.Bytes(), &wk); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if wk.FileNumberThreshold != 50 || len(wk.Rules) != 4 {
		t.Fatalf("unexpected well-known %+v", wk)
	}
	if _, ok := wk.Endpoints["realtime"]; ok {
		t.Fatalf("realtime must not be advertised without an event stream")
	}
}
