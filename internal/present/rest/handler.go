package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/caselaw-dupcheck"
	"github.com/totegamma/caselaw-dupcheck/internal/domain"
	"github.com/totegamma/caselaw-dupcheck/internal/present/rest/presenter"
)

const Version = "1.0"

type RelationQuerier interface {
	FindRelationsForUnit(ctx context.Context, id domain.UnitID, statuses []domain.RelationStatus) ([]domain.DuplicateRelation, error)
	GetRelation(ctx context.Context, a, b domain.UnitID) (*domain.DuplicateRelation, error)
}

type RunQuerier interface {
	GetRun(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
}

type CycleTrigger interface {
	Trigger(ctx context.Context, scope domain.Scope, trigger string) (*domain.Run, error)
}

type EventStream interface {
	Realtime(ctx context.Context, output chan<- dupcheck.Event) error
}

type Handler struct {
	config    domain.Config
	relations RelationQuerier
	runs      RunQuerier
	trigger   CycleTrigger
	events    EventStream
}

// NewHandler builds the REST handler. events may be nil, which disables /realtime.
func NewHandler(
	config domain.Config,
	relations RelationQuerier,
	runs RunQuerier,
	trigger CycleTrigger,
	events EventStream,
) *Handler {
	return &Handler{
		config:    config,
		relations: relations,
		runs:      runs,
		trigger:   trigger,
		events:    events,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/dupcheck", h.handleWellKnown)
	e.GET("/units/:id/duplicates", h.handleUnitDuplicates)
	e.GET("/relations/:a/:b", h.handleRelation)
	e.POST("/reconcile", h.handleReconcile)
	e.GET("/runs", h.handleRuns)
	e.GET("/runs/:id", h.handleRun)
	if h.events != nil {
		e.GET("/realtime", h.handleRealtime)
	}
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	rules := make([]string, 0, len(h.config.Rules))
	for _, r := range h.config.Rules {
		rules = append(rules, string(r))
	}
	endpoints := map[string]string{
		"duplicates": "/units/{id}/duplicates",
		"relation":   "/relations/{a}/{b}",
		"reconcile":  "/reconcile",
		"runs":       "/runs",
		"run":        "/runs/{id}",
	}
	if h.events != nil {
		endpoints["realtime"] = "/realtime"
	}
	return presenter.OK(c, dupcheck.WellKnownDupcheck{
		Version:             Version,
		FileNumberThreshold: h.config.FileNumberThreshold,
		Rules:               rules,
		EligibleCategories:  h.config.EligibleCategories,
		Endpoints:           endpoints,
	})
}

func parseStatuses(raw string) ([]domain.RelationStatus, error) {
	if raw == "" {
		return []domain.RelationStatus{domain.RelationStatusPending}, nil
	}
	if strings.EqualFold(raw, "all") {
		return nil, nil
	}
	var statuses []domain.RelationStatus
	for _, part := range strings.Split(raw, ",") {
		s := domain.RelationStatus(strings.ToUpper(strings.TrimSpace(part)))
		if !s.Valid() {
			return nil, fmt.Errorf("unknown status %q", part)
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

func (h *Handler) handleUnitDuplicates(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid unit id")
	}
	statuses, err := parseStatuses(c.QueryParam("status"))
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	relations, err := h.relations.FindRelationsForUnit(ctx, id, statuses)
	if err != nil {
		return presenter.Error(c, err)
	}

	result := make([]dupcheck.Relation, 0, len(relations))
	for _, rel := range relations {
		result = append(result, presenter.Relation(rel))
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleRelation(c echo.Context) error {
	ctx := c.Request().Context()

	a, err := uuid.Parse(c.Param("a"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid unit id")
	}
	b, err := uuid.Parse(c.Param("b"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid unit id")
	}

	rel, err := h.relations.GetRelation(ctx, a, b)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, presenter.Relation(*rel))
}

func (h *Handler) handleReconcile(c echo.Context) error {
	ctx := c.Request().Context()

	var req dupcheck.TriggerRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return presenter.BadRequest(c, err)
		}
	}

	scope, err := domain.ParseScope(req.Scope, req.UnitIDs)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	run, err := h.trigger.Trigger(ctx, scope, domain.TriggerAPI)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Accepted(c, run.Report())
}

func (h *Handler) handleRuns(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return presenter.BadRequestMessage(c, "invalid limit")
		}
		limit = parsed
	}

	runs, err := h.runs.ListRuns(ctx, limit)
	if err != nil {
		return presenter.Error(c, err)
	}
	reports := make([]dupcheck.RunReport, 0, len(runs))
	for _, run := range runs {
		reports = append(reports, run.Report())
	}
	return presenter.OK(c, reports)
}

func (h *Handler) handleRun(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return presenter.BadRequestMessage(c, "invalid run id")
	}
	run, err := h.runs.GetRun(ctx, id)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, run.Report())
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Request struct {
	Type string `json:"type"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	output := make(chan dupcheck.Event)
	go func() {
		if err := h.events.Realtime(ctx, output); err != nil {
			slog.ErrorContext(ctx, "event stream failed", slog.String("error", err.Error()), slog.String("module", "socket"))
			cancel()
		}
	}()

	go func() {
		defer cancel()
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.DebugContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-output:
			if err := ws.WriteJSON(event); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
