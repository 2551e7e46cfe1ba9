package patient

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/jwalitptl/intake-api/internal/middleware"
	"github.com/jwalitptl/intake-api/internal/model"
	"github.com/jwalitptl/intake-api/internal/service/intake"
	"github.com/jwalitptl/intake-api/internal/service/marked"
	"github.com/jwalitptl/intake-api/internal/service/projection"
	"github.com/jwalitptl/intake-api/internal/service/scoring"
	"github.com/jwalitptl/intake-api/internal/service/stats"
	apperrors "github.com/jwalitptl/intake-api/pkg/errors"
	"github.com/jwalitptl/intake-api/pkg/httputil"
	"github.com/jwalitptl/intake-api/pkg/validator"
)

type Handler struct {
	intake        *intake.Service
	listing       *projection.Service
	marked        *marked.Service
	stats         *stats.Service
	scores        *scoring.Dispatcher
	validator     validator.Validator
	ageQuestionID int64
}

func NewHandler(
	intakeSvc *intake.Service,
	listing *projection.Service,
	markedSvc *marked.Service,
	statsSvc *stats.Service,
	scores *scoring.Dispatcher,
	v validator.Validator,
	ageQuestionID int64,
) *Handler {
	return &Handler{
		intake:        intakeSvc,
		listing:       listing,
		marked:        markedSvc,
		stats:         statsSvc,
		scores:        scores,
		validator:     v,
		ageQuestionID: ageQuestionID,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/feed", h.Feed)
		patients.GET("/marked", h.ListMarked)
		patients.DELETE("/:id", h.DeletePatient)
		patients.GET("/:id/progress", h.Progress)
		patients.GET("/:id/sections/:section", h.GetSection)
		patients.PUT("/:id/sections/:section", h.UpdateSection)
		patients.POST("/:id/submit", h.Submit)
		patients.POST("/:id/mark", h.Mark)
		patients.DELETE("/:id/mark", h.Unmark)
	}

	r.GET("/stats", h.Stats)
	r.GET("/scores/me", h.MyScore)
}

// listParams are the query parameters every listing accepts besides filter[...].
type listParams struct {
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1"`
	Scope    string `form:"scope" validate:"omitempty,oneof=mine all"`
}

type markResponse struct {
	PatientID int64            `json:"patient_id"`
	Result    model.MarkResult `json:"result"`
	OK        bool             `json:"ok"`
}

func (h *Handler) CreatePatient(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	payload, ok := h.payload(c)
	if !ok {
		return
	}

	result, err := h.intake.CreatePatient(c.Request.Context(), actor, payload)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, result)
}

func (h *Handler) ListPatients(c *gin.Context) {
	h.list(c, "")
}

// Feed is the high-traffic listing; it always uses the single-query strategy.
func (h *Handler) Feed(c *gin.Context) {
	h.list(c, projection.StrategyJoin)
}

func (h *Handler) list(c *gin.Context, strategy projection.Strategy) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var params listParams
	if err := c.ShouldBindQuery(&params); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid query parameters", err))
		return
	}
	if err := h.validator.Validate(&params); err != nil {
		_ = c.Error(err)
		return
	}
	filter, err := model.ParseFilters(c.QueryMap("filter"), h.ageQuestionID)
	if err != nil {
		_ = c.Error(apperrors.BadRequest(err.Error(), err))
		return
	}

	q := &model.ListQuery{
		Actor:      actor,
		Scope:      model.Scope(params.Scope),
		Pagination: model.Pagination{Page: params.Page, PageSize: params.PageSize},
		Filter:     filter,
	}

	var page *model.Page[*model.PatientSummary]
	if strategy == "" {
		page, err = h.listing.List(c.Request.Context(), q)
	} else {
		page, err = h.listing.ListWith(c.Request.Context(), strategy, q)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, page)
}

func (h *Handler) ListMarked(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var params listParams
	if err := c.ShouldBindQuery(&params); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid query parameters", err))
		return
	}
	if err := h.validator.Validate(&params); err != nil {
		_ = c.Error(err)
		return
	}

	page, err := h.marked.List(c.Request.Context(), actor, model.Pagination{Page: params.Page, PageSize: params.PageSize})
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, page)
}

func (h *Handler) UpdateSection(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	patientID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	sectionID, ok := h.idParam(c, "section")
	if !ok {
		return
	}
	payload, ok := h.payload(c)
	if !ok {
		return
	}

	result, err := h.intake.UpdatePatientSection(c.Request.Context(), actor, patientID, sectionID, payload)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, result)
}

func (h *Handler) GetSection(c *gin.Context) {
	patientID, ok := h.idParam(c, "id")
	if !ok {
		return
	}
	sectionID, ok := h.idParam(c, "section")
	if !ok {
		return
	}

	section, err := h.intake.GetSection(c.Request.Context(), patientID, sectionID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, section)
}

func (h *Handler) Progress(c *gin.Context) {
	patientID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	progress, err := h.intake.Progress(c.Request.Context(), patientID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, progress)
}

func (h *Handler) Submit(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	patientID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	result, err := h.intake.SubmitPatient(c.Request.Context(), actor, patientID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, result)
}

func (h *Handler) DeletePatient(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	patientID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	result, err := h.intake.DeletePatient(c.Request.Context(), actor, patientID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, result)
}

func (h *Handler) Mark(c *gin.Context) {
	h.toggleMark(c, h.marked.Mark)
}

func (h *Handler) Unmark(c *gin.Context) {
	h.toggleMark(c, h.marked.Unmark)
}

func (h *Handler) toggleMark(c *gin.Context, op func(ctx context.Context, actor model.Actor, patientID int64) (model.MarkResult, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	patientID, ok := h.idParam(c, "id")
	if !ok {
		return
	}

	result, err := op(c.Request.Context(), actor, patientID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, markResponse{PatientID: patientID, Result: result, OK: result.OK()})
}

func (h *Handler) Stats(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var params listParams
	if err := c.ShouldBindQuery(&params); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid query parameters", err))
		return
	}
	if err := h.validator.Validate(&params); err != nil {
		_ = c.Error(err)
		return
	}
	scope := model.Scope(params.Scope)
	if scope == "" {
		scope = model.ScopeAll
	}

	counts, err := h.stats.Counts(c.Request.Context(), actor, scope)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, counts)
}

func (h *Handler) MyScore(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	view, err := h.scores.Score(c.Request.Context(), actor.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, view)
}

func (h *Handler) actor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		_ = c.Error(apperrors.Unauthorized(nil))
	}
	return actor, ok
}

func (h *Handler) idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(apperrors.BadRequest("invalid "+name, err))
		return 0, false
	}
	return id, true
}

func (h *Handler) payload(c *gin.Context) (model.SectionPayload, bool) {
	body, err := c.GetRawData()
	if err != nil {
		_ = c.Error(apperrors.BadRequest("failed to read body", err))
		return nil, false
	}
	var payload model.SectionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		_ = c.Error(apperrors.BadRequest("body must be a JSON object keyed by question id", err))
		return nil, false
	}
	if payload == nil {
		payload = model.SectionPayload{}
	}
	return payload, true
}
