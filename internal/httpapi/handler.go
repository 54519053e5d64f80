// Package httpapi exposes the scoreboard over HTTP with gin.
package httpapi

import (
	stdErrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validator "github.com/go-playground/validator/v10"

	"github.com/Proton-105/scoreboard/internal/domain"
	"github.com/Proton-105/scoreboard/internal/errors"
	"github.com/Proton-105/scoreboard/internal/health"
	"github.com/Proton-105/scoreboard/internal/i18n"
	"github.com/Proton-105/scoreboard/internal/idempotency"
	"github.com/Proton-105/scoreboard/internal/middleware"
	"github.com/Proton-105/scoreboard/internal/ranking"
	"github.com/Proton-105/scoreboard/internal/score"
	"github.com/Proton-105/scoreboard/internal/user"
)

// Deps are the collaborators of Handler. Idempotency and Health may be nil.
type Deps struct {
	Users       *user.Service
	Scores      *score.Service
	Ranking     *ranking.Service
	Errors      *errors.Handler
	I18n        *i18n.Manager
	Health      *health.Checker
	Idempotency idempotency.Manager
	Log         *slog.Logger
}

// Handler serves the JSON API.
type Handler struct {
	users       *user.Service
	scores      *score.Service
	ranking     *ranking.Service
	errors      *errors.Handler
	i18n        *i18n.Manager
	health      *health.Checker
	idempotency idempotency.Manager
	log         *slog.Logger
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		users:       d.Users,
		scores:      d.Scores,
		ranking:     d.Ranking,
		errors:      d.Errors,
		i18n:        d.I18n,
		health:      d.Health,
		idempotency: d.Idempotency,
		log:         log,
	}
}

// RegisterRoutes mounts the API, health and readiness routes on router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.liveness)
	router.GET("/readyz", h.readiness)

	api := router.Group("/api")
	{
		api.POST("/register", h.register)
		api.POST("/login", h.login)
		api.POST("/score", middleware.Idempotency(h.idempotency, h.renderMiddlewareError, h.log), h.submitScore)
		api.GET("/ranking", h.getRanking)
		api.GET("/users/:id", h.getUser)
	}
}

func (h *Handler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err, errors.MsgMissingCredentials))
		return
	}

	u, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse{Success: true, User: toUserResponse(u)})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err, errors.MsgMissingCredentials))
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{Success: true, User: toUserResponse(u)})
}

func (h *Handler) submitScore(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err, errors.MsgMissingScoreFields))
		return
	}

	level := req.Level
	if level == 0 {
		level = domain.DefaultLevel
	}

	res, err := h.scores.Submit(c.Request.Context(), score.Submission{
		UserID: *req.UserID,
		Level:  level,
		Score:  *req.Score,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, scoreResponse{
		Success:      true,
		Updated:      res.Updated,
		BestScore:    res.BestScore,
		TotalScore:   res.TotalScore,
		PerLevelBest: nonNilLevels(res.PerLevelBest),
		Ranking:      toRanking(res.Ranking),
	})
}

func (h *Handler) getRanking(c *gin.Context) {
	entries, err := h.ranking.Top(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, rankingResponse{Success: true, Ranking: toRanking(entries)})
}

func (h *Handler) getUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.fail(c, errors.NewValidationError("invalid user id "+strconv.Quote(c.Param("id")), ""))
		return
	}

	profile, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		Success:      true,
		User:         toUserResponse(profile.User),
		PerLevelBest: nonNilLevels(profile.PerLevelBest),
	})
}

func (h *Handler) liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": health.StatusOK})
}

func (h *Handler) readiness(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, health.Report{Status: health.StatusOK, Checks: map[string]string{}})
		return
	}

	report := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// fail logs err through the error handler and writes the localized error body.
func (h *Handler) fail(c *gin.Context, err error) {
	appErr := h.errors.Handle(c.Request.Context(), err)
	tr := h.i18n.Match(c.GetHeader("Accept-Language"))

	c.AbortWithStatusJSON(appErr.StatusCode(), errorResponse{
		Success: false,
		Error:   tr.T(appErr.UserMessage),
		Code:    appErr.Code,
	})
}

func (h *Handler) renderMiddlewareError(c *gin.Context, err error) {
	switch {
	case stdErrors.Is(err, idempotency.ErrRequestInProgress):
		h.fail(c, errors.NewConflictError(err.Error()))
	case stdErrors.Is(err, middleware.ErrKeyTooLong):
		h.fail(c, errors.NewValidationError(err.Error(), ""))
	default:
		h.fail(c, err)
	}
}

// bindError converts a binding failure into a validation error. Missing
// required fields use missingKey; malformed or out-of-range values use the
// generic message.
func bindError(err error, missingKey string) *errors.AppError {
	var verrs validator.ValidationErrors
	if stdErrors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return errors.NewValidationError(err.Error(), missingKey)
			}
		}
	}

	return errors.NewValidationError(err.Error(), "")
}
