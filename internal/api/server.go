package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"classhub/internal/auth"
	"classhub/internal/config"
	"classhub/internal/session"
	"classhub/pkg/interfaces"
	"classhub/pkg/types"
)

const claimsKey = "claims"

// Server exposes the REST surface: class scheduling, chat history
// backfill, and health.
type Server struct {
	sessions *session.Manager
	messages interfaces.MessageStore
	verifier *auth.Verifier
	cfg      config.CoordinatorConfig
	log      *logrus.Entry
}

// NewServer creates the REST server.
func NewServer(sessions *session.Manager, messages interfaces.MessageStore, verifier *auth.Verifier, cfg config.CoordinatorConfig, log *logrus.Entry) *Server {
	return &Server{
		sessions: sessions,
		messages: messages,
		verifier: verifier,
		cfg:      cfg,
		log:      log.WithField("component", "api"),
	}
}

// Register mounts all REST routes on the given engine.
func (s *Server) Register(r *gin.Engine, audioDir string) {
	registerValidations()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.handleHealth)
	r.Static("/uploads/audio", audioDir)

	api := r.Group("/api", s.requireAuth)
	{
		api.GET("/classes/upcoming", s.handleListUpcoming)
		api.GET("/classes/ongoing", s.handleListOngoing)
		api.GET("/classes/previous", s.handleListPrevious)
		api.GET("/classes/:id", s.handleGetClass)
		api.POST("/classes", s.requireAdmin, s.handleCreateClass)
		api.POST("/classes/:id/join", s.handleJoinClass)
		api.PATCH("/classes/:id/status", s.requireAdmin, s.handleSetStatus)
		api.GET("/classes/:id/messages", s.handleClassMessages)
		api.GET("/study-groups/:id/messages", s.handleStudyGroupMessages)
	}
}

// registerValidations adds the session-level check to gin's binding
// validator.
func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("level", func(fl validator.FieldLevel) bool {
			return types.IsValidLevel(fl.Field().String())
		})
	}
}

// requireAuth extracts and verifies the bearer token.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.Set(claimsKey, claims)
	c.Next()
}

func (s *Server) requireAdmin(c *gin.Context) {
	claims := mustClaims(c)
	if !claims.IsAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
		return
	}
	c.Next()
}

func mustClaims(c *gin.Context) *auth.Claims {
	return c.MustGet(claimsKey).(*auth.Claims)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createClassRequest struct {
	Title           string    `json:"title" binding:"required"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	EndTime         time.Time `json:"end_time" binding:"required"`
	MaxParticipants int       `json:"max_participants" binding:"required,gt=0"`
	Level           string    `json:"level" binding:"required,level"`
}

func (s *Server) handleCreateClass(c *gin.Context) {
	var req createClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := mustClaims(c)
	class, err := s.sessions.CreateClass(c.Request.Context(), session.CreateClassInput{
		Title:           req.Title,
		Description:     req.Description,
		HostID:          claims.UserID(),
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		MaxParticipants: req.MaxParticipants,
		Level:           req.Level,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, class)
}

func (s *Server) handleGetClass(c *gin.Context) {
	class, err := s.sessions.GetClass(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderClassError(c, err)
		return
	}
	c.JSON(http.StatusOK, class)
}

func (s *Server) handleListUpcoming(c *gin.Context) {
	s.renderList(c, s.sessions.ListUpcoming)
}

func (s *Server) handleListOngoing(c *gin.Context) {
	s.renderList(c, s.sessions.ListOngoing)
}

func (s *Server) handleListPrevious(c *gin.Context) {
	s.renderList(c, s.sessions.ListPrevious)
}

func (s *Server) renderList(c *gin.Context, list func(ctx context.Context) ([]*types.ClassSession, error)) {
	classes, err := list(c.Request.Context())
	if err != nil {
		s.log.WithError(err).Error("failed to list classes")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list classes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (s *Server) handleJoinClass(c *gin.Context) {
	claims := mustClaims(c)
	err := s.sessions.JoinClass(c.Request.Context(), c.Param("id"), claims.UserID())
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrClassNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "class not found"})
		case errors.Is(err, session.ErrAlreadyEnrolled):
			c.JSON(http.StatusConflict, gin.H{"error": "already enrolled"})
		case errors.Is(err, session.ErrClassFull):
			c.JSON(http.StatusConflict, gin.H{"error": "class is full"})
		default:
			s.log.WithError(err).Error("failed to join class")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to join class"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) handleSetStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := mustClaims(c)
	classID := c.Param("id")
	if err := s.sessions.VerifyHost(c.Request.Context(), classID, claims.UserID()); err != nil {
		s.renderClassError(c, err)
		return
	}

	if err := s.sessions.SetStatus(c.Request.Context(), classID, req.Status); err != nil {
		if errors.Is(err, session.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		s.renderClassError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

func (s *Server) handleClassMessages(c *gin.Context) {
	limit := s.historyLimit(c)
	messages, err := s.messages.ListMessages(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.log.WithError(err).Error("failed to list messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) handleStudyGroupMessages(c *gin.Context) {
	limit := s.historyLimit(c)
	messages, err := s.messages.ListStudyGroupMessages(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.log.WithError(err).Error("failed to list study group messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// historyLimit clamps the requested backfill size to the configured cap.
func (s *Server) historyLimit(c *gin.Context) int {
	limit := s.cfg.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}
	return limit
}

func (s *Server) renderClassError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, interfaces.ErrClassNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "class not found"})
	case errors.Is(err, session.ErrNotHost):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the host of this class"})
	default:
		s.log.WithError(err).Error("class operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
