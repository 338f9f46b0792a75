package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/javl1n/siblo-server/audit"
	"github.com/javl1n/siblo-server/game/quiz"
	mw "github.com/javl1n/siblo-server/middleware"
)

// QuizHandler handles the quiz catalog and attempt endpoints.
type QuizHandler struct {
	db    *gorm.DB
	svc   *quiz.Service
	audit *audit.Service
}

func NewQuizHandler(db *gorm.DB, svc *quiz.Service, auditSvc *audit.Service) *QuizHandler {
	return &QuizHandler{db: db, svc: svc, audit: auditSvc}
}

// Index handles GET /api/quizzes.
func (h *QuizHandler) Index(c *gin.Context) {
	quizzes, err := h.svc.ListPublished(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quizzes": quizzes})
}

// Show handles GET /api/quizzes/:id.
func (h *QuizHandler) Show(c *gin.Context) {
	quizID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad quiz id"})
		return
	}
	q, questions, err := h.svc.GetPublished(c.Request.Context(), quizID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quiz": q, "questions": questions})
}

// Start handles POST /api/quizzes/:id/start.
func (h *QuizHandler) Start(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	quizID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad quiz id"})
		return
	}

	res, err := h.svc.Start(c.Request.Context(), player.ID, quizID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

type submitRequest struct {
	Answers []quiz.AnswerSubmission `json:"answers"`
}

// Submit handles POST /api/attempts/:id/submit.
func (h *QuizHandler) Submit(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	attemptID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad attempt id"})
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	res, err := h.svc.Submit(c.Request.Context(), player.ID, attemptID, req.Answers)

	userID := mw.GetUserID(c)
	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		PlayerID:   &player.ID,
		UserID:     &userID,
		Action:     "quiz_submit",
		Request:    gin.H{"attempt_id": attemptID, "answers": len(req.Answers)},
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		entry.Error = err.Error()
		h.audit.Log(entry)
		respondError(c, err)
		return
	}
	entry.Response = gin.H{"score": res.Attempt.Score, "percentage": res.Attempt.Percentage, "passed": res.Attempt.Passed}
	h.audit.Log(entry)

	c.JSON(http.StatusOK, res)
}

// Attempts handles GET /api/quizzes/:id/attempts — the caller's attempt
// history for one quiz.
func (h *QuizHandler) Attempts(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	quizID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad quiz id"})
		return
	}
	attempts, err := h.svc.ListAttempts(c.Request.Context(), player.ID, quizID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

// AttemptDetail handles GET /api/attempts/:id.
func (h *QuizHandler) AttemptDetail(c *gin.Context) {
	player, ok := playerFor(c, h.db)
	if !ok {
		return
	}
	attemptID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad attempt id"})
		return
	}
	attempt, answers, err := h.svc.GetAttempt(c.Request.Context(), player.ID, attemptID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempt": attempt, "answers": answers})
}
