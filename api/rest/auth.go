package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/javl1n/siblo-server/cache"
	"github.com/javl1n/siblo-server/config"
	mw "github.com/javl1n/siblo-server/middleware"
	"github.com/javl1n/siblo-server/model"
)

// AuthHandler handles authentication REST endpoints.
type AuthHandler struct {
	db    *gorm.DB
	cache cache.Cache
	sec   config.SecurityConfig
	game  config.GameConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, game config.GameConfig) *AuthHandler {
	return &AuthHandler{db: db, cache: c, sec: sec, game: game}
}

type registerRequest struct {
	Name             string `json:"name" binding:"required,min=2,max=64"`
	Username         string `json:"username" binding:"required,min=2,max=32"`
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required,min=8,max=64"`
	TrainerName      string `json:"trainer_name" binding:"required,min=2,max=32"`
	StarterSpeciesID *int64 `json:"starter_species_id"`
}

// Register handles POST /api/auth/register.
// Creates the account, its player profile, and a starter siblon in one
// transaction, then issues a session token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var starter model.SiblonSpecies
	starterQuery := h.db.Where("is_starter = ?", true)
	if req.StarterSpeciesID != nil {
		starterQuery = starterQuery.Where("id = ?", *req.StarterSpeciesID)
	}
	if err := starterQuery.Order("id ASC").First(&starter).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no such starter species"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	user := model.User{
		Name:         req.Name,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		UserType:     model.UserTypeStudent,
	}
	var player model.PlayerProfile

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		player = model.PlayerProfile{
			UserID:      user.ID,
			TrainerName: req.TrainerName,
			Level:       1,
		}
		if err := tx.Create(&player).Error; err != nil {
			return err
		}
		level := h.game.StarterLevel
		if level < 1 {
			level = 1
		}
		siblon := model.Siblon{
			PlayerProfileID: player.ID,
			SpeciesID:       starter.ID,
			Level:           level,
			CurrentHP:       starter.BaseHP,
			MaxHP:           starter.BaseHP,
			Attack:          starter.BaseAttack,
			Defense:         starter.BaseDefense,
			IsInParty:       true,
		}
		return tx.Create(&siblon).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	token, err := h.issueSession(c, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":   token,
		"user_id": user.ID,
		"player":  player,
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user model.User
	err := h.db.Where("username = ?", req.Username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.issueSession(c, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}

	// Update last login (best-effort).
	now := time.Now()
	_ = h.db.Model(&user).Updates(map[string]interface{}{
		"last_login_at": now,
		"last_login_ip": c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"user_id": user.ID,
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	header := c.GetHeader("Authorization")
	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, "session:"+tokenStr)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	userID := mw.GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Invalidate the old token before issuing a new one.
	header := c.GetHeader("Authorization")
	oldToken := strings.TrimPrefix(header, "Bearer ")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Del(ctx, "session:"+oldToken)

	newToken, err := h.issueSession(c, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": newToken})
}

// issueSession signs a JWT and stores the session key in the cache so the
// auth middleware's Exists() check works uniformly.
func (h *AuthHandler) issueSession(c *gin.Context, userID int64) (string, error) {
	token, err := mw.GenerateToken(userID, h.sec.JWTSecret, h.sec.JWTTTLH)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	_ = h.cache.Set(ctx, "session:"+token, strconv.FormatInt(userID, 10), h.sec.JWTTTLH)
	return token, nil
}
