package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/javl1n/siblo-server/api/rest"
	"github.com/javl1n/siblo-server/audit"
	"github.com/javl1n/siblo-server/cache"
	"github.com/javl1n/siblo-server/config"
	"github.com/javl1n/siblo-server/game/battle"
	"github.com/javl1n/siblo-server/game/progression"
	"github.com/javl1n/siblo-server/game/quiz"
	"github.com/javl1n/siblo-server/game/reward"
	mw "github.com/javl1n/siblo-server/middleware"
	"github.com/javl1n/siblo-server/model"
	"github.com/javl1n/siblo-server/testutil"
)

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	cache  cache.Cache
}

// newTestServer builds a router with the full API surface against an
// in-memory database, plus one starter species in the catalog.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: 72 * time.Hour}
	game := config.GameConfig{StarterLevel: 1}
	logger := zap.NewNop()

	ledger := progression.NewLedger(rand.New(rand.NewSource(1)))
	dist := reward.NewDistributor(ledger, c, logger)
	quizSvc := quiz.NewService(db, dist, logger)
	battleSvc := battle.NewService(db, rand.New(rand.NewSource(1)), logger)
	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })

	authH := rest.NewAuthHandler(db, c, sec, game)
	playerH := rest.NewPlayerHandler(db)
	quizH := rest.NewQuizHandler(db, quizSvc, auditSvc)
	battleH := rest.NewBattleHandler(db, battleSvc)
	rankH := rest.NewRankingHandler(db, c, logger)

	r := gin.New()
	r.Use(mw.TraceID())
	api := r.Group("/api")
	api.POST("/auth/register", authH.Register)
	api.POST("/auth/login", authH.Login)

	authed := api.Group("", mw.Auth(sec, c))
	authed.POST("/auth/logout", authH.Logout)
	authed.POST("/auth/refresh", authH.Refresh)
	authed.GET("/player/profile", playerH.Profile)
	authed.GET("/player/siblons", playerH.Siblons)
	authed.PATCH("/player/siblons/:id", playerH.UpdateSiblon)
	authed.GET("/player/siblons/:id/history", playerH.SiblonHistory)
	authed.GET("/player/activity", playerH.Activity)
	authed.GET("/species", playerH.Species)
	authed.GET("/quizzes", quizH.Index)
	authed.GET("/quizzes/:id", quizH.Show)
	authed.POST("/quizzes/:id/start", quizH.Start)
	authed.GET("/quizzes/:id/attempts", quizH.Attempts)
	authed.POST("/attempts/:id/submit", quizH.Submit)
	authed.GET("/attempts/:id", quizH.AttemptDetail)
	authed.POST("/battles", battleH.Start)
	authed.GET("/battles", battleH.List)
	authed.GET("/battles/:battle_id", battleH.Show)
	authed.POST("/battles/:battle_id/attack", battleH.Attack)
	authed.POST("/battles/:battle_id/forfeit", battleH.Forfeit)
	authed.GET("/ranking/exp", rankH.TopExp)

	starter := &model.SiblonSpecies{Name: "embercub", DisplayName: "Embercub", BaseHP: 30, BaseAttack: 10, BaseDefense: 8, IsStarter: true}
	require.NoError(t, db.Create(starter).Error)

	return &testServer{router: r, db: db, cache: c}
}

// register creates a student account and returns the session token.
func (ts *testServer) register(t *testing.T, username string) string {
	t.Helper()
	w := postJSON(ts.router, "/api/auth/register", map[string]interface{}{
		"name":         username,
		"username":     username,
		"email":        username + "@example.com",
		"password":     "password123",
		"trainer_name": username,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["token"].(string)
}

func postJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func patchJSON(r *gin.Engine, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPatch, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getReq(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
