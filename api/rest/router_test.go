package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grimsurvivors/potdhub/api/rest"
	"github.com/grimsurvivors/potdhub/cache"
	"github.com/grimsurvivors/potdhub/config"
	mw "github.com/grimsurvivors/potdhub/middleware"
	"github.com/grimsurvivors/potdhub/model"
	"github.com/grimsurvivors/potdhub/outbox"
	"github.com/grimsurvivors/potdhub/recon"
	"github.com/grimsurvivors/potdhub/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testBridgeKey = "bridge-test-key"

func nopLogger() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

type fixture struct {
	db     *gorm.DB
	cache  cache.Cache
	engine *recon.Engine
	outbox *outbox.Service
	router *gin.Engine
	sec    config.SecurityConfig
}

// newFixture builds the full API router against an in-memory DB, mirroring
// the wiring in main.go.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	ob := outbox.New(db, nopLogger())
	engine := recon.New(db, ob, nil, ps, config.GameConfig{}, nopLogger())

	sec := config.SecurityConfig{
		JWTSecret: "test-secret",
		JWTTTLH:   time.Hour,
		BridgeKey: testBridgeKey,
	}

	authH := rest.NewAuthHandler(db, c, sec)
	verifyH := rest.NewVerifyHandler(engine, nopLogger())
	gameH := rest.NewGameHandler(engine, ob, c, nopLogger())
	factionH := rest.NewFactionHandler(db, engine, nopLogger())
	charH := rest.NewCharacterHandler(db)
	statusH := rest.NewStatusHandler(c)

	r := gin.New()
	api := r.Group("/api")
	{
		api.POST("/auth/login", authH.Login)
		api.POST("/auth/logout", mw.Auth(sec, c), authH.Logout)
		api.POST("/auth/refresh", mw.Auth(sec, c), authH.Refresh)

		pzG := api.Group("/pz")
		pzG.Use(mw.BridgeAuth(sec.BridgeKey))
		pzG.POST("/add-code", gameH.AddCode)
		pzG.POST("/update-stats", gameH.UpdateStats)
		pzG.GET("/pending-commands", gameH.PendingCommands)
		pzG.POST("/pending-commands", gameH.AckCommands)

		api.POST("/verify-code", mw.Auth(sec, c), verifyH.VerifyCode)
		api.GET("/server-status", statusH.ServerStatus)

		userG := api.Group("/user")
		userG.Use(mw.Auth(sec, c))
		userG.GET("/active-character", charH.ActiveCharacter)
		userG.GET("/characters", charH.History)

		factionsG := api.Group("/factions")
		factionsG.Use(mw.Auth(sec, c))
		factionsG.GET("", factionH.List)
		factionsG.GET("/:id", factionH.Detail)
		factionsG.POST("/apply", factionH.Apply)
		factionsG.POST("/manage", factionH.Manage)
	}

	return &fixture{db: db, cache: c, engine: engine, outbox: ob, router: r, sec: sec}
}

// createUser inserts a user with the given password and returns it.
func (f *fixture) createUser(t *testing.T, email, password, username string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{Email: email, PasswordHash: string(hash), Status: 1}
	if username != "" {
		u.Username = &username
		u.IsVerified = true
	}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

// sessionFor issues a token and session cache entry for the user.
func (f *fixture) sessionFor(t *testing.T, userID int64) string {
	t.Helper()
	token, err := mw.GenerateToken(userID, f.sec.JWTSecret, f.sec.JWTTTLH)
	require.NoError(t, err)
	require.NoError(t, f.cache.Set(context.Background(),
		"session:"+token, strconv.FormatInt(userID, 10), f.sec.JWTTTLH))
	return token
}

func (f *fixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) bridgePost(path string, body interface{}) *httptest.ResponseRecorder {
	return f.do(http.MethodPost, path, testBridgeKey, body)
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}
