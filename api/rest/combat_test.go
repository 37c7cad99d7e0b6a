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
	"github.com/kurobane/sagabrawl/api/rest"
	"github.com/kurobane/sagabrawl/audit"
	"github.com/kurobane/sagabrawl/config"
	"github.com/kurobane/sagabrawl/game/action"
	"github.com/kurobane/sagabrawl/game/pending"
	"github.com/kurobane/sagabrawl/game/racial"
	"github.com/kurobane/sagabrawl/game/roster"
	"github.com/kurobane/sagabrawl/game/turn"
	mw "github.com/kurobane/sagabrawl/middleware"
	"github.com/kurobane/sagabrawl/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// env stands up the full combat API over an in-memory DB and local cache.
type env struct {
	r  *gin.Engine
	db *gorm.DB
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	sec := config.SecurityConfig{JWTSecret: "test-secret", JWTTTLH: time.Hour}

	rosterSvc := roster.NewService(db, nil)
	registry := racial.NewRegistry()
	ledger := pending.NewLedger(db, rosterSvc, time.Minute, nil)
	machine := turn.NewMachine(db, rosterSvc, registry, 5, 10, nil)
	resolver := action.NewResolver(rand.New(rand.NewSource(42)))
	prompts := action.NewPromptStore(c, 30*time.Second)
	auditSvc := audit.New(db, zap.NewNop())
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })

	authH := rest.NewAuthHandler(db, c, sec)
	charH := rest.NewCharacterHandler(db, rosterSvc)
	combatH := rest.NewCombatHandler(rest.CombatDeps{
		Roster:   rosterSvc,
		Ledger:   ledger,
		Machine:  machine,
		Resolver: resolver,
		Registry: registry,
		Prompts:  prompts,
		PubSub:   pubsub,
		Audit:    auditSvc,
	})
	turnH := rest.NewTurnHandler(machine, rosterSvc)

	r := gin.New()
	r.POST("/api/auth/login", authH.Login)

	authed := r.Group("/api", mw.Auth(sec, c))
	authed.POST("/characters", charH.Create)
	authed.GET("/characters/me", charH.Sheet)
	authed.POST("/combat/attack", combatH.Attack)
	authed.POST("/combat/attack/multiplier", combatH.AttackMultiplier)
	authed.POST("/combat/defend", combatH.Defend)
	authed.GET("/combat/incoming", combatH.Incoming)
	authed.POST("/turns", turnH.Create)
	authed.POST("/turns/:channel/advance", turnH.Advance)

	return &env{r: r, db: db}
}

func (e *env) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func (e *env) login(t *testing.T, username string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": username, "password": "pass1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func (e *env) createChar(t *testing.T, token, name, race string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/characters", token, map[string]interface{}{
		"name": name, "race": race,
		"strength": 10, "defense": 10, "agility": 10, "endurance": 10, "control": 100,
		"base_pl": 1000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// fighters logs in two players, creates their characters and starts combat
// in the arena channel with the first one at bat.
func fighters(t *testing.T, e *env) (tokenA, tokenB string) {
	tokenA = e.login(t, "kakarot")
	tokenB = e.login(t, "emperor")
	e.createChar(t, tokenA, "Goku", "saiyan")
	e.createChar(t, tokenB, "Frieza", "arcosian")

	w := e.do(t, http.MethodPost, "/api/turns", tokenA, map[string]interface{}{
		"channel": "arena", "opponents": []string{"Frieza"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return tokenA, tokenB
}

func TestPhysicalAttackThenBlock(t *testing.T) {
	e := newEnv(t)
	tokenA, tokenB := fighters(t, e)

	w := e.do(t, http.MethodPost, "/api/combat/attack", tokenA, map[string]interface{}{
		"channel": "arena", "target": "Frieza", "type": "physical",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var atk struct {
		Attack struct {
			Damage   int64 `json:"damage"`
			Accuracy int64 `json:"accuracy"`
		} `json:"attack"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &atk))
	// casual effort roll lands in [0.7, 1.0] on PL 1000, strength 10
	assert.GreaterOrEqual(t, atk.Attack.Damage, int64(700))
	assert.LessOrEqual(t, atk.Attack.Damage, int64(1000))

	// The target sees the incoming attack.
	w = e.do(t, http.MethodGet, "/api/combat/incoming?channel=arena", tokenB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var inc struct {
		Incoming []json.RawMessage `json:"incoming"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inc))
	assert.Len(t, inc.Incoming, 1)

	w = e.do(t, http.MethodPost, "/api/combat/defend", tokenB, map[string]interface{}{
		"channel": "arena", "attacker": "Goku", "kind": "block",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var def struct {
		Outcome struct {
			Evaded bool  `json:"evaded"`
			Damage int64 `json:"damage"`
		} `json:"outcome"`
		Health int64 `json:"health"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &def))
	assert.False(t, def.Outcome.Evaded)
	assert.Equal(t, int64(10000)-def.Outcome.Damage, def.Health)

	// Second response to the same attack finds nothing.
	w = e.do(t, http.MethodPost, "/api/combat/defend", tokenB, map[string]interface{}{
		"channel": "arena", "attacker": "Goku", "kind": "block",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttackRequiresYourTurn(t *testing.T) {
	e := newEnv(t)
	_, tokenB := fighters(t, e)

	w := e.do(t, http.MethodPost, "/api/combat/attack", tokenB, map[string]interface{}{
		"channel": "arena", "target": "Goku", "type": "physical",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAttackRequiresRunningCombat(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, "lonely")
	e.createChar(t, token, "Yamcha", "human")

	w := e.do(t, http.MethodPost, "/api/combat/attack", token, map[string]interface{}{
		"channel": "empty", "target": "Yamcha", "type": "physical",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestKiAttackPromptFlow(t *testing.T) {
	e := newEnv(t)
	tokenA, _ := fighters(t, e)

	// No multiplier: the attack opens a prompt instead of executing.
	w := e.do(t, http.MethodPost, "/api/combat/attack", tokenA, map[string]interface{}{
		"channel": "arena", "target": "Frieza", "type": "ki",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	// A second ki attack while the prompt is open is refused.
	w = e.do(t, http.MethodPost, "/api/combat/attack", tokenA, map[string]interface{}{
		"channel": "arena", "target": "Frieza", "type": "ki",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Supplying the multiplier completes the attack.
	w = e.do(t, http.MethodPost, "/api/combat/attack/multiplier", tokenA, map[string]interface{}{
		"channel": "arena", "multiplier": 1.5,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The prompt is consumed.
	w = e.do(t, http.MethodPost, "/api/combat/attack/multiplier", tokenA, map[string]interface{}{
		"channel": "arena", "multiplier": 1.5,
	})
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestKiAttackRejectsUnaffordableMultiplier(t *testing.T) {
	e := newEnv(t)
	tokenA, _ := fighters(t, e)

	// control 100, multiplier 3.0 → cost 20 ki against a 10 ki pool
	w := e.do(t, http.MethodPost, "/api/combat/attack", tokenA, map[string]interface{}{
		"channel": "arena", "target": "Frieza", "type": "ki", "multiplier": 3.0,
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	var resp struct {
		Required  int64 `json:"required"`
		Available int64 `json:"available"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(20), resp.Required)
	assert.Equal(t, int64(10), resp.Available)
}

func TestAdvanceThenOpponentMayAttack(t *testing.T) {
	e := newEnv(t)
	tokenA, tokenB := fighters(t, e)

	w := e.do(t, http.MethodPost, "/api/turns/arena/advance", tokenA, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/api/combat/attack", tokenB, map[string]interface{}{
		"channel": "arena", "target": "Goku", "type": "physical",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSheetReportsEffectivePL(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, "prince")
	e.createChar(t, token, "Vegeta", "saiyan")

	w := e.do(t, http.MethodGet, "/api/characters/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		EffectivePL int64 `json:"effective_pl"`
		MaxHealth   int64 `json:"max_health"`
		MaxKi       int64 `json:"max_ki"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1000), resp.EffectivePL)
	assert.Equal(t, int64(10000), resp.MaxHealth)
	assert.Equal(t, int64(10), resp.MaxKi)
}
