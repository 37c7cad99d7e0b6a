package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kurobane/sagabrawl/audit"
	"github.com/kurobane/sagabrawl/cache"
	"github.com/kurobane/sagabrawl/game/action"
	"github.com/kurobane/sagabrawl/game/pending"
	"github.com/kurobane/sagabrawl/game/racial"
	"github.com/kurobane/sagabrawl/game/roster"
	"github.com/kurobane/sagabrawl/game/turn"
	mw "github.com/kurobane/sagabrawl/middleware"
	"github.com/kurobane/sagabrawl/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// CombatDeps bundles the services the combat handler coordinates.
type CombatDeps struct {
	Roster   *roster.Service
	Ledger   *pending.Ledger
	Machine  *turn.Machine
	Resolver *action.Resolver
	Registry *racial.Registry
	Prompts  *action.PromptStore
	PubSub   cache.PubSub
	Audit    *audit.Service
	Logger   *zap.Logger
}

// CombatHandler handles attack and defense endpoints.
type CombatHandler struct {
	deps CombatDeps
}

// NewCombatHandler creates a CombatHandler.
func NewCombatHandler(deps CombatDeps) *CombatHandler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &CombatHandler{deps: deps}
}

type attackRequest struct {
	Channel     string  `json:"channel" binding:"required"`
	Target      string  `json:"target" binding:"required"`
	Type        string  `json:"type" binding:"required,oneof=physical ki"`
	Effort      int     `json:"effort"`
	Additive    float64 `json:"additive"`
	AccuracyMod float64 `json:"accuracy_mod"`
	Multiplier  float64 `json:"multiplier"`
}

// attackMetadata rides along on the pending row so the defense resolution
// can compute blowback without re-deriving the attack.
type attackMetadata struct {
	SpentPct       float64 `json:"spent_pct"`
	AttackerCharID int64   `json:"attacker_char_id"`
}

// Attack handles POST /api/combat/attack.
// A ki attack without a multiplier opens a bounded prompt instead of
// executing; the multiplier arrives via AttackMultiplier.
func (h *CombatHandler) Attack(c *gin.Context) {
	var req attackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	accountID := mw.GetAccountID(c)

	if req.Type == action.TypeKi && req.Multiplier == 0 {
		saved, err := h.deps.Prompts.Save(c.Request.Context(), req.Channel, accountID, "ki_attack", req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "prompt failed"})
			return
		}
		if !saved {
			c.JSON(http.StatusConflict, gin.H{"error": "a ki attack prompt is already open"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"prompt": "multiplier required"})
		return
	}

	h.execAttack(c, accountID, req)
}

type multiplierRequest struct {
	Channel    string  `json:"channel" binding:"required"`
	Multiplier float64 `json:"multiplier" binding:"required"`
}

// AttackMultiplier handles POST /api/combat/attack/multiplier: the second
// step of a prompted ki attack.
func (h *CombatHandler) AttackMultiplier(c *gin.Context) {
	var req multiplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	accountID := mw.GetAccountID(c)

	var queued attackRequest
	err := h.deps.Prompts.Claim(c.Request.Context(), req.Channel, accountID, "ki_attack", &queued)
	if errors.Is(err, action.ErrPromptExpired) {
		c.JSON(http.StatusGone, gin.H{"error": "prompt expired, start the attack again"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prompt failed"})
		return
	}
	queued.Multiplier = req.Multiplier
	h.execAttack(c, accountID, queued)
}

func (h *CombatHandler) execAttack(c *gin.Context, accountID int64, req attackRequest) {
	ctx := c.Request.Context()
	started := time.Now()

	cur, _, err := h.deps.Machine.Current(ctx, req.Channel)
	if errors.Is(err, turn.ErrOrderNotFound) {
		c.JSON(http.StatusConflict, gin.H{"error": "no combat running in channel"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "turn lookup failed"})
		return
	}
	if cur.UserID != accountID {
		c.JSON(http.StatusConflict, gin.H{"error": "not your turn"})
		return
	}

	attacker, ok := ownCharacter(c, h.deps.Roster)
	if !ok {
		return
	}
	target, err := h.deps.Roster.ByName(ctx, req.Target)
	if errors.Is(err, roster.ErrCharacterNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "target lookup failed"})
		return
	}
	if target.ID == attacker.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot attack yourself"})
		return
	}

	profile, err := h.deps.Roster.Profile(ctx, attacker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile failed"})
		return
	}
	cs, err := h.deps.Roster.EnsureCombatState(ctx, attacker.ID, req.Channel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "combat state failed"})
		return
	}
	effPL := profile.EffectivePL(cs)
	actor := actorFrom(profile, effPL)

	effort := action.Effort(req.Effort)
	if req.Effort == 0 {
		effort = action.DefaultEffort
	}

	var comp action.AttackComputation
	if req.Type == action.TypePhysical {
		comp, err = h.deps.Resolver.PhysicalAttack(actor, req.Additive, req.AccuracyMod, effort)
	} else {
		comp, err = h.deps.Resolver.KiAttack(actor, req.Multiplier, effort)
	}
	if handled := writeActionError(c, err); handled {
		return
	}

	profile.State.SpendKi(comp.KiCost)
	profile.State.ApplyKiDelta(comp.KiGain)
	if err := h.deps.Roster.SaveResources(ctx, attacker.ID, profile.State.Health, profile.State.Ki); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	meta, _ := json.Marshal(attackMetadata{SpentPct: comp.SpentPct, AttackerCharID: attacker.ID})
	pa := &model.PendingAttack{
		Channel:        req.Channel,
		AttackerUserID: accountID,
		TargetUserID:   target.AccountID,
		TargetCharID:   target.ID,
		AttackType:     comp.Type,
		Damage:         comp.Damage,
		Accuracy:       comp.Accuracy,
		Metadata:       datatypes.JSON(meta),
	}
	if err := h.deps.Ledger.Put(ctx, pa); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attack not recorded"})
		return
	}

	// The incoming hit's strength drives the target's Zenkai growth.
	tcs, err := h.deps.Roster.EnsureCombatState(ctx, target.ID, req.Channel)
	if err == nil {
		tcs.LastHitPL = effPL
		_ = h.deps.Roster.SaveCombatState(ctx, tcs)
	}

	h.publish(req.Channel, gin.H{
		"event":    "attack",
		"attacker": attacker.Name,
		"target":   target.Name,
		"type":     comp.Type,
		"damage":   comp.Damage,
	})
	h.deps.Audit.Log(audit.AuditEntry{
		TraceID:    mw.GetTraceID(c),
		CharID:     &attacker.ID,
		AccountID:  &accountID,
		CharName:   attacker.Name,
		Channel:    req.Channel,
		Action:     "attack_" + comp.Type,
		Request:    req,
		Response:   comp,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(started).Milliseconds()),
	})

	c.JSON(http.StatusOK, gin.H{
		"attack":      comp,
		"pending_id":  pa.ID,
		"expires_at":  pa.ExpiresAt,
		"ki":          profile.State.Ki,
		"effectivePL": effPL,
	})
}

type defendRequest struct {
	Channel    string  `json:"channel" binding:"required"`
	Attacker   string  `json:"attacker" binding:"required"`
	Kind       string  `json:"kind" binding:"required,oneof=block dodge"`
	Effort     int     `json:"effort"`
	Additive   float64 `json:"additive"`
	Multiplier float64 `json:"multiplier"`
}

// Defend handles POST /api/combat/defend: answers a pending attack with a
// block or a dodge. Exactly one response consumes the attack.
func (h *CombatHandler) Defend(c *gin.Context) {
	var req defendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	started := time.Now()
	accountID := mw.GetAccountID(c)

	defender, ok := ownCharacter(c, h.deps.Roster)
	if !ok {
		return
	}
	attackerChar, err := h.deps.Roster.ByName(ctx, req.Attacker)
	if errors.Is(err, roster.ErrCharacterNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "attacker not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "attacker lookup failed"})
		return
	}

	pa, err := h.deps.Ledger.Get(ctx, req.Channel, attackerChar.AccountID, accountID)
	if errors.Is(err, pending.ErrNoPendingAttack) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no incoming attack from them"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger lookup failed"})
		return
	}

	profile, err := h.deps.Roster.Profile(ctx, defender)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile failed"})
		return
	}
	cs, err := h.deps.Roster.EnsureCombatState(ctx, defender.ID, req.Channel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "combat state failed"})
		return
	}
	effPL := profile.EffectivePL(cs)
	actor := actorFrom(profile, effPL)

	effort := action.Effort(req.Effort)
	if req.Effort == 0 {
		effort = action.DefaultEffort
	}

	var comp action.DefenseComputation
	if req.Kind == "block" {
		comp, err = h.deps.Resolver.Block(actor, req.Additive, req.Multiplier, effort)
	} else {
		comp, err = h.deps.Resolver.Dodge(actor, req.Additive, req.Multiplier, effort)
	}
	if handled := writeActionError(c, err); handled {
		return
	}

	// Claim the attack before touching any state: only one response wins.
	if err := h.deps.Ledger.Resolve(ctx, pa.ID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "attack already resolved"})
		return
	}

	var outcome action.Outcome
	if req.Kind == "block" {
		outcome = action.ResolveBlock(pa.Damage, comp.Value)
	} else {
		// A failed dodge still shaves off a raw defense pity block.
		baseDefense := effPL * int64(profile.Stats.Defense) / 10
		outcome = h.deps.Resolver.ResolveDodge(pa.Damage, pa.Accuracy, comp.Value, baseDefense)
	}

	profile.State.SpendKi(comp.KiCost)
	profile.State.ApplyKiDelta(comp.KiGain)
	if outcome.Damage > 0 {
		profile.State.ApplyHealthDelta(-outcome.Damage)
	}
	if err := h.deps.Roster.SaveResources(ctx, defender.ID, profile.State.Health, profile.State.Ki); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}

	events := h.settleAttacker(ctx, attackerChar, pa, outcome.Damage, req.Channel)

	h.publish(req.Channel, gin.H{
		"event":    "defend",
		"defender": defender.Name,
		"attacker": attackerChar.Name,
		"kind":     req.Kind,
		"evaded":   outcome.Evaded,
		"damage":   outcome.Damage,
	})
	h.deps.Audit.Log(audit.AuditEntry{
		TraceID:    mw.GetTraceID(c),
		CharID:     &defender.ID,
		AccountID:  &accountID,
		CharName:   defender.Name,
		Channel:    req.Channel,
		Action:     "defend_" + req.Kind,
		Request:    req,
		Response:   outcome,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(started).Milliseconds()),
	})

	c.JSON(http.StatusOK, gin.H{
		"defense":  comp,
		"outcome":  outcome,
		"health":   profile.State.Health,
		"ki":       profile.State.Ki,
		"defeated": profile.State.Defeated(),
		"events":   events,
	})
}

// settleAttacker applies the attacker-side consequences of a landed hit:
// Majin Magic gains on damage dealt and ki-attack blowback.
func (h *CombatHandler) settleAttacker(ctx context.Context, attacker *model.Character, pa *model.PendingAttack, dealt int64, channel string) []racial.Event {
	profile, err := h.deps.Roster.Profile(ctx, attacker)
	if err != nil {
		h.deps.Logger.Error("attacker settle failed", zap.Int64("char_id", attacker.ID), zap.Error(err))
		return nil
	}
	cs, err := h.deps.Roster.EnsureCombatState(ctx, attacker.ID, channel)
	if err != nil {
		h.deps.Logger.Error("attacker combat state failed", zap.Int64("char_id", attacker.ID), zap.Error(err))
		return nil
	}

	var events []racial.Event
	if dealt > 0 {
		dctx := &racial.DamageContext{
			Tags:            profile.Tags,
			State:           profile.State,
			Damage:          dealt,
			MajinMagicBonus: cs.MajinMagicBonus,
		}
		events = h.deps.Registry.RunDamageDealt(dctx)
		cs.MajinMagicBonus = dctx.MajinMagicBonus
	}

	if pa.AttackType == action.TypeKi {
		var meta attackMetadata
		if len(pa.Metadata) > 0 {
			_ = json.Unmarshal(pa.Metadata, &meta)
		}
		if blow := action.Blowback(dealt, meta.SpentPct); blow > 0 {
			profile.State.ApplyHealthDelta(-blow)
			events = append(events, racial.Event{Effect: "blowback", Amount: blow})
		}
	}

	if err := h.deps.Roster.SaveResources(ctx, attacker.ID, profile.State.Health, profile.State.Ki); err != nil {
		h.deps.Logger.Error("attacker save failed", zap.Int64("char_id", attacker.ID), zap.Error(err))
	}
	if err := h.deps.Roster.SaveCombatState(ctx, cs); err != nil {
		h.deps.Logger.Error("attacker combat state save failed", zap.Int64("char_id", attacker.ID), zap.Error(err))
	}
	return events
}

// Incoming handles GET /api/combat/incoming?channel=<channel>: the attacks
// currently awaiting the caller's response.
func (h *CombatHandler) Incoming(c *gin.Context) {
	channel := c.Query("channel")
	if channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel required"})
		return
	}
	rows, err := h.deps.Ledger.Incoming(c.Request.Context(), channel, mw.GetAccountID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incoming": rows})
}

func (h *CombatHandler) publish(channel string, payload gin.H) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.deps.PubSub.Publish(ctx, "combat:"+channel, string(raw)); err != nil {
		h.deps.Logger.Warn("combat event publish failed", zap.String("channel", channel), zap.Error(err))
	}
}

// actorFrom flattens a combat profile into the resolver's attribute view.
func actorFrom(p *roster.CombatProfile, effPL int64) action.Actor {
	return action.Actor{
		EffectivePL: effPL,
		Strength:    p.Stats.Strength,
		Defense:     p.Stats.Defense,
		Agility:     p.Stats.Agility,
		Endurance:   p.Stats.Endurance,
		Control:     p.Stats.Control,
		CurrentKi:   p.State.Ki,
	}
}

// writeActionError maps resolver errors onto HTTP responses. Returns true
// if err was non-nil and a response was written.
func writeActionError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var insufficient *action.InsufficientKiError
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "not enough ki",
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.Is(err, action.ErrInvalidMultiplier),
		errors.Is(err, action.ErrInvalidKiMultiplier),
		errors.Is(err, action.ErrInvalidEffort):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "action failed"})
	}
	return true
}
