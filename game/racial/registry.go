package racial

import (
	"math"

	"github.com/kurobane/sagabrawl/game/pool"
)

// Event is a structured racial-effect outcome for the presentation layer.
type Event struct {
	Tag    string `json:"tag"`
	Effect string `json:"effect"`
	Amount int64  `json:"amount"`
}

// Effect kinds emitted by the built-in handlers.
const (
	EffectHeal       = "heal"
	EffectKiDrain    = "ki_drain"
	EffectKiGain     = "ki_gain"
	EffectZenkaiGrow = "zenkai_grow"
	EffectPLGain     = "pl_gain"
)

// TurnContext carries a character's end-of-turn state through the handler
// pass. Handlers mutate State and the bonus fields; the turn machine persists
// whatever the pass leaves behind.
type TurnContext struct {
	Tags  TagSet
	State *pool.State

	BasePL      int64
	EffectivePL int64 // at the moment the turn ends
	LastHitPL   int64 // effective PL of the last opposing hit received

	ZenkaiPercent   float64
	MajinMagicBonus int64

	// Zenkai tuning, injected from config.
	GrowthPercent      float64
	DesperationPercent float64
}

// DamageContext carries a damage-dealt notification through the handler pass.
type DamageContext struct {
	Tags  TagSet
	State *pool.State

	Damage          int64
	MajinMagicBonus int64
}

// TurnEnder is implemented by handlers that react when a turn ends.
type TurnEnder interface {
	OnTurnEnd(ctx *TurnContext) []Event
}

// DamageDealtHook is implemented by handlers that react to damage dealt.
type DamageDealtHook interface {
	OnDamageDealt(ctx *DamageContext) []Event
}

// Handler is a racial-effect handler bound to one tag.
type Handler interface {
	Tag() string
}

// Registry maps tags to their handlers, replacing per-command racial
// branching with a single iteration.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns a registry with every built-in handler installed.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.Register(zenkaiHandler{})
	r.Register(majinMagicHandler{})
	r.Register(majinRegenHandler{})
	r.Register(giantFormHandler{})
	return r
}

// Register installs or replaces the handler for its tag.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Tag()] = h
}

// RunTurnEnd invokes OnTurnEnd for every active tag with a handler.
func (r *Registry) RunTurnEnd(ctx *TurnContext) []Event {
	var events []Event
	for tag := range ctx.Tags {
		h, ok := r.handlers[tag]
		if !ok {
			continue
		}
		if te, ok := h.(TurnEnder); ok {
			events = append(events, te.OnTurnEnd(ctx)...)
		}
	}
	return events
}

// RunDamageDealt invokes OnDamageDealt for every active tag with a handler.
func (r *Registry) RunDamageDealt(ctx *DamageContext) []Event {
	var events []Event
	for tag := range ctx.Tags {
		h, ok := r.handlers[tag]
		if !ok {
			continue
		}
		if dh, ok := h.(DamageDealtHook); ok {
			events = append(events, dh.OnDamageDealt(ctx)...)
		}
	}
	return events
}

// ---------------------------------------------------------------------------
//  Built-in handlers
// ---------------------------------------------------------------------------

// zenkaiHandler grows a Saiyan's flat PL bonus while an opponent still
// outclasses them. Growth stops once parity is reached.
type zenkaiHandler struct{}

func (zenkaiHandler) Tag() string { return TagZenkai }

func (zenkaiHandler) OnTurnEnd(ctx *TurnContext) []Event {
	if ctx.LastHitPL == 0 || ctx.EffectivePL >= ctx.LastHitPL {
		return nil
	}
	rate := ctx.GrowthPercent
	if ctx.State.Pools.HealthPercent(ctx.State.Health) <= 20 {
		rate = ctx.DesperationPercent
	}
	if rate <= 0 {
		return nil
	}
	ctx.ZenkaiPercent += rate
	gained := int64(math.Floor(float64(ctx.BasePL) * rate / 100))
	return []Event{{Tag: TagZenkai, Effect: EffectZenkaiGrow, Amount: gained}}
}

// majinMagicHandler converts damage dealt into a flat PL bonus and a ki top-up.
type majinMagicHandler struct{}

func (majinMagicHandler) Tag() string { return TagMajinMagic }

func (majinMagicHandler) OnDamageDealt(ctx *DamageContext) []Event {
	if ctx.Damage <= 0 {
		return nil
	}
	plGain := ctx.Damage / 100
	if plGain < 1 {
		plGain = 1
	}
	ctx.MajinMagicBonus += plGain
	events := []Event{{Tag: TagMajinMagic, Effect: EffectPLGain, Amount: plGain}}

	kiGain := ctx.State.Pools.MaxKi() / 20
	if kiGain < 1 {
		kiGain = 1
	}
	before := ctx.State.Ki
	ctx.State.ApplyKiDelta(kiGain)
	if restored := ctx.State.Ki - before; restored > 0 {
		events = append(events, Event{Tag: TagMajinMagic, Effect: EffectKiGain, Amount: restored})
	}
	return events
}

// Flat ki price of the enhanced regeneration toggle, per turn.
const enhancedRegenKiCost = 5

// majinRegenHandler restores 10% of max health each turn below max, or 20%
// at a flat ki cost while the enhanced toggle is active.
type majinRegenHandler struct{}

func (majinRegenHandler) Tag() string { return TagMajinRegeneration }

func (majinRegenHandler) OnTurnEnd(ctx *TurnContext) []Event {
	maxHealth := ctx.State.Pools.MaxHealth()
	if ctx.State.Health >= maxHealth {
		return nil
	}

	percent := int64(10)
	var events []Event
	if ctx.Tags.Has(TagMajinRegenEnhanced) && ctx.State.SpendKi(enhancedRegenKiCost) {
		percent = 20
		events = append(events, Event{Tag: TagMajinRegenEnhanced, Effect: EffectKiDrain, Amount: enhancedRegenKiCost})
	}

	heal := maxHealth * percent / 100
	if heal < 1 {
		heal = 1
	}
	before := ctx.State.Health
	ctx.State.ApplyHealthDelta(heal)
	events = append(events, Event{Tag: TagMajinRegeneration, Effect: EffectHeal, Amount: ctx.State.Health - before})
	return events
}

// giantFormHandler drains ki every turn the Namekian giant form stays up.
type giantFormHandler struct{}

func (giantFormHandler) Tag() string { return TagNamekianGiantForm }

func (giantFormHandler) OnTurnEnd(ctx *TurnContext) []Event {
	drain := ctx.State.Pools.MaxKi() / 10
	if drain < 1 {
		drain = 1
	}
	ctx.State.ApplyKiDelta(-drain)
	return []Event{{Tag: TagNamekianGiantForm, Effect: EffectKiDrain, Amount: drain}}
}
