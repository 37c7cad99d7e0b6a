package turn

import (
	"context"
	"errors"
	"math"

	"github.com/kurobane/sagabrawl/game/racial"
	"github.com/kurobane/sagabrawl/game/roster"
	"github.com/kurobane/sagabrawl/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrOrderExists rejects creating a turn order where one is running.
	ErrOrderExists = errors.New("turn: combat already running in channel")
	// ErrOrderNotFound is surfaced for channels with no running combat.
	ErrOrderNotFound = errors.New("turn: no combat in channel")
	// ErrTooFewParticipants rejects creating combat with fewer than two
	// distinct fighters.
	ErrTooFewParticipants = errors.New("turn: need at least two distinct participants")
	// ErrNotParticipant rejects actions from users outside the order.
	ErrNotParticipant = errors.New("turn: user is not a participant")
	// ErrNotYourTurn rejects ending a turn that is not the caller's.
	ErrNotYourTurn = errors.New("turn: not your turn")
	// ErrChannelOccupied rejects transferring combat onto a channel that
	// already hosts one.
	ErrChannelOccupied = errors.New("turn: destination channel already has combat")
)

// Machine owns the per-channel turn order: creation, membership, the
// end-of-turn pass and the round counter.
type Machine struct {
	db       *gorm.DB
	roster   *roster.Service
	registry *racial.Registry
	logger   *zap.Logger

	// Zenkai tuning fed into the racial pass.
	growthPercent      float64
	desperationPercent float64
}

// NewMachine creates a turn machine.
func NewMachine(db *gorm.DB, rs *roster.Service, reg *racial.Registry, growthPercent, desperationPercent float64, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		db:                 db,
		roster:             rs,
		registry:           reg,
		logger:             logger,
		growthPercent:      growthPercent,
		desperationPercent: desperationPercent,
	}
}

// Create starts combat in a channel. Duplicate user IDs collapse to one
// entry; fewer than two distinct fighters is an error.
func (m *Machine) Create(ctx context.Context, channel string, participants []model.Participant) (*model.TurnOrder, error) {
	seen := make(map[int64]bool, len(participants))
	distinct := make([]model.Participant, 0, len(participants))
	for _, p := range participants {
		if seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		distinct = append(distinct, p)
	}
	if len(distinct) < 2 {
		return nil, ErrTooFewParticipants
	}

	order := &model.TurnOrder{Channel: channel, CurrentTurn: 0, CurrentRound: 1}
	if err := order.SetParticipants(distinct); err != nil {
		return nil, err
	}
	err := m.db.WithContext(ctx).Create(order).Error
	if err != nil {
		var existing model.TurnOrder
		if m.db.WithContext(ctx).Where("channel = ?", channel).First(&existing).Error == nil {
			return nil, ErrOrderExists
		}
		return nil, err
	}
	return order, nil
}

// Get fetches the channel's turn order.
func (m *Machine) Get(ctx context.Context, channel string) (*model.TurnOrder, error) {
	var order model.TurnOrder
	err := m.db.WithContext(ctx).Where("channel = ?", channel).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Current returns the participant whose turn it is.
func (m *Machine) Current(ctx context.Context, channel string) (*model.Participant, *model.TurnOrder, error) {
	order, err := m.Get(ctx, channel)
	if err != nil {
		return nil, nil, err
	}
	list, err := order.ParticipantList()
	if err != nil {
		return nil, nil, err
	}
	if len(list) == 0 {
		return nil, nil, ErrOrderNotFound
	}
	idx := order.CurrentTurn % len(list)
	return &list[idx], order, nil
}

// Join appends a fighter to a running order. Joining twice is a no-op.
func (m *Machine) Join(ctx context.Context, channel string, p model.Participant) (*model.TurnOrder, error) {
	order, err := m.Get(ctx, channel)
	if err != nil {
		return nil, err
	}
	list, err := order.ParticipantList()
	if err != nil {
		return nil, err
	}
	for _, existing := range list {
		if existing.UserID == p.UserID {
			return order, nil
		}
	}
	list = append(list, p)
	if err := order.SetParticipants(list); err != nil {
		return nil, err
	}
	err = m.db.WithContext(ctx).Model(order).Update("participants", order.Participants).Error
	return order, err
}

// Leave removes a fighter. If fewer than two remain the combat tears down
// entirely, clearing all channel combat state. Removing someone before the
// current pointer shifts the pointer back so the turn does not skip.
func (m *Machine) Leave(ctx context.Context, channel string, userID int64) (*model.TurnOrder, error) {
	order, err := m.Get(ctx, channel)
	if err != nil {
		return nil, err
	}
	list, err := order.ParticipantList()
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, p := range list {
		if p.UserID == userID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrNotParticipant
	}

	list = append(list[:idx], list[idx+1:]...)
	if len(list) < 2 {
		if err := m.End(ctx, channel); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if idx < order.CurrentTurn {
		order.CurrentTurn--
	}
	if order.CurrentTurn >= len(list) {
		order.CurrentTurn = 0
		order.CurrentRound++
	}
	if err := order.SetParticipants(list); err != nil {
		return nil, err
	}
	err = m.db.WithContext(ctx).Model(order).Updates(map[string]interface{}{
		"participants":  order.Participants,
		"current_turn":  order.CurrentTurn,
		"current_round": order.CurrentRound,
	}).Error
	return order, err
}

// DrainEvent reports one active form's upkeep extraction during the
// end-of-turn pass.
type DrainEvent struct {
	FormKey     string `json:"form_key"`
	KiDrain     int64  `json:"ki_drain"`
	HealthDrain int64  `json:"health_drain"`
	Reverted    bool   `json:"reverted"` // upkeep unpayable, form dropped
}

// AdvanceResult reports a completed end-of-turn pass.
type AdvanceResult struct {
	Ended        model.Participant `json:"ended"`
	Next         model.Participant `json:"next"`
	Round        int               `json:"round"`
	RoundWrapped bool              `json:"round_wrapped"`
	Events       []racial.Event    `json:"events,omitempty"`
	Drains       []DrainEvent      `json:"drains,omitempty"`
	NewHealth    int64             `json:"new_health"`
	NewKi        int64             `json:"new_ki"`
}

// Advance ends the current turn: runs the ending character's racial pass,
// extracts form upkeep, ticks down technique effects, persists everything,
// then moves the pointer. userID must match the fighter whose turn it is;
// pass 0 to skip the check (administrative advance).
func (m *Machine) Advance(ctx context.Context, channel string, userID int64) (*AdvanceResult, error) {
	cur, order, err := m.Current(ctx, channel)
	if err != nil {
		return nil, err
	}
	if userID != 0 && cur.UserID != userID {
		return nil, ErrNotYourTurn
	}

	res := &AdvanceResult{Ended: *cur}

	char, err := m.roster.ByID(ctx, cur.CharacterID)
	if err != nil {
		return nil, err
	}
	profile, err := m.roster.Profile(ctx, char)
	if err != nil {
		return nil, err
	}
	cs, err := m.roster.EnsureCombatState(ctx, char.ID, channel)
	if err != nil {
		return nil, err
	}

	tctx := &racial.TurnContext{
		Tags:               profile.Tags,
		State:              profile.State,
		BasePL:             char.BasePL,
		EffectivePL:        profile.EffectivePL(cs),
		LastHitPL:          cs.LastHitPL,
		ZenkaiPercent:      cs.ZenkaiPercent,
		MajinMagicBonus:    cs.MajinMagicBonus,
		GrowthPercent:      m.growthPercent,
		DesperationPercent: m.desperationPercent,
	}
	res.Events = m.registry.RunTurnEnd(tctx)
	cs.ZenkaiPercent = tctx.ZenkaiPercent
	cs.MajinMagicBonus = tctx.MajinMagicBonus

	drains, err := m.applyFormDrains(ctx, profile)
	if err != nil {
		return nil, err
	}
	res.Drains = drains

	if err := m.tickTechniqueEffects(ctx, char.ID, channel); err != nil {
		return nil, err
	}

	if err := m.roster.SaveResources(ctx, char.ID, profile.State.Health, profile.State.Ki); err != nil {
		return nil, err
	}
	if err := m.roster.SaveCombatState(ctx, cs); err != nil {
		return nil, err
	}
	res.NewHealth = profile.State.Health
	res.NewKi = profile.State.Ki

	list, err := order.ParticipantList()
	if err != nil {
		return nil, err
	}
	order.CurrentTurn++
	if order.CurrentTurn >= len(list) {
		order.CurrentTurn = 0
		order.CurrentRound++
		res.RoundWrapped = true
	}
	if err := m.db.WithContext(ctx).Model(order).Updates(map[string]interface{}{
		"current_turn":  order.CurrentTurn,
		"current_round": order.CurrentRound,
	}).Error; err != nil {
		return nil, err
	}
	res.Next = list[order.CurrentTurn]
	res.Round = order.CurrentRound
	return res, nil
}

// applyFormDrains extracts each active form's per-turn upkeep from the
// profile's state. A form whose ki upkeep cannot be paid drops.
func (m *Machine) applyFormDrains(ctx context.Context, profile *roster.CombatProfile) ([]DrainEvent, error) {
	var drains []DrainEvent
	for _, f := range profile.ActiveForms {
		if f.KiDrain == 0 && f.HealthDrain == 0 {
			continue
		}
		ev := DrainEvent{FormKey: f.FormKey}
		ev.KiDrain = drainAmount(f.KiDrain, f.DrainIsPercent, profile.Pools.MaxKi())
		ev.HealthDrain = drainAmount(f.HealthDrain, f.DrainIsPercent, profile.Pools.MaxHealth())

		if ev.KiDrain > 0 && !profile.State.SpendKi(ev.KiDrain) {
			if err := m.roster.Revert(ctx, profile.Character, f.FormKey); err != nil {
				return drains, err
			}
			ev.KiDrain = 0
			ev.Reverted = true
			drains = append(drains, ev)
			continue
		}
		if ev.KiDrain < 0 {
			profile.State.ApplyKiDelta(-ev.KiDrain)
		}
		if ev.HealthDrain != 0 {
			profile.State.ApplyHealthDelta(-ev.HealthDrain)
		}
		drains = append(drains, ev)
	}
	return drains, nil
}

// tickTechniqueEffects decrements the ending character's timed effects and
// removes the expired ones.
func (m *Machine) tickTechniqueEffects(ctx context.Context, charID int64, channel string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.TechniqueEffect{}).
			Where("character_id = ? AND channel = ?", charID, channel).
			Update("turns_left", gorm.Expr("turns_left - 1")).Error; err != nil {
			return err
		}
		return tx.Where("character_id = ? AND channel = ? AND turns_left <= ?", charID, channel, 0).
			Delete(&model.TechniqueEffect{}).Error
	})
}

// End tears down combat in a channel: the turn order, every combat state and
// every technique effect go away together.
func (m *Machine) End(ctx context.Context, channel string) error {
	res := m.db.WithContext(ctx).Where("channel = ?", channel).Delete(&model.TurnOrder{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return m.roster.ClearChannelState(ctx, channel)
}

// Transfer moves a running combat to another channel, carrying the turn
// order, combat state, technique effects and pending attacks with it. The
// destination must not already host combat.
func (m *Machine) Transfer(ctx context.Context, from, to string) error {
	if _, err := m.Get(ctx, from); err != nil {
		return err
	}
	if _, err := m.Get(ctx, to); err == nil {
		return ErrChannelOccupied
	} else if !errors.Is(err, ErrOrderNotFound) {
		return err
	}

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, mdl := range []interface{}{
			&model.TurnOrder{}, &model.CombatState{}, &model.TechniqueEffect{}, &model.PendingAttack{},
		} {
			if err := tx.Model(mdl).Where("channel = ?", from).
				Update("channel", to).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// drainAmount resolves a flat-or-percent upkeep value against a maximum.
// Positive results floor at 1 so percentage upkeep never rounds to free.
func drainAmount(drain float64, isPercent bool, max int64) int64 {
	if drain == 0 {
		return 0
	}
	raw := drain
	if isPercent {
		raw = float64(max) * drain / 100
	}
	amt := int64(math.Floor(math.Abs(raw)))
	if amt < 1 {
		amt = 1
	}
	if drain < 0 {
		return -amt
	}
	return amt
}
