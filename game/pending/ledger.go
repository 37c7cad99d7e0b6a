package pending

import (
	"context"
	"errors"
	"time"

	"github.com/kurobane/sagabrawl/game/roster"
	"github.com/kurobane/sagabrawl/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNoPendingAttack is returned when a resolve targets a row that no longer
// exists: it already resolved, expired, or was replaced by a newer attack.
var ErrNoPendingAttack = errors.New("pending: no pending attack")

// DefaultTTL is the window a defender has to respond before the attack
// resolves as undefended.
const DefaultTTL = 5 * time.Minute

// Ledger stores attacks awaiting a defensive response. One live row per
// (channel, attacker, target): putting a new attack for the same triple
// replaces the old one.
type Ledger struct {
	db     *gorm.DB
	roster *roster.Service
	ttl    time.Duration
	logger *zap.Logger

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewLedger creates a pending-attack ledger. A non-positive ttl falls back
// to DefaultTTL.
func NewLedger(db *gorm.DB, rs *roster.Service, ttl time.Duration, logger *zap.Logger) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{db: db, roster: rs, ttl: ttl, logger: logger, now: time.Now}
}

// SetNowFunc overrides the ledger clock. Test hook.
func (l *Ledger) SetNowFunc(now func() time.Time) { l.now = now }

// Put records a pending attack, replacing any prior attack from the same
// attacker against the same target in the channel.
func (l *Ledger) Put(ctx context.Context, pa *model.PendingAttack) error {
	pa.ExpiresAt = l.now().Add(l.ttl)
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel = ? AND attacker_user_id = ? AND target_user_id = ?",
			pa.Channel, pa.AttackerUserID, pa.TargetUserID).
			Delete(&model.PendingAttack{}).Error; err != nil {
			return err
		}
		return tx.Create(pa).Error
	})
}

// Get fetches the live pending attack for a triple. Expired rows are
// invisible here; only the sweep touches them.
func (l *Ledger) Get(ctx context.Context, channel string, attackerUserID, targetUserID int64) (*model.PendingAttack, error) {
	var pa model.PendingAttack
	err := l.db.WithContext(ctx).
		Where("channel = ? AND attacker_user_id = ? AND target_user_id = ? AND expires_at > ?",
			channel, attackerUserID, targetUserID, l.now()).
		First(&pa).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoPendingAttack
	}
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

// Incoming lists live attacks awaiting the target's response in a channel.
func (l *Ledger) Incoming(ctx context.Context, channel string, targetUserID int64) ([]model.PendingAttack, error) {
	var rows []model.PendingAttack
	err := l.db.WithContext(ctx).
		Where("channel = ? AND target_user_id = ? AND expires_at > ?", channel, targetUserID, l.now()).
		Order("created_at").
		Find(&rows).Error
	return rows, err
}

// Resolve consumes a pending attack by ID. Exactly one responder wins; a
// second resolve of the same row gets ErrNoPendingAttack.
func (l *Ledger) Resolve(ctx context.Context, id int64) error {
	res := l.db.WithContext(ctx).Delete(&model.PendingAttack{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoPendingAttack
	}
	return nil
}

// SweepResult reports one expired attack landing undefended.
type SweepResult struct {
	Attack    model.PendingAttack `json:"attack"`
	NewHealth int64               `json:"new_health"`
	NewKi     int64               `json:"new_ki"`
	Defeated  bool                `json:"defeated"`
}

// Sweep resolves every expired attack in a channel as full, undefended
// damage against the stored target. An empty channel sweeps everything.
// Each row is claimed by deletion before any damage lands, so a defender
// racing the sweep resolves the attack exactly once: whoever deletes the
// row first is the only one whose outcome applies.
func (l *Ledger) Sweep(ctx context.Context, channel string) ([]SweepResult, error) {
	q := l.db.WithContext(ctx).Where("expires_at <= ?", l.now())
	if channel != "" {
		q = q.Where("channel = ?", channel)
	}
	var expired []model.PendingAttack
	if err := q.Order("created_at").Find(&expired).Error; err != nil {
		return nil, err
	}

	results := make([]SweepResult, 0, len(expired))
	for _, pa := range expired {
		claim := l.db.WithContext(ctx).Delete(&model.PendingAttack{}, pa.ID)
		if claim.Error != nil {
			return results, claim.Error
		}
		if claim.RowsAffected == 0 {
			// A defender resolved it between the scan and the claim.
			continue
		}
		res, err := l.land(ctx, pa)
		if err != nil {
			l.logger.Error("failed to land expired attack",
				zap.Int64("attack_id", pa.ID),
				zap.Int64("target_char_id", pa.TargetCharID),
				zap.Error(err))
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// land applies an expired attack's full damage to the target and re-clamps
// ki against the shrunken cap.
func (l *Ledger) land(ctx context.Context, pa model.PendingAttack) (*SweepResult, error) {
	char, err := l.roster.ByID(ctx, pa.TargetCharID)
	if err != nil {
		return nil, err
	}
	profile, err := l.roster.Profile(ctx, char)
	if err != nil {
		return nil, err
	}

	st := profile.State
	st.ApplyHealthDelta(-pa.Damage)
	if err := l.roster.SaveResources(ctx, char.ID, st.Health, st.Ki); err != nil {
		return nil, err
	}
	return &SweepResult{
		Attack:    pa,
		NewHealth: st.Health,
		NewKi:     st.Ki,
		Defeated:  st.Defeated(),
	}, nil
}
