package roster

import (
	"context"
	"errors"
	"math"

	"github.com/kurobane/sagabrawl/game/pool"
	"github.com/kurobane/sagabrawl/game/power"
	"github.com/kurobane/sagabrawl/game/racial"
	"github.com/kurobane/sagabrawl/game/stats"
	"github.com/kurobane/sagabrawl/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrCharacterNotFound is surfaced when an owner has no character or a
	// name lookup misses.
	ErrCharacterNotFound = errors.New("roster: character not found")
	// ErrFormNotKnown rejects a transform into a form the character has not
	// learned.
	ErrFormNotKnown = errors.New("roster: form not known to character")
	// ErrFormAlreadyActive rejects re-activating an active form.
	ErrFormAlreadyActive = errors.New("roster: form already active")
	// ErrFormNotActive rejects reverting a form that is not up.
	ErrFormNotActive = errors.New("roster: form not active")
	// ErrFormConflict enforces the single active non-stackable form rule.
	ErrFormConflict = errors.New("roster: another non-stackable form is active")
	// ErrInsufficientKi rejects a transform whose ki price exceeds the pool.
	ErrInsufficientKi = errors.New("roster: insufficient ki for transformation")
	// ErrNotToggleable rejects toggling a tag that is not a toggleable
	// racial sub-state.
	ErrNotToggleable = errors.New("roster: racial tag is not toggleable")
	// ErrMissingBaseRacial rejects toggling a sub-state whose base racial
	// the character lacks.
	ErrMissingBaseRacial = errors.New("roster: base racial ability missing")
)

// Service is the character lookup and progression boundary: it loads
// characters with their form and racial joins and owns the transform,
// release and racial-toggle operations.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a roster Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger}
}

// Create registers a new character and grants its race's default abilities.
func (s *Service) Create(ctx context.Context, char *model.Character) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(char).Error; err != nil {
			return err
		}
		for _, tag := range racial.DefaultTags(char.Race) {
			ab := model.RacialAbility{CharacterID: char.ID, Tag: tag, IsActive: true}
			if err := tx.Create(&ab).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ByOwner fetches the owner's character.
func (s *Service) ByOwner(ctx context.Context, accountID int64) (*model.Character, error) {
	var char model.Character
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id").First(&char).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCharacterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &char, nil
}

// ByName fetches a character by display name.
func (s *Service) ByName(ctx context.Context, name string) (*model.Character, error) {
	var char model.Character
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&char).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCharacterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &char, nil
}

// ByID fetches a character by primary key.
func (s *Service) ByID(ctx context.Context, id int64) (*model.Character, error) {
	var char model.Character
	err := s.db.WithContext(ctx).First(&char, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCharacterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &char, nil
}

// activeForms returns the forms currently active on a character.
func (s *Service) activeForms(ctx context.Context, charID int64) ([]model.Form, error) {
	var joins []model.CharacterForm
	if err := s.db.WithContext(ctx).
		Where("character_id = ? AND is_active = ?", charID, true).
		Find(&joins).Error; err != nil {
		return nil, err
	}
	if len(joins) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(joins))
	for i, j := range joins {
		ids[i] = j.FormID
	}
	var forms []model.Form
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&forms).Error; err != nil {
		return nil, err
	}
	return forms, nil
}

// abilities returns all racial ability rows for a character.
func (s *Service) abilities(ctx context.Context, charID int64) ([]model.RacialAbility, error) {
	var rows []model.RacialAbility
	err := s.db.WithContext(ctx).Where("character_id = ?", charID).Find(&rows).Error
	return rows, err
}

// CombatProfile is the fully resolved combat view of a character: post-form
// stats, derived pools, current resources and racial tags.
type CombatProfile struct {
	Character   *model.Character
	Stats       stats.Block
	FormMult    float64
	ActiveForms []model.Form
	Tags        racial.TagSet
	Pools       pool.Pools
	State       *pool.State
}

// Profile builds the combat profile for a character: applies every active
// form's stat modifiers, folds the PL multipliers, and resolves the nullable
// current resources against the derived maxima.
func (s *Service) Profile(ctx context.Context, char *model.Character) (*CombatProfile, error) {
	forms, err := s.activeForms(ctx, char.ID)
	if err != nil {
		return nil, err
	}
	abilities, err := s.abilities(ctx, char.ID)
	if err != nil {
		return nil, err
	}

	block := stats.Block{
		Strength:  char.Strength,
		Defense:   char.Defense,
		Agility:   char.Agility,
		Endurance: char.Endurance,
		Control:   char.Control,
	}
	formMult := 1.0
	for _, f := range forms {
		ms, err := stats.ParseModSet(f.StrengthMod, f.DefenseMod, f.AgilityMod, f.EnduranceMod, f.ControlMod)
		if err != nil {
			s.logger.Warn("form carries malformed modifier, skipping stat pass",
				zap.String("form_key", f.FormKey), zap.Error(err))
			continue
		}
		block = ms.Apply(block)
		if f.PLMultiplier > 0 {
			formMult *= f.PLMultiplier
		}
	}

	tags := racial.NewTagSet(abilities)
	pools := pool.Pools{
		BasePL:         char.BasePL,
		FormMultiplier: formMult,
		Endurance:      block.Endurance,
		HumanSpirit:    tags.Has(racial.TagHumanSpirit),
	}

	st := &pool.State{Pools: pools}
	if char.CurrentHealth != nil {
		st.Health = *char.CurrentHealth
	} else {
		st.Health = pools.MaxHealth()
	}
	if char.CurrentKi != nil {
		st.Ki = *char.CurrentKi
	} else {
		st.Ki = pools.MaxKi()
	}

	return &CombatProfile{
		Character:   char,
		Stats:       block,
		FormMult:    formMult,
		ActiveForms: forms,
		Tags:        tags,
		Pools:       pools,
		State:       st,
	}, nil
}

// EffectivePL folds the profile and per-channel combat bonuses into the
// comparable strength value.
func (p *CombatProfile) EffectivePL(cs *model.CombatState) int64 {
	in := power.Input{
		BasePL:         p.Character.BasePL,
		KiPercent:      p.Pools.KiPercent(p.State.Ki),
		FormMultiplier: p.FormMult,
		HalveKiDebuff:  p.Tags.Has(racial.TagArcosianResilience),
		ReleasePercent: p.Character.ReleasePercent,
	}
	if cs != nil {
		in.ZenkaiPercent = cs.ZenkaiPercent
		in.MajinMagicBonus = cs.MajinMagicBonus
	}
	return power.Effective(in)
}

// SaveResources persists the character's current health and ki.
func (s *Service) SaveResources(ctx context.Context, charID int64, health, ki int64) error {
	return s.db.WithContext(ctx).Model(&model.Character{}).Where("id = ?", charID).
		Updates(map[string]interface{}{"current_health": health, "current_ki": ki}).Error
}

// SetRelease updates the release percentage. Values above 100 are legal
// (overextension); negative input clamps to 0 (full suppression).
func (s *Service) SetRelease(ctx context.Context, charID int64, percent float64) error {
	if percent < 0 {
		percent = 0
	}
	return s.db.WithContext(ctx).Model(&model.Character{}).Where("id = ?", charID).
		Update("release_percent", percent).Error
}

// TransformResult reports a completed form activation.
type TransformResult struct {
	Form        model.Form `json:"form"`
	KiSpent     int64      `json:"ki_spent"`
	HealthSpent int64      `json:"health_spent"`
	NewHealth   int64      `json:"new_health"`
	NewKi       int64      `json:"new_ki"`
}

// Transform activates a form the character knows. Non-stackable forms refuse
// to coexist with another active non-stackable form. Activation costs
// resolve against the pre-activation maxima; an unpayable ki price rejects
// the transform without touching state.
func (s *Service) Transform(ctx context.Context, char *model.Character, formKey string) (*TransformResult, error) {
	var form model.Form
	err := s.db.WithContext(ctx).Where("form_key = ?", formKey).First(&form).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFormNotKnown
	}
	if err != nil {
		return nil, err
	}

	var join model.CharacterForm
	err = s.db.WithContext(ctx).
		Where("character_id = ? AND form_id = ?", char.ID, form.ID).
		First(&join).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFormNotKnown
	}
	if err != nil {
		return nil, err
	}
	if join.IsActive {
		return nil, ErrFormAlreadyActive
	}

	if !form.Stackable {
		active, err := s.activeForms(ctx, char.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range active {
			if !f.Stackable {
				return nil, ErrFormConflict
			}
		}
	}

	profile, err := s.Profile(ctx, char)
	if err != nil {
		return nil, err
	}

	kiCost := costAmount(form.KiCost, form.KiCostIsPercent, profile.Pools.MaxKi())
	healthCost := costAmount(form.HealthCost, form.HealthCostIsPercent, profile.Pools.MaxHealth())
	if kiCost > profile.State.Ki {
		return nil, ErrInsufficientKi
	}

	profile.State.SpendKi(kiCost)
	profile.State.ApplyHealthDelta(-healthCost)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.CharacterForm{}).Where("id = ?", join.ID).
			Update("is_active", true).Error; err != nil {
			return err
		}
		return tx.Model(&model.Character{}).Where("id = ?", char.ID).
			Updates(map[string]interface{}{
				"current_health": profile.State.Health,
				"current_ki":     profile.State.Ki,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return &TransformResult{
		Form:        form,
		KiSpent:     kiCost,
		HealthSpent: healthCost,
		NewHealth:   profile.State.Health,
		NewKi:       profile.State.Ki,
	}, nil
}

// Revert deactivates an active form. Reverting is free; upkeep already
// extracted its price.
func (s *Service) Revert(ctx context.Context, char *model.Character, formKey string) error {
	var form model.Form
	err := s.db.WithContext(ctx).Where("form_key = ?", formKey).First(&form).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFormNotKnown
	}
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&model.CharacterForm{}).
		Where("character_id = ? AND form_id = ? AND is_active = ?", char.ID, form.ID, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFormNotActive
	}
	return nil
}

// ToggleRacial flips a toggleable racial sub-state, creating the row on
// first activation. The base racial must already be present and active.
func (s *Service) ToggleRacial(ctx context.Context, char *model.Character, tag string, active bool) error {
	parent, ok := racial.ToggleParent(tag)
	if !ok {
		return ErrNotToggleable
	}
	var base model.RacialAbility
	err := s.db.WithContext(ctx).
		Where("character_id = ? AND tag = ? AND is_active = ?", char.ID, parent, true).
		First(&base).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMissingBaseRacial
	}
	if err != nil {
		return err
	}

	var row model.RacialAbility
	err = s.db.WithContext(ctx).Where("character_id = ? AND tag = ?", char.ID, tag).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = model.RacialAbility{CharacterID: char.ID, Tag: tag, IsActive: active}
		return s.db.WithContext(ctx).Create(&row).Error
	case err != nil:
		return err
	default:
		return s.db.WithContext(ctx).Model(&model.RacialAbility{}).
			Where("id = ?", row.ID).Update("is_active", active).Error
	}
}

// EnsureCombatState lazily creates the per-(character, channel) combat state.
func (s *Service) EnsureCombatState(ctx context.Context, charID int64, channel string) (*model.CombatState, error) {
	var cs model.CombatState
	err := s.db.WithContext(ctx).
		Where(model.CombatState{CharacterID: charID, Channel: channel}).
		FirstOrCreate(&cs).Error
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

// SaveCombatState persists the mutable combat-state fields.
func (s *Service) SaveCombatState(ctx context.Context, cs *model.CombatState) error {
	return s.db.WithContext(ctx).Model(&model.CombatState{}).Where("id = ?", cs.ID).
		Updates(map[string]interface{}{
			"zenkai_percent":    cs.ZenkaiPercent,
			"majin_magic_bonus": cs.MajinMagicBonus,
			"last_hit_pl":       cs.LastHitPL,
		}).Error
}

// ClearChannelState removes combat state and technique effects for every
// character in a channel. Called when combat there ends.
func (s *Service) ClearChannelState(ctx context.Context, channel string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel = ?", channel).Delete(&model.CombatState{}).Error; err != nil {
			return err
		}
		return tx.Where("channel = ?", channel).Delete(&model.TechniqueEffect{}).Error
	})
}

// costAmount resolves a flat-or-percentage cost against a maximum.
func costAmount(cost float64, isPercent bool, max int64) int64 {
	if cost <= 0 {
		return 0
	}
	if isPercent {
		return int64(math.Floor(float64(max) * cost / 100))
	}
	return int64(math.Floor(cost))
}
