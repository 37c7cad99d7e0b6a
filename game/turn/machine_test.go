package turn_test

import (
	"context"
	"testing"

	"github.com/kurobane/sagabrawl/game/racial"
	"github.com/kurobane/sagabrawl/game/roster"
	"github.com/kurobane/sagabrawl/game/turn"
	"github.com/kurobane/sagabrawl/model"
	"github.com/kurobane/sagabrawl/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	roster  *roster.Service
	machine *turn.Machine
	chars   map[string]*model.Character
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	rs := roster.NewService(db, nil)
	m := turn.NewMachine(db, rs, racial.NewRegistry(), 5, 10, nil)
	return &fixture{db: db, roster: rs, machine: m, chars: make(map[string]*model.Character)}
}

func (f *fixture) char(t *testing.T, name, race string) *model.Character {
	t.Helper()
	if c, ok := f.chars[name]; ok {
		return c
	}
	c := &model.Character{
		AccountID: int64(len(f.chars) + 1),
		Name:      name, Race: race,
		Strength: 10, Defense: 10, Agility: 10, Endurance: 10, Control: 100,
		BasePL: 1000, ReleasePercent: 100,
	}
	require.NoError(t, f.roster.Create(context.Background(), c))
	f.chars[name] = c
	return c
}

func (f *fixture) participant(t *testing.T, name, race string, userID int64) model.Participant {
	c := f.char(t, name, race)
	return model.Participant{UserID: userID, DisplayName: name, CharacterName: name, CharacterID: c.ID}
}

func TestCreateNeedsTwoDistinct(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, a})
	assert.ErrorIs(t, err, turn.ErrTooFewParticipants)

	b := f.participant(t, "Frieza", model.RaceArcosian, 2)
	order, err := f.machine.Create(ctx, "arena", []model.Participant{a, b})
	require.NoError(t, err)
	assert.Equal(t, 1, order.CurrentRound)

	_, err = f.machine.Create(ctx, "arena", []model.Participant{a, b})
	assert.ErrorIs(t, err, turn.ErrOrderExists)
}

func TestJoinIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)
	b := f.participant(t, "Frieza", model.RaceArcosian, 2)
	c := f.participant(t, "Krillin", model.RaceHuman, 3)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, b})
	require.NoError(t, err)

	order, err := f.machine.Join(ctx, "arena", c)
	require.NoError(t, err)
	list, err := order.ParticipantList()
	require.NoError(t, err)
	assert.Len(t, list, 3)

	order, err = f.machine.Join(ctx, "arena", c)
	require.NoError(t, err)
	list, err = order.ParticipantList()
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestAdvanceRotatesAndWrapsRound(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)
	b := f.participant(t, "Frieza", model.RaceArcosian, 2)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, b})
	require.NoError(t, err)

	_, err = f.machine.Advance(ctx, "arena", 2)
	assert.ErrorIs(t, err, turn.ErrNotYourTurn)

	res, err := f.machine.Advance(ctx, "arena", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Next.UserID)
	assert.False(t, res.RoundWrapped)
	assert.Equal(t, 1, res.Round)

	res, err = f.machine.Advance(ctx, "arena", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Next.UserID)
	assert.True(t, res.RoundWrapped)
	assert.Equal(t, 2, res.Round)
}

func TestAdvanceRunsZenkaiGrowth(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)
	b := f.participant(t, "Frieza", model.RaceArcosian, 2)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, b})
	require.NoError(t, err)

	// Goku got hit by someone far above his effective PL.
	goku := f.chars["Goku"]
	cs, err := f.roster.EnsureCombatState(ctx, goku.ID, "arena")
	require.NoError(t, err)
	cs.LastHitPL = 5000
	require.NoError(t, f.roster.SaveCombatState(ctx, cs))

	res, err := f.machine.Advance(ctx, "arena", 1)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, racial.TagZenkai, res.Events[0].Tag)
	assert.Equal(t, racial.EffectZenkaiGrow, res.Events[0].Effect)
	assert.Equal(t, int64(50), res.Events[0].Amount) // 5% of base 1000

	cs, err = f.roster.EnsureCombatState(ctx, goku.ID, "arena")
	require.NoError(t, err)
	assert.Equal(t, 5.0, cs.ZenkaiPercent)
}

func TestAdvanceExtractsFormUpkeep(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)
	b := f.participant(t, "Frieza", model.RaceArcosian, 2)

	form := model.Form{FormKey: "ssj", Name: "Super Saiyan", PLMultiplier: 5, KiDrain: 2}
	require.NoError(t, f.db.Create(&form).Error)
	require.NoError(t, f.db.Create(&model.CharacterForm{
		CharacterID: a.CharacterID, FormID: form.ID, IsActive: true,
	}).Error)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, b})
	require.NoError(t, err)

	res, err := f.machine.Advance(ctx, "arena", 1)
	require.NoError(t, err)
	require.Len(t, res.Drains, 1)
	assert.Equal(t, int64(2), res.Drains[0].KiDrain)
	assert.False(t, res.Drains[0].Reverted)
	assert.Equal(t, int64(8), res.NewKi)
}

func TestUnpayableUpkeepDropsForm(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)
	b := f.participant(t, "Frieza", model.RaceArcosian, 2)

	form := model.Form{FormKey: "ssj3", Name: "Super Saiyan 3", PLMultiplier: 20, KiDrain: 50}
	require.NoError(t, f.db.Create(&form).Error)
	require.NoError(t, f.db.Create(&model.CharacterForm{
		CharacterID: a.CharacterID, FormID: form.ID, IsActive: true,
	}).Error)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, b})
	require.NoError(t, err)

	res, err := f.machine.Advance(ctx, "arena", 1)
	require.NoError(t, err)
	require.Len(t, res.Drains, 1)
	assert.True(t, res.Drains[0].Reverted)

	var join model.CharacterForm
	require.NoError(t, f.db.Where("character_id = ? AND form_id = ?", a.CharacterID, form.ID).First(&join).Error)
	assert.False(t, join.IsActive)
}

func TestAdvanceTicksTechniqueEffects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)
	b := f.participant(t, "Frieza", model.RaceArcosian, 2)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, b})
	require.NoError(t, err)

	require.NoError(t, f.db.Create(&model.TechniqueEffect{
		CharacterID: a.CharacterID, Channel: "arena", Name: "Power Strain", TurnsLeft: 2,
	}).Error)
	require.NoError(t, f.db.Create(&model.TechniqueEffect{
		CharacterID: a.CharacterID, Channel: "arena", Name: "Numbing Blow", TurnsLeft: 1,
	}).Error)

	_, err = f.machine.Advance(ctx, "arena", 1)
	require.NoError(t, err)

	var remaining []model.TechniqueEffect
	require.NoError(t, f.db.Where("character_id = ?", a.CharacterID).Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Power Strain", remaining[0].Name)
	assert.Equal(t, 1, remaining[0].TurnsLeft)
}

func TestLeaveClampsPointerAndTearsDown(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)
	b := f.participant(t, "Frieza", model.RaceArcosian, 2)
	c := f.participant(t, "Krillin", model.RaceHuman, 3)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, b, c})
	require.NoError(t, err)

	// Move the pointer to Frieza, then remove Goku; Frieza keeps the turn.
	_, err = f.machine.Advance(ctx, "arena", 1)
	require.NoError(t, err)
	order, err := f.machine.Leave(ctx, "arena", 1)
	require.NoError(t, err)
	cur, _, err := f.machine.Current(ctx, "arena")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cur.UserID)
	assert.Equal(t, 0, order.CurrentTurn)

	// Dropping to one fighter tears the combat down.
	order, err = f.machine.Leave(ctx, "arena", 2)
	require.NoError(t, err)
	assert.Nil(t, order)
	_, err = f.machine.Get(ctx, "arena")
	assert.ErrorIs(t, err, turn.ErrOrderNotFound)
}

func TestLeaveRejectsOutsider(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)
	b := f.participant(t, "Frieza", model.RaceArcosian, 2)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, b})
	require.NoError(t, err)

	_, err = f.machine.Leave(ctx, "arena", 99)
	assert.ErrorIs(t, err, turn.ErrNotParticipant)
}

func TestEndClearsChannelState(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)
	b := f.participant(t, "Frieza", model.RaceArcosian, 2)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, b})
	require.NoError(t, err)
	_, err = f.roster.EnsureCombatState(ctx, a.CharacterID, "arena")
	require.NoError(t, err)

	require.NoError(t, f.machine.End(ctx, "arena"))
	assert.ErrorIs(t, f.machine.End(ctx, "arena"), turn.ErrOrderNotFound)

	var count int64
	require.NoError(t, f.db.Model(&model.CombatState{}).Where("channel = ?", "arena").Count(&count).Error)
	assert.Zero(t, count)
}

func TestTransferMovesCombat(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)
	b := f.participant(t, "Frieza", model.RaceArcosian, 2)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, b})
	require.NoError(t, err)
	_, err = f.roster.EnsureCombatState(ctx, a.CharacterID, "arena")
	require.NoError(t, err)

	require.NoError(t, f.machine.Transfer(ctx, "arena", "wasteland"))
	_, err = f.machine.Get(ctx, "arena")
	assert.ErrorIs(t, err, turn.ErrOrderNotFound)
	order, err := f.machine.Get(ctx, "wasteland")
	require.NoError(t, err)
	assert.Equal(t, "wasteland", order.Channel)

	var count int64
	require.NoError(t, f.db.Model(&model.CombatState{}).Where("channel = ?", "wasteland").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestTransferRejectsOccupiedDestination(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.participant(t, "Goku", model.RaceSaiyan, 1)
	b := f.participant(t, "Frieza", model.RaceArcosian, 2)
	c := f.participant(t, "Krillin", model.RaceHuman, 3)
	d := f.participant(t, "Tien", model.RaceHuman, 4)

	_, err := f.machine.Create(ctx, "arena", []model.Participant{a, b})
	require.NoError(t, err)
	_, err = f.machine.Create(ctx, "wasteland", []model.Participant{c, d})
	require.NoError(t, err)

	assert.ErrorIs(t, f.machine.Transfer(ctx, "arena", "wasteland"), turn.ErrChannelOccupied)
}
