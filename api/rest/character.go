package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kurobane/sagabrawl/game/racial"
	"github.com/kurobane/sagabrawl/game/roster"
	mw "github.com/kurobane/sagabrawl/middleware"
	"github.com/kurobane/sagabrawl/model"
	"gorm.io/gorm"
)

var validRaces = map[string]bool{
	model.RaceHuman:    true,
	model.RaceSaiyan:   true,
	model.RaceNamekian: true,
	model.RaceArcosian: true,
	model.RaceMajin:    true,
	model.RaceAndroid:  true,
}

// CharacterHandler handles character sheet and progression endpoints.
type CharacterHandler struct {
	db     *gorm.DB
	roster *roster.Service
}

// NewCharacterHandler creates a CharacterHandler.
func NewCharacterHandler(db *gorm.DB, rs *roster.Service) *CharacterHandler {
	return &CharacterHandler{db: db, roster: rs}
}

type createCharacterRequest struct {
	Name      string `json:"name" binding:"required,min=2,max=32"`
	Race      string `json:"race" binding:"required"`
	Strength  int    `json:"strength" binding:"required,min=1"`
	Defense   int    `json:"defense" binding:"required,min=1"`
	Agility   int    `json:"agility" binding:"required,min=1"`
	Endurance int    `json:"endurance" binding:"required,min=1"`
	Control   int    `json:"control" binding:"required,min=1"`
	BasePL    int64  `json:"base_pl" binding:"required,min=1"`
}

// Create handles POST /api/characters.
func (h *CharacterHandler) Create(c *gin.Context) {
	var req createCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validRaces[req.Race] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown race"})
		return
	}

	char := &model.Character{
		AccountID: mw.GetAccountID(c),
		Name:      req.Name,
		Race:      req.Race,
		Strength:  req.Strength,
		Defense:   req.Defense,
		Agility:   req.Agility,
		Endurance: req.Endurance,
		Control:   req.Control,
		BasePL:    req.BasePL,
		// Fights start at full release unless the player suppresses.
		ReleasePercent: 100,
	}
	if err := h.roster.Create(c.Request.Context(), char); err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "character name taken"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "creation failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"character": char})
}

// Sheet handles GET /api/characters/me?channel=<channel>.
// Returns the full combat profile: post-form stats, pools, current resources
// and the effective power level (channel bonuses included when given).
func (h *CharacterHandler) Sheet(c *gin.Context) {
	char, ok := ownCharacter(c, h.roster)
	if !ok {
		return
	}
	profile, err := h.roster.Profile(c.Request.Context(), char)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile failed"})
		return
	}

	var cs *model.CombatState
	if channel := c.Query("channel"); channel != "" {
		cs, err = h.roster.EnsureCombatState(c.Request.Context(), char.ID, channel)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "combat state failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"character":    char,
		"stats":        profile.Stats,
		"active_forms": profile.ActiveForms,
		"max_health":   profile.Pools.MaxHealth(),
		"max_ki":       profile.Pools.MaxKi(),
		"health":       profile.State.Health,
		"ki":           profile.State.Ki,
		"effective_pl": profile.EffectivePL(cs),
	})
}

type releaseRequest struct {
	Percent float64 `json:"percent"`
}

// Release handles POST /api/characters/me/release.
// Percent may exceed 100 (overexertion) or drop to 0 (full suppression).
func (h *CharacterHandler) Release(c *gin.Context) {
	char, ok := ownCharacter(c, h.roster)
	if !ok {
		return
	}
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.roster.SetRelease(c.Request.Context(), char.ID, req.Percent); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type transformRequest struct {
	FormKey string `json:"form_key" binding:"required"`
}

// Transform handles POST /api/characters/me/transform.
func (h *CharacterHandler) Transform(c *gin.Context) {
	char, ok := ownCharacter(c, h.roster)
	if !ok {
		return
	}
	var req transformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.roster.Transform(c.Request.Context(), char, req.FormKey)
	switch {
	case errors.Is(err, roster.ErrFormNotKnown):
		c.JSON(http.StatusNotFound, gin.H{"error": "form not known"})
	case errors.Is(err, roster.ErrFormAlreadyActive):
		c.JSON(http.StatusConflict, gin.H{"error": "form already active"})
	case errors.Is(err, roster.ErrFormConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "another form is active"})
	case errors.Is(err, roster.ErrInsufficientKi):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "not enough ki"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transform failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"result": res})
	}
}

// Revert handles POST /api/characters/me/revert.
func (h *CharacterHandler) Revert(c *gin.Context) {
	char, ok := ownCharacter(c, h.roster)
	if !ok {
		return
	}
	var req transformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.roster.Revert(c.Request.Context(), char, req.FormKey)
	switch {
	case errors.Is(err, roster.ErrFormNotKnown):
		c.JSON(http.StatusNotFound, gin.H{"error": "form not known"})
	case errors.Is(err, roster.ErrFormNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "form not active"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "revert failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

type toggleRacialRequest struct {
	Tag    string `json:"tag" binding:"required"`
	Active bool   `json:"active"`
}

// ToggleRacial handles POST /api/characters/me/racial.
// Flips toggleable racial sub-states such as enhanced regeneration.
func (h *CharacterHandler) ToggleRacial(c *gin.Context) {
	char, ok := ownCharacter(c, h.roster)
	if !ok {
		return
	}
	var req toggleRacialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.roster.ToggleRacial(c.Request.Context(), char, req.Tag, req.Active)
	switch {
	case errors.Is(err, roster.ErrNotToggleable):
		c.JSON(http.StatusBadRequest, gin.H{"error": "tag is not toggleable"})
	case errors.Is(err, roster.ErrMissingBaseRacial):
		c.JSON(http.StatusForbidden, gin.H{"error": "missing base racial ability"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "toggle failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// Tags handles GET /api/characters/me/racial: lists default tags for
// reference plus the character's current set.
func (h *CharacterHandler) Tags(c *gin.Context) {
	char, ok := ownCharacter(c, h.roster)
	if !ok {
		return
	}
	profile, err := h.roster.Profile(c.Request.Context(), char)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profile failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"race_defaults": racial.DefaultTags(char.Race),
		"active":        profile.Tags,
	})
}

// ownCharacter loads the caller's character or writes the error response.
func ownCharacter(c *gin.Context, rs *roster.Service) (*model.Character, bool) {
	char, err := rs.ByOwner(c.Request.Context(), mw.GetAccountID(c))
	if errors.Is(err, roster.ErrCharacterNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no character"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return nil, false
	}
	return char, true
}
