package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kurobane/sagabrawl/game/roster"
	"github.com/kurobane/sagabrawl/game/turn"
	mw "github.com/kurobane/sagabrawl/middleware"
	"github.com/kurobane/sagabrawl/model"
)

// TurnHandler handles turn-order endpoints.
type TurnHandler struct {
	machine *turn.Machine
	roster  *roster.Service
}

// NewTurnHandler creates a TurnHandler.
func NewTurnHandler(m *turn.Machine, rs *roster.Service) *TurnHandler {
	return &TurnHandler{machine: m, roster: rs}
}

type createTurnRequest struct {
	Channel string `json:"channel" binding:"required"`
	// Opponents are character names; the caller is always included.
	Opponents []string `json:"opponents" binding:"required,min=1"`
}

// Create handles POST /api/turns: starts combat in a channel with the
// caller and the named opponents.
func (h *TurnHandler) Create(c *gin.Context) {
	var req createTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	self, ok := ownCharacter(c, h.roster)
	if !ok {
		return
	}

	participants := []model.Participant{participantFor(self)}
	for _, name := range req.Opponents {
		char, err := h.roster.ByName(c.Request.Context(), name)
		if errors.Is(err, roster.ErrCharacterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown character: " + name})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		participants = append(participants, participantFor(char))
	}

	order, err := h.machine.Create(c.Request.Context(), req.Channel, participants)
	switch {
	case errors.Is(err, turn.ErrOrderExists):
		c.JSON(http.StatusConflict, gin.H{"error": "combat already running"})
	case errors.Is(err, turn.ErrTooFewParticipants):
		c.JSON(http.StatusBadRequest, gin.H{"error": "need at least two distinct fighters"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
	default:
		c.JSON(http.StatusCreated, gin.H{"order": order})
	}
}

// Show handles GET /api/turns/:channel.
func (h *TurnHandler) Show(c *gin.Context) {
	order, err := h.machine.Get(c.Request.Context(), c.Param("channel"))
	if errors.Is(err, turn.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no combat in channel"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	list, err := order.ParticipantList()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt participant list"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":        order,
		"participants": list,
		"current":      list[order.CurrentTurn%len(list)],
	})
}

// Join handles POST /api/turns/:channel/join.
func (h *TurnHandler) Join(c *gin.Context) {
	self, ok := ownCharacter(c, h.roster)
	if !ok {
		return
	}
	order, err := h.machine.Join(c.Request.Context(), c.Param("channel"), participantFor(self))
	if errors.Is(err, turn.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no combat in channel"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "join failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// Leave handles POST /api/turns/:channel/leave.
func (h *TurnHandler) Leave(c *gin.Context) {
	order, err := h.machine.Leave(c.Request.Context(), c.Param("channel"), mw.GetAccountID(c))
	switch {
	case errors.Is(err, turn.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no combat in channel"})
	case errors.Is(err, turn.ErrNotParticipant):
		c.JSON(http.StatusConflict, gin.H{"error": "not a participant"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leave failed"})
	case order == nil:
		c.JSON(http.StatusOK, gin.H{"ended": true})
	default:
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// Advance handles POST /api/turns/:channel/advance: ends the caller's turn.
func (h *TurnHandler) Advance(c *gin.Context) {
	res, err := h.machine.Advance(c.Request.Context(), c.Param("channel"), mw.GetAccountID(c))
	switch {
	case errors.Is(err, turn.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no combat in channel"})
	case errors.Is(err, turn.ErrNotYourTurn):
		c.JSON(http.StatusConflict, gin.H{"error": "not your turn"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "advance failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"result": res})
	}
}

// End handles DELETE /api/turns/:channel.
func (h *TurnHandler) End(c *gin.Context) {
	err := h.machine.End(c.Request.Context(), c.Param("channel"))
	if errors.Is(err, turn.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no combat in channel"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "end failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ended": true})
}

type transferRequest struct {
	To string `json:"to" binding:"required"`
}

// Transfer handles POST /api/turns/:channel/transfer: moves combat to a new
// channel.
func (h *TurnHandler) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.machine.Transfer(c.Request.Context(), c.Param("channel"), req.To)
	switch {
	case errors.Is(err, turn.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no combat in channel"})
	case errors.Is(err, turn.ErrChannelOccupied):
		c.JSON(http.StatusConflict, gin.H{"error": "destination already has combat"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "transfer failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"transferred": req.To})
	}
}

func participantFor(char *model.Character) model.Participant {
	return model.Participant{
		UserID:        char.AccountID,
		DisplayName:   char.Name,
		CharacterName: char.Name,
		CharacterID:   char.ID,
	}
}
