package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kurobane/sagabrawl/cache"
	"github.com/kurobane/sagabrawl/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LeaderboardHandler handles the power-level leaderboard.
type LeaderboardHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(db *gorm.DB, c cache.Cache, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{db: db, cache: c, logger: logger}
}

const leaderboardZKey = "leaderboard:pl"
const leaderboardTop = 100

// RankEntry is one row in the leaderboard.
type RankEntry struct {
	Rank     int    `json:"rank"`
	CharID   int64  `json:"char_id"`
	CharName string `json:"char_name"`
	Race     string `json:"race"`
	BasePL   int64  `json:"base_pl"`
}

// TopPower returns the strongest characters by base power level.
// GET /api/leaderboard/pl?limit=20
func (h *LeaderboardHandler) TopPower(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= leaderboardTop {
		limit = l
	}

	// Try the cached sorted set first.
	ctx := c.Request.Context()
	members, err := h.cache.ZRevRange(ctx, leaderboardZKey, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries := make([]RankEntry, 0, len(members))
		for i, m := range members {
			charID, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			score, _ := h.cache.ZScore(ctx, leaderboardZKey, m)
			entries = append(entries, RankEntry{
				Rank:   i + 1,
				CharID: charID,
				BasePL: int64(score),
			})
		}
		h.enrichNames(entries)
		c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
		return
	}

	// Fall back to the DB and refresh the cache on the way out.
	var chars []model.Character
	h.db.Select("id, name, race, base_pl").
		Order("base_pl DESC").
		Limit(limit).
		Find(&chars)

	entries := make([]RankEntry, len(chars))
	for i, ch := range chars {
		entries[i] = RankEntry{
			Rank:     i + 1,
			CharID:   ch.ID,
			CharName: ch.Name,
			Race:     ch.Race,
			BasePL:   ch.BasePL,
		}
		_ = h.cache.ZAdd(ctx, leaderboardZKey, float64(ch.BasePL), strconv.FormatInt(ch.ID, 10))
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// Refresh rebuilds the leaderboard sorted set from the DB.
// Called periodically by the scheduler; also exposed as POST /api/admin/leaderboard/refresh.
func (h *LeaderboardHandler) Refresh(c *gin.Context) {
	n, err := h.RefreshFromDB(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": n})
}

// RefreshFromDB repopulates the sorted set; shared by the admin endpoint and
// the scheduler tick.
func (h *LeaderboardHandler) RefreshFromDB(ctx context.Context) (int, error) {
	var chars []model.Character
	if err := h.db.WithContext(ctx).Select("id, base_pl").
		Order("base_pl DESC").Limit(leaderboardTop).Find(&chars).Error; err != nil {
		return 0, err
	}
	for _, ch := range chars {
		_ = h.cache.ZAdd(ctx, leaderboardZKey, float64(ch.BasePL), strconv.FormatInt(ch.ID, 10))
	}
	return len(chars), nil
}

func (h *LeaderboardHandler) enrichNames(entries []RankEntry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.CharID
	}
	var chars []model.Character
	h.db.Select("id, name, race, base_pl").Where("id IN ?", ids).Find(&chars)
	charMap := make(map[int64]model.Character, len(chars))
	for _, ch := range chars {
		charMap[ch.ID] = ch
	}
	for i := range entries {
		if ch, ok := charMap[entries[i].CharID]; ok {
			entries[i].CharName = ch.Name
			entries[i].Race = ch.Race
			entries[i].BasePL = ch.BasePL
		}
	}
}
