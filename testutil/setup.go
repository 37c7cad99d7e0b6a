package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/kurobane/sagabrawl/cache"
	"github.com/kurobane/sagabrawl/config"
	dbadapter "github.com/kurobane/sagabrawl/db"
	"github.com/kurobane/sagabrawl/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var memDBSeq int64

// SetupTestDB creates an in-memory SQLite DB and runs AutoMigrate.
// Each call gets its own named memory database; cache=shared keeps every
// pooled connection on the same one.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", atomic.AddInt64(&memDBSeq, 1)),
	})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	return db
}

// SetupTestCache creates LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := cache.CacheConfig{} // empty RedisAddr → LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}
