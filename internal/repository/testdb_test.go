package repository

import (
	"Tandem/internal/model"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// newTestDB 基于临时文件的 SQLite，NowFunc 每次调用前进一秒
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	var mu sync.Mutex
	clock := baseTime
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tandem.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
		NowFunc: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Conversation{}, &model.ConversationMember{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
