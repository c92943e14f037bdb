package persist

import (
	"context"
	"testing"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/linkstore"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// mockStore runs the store against a mocked MySQL connection, pinning the
// SQL the production driver sees.
func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	dialector := mysql.New(mysql.Config{
		Conn:                      conn,
		SkipInitializeWithVersion: true,
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	links := linkstore.New(linkstore.Config{}, zap.NewNop())
	return New(db, links, zap.NewNop()), mock
}

func TestLastCompleteSnapshotQueryError(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `snapshots`").
		WillReturnError(assert.AnError)

	_, err := store.LastCompleteSnapshot(context.Background())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateUnseenUpdatesOnlyAvailable(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `products` SET").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := store.DeactivateUnseen(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchQueueLinkQueryError(t *testing.T) {
	store, mock := mockStore(t)
	mock.ExpectQuery("SELECT \\* FROM `links`").
		WillReturnError(assert.AnError)

	pulled := map[string]catalog.Product{"A": {ID: "A", Name: "beer A"}}
	_, err := store.MatchQueue(context.Background(), pulled, time.Hour, 10)
	assert.Error(t, err)
}
