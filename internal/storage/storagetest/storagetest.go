// Package storagetest builds throwaway sqlite-backed stores for tests.
package storagetest

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"unicode"

	"supportbot/backend/internal/models"
	"supportbot/backend/internal/storage"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
)

// New returns a migrated store on a fresh sqlite file.
func New(t testing.TB) *storage.Service {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.SetupDatabase("sqlite://"+path, 1)
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))

	t.Cleanup(func() {
		if sqldb, err := db.DB(); err == nil {
			sqldb.Close()
		}
	})
	return storage.NewStorageService(db, nil)
}

// Nickname returns a random valid nickname that is unique per id.
func Nickname(id int64) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return -1
	}, gofakeit.FirstName())
	return name + strconv.FormatInt(id, 10)
}

// User registers a user with a random nickname.
func User(t testing.TB, s storage.Storage, id int64) *models.User {
	t.Helper()
	u := &models.User{ID: id, Nickname: Nickname(id)}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// Item enqueues a text item.
func Item(t testing.TB, s storage.Storage, producerID int64, category models.Category) *models.QueueItem {
	t.Helper()
	item := &models.QueueItem{
		ProducerID: producerID,
		Category:   category,
		Kind:       models.KindText,
		Text:       gofakeit.Sentence(6),
	}
	require.NoError(t, s.CreateQueueItem(context.Background(), item))
	return item
}
