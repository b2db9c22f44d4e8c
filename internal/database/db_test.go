package database

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/rsvp/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t, "open")

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(context.Background(), db))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t, "seed")

	require.NoError(t, AutoMigrateAndSeed(db))
	// seeding twice must not duplicate the placeholder user
	require.NoError(t, SeedData(db))

	var users []models.User
	require.NoError(t, db.Where("email = ?", models.AnonymousEmail).Find(&users).Error)
	require.Len(t, users, 1)
	require.Equal(t, models.AnonymousName, users[0].Name)
	require.True(t, users[0].IsAnonymousUser())

	migrator := db.Migrator()
	for _, table := range []interface{}{&models.Event{}, &models.RSVP{}, &models.Post{}, &models.Notification{}, &models.AuditLog{}, &models.CacheEntry{}} {
		require.True(t, migrator.HasTable(table), "expected table for %T to exist", table)
	}
	require.True(t, migrator.HasTable("post_authors"))
}

func TestNamedMemoryDatabasesAreIsolated(t *testing.T) {
	first := openTestDB(t, "isolated-a")
	second := openTestDB(t, "isolated-b")

	require.NoError(t, AutoMigrate(first))
	require.True(t, first.Migrator().HasTable(&models.Event{}))
	require.False(t, second.Migrator().HasTable(&models.Event{}))
}

func TestBuildSQLiteDSN(t *testing.T) {
	dsn, err := buildSQLiteDSN(Config{})
	require.NoError(t, err)
	require.Equal(t, "file::memory:?cache=shared&_foreign_keys=1", dsn)

	dsn, err = buildSQLiteDSN(Config{Path: ":memory:", Name: "unit test"})
	require.NoError(t, err)
	require.Equal(t, "file:unit%20test?mode=memory&cache=shared&_foreign_keys=1", dsn)

	dsn, err = buildSQLiteDSN(Config{DSN: "file:custom.db"})
	require.NoError(t, err)
	require.Equal(t, "file:custom.db", dsn)

	path := t.TempDir() + "/data/rsvp.db"
	dsn, err = buildSQLiteDSN(Config{Path: path})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dsn, "file:"))
	require.Contains(t, dsn, "_journal_mode=WAL")
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "rsvp", Name: "rsvp"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=rsvp dbname=rsvp TimeZone=UTC sslmode=disable", dsn)

	dsn, err = buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options:  map[string]string{"sslmode": "require", "search_path": "public"},
	})
	require.NoError(t, err)
	for _, part := range []string{"host=db.example.com", "port=6543", "password=pass", "sslmode=require", "search_path=public"} {
		require.Contains(t, dsn, part)
	}

	_, err = buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "rsvp", Name: "rsvp"})
	require.NoError(t, err)
	require.Equal(t, "rsvp@tcp(127.0.0.1:3306)/rsvp?charset=utf8mb4&loc=UTC&parseTime=True", dsn)

	dsn, err = buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options:  map[string]string{"tls": "skip-verify"},
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "user:secret@tcp(db.example.com:3307)/db?")
	require.Contains(t, dsn, "tls=skip-verify")

	_, err = buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)
}

func TestNormaliseDriver(t *testing.T) {
	require.Equal(t, "sqlite", normaliseDriver(""))
	require.Equal(t, "sqlite", normaliseDriver("SQLite3"))
	require.Equal(t, "postgres", normaliseDriver("postgresql"))
	require.Equal(t, "mysql", normaliseDriver(" MySQL "))
}

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", Name: t.Name() + "-" + name})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
