package database

import (
	"testing"

	"Bazaar/internal/api/config"
	"Bazaar/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGormDBSQLite(t *testing.T) {
	db, err := NewGormDB(&config.DBConfig{Driver: config.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&model.Post{}))
}

func TestNewGormDBUnknownDriver(t *testing.T) {
	_, err := NewGormDB(&config.DBConfig{Driver: "oracle"})
	assert.Error(t, err)
}
