package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/gradebook-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "noten",
		Password: "p@ss word",
		Name:     "gradebook",
		SSLMode:  "disable",
	})
	assert.Equal(t, "postgres://noten:p%40ss%20word@db:5433/gradebook?sslmode=disable", dsn)
}
