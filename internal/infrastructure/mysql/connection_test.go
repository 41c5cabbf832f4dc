package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"campcart/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     3307,
		User:     "campcart",
		Password: "s3cret",
		Name:     "carts",
	})

	assert.Contains(t, dsn, "campcart:s3cret@tcp(db.internal:3307)/carts")
	assert.Contains(t, dsn, "parseTime=true")
}
