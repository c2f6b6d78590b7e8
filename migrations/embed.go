// Package migrations holds the catalogue schema as SQL files compiled into
// the binary. Importing it registers them with the database package.
package migrations

import (
	"embed"

	"github.com/kichnu/iotdash/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files, ".")
}
