package migrate

import (
	"embed"
	"io/fs"
)

//go:embed sql
var embedded embed.FS

// Embedded returns the bundled migrations and seed files.
func Embedded() (migrations, seeds fs.FS) {
	m, err := fs.Sub(embedded, "sql/migrations")
	if err != nil {
		panic(err)
	}
	s, err := fs.Sub(embedded, "sql/seeds")
	if err != nil {
		panic(err)
	}
	return m, s
}
