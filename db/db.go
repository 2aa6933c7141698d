// Code for initialising databases; individual components keep their
// migration scripts in `db/migrations/{driver}`. `db.Migrate` should
// be run before any component opens the database.

package db

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/mattes/migrate.v1/migrate"
	"github.com/pkg/errors"

	// This section imports the database/sql drivers and the migration
	// drivers.
	_ "github.com/cznic/ql/driver"
	_ "github.com/lib/pq"
	_ "gopkg.in/mattes/migrate.v1/driver/postgres"
	_ "github.com/tgwatch/tgwatch/db/ql"
)

// Most SQL drivers expect the driver name to appear as the scheme in
// the database source URL; for instance, `postgres://host:5432`.
// However, cznic/ql uses the schemes "file" and "memory", and names
// its drivers `ql` and `ql-mem`; translate where needed.
func DriverForScheme(scheme string) string {
	switch scheme {
	case "file":
		return "ql"
	case "memory":
		return "ql-mem"
	default:
		return scheme
	}
}

// Migrate brings the database at the URL up to date with respect to
// migrations, or returns an error. The migration scripts are taken
// from `basedir/{driver}`, with the driver derived from the URL scheme.
func Migrate(dburl, basedir string) (uint64, error) {
	u, err := url.Parse(dburl)
	if err != nil {
		return 0, errors.Wrap(err, "parsing database URL")
	}
	migrationsPath := filepath.Join(basedir, DriverForScheme(u.Scheme))
	if _, err := os.Stat(migrationsPath); err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Wrapf(err, "migrations dir %s does not exist; driver %s not supported", migrationsPath, u.Scheme)
		}
		return 0, errors.Wrapf(err, "verifying migrations directory %s exists", migrationsPath)
	}

	errs, _ := migrate.UpSync(dburl, migrationsPath)
	if len(errs) > 0 {
		return 0, errors.Wrap(compositeError{errs}, "migrating database")
	}
	version, err := migrate.Version(dburl, migrationsPath)
	if err != nil {
		return 0, err
	}
	return version, nil
}

type compositeError struct {
	errors []error
}

func (errs compositeError) Error() string {
	msgs := make([]string, len(errs.errors))
	for i := range errs.errors {
		msgs[i] = errs.errors[i].Error()
	}
	return strings.Join(msgs, "; ")
}
