// A migration driver for the embedded ql database, registered for the
// "file" and "memory" URL schemes that cznic/ql understands.
package ql

import (
	"database/sql"
	"net/url"

	"gopkg.in/mattes/migrate.v1/driver"
	"gopkg.in/mattes/migrate.v1/file"
	"gopkg.in/mattes/migrate.v1/migrate/direction"
	"github.com/pkg/errors"
)

func init() {
	driver.RegisterDriver("file", &Driver{sqlDriver: "ql"})
	driver.RegisterDriver("memory", &Driver{sqlDriver: "ql-mem"})
}

type Driver struct {
	sqlDriver string
	conn      *sql.DB
}

func (d *Driver) Initialize(source string) error {
	if _, err := url.Parse(source); err != nil {
		return errors.Wrap(err, "parsing database source")
	}
	var err error
	d.conn, err = sql.Open(d.sqlDriver, source)
	if err != nil {
		return err
	}
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}

	_, err = tx.Exec(`CREATE TABLE IF NOT EXISTS
                        schema_migration (stamp time NOT NULL, version int NOT NULL)`)
	if err == nil {
		_, err = tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS pk_schema_migration ON schema_migration (version)`)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (d *Driver) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

func (d *Driver) FilenameExtension() string {
	return "sql"
}

func (d *Driver) Migrate(f file.File, pipe chan interface{}) {
	defer close(pipe)
	pipe <- f

	tx, err := d.conn.Begin()
	if err != nil {
		pipe <- err
		return
	}

	if f.Direction == direction.Up {
		if _, err := tx.Exec("INSERT INTO schema_migration (stamp, version) VALUES (now(), $1)", f.Version); err != nil {
			pipe <- err
			if err := tx.Rollback(); err != nil {
				pipe <- err
			}
			return
		}
	} else if f.Direction == direction.Down {
		if _, err := tx.Exec("DELETE FROM schema_migration WHERE version = $1", f.Version); err != nil {
			pipe <- err
			if err := tx.Rollback(); err != nil {
				pipe <- err
			}
			return
		}
	}

	if err := f.ReadContent(); err != nil {
		pipe <- err
		if err := tx.Rollback(); err != nil {
			pipe <- err
		}
		return
	}

	if _, err := tx.Exec(string(f.Content)); err != nil {
		pipe <- err
		if err := tx.Rollback(); err != nil {
			pipe <- err
		}
		return
	}

	if err := tx.Commit(); err != nil {
		pipe <- err
		return
	}
}

func (d *Driver) Version() (uint64, error) {
	var version uint64
	err := d.conn.QueryRow(`SELECT version FROM schema_migration ORDER BY version DESC LIMIT 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return 0, err
	}
	return version, nil
}
