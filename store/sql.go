package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/tgwatch/tgwatch"
)

// DatabaseStore is a Store backed by a sql.DB.
type DatabaseStore struct {
	conn dbProxy
	now  func(dbProxy) (time.Time, error)
}

type dbProxy interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Prepare(query string) (*sql.Stmt, error)
}

// NewSQL returns a usable DatabaseStore. The DB should have channels
// and channel_stats tables; run db.Migrate first.
func NewSQL(driver, datasource string) (*DatabaseStore, error) {
	conn, err := sql.Open(driver, datasource)
	if err != nil {
		return nil, err
	}
	s := &DatabaseStore{
		conn: conn,
		now:  nowFor(driver),
	}
	return s, s.sanityCheck()
}

func (s *DatabaseStore) UpsertChannel(c tgwatch.Channel) (bool, error) {
	link := tgwatch.NormalizeLink(c.Link)
	var created bool
	err := s.Transaction(func(s *DatabaseStore) error {
		now, err := s.now(s.conn)
		if err != nil {
			return errors.Wrap(err, "getting current time")
		}
		res, err := s.conn.Exec(`
			UPDATE channels
			   SET link = $1, name = $2, description = $3
			 WHERE id = $4
		`, link, c.Name, c.Description, c.ID)
		if err != nil {
			return errors.Wrap(err, "updating channel")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "after update, checking affected rows")
		}
		if n == 0 {
			if _, err := s.conn.Exec(`
				INSERT INTO channels (id, link, name, description)
				VALUES ($1, $2, $3, $4)
			`, c.ID, link, c.Name, c.Description); err != nil {
				return errors.Wrap(err, "inserting channel")
			}
			created = true
		}
		if _, err := s.conn.Exec(`
			INSERT INTO channel_stats (channel_id, subscribers, views_24h, posts_count, recorded_at)
			VALUES ($1, $2, $3, $4, $5)
		`, c.ID, c.Subscribers, c.Views24h, c.PostsCount, now); err != nil {
			return errors.Wrap(err, "inserting statistics snapshot")
		}
		return nil
	})
	return created, err
}

func (s *DatabaseStore) Channel(id int64) (tgwatch.ChannelInfo, error) {
	return s.channelWhere(`id = $1`, strconv.FormatInt(id, 10), id)
}

func (s *DatabaseStore) ChannelByLink(link string) (tgwatch.ChannelInfo, error) {
	link = tgwatch.NormalizeLink(link)
	return s.channelWhere(`link = $1`, link, link)
}

func (s *DatabaseStore) channelWhere(cond, spec string, arg interface{}) (tgwatch.ChannelInfo, error) {
	var c tgwatch.Channel
	if err := s.conn.QueryRow(`
		SELECT id, link, name, description
		  FROM channels
		 WHERE `+cond, arg).Scan(&c.ID, &c.Link, &c.Name, &c.Description); err == sql.ErrNoRows {
		return tgwatch.ChannelInfo{}, tgwatch.ErrChannelNotFound(spec)
	} else if err != nil {
		return tgwatch.ChannelInfo{}, errors.Wrap(err, "getting channel")
	}

	var recordedAt time.Time
	if err := s.conn.QueryRow(`
		SELECT subscribers, views_24h, posts_count, recorded_at
		  FROM channel_stats
		 WHERE channel_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT 1
	`, c.ID).Scan(&c.Subscribers, &c.Views24h, &c.PostsCount, &recordedAt); err == sql.ErrNoRows {
		return tgwatch.ChannelInfo{}, tgwatch.ErrStatsNotFound(spec)
	} else if err != nil {
		return tgwatch.ChannelInfo{}, errors.Wrap(err, "getting latest snapshot")
	}

	return tgwatch.ChannelInfo{
		LastUpdate: recordedAt.Unix(),
		Channel:    c,
	}, nil
}

func (s *DatabaseStore) ChannelIDs() ([]int64, error) {
	rows, err := s.conn.Query(`SELECT id FROM channels ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "listing channels")
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *DatabaseStore) Statistics(id int64, sort tgwatch.StatsSort) ([]tgwatch.StatsItem, error) {
	var count int
	if err := s.conn.QueryRow(`SELECT count(1) FROM channels WHERE id = $1`, id).Scan(&count); err != nil {
		return nil, errors.Wrap(err, "checking channel exists")
	}
	if count == 0 {
		return nil, tgwatch.ErrChannelNotFound(strconv.FormatInt(id, 10))
	}

	order := "DESC"
	if sort == tgwatch.SortOldest {
		order = "ASC"
	}
	rows, err := s.conn.Query(fmt.Sprintf(`
		SELECT subscribers, views_24h, posts_count, recorded_at
		  FROM channel_stats
		 WHERE channel_id = $1
		 ORDER BY recorded_at %s
	`, order), id)
	if err != nil {
		return nil, errors.Wrap(err, "getting statistics")
	}
	defer rows.Close()

	items := make([]tgwatch.StatsItem, 0)
	for rows.Next() {
		var (
			item       tgwatch.StatsItem
			recordedAt time.Time
		)
		if err := rows.Scan(&item.Subscribers, &item.Views, &item.PostsCount, &recordedAt); err != nil {
			return nil, err
		}
		item.Time = recordedAt.Unix()
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *DatabaseStore) sanityCheck() error {
	if _, err := s.conn.Query(`SELECT id FROM channels LIMIT 1`); err != nil {
		return errors.Wrap(err, "failed sanity check for channels table")
	}
	return nil
}

func (s *DatabaseStore) Transaction(f func(*DatabaseStore) error) error {
	if _, ok := s.conn.(*sql.Tx); ok {
		// Already in a nested transaction
		return f(s)
	}

	tx, err := s.conn.(*sql.DB).Begin()
	if err != nil {
		return err
	}
	err = f(&DatabaseStore{
		conn: tx,
		now:  s.now,
	})
	if err != nil {
		// Rollback error is ignored as we already have an error in progress
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nowFor(driver string) func(dbProxy) (time.Time, error) {
	switch driver {
	case "ql", "ql-mem":
		return func(conn dbProxy) (t time.Time, err error) {
			return t, conn.QueryRow("SELECT now() FROM __Table LIMIT 1").Scan(&t)
		}
	default:
		return func(conn dbProxy) (t time.Time, err error) {
			return t, conn.QueryRow("SELECT now()").Scan(&t)
		}
	}
}
