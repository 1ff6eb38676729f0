// Package db opens the SQLite metastore and applies its schema migrations.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

// Mode selects how a pool is tuned.
type Mode string

const (
	// ModeWrite is a single-connection pool that takes the write lock up front.
	ModeWrite Mode = "write"
	// ModeRead is a multi-connection pool for concurrent readers.
	ModeRead Mode = "read"
)

const (
	busyTimeoutMillis = 5000
	defaultReadConns  = 4
	pingTimeout       = 5 * time.Second
)

// Pools pairs the write and read handles of one metastore file.
type Pools struct {
	Write *sql.DB
	Read  *sql.DB
}

// Close closes both pools.
func (p *Pools) Close() error {
	rerr := p.Read.Close()
	if werr := p.Write.Close(); werr != nil {
		return werr
	}
	return rerr
}

// Open opens one pool on the SQLite file at path. maxOpen only applies to
// ModeRead; zero picks a default.
//
// Every connection runs in WAL mode with foreign keys enforced. Writers use
// BEGIN IMMEDIATE so SQLite serializes them instead of failing with BUSY.
func Open(path string, mode Mode, maxOpen int) (*sql.DB, error) {
	conns := 1
	switch mode {
	case ModeWrite:
	case ModeRead:
		conns = maxOpen
		if conns <= 0 {
			conns = defaultReadConns
		}
	default:
		return nil, fmt.Errorf("unknown sqlite pool mode %q", mode)
	}

	db, err := sql.Open("sqlite3", dsn(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s pool: %w", mode, err)
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s pool: %w", mode, err)
	}
	return db, nil
}

// OpenPools opens the write pool first so the file and WAL exist before
// readers attach.
func OpenPools(path string, readConns int) (*Pools, error) {
	w, err := Open(path, ModeWrite, 0)
	if err != nil {
		return nil, err
	}
	r, err := Open(path, ModeRead, readConns)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	return &Pools{Write: w, Read: r}, nil
}

func dsn(path string, mode Mode) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", fmt.Sprint(busyTimeoutMillis))
	q.Set("_foreign_keys", "on")
	if mode == ModeWrite {
		q.Set("_txlock", "immediate")
	}
	return "file:" + path + "?" + q.Encode()
}
