// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to describe the conditions and
// configuration database for the CAN-FD flight-recorder setup.
package conddb // import "github.com/go-canfd/fdr/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to easily retrieve recorder presets
// and controller conditions data from the FDR database.
type DB struct {
	db   *sql.DB
	name string // name of the FDR database
}

// Open opens a connection to the FDR database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastPreset returns the name of the preset bound to the most recently
// registered controller.
func (db *DB) LastPreset(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	preset := ""
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT preset FROM controllers ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return preset, fmt.Errorf("conddb: could not query last preset: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&preset)
		if err != nil {
			return preset, fmt.Errorf("conddb: could not get last preset value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return preset, fmt.Errorf("conddb: could not scan db for last preset: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return preset, fmt.Errorf("conddb: context error while retrieving last preset: %w", err)
	}

	return preset, nil
}

// LastControllerID returns the identifier of the most recently
// registered controller.
func (db *DB) LastControllerID(ctx context.Context) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var ctlid uint32
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT identifier FROM controllers ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return ctlid, fmt.Errorf("conddb: could not query controller-id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&ctlid)
		if err != nil {
			return ctlid, fmt.Errorf("conddb: could not get controller-id value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return ctlid, fmt.Errorf("conddb: could not scan db for controller-id: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return ctlid, fmt.Errorf("conddb: context error while retrieving controller-id: %w", err)
	}

	return ctlid, nil
}

// PresetConfig returns the recorder preset registered under the given
// name.
func (db *DB) PresetConfig(ctx context.Context, name string) (Preset, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var preset Preset
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT presets.* FROM presets WHERE presets.name=?",
		name,
	)
	if err != nil {
		return preset, fmt.Errorf("conddb: could not run preset cfg query: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		err = rows.Scan(
			&preset.ID, &preset.Name, &preset.Capacity,
			&preset.Capture, &preset.Trigger,
		)
		if err != nil {
			return preset, fmt.Errorf("conddb: could not scan preset cfg: %w", err)
		}
		n++
	}

	if err := rows.Err(); err != nil {
		return preset, fmt.Errorf("conddb: could not scan db for preset cfg: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return preset, fmt.Errorf("conddb: context error while retrieving preset cfg: %w", err)
	}

	if n == 0 {
		return preset, fmt.Errorf("conddb: no preset named %q", name)
	}

	return preset, nil
}

// Presets returns all the recorder presets the database knows about.
func (db *DB) Presets(ctx context.Context) ([]Preset, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var cfg []Preset
	rows, err := db.db.QueryContext(ctx, "SELECT * FROM presets")
	if err != nil {
		return cfg, fmt.Errorf(
			"conddb: could not run presets query: %w",
			err,
		)
	}
	defer rows.Close()

	for rows.Next() {
		var preset Preset
		err = rows.Scan(
			&preset.ID, &preset.Name, &preset.Capacity,
			&preset.Capture, &preset.Trigger,
		)
		if err != nil {
			return cfg, fmt.Errorf(
				"conddb: could not scan presets: %w",
				err,
			)
		}
		cfg = append(cfg, preset)
	}

	if err := rows.Err(); err != nil {
		return cfg, fmt.Errorf(
			"conddb: could not scan db for presets: %w",
			err,
		)
	}

	if err := ctx.Err(); err != nil {
		return cfg, fmt.Errorf(
			"conddb: context error while retrieving presets: %w",
			err,
		)
	}

	return cfg, nil
}
