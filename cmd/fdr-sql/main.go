// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/go-canfd/fdr/conddb"
	_ "github.com/go-sql-driver/mysql"
)

const (
	dbname = "fdrsrv"
)

func main() {
	log.SetPrefix("fdr-sql: ")
	log.SetFlags(0)

	var (
		preset = flag.String("preset", "", "recorder preset to inspect")
	)

	flag.Parse()

	log.Printf("preset: %q", *preset)

	db, err := conddb.Open(dbname)
	if err != nil {
		log.Fatalf("could not open FDR db: %+v", err)
	}
	defer db.Close()

	err = doQuery(db, *preset)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(db *conddb.DB, preset string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if preset == "" {
		v, err := db.LastPreset(ctx)
		if err != nil {
			return fmt.Errorf("could not get last preset value: %w", err)
		}
		preset = v
		log.Printf("preset: %q", preset)
	}

	cfg, err := db.PresetConfig(ctx, preset)
	if err != nil {
		return fmt.Errorf("could not get preset cfg (name=%q): %w",
			preset, err,
		)
	}
	log.Printf("cfg: %v", cfg)

	ctlid, err := db.LastControllerID(ctx)
	if err != nil {
		return fmt.Errorf("could not get last controller-id: %w", err)
	}
	log.Printf("controller-id: %d", ctlid)
	{
		rows, err := db.QueryContext(ctx, "SELECT id, bus, rate FROM controllers WHERE id=? ORDER BY id", ctlid)
		if err != nil {
			return fmt.Errorf("could not get controllers definition: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id   uint32
				bus  uint32
				rate uint32
			)
			err = rows.Scan(&id, &bus, &rate)
			if err != nil {
				return fmt.Errorf("could not scan controllers definition: %w", err)
			}
			log.Printf(">>> ctl=%03d, bus=%02d, rate=%d kbps", id, bus, rate)
		}
	}

	presets, err := db.Presets(ctx)
	if err != nil {
		return fmt.Errorf("could not retrieve presets: %w", err)
	}
	log.Printf("presets: %d", len(presets))
	for i, p := range presets {
		log.Printf("row[%d]: %v", i, p)
	}

	return nil
}
