// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fdr-env monitors the temperature of the flight-recorder board
// through the TMP102 sensor sitting on the I2C bus.
package main // import "github.com/go-canfd/fdr/cmd/fdr-env"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/go-daq/smbus"
)

const (
	regTemp = 0x00 // temperature register
	regConf = 0x01 // configuration register

	// continuous conversion, 4 Hz, 12-bit mode.
	cfgDefault = 0x60A0
)

func main() {
	var (
		bus  = flag.Int("bus", 0, "I2C bus id")
		addr = flag.Int("addr", 0x48, "I2C address of the TMP102 sensor")
		freq = flag.Duration("freq", 10*time.Second, "probing interval")
		max  = flag.Float64("max", 85, "temperature alarm threshold (Celsius)")
	)

	flag.Parse()

	log.SetPrefix("fdr-env: ")
	log.SetFlags(0)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	err := run(*bus, uint8(*addr), *freq, *max, stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(bus int, addr uint8, freq time.Duration, max float64, stop chan os.Signal) error {
	conn, err := smbus.Open(bus, addr)
	if err != nil {
		return fmt.Errorf("could not open I2C bus %d: %w", bus, err)
	}
	defer conn.Close()

	err = conn.WriteWord(addr, regConf, cfgDefault)
	if err != nil {
		return fmt.Errorf("could not configure sensor 0x%x: %w", addr, err)
	}

	tick := time.NewTicker(freq)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-tick.C:
			raw, err := conn.ReadWord(addr, regTemp)
			if err != nil {
				log.Printf("could not read sensor 0x%x: %+v", addr, err)
				continue
			}
			temp := tempFrom(raw)
			log.Printf("temp: %6.2f C", temp)
			if temp > max {
				log.Printf("ALARM: temperature %6.2f C above threshold %6.2f C", temp, max)
			}
		}
	}
}

// tempFrom converts a raw TMP102 word to degrees Celsius.
// SMBus words come LSB first while the sensor sends the MSB first.
func tempFrom(raw uint16) float64 {
	v := raw<<8 | raw>>8
	return float64(int16(v)>>4) * 0.0625
}
