// Copyright 2023 The go-canfd Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb // import "github.com/go-canfd/fdr/conddb"

import (
	"fmt"
	"math/bits"

	"github.com/go-canfd/fdr/evlog"
)

// Preset is one named recorder configuration: the log capacity and the
// capture and trigger masks a recording session runs with.
type Preset struct {
	ID       int32  `json:"identifier"`
	Name     string `json:"name"`
	Capacity uint16 `json:"capacity"`
	Capture  uint32 `json:"capture"`
	Trigger  uint16 `json:"trigger"`
}

// Validate checks the preset describes a configuration the recorder
// can actually be armed with.
func (p Preset) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("conddb: preset %d has no name", p.ID)
	}
	if p.Capacity < 2 || bits.OnesCount16(p.Capacity) != 1 {
		return fmt.Errorf(
			"conddb: preset %q has invalid capacity %d (want a power of two >= 2)",
			p.Name, p.Capacity,
		)
	}
	if evlog.CaptureMask(p.Capture)&evlog.CaptureAll == 0 {
		return fmt.Errorf("conddb: preset %q captures no event kind", p.Name)
	}
	return nil
}

// Options expresses the preset as engine options.
func (p Preset) Options() []evlog.Option {
	return []evlog.Option{
		evlog.WithCaptureMask(evlog.CaptureMask(p.Capture)),
		evlog.WithTriggerMask(evlog.TriggerMask(p.Trigger)),
	}
}

// Engine creates a recorder engine configured with the preset.
func (p Preset) Engine() (*evlog.Engine, error) {
	err := p.Validate()
	if err != nil {
		return nil, err
	}
	return evlog.New(int(p.Capacity), p.Options()...)
}

func (p Preset) String() string {
	return fmt.Sprintf(
		"preset{name=%q, capacity=%d, capture=0x%06x, trigger=0x%04x}",
		p.Name, p.Capacity, p.Capture, p.Trigger,
	)
}
