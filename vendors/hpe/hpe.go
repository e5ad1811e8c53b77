/*
 * Copyright 2026 The bmcsense Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package hpe adapts HPE iLO controllers: it fetches the chassis documents
// from the form-factor specific resource path and classifies iLO's sensor
// names into the shared thermal taxonomy.
package hpe

import (
	"context"
	"strings"

	"github.com/benchkit/bmcsense/bmc"
	"github.com/benchkit/bmcsense/metric"
	"github.com/benchkit/bmcsense/oem"
	"github.com/benchkit/bmcsense/vendors"
)

// FormFactor selects the chassis resource layout iLO exposes.
type FormFactor int

const (
	// Rackmount covers the DL family.
	Rackmount FormFactor = iota
	// Blade covers compact multi-node form factors (XL, BL families),
	// where sensors hang off the enclosure chassis.
	Blade
)

const (
	rackmountChassis = "/Chassis/1"
	bladeChassis     = "/Chassis/enclosurechassis"
)

// formFactorOf maps an SMBIOS product name to the chassis layout.
func formFactorOf(product string) FormFactor {
	p := strings.ToUpper(product)
	if strings.Contains(p, " XL") || strings.Contains(p, " BL") {
		return Blade
	}
	return Rackmount
}

// ILO is the HPE controller adapter. It reuses the generic controller's
// session and discovery and overrides the document fetches.
type ILO struct {
	*bmc.BMC
	chassis string
}

// NewILO wraps an already discovered controller.
func NewILO(b *bmc.BMC, form FormFactor) *ILO {
	chassis := rackmountChassis
	if form == Blade {
		chassis = bladeChassis
	}
	return &ILO{BMC: b, chassis: chassis}
}

// ThermalDocument fetches the chassis Thermal resource.
func (i *ILO) ThermalDocument(ctx context.Context) (*oem.Thermal, error) {
	var doc oem.Thermal
	ok, err := i.Document(ctx, i.chassis+"/Thermal", &doc)
	if err != nil || !ok {
		return nil, err
	}
	return &doc, nil
}

// PowerDocument fetches the chassis Power resource.
func (i *ILO) PowerDocument(ctx context.Context) (*oem.Power, error) {
	var doc oem.Power
	ok, err := i.Document(ctx, i.chassis+"/Power", &doc)
	if err != nil || !ok {
		return nil, err
	}
	return &doc, nil
}

// Thermals classifies iLO's temperature sensors into the thermal taxonomy.
// Categories appear in the order they are first encountered in the document
// and sensor labels are kept verbatim, numeric ordering prefix included.
// Sensors reporting zero are unpopulated slots and are skipped.
func (i *ILO) Thermals(ctx context.Context) (*metric.Reading, error) {
	reading := metric.NewReading()
	doc, err := i.ThermalDocument(ctx)
	if err != nil || doc == nil {
		return reading, err
	}

	for _, t := range doc.Temperatures {
		if t.ReadingCelsius <= 0 {
			continue
		}
		zone, name := classify(t.Name)
		reading.Group(zone).Set(t.Name, metric.Temperature(name, float64(t.ReadingCelsius)))
	}
	return reading, nil
}

// classify derives the thermal zone and the metric display name from an iLO
// sensor label such as "02-CPU 1" or "04-P1 DIMM 1-4". The display name is
// the label with its ordinal prefix stripped; CPU sensors collapse to
// "CPU<n>" and intake sensors to their leading token.
func classify(label string) (metric.ThermalContext, string) {
	stripped := stripOrdinal(label)
	fields := strings.Fields(stripped)

	switch {
	case strings.Contains(stripped, "CPU"):
		if len(fields) >= 2 {
			return metric.CPU, fields[0] + fields[1]
		}
		return metric.CPU, stripped
	case strings.Contains(stripped, "DIMM"):
		return metric.Memory, stripped
	case strings.Contains(stripped, "P/S") || strings.HasPrefix(stripped, "PS "):
		return metric.PowerSupply, stripped
	case strings.Contains(stripped, "Inlet") || strings.Contains(stripped, "Ambient"):
		if len(fields) > 0 {
			return metric.Intake, fields[0]
		}
		return metric.Intake, stripped
	}
	return metric.SystemBoard, stripped
}

// stripOrdinal removes iLO's "NN-" sensor ordering prefix.
func stripOrdinal(label string) string {
	prefix, rest, found := strings.Cut(label, "-")
	if !found || prefix == "" {
		return label
	}
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return label
		}
	}
	return rest
}

// Hpe is the HPE vendor context: it owns one iLO adapter, discovers it once
// and reconnects idempotently.
type Hpe struct {
	runner bmc.CommandRunner
	ilo    *ILO
}

func New(runner bmc.CommandRunner) *Hpe {
	return &Hpe{runner: runner}
}

func (h *Hpe) Name() string { return "Hpe" }

// Detect claims the hardware when SMBIOS names an HPE platform.
func (h *Hpe) Detect() bool {
	v := vendors.SysVendor()
	return strings.Contains(v, "HPE") || strings.Contains(v, "Hewlett")
}

// Prepare builds the controller on first call and (re)establishes the
// remote session. Safe to call repeatedly.
func (h *Hpe) Prepare(ctx context.Context) error {
	if h.ilo == nil {
		b := bmc.New(h.Name(), h.runner)
		if err := b.Discover(ctx); err != nil {
			return err
		}
		h.ilo = NewILO(b, formFactorOf(vendors.ProductName()))
	}
	return h.ilo.Connect(ctx)
}

func (h *Hpe) Controller() bmc.Controller { return h.ilo }

func (h *Hpe) Close(ctx context.Context) error {
	if h.ilo == nil {
		return nil
	}
	return h.ilo.Close(ctx)
}
