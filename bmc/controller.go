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

package bmc

import (
	"context"
	"strings"

	"github.com/benchkit/bmcsense/metric"
	"github.com/benchkit/bmcsense/oem"
)

// Controller is the capability a vendor adapter must provide: fetching the
// raw thermal and power documents. A nil document means the controller has
// nothing to report and is never an error; the generic aggregation below is
// built purely on these two primitives.
type Controller interface {
	ThermalDocument(ctx context.Context) (*oem.Thermal, error)
	PowerDocument(ctx context.Context) (*oem.Power, error)
}

// ThermalReader is the optional capability of classifying temperature
// sensors into the thermal taxonomy. Document shapes differ enough between
// vendors that there is no useful generic version.
type ThermalReader interface {
	Thermals(ctx context.Context) (*metric.Reading, error)
}

// FanReader lets a vendor replace the generic fan aggregation when its
// document shape diverges from the flat Fans list.
type FanReader interface {
	Fans(ctx context.Context) (*metric.Reading, error)
}

// ReadFans normalizes the Fans list of a freshly fetched thermal document,
// in document order. Controllers with no thermal document or no fans yield
// an empty Fan group.
func ReadFans(ctx context.Context, c Controller) (*metric.Reading, error) {
	if fr, ok := c.(FanReader); ok {
		return fr.Fans(ctx)
	}

	reading := metric.NewReading(metric.Fan)
	doc, err := c.ThermalDocument(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return reading, nil
	}

	group := reading.Group(metric.Fan)
	for _, fan := range doc.Fans {
		label := fan.Label()
		group.Set(label, metric.New(label, float64(fan.Reading), fan.ReadingUnits))
	}
	return reading, nil
}

// ReadPowerConsumption normalizes chassis power draw. The PowerControl entry
// maps to a single "Chassis" metric; when firmware reports several entries
// the last one wins.
func ReadPowerConsumption(ctx context.Context, c Controller) (*metric.Reading, error) {
	reading := metric.NewReading(metric.PowerDraw)
	doc, err := c.PowerDocument(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return reading, nil
	}

	group := reading.Group(metric.PowerDraw)
	for _, control := range doc.PowerControl.PowerControl {
		group.Set("Chassis", metric.Power("Chassis", float64(control.PowerConsumedWatts)))
	}
	return reading, nil
}

// ReadPowerSupplies normalizes per-PSU input power, in document order. The
// group key is the full vendor name ("PSU 1") while the metric's own name is
// only its first whitespace-delimited token ("PSU"); both are observable and
// the asymmetry is a contract.
func ReadPowerSupplies(ctx context.Context, c Controller) (*metric.Reading, error) {
	reading := metric.NewReading(metric.PowerDraw)
	doc, err := c.PowerDocument(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return reading, nil
	}

	group := reading.Group(metric.PowerDraw)
	for _, psu := range doc.PowerSupplies {
		name := psu.Name
		if fields := strings.Fields(psu.Name); len(fields) > 0 {
			name = fields[0]
		}
		group.Set(psu.Name, metric.Power(name, float64(psu.PowerInputWatts)))
	}
	return reading, nil
}

// ReadThermals classifies temperature sensors when the controller knows how;
// the generic default is an empty reading.
func ReadThermals(ctx context.Context, c Controller) (*metric.Reading, error) {
	if tr, ok := c.(ThermalReader); ok {
		return tr.Thermals(ctx)
	}
	return metric.NewReading(), nil
}
