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

// Package metric holds the normalized sensor reading model shared by all
// vendor adapters: a named, unit-tagged scalar and the insertion-ordered
// category -> sensor -> metric grouping the benchmark harness consumes.
package metric

import "fmt"

// Metric is a single named sensor reading. It is a plain value; no range or
// unit validation is performed.
type Metric struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
	Unit  string  `json:"unit" yaml:"unit"`
}

// New returns a Metric with an arbitrary unit string.
func New(name string, value float64, unit string) Metric {
	return Metric{Name: name, Value: value, Unit: unit}
}

// Temperature returns a Metric fixed to degrees Celsius.
func Temperature(name string, value float64) Metric {
	return Metric{Name: name, Value: value, Unit: "Celsius"}
}

// Power returns a Metric fixed to Watts.
func Power(name string, value float64) Metric {
	return Metric{Name: name, Value: value, Unit: "Watts"}
}

// Equal reports structural equality on name, value and unit.
func (m Metric) Equal(o Metric) bool {
	return m == o
}

func (m Metric) String() string {
	return fmt.Sprintf("%s=%v %s", m.Name, m.Value, m.Unit)
}
