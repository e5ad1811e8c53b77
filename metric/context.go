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

package metric

import "fmt"

// PhysicalContext is the closed set of reading categories used as the outer
// grouping key of a Reading. Call sites must use the enum values below rather
// than hand-built strings so the taxonomy stays identical across vendors;
// adding a vendor-specific category means extending an enum here.
type PhysicalContext interface {
	fmt.Stringer
	physicalContext()
}

// ThermalContext categorizes temperature sensors by the zone they monitor.
type ThermalContext int

const (
	Intake ThermalContext = iota
	CPU
	Memory
	SystemBoard
	PowerSupply
)

func (c ThermalContext) String() string {
	switch c {
	case Intake:
		return "Intake"
	case CPU:
		return "CPU"
	case Memory:
		return "Memory"
	case SystemBoard:
		return "SystemBoard"
	case PowerSupply:
		return "PowerSupply"
	}
	return "Unknown"
}

func (ThermalContext) physicalContext() {}

// FanContext groups cooling devices.
type FanContext int

// Fan is the single fan category.
const Fan FanContext = iota

func (FanContext) String() string { return "Fan" }

func (FanContext) physicalContext() {}

// PowerContext groups power draw readings.
type PowerContext int

// PowerDraw is the single power category.
const PowerDraw PowerContext = iota

func (PowerContext) String() string { return "Power" }

func (PowerContext) physicalContext() {}
