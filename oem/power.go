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

package oem

import (
	"encoding/json"
)

// /redfish/v1/Chassis/X/Power/

// Power is the top level json object for a chassis Power resource.
type Power struct {
	ID            string              `json:"Id"`
	Name          string              `json:"Name"`
	PowerControl  PowerControlWrapper `json:"PowerControl"`
	PowerSupplies []PowerSupply       `json:"PowerSupplies"`
	URL           string              `json:"@odata.id"`
}

// PowerControl holds chassis-level power consumption readings.
type PowerControl struct {
	MemberID           string `json:"MemberId"`
	PowerCapacityWatts Float  `json:"PowerCapacityWatts,omitempty"`
	PowerConsumedWatts Float  `json:"PowerConsumedWatts"`
}

type PowerControlSlice struct {
	PowerControl []PowerControl
}

// PowerControlWrapper absorbs a firmware difference: PowerControl is a list
// on current firmware but a single object on some older releases.
type PowerControlWrapper struct {
	PowerControlSlice
}

func (w *PowerControlWrapper) UnmarshalJSON(data []byte) error {
	var single PowerControl
	if err := json.Unmarshal(data, &single); err == nil {
		w.PowerControl = []PowerControl{single}
		return nil
	}
	return json.Unmarshal(data, &w.PowerControl)
}

// PowerSupply is the json object for one PSU bay.
type PowerSupply struct {
	MemberID             string `json:"MemberId"`
	Name                 string `json:"Name"`
	Manufacturer         string `json:"Manufacturer"`
	Model                string `json:"Model"`
	SerialNumber         string `json:"SerialNumber"`
	FirmwareVersion      string `json:"FirmwareVersion"`
	PowerInputWatts      Float  `json:"PowerInputWatts"`
	LastPowerOutputWatts Float  `json:"LastPowerOutputWatts"`
	PowerCapacityWatts   Float  `json:"PowerCapacityWatts,omitempty"`
	LineInputVoltage     Float  `json:"LineInputVoltage"`
	Status               Status `json:"Status"`
}
