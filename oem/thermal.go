package oem

// /redfish/v1/Chassis/X/Thermal/

// Thermal is the top level json object for a chassis Thermal resource.
type Thermal struct {
	ID           string        `json:"Id"`
	Name         string        `json:"Name"`
	Fans         []Fan         `json:"Fans"`
	Temperatures []Temperature `json:"Temperatures"`
	URL          string        `json:"@odata.id"`
}

// Fan is the json object for a fan module. Older iLO firmware reports the
// fan label under FanName instead of Name.
type Fan struct {
	MemberID     string `json:"MemberId"`
	Name         string `json:"Name"`
	FanName      string `json:"FanName"`
	Reading      Float  `json:"Reading"`
	ReadingUnits string `json:"ReadingUnits"`
	Status       Status `json:"Status"`
}

// Label returns the fan's display name across firmware generations.
func (f Fan) Label() string {
	if f.Name != "" {
		return f.Name
	}
	return f.FanName
}

// Temperature is the json object for a temperature sensor module.
type Temperature struct {
	MemberID               string `json:"MemberId"`
	Name                   string `json:"Name"`
	PhysicalContext        string `json:"PhysicalContext"`
	ReadingCelsius         Float  `json:"ReadingCelsius"`
	SensorNumber           int    `json:"SensorNumber"`
	Status                 Status `json:"Status"`
	UpperThresholdCritical Float  `json:"UpperThresholdCritical"`
}

// Status reports whether a sensor module is enabled and healthy.
type Status struct {
	Health string `json:"Health"`
	State  string `json:"State"`
}
