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

package hpe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benchkit/bmcsense/bmc"
	"github.com/benchkit/bmcsense/config"
	"github.com/benchkit/bmcsense/metric"
	"github.com/stretchr/testify/assert"
)

// Thermal document of a compact multi-node chassis: one inlet sensor, two
// CPU sensors, two DIMM banks, plus an unpopulated CPU slot reporting zero.
const compactThermal = `{
	"Id": "Thermal",
	"Name": "Thermal",
	"Temperatures": [
		{"Name": "01-Inlet Ambient", "PhysicalContext": "Intake", "ReadingCelsius": 23},
		{"Name": "02-CPU 1", "PhysicalContext": "CPU", "ReadingCelsius": 40},
		{"Name": "03-CPU 2", "PhysicalContext": "CPU", "ReadingCelsius": 0},
		{"Name": "04-P1 DIMM 1-4", "PhysicalContext": "Memory", "ReadingCelsius": 28},
		{"Name": "05-P1 DIMM 5-8", "PhysicalContext": "Memory", "ReadingCelsius": 28},
		{"Name": "55-CPU 1 PkgTmp", "PhysicalContext": "CPU", "ReadingCelsius": 36}
	],
	"Fans": []
}`

// Thermal document of a rackmount chassis with seven fans, two of them
// inactive.
const rackmountThermal = `{
	"Id": "Thermal",
	"Name": "Thermal",
	"Temperatures": [],
	"Fans": [
		{"Name": "Fan 1", "Reading": 47, "ReadingUnits": "Percent"},
		{"Name": "Fan 2", "Reading": 47, "ReadingUnits": "Percent"},
		{"Name": "Fan 3", "Reading": 0, "ReadingUnits": "Percent"},
		{"Name": "Fan 4", "Reading": 47, "ReadingUnits": "Percent"},
		{"Name": "Fan 5", "Reading": 0, "ReadingUnits": "Percent"},
		{"Name": "Fan 6", "Reading": 48, "ReadingUnits": "Percent"},
		{"Name": "Fan 7", "Reading": 48, "ReadingUnits": "Percent"}
	]
}`

const rackmountPower = `{
	"Id": "Power",
	"Name": "Power",
	"PowerControl": {"PowerConsumedWatts": 280},
	"PowerSupplies": [
		{"Name": "PSU 1", "PowerInputWatts": 42},
		{"Name": "PSU 2", "PowerInputWatts": 43.5}
	]
}`

func init() {
	config.NewConfig(&config.Config{
		Scheme:  "http",
		Timeout: 5 * time.Second,
		User:    "admin",
		Pass:    "hunter2",
	})
}

type canned struct {
	lanPrint string
}

func (c canned) Run(ctx context.Context, argv []string) ([]byte, []byte, error) {
	if len(argv) > 1 && argv[1] == "-V" {
		return []byte("ipmitool version 1.8.19"), nil, nil
	}
	return []byte(c.lanPrint), nil, nil
}

// newFixtureServer spins a fixture iLO serving the given documents on the
// given chassis path and counting session creations.
func newFixtureServer(t *testing.T, chassis, thermal, power string, logins *int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/redfish/v1/SessionService/Sessions":
			atomic.AddInt32(logins, 1)
			w.Header().Set("X-Auth-Token", "token-abc123")
			w.Header().Set("Location", "/redfish/v1/SessionService/Sessions/1")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"Id": "1"}`))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/redfish/v1"+chassis+"/Thermal" && thermal != "":
			w.Write([]byte(thermal))
		case r.URL.Path == "/redfish/v1"+chassis+"/Power" && power != "":
			w.Write([]byte(power))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func lanPrintFor(t *testing.T, server *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(server.URL)
	assert.NoError(t, err)
	return "IP Address : " + u.Host + "\n"
}

// newILO returns a connected adapter backed by a fixture iLO serving the
// form factor's chassis path.
func newILO(t *testing.T, form FormFactor, thermal, power string) *ILO {
	t.Helper()

	chassis := rackmountChassis
	if form == Blade {
		chassis = bladeChassis
	}
	var logins int32
	server := newFixtureServer(t, chassis, thermal, power, &logins)

	b := bmc.New("Hpe", canned{lanPrint: lanPrintFor(t, server)})
	ctx := context.Background()
	assert.NoError(t, b.Discover(ctx))
	assert.NoError(t, b.Connect(ctx))
	t.Cleanup(func() { b.Close(ctx) })

	return NewILO(b, form)
}

func TestCompactThermals(t *testing.T) {
	assert := assert.New(t)

	ilo := newILO(t, Blade, compactThermal, "")

	reading, err := ilo.Thermals(context.Background())
	assert.NoError(err)

	expected := metric.NewReading()
	expected.Group(metric.Intake).Set("01-Inlet Ambient", metric.Temperature("Inlet", 23))
	cpu := expected.Group(metric.CPU)
	cpu.Set("02-CPU 1", metric.Temperature("CPU1", 40))
	cpu.Set("55-CPU 1 PkgTmp", metric.Temperature("CPU1", 36))
	memory := expected.Group(metric.Memory)
	memory.Set("04-P1 DIMM 1-4", metric.Temperature("P1 DIMM 1-4", 28))
	memory.Set("05-P1 DIMM 5-8", metric.Temperature("P1 DIMM 5-8", 28))

	assert.True(expected.Equal(reading), "got:\n%s", reading)
	assert.Equal([]string{"Intake", "CPU", "Memory"}, reading.Contexts())
}

func TestRackmountFans(t *testing.T) {
	assert := assert.New(t)

	ilo := newILO(t, Rackmount, rackmountThermal, "")

	reading, err := bmc.ReadFans(context.Background(), ilo)
	assert.NoError(err)

	group, ok := reading.Lookup(metric.Fan)
	assert.True(ok)
	assert.Equal([]string{"Fan 1", "Fan 2", "Fan 3", "Fan 4", "Fan 5", "Fan 6", "Fan 7"}, group.Labels())

	for i, percent := range []float64{47, 47, 0, 47, 0, 48, 48} {
		label := group.Labels()[i]
		m, ok := group.Get(label)
		assert.True(ok)
		assert.Equal(metric.New(label, percent, "Percent"), m)
	}
}

func TestThermalsFollowDocumentOrder(t *testing.T) {
	assert := assert.New(t)

	reordered := `{
		"Temperatures": [
			{"Name": "05-P1 DIMM 5-8", "ReadingCelsius": 28},
			{"Name": "04-P1 DIMM 1-4", "ReadingCelsius": 28},
			{"Name": "02-CPU 1", "ReadingCelsius": 40},
			{"Name": "01-Inlet Ambient", "ReadingCelsius": 23}
		]
	}`
	ilo := newILO(t, Rackmount, reordered, "")

	reading, err := ilo.Thermals(context.Background())
	assert.NoError(err)

	assert.Equal([]string{"Memory", "CPU", "Intake"}, reading.Contexts())
	memory, _ := reading.Lookup(metric.Memory)
	assert.Equal([]string{"05-P1 DIMM 5-8", "04-P1 DIMM 1-4"}, memory.Labels())
}

func TestRackmountPower(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ilo := newILO(t, Rackmount, "", rackmountPower)

	consumption, err := bmc.ReadPowerConsumption(ctx, ilo)
	assert.NoError(err)
	group, _ := consumption.Lookup(metric.PowerDraw)
	m, ok := group.Get("Chassis")
	assert.True(ok)
	assert.Equal(metric.Power("Chassis", 280), m)

	// unchanged document, equal result
	again, err := bmc.ReadPowerConsumption(ctx, ilo)
	assert.NoError(err)
	assert.True(consumption.Equal(again))

	supplies, err := bmc.ReadPowerSupplies(ctx, ilo)
	assert.NoError(err)
	group, _ = supplies.Lookup(metric.PowerDraw)
	assert.Equal([]string{"PSU 1", "PSU 2"}, group.Labels())
	m, _ = group.Get("PSU 1")
	assert.Equal(metric.Power("PSU", 42), m)
	m, _ = group.Get("PSU 2")
	assert.Equal(metric.Power("PSU", 43.5), m)
}

func TestPrepareIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var logins int32
	server := newFixtureServer(t, rackmountChassis, rackmountThermal, "", &logins)

	h := New(canned{lanPrint: lanPrintFor(t, server)})
	assert.NoError(h.Prepare(ctx))
	t.Cleanup(func() { h.Close(ctx) })

	ctrl := h.Controller()
	assert.NotNil(ctrl)

	// repeated Prepare reuses the controller and the established session
	assert.NoError(h.Prepare(ctx))
	assert.Same(ctrl, h.Controller())
	assert.Equal(int32(1), atomic.LoadInt32(&logins))
}

func TestStringTypedReadings(t *testing.T) {
	assert := assert.New(t)

	// older firmware reports readings as strings
	quirky := `{
		"Temperatures": [
			{"Name": "01-Inlet Ambient", "ReadingCelsius": "23"}
		],
		"Fans": [
			{"Name": "Fan 1", "Reading": "47", "ReadingUnits": "Percent"}
		]
	}`
	ilo := newILO(t, Rackmount, quirky, "")

	reading, err := ilo.Thermals(context.Background())
	assert.NoError(err)
	group, ok := reading.Lookup(metric.Intake)
	assert.True(ok)
	m, _ := group.Get("01-Inlet Ambient")
	assert.Equal(metric.Temperature("Inlet", 23), m)

	fans, err := bmc.ReadFans(context.Background(), ilo)
	assert.NoError(err)
	group, _ = fans.Lookup(metric.Fan)
	m, _ = group.Get("Fan 1")
	assert.Equal(metric.New("Fan 1", 47, "Percent"), m)
}

func TestMissingThermalResource(t *testing.T) {
	assert := assert.New(t)

	// nothing served on the chassis path: every read degrades to empty
	ilo := newILO(t, Rackmount, "", "")

	reading, err := ilo.Thermals(context.Background())
	assert.NoError(err)
	assert.Equal(0, reading.Len())

	fans, err := bmc.ReadFans(context.Background(), ilo)
	assert.NoError(err)
	group, _ := fans.Lookup(metric.Fan)
	assert.Equal(0, group.Len())
}

func TestClassify(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		label string
		zone  metric.ThermalContext
		name  string
	}{
		{label: "01-Inlet Ambient", zone: metric.Intake, name: "Inlet"},
		{label: "02-CPU 1", zone: metric.CPU, name: "CPU1"},
		{label: "55-CPU 1 PkgTmp", zone: metric.CPU, name: "CPU1"},
		{label: "04-P1 DIMM 1-4", zone: metric.Memory, name: "P1 DIMM 1-4"},
		{label: "03-P/S 1", zone: metric.PowerSupply, name: "P/S 1"},
		{label: "10-Chipset", zone: metric.SystemBoard, name: "Chipset"},
		{label: "13-VR P1", zone: metric.SystemBoard, name: "VR P1"},
		// labels without an ordinal prefix stay verbatim
		{label: "Ambient Zone", zone: metric.Intake, name: "Ambient"},
	}

	for _, test := range tests {
		t.Run(test.label, func(t *testing.T) {
			zone, name := classify(test.label)
			assert.Equal(test.zone, zone)
			assert.Equal(test.name, name)
		})
	}
}

func TestFormFactorOf(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(Rackmount, formFactorOf("ProLiant DL380 Gen10"))
	assert.Equal(Blade, formFactorOf("ProLiant XL225n Gen10 Plus"))
	assert.Equal(Blade, formFactorOf("ProLiant BL460c Gen10"))
	assert.Equal(Rackmount, formFactorOf(""))
}
