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

// Package collector exposes a controller's normalized readings to
// Prometheus for the long-running serve mode.
package collector

import (
	"context"
	"sync"

	"github.com/benchkit/bmcsense/bmc"
	"github.com/benchkit/bmcsense/metric"
	"github.com/benchkit/bmcsense/pool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector reads thermal, fan and power groups from one controller on each
// scrape. Tasks run at concurrency 1 and scrapes serialize on mu: the
// underlying session is not reentrant and the gauge vectors are shared
// between scrapes.
type Collector struct {
	ctx  context.Context
	ctrl bmc.Controller
	mu   sync.Mutex

	up          prometheus.Gauge
	temperature *prometheus.GaugeVec
	fanSpeed    *prometheus.GaugeVec
	power       *prometheus.GaugeVec
}

// New returns a collector for the given controller.
func New(ctx context.Context, ctrl bmc.Controller) *Collector {
	return &Collector{
		ctx:  ctx,
		ctrl: ctrl,
		up: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "up",
			Help: "Was the last read of the bmc successful.",
		}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bmcsense_temperature_celsius",
			Help: "Temperature sensor reading grouped by thermal zone.",
		}, []string{"zone", "sensor", "name"}),
		fanSpeed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bmcsense_fan_speed",
			Help: "Fan reading in vendor units.",
		}, []string{"sensor", "units"}),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bmcsense_power_watts",
			Help: "Power draw readings for chassis and power supplies.",
		}, []string{"sensor", "name"}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.up.Describe(ch)
	c.temperature.Describe(ch)
	c.fanSpeed.Describe(ch)
	c.power.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.temperature.Reset()
	c.fanSpeed.Reset()
	c.power.Reset()

	thermals := pool.NewTask(func() (*metric.Reading, error) { return bmc.ReadThermals(c.ctx, c.ctrl) })
	fans := pool.NewTask(func() (*metric.Reading, error) { return bmc.ReadFans(c.ctx, c.ctrl) })
	consumption := pool.NewTask(func() (*metric.Reading, error) { return bmc.ReadPowerConsumption(c.ctx, c.ctrl) })
	supplies := pool.NewTask(func() (*metric.Reading, error) { return bmc.ReadPowerSupplies(c.ctx, c.ctrl) })

	tasks := []*pool.Task{thermals, fans, consumption, supplies}
	pool.NewPool(tasks, 1).Run()

	up := 1.0
	for _, t := range tasks {
		if t.Err != nil {
			zap.L().Error("bmc read failed during scrape", zap.Error(t.Err))
			up = 0.0
		}
	}

	if thermals.Err == nil {
		thermals.Reading.Each(func(zone, sensor string, m metric.Metric) {
			c.temperature.WithLabelValues(zone, sensor, m.Name).Set(m.Value)
		})
	}
	if fans.Err == nil {
		fans.Reading.Each(func(_, sensor string, m metric.Metric) {
			c.fanSpeed.WithLabelValues(sensor, m.Unit).Set(m.Value)
		})
	}
	if consumption.Err == nil {
		consumption.Reading.Each(func(_, sensor string, m metric.Metric) {
			c.power.WithLabelValues(sensor, m.Name).Set(m.Value)
		})
	}
	if supplies.Err == nil {
		supplies.Reading.Each(func(_, sensor string, m metric.Metric) {
			c.power.WithLabelValues(sensor, m.Name).Set(m.Value)
		})
	}

	c.up.Set(up)
	c.up.Collect(ch)
	c.temperature.Collect(ch)
	c.fanSpeed.Collect(ch)
	c.power.Collect(ch)
}
