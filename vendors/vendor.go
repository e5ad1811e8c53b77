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

// Package vendors defines the per-server vendor context that owns a
// controller and coordinates its one-time setup.
package vendors

import (
	"context"

	"github.com/benchkit/bmcsense/bmc"
)

// Vendor is the top-level per-server context. It owns exactly one
// controller; Prepare is idempotent and Close releases the remote session
// deterministically, exactly once.
type Vendor interface {
	Name() string
	Detect() bool
	Prepare(ctx context.Context) error
	Controller() bmc.Controller
	Close(ctx context.Context) error
}

// Generic is the fallback vendor used when no adapter detects the hardware.
// Its controller can discover and authenticate but reports no documents.
type Generic struct {
	runner bmc.CommandRunner
	bmc    *bmc.BMC
}

func NewGeneric(runner bmc.CommandRunner) *Generic {
	return &Generic{runner: runner}
}

func (g *Generic) Name() string { return "default" }

func (g *Generic) Detect() bool { return true }

func (g *Generic) Prepare(ctx context.Context) error {
	if g.bmc == nil {
		b := bmc.New(g.Name(), g.runner)
		if err := b.Discover(ctx); err != nil {
			return err
		}
		g.bmc = b
	}
	return g.bmc.Connect(ctx)
}

func (g *Generic) Controller() bmc.Controller { return g.bmc }

func (g *Generic) Close(ctx context.Context) error {
	if g.bmc == nil {
		return nil
	}
	return g.bmc.Close(ctx)
}

// FirstDetected returns the first vendor claiming the hardware it runs on.
// The caller appends a Generic fallback when it wants one.
func FirstDetected(candidates ...Vendor) Vendor {
	for _, v := range candidates {
		if v.Detect() {
			return v
		}
	}
	return nil
}
