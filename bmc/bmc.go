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

// Package bmc holds the controller contract and its generic aggregation
// logic: discovery of the management controller via local ipmitool, the
// Redfish session it owns, and the normalization of raw thermal/power
// documents into ordered metric groups.
package bmc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/benchkit/bmcsense/common"
	"github.com/benchkit/bmcsense/config"
	"github.com/benchkit/bmcsense/oem"
	"github.com/benchkit/bmcsense/redfish"
	"go.uber.org/zap"
)

// ErrNoAddress means discovery output carried no BMC IP address. Without an
// address the server cannot be monitored at all, so callers abort the run.
var ErrNoAddress = errors.New("cannot detect BMC ip")

func lanPrintCmd() []string { return []string{"ipmitool", "lan", "print"} }

func versionCmd() []string { return []string{"ipmitool", "-V"} }

// BMC is the generic management controller. It owns at most one Redfish
// session, released exactly once via Close. Vendor adapters embed it and
// override the document fetches; the generic controller reports nothing.
type BMC struct {
	vendorName string
	runner     CommandRunner
	props      map[string]string
	version    string
	session    *redfish.Client
	log        *zap.Logger
}

// New returns a controller for the named vendor, discovering through runner.
func New(vendorName string, runner CommandRunner) *BMC {
	return &BMC{
		vendorName: vendorName,
		runner:     runner,
		props:      make(map[string]string),
		log:        zap.L(),
	}
}

// Discover runs the local ipmitool probes and collects the controller's
// network settings. The version probe is best effort.
func (b *BMC) Discover(ctx context.Context) error {
	stdout, _, err := b.runner.Run(ctx, lanPrintCmd())
	if err != nil {
		return fmt.Errorf("%s: %w", strings.Join(lanPrintCmd(), " "), err)
	}
	for key, value := range parseLanPrint(stdout) {
		b.props[key] = value
	}

	if out, _, err := b.runner.Run(ctx, versionCmd()); err == nil {
		if fields := bytes.Fields(out); len(fields) >= 3 {
			b.version = string(fields[2])
		}
	}

	return nil
}

// parseLanPrint extracts the "key: value" rows of ipmitool lan print output.
func parseLanPrint(stdout []byte) map[string]string {
	props := make(map[string]string)
	for _, row := range bytes.Split(stdout, []byte("\n")) {
		key, value, found := bytes.Cut(row, []byte(": "))
		if !found {
			continue
		}
		k := string(bytes.TrimSpace(key))
		if k == "" {
			continue
		}
		props[k] = string(bytes.TrimSpace(value))
	}
	return props
}

// Property returns a discovered network setting by its ipmitool row name.
func (b *BMC) Property(key string) (string, bool) {
	value, ok := b.props[key]
	return value, ok
}

// IP returns the controller's address from discovery output.
func (b *BMC) IP() (string, error) {
	ip, ok := b.props["IP Address"]
	if !ok || ip == "" {
		return "", ErrNoAddress
	}
	return ip, nil
}

// Version returns the ipmitool version seen during discovery.
func (b *BMC) Version() string { return b.version }

// VendorName returns the owning vendor's name.
func (b *BMC) VendorName() string { return b.vendorName }

// Connect resolves credentials and opens the Redfish session. It is
// idempotent: an established session is reused.
func (b *BMC) Connect(ctx context.Context) error {
	if b.session != nil && b.session.LoggedIn() {
		return nil
	}

	ip, err := b.IP()
	if err != nil {
		return err
	}

	credential, err := common.BMCCreds.GetCredentials(ctx, b.vendorName)
	if err != nil {
		return err
	}

	if b.session == nil {
		b.session = redfish.NewClient(ip, credential.User, credential.Pass, config.GetConfig().Timeout)
	}

	if err := b.session.Login(ctx); err != nil {
		return err
	}

	b.log.Info("connected to bmc",
		zap.String("vendor", b.vendorName),
		zap.String("host", b.session.Host()))
	return nil
}

// Session exposes the remote session for vendor adapters.
func (b *BMC) Session() *redfish.Client { return b.session }

// Close logs the session out. Safe to call repeatedly and before Connect.
func (b *BMC) Close(ctx context.Context) error {
	if b.session == nil {
		return nil
	}
	return b.session.Logout(ctx)
}

// Document fetches a resource below the API prefix and decodes it into out.
// A resource that yielded no content (transport failure, error payload) is
// reported as ok=false with no error; decode failures of a delivered body
// propagate to the caller.
func (b *BMC) Document(ctx context.Context, path string, out interface{}) (bool, error) {
	if b.session == nil {
		return false, nil
	}
	raw, err := b.session.Get(ctx, path)
	if errors.Is(err, redfish.ErrNoContent) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

// ThermalDocument satisfies Controller. The generic controller does not know
// any chassis layout, so it has nothing to report; vendor adapters override.
func (b *BMC) ThermalDocument(ctx context.Context) (*oem.Thermal, error) {
	return nil, nil
}

// PowerDocument satisfies Controller; see ThermalDocument.
func (b *BMC) PowerDocument(ctx context.Context) (*oem.Power, error) {
	return nil, nil
}
