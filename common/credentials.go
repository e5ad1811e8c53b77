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

package common

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benchkit/bmcsense/config"
	bmcsense_vault "github.com/benchkit/bmcsense/vault"
	"go.uber.org/zap"
	"gopkg.in/ini.v1"
)

var (
	// BMCCreds resolves and caches BMC credentials per vendor name.
	BMCCreds = BMCCredentials{
		Creds: make(map[string]*Credential),
	}

	// ErrNoCredentials means no credential source could serve the vendor.
	ErrNoCredentials = errors.New("no credentials found")
)

type BMCCredentials struct {
	mu    sync.Mutex
	Creds map[string]*Credential
	Vault *bmcsense_vault.Vault
}

type Credential struct {
	User string
	Pass string
}

func (c *BMCCredentials) Get(key string) (*Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.Creds[key]
	return val, ok
}

func (c *BMCCredentials) Set(key string, value *Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Creds[key] = value
}

// GetCredentials resolves credentials for the given vendor name, in order:
// cached value, static user/pass from flags, the INI credentials file
// (vendor section, then "default"), and finally Vault when configured.
// Failure is fatal to the caller: a BMC we cannot authenticate to cannot
// contribute readings to a run.
func (c *BMCCredentials) GetCredentials(ctx context.Context, vendor string) (*Credential, error) {
	log := zap.L()

	if credential, ok := c.Get(vendor); ok {
		return credential, nil
	}

	cfg := config.GetConfig()
	if cfg.User != "" && cfg.Pass != "" {
		credential := &Credential{User: cfg.User, Pass: cfg.Pass}
		c.Set(vendor, credential)
		return credential, nil
	}

	if cfg.CredentialsFile != "" {
		credential, err := fromFile(cfg.CredentialsFile, vendor)
		if err == nil {
			c.Set(vendor, credential)
			return credential, nil
		}
		log.Error("issue retrieving credentials from file for vendor "+vendor, zap.Error(err))
	}

	if c.Vault != nil {
		secret, err := c.Vault.GetKVSecret(ctx, vendor)
		if err != nil {
			log.Error("issue retrieving credentials from vault for vendor "+vendor, zap.Error(err))
			return nil, fmt.Errorf("issue retrieving credentials from vault for vendor %s: %w", vendor, err)
		}

		user, ok := secret.Data[c.Vault.Parameters.UserField].(string)
		if !ok {
			return nil, fmt.Errorf("the secret for vendor %s is missing the %q field", vendor, c.Vault.Parameters.UserField)
		}
		pass, ok := secret.Data[c.Vault.Parameters.PasswordField].(string)
		if !ok {
			return nil, fmt.Errorf("the secret for vendor %s is missing the %q field", vendor, c.Vault.Parameters.PasswordField)
		}

		credential := &Credential{User: user, Pass: pass}
		c.Set(vendor, credential)
		return credential, nil
	}

	return nil, fmt.Errorf("%w for vendor %s", ErrNoCredentials, vendor)
}

// fromFile reads an INI credentials file with one section per vendor name
// plus a "default" fallback. Both username and password keys are required.
func fromFile(path, vendor string) (*Credential, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read credentials file %s: %w", path, err)
	}

	var section *ini.Section
	for _, name := range []string{vendor, "default"} {
		if s, err := file.GetSection(name); err == nil {
			section = s
			break
		}
	}
	if section == nil {
		return nil, fmt.Errorf("%w: no [%s] or [default] section in %s", ErrNoCredentials, vendor, path)
	}

	user, err := section.GetKey("username")
	if err != nil {
		return nil, fmt.Errorf("section [%s] of %s: %w", section.Name(), path, err)
	}
	pass, err := section.GetKey("password")
	if err != nil {
		return nil, fmt.Errorf("section [%s] of %s: %w", section.Name(), path, err)
	}

	return &Credential{User: user.String(), Pass: pass.String()}, nil
}
