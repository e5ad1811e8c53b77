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

// Package vault wraps the HashiCorp Vault client for AppRole-authenticated
// lookup of BMC credentials, used as a fallback when the local credentials
// file cannot serve a vendor.
package vault

import (
	"context"
	"fmt"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/api/auth/approle"
	"go.uber.org/zap"
)

type Parameters struct {
	// connection and credential parameters
	Address         string
	ApproleRoleID   string
	ApproleSecretID string
	CACertBytes     []byte

	// location and field names of the kv2 secrets
	MountPath     string
	Path          string
	UserField     string
	PasswordField string
}

type Vault struct {
	mu         sync.RWMutex
	client     *vault.Client
	Parameters Parameters
	isLoggedIn bool
}

// NewAppRoleClient builds a Vault client configured for AppRole
// authentication. Login happens in RenewToken.
func NewAppRoleClient(parameters Parameters) (*Vault, error) {
	config := vault.DefaultConfig()
	config.Address = parameters.Address
	if len(parameters.CACertBytes) > 0 {
		if err := config.ConfigureTLS(&vault.TLSConfig{
			CACertBytes: parameters.CACertBytes,
		}); err != nil {
			return nil, fmt.Errorf("unable to configure TLS: %w", err)
		}
	}

	client, err := vault.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize vault client: %w", err)
	}

	return &Vault{
		client:     client,
		Parameters: parameters,
	}, nil
}

// A combination of a RoleID and a SecretID is required to log into Vault
// with AppRole authentication method.
func (v *Vault) login(ctx context.Context) (*vault.Secret, error) {
	v.mu.RLock()
	roleID := v.Parameters.ApproleRoleID
	secretID := &approle.SecretID{FromString: v.Parameters.ApproleSecretID}
	v.mu.RUnlock()

	appRoleAuth, err := approle.NewAppRoleAuth(roleID, secretID)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize approle authentication method: %w", err)
	}

	authInfo, err := v.client.Auth().Login(ctx, appRoleAuth)
	if err != nil {
		return nil, fmt.Errorf("unable to login using approle auth method: %w", err)
	}

	return authInfo, nil
}

// Login authenticates once without starting lifecycle management, for
// one-shot runs.
func (v *Vault) Login(ctx context.Context) error {
	if _, err := v.login(ctx); err != nil {
		return err
	}
	v.setLoggedIn(true)
	return nil
}

// GetKVSecret fetches the latest version of the named secret from kv-v1 or
// kv-v2 depending on the configured mount.
func (v *Vault) GetKVSecret(ctx context.Context, secret string) (*vault.KVSecret, error) {
	secretPath := secret
	if v.Parameters.Path != "" {
		secretPath = fmt.Sprintf("%s/%s", v.Parameters.Path, secret)
	}

	var kvSecret *vault.KVSecret
	var err error
	if v.Parameters.MountPath != "kv2" {
		kvSecret, err = v.client.KVv1(v.Parameters.MountPath).Get(ctx, secretPath)
	} else {
		kvSecret, err = v.client.KVv2(v.Parameters.MountPath).Get(ctx, secretPath)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read secret: %w", err)
	}

	return kvSecret, nil
}

func (v *Vault) IsLoggedIn() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.isLoggedIn
}

func (v *Vault) setLoggedIn(b bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.isLoggedIn = b
}

func wait(sleepTime time.Duration, c chan bool) {
	time.Sleep(sleepTime)
	c <- true
}

// RenewToken logs in and keeps the auth token renewed until doneRenew is
// closed. Only used in serve mode; one-shot runs log in once via the first
// secret read.
func (v *Vault) RenewToken(ctx context.Context, doneRenew, tokenLifecycle chan bool, wg *sync.WaitGroup) {
	log := zap.L()
	retry := make(chan bool, 1)
	defer wg.Done()
	retry <- true

	for {
		select {
		case <-doneRenew:
			log.Info("stopping renew token go routine")
			return
		case <-retry:
			vaultLoginResp, err := v.login(ctx)
			if err != nil {
				log.Error("unable to authenticate to vault", zap.Error(err))
				v.setLoggedIn(false)
				go wait(10*time.Second, retry)
			} else {
				wg.Add(1)
				v.setLoggedIn(true)
				if tokenErr := v.manageTokenLifecycle(ctx, vaultLoginResp, tokenLifecycle, wg); tokenErr != nil {
					log.Error("unable to start managing token lifecycle", zap.Error(tokenErr))
				}
			}
		}
	}
}

// Starts token lifecycle management. Returns only fatal errors as errors,
// otherwise returns nil so we can attempt login again.
func (v *Vault) manageTokenLifecycle(ctx context.Context, token *vault.Secret, done chan bool, wg *sync.WaitGroup) error {
	log := zap.L()

	if token.Auth != nil && !token.Auth.Renewable {
		log.Info("token is not configured to be renewable. re-attempting login")
		return nil
	}

	watcher, err := v.client.NewLifetimeWatcher(&vault.LifetimeWatcherInput{
		Secret:    token,
		Increment: token.LeaseDuration / 2,
	})
	if err != nil {
		return fmt.Errorf("unable to initialize new lifetime watcher for renewing auth token: %w", err)
	}

	go watcher.Start()
	defer wg.Done()
	defer func() {
		log.Info("revoking token before shutdown")
		if err := v.client.Auth().Token().RevokeSelfWithContext(ctx, v.client.Token()); err != nil {
			log.Error("unable to revoke token", zap.Error(err))
		}
	}()
	defer watcher.Stop()

	for {
		select {
		case <-done:
			log.Info("stopping token watcher go routine")
			return nil
		case err := <-watcher.DoneCh():
			if err != nil {
				log.Error("failed to renew token. re-attempting login", zap.Error(err))
				return nil
			}
			// The token reached its max TTL.
			log.Info("token can no longer be renewed. re-attempting login")
			return nil
		case renewal := <-watcher.RenewCh():
			v.client.SetToken(renewal.Secret.Auth.ClientToken)
			log.Info("successfully renewed vault auth token")
		}
	}
}
