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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/benchkit/bmcsense/bmc"
	"github.com/benchkit/bmcsense/buildinfo"
	"github.com/benchkit/bmcsense/collector"
	"github.com/benchkit/bmcsense/common"
	"github.com/benchkit/bmcsense/config"
	"github.com/benchkit/bmcsense/logger"
	"github.com/benchkit/bmcsense/metric"
	"github.com/benchkit/bmcsense/pool"
	bmcsense_vault "github.com/benchkit/bmcsense/vault"
	"github.com/benchkit/bmcsense/vendors"
	"github.com/benchkit/bmcsense/vendors/hpe"
	"go.uber.org/zap"

	"github.com/nrednav/cuid2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v3"
)

const app = "bmcsense"

var (
	a             = kingpin.New(app, "environmental telemetry collector for server BMCs")
	credFile      = a.Flag("config", "INI file with per-vendor BMC credentials").Default("config.cfg").Envar("BMCSENSE_CONFIG").String()
	username      = a.Flag("user", "BMC static username").Default("").Envar("BMC_USERNAME").String()
	password      = a.Flag("password", "BMC static password").Default("").Envar("BMC_PASSWORD").String()
	bmcTimeout    = a.Flag("timeout", "BMC request timeout").Default("10s").Envar("BMC_TIMEOUT").Duration()
	bmcScheme     = a.Flag("scheme", "BMC scheme to use").Default("https").Envar("BMC_SCHEME").String()
	sslVerify     = a.Flag("ssl-verify", "verify BMC TLS certificates").Default("false").Envar("BMC_SSL_VERIFY").Bool()
	logLevel      = a.Flag("log.level", "log level verbosity").PlaceHolder("[debug|info|warn|error]").Default("info").Envar("LOG_LEVEL").String()
	logFilePath   = a.Flag("log.file-path", "directory where log files are written in addition to stdout").Default("").Envar("LOG_FILE_PATH").String()
	listen        = a.Flag("listen", "serve Prometheus metrics on this address instead of a one-shot dump").Default("").Envar("BMCSENSE_LISTEN").String()
	format        = a.Flag("format", "one-shot output format").PlaceHolder("[text|yaml|json]").Default("text").Envar("BMCSENSE_FORMAT").String()
	vaultAddr     = a.Flag("vault.addr", "Vault instance to get BMC credentials from").Default("").Envar("VAULT_ADDRESS").String()
	vaultRoleID   = a.Flag("vault.role-id", "Vault Role ID for AppRole").Default("").Envar("VAULT_ROLE_ID").String()
	vaultSecretID = a.Flag("vault.secret-id", "Vault Secret ID for AppRole").Default("").Envar("VAULT_SECRET_ID").String()
	vaultMount    = a.Flag("vault.mount", "Vault KV mount holding BMC credentials").Default("kv2").Envar("VAULT_MOUNT").String()
	vaultPath     = a.Flag("vault.path", "path below the mount, secret name is the vendor name").Default("").Envar("VAULT_PATH").String()
	vaultUser     = a.Flag("vault.user-field", "secret field holding the username").Default("username").Envar("VAULT_USER_FIELD").String()
	vaultPass     = a.Flag("vault.password-field", "secret field holding the password").Default("password").Envar("VAULT_PASSWORD_FIELD").String()

	log *zap.Logger
)

var wg = sync.WaitGroup{}

func main() {
	a.HelpFlag.Short('h')
	a.Version(buildinfo.Version())

	if _, err := a.Parse(os.Args[1:]); err != nil {
		panic(fmt.Errorf("error parsing argument flags - %s", err.Error()))
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = ""
	}

	if *logFilePath != "" {
		fd, err := os.Stat(*logFilePath)
		if os.IsNotExist(err) {
			panic(err)
		}
		if !fd.IsDir() {
			panic(fmt.Errorf("%s is not a directory", *logFilePath))
		}
	}

	logger.Initialize(app, hostname, *logFilePath)
	logger.SetLevel(*logLevel)
	log = zap.L()
	defer logger.Flush()

	config.NewConfig(&config.Config{
		Scheme:          *bmcScheme,
		Timeout:         *bmcTimeout,
		SSLVerify:       *sslVerify,
		CredentialsFile: *credFile,
		User:            *username,
		Pass:            *password,
	})

	runID := cuid2.Generate()
	ctx := context.WithValue(context.Background(), "traceID", runID)

	doneRenew := make(chan bool, 1)
	tokenLifecycle := make(chan bool, 1)
	if *vaultRoleID != "" {
		v, err := bmcsense_vault.NewAppRoleClient(bmcsense_vault.Parameters{
			Address:         *vaultAddr,
			ApproleRoleID:   *vaultRoleID,
			ApproleSecretID: *vaultSecretID,
			MountPath:       *vaultMount,
			Path:            *vaultPath,
			UserField:       *vaultUser,
			PasswordField:   *vaultPass,
		})
		if err != nil {
			log.Fatal("failed to initialize vault client", zap.Error(err))
		}
		common.BMCCreds.Vault = v

		if *listen != "" {
			wg.Add(1)
			go v.RenewToken(ctx, doneRenew, tokenLifecycle, &wg)
		} else if err := v.Login(ctx); err != nil {
			log.Fatal("failed to authenticate to vault", zap.Error(err))
		}
	}

	runner := bmc.ExecRunner{}
	vendor := vendors.FirstDetected(hpe.New(runner))
	if vendor == nil {
		vendor = vendors.NewGeneric(runner)
	}
	log.Info("starting "+app,
		zap.String("version", buildinfo.Version()),
		zap.String("vendor", vendor.Name()),
		zap.String("trace_id", runID))

	if err := vendor.Prepare(ctx); err != nil {
		log.Fatal("failed to prepare bmc for vendor "+vendor.Name(), zap.Error(err))
	}

	if *listen != "" {
		serve(ctx, vendor, doneRenew, tokenLifecycle)
	} else if err := dump(ctx, vendor); err != nil {
		_ = vendor.Close(ctx)
		log.Fatal("collection failed", zap.Error(err))
	}

	if err := vendor.Close(ctx); err != nil {
		log.Error("failed to close bmc session", zap.Error(err))
	}
}

// dump performs a single collection and writes it to stdout.
func dump(ctx context.Context, vendor vendors.Vendor) error {
	ctrl := vendor.Controller()

	tasks := []*pool.Task{
		pool.NewTask(func() (*metric.Reading, error) { return bmc.ReadThermals(ctx, ctrl) }),
		pool.NewTask(func() (*metric.Reading, error) { return bmc.ReadFans(ctx, ctrl) }),
		pool.NewTask(func() (*metric.Reading, error) { return bmc.ReadPowerConsumption(ctx, ctrl) }),
		pool.NewTask(func() (*metric.Reading, error) { return bmc.ReadPowerSupplies(ctx, ctrl) }),
	}
	pool.NewPool(tasks, 1).Run()

	merged := metric.NewReading()
	for _, t := range tasks {
		if t.Err != nil {
			return t.Err
		}
		merged.Merge(t.Reading)
	}

	switch *format {
	case "yaml":
		out, err := yaml.Marshal(merged)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	case "json":
		out, err := json.MarshalIndent(merged, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		fmt.Print(merged.String())
	}
	return nil
}

// serve exposes the controller's readings on /metrics until terminated.
func serve(ctx context.Context, vendor vendors.Vendor, doneRenew, tokenLifecycle chan bool) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector.New(ctx, vendor.Controller()))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: *listen, Handler: mux}

	go func() {
		log.Info("serving metrics", zap.String("addr", *listen))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	doneRenew <- true
	tokenLifecycle <- true
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
	wg.Wait()
}
