// Copyright 2023 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

/*
Target architecture:

Incoming REST call --> controllers
The handlers parse the parameters and delegate to the services package,
which owns the transactions and the scheduling and reservation rules. The
postgresql package only reads and writes rows; the pure allocation math
lives in services and does no database calls.
*/

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/activity"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/controllers"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/postgresql"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/services"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/internal"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var buildtime string
var shutdownEnabled bool

func main() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION")
	encoderConfig := ecszap.NewDefaultEncoderConfig()
	var core zapcore.Core
	switch logLevel {
	case "DEVELOPMENT":
		core = ecszap.NewCore(encoderConfig, os.Stdout, zap.DebugLevel)
	default:
		core = ecszap.NewCore(encoderConfig, os.Stdout, zap.InfoLevel)
	}
	logger := zap.New(core, zap.AddCaller())
	zap.ReplaceGlobals(logger)
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	zap.S().Infof("This is shopfloor-scheduler build date: %s", buildtime)

	redisURI, err := env.GetAsString("REDIS_URI", false, "")
	if err != nil {
		zap.S().Fatalf("Failed to get REDIS_URI from env: %s", err)
	}
	redisPassword, err := env.GetAsString("REDIS_PASSWORD", false, "")
	if err != nil {
		zap.S().Fatalf("Failed to get REDIS_PASSWORD from env: %s", err)
	}
	dryRun, err := env.GetAsString("DRY_RUN", false, "")
	if err != nil {
		zap.S().Fatalf("Failed to get DRY_RUN from env: %s", err)
	}
	internal.InitCache(redisURI, redisPassword, 0, dryRun)
	internal.InitMemcache()

	health := healthcheck.NewHandler()
	shutdownEnabled = false
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	health.AddReadinessCheck("shutdownEnabled", isShutdownEnabled())
	go func() {
		errX := http.ListenAndServe("0.0.0.0:8086", health)
		if errX != nil {
			zap.S().Errorf("Error starting healthcheck: %s", errX)
		}
	}()

	conn := postgresql.GetOrInit()

	sink := setupActivitySink()

	policyName, err := env.GetAsString("RESERVATION_POLICY", false, string(services.PolicyPermissive))
	if err != nil {
		zap.S().Fatalf("Failed to get RESERVATION_POLICY from env: %s", err)
	}
	service := services.New(conn, conn, sink, services.ReservationPolicy(policyName))
	controllers.Init(service)

	version, err := env.GetAsString("VERSION", false, "1")
	if err != nil {
		zap.S().Fatalf("Failed to get VERSION from env: %s", err)
	}
	go SetupRestAPI(version)

	// Allow graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM)

	go func() {
		// Kubernetes sends SIGTERM 30 seconds before shutting down the pod
		sig := <-sigs
		zap.S().Infof("Received SIGTERM: %s", sig)
		ShutdownApplicationGraceful(conn, sink)
	}()

	select {} // block forever
}

// setupActivitySink returns the kafka sink when brokers are configured, the
// log-only sink otherwise.
func setupActivitySink() activity.Sink {
	brokers, err := env.GetAsString("KAFKA_BOOTSTRAP_SERVERS", false, "")
	if err != nil {
		zap.S().Fatalf("Failed to get KAFKA_BOOTSTRAP_SERVERS from env: %s", err)
	}
	if brokers == "" {
		zap.S().Infof("No kafka brokers configured, activity events go to the log")
		return activity.LogSink{}
	}
	topic, err := env.GetAsString("ACTIVITY_TOPIC", false, "shopfloor.activity")
	if err != nil {
		zap.S().Fatalf("Failed to get ACTIVITY_TOPIC from env: %s", err)
	}
	sink, err := activity.NewKafkaSink(brokers, topic)
	if err != nil {
		zap.S().Fatalf("Failed to connect to kafka brokers %s: %s", brokers, err)
	}
	zap.S().Infof("Publishing activity events to %s on %s", topic, brokers)
	return sink
}

func isShutdownEnabled() healthcheck.Check {
	return func() error {
		if shutdownEnabled {
			return errors.New("shutdown")
		}
		return nil
	}
}

// ShutdownApplicationGraceful drains in-flight requests, then closes the
// activity producer and the database pool.
func ShutdownApplicationGraceful(conn *postgresql.Connection, sink activity.Sink) {
	zap.S().Infof("Shutting down application")
	shutdownEnabled = true

	time.Sleep(15 * time.Second) // Wait until the load balancer stops sending requests

	sink.Close()
	conn.Shutdown()

	zap.S().Infof("Successful shutdown. Exiting.")
	os.Exit(0)
}
