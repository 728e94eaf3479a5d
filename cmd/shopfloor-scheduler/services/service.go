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

package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/activity"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/postgresql"
	"go.uber.org/zap"
)

// PlanGraph is the injected view onto the production-plan DAG. The postgres
// connection implements it; scheduler tests use a fake.
type PlanGraph interface {
	NodeMaterialRequirements(ctx context.Context, nodeID string) ([]models.MaterialRequirement, error)
	PredecessorsCompleted(ctx context.Context, nodeID string) (bool, error)
	NodeExists(ctx context.Context, nodeID string) (bool, error)
}

// ReservationPolicy decides what happens when a task is started while a
// required material has zero availability.
type ReservationPolicy string

const (
	// PolicyPermissive starts the task anyway and reports a warning;
	// production may deliberately run short of material.
	PolicyPermissive ReservationPolicy = "permissive"
	// PolicyStrict rejects the start.
	PolicyStrict ReservationPolicy = "strict"
)

// Service is the scheduling and lifecycle engine. It is stateless between
// requests; all shared state lives in postgres.
type Service struct {
	conn     *postgresql.Connection
	graph    PlanGraph
	activity activity.Sink
	policy   ReservationPolicy
}

func New(conn *postgresql.Connection, graph PlanGraph, sink activity.Sink, policy ReservationPolicy) *Service {
	if policy != PolicyStrict {
		policy = PolicyPermissive
	}
	return &Service{
		conn:     conn,
		graph:    graph,
		activity: sink,
		policy:   policy,
	}
}

var transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shopfloor_assignment_transitions_total",
	Help: "Number of assignment state transitions by type",
}, []string{"transition"})

var stockShortfallsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "shopfloor_stock_shortfalls_total",
	Help: "Number of reservations or completion draws that could not be fully satisfied",
})

// rollbackUnlessCommitted rolls the transaction back on every failure path.
// Use with defer right after Begin.
func rollbackUnlessCommitted(ctx context.Context, tx pgx.Tx, committed *bool) {
	if *committed {
		return
	}
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		zap.S().Errorf("Error rolling back transaction: %v", err)
	}
}
