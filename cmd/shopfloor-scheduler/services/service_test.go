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
	"testing"
	"time"

	"github.com/EagleChen/mapmutex"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/activity"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/postgresql"
)

// fakeGraph is the in-memory PlanGraph used by the service tests.
type fakeGraph struct {
	requirements map[string][]models.MaterialRequirement
	blocked      map[string]bool
	missing      map[string]bool
}

func (f *fakeGraph) NodeMaterialRequirements(_ context.Context, nodeID string) ([]models.MaterialRequirement, error) {
	return f.requirements[nodeID], nil
}

func (f *fakeGraph) PredecessorsCompleted(_ context.Context, nodeID string) (bool, error) {
	return !f.blocked[nodeID], nil
}

func (f *fakeGraph) NodeExists(_ context.Context, nodeID string) (bool, error) {
	return !f.missing[nodeID], nil
}

// recordingSink captures published activity events.
type recordingSink struct {
	events []activity.Event
}

func (r *recordingSink) Publish(event activity.Event) {
	r.events = append(r.events, event)
}

func (r *recordingSink) Close() {}

func newTestService(t *testing.T, graph *fakeGraph, policy ReservationPolicy) (*Service, pgxmock.PgxPoolIface, *recordingSink) {
	mocked, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("Failed to create mock connection: %v", err)
	}
	conn := &postgresql.Connection{
		Db:    mocked,
		Mutex: mapmutex.NewMapMutex(),
	}
	sink := &recordingSink{}
	return New(conn, graph, sink, policy), mocked, sink
}

// assignmentColumns mirrors the work_assignment select list the stores use.
var assignmentColumns = []string{
	"id", "worker_id", "plan_id", "node_id", "operation_id", "station_id", "substation_id",
	"status", "is_urgent", "priority", "sequence_number",
	"estimated_start_time", "estimated_end_time",
	"nominal_time_seconds", "effective_time_seconds",
	"pre_production_reserved", "actual_reserved", "material_reservation_status",
	"planned_output", "actual_quantity", "defect_quantity", "input_scrap", "production_scrap",
	"notes", "created_at", "started_at", "completed_at",
}

type assignmentRow struct {
	id        string
	workerID  *string
	nodeID    string
	status    string
	reserved  string
	startedAt *time.Time
}

func (a assignmentRow) values() []any {
	reserved := a.reserved
	if reserved == "" {
		reserved = "{}"
	}
	return []any{
		a.id, a.workerID, "plan-1", a.nodeID, "op-1", "station-1", "sub-1",
		models.AssignmentStatus(a.status), false, 0, 0,
		nil, nil,
		600, 0,
		"{}", reserved, models.ReservationStatus("none"),
		"{}", "0", "0", "{}", "{}",
		"", time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC), a.startedAt, nil,
	}
}
