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

package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
)

/*
	CREATE TABLE work_assignment (
	    id TEXT PRIMARY KEY,
	    worker_id TEXT,
	    plan_id TEXT NOT NULL,
	    node_id TEXT NOT NULL,
	    operation_id TEXT NOT NULL DEFAULT '',
	    station_id TEXT NOT NULL DEFAULT '',
	    substation_id TEXT NOT NULL DEFAULT '',
	    status TEXT NOT NULL DEFAULT 'pending',
	    is_urgent BOOLEAN NOT NULL DEFAULT FALSE,
	    priority INTEGER NOT NULL DEFAULT 0,
	    sequence_number INTEGER NOT NULL DEFAULT 0,
	    estimated_start_time TIMESTAMPTZ,
	    estimated_end_time TIMESTAMPTZ,
	    nominal_time_seconds INTEGER NOT NULL DEFAULT 0,
	    effective_time_seconds INTEGER NOT NULL DEFAULT 0,
	    pre_production_reserved JSONB NOT NULL DEFAULT '{}',
	    actual_reserved JSONB NOT NULL DEFAULT '{}',
	    material_reservation_status TEXT NOT NULL DEFAULT 'none',
	    planned_output JSONB NOT NULL DEFAULT '{}',
	    actual_quantity NUMERIC NOT NULL DEFAULT 0,
	    defect_quantity NUMERIC NOT NULL DEFAULT 0,
	    input_scrap JSONB NOT NULL DEFAULT '{}',
	    production_scrap JSONB NOT NULL DEFAULT '{}',
	    notes TEXT NOT NULL DEFAULT '',
	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	    started_at TIMESTAMPTZ,
	    completed_at TIMESTAMPTZ,
	    CHECK (status IN ('pending','queued','ready','in_progress','paused','completed'))
	);
*/

const assignmentColumns = `id, worker_id, plan_id, node_id, operation_id, station_id, substation_id, status, is_urgent, priority, sequence_number, estimated_start_time, estimated_end_time, nominal_time_seconds, effective_time_seconds, pre_production_reserved::text, actual_reserved::text, material_reservation_status, planned_output::text, actual_quantity::text, defect_quantity::text, input_scrap::text, production_scrap::text, notes, created_at, started_at, completed_at`

// schedulerOrder is the strict total order of the FIFO scheduler: urgency
// first, then earliest planned start (nulls last), createdAt as tie-break.
const schedulerOrder = ` ORDER BY is_urgent DESC, estimated_start_time ASC NULLS LAST, created_at ASC`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (a models.WorkerAssignment, err error) {
	var preReserved, actualReserved, plannedOutput, inputScrap, productionScrap string
	var actualQty, defectQty string
	err = row.Scan(
		&a.ID, &a.WorkerID, &a.PlanID, &a.NodeID, &a.OperationID, &a.StationID, &a.SubstationID,
		&a.Status, &a.IsUrgent, &a.Priority, &a.SequenceNumber,
		&a.EstimatedStartTime, &a.EstimatedEndTime,
		&a.NominalTimeSeconds, &a.EffectiveTimeSeconds,
		&preReserved, &actualReserved, &a.MaterialReservationStatus,
		&plannedOutput, &actualQty, &defectQty, &inputScrap, &productionScrap,
		&a.Notes, &a.CreatedAt, &a.StartedAt, &a.CompletedAt)
	if err != nil {
		return models.WorkerAssignment{}, err
	}
	if a.PreProductionReserved, err = models.QuantityMapFromJSON(preReserved); err != nil {
		return models.WorkerAssignment{}, err
	}
	if a.ActualReserved, err = models.QuantityMapFromJSON(actualReserved); err != nil {
		return models.WorkerAssignment{}, err
	}
	if a.PlannedOutput, err = models.QuantityMapFromJSON(plannedOutput); err != nil {
		return models.WorkerAssignment{}, err
	}
	if a.InputScrap, err = models.QuantityMapFromJSON(inputScrap); err != nil {
		return models.WorkerAssignment{}, err
	}
	if a.ProductionScrap, err = models.QuantityMapFromJSON(productionScrap); err != nil {
		return models.WorkerAssignment{}, err
	}
	if a.ActualQuantity, err = decimal.NewFromString(actualQty); err != nil {
		return models.WorkerAssignment{}, err
	}
	if a.DefectQuantity, err = decimal.NewFromString(defectQty); err != nil {
		return models.WorkerAssignment{}, err
	}
	return a, nil
}

func statusStrings(statuses []models.AssignmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// GetAssignment reads one assignment without locking it.
func (c *Connection) GetAssignment(ctx context.Context, assignmentID string) (models.WorkerAssignment, error) {
	sqlStatement := `SELECT ` + assignmentColumns + ` FROM work_assignment WHERE id = $1`
	a, err := scanAssignment(c.Db.QueryRow(ctx, sqlStatement, assignmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.WorkerAssignment{}, models.NotFoundf("assignment %s not found", assignmentID)
	} else if err != nil {
		return models.WorkerAssignment{}, errDB(sqlStatement, err)
	}
	return a, nil
}

// GetAssignmentForUpdate reads one assignment inside tx with a row lock, so
// two concurrent transition attempts on the same assignment serialize.
func GetAssignmentForUpdate(ctx context.Context, tx pgx.Tx, assignmentID string) (models.WorkerAssignment, error) {
	sqlStatement := `SELECT ` + assignmentColumns + ` FROM work_assignment WHERE id = $1 FOR UPDATE`
	a, err := scanAssignment(tx.QueryRow(ctx, sqlStatement, assignmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.WorkerAssignment{}, models.NotFoundf("assignment %s not found", assignmentID)
	} else if err != nil {
		return models.WorkerAssignment{}, errDB(sqlStatement, err)
	}
	return a, nil
}

// ListAssignments returns assignments matching the filter, newest first.
func (c *Connection) ListAssignments(ctx context.Context, filter models.AssignmentFilter) ([]models.WorkerAssignment, error) {
	sqlStatement := `SELECT ` + assignmentColumns + ` FROM work_assignment
		WHERE ($1 = '' OR worker_id = $1)
		  AND ($2 = '' OR plan_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC`
	rows, err := c.Db.Query(ctx, sqlStatement, filter.WorkerID, filter.PlanID, string(filter.Status))
	if err != nil {
		return nil, errDB(sqlStatement, err)
	}
	defer rows.Close()

	var assignments []models.WorkerAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, errDB(sqlStatement, err)
		}
		assignments = append(assignments, a)
	}
	if err = rows.Err(); err != nil {
		return nil, errDB(sqlStatement, err)
	}
	return assignments, nil
}

// ListWorkerAssignments returns the worker's assignments in the statuses
// given, in scheduler order. Predecessor gating happens in the service layer.
func (c *Connection) ListWorkerAssignments(ctx context.Context, workerID string, statuses []models.AssignmentStatus) ([]models.WorkerAssignment, error) {
	sqlStatement := `SELECT ` + assignmentColumns + ` FROM work_assignment WHERE worker_id = $1 AND status = ANY($2)` + schedulerOrder
	rows, err := c.Db.Query(ctx, sqlStatement, workerID, statusStrings(statuses))
	if err != nil {
		return nil, errDB(sqlStatement, err)
	}
	defer rows.Close()

	var assignments []models.WorkerAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, errDB(sqlStatement, err)
		}
		assignments = append(assignments, a)
	}
	if err = rows.Err(); err != nil {
		return nil, errDB(sqlStatement, err)
	}
	return assignments, nil
}

// UpdateAssignmentStart binds the worker, stores the reservation outcome and
// moves the assignment to in_progress.
func UpdateAssignmentStart(
	ctx context.Context,
	tx pgx.Tx,
	assignmentID string,
	workerID string,
	reservedJSON string,
	reservationStatus models.ReservationStatus,
	startedAt time.Time) error {
	sqlStatement := `UPDATE work_assignment
		SET status = 'in_progress', worker_id = $2, actual_reserved = $3::jsonb,
		    material_reservation_status = $4, started_at = $5
		WHERE id = $1`
	cmdTag, err := tx.Exec(ctx, sqlStatement, assignmentID, workerID, reservedJSON, string(reservationStatus), startedAt)
	if err != nil {
		return errDB(sqlStatement, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return models.NotFoundf("assignment %s not found", assignmentID)
	}
	return nil
}

// UpdateAssignmentStatus is used by pause and resume; the status guard has
// already happened on the locked row.
func UpdateAssignmentStatus(ctx context.Context, tx pgx.Tx, assignmentID string, status models.AssignmentStatus) error {
	sqlStatement := `UPDATE work_assignment SET status = $2 WHERE id = $1`
	cmdTag, err := tx.Exec(ctx, sqlStatement, assignmentID, string(status))
	if err != nil {
		return errDB(sqlStatement, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return models.NotFoundf("assignment %s not found", assignmentID)
	}
	return nil
}

// CompleteUpdate carries the terminal field values written at completion.
type CompleteUpdate struct {
	AssignmentID         string
	ActualQuantity       decimal.Decimal
	DefectQuantity       decimal.Decimal
	InputScrapJSON       string
	ProductionScrapJSON  string
	Notes                string
	EffectiveTimeSeconds int
	CompletedAt          time.Time
}

// UpdateAssignmentComplete moves the assignment to its terminal state and
// stores the reported outcome.
func UpdateAssignmentComplete(ctx context.Context, tx pgx.Tx, u CompleteUpdate) error {
	sqlStatement := `UPDATE work_assignment
		SET status = 'completed', actual_quantity = $2::numeric, defect_quantity = $3::numeric,
		    input_scrap = $4::jsonb, production_scrap = $5::jsonb, notes = $6,
		    effective_time_seconds = $7, completed_at = $8
		WHERE id = $1`
	cmdTag, err := tx.Exec(ctx, sqlStatement,
		u.AssignmentID, u.ActualQuantity.String(), u.DefectQuantity.String(),
		u.InputScrapJSON, u.ProductionScrapJSON, u.Notes,
		u.EffectiveTimeSeconds, u.CompletedAt)
	if err != nil {
		return errDB(sqlStatement, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return models.NotFoundf("assignment %s not found", u.AssignmentID)
	}
	return nil
}

// GetWorkerStats aggregates the worker's assignment history. Reporting only;
// no invariant beyond accurate aggregation.
func (c *Connection) GetWorkerStats(ctx context.Context, workerID string) (models.WorkerStats, error) {
	sqlStatement := `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE status IN ('pending','queued','ready')),
		COUNT(*) FILTER (WHERE status = 'in_progress'),
		COUNT(*) FILTER (WHERE status = 'paused'),
		COUNT(*) FILTER (WHERE status = 'completed'),
		COALESCE(SUM(actual_quantity), 0)::text,
		COALESCE(SUM(defect_quantity), 0)::text,
		COALESCE(SUM(effective_time_seconds), 0)
		FROM work_assignment WHERE worker_id = $1`
	stats := models.WorkerStats{WorkerID: workerID}
	var produced, defects string
	err := c.Db.QueryRow(ctx, sqlStatement, workerID).Scan(
		&stats.TotalAssignments, &stats.Pending, &stats.InProgress, &stats.Paused, &stats.Completed,
		&produced, &defects, &stats.TotalEffectiveSeconds)
	if err != nil {
		return models.WorkerStats{}, errDB(sqlStatement, err)
	}
	if stats.TotalProduced, err = decimal.NewFromString(produced); err != nil {
		return models.WorkerStats{}, errDB(sqlStatement, err)
	}
	if stats.TotalDefects, err = decimal.NewFromString(defects); err != nil {
		return models.WorkerStats{}, errDB(sqlStatement, err)
	}
	return stats, nil
}
