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

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/activity"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
)

var lotColumns = []string{"material_code", "lot_number", "quantity_available", "received_at"}

var reservationColumns = []string{
	"assignment_id", "material_code", "lot_number", "reserved_qty", "consumed_qty", "draw_position",
}

func expectAssignmentForUpdate(mock pgxmock.PgxPoolIface, row assignmentRow) {
	mock.ExpectQuery(`SELECT .+ FROM work_assignment WHERE id = \$1 FOR UPDATE`).
		WithArgs(row.id).
		WillReturnRows(mock.NewRows(assignmentColumns).AddRow(row.values()...))
}

func TestStartAssignment(t *testing.T) {
	base := time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC)
	graph := &fakeGraph{
		requirements: map[string][]models.MaterialRequirement{
			"node-1": {{MaterialCode: "MAT-A", RequiredQuantity: d("80")}},
		},
	}

	t.Run("full reservation across two lots", func(t *testing.T) {
		s, mock, sink := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, assignmentRow{id: "a-1", nodeID: "node-1", status: "pending"})
		mock.ExpectQuery(`SELECT material_code, lot_number, quantity_available::text, received_at`).
			WithArgs("MAT-A").
			WillReturnRows(mock.NewRows(lotColumns).
				AddRow("MAT-A", "L1", "30", base).
				AddRow("MAT-A", "L2", "60", base.Add(time.Hour)))
		mock.ExpectExec(`UPDATE material_lot SET quantity_available`).
			WithArgs("MAT-A", "L1", "-30").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO material_reservation`).
			WithArgs("a-1", "MAT-A", "L1", "30", 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE material_lot SET quantity_available`).
			WithArgs("MAT-A", "L2", "-50").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO material_reservation`).
			WithArgs("a-1", "MAT-A", "L2", "50", 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE work_assignment`).
			WithArgs("a-1", "w-1", pgxmock.AnyArg(), "full", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO assignment_status_history`).
			WithArgs("a-1", "pending", "in_progress", "w-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		result, err := s.StartAssignment(context.Background(), "a-1", "w-1")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusInProgress, result.Assignment.Status)
		assert.Equal(t, models.ReservationFull, result.Assignment.MaterialReservationStatus)
		assert.Empty(t, result.Warnings)
		assert.Len(t, result.Allocations, 1)
		assert.True(t, result.Assignment.ActualReserved.Get("MAT-A").Equal(d("80")))
		assert.Len(t, sink.events, 1)
		assert.Equal(t, activity.EventAssignmentStarted, sink.events[0].Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("partial reservation warns but succeeds", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, assignmentRow{id: "a-2", nodeID: "node-1", status: "ready"})
		mock.ExpectQuery(`SELECT material_code, lot_number, quantity_available::text, received_at`).
			WithArgs("MAT-A").
			WillReturnRows(mock.NewRows(lotColumns).AddRow("MAT-A", "L1", "50", base))
		mock.ExpectExec(`UPDATE material_lot SET quantity_available`).
			WithArgs("MAT-A", "L1", "-50").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO material_reservation`).
			WithArgs("a-2", "MAT-A", "L1", "50", 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE work_assignment`).
			WithArgs("a-2", "w-1", pgxmock.AnyArg(), "partial", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO assignment_status_history`).
			WithArgs("a-2", "ready", "in_progress", "w-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		result, err := s.StartAssignment(context.Background(), "a-2", "w-1")
		assert.NoError(t, err)
		assert.Equal(t, models.ReservationPartial, result.Assignment.MaterialReservationStatus)
		assert.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "shortfall")
		assert.True(t, result.Allocations[0].Shortfall.Equal(d("30")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("strict policy rejects start on empty stock", func(t *testing.T) {
		s, mock, sink := newTestService(t, graph, PolicyStrict)
		defer mock.Close()

		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, assignmentRow{id: "a-3", nodeID: "node-1", status: "pending"})
		mock.ExpectQuery(`SELECT material_code, lot_number, quantity_available::text, received_at`).
			WithArgs("MAT-A").
			WillReturnRows(mock.NewRows(lotColumns))
		mock.ExpectRollback()

		_, err := s.StartAssignment(context.Background(), "a-3", "w-1")
		assert.Error(t, err)
		assert.Equal(t, models.KindInsufficientStock, models.KindOf(err))
		assert.Empty(t, sink.events)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cannot start an assignment already in progress", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()
		worker := "w-1"

		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, assignmentRow{id: "a-4", nodeID: "node-1", status: "in_progress", workerID: &worker})
		mock.ExpectRollback()

		_, err := s.StartAssignment(context.Background(), "a-4", "w-1")
		assert.Error(t, err)
		assert.Equal(t, models.KindInvalidStateTransition, models.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cannot start another worker's assignment", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()
		other := "w-2"

		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, assignmentRow{id: "a-5", nodeID: "node-1", status: "queued", workerID: &other})
		mock.ExpectRollback()

		_, err := s.StartAssignment(context.Background(), "a-5", "w-1")
		assert.Error(t, err)
		assert.Equal(t, models.KindForbidden, models.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing workerId", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		_, err := s.StartAssignment(context.Background(), "a-6", "")
		assert.Error(t, err)
		assert.Equal(t, models.KindValidation, models.KindOf(err))
	})

	t.Run("concurrent transition on the same assignment is a conflict", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		// Another request holds the per-assignment lock; no transaction is
		// opened for the losing request.
		assert.True(t, s.conn.Mutex.TryLock("a-7"))
		defer s.conn.Mutex.Unlock("a-7")

		_, err := s.StartAssignment(context.Background(), "a-7", "w-1")
		assert.Error(t, err)
		assert.Equal(t, models.KindConflict, models.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPauseAndResume(t *testing.T) {
	graph := &fakeGraph{}
	worker := "w-1"

	t.Run("pause then resume", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, assignmentRow{id: "a-1", nodeID: "node-1", status: "in_progress", workerID: &worker})
		mock.ExpectExec(`UPDATE work_assignment SET status = \$2 WHERE id = \$1`).
			WithArgs("a-1", "paused").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO assignment_status_history`).
			WithArgs("a-1", "in_progress", "paused", "w-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		result, err := s.PauseAssignment(context.Background(), "a-1", "w-1")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusPaused, result.Assignment.Status)

		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, assignmentRow{id: "a-1", nodeID: "node-1", status: "paused", workerID: &worker})
		mock.ExpectExec(`UPDATE work_assignment SET status = \$2 WHERE id = \$1`).
			WithArgs("a-1", "in_progress").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO assignment_status_history`).
			WithArgs("a-1", "paused", "in_progress", "w-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		result, err = s.ResumeAssignment(context.Background(), "a-1", "w-1")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusInProgress, result.Assignment.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pause requires in_progress", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, assignmentRow{id: "a-2", nodeID: "node-1", status: "pending"})
		mock.ExpectRollback()

		_, err := s.PauseAssignment(context.Background(), "a-2", "w-1")
		assert.Error(t, err)
		assert.Equal(t, models.KindInvalidStateTransition, models.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("resume by a different worker is forbidden", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, assignmentRow{id: "a-3", nodeID: "node-1", status: "paused", workerID: &worker})
		mock.ExpectRollback()

		_, err := s.ResumeAssignment(context.Background(), "a-3", "w-2")
		assert.Error(t, err)
		assert.Equal(t, models.KindForbidden, models.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCompleteAssignment(t *testing.T) {
	base := time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC)
	worker := "w-1"
	startedAt := base.Add(time.Hour)
	graph := &fakeGraph{
		requirements: map[string][]models.MaterialRequirement{
			"node-1": {{MaterialCode: "MAT-A", RequiredQuantity: d("5")}},
		},
	}

	inProgress := func(id string) assignmentRow {
		return assignmentRow{id: id, nodeID: "node-1", status: "in_progress", workerID: &worker, startedAt: &startedAt}
	}

	t.Run("surplus returns to most recently drawn lot", func(t *testing.T) {
		s, mock, sink := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		// reserved 50 over two lots, actual use 5*8 = 40, surplus 10
		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, inProgress("a-1"))
		mock.ExpectQuery(`SELECT assignment_id, material_code, lot_number, reserved_qty::text, consumed_qty::text, draw_position`).
			WithArgs("a-1").
			WillReturnRows(mock.NewRows(reservationColumns).
				AddRow("a-1", "MAT-A", "L1", "30", "0", 0).
				AddRow("a-1", "MAT-A", "L2", "20", "0", 1))
		mock.ExpectExec(`UPDATE material_lot SET quantity_available`).
			WithArgs("MAT-A", "L2", "10").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`UPDATE material_reservation SET consumed_qty`).
			WithArgs("a-1", "MAT-A", "L1", "30").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`UPDATE material_reservation SET consumed_qty`).
			WithArgs("a-1", "MAT-A", "L2", "10").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`UPDATE work_assignment`).
			WithArgs("a-1", "8", "0", "{}", "{}", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO assignment_status_history`).
			WithArgs("a-1", "in_progress", "completed", "w-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		result, err := s.CompleteAssignment(context.Background(), "a-1", "w-1", models.Outcome{
			QuantityProduced: d("8"),
		})
		assert.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, result.Assignment.Status)
		assert.Equal(t, 1, result.MaterialsProcessed)
		adjustment := result.Adjustments[0]
		assert.True(t, adjustment.Reserved.Equal(d("50")))
		assert.True(t, adjustment.Consumed.Equal(d("40")))
		assert.True(t, adjustment.Delta.Equal(d("10")))
		assert.Len(t, sink.events, 1)
		assert.Equal(t, activity.EventAssignmentCompleted, sink.events[0].Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("overdraw consumes reservation and draws extra FIFO", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		// reserved 50, actual use 5*12 = 60, overdraw 10 served by L3
		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, inProgress("a-2"))
		mock.ExpectQuery(`SELECT assignment_id, material_code, lot_number, reserved_qty::text, consumed_qty::text, draw_position`).
			WithArgs("a-2").
			WillReturnRows(mock.NewRows(reservationColumns).
				AddRow("a-2", "MAT-A", "L1", "30", "0", 0).
				AddRow("a-2", "MAT-A", "L2", "20", "0", 1))
		mock.ExpectExec(`UPDATE material_reservation SET consumed_qty`).
			WithArgs("a-2", "MAT-A", "L1", "30").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`UPDATE material_reservation SET consumed_qty`).
			WithArgs("a-2", "MAT-A", "L2", "20").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery(`SELECT material_code, lot_number, quantity_available::text, received_at`).
			WithArgs("MAT-A").
			WillReturnRows(mock.NewRows(lotColumns).AddRow("MAT-A", "L3", "25", base.Add(2*time.Hour)))
		mock.ExpectExec(`UPDATE material_lot SET quantity_available`).
			WithArgs("MAT-A", "L3", "-10").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`(?s)INSERT INTO material_reservation.+ON CONFLICT`).
			WithArgs("a-2", "MAT-A", "L3", "10", 2).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE work_assignment`).
			WithArgs("a-2", "12", "0", "{}", "{}", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO assignment_status_history`).
			WithArgs("a-2", "in_progress", "completed", "w-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		result, err := s.CompleteAssignment(context.Background(), "a-2", "w-1", models.Outcome{
			QuantityProduced: d("12"),
		})
		assert.NoError(t, err)
		adjustment := result.Adjustments[0]
		assert.True(t, adjustment.Consumed.Equal(d("60")))
		assert.True(t, adjustment.Delta.Equal(d("-10")))
		assert.True(t, adjustment.UnresolvedShortfall.IsZero())
		assert.Empty(t, result.Warnings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("overdraw with empty stock records unresolved shortfall", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, inProgress("a-3"))
		mock.ExpectQuery(`SELECT assignment_id, material_code, lot_number, reserved_qty::text, consumed_qty::text, draw_position`).
			WithArgs("a-3").
			WillReturnRows(mock.NewRows(reservationColumns).
				AddRow("a-3", "MAT-A", "L1", "50", "0", 0))
		mock.ExpectExec(`UPDATE material_reservation SET consumed_qty`).
			WithArgs("a-3", "MAT-A", "L1", "50").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery(`SELECT material_code, lot_number, quantity_available::text, received_at`).
			WithArgs("MAT-A").
			WillReturnRows(mock.NewRows(lotColumns))
		mock.ExpectExec(`UPDATE work_assignment`).
			WithArgs("a-3", "12", "0", "{}", "{}", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO assignment_status_history`).
			WithArgs("a-3", "in_progress", "completed", "w-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		result, err := s.CompleteAssignment(context.Background(), "a-3", "w-1", models.Outcome{
			QuantityProduced: d("12"),
		})
		assert.NoError(t, err)
		adjustment := result.Adjustments[0]
		assert.True(t, adjustment.Consumed.Equal(d("50")))
		assert.True(t, adjustment.UnresolvedShortfall.Equal(d("10")))
		assert.Len(t, result.Warnings, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scrap on unreserved material draws fresh", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		// MAT-B has no requirement ratio and no reservation, only scrap 3
		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, inProgress("a-4"))
		mock.ExpectQuery(`SELECT assignment_id, material_code, lot_number, reserved_qty::text, consumed_qty::text, draw_position`).
			WithArgs("a-4").
			WillReturnRows(mock.NewRows(reservationColumns).
				AddRow("a-4", "MAT-A", "L1", "50", "0", 0))
		// MAT-A settles exactly: 5*10 = 50
		mock.ExpectExec(`UPDATE material_reservation SET consumed_qty`).
			WithArgs("a-4", "MAT-A", "L1", "50").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		// MAT-B overdraw of 3 against current stock
		mock.ExpectQuery(`SELECT material_code, lot_number, quantity_available::text, received_at`).
			WithArgs("MAT-B").
			WillReturnRows(mock.NewRows(lotColumns).AddRow("MAT-B", "B1", "9", base))
		mock.ExpectExec(`UPDATE material_lot SET quantity_available`).
			WithArgs("MAT-B", "B1", "-3").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`(?s)INSERT INTO material_reservation.+ON CONFLICT`).
			WithArgs("a-4", "MAT-B", "B1", "3", 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`UPDATE work_assignment`).
			WithArgs("a-4", "10", "0", pgxmock.AnyArg(), "{}", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(`INSERT INTO assignment_status_history`).
			WithArgs("a-4", "in_progress", "completed", "w-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		result, err := s.CompleteAssignment(context.Background(), "a-4", "w-1", models.Outcome{
			QuantityProduced: d("10"),
			InputScrap:       models.QuantityMap{"MAT-B": d("3")},
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, result.MaterialsProcessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("double complete is rejected", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		mock.ExpectBeginTx(pgx.TxOptions{})
		expectAssignmentForUpdate(mock, assignmentRow{id: "a-5", nodeID: "node-1", status: "completed", workerID: &worker})
		mock.ExpectRollback()

		_, err := s.CompleteAssignment(context.Background(), "a-5", "w-1", models.Outcome{QuantityProduced: d("1")})
		assert.Error(t, err)
		assert.Equal(t, models.KindInvalidStateTransition, models.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative quantities rejected before any lock", func(t *testing.T) {
		s, mock, _ := newTestService(t, graph, PolicyPermissive)
		defer mock.Close()

		_, err := s.CompleteAssignment(context.Background(), "a-6", "w-1", models.Outcome{QuantityProduced: d("-1")})
		assert.Error(t, err)
		assert.Equal(t, models.KindValidation, models.KindOf(err))

		_, err = s.CompleteAssignment(context.Background(), "a-6", "w-1", models.Outcome{
			InputScrap: models.QuantityMap{"MAT-A": d("-2")},
		})
		assert.Error(t, err)
		assert.Equal(t, models.KindValidation, models.KindOf(err))
	})
}
