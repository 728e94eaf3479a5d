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
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/activity"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/postgresql"
	"go.uber.org/zap"
)

/*
Assignment lifecycle state machine:

	pending/queued/ready --start--> in_progress
	in_progress --pause--> paused
	paused --resume--> in_progress
	in_progress --complete--> completed (terminal)

Every transition runs inside one transaction holding a row lock on the
assignment, wrapped in an in-process per-assignment mutex (same double guard
as the other services use for shared rows). Lot quantities are only touched
inside the same transaction that writes the reservation ledger rows.
*/

// StartAssignment binds the assignment to the worker, reserves material lots
// FIFO for the node's requirements and moves the assignment to in_progress.
// Reservation shortfalls are warnings, not failures, unless the strict
// policy is active and a required material has zero availability.
func (s *Service) StartAssignment(ctx context.Context, assignmentID string, workerID string) (*models.TransitionResult, error) {
	if workerID == "" {
		return nil, models.Validationf("workerId is required")
	}

	if !s.conn.Mutex.TryLock(assignmentID) {
		return nil, models.Conflictf("another transition is in progress for assignment %s", assignmentID)
	}
	defer s.conn.Mutex.Unlock(assignmentID)

	tx, err := s.conn.Db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, models.Storagef(err, "failed to begin transaction")
	}
	committed := false
	defer rollbackUnlessCommitted(ctx, tx, &committed)

	a, err := postgresql.GetAssignmentForUpdate(ctx, tx, assignmentID)
	if err != nil {
		return nil, err
	}
	if !a.Status.IsStartable() {
		return nil, models.InvalidTransitionf("cannot start assignment %s from status %s", assignmentID, a.Status)
	}
	if a.WorkerID != nil && *a.WorkerID != "" && *a.WorkerID != workerID {
		return nil, models.Forbiddenf("assignment %s is bound to worker %s", assignmentID, *a.WorkerID)
	}

	requirements, err := s.graph.NodeMaterialRequirements(ctx, a.NodeID)
	if err != nil {
		return nil, err
	}

	var warnings []string
	allocations := make([]models.MaterialAllocation, 0, len(requirements))
	reserved := models.QuantityMap{}
	anyShortfall := false

	for _, requirement := range requirements {
		if !requirement.RequiredQuantity.IsPositive() {
			continue
		}

		lots, err := postgresql.GetLotsForUpdate(ctx, tx, requirement.MaterialCode)
		if err != nil {
			return nil, err
		}
		allocation := AllocateFIFO(requirement.MaterialCode, lots, requirement.RequiredQuantity)

		if s.policy == PolicyStrict && !allocation.TotalAvailable.IsPositive() {
			return nil, models.InsufficientStockf("no stock available for material %s", requirement.MaterialCode)
		}

		for position, draw := range allocation.Draws {
			err = postgresql.AdjustLotQuantity(ctx, tx, requirement.MaterialCode, draw.LotNumber, draw.Quantity.Neg())
			if err != nil {
				return nil, err
			}
			err = postgresql.InsertReservation(ctx, tx, models.Reservation{
				AssignmentID: assignmentID,
				MaterialCode: requirement.MaterialCode,
				LotNumber:    draw.LotNumber,
				ReservedQty:  draw.Quantity,
				DrawPosition: position,
			})
			if err != nil {
				return nil, err
			}
		}

		reserved[requirement.MaterialCode] = Allocated(allocation)
		if allocation.Shortfall.IsPositive() {
			anyShortfall = true
			stockShortfallsTotal.Inc()
			warnings = append(warnings, fmt.Sprintf(
				"material %s: reserved %s of %s (shortfall %s)",
				requirement.MaterialCode, Allocated(allocation), requirement.RequiredQuantity, allocation.Shortfall))
		}
		allocations = append(allocations, allocation)
	}

	reservationStatus := reservationStatusFor(allocations, anyShortfall)

	startedAt := time.Now()
	reservedJSON, err := reserved.ToJSON()
	if err != nil {
		return nil, models.Storagef(err, "failed to encode reserved amounts")
	}
	err = postgresql.UpdateAssignmentStart(ctx, tx, assignmentID, workerID, reservedJSON, reservationStatus, startedAt)
	if err != nil {
		return nil, err
	}
	err = postgresql.InsertStatusHistory(ctx, tx, models.StatusHistoryEntry{
		AssignmentID:  assignmentID,
		FromStatus:    a.Status,
		ToStatus:      models.StatusInProgress,
		ActorWorkerID: workerID,
		RecordedAt:    startedAt,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, models.Storagef(err, "failed to commit start of assignment %s", assignmentID)
	}
	committed = true
	transitionsTotal.WithLabelValues("start").Inc()
	zap.S().Infof("[StartAssignment] %s started by %s, reservation %s", assignmentID, workerID, reservationStatus)

	a.Status = models.StatusInProgress
	a.WorkerID = &workerID
	a.StartedAt = &startedAt
	a.ActualReserved = reserved
	a.MaterialReservationStatus = reservationStatus

	s.activity.Publish(activity.Event{
		Type:         activity.EventAssignmentStarted,
		AssignmentID: assignmentID,
		WorkerID:     workerID,
		NodeID:       a.NodeID,
		Timestamp:    startedAt,
	})

	return &models.TransitionResult{
		Assignment:  a,
		Allocations: allocations,
		Warnings:    warnings,
	}, nil
}

func reservationStatusFor(allocations []models.MaterialAllocation, anyShortfall bool) models.ReservationStatus {
	if len(allocations) == 0 {
		return models.ReservationNone
	}
	anyReserved := false
	for _, allocation := range allocations {
		if Allocated(allocation).IsPositive() {
			anyReserved = true
			break
		}
	}
	switch {
	case !anyReserved:
		return models.ReservationNone
	case anyShortfall:
		return models.ReservationPartial
	default:
		return models.ReservationFull
	}
}

// PauseAssignment moves in_progress -> paused.
func (s *Service) PauseAssignment(ctx context.Context, assignmentID string, workerID string) (*models.TransitionResult, error) {
	return s.simpleTransition(ctx, assignmentID, workerID, models.StatusInProgress, models.StatusPaused, "pause")
}

// ResumeAssignment moves paused -> in_progress.
func (s *Service) ResumeAssignment(ctx context.Context, assignmentID string, workerID string) (*models.TransitionResult, error) {
	return s.simpleTransition(ctx, assignmentID, workerID, models.StatusPaused, models.StatusInProgress, "resume")
}

// simpleTransition handles pause and resume: a status flip with ownership
// check, history record and no material movement.
func (s *Service) simpleTransition(
	ctx context.Context,
	assignmentID string,
	workerID string,
	from models.AssignmentStatus,
	to models.AssignmentStatus,
	name string) (*models.TransitionResult, error) {
	if workerID == "" {
		return nil, models.Validationf("workerId is required")
	}

	if !s.conn.Mutex.TryLock(assignmentID) {
		return nil, models.Conflictf("another transition is in progress for assignment %s", assignmentID)
	}
	defer s.conn.Mutex.Unlock(assignmentID)

	tx, err := s.conn.Db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, models.Storagef(err, "failed to begin transaction")
	}
	committed := false
	defer rollbackUnlessCommitted(ctx, tx, &committed)

	a, err := postgresql.GetAssignmentForUpdate(ctx, tx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != from {
		return nil, models.InvalidTransitionf("cannot %s assignment %s from status %s", name, assignmentID, a.Status)
	}
	if a.WorkerID == nil || *a.WorkerID != workerID {
		return nil, models.Forbiddenf("assignment %s is not bound to worker %s", assignmentID, workerID)
	}

	err = postgresql.UpdateAssignmentStatus(ctx, tx, assignmentID, to)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	err = postgresql.InsertStatusHistory(ctx, tx, models.StatusHistoryEntry{
		AssignmentID:  assignmentID,
		FromStatus:    from,
		ToStatus:      to,
		ActorWorkerID: workerID,
		RecordedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, models.Storagef(err, "failed to commit %s of assignment %s", name, assignmentID)
	}
	committed = true
	transitionsTotal.WithLabelValues(name).Inc()
	zap.S().Infof("[%s] assignment %s by worker %s", name, assignmentID, workerID)

	a.Status = to
	return &models.TransitionResult{Assignment: a}, nil
}

// CompleteAssignment reconciles planned vs. actually consumed material and
// moves the assignment to its terminal state. Valid only from in_progress,
// which also makes duplicate complete requests harmless: the second one is
// rejected before any stock is touched.
func (s *Service) CompleteAssignment(ctx context.Context, assignmentID string, workerID string, outcome models.Outcome) (*models.TransitionResult, error) {
	if workerID == "" {
		return nil, models.Validationf("workerId is required")
	}
	if outcome.QuantityProduced.IsNegative() || outcome.DefectQuantity.IsNegative() {
		return nil, models.Validationf("produced and defect quantities must not be negative")
	}
	if err := outcome.InputScrap.Validate(); err != nil {
		return nil, err
	}
	if err := outcome.ProductionScrap.Validate(); err != nil {
		return nil, err
	}

	if !s.conn.Mutex.TryLock(assignmentID) {
		return nil, models.Conflictf("another transition is in progress for assignment %s", assignmentID)
	}
	defer s.conn.Mutex.Unlock(assignmentID)

	tx, err := s.conn.Db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, models.Storagef(err, "failed to begin transaction")
	}
	committed := false
	defer rollbackUnlessCommitted(ctx, tx, &committed)

	a, err := postgresql.GetAssignmentForUpdate(ctx, tx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Status != models.StatusInProgress {
		return nil, models.InvalidTransitionf("cannot complete assignment %s from status %s", assignmentID, a.Status)
	}
	if a.WorkerID == nil || *a.WorkerID != workerID {
		return nil, models.Forbiddenf("assignment %s is not bound to worker %s", assignmentID, workerID)
	}

	requirements, err := s.graph.NodeMaterialRequirements(ctx, a.NodeID)
	if err != nil {
		return nil, err
	}
	reservations, err := postgresql.GetReservationsForUpdate(ctx, tx, assignmentID)
	if err != nil {
		return nil, err
	}

	adjustments, warnings, err := s.reconcileMaterials(ctx, tx, a, outcome, requirements, reservations)
	if err != nil {
		return nil, err
	}

	completedAt := time.Now()
	effectiveSeconds := 0
	if a.StartedAt != nil {
		effectiveSeconds = int(completedAt.Sub(*a.StartedAt).Seconds())
	}

	inputScrapJSON, err := outcome.InputScrap.ToJSON()
	if err != nil {
		return nil, models.Storagef(err, "failed to encode input scrap")
	}
	productionScrapJSON, err := outcome.ProductionScrap.ToJSON()
	if err != nil {
		return nil, models.Storagef(err, "failed to encode production scrap")
	}

	err = postgresql.UpdateAssignmentComplete(ctx, tx, postgresql.CompleteUpdate{
		AssignmentID:         assignmentID,
		ActualQuantity:       outcome.QuantityProduced,
		DefectQuantity:       outcome.DefectQuantity,
		InputScrapJSON:       inputScrapJSON,
		ProductionScrapJSON:  productionScrapJSON,
		Notes:                outcome.Notes,
		EffectiveTimeSeconds: effectiveSeconds,
		CompletedAt:          completedAt,
	})
	if err != nil {
		return nil, err
	}
	err = postgresql.InsertStatusHistory(ctx, tx, models.StatusHistoryEntry{
		AssignmentID:  assignmentID,
		FromStatus:    models.StatusInProgress,
		ToStatus:      models.StatusCompleted,
		ActorWorkerID: workerID,
		RecordedAt:    completedAt,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, models.Storagef(err, "failed to commit completion of assignment %s", assignmentID)
	}
	committed = true
	transitionsTotal.WithLabelValues("complete").Inc()
	zap.S().Infof("[CompleteAssignment] %s completed by %s, %d materials reconciled", assignmentID, workerID, len(adjustments))

	a.Status = models.StatusCompleted
	a.CompletedAt = &completedAt
	a.ActualQuantity = outcome.QuantityProduced
	a.DefectQuantity = outcome.DefectQuantity
	a.InputScrap = outcome.InputScrap
	a.ProductionScrap = outcome.ProductionScrap
	a.Notes = outcome.Notes
	a.EffectiveTimeSeconds = effectiveSeconds

	s.activity.Publish(activity.Event{
		Type:             activity.EventAssignmentCompleted,
		AssignmentID:     assignmentID,
		WorkerID:         workerID,
		NodeID:           a.NodeID,
		QuantityProduced: outcome.QuantityProduced,
		DefectQuantity:   outcome.DefectQuantity,
		InputScrap:       outcome.InputScrap,
		ProductionScrap:  outcome.ProductionScrap,
		Adjustments:      adjustments,
		Timestamp:        completedAt,
	})

	return &models.TransitionResult{
		Assignment:         a,
		Adjustments:        adjustments,
		MaterialsProcessed: len(adjustments),
		Warnings:           warnings,
	}, nil
}

// reconcileMaterials settles every material the assignment touched: the
// node's requirements, the lots reserved at start and any scrap reported at
// completion. Surplus goes back to the most recently drawn lots; overdraw
// triggers an additional FIFO draw against current availability.
func (s *Service) reconcileMaterials(
	ctx context.Context,
	tx pgx.Tx,
	a models.WorkerAssignment,
	outcome models.Outcome,
	requirements []models.MaterialRequirement,
	reservations []models.Reservation) ([]models.MaterialAdjustment, []string, error) {

	ratios := map[string]decimal.Decimal{}
	for _, requirement := range requirements {
		ratios[requirement.MaterialCode] = requirement.RequiredQuantity
	}

	rowsByMaterial := map[string][]models.Reservation{}
	for _, r := range reservations {
		rowsByMaterial[r.MaterialCode] = append(rowsByMaterial[r.MaterialCode], r)
	}

	materials := materialUnion(ratios, rowsByMaterial, outcome.InputScrap, outcome.ProductionScrap)
	goodAndDefect := outcome.QuantityProduced.Add(outcome.DefectQuantity)

	var adjustments []models.MaterialAdjustment
	var warnings []string

	for _, material := range materials {
		rows := rowsByMaterial[material]
		reservedTotal := decimal.Zero
		draws := make([]models.LotDraw, 0, len(rows))
		for _, row := range rows {
			reservedTotal = reservedTotal.Add(row.ReservedQty)
			draws = append(draws, models.LotDraw{LotNumber: row.LotNumber, Quantity: row.ReservedQty})
		}

		ratio := ratios[material]
		actual := ratio.Mul(goodAndDefect).
			Add(outcome.InputScrap.Get(material)).
			Add(outcome.ProductionScrap.Get(material))

		if reservedTotal.IsZero() && actual.IsZero() {
			continue
		}

		delta := reservedTotal.Sub(actual)
		adjustment := models.MaterialAdjustment{
			MaterialCode: material,
			Reserved:     reservedTotal,
			Delta:        delta,
		}

		switch {
		case delta.IsPositive():
			// Reserved more than used: hand the surplus back, most
			// recently drawn lot first.
			returnedByLot := map[string]decimal.Decimal{}
			for _, back := range PlanSurplusReturn(draws, delta) {
				err := postgresql.AdjustLotQuantity(ctx, tx, material, back.LotNumber, back.Quantity)
				if err != nil {
					return nil, nil, err
				}
				returnedByLot[back.LotNumber] = returnedByLot[back.LotNumber].Add(back.Quantity)
			}
			for _, row := range rows {
				consumed := row.ReservedQty.Sub(returnedByLot[row.LotNumber])
				err := postgresql.SetReservationConsumed(ctx, tx, a.ID, material, row.LotNumber, consumed)
				if err != nil {
					return nil, nil, err
				}
			}
			adjustment.Consumed = actual

		case delta.IsNegative():
			// Used more than reserved: everything reserved is consumed,
			// and the rest is drawn FIFO from whatever is available now.
			for _, row := range rows {
				err := postgresql.SetReservationConsumed(ctx, tx, a.ID, material, row.LotNumber, row.ReservedQty)
				if err != nil {
					return nil, nil, err
				}
			}

			lots, err := postgresql.GetLotsForUpdate(ctx, tx, material)
			if err != nil {
				return nil, nil, err
			}
			extra := AllocateFIFO(material, lots, delta.Neg())
			for position, draw := range extra.Draws {
				err = postgresql.AdjustLotQuantity(ctx, tx, material, draw.LotNumber, draw.Quantity.Neg())
				if err != nil {
					return nil, nil, err
				}
				err = postgresql.AddReservationDraw(ctx, tx, models.Reservation{
					AssignmentID: a.ID,
					MaterialCode: material,
					LotNumber:    draw.LotNumber,
					ReservedQty:  draw.Quantity,
					DrawPosition: len(rows) + position,
				})
				if err != nil {
					return nil, nil, err
				}
			}
			adjustment.Consumed = reservedTotal.Add(Allocated(extra))
			if extra.Shortfall.IsPositive() {
				adjustment.UnresolvedShortfall = extra.Shortfall
				stockShortfallsTotal.Inc()
				warnings = append(warnings, fmt.Sprintf(
					"material %s: consumed %s exceeds reservation, %s could not be drawn from stock",
					material, actual, extra.Shortfall))
			}

		default:
			for _, row := range rows {
				err := postgresql.SetReservationConsumed(ctx, tx, a.ID, material, row.LotNumber, row.ReservedQty)
				if err != nil {
					return nil, nil, err
				}
			}
			adjustment.Consumed = reservedTotal
		}

		zap.S().Debugf("[CompleteAssignment] %s material %s reserved=%s consumed=%s delta=%s",
			a.ID, material, adjustment.Reserved, adjustment.Consumed, adjustment.Delta)
		adjustments = append(adjustments, adjustment)
	}
	return adjustments, warnings, nil
}

func materialUnion(
	ratios map[string]decimal.Decimal,
	rows map[string][]models.Reservation,
	inputScrap models.QuantityMap,
	productionScrap models.QuantityMap) []string {
	seen := map[string]bool{}
	for material := range ratios {
		seen[material] = true
	}
	for material := range rows {
		seen[material] = true
	}
	for material := range inputScrap {
		seen[material] = true
	}
	for material := range productionScrap {
		seen[material] = true
	}
	union := models.QuantityMap{}
	for material := range seen {
		union[material] = decimal.Zero
	}
	return union.Codes()
}
