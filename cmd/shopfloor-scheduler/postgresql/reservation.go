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

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
)

/*
	CREATE TABLE material_reservation (
	    assignment_id TEXT NOT NULL,
	    material_code TEXT NOT NULL,
	    lot_number TEXT NOT NULL,
	    reserved_qty NUMERIC NOT NULL CHECK (reserved_qty >= 0),
	    consumed_qty NUMERIC NOT NULL DEFAULT 0 CHECK (consumed_qty >= 0),
	    draw_position INTEGER NOT NULL,
	    PRIMARY KEY (assignment_id, material_code, lot_number)
	);
*/

// InsertReservation writes one ledger row for a lot draw made at task start.
func InsertReservation(ctx context.Context, tx pgx.Tx, r models.Reservation) error {
	sqlStatement := `INSERT INTO material_reservation(assignment_id, material_code, lot_number, reserved_qty, consumed_qty, draw_position)
		VALUES ($1, $2, $3, $4::numeric, 0, $5)`
	_, err := tx.Exec(ctx, sqlStatement, r.AssignmentID, r.MaterialCode, r.LotNumber, r.ReservedQty.String(), r.DrawPosition)
	if err != nil {
		return errDB(sqlStatement, err)
	}
	return nil
}

// GetReservationsForUpdate reads the assignment's ledger rows inside tx,
// ordered by material and original draw position so surplus returns can walk
// the draws in reverse.
func GetReservationsForUpdate(ctx context.Context, tx pgx.Tx, assignmentID string) ([]models.Reservation, error) {
	sqlStatement := `SELECT assignment_id, material_code, lot_number, reserved_qty::text, consumed_qty::text, draw_position
		FROM material_reservation WHERE assignment_id = $1
		ORDER BY material_code ASC, draw_position ASC FOR UPDATE`
	rows, err := tx.Query(ctx, sqlStatement, assignmentID)
	if err != nil {
		return nil, errDB(sqlStatement, err)
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		var r models.Reservation
		var reserved, consumed string
		err = rows.Scan(&r.AssignmentID, &r.MaterialCode, &r.LotNumber, &reserved, &consumed, &r.DrawPosition)
		if err != nil {
			return nil, errDB(sqlStatement, err)
		}
		if r.ReservedQty, err = decimal.NewFromString(reserved); err != nil {
			return nil, errDB(sqlStatement, err)
		}
		if r.ConsumedQty, err = decimal.NewFromString(consumed); err != nil {
			return nil, errDB(sqlStatement, err)
		}
		reservations = append(reservations, r)
	}
	if err = rows.Err(); err != nil {
		return nil, errDB(sqlStatement, err)
	}
	return reservations, nil
}

// SetReservationConsumed finalizes one ledger row at completion.
func SetReservationConsumed(ctx context.Context, tx pgx.Tx, assignmentID string, materialCode string, lotNumber string, consumed decimal.Decimal) error {
	sqlStatement := `UPDATE material_reservation SET consumed_qty = $4::numeric
		WHERE assignment_id = $1 AND material_code = $2 AND lot_number = $3`
	cmdTag, err := tx.Exec(ctx, sqlStatement, assignmentID, materialCode, lotNumber, consumed.String())
	if err != nil {
		return errDB(sqlStatement, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return models.NotFoundf("reservation %s/%s/%s not found", assignmentID, materialCode, lotNumber)
	}
	return nil
}

// AddReservationDraw records an extra draw made during completion when more
// material was consumed than reserved. If the completion draws from a lot
// the start already reserved from, the existing row is topped up so the
// ledger keeps one row per (assignment, material, lot).
func AddReservationDraw(ctx context.Context, tx pgx.Tx, r models.Reservation) error {
	sqlStatement := `INSERT INTO material_reservation(assignment_id, material_code, lot_number, reserved_qty, consumed_qty, draw_position)
		VALUES ($1, $2, $3, $4::numeric, $4::numeric, $5)
		ON CONFLICT (assignment_id, material_code, lot_number)
		DO UPDATE SET reserved_qty = material_reservation.reserved_qty + EXCLUDED.reserved_qty,
		              consumed_qty = material_reservation.consumed_qty + EXCLUDED.consumed_qty`
	_, err := tx.Exec(ctx, sqlStatement, r.AssignmentID, r.MaterialCode, r.LotNumber, r.ReservedQty.String(), r.DrawPosition)
	if err != nil {
		return errDB(sqlStatement, err)
	}
	return nil
}
