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
	CREATE TABLE material_lot (
	    material_code TEXT NOT NULL,
	    lot_number TEXT NOT NULL,
	    quantity_available NUMERIC NOT NULL CHECK (quantity_available >= 0),
	    received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	    PRIMARY KEY (material_code, lot_number)
	);
*/

// lotFIFOQuery lists the non-empty lots of one material in FIFO order:
// received first, consumed first, lot number breaking receipt-time ties.
const lotFIFOQuery = `SELECT material_code, lot_number, quantity_available::text, received_at
	FROM material_lot WHERE material_code = $1 AND quantity_available > 0
	ORDER BY received_at ASC, lot_number ASC`

func scanLots(rows pgx.Rows) ([]models.MaterialLot, error) {
	defer rows.Close()
	var lots []models.MaterialLot
	for rows.Next() {
		var lot models.MaterialLot
		var qty string
		err := rows.Scan(&lot.MaterialCode, &lot.LotNumber, &qty, &lot.ReceivedAt)
		if err != nil {
			return nil, err
		}
		if lot.QuantityAvailable, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// GetLots reads the current lot snapshot for a material without locking;
// used by preview.
func (c *Connection) GetLots(ctx context.Context, materialCode string) ([]models.MaterialLot, error) {
	rows, err := c.Db.Query(ctx, lotFIFOQuery, materialCode)
	if err != nil {
		return nil, errDB(lotFIFOQuery, err)
	}
	lots, err := scanLots(rows)
	if err != nil {
		return nil, errDB(lotFIFOQuery, err)
	}
	return lots, nil
}

// GetLotsForUpdate reads the lot snapshot inside tx with row locks, so
// concurrent reservations of the same material serialize and cannot draw
// beyond what is available.
func GetLotsForUpdate(ctx context.Context, tx pgx.Tx, materialCode string) ([]models.MaterialLot, error) {
	sqlStatement := lotFIFOQuery + ` FOR UPDATE`
	rows, err := tx.Query(ctx, sqlStatement, materialCode)
	if err != nil {
		return nil, errDB(sqlStatement, err)
	}
	lots, err := scanLots(rows)
	if err != nil {
		return nil, errDB(sqlStatement, err)
	}
	return lots, nil
}

// AdjustLotQuantity applies a signed delta to one lot's availability. The
// CHECK constraint on the table is the last line of defense against a
// negative balance; the allocation logic never plans one.
func AdjustLotQuantity(ctx context.Context, tx pgx.Tx, materialCode string, lotNumber string, delta decimal.Decimal) error {
	sqlStatement := `UPDATE material_lot SET quantity_available = quantity_available + $3::numeric
		WHERE material_code = $1 AND lot_number = $2`
	cmdTag, err := tx.Exec(ctx, sqlStatement, materialCode, lotNumber, delta.String())
	if err != nil {
		return errDB(sqlStatement, err)
	}
	if cmdTag.RowsAffected() != 1 {
		return models.NotFoundf("lot %s/%s not found", materialCode, lotNumber)
	}
	return nil
}
