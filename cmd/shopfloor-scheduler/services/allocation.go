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

/*
Pure lot allocation logic. No database calls are allowed in this file so the
FIFO walk stays a deterministic function of the lot snapshot; reservation and
completion apply the computed plan inside their own transaction.
*/

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
)

// SortLotsFIFO orders lots first-received first, lot number breaking
// receipt-time ties so the allocation is deterministic.
func SortLotsFIFO(lots []models.MaterialLot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].ReceivedAt.Equal(lots[j].ReceivedAt) {
			return lots[i].LotNumber < lots[j].LotNumber
		}
		return lots[i].ReceivedAt.Before(lots[j].ReceivedAt)
	})
}

// AllocateFIFO walks the lots in FIFO order and computes how much to draw
// from each to satisfy required, stopping early once satisfied. If the lots
// run out the allocation is partial and Shortfall reports the missing rest.
// Quantities are never rounded here.
func AllocateFIFO(materialCode string, lots []models.MaterialLot, required decimal.Decimal) models.MaterialAllocation {
	SortLotsFIFO(lots)

	allocation := models.MaterialAllocation{
		MaterialCode:   materialCode,
		Required:       required,
		TotalAvailable: decimal.Zero,
		Draws:          []models.LotDraw{},
		Shortfall:      decimal.Zero,
	}

	remaining := required
	for _, lot := range lots {
		allocation.TotalAvailable = allocation.TotalAvailable.Add(lot.QuantityAvailable)
		if remaining.IsPositive() && lot.QuantityAvailable.IsPositive() {
			draw := decimal.Min(lot.QuantityAvailable, remaining)
			allocation.Draws = append(allocation.Draws, models.LotDraw{
				LotNumber: lot.LotNumber,
				Quantity:  draw,
			})
			remaining = remaining.Sub(draw)
		}
	}
	if remaining.IsPositive() {
		allocation.Shortfall = remaining
	}
	return allocation
}

// Allocated is the total quantity the allocation draws across all lots.
func Allocated(allocation models.MaterialAllocation) decimal.Decimal {
	total := decimal.Zero
	for _, draw := range allocation.Draws {
		total = total.Add(draw.Quantity)
	}
	return total
}

// PlanSurplusReturn distributes a completion surplus back onto the original
// draws, most recently drawn lot first. Returning in reverse draw order
// leaves the lots exactly as a smaller reservation would have, preserving
// FIFO freshness for the next consumer. surplus must not exceed the sum of
// the draws.
func PlanSurplusReturn(draws []models.LotDraw, surplus decimal.Decimal) []models.LotDraw {
	returns := []models.LotDraw{}
	remaining := surplus
	for i := len(draws) - 1; i >= 0 && remaining.IsPositive(); i-- {
		back := decimal.Min(draws[i].Quantity, remaining)
		if back.IsPositive() {
			returns = append(returns, models.LotDraw{
				LotNumber: draws[i].LotNumber,
				Quantity:  back,
			})
			remaining = remaining.Sub(back)
		}
	}
	return returns
}
