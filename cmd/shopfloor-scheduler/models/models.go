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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WorkerAssignment is a unit of work bound to exactly one worker at a time.
// It is created by the planning system and only ever mutated through the
// lifecycle transitions (start/pause/resume/complete).
type WorkerAssignment struct {
	ID                        string            `json:"id"`
	WorkerID                  *string           `json:"workerId"`
	PlanID                    string            `json:"planId"`
	NodeID                    string            `json:"nodeId"`
	OperationID               string            `json:"operationId"`
	StationID                 string            `json:"stationId"`
	SubstationID              string            `json:"substationId"`
	Status                    AssignmentStatus  `json:"status"`
	IsUrgent                  bool              `json:"isUrgent"`
	Priority                  int               `json:"priority"`
	SequenceNumber            int               `json:"sequenceNumber"`
	EstimatedStartTime        *time.Time        `json:"estimatedStartTime"`
	EstimatedEndTime          *time.Time        `json:"estimatedEndTime"`
	NominalTimeSeconds        int               `json:"nominalTime"`
	EffectiveTimeSeconds      int               `json:"effectiveTime"`
	PreProductionReserved     QuantityMap       `json:"preProductionReservedAmount"`
	ActualReserved            QuantityMap       `json:"actualReservedAmounts"`
	MaterialReservationStatus ReservationStatus `json:"materialReservationStatus"`
	PlannedOutput             QuantityMap       `json:"plannedOutput"`
	ActualQuantity            decimal.Decimal   `json:"actualQuantity"`
	DefectQuantity            decimal.Decimal   `json:"defectQuantity"`
	InputScrap                QuantityMap       `json:"inputScrapCount"`
	ProductionScrap           QuantityMap       `json:"productionScrapCount"`
	Notes                     string            `json:"notes"`
	CreatedAt                 time.Time         `json:"createdAt"`
	StartedAt                 *time.Time        `json:"startedAt"`
	CompletedAt               *time.Time        `json:"completedAt"`
}

// MaterialLot is a receipt batch of a material. quantityAvailable never goes
// negative; receivedAt is the FIFO order key, lotNumber breaks ties.
type MaterialLot struct {
	MaterialCode      string          `json:"materialCode"`
	LotNumber         string          `json:"lotNumber"`
	QuantityAvailable decimal.Decimal `json:"quantityAvailable"`
	ReceivedAt        time.Time       `json:"receivedAt"`
}

// Reservation links an assignment to one lot it drew from. DrawPosition
// records the original FIFO draw order of the lot within its material, so a
// surplus at completion can be returned to the most recently drawn lot first.
type Reservation struct {
	AssignmentID string          `json:"assignmentId"`
	MaterialCode string          `json:"materialCode"`
	LotNumber    string          `json:"lotNumber"`
	ReservedQty  decimal.Decimal `json:"reservedQty"`
	ConsumedQty  decimal.Decimal `json:"consumedQty"`
	DrawPosition int             `json:"drawPosition"`
}

// StatusHistoryEntry is one append-only audit record of a state transition.
type StatusHistoryEntry struct {
	AssignmentID  string           `json:"assignmentId"`
	FromStatus    AssignmentStatus `json:"fromStatus"`
	ToStatus      AssignmentStatus `json:"toStatus"`
	ActorWorkerID string           `json:"actorWorkerId"`
	RecordedAt    time.Time        `json:"timestamp"`
}

// MaterialRequirement is the per-unit input ratio of one material on a
// production-plan node, owned by the planning collaborator.
type MaterialRequirement struct {
	MaterialCode     string          `json:"materialCode"`
	RequiredQuantity decimal.Decimal `json:"requiredQuantity"`
}

// LotDraw is one slice of an allocation: how much is drawn from one lot.
type LotDraw struct {
	LotNumber string          `json:"lotNumber"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// MaterialAllocation is the outcome of a FIFO walk for one material.
type MaterialAllocation struct {
	MaterialCode   string          `json:"materialCode"`
	Required       decimal.Decimal `json:"required"`
	TotalAvailable decimal.Decimal `json:"totalAvailable"`
	Draws          []LotDraw       `json:"lotsConsumed"`
	Shortfall      decimal.Decimal `json:"shortfall"`
}

// LotPreview is the response of the lot preview endpoint: the allocation each
// requirement of the assignment's node would get, without any mutation.
type LotPreview struct {
	AssignmentID string               `json:"assignmentId"`
	Materials    []MaterialAllocation `json:"materials"`
}

// MaterialAdjustment is the per-material audit record written at completion.
// Delta = reserved - actual consumption; UnresolvedShortfall is the part of an
// overdraw that could not be satisfied from current lot availability.
type MaterialAdjustment struct {
	MaterialCode        string          `json:"materialCode"`
	Reserved            decimal.Decimal `json:"reserved"`
	Consumed            decimal.Decimal `json:"consumed"`
	Delta               decimal.Decimal `json:"delta"`
	UnresolvedShortfall decimal.Decimal `json:"unresolvedShortfall"`
}

// Outcome carries what the worker reports when completing an assignment.
type Outcome struct {
	QuantityProduced decimal.Decimal `json:"quantityProduced"`
	DefectQuantity   decimal.Decimal `json:"defectQuantity"`
	InputScrap       QuantityMap     `json:"inputScrapCounters"`
	ProductionScrap  QuantityMap     `json:"productionScrapCounters"`
	Notes            string          `json:"notes"`
}

// TransitionResult is returned by every lifecycle operation. Warnings carry
// insufficient-stock conditions, which do not fail the transition.
type TransitionResult struct {
	Assignment         WorkerAssignment     `json:"assignment"`
	Allocations        []MaterialAllocation `json:"allocations,omitempty"`
	Adjustments        []MaterialAdjustment `json:"adjustments,omitempty"`
	MaterialsProcessed int                  `json:"materialsProcessed,omitempty"`
	Warnings           []string             `json:"warnings,omitempty"`
}

// WorkerStats aggregates a worker's assignment history for reporting.
type WorkerStats struct {
	WorkerID              string          `json:"workerId"`
	TotalAssignments      int             `json:"totalAssignments"`
	Pending               int             `json:"pending"`
	InProgress            int             `json:"inProgress"`
	Paused                int             `json:"paused"`
	Completed             int             `json:"completed"`
	TotalProduced         decimal.Decimal `json:"totalProduced"`
	TotalDefects          decimal.Decimal `json:"totalDefects"`
	TotalEffectiveSeconds int64           `json:"totalEffectiveSeconds"`
}

// QueueEntry is an assignment enriched with display data for the worker's
// queue view. Display fields are a read-only projection, not scheduling input.
type QueueEntry struct {
	WorkerAssignment
	WorkerName    string                `json:"workerName"`
	NodeName      string                `json:"nodeName"`
	OperationName string                `json:"operationName"`
	StationName   string                `json:"stationName"`
	Requirements  []MaterialRequirement `json:"materialRequirements"`
}

// AssignmentFilter narrows the generic assignment listing.
type AssignmentFilter struct {
	WorkerID string
	PlanID   string
	Status   AssignmentStatus
}
