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

// AssignmentStatus is the lifecycle state of a WorkerAssignment. An
// assignment is in exactly one state at any time and completed is terminal.
type AssignmentStatus string

const (
	StatusPending    AssignmentStatus = "pending"
	StatusQueued     AssignmentStatus = "queued"
	StatusReady      AssignmentStatus = "ready"
	StatusInProgress AssignmentStatus = "in_progress"
	StatusPaused     AssignmentStatus = "paused"
	StatusCompleted  AssignmentStatus = "completed"
)

// SchedulableStatuses are the states getNextTask considers.
var SchedulableStatuses = []AssignmentStatus{StatusPending, StatusQueued, StatusReady}

// QueueStatuses are the states visible in the worker's queue view, so active
// and paused work shows up alongside what is on deck.
var QueueStatuses = []AssignmentStatus{
	StatusPending, StatusQueued, StatusReady, StatusInProgress, StatusPaused,
}

// IsValid reports whether s is one of the six known states.
func (s AssignmentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusReady, StatusInProgress, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// IsStartable reports whether start() is legal from s.
func (s AssignmentStatus) IsStartable() bool {
	return s == StatusPending || s == StatusQueued || s == StatusReady
}

// IsTerminal reports whether no further transitions are possible.
func (s AssignmentStatus) IsTerminal() bool {
	return s == StatusCompleted
}

// CanTransitionTo reports whether the transition s -> target follows the
// lifecycle graph. Any transition outside the graph is rejected, which also
// makes complete idempotent: a second complete finds status != in_progress.
func (s AssignmentStatus) CanTransitionTo(target AssignmentStatus) bool {
	switch target {
	case StatusInProgress:
		return s.IsStartable() || s == StatusPaused
	case StatusPaused:
		return s == StatusInProgress
	case StatusCompleted:
		return s == StatusInProgress
	}
	return false
}

// ReservationStatus summarizes how well the material reservation at task
// start covered the node's requirements.
type ReservationStatus string

const (
	ReservationNone    ReservationStatus = "none"
	ReservationFull    ReservationStatus = "full"
	ReservationPartial ReservationStatus = "partial"
	ReservationFailed  ReservationStatus = "failed"
)
