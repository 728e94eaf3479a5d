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
	"sort"

	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
	"go.uber.org/zap"
)

/*
FIFO scheduler. All queries here are read-only; they never mutate state and
never retry internally. The scheduling order is a strict total order
(urgency desc, estimated start asc with nulls last, createdAt asc), so
repeated calls over the same snapshot return the same task. The SQL applies
the same order for cheap pagination, but schedulerLess owns the semantics
and the service re-sorts every candidate list through it.
*/

// schedulerLess reports whether a schedules before b: urgent work first,
// then the earliest estimated start with unscheduled work last, then
// creation time.
func schedulerLess(a, b models.WorkerAssignment) bool {
	if a.IsUrgent != b.IsUrgent {
		return a.IsUrgent
	}
	switch {
	case a.EstimatedStartTime != nil && b.EstimatedStartTime != nil:
		if !a.EstimatedStartTime.Equal(*b.EstimatedStartTime) {
			return a.EstimatedStartTime.Before(*b.EstimatedStartTime)
		}
	case a.EstimatedStartTime != nil:
		return true
	case b.EstimatedStartTime != nil:
		return false
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func sortSchedulerOrder(assignments []models.WorkerAssignment) {
	sort.SliceStable(assignments, func(i, j int) bool {
		return schedulerLess(assignments[i], assignments[j])
	})
}

// GetNextTask returns the single next task for the worker, or nil if no
// schedulable assignment has all its predecessors completed.
func (s *Service) GetNextTask(ctx context.Context, workerID string) (*models.WorkerAssignment, error) {
	if workerID == "" {
		return nil, models.Validationf("workerId is required")
	}

	candidates, err := s.conn.ListWorkerAssignments(ctx, workerID, models.SchedulableStatuses)
	if err != nil {
		return nil, err
	}
	sortSchedulerOrder(candidates)

	for i := range candidates {
		ready, err := s.graph.PredecessorsCompleted(ctx, candidates[i].NodeID)
		if err != nil {
			return nil, err
		}
		if ready {
			return &candidates[i], nil
		}
		zap.S().Debugf("Assignment %s blocked by incomplete predecessors of node %s", candidates[i].ID, candidates[i].NodeID)
	}
	return nil, nil
}

// HasTasksInQueue reports whether the worker has at least one schedulable
// task whose predecessors are completed.
func (s *Service) HasTasksInQueue(ctx context.Context, workerID string) (bool, error) {
	next, err := s.GetNextTask(ctx, workerID)
	if err != nil {
		return false, err
	}
	return next != nil, nil
}

// GetWorkerTaskQueue returns the worker's full visible queue: active and
// paused work plus everything on deck, in scheduler order, enriched with
// display data. Assignments gated by incomplete predecessors are excluded;
// work that already started stays visible.
func (s *Service) GetWorkerTaskQueue(ctx context.Context, workerID string) ([]models.QueueEntry, error) {
	if workerID == "" {
		return nil, models.Validationf("workerId is required")
	}

	assignments, err := s.conn.ListWorkerAssignments(ctx, workerID, models.QueueStatuses)
	if err != nil {
		return nil, err
	}
	sortSchedulerOrder(assignments)

	workerName, err := s.conn.GetWorkerName(ctx, workerID)
	if err != nil {
		return nil, err
	}

	queue := make([]models.QueueEntry, 0, len(assignments))
	for _, a := range assignments {
		if a.Status.IsStartable() {
			ready, err := s.graph.PredecessorsCompleted(ctx, a.NodeID)
			if err != nil {
				return nil, err
			}
			if !ready {
				continue
			}
		}

		display, err := s.conn.GetNodeDisplay(ctx, a.NodeID)
		if err != nil {
			return nil, err
		}
		requirements, err := s.graph.NodeMaterialRequirements(ctx, a.NodeID)
		if err != nil {
			return nil, err
		}

		queue = append(queue, models.QueueEntry{
			WorkerAssignment: a,
			WorkerName:       workerName,
			NodeName:         display.Name,
			OperationName:    display.OperationName,
			StationName:      display.StationName,
			Requirements:     requirements,
		})
	}
	return queue, nil
}

// GetWorkerTaskStats aggregates the worker's assignment history.
func (s *Service) GetWorkerTaskStats(ctx context.Context, workerID string) (models.WorkerStats, error) {
	if workerID == "" {
		return models.WorkerStats{}, models.Validationf("workerId is required")
	}
	return s.conn.GetWorkerStats(ctx, workerID)
}

// CheckPredecessorsCompleted exposes the dependency gate directly.
func (s *Service) CheckPredecessorsCompleted(ctx context.Context, nodeID string) (bool, error) {
	if nodeID == "" {
		return false, models.Validationf("nodeId is required")
	}
	return s.graph.PredecessorsCompleted(ctx, nodeID)
}

// GetStatusHistory returns the append-only transition audit trail of one
// assignment, oldest first.
func (s *Service) GetStatusHistory(ctx context.Context, assignmentID string) ([]models.StatusHistoryEntry, error) {
	if assignmentID == "" {
		return nil, models.Validationf("assignmentId is required")
	}
	return s.conn.GetStatusHistory(ctx, assignmentID)
}

// GetAssignments is the generic read projection behind the assignment list
// endpoints.
func (s *Service) GetAssignments(ctx context.Context, filter models.AssignmentFilter) ([]models.WorkerAssignment, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, models.Validationf("unknown status %q", filter.Status)
	}
	return s.conn.ListAssignments(ctx, filter)
}
