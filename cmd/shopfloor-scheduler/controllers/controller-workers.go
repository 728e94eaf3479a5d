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

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/helpers"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
)

type workerRequest struct {
	WorkerID string `uri:"workerId" binding:"required"`
}

// GetNextTaskHandler returns the single next startable task for the worker.
// 204 when the worker has nothing ready.
func GetNextTaskHandler(c *gin.Context) {
	var request workerRequest
	err := c.BindUri(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	next, err := service.GetNextTask(c.Request.Context(), request.WorkerID)
	if err != nil {
		helpers.HandleDomainError(c, err)
		return
	}
	if next == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, next)
}

// GetWorkerQueueHandler returns the worker's full visible queue in scheduler
// order with display enrichment.
func GetWorkerQueueHandler(c *gin.Context) {
	var request workerRequest
	err := c.BindUri(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	queue, err := service.GetWorkerTaskQueue(c.Request.Context(), request.WorkerID)
	if err != nil {
		helpers.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": queue, "count": len(queue)})
}

// GetWorkerStatsHandler aggregates the worker's assignment history.
func GetWorkerStatsHandler(c *gin.Context) {
	var request workerRequest
	err := c.BindUri(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	stats, err := service.GetWorkerTaskStats(c.Request.Context(), request.WorkerID)
	if err != nil {
		helpers.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HasTasksHandler reports whether the worker has at least one startable task.
func HasTasksHandler(c *gin.Context) {
	var request workerRequest
	err := c.BindUri(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	hasTasks, err := service.HasTasksInQueue(c.Request.Context(), request.WorkerID)
	if err != nil {
		helpers.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workerId": request.WorkerID, "hasTasks": hasTasks})
}

// GetWorkerAssignmentsHandler lists the worker's assignments, optionally
// narrowed by status.
func GetWorkerAssignmentsHandler(c *gin.Context) {
	var request workerRequest
	err := c.BindUri(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	assignments, err := service.GetAssignments(c.Request.Context(), models.AssignmentFilter{
		WorkerID: request.WorkerID,
		Status:   models.AssignmentStatus(c.Query("status")),
		PlanID:   c.Query("planId"),
	})
	if err != nil {
		helpers.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignments)
}
