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
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/helpers"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
)

type assignmentRequest struct {
	AssignmentID string `uri:"assignmentId" binding:"required"`
}

type transitionRequest struct {
	WorkerID string `json:"workerId" binding:"required"`
}

type completeRequest struct {
	WorkerID string `json:"workerId" binding:"required"`
	models.Outcome
}

// GetAssignmentsHandler is the generic listing endpoint with query filters.
func GetAssignmentsHandler(c *gin.Context) {
	assignments, err := service.GetAssignments(c.Request.Context(), models.AssignmentFilter{
		WorkerID: c.Query("workerId"),
		Status:   models.AssignmentStatus(c.Query("status")),
		PlanID:   c.Query("planId"),
	})
	if err != nil {
		helpers.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, assignments)
}

// GetLotPreviewHandler shows what a start would reserve right now, without
// reserving anything.
func GetLotPreviewHandler(c *gin.Context) {
	var request assignmentRequest
	err := c.BindUri(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	preview, err := service.GetLotPreview(c.Request.Context(), request.AssignmentID)
	if err != nil {
		helpers.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// StartAssignmentHandler reserves material and moves the assignment to
// in_progress. Partial reservations succeed with warnings in the body.
func StartAssignmentHandler(c *gin.Context) {
	var uriRequest assignmentRequest
	err := c.BindUri(&uriRequest)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}
	var request transitionRequest
	err = c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	result, err := service.StartAssignment(c.Request.Context(), uriRequest.AssignmentID, request.WorkerID)
	if err != nil {
		helpers.HandleDomainError(c, err)
		return
	}
	writeTransitionResult(c, result)
}

// PauseAssignmentHandler moves in_progress to paused.
func PauseAssignmentHandler(c *gin.Context) {
	simpleTransitionHandler(c, service.PauseAssignment)
}

// ResumeAssignmentHandler moves paused back to in_progress.
func ResumeAssignmentHandler(c *gin.Context) {
	simpleTransitionHandler(c, service.ResumeAssignment)
}

func simpleTransitionHandler(
	c *gin.Context,
	transition func(ctx context.Context, assignmentID string, workerID string) (*models.TransitionResult, error)) {
	var uriRequest assignmentRequest
	err := c.BindUri(&uriRequest)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}
	var request transitionRequest
	err = c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	result, err := transition(c.Request.Context(), uriRequest.AssignmentID, request.WorkerID)
	if err != nil {
		helpers.HandleDomainError(c, err)
		return
	}
	writeTransitionResult(c, result)
}

// CompleteAssignmentHandler reports the outcome and settles material
// consumption against the reservation.
func CompleteAssignmentHandler(c *gin.Context) {
	var uriRequest assignmentRequest
	err := c.BindUri(&uriRequest)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}
	var request completeRequest
	err = c.BindJSON(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	result, err := service.CompleteAssignment(c.Request.Context(), uriRequest.AssignmentID, request.WorkerID, request.Outcome)
	if err != nil {
		helpers.HandleDomainError(c, err)
		return
	}
	writeTransitionResult(c, result)
}

// GetStatusHistoryHandler returns the append-only transition audit trail.
func GetStatusHistoryHandler(c *gin.Context) {
	var request assignmentRequest
	err := c.BindUri(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	history, err := service.GetStatusHistory(c.Request.Context(), request.AssignmentID)
	if err != nil {
		helpers.HandleDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func writeTransitionResult(c *gin.Context, result *models.TransitionResult) {
	response := gin.H{
		"success":    true,
		"assignment": result.Assignment,
	}
	if len(result.Warnings) > 0 {
		response["warnings"] = result.Warnings
	}
	if len(result.Allocations) > 0 {
		response["allocations"] = result.Allocations
	}
	if len(result.Adjustments) > 0 {
		response["adjustments"] = result.Adjustments
		response["materialsProcessed"] = result.MaterialsProcessed
	}
	c.JSON(http.StatusOK, response)
}
