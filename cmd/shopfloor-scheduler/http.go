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

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/controllers"
	"go.uber.org/zap"
)

// SetupRestAPI initializes the REST API and starts listening
func SetupRestAPI(version string) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - Logs to stdout.
	//   - RFC3339 with UTC time format.
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	router.Use(ginzap.RecoveryWithZap(zap.L(), true))

	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Healthcheck
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiString := fmt.Sprintf("/api/v%s", version)
	v1 := router.Group(apiString)
	{
		v1.GET("/assignments", controllers.GetAssignmentsHandler)
		v1.GET("/assignments/:assignmentId/lot-preview", controllers.GetLotPreviewHandler)
		v1.GET("/assignments/:assignmentId/history", controllers.GetStatusHistoryHandler)
		v1.POST("/assignments/:assignmentId/start", controllers.StartAssignmentHandler)
		v1.POST("/assignments/:assignmentId/pause", controllers.PauseAssignmentHandler)
		v1.POST("/assignments/:assignmentId/resume", controllers.ResumeAssignmentHandler)
		v1.POST("/assignments/:assignmentId/complete", controllers.CompleteAssignmentHandler)

		v1.GET("/workers/:workerId/assignments", controllers.GetWorkerAssignmentsHandler)
		v1.GET("/workers/:workerId/next-task", controllers.GetNextTaskHandler)
		v1.GET("/workers/:workerId/queue", controllers.GetWorkerQueueHandler)
		v1.GET("/workers/:workerId/stats", controllers.GetWorkerStatsHandler)
		v1.GET("/workers/:workerId/has-tasks", controllers.HasTasksHandler)
	}

	err := router.Run(":80")
	if err != nil {
		zap.S().Fatalf("Failed to start REST API: %s", err)
	}
}
