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

package helpers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/internal"
	"go.uber.org/zap"
)

// HandleDomainError writes the JSON error response matching the error kind.
// Unknown errors are treated as internal server errors.
func HandleDomainError(c *gin.Context, err error) {
	if c == nil {
		panic("HandleDomainError: c is nil")
	}
	if err == nil {
		err = errors.New("unknown error")
	}

	erx := internal.SanitizeString(err.Error())
	status := statusForKind(models.KindOf(err))

	if status == http.StatusInternalServerError {
		zap.S().Errorw("Internal server error", "error", erx, "route", c.FullPath())
	} else {
		zap.S().Infow("Request rejected", "error", erx, "status", status, "route", c.FullPath())
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   erx,
		"status":  status,
	})
}

func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindInvalidStateTransition, models.KindValidation, models.KindInsufficientStock:
		return http.StatusBadRequest
	case models.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func HandleInvalidInputError(c *gin.Context, err error) {
	if c == nil {
		panic("HandleInvalidInputError: c is nil")
	}
	if err == nil {
		err = errors.New("unknown error")
	}
	erx := internal.SanitizeString(err.Error())
	zap.S().Infow("Invalid input error", "error", erx)

	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   erx,
		"status":  http.StatusBadRequest,
		"message": "You have provided a wrong input. Please check your parameters.",
	})
}
