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

	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
)

// GetLotPreview computes the allocation each requirement of the assignment's
// node would get if the task were started right now. Nothing is locked or
// reserved; a concurrent start may make the preview stale immediately.
func (s *Service) GetLotPreview(ctx context.Context, assignmentID string) (models.LotPreview, error) {
	a, err := s.conn.GetAssignment(ctx, assignmentID)
	if err != nil {
		return models.LotPreview{}, err
	}

	exists, err := s.graph.NodeExists(ctx, a.NodeID)
	if err != nil {
		return models.LotPreview{}, err
	}
	if !exists {
		return models.LotPreview{}, models.NotFoundf("plan node %s not found", a.NodeID)
	}

	requirements, err := s.graph.NodeMaterialRequirements(ctx, a.NodeID)
	if err != nil {
		return models.LotPreview{}, err
	}

	preview := models.LotPreview{
		AssignmentID: assignmentID,
		Materials:    make([]models.MaterialAllocation, 0, len(requirements)),
	}
	for _, requirement := range requirements {
		if !requirement.RequiredQuantity.IsPositive() {
			continue
		}
		lots, err := s.conn.GetLots(ctx, requirement.MaterialCode)
		if err != nil {
			return models.LotPreview{}, err
		}
		preview.Materials = append(preview.Materials, AllocateFIFO(requirement.MaterialCode, lots, requirement.RequiredQuantity))
	}
	return preview, nil
}
