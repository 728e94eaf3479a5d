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
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/internal"
	"go.uber.org/zap"
)

// The plan graph and the worker directory are owned by the planning system;
// this service only reads them.
/*
	plan_node(node_id TEXT PRIMARY KEY, plan_id TEXT, name TEXT, operation_name TEXT, station_name TEXT)
	plan_node_edge(from_node_id TEXT, to_node_id TEXT)
	plan_node_material(node_id TEXT, material_code TEXT, required_quantity NUMERIC) -- per unit of output
	worker(id TEXT PRIMARY KEY, name TEXT)
*/

// NodeMaterialRequirements returns the per-unit material input ratios of a
// plan node. Requirements are immutable once a plan is released, so they sit
// in the ARC cache.
func (c *Connection) NodeMaterialRequirements(ctx context.Context, nodeID string) ([]models.MaterialRequirement, error) {
	if c.requirementCache != nil {
		if cached, ok := c.requirementCache.Get(nodeID); ok {
			return cached.([]models.MaterialRequirement), nil
		}
	}

	sqlStatement := `SELECT material_code, required_quantity::text FROM plan_node_material
		WHERE node_id = $1 ORDER BY material_code ASC`
	rows, err := c.Db.Query(ctx, sqlStatement, nodeID)
	if err != nil {
		return nil, errDB(sqlStatement, err)
	}
	defer rows.Close()

	requirements := make([]models.MaterialRequirement, 0)
	for rows.Next() {
		var r models.MaterialRequirement
		var qty string
		err = rows.Scan(&r.MaterialCode, &qty)
		if err != nil {
			return nil, errDB(sqlStatement, err)
		}
		if r.RequiredQuantity, err = decimal.NewFromString(qty); err != nil {
			return nil, errDB(sqlStatement, err)
		}
		requirements = append(requirements, r)
	}
	if err = rows.Err(); err != nil {
		return nil, errDB(sqlStatement, err)
	}

	if c.requirementCache != nil {
		c.requirementCache.Add(nodeID, requirements)
	}
	return requirements, nil
}

// NodeExists reports whether the plan node is known to the planning system.
// A node without material requirements still exists; callers that need to
// distinguish "no requirements" from "no such node" check here.
func (c *Connection) NodeExists(ctx context.Context, nodeID string) (bool, error) {
	sqlStatement := `SELECT EXISTS(SELECT 1 FROM plan_node WHERE node_id = $1)`
	var exists bool
	err := c.Db.QueryRow(ctx, sqlStatement, nodeID).Scan(&exists)
	if err != nil {
		return false, errDB(sqlStatement, err)
	}
	return exists, nil
}

// PredecessorsCompleted reports whether every predecessor node of nodeID has
// a completed assignment. A node with no predecessors is always ready.
func (c *Connection) PredecessorsCompleted(ctx context.Context, nodeID string) (bool, error) {
	sqlStatement := `SELECT COUNT(*) FROM plan_node_edge e
		WHERE e.to_node_id = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM work_assignment a
		      WHERE a.node_id = e.from_node_id AND a.status = 'completed')`
	var blocking int
	err := c.Db.QueryRow(ctx, sqlStatement, nodeID).Scan(&blocking)
	if err != nil {
		return false, errDB(sqlStatement, err)
	}
	return blocking == 0, nil
}

// NodeDisplay is the display projection of a plan node for queue views.
type NodeDisplay struct {
	Name          string
	OperationName string
	StationName   string
}

// GetNodeDisplay returns node display names, empty values if the node is
// unknown (queue rendering must not fail on a missing join).
func (c *Connection) GetNodeDisplay(ctx context.Context, nodeID string) (NodeDisplay, error) {
	sqlStatement := `SELECT name, operation_name, station_name FROM plan_node WHERE node_id = $1`
	var d NodeDisplay
	err := c.Db.QueryRow(ctx, sqlStatement, nodeID).Scan(&d.Name, &d.OperationName, &d.StationName)
	if errors.Is(err, pgx.ErrNoRows) {
		return NodeDisplay{}, nil
	} else if err != nil {
		return NodeDisplay{}, errDB(sqlStatement, err)
	}
	return d, nil
}

// GetWorkerName resolves a worker id to a display name through the tiered
// cache. Unknown workers resolve to an empty name.
func (c *Connection) GetWorkerName(ctx context.Context, workerID string) (string, error) {
	cacheKey := "worker-name-" + workerID
	if cached, value := internal.GetTiered(cacheKey); cached {
		if name, ok := value.(string); ok {
			return name, nil
		}
		if raw, ok := value.([]byte); ok {
			return string(raw), nil
		}
	}

	sqlStatement := `SELECT name FROM worker WHERE id = $1`
	var name string
	err := c.Db.QueryRow(ctx, sqlStatement, workerID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		zap.S().Debugf("Worker %s not found in directory", workerID)
		return "", nil
	} else if err != nil {
		return "", errDB(sqlStatement, err)
	}

	internal.SetTieredLongTerm(cacheKey, name)
	return name, nil
}
