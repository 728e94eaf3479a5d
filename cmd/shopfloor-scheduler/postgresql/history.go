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

	"github.com/jackc/pgx/v5"
	"github.com/united-manufacturing-hub/shopfloor-scheduler/cmd/shopfloor-scheduler/models"
)

/*
	CREATE TABLE assignment_status_history (
	    id BIGSERIAL PRIMARY KEY,
	    assignment_id TEXT NOT NULL,
	    from_status TEXT NOT NULL,
	    to_status TEXT NOT NULL,
	    actor_worker_id TEXT NOT NULL,
	    recorded_at TIMESTAMPTZ NOT NULL
	);
*/

// InsertStatusHistory appends one transition audit row. The table is
// append-only; nothing in this service updates or deletes it.
func InsertStatusHistory(ctx context.Context, tx pgx.Tx, entry models.StatusHistoryEntry) error {
	sqlStatement := `INSERT INTO assignment_status_history(assignment_id, from_status, to_status, actor_worker_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := tx.Exec(ctx, sqlStatement,
		entry.AssignmentID, string(entry.FromStatus), string(entry.ToStatus), entry.ActorWorkerID, entry.RecordedAt)
	if err != nil {
		return errDB(sqlStatement, err)
	}
	return nil
}

// GetStatusHistory lists the audit trail of one assignment, oldest first.
func (c *Connection) GetStatusHistory(ctx context.Context, assignmentID string) ([]models.StatusHistoryEntry, error) {
	sqlStatement := `SELECT assignment_id, from_status, to_status, actor_worker_id, recorded_at
		FROM assignment_status_history WHERE assignment_id = $1 ORDER BY id ASC`
	rows, err := c.Db.Query(ctx, sqlStatement, assignmentID)
	if err != nil {
		return nil, errDB(sqlStatement, err)
	}
	defer rows.Close()

	var entries []models.StatusHistoryEntry
	for rows.Next() {
		var e models.StatusHistoryEntry
		err = rows.Scan(&e.AssignmentID, &e.FromStatus, &e.ToStatus, &e.ActorWorkerID, &e.RecordedAt)
		if err != nil {
			return nil, errDB(sqlStatement, err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, errDB(sqlStatement, err)
	}
	return entries, nil
}
