package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Writer appends field-level change records inside the caller's transaction,
// so a mutation and its audit trail commit or roll back together.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// Change is one field diff to record.
type Change struct {
	EntityKind string
	EntityID   int64
	Field      string
	Old        string
	New        string
	Metadata   map[string]any
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, actorID int64, c Change) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	var meta any
	if len(c.Metadata) > 0 {
		data, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		meta = string(data)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO audit_log(id,entity_kind,entity_id,field,old_value,new_value,actor_id,ts,metadata_json) VALUES (?,?,?,?,?,?,?,?,?)`,
		uuid.New().String(), c.EntityKind, c.EntityID, c.Field, nullable(c.Old), nullable(c.New), actorID, ts, meta)
	return err
}

// AppendAll records a batch of diffs for one actor.
func (w Writer) AppendAll(ctx context.Context, tx *sql.Tx, actorID int64, changes []Change) error {
	for _, c := range changes {
		if err := w.Append(ctx, tx, actorID, c); err != nil {
			return err
		}
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
