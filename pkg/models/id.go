package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
)

// NoteID is the typed ID shared by all four record kinds.
//
// A single ID type (rather than one per kind) matches the application's
// invariant that ids are unique across all collections: soft-delete undo and
// cross-kind conversion address records by id regardless of which collection
// currently holds them. The kind determines the table an ID resolves to, so
// RecordID takes the kind as an argument.
type NoteID struct {
	uuid uuid.UUID
}

func NewNoteID() NoteID {
	return NoteID{uuid: uuid.New()}
}

func NewNoteIDFromUUID(id uuid.UUID) NoteID {
	return NoteID{uuid: id}
}

func ParseNoteID(s string) (NoteID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NoteID{}, fmt.Errorf("invalid note ID: %w", err)
	}
	return NoteID{uuid: id}, nil
}

func (n NoteID) UUID() uuid.UUID { return n.uuid }
func (n NoteID) String() string  { return n.uuid.String() }
func (n NoteID) IsZero() bool    { return n.uuid == uuid.Nil }

// RecordID returns the SurrealDB record ID for this note within the given
// kind's table.
func (n NoteID) RecordID(kind Kind) surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: kind.Table(),
		ID:    n.uuid.String(),
	}
}

func (n NoteID) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.uuid.String())
}

func (n *NoteID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	n.uuid = id
	return nil
}

// MarshalCBOR is unused on its own; the remote store marshals ids through
// RecordID(kind) because the table depends on the collection being written.
// UnmarshalCBOR accepts a RecordID from any table since conversion moves ids
// across tables.
func (n NoteID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(n.uuid.String())
}

func (n *NoteID) UnmarshalCBOR(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	// Plain string encoding (major type 3).
	if data[0]>>5 == 3 {
		var s string
		if err := cbor.Unmarshal(data, &s); err != nil {
			return err
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid UUID in note ID: %w", err)
		}
		n.uuid = id
		return nil
	}

	// SurrealDB RecordID encoding: tag 8 wrapping [table, id].
	if data[0]>>5 != 6 {
		return fmt.Errorf("expected CBOR tag or string for note ID, got major type %d", data[0]>>5)
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}
	if tag.Number != 8 {
		return fmt.Errorf("expected RecordID tag (8), got %d", tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid RecordID format: expected [table, id] array")
	}
	idStr, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: ID must be string")
	}
	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid UUID in RecordID: %w", err)
	}
	n.uuid = parsed
	return nil
}

func (n NoteID) Value() (driver.Value, error) {
	if n.IsZero() {
		return nil, nil
	}
	return n.uuid.String(), nil
}

func (n *NoteID) Scan(value any) error {
	if value == nil {
		n.uuid = uuid.Nil
		return nil
	}

	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		n.uuid = id
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		n.uuid = id
	default:
		return fmt.Errorf("cannot scan type %T into NoteID", value)
	}
	return nil
}

func (NoteID) GormDataType() string { return "uuid" }
