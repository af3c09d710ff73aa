package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Служебные поля сущности, которые добавляет слой синхронизации.
const (
	FieldID         = "id"
	FieldMongoID    = "_id"
	FieldOptimistic = "_isOptimistic"
	FieldVersion    = "_version"
	FieldUpdatedAt  = "updatedAt"
)

// Entity представляет доменную запись (переезд, сотрудник, задача ...) в локальном кэше.
// Поля записи произвольные (JSON), плюс два служебных поля синхронизации:
// IsOptimistic (_isOptimistic) и Version (_version).
type Entity struct {
	Fields       map[string]any // Fields произвольные JSON поля записи без id/_version/_isOptimistic
	ID           string         // ID стабильный идентификатор записи
	Version      int64          // Version монотонный маркер для last-write-wins
	IsOptimistic bool           // IsOptimistic true пока запись ждет подтверждения сервера
}

// NewEntity creates an entity from raw fields; id and sync keys are lifted out of fields.
func NewEntity(id string, fields map[string]any) *Entity {
	e := &Entity{ID: id, Fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		e.setField(k, v)
	}
	return e
}

// DecodeEntity parses a JSON object into an Entity.
// Принимает как "id", так и "_id" (ответы бэкенда на Mongo).
func DecodeEntity(raw []byte) (*Entity, error) {
	var e Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Get returns the field value or nil.
func (e *Entity) Get(field string) any {
	if e == nil || e.Fields == nil {
		return nil
	}
	return e.Fields[field]
}

// GetString returns the field as string, empty if missing or not a string.
func (e *Entity) GetString(field string) string {
	s, _ := e.Get(field).(string)
	return s
}

// IsNewerThan сравнивает версии двух записей по правилу LWW.
// Запись без версии (0) считается не новее любой другой.
func (e *Entity) IsNewerThan(other *Entity) bool {
	if other == nil {
		return true
	}
	return e.Version > other.Version
}

// Merge returns a copy with patch fields applied over the current fields.
func (e *Entity) Merge(patch map[string]any) *Entity {
	merged := e.Clone()
	for k, v := range patch {
		merged.setField(k, v)
	}
	return merged
}

// Clone создает глубокую копию записи
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	return &Entity{
		ID:           e.ID,
		Version:      e.Version,
		IsOptimistic: e.IsOptimistic,
		Fields:       CloneFields(e.Fields),
	}
}

// Equal reports whether both entities carry the same id, version, flag and fields.
func (e *Entity) Equal(other *Entity) bool {
	if e == nil || other == nil {
		return e == other
	}
	a, err := json.Marshal(e)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}

// MarshalJSON renders the entity as a flat object: fields plus id, _version, _isOptimistic.
func (e *Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+3)
	for k, v := range e.Fields {
		out[k] = v
	}
	out[FieldID] = e.ID
	if e.Version != 0 {
		out[FieldVersion] = e.Version
	}
	out[FieldOptimistic] = e.IsOptimistic
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode entity: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("failed to decode entity: null object")
	}
	*e = Entity{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		e.setField(k, v)
	}
	if e.Version == 0 {
		e.Version = versionFromTimestamp(e.Fields[FieldUpdatedAt])
	}
	return nil
}

func (e *Entity) setField(k string, v any) {
	switch k {
	case FieldID:
		if id := idString(v); id != "" {
			e.ID = id
		}
	case FieldMongoID:
		if id := idString(v); id != "" && e.ID == "" {
			e.ID = id
		}
	case FieldOptimistic:
		b, _ := v.(bool)
		e.IsOptimistic = b
	case FieldVersion:
		e.Version = toInt64(v)
	default:
		if e.Fields == nil {
			e.Fields = make(map[string]any)
		}
		e.Fields[k] = v
	}
}

// CloneFields копирует JSON-подобную структуру (map/slice) рекурсивно.
func CloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneFields(t)
	case []any:
		cp := make([]any, len(t))
		for i, item := range t {
			cp[i] = cloneValue(item)
		}
		return cp
	default:
		return v
	}
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case json.Number:
		return t.String()
	case int, int64:
		return fmt.Sprintf("%d", t)
	default:
		return ""
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	case json.Number:
		n, _ := t.Int64()
		return n
	default:
		return 0
	}
}

// versionFromTimestamp использует updatedAt как версию, если сервер не прислал _version.
func versionFromTimestamp(v any) int64 {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return ts.UnixMilli()
}
