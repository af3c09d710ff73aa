package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

func umzug(id, status string) *models.Entity {
	return models.NewEntity(id, map[string]any{"status": status})
}

func TestCache_GetMissing(t *testing.T) {
	c := New()

	e, ok := c.Get("umzuege", "u1")
	assert.False(t, ok)
	assert.Nil(t, e)
	assert.Empty(t, c.GetAll("umzuege"))
}

func TestCache_UpsertReplacesInPlace(t *testing.T) {
	c := New()

	c.Upsert("umzuege", umzug("u1", "planned"))
	c.Upsert("umzuege", umzug("u2", "planned"))
	c.Upsert("umzuege", umzug("u1", "done"))

	all := c.GetAll("umzuege")
	require.Len(t, all, 2)
	assert.Equal(t, "u1", all[0].ID, "replacement keeps insertion position")
	assert.Equal(t, "done", all[0].GetString("status"))
	assert.Equal(t, "u2", all[1].ID)
	assert.Equal(t, 2, c.Len("umzuege"))
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := New()
	original := umzug("u1", "planned")
	c.Upsert("umzuege", original)

	// изменение исходного объекта и возвращенной копии не влияет на кэш
	original.Fields["status"] = "mutated"
	got, ok := c.Get("umzuege", "u1")
	require.True(t, ok)
	got.Fields["status"] = "mutated too"

	again, _ := c.Get("umzuege", "u1")
	assert.Equal(t, "planned", again.GetString("status"))
}

func TestCache_Delete(t *testing.T) {
	c := New()
	c.Upsert("umzuege", umzug("u1", "planned"))

	var changes []Change
	c.Subscribe("umzuege", func(ch Change) { changes = append(changes, ch) })

	assert.True(t, c.Delete("umzuege", "u1"))
	assert.False(t, c.Delete("umzuege", "u1"), "deleting a missing entity is a no-op")
	assert.False(t, c.Delete("other", "x"))

	require.Len(t, changes, 1)
	assert.Equal(t, ChangeDelete, changes[0].Kind)
	assert.Equal(t, "u1", changes[0].ID)
	assert.Equal(t, 0, c.Len("umzuege"))
}

func TestCache_MarkOptimistic(t *testing.T) {
	c := New()
	e := umzug("u1", "planned")
	e.Version = 4
	c.Upsert("umzuege", e)

	assert.True(t, c.MarkOptimistic("umzuege", "u1", true))
	got, _ := c.Get("umzuege", "u1")
	assert.True(t, got.IsOptimistic)
	assert.Equal(t, int64(4), got.Version)
	assert.Equal(t, "planned", got.GetString("status"))

	assert.True(t, c.MarkOptimistic("umzuege", "u1", false))
	got, _ = c.Get("umzuege", "u1")
	assert.False(t, got.IsOptimistic)

	assert.False(t, c.MarkOptimistic("umzuege", "missing", true))
}

func TestCache_SubscribeOrderingAndVisibility(t *testing.T) {
	c := New()

	var seen []string
	unsubscribe := c.Subscribe("umzuege", func(ch Change) {
		// изменение уже видно читателям в момент уведомления
		e, ok := c.Get("umzuege", ch.ID)
		if ch.Kind == ChangeUpsert {
			require.True(t, ok)
			seen = append(seen, ch.ID+":"+e.GetString("status"))
		}
	})
	otherCalls := 0
	c.Subscribe("tasks", func(Change) { otherCalls++ })

	c.Upsert("umzuege", umzug("u1", "a"))
	c.Upsert("umzuege", umzug("u2", "b"))
	c.Upsert("umzuege", umzug("u1", "c"))
	unsubscribe()
	c.Upsert("umzuege", umzug("u3", "d"))

	assert.Equal(t, []string{"u1:a", "u2:b", "u1:c"}, seen)
	assert.Equal(t, 0, otherCalls)
}

func TestCache_ReplaceAll(t *testing.T) {
	c := New()
	c.Upsert("umzuege", umzug("u1", "old"))
	pending := umzug("tmp-1", "optimistic")
	pending.IsOptimistic = true
	c.Upsert("umzuege", pending)

	var kinds []ChangeKind
	c.Subscribe("umzuege", func(ch Change) { kinds = append(kinds, ch.Kind) })

	c.ReplaceAll("umzuege", []*models.Entity{
		umzug("u1", "fresh"),
		umzug("u2", "fresh"),
		umzug("u2", "duplicate"),
	}, func(id string) bool { return id == "tmp-1" })

	all := c.GetAll("umzuege")
	require.Len(t, all, 3)
	assert.Equal(t, "tmp-1", all[0].ID)
	assert.True(t, all[0].IsOptimistic)
	assert.Equal(t, "fresh", all[1].GetString("status"))
	assert.Equal(t, "u2", all[2].ID)
	assert.Equal(t, "fresh", all[2].GetString("status"))
	assert.Equal(t, []ChangeKind{ChangeReplace}, kinds)
}

func TestCache_SnapshotAndCollections(t *testing.T) {
	c := New()
	c.Upsert("umzuege", umzug("u1", "a"))
	c.Upsert("tasks", umzug("t1", "b"))
	c.Subscribe("empty", func(Change) {})

	assert.Equal(t, []string{"tasks", "umzuege"}, c.Collections())

	snap := c.Snapshot()
	assert.Len(t, snap["umzuege"], 1)
	assert.Len(t, snap["tasks"], 1)
	assert.Empty(t, snap["empty"])
}
