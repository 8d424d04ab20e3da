package odm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityDirtyTracking(t *testing.T) {
	e := NewEntity(map[string]any{"_id": "u1", "email": "a@example.com"})
	assert.True(t, e.IsNew())
	assert.Equal(t, []string{"_id", "email"}, e.Dirty())

	e.Clean()
	assert.False(t, e.IsDirty())

	e.Set("email", "a@example.com")
	assert.False(t, e.IsDirty("email"))

	e.Set("email", "b@example.com")
	e.Set("email", "c@example.com")
	assert.True(t, e.IsDirty("email"))
	assert.Equal(t, "a@example.com", e.Original("email"))
	assert.Equal(t, "c@example.com", e.Get("email"))

	e.SetDirty("email", false)
	assert.False(t, e.IsDirty())
	assert.Equal(t, "c@example.com", e.Original("email"))
}

func TestEntityFields(t *testing.T) {
	e := HydrateEntity(map[string]any{"_id": "u1", "email": "a@example.com", "nick": nil}, "Users")
	assert.False(t, e.IsNew())
	assert.False(t, e.IsDirty())
	assert.Equal(t, "Users", e.Source())
	assert.Equal(t, "u1", e.ID())

	assert.True(t, e.Has("_id", "email"))
	assert.False(t, e.Has("nick"))
	assert.False(t, e.Has())

	assert.Equal(t, map[string]any{"email": "a@example.com", "missing": nil}, e.Extract([]string{"email", "missing"}, false))
	e.Set("email", "b@example.com")
	assert.Equal(t, map[string]any{"email": "b@example.com"}, e.Extract([]string{"_id", "email"}, true))

	e.Unset("email")
	assert.Equal(t, []string{"_id", "nick"}, e.Fields())
	assert.False(t, e.IsDirty("email"))

	m := e.ToMap()
	m["_id"] = "changed"
	assert.Equal(t, "u1", e.ID())
}

func TestEntityErrors(t *testing.T) {
	e := NewEntity(nil)
	assert.False(t, e.HasErrors())

	e.SetError("email", "invalid")
	e.SetErrors(map[string][]string{"age": {"too small"}, "email": {"taken"}})
	assert.True(t, e.HasErrors())
	assert.Equal(t, []string{"age", "email"}, e.ErrorFields())
	assert.Equal(t, []string{"invalid", "taken"}, e.FieldErrors("email"))

	errs := e.Errors()
	errs["email"][0] = "changed"
	assert.Equal(t, "invalid", e.FieldErrors("email")[0])

	e.Clean()
	assert.False(t, e.HasErrors())
}

func TestEntityScan(t *testing.T) {
	e := HydrateEntity(map[string]any{"_id": "u1", "email": "a@example.com", "age": int64(30)}, "Users")
	var u testUser
	require.NoError(t, e.Scan(&u))
	assert.Equal(t, testUser{ID: "u1", Email: "a@example.com", Age: 30}, u)
}
