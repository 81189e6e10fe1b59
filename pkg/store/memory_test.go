package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/resource-bus/pkg/resource"
)

var (
	_ resource.Store  = (*Memory)(nil)
	_ resource.Lister = (*Memory)(nil)
)

func TestMemory_LoadMissing(t *testing.T) {
	inst, err := NewMemory().Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, inst)
}

func TestMemory_UpsertLoadToJSON(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, err := m.Upsert(ctx, "1", json.RawMessage(`{"name":"Ada"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, first.(*Document).Revision)

	second, err := m.Upsert(ctx, "1", json.RawMessage(`{"name":"Grace"}`))
	require.NoError(t, err)
	doc := second.(*Document)
	assert.Equal(t, 2, doc.Revision)
	assert.Equal(t, first.(*Document).Created, doc.Created)

	inst, err := m.Load(ctx, "1")
	require.NoError(t, err)
	plain, err := m.ToJSON(ctx, inst)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Grace"}`, string(plain.(json.RawMessage)))
}

func TestMemory_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Upsert(ctx, "1", json.RawMessage(`{}`))
	require.NoError(t, err)

	inst, _ := m.Load(ctx, "1")
	inst.(*Document).Revision = 99

	again, _ := m.Load(ctx, "1")
	assert.Equal(t, 1, again.(*Document).Revision)
}

func TestMemory_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, id := range []string{"b", "a", "c"} {
		_, err := m.Upsert(ctx, id, json.RawMessage(`{}`))
		require.NoError(t, err)
	}
	require.NoError(t, m.Delete(ctx, "b"))
	require.NoError(t, m.Delete(ctx, "missing"))

	docs, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].(*Document).ID)
	assert.Equal(t, "c", docs[1].(*Document).ID)
}

func TestDocumentJSON_WrongType(t *testing.T) {
	_, err := DocumentJSON(context.Background(), "not a document")
	assert.Error(t, err)

	out, err := DocumentJSON(context.Background(), &Document{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out.(json.RawMessage)))
}
