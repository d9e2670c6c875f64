package keys

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/graph"
)

// transformedData mimics a transform job: same rows, keys scrambled, other columns masked.
func transformedData() *dataset.Dataset {
	ds := originalsData().Clone()
	_ = ds.Each(func(t *dataset.Table) error {
		for _, row := range t.Rows {
			for i := range row {
				row[i] = "*****"
			}
		}
		return nil
	})
	return ds
}

func TestTransform_RelabelsGroupConsistently(t *testing.T) {
	orig := originalsData()
	out := transformedData()

	require.NoError(t, NewTransformer(ordersGraph(t)).Transform(out, orig))

	orders, _ := out.Get("orders")
	ids, _ := orders.Column("id")
	assert.Equal(t, []any{int64(0), int64(1), int64(2), int64(3), int64(4)}, ids)

	items, _ := out.Get("items")
	fks, _ := items.Column("order_id")
	origItems, _ := orig.Get("items")
	origFks, _ := origItems.Column("order_id")
	for i, v := range fks {
		assert.Equal(t, origFks[i].(int64)-100, v)
	}

	// items.id is unreferenced, so it is encoded on its own values
	itemIDs, _ := items.Column("id")
	assert.Equal(t, int64(0), itemIDs[0])
	assert.Equal(t, int64(11), itemIDs[11])

	audit, _ := out.Get("audit")
	auditIDs, _ := audit.Column("id")
	assert.Equal(t, []any{int64(1), int64(0)}, auditIDs)

	// non-key columns are left as the transform produced them
	assert.Equal(t, "*****", items.Rows[0][2])
}

func TestTransform_Idempotent(t *testing.T) {
	orig := originalsData()
	x := NewTransformer(ordersGraph(t))

	once := transformedData()
	require.NoError(t, x.Transform(once, orig))

	twice := once.Clone()
	require.NoError(t, x.Transform(twice, orig))

	for _, name := range once.Names() {
		a, _ := once.Get(name)
		b, _ := twice.Get(name)
		assert.Equal(t, a.Rows, b.Rows, name)
		assert.Equal(t, a.Columns, b.Columns, name)
	}
}

func TestTransform_SkipsMissingTables(t *testing.T) {
	orig := originalsData()
	out := transformedData()
	out.Delete("items")

	require.NoError(t, NewTransformer(ordersGraph(t)).Transform(out, orig))
	_, ok := out.Get("items")
	assert.False(t, ok)
}

func TestTransform_RowCountMismatch(t *testing.T) {
	orig := originalsData()
	out := transformedData()
	items, _ := out.Get("items")
	items.Rows = items.Rows[:10]

	err := NewTransformer(ordersGraph(t)).Transform(out, orig)
	var ce *ConsistencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "items", ce.Table)
}

func TestTransform_NullForeignKeyStaysNull(t *testing.T) {
	orig := originalsData()
	origItems, _ := orig.Get("items")
	origItems.Rows[3][1] = nil
	out := transformedData()

	require.NoError(t, NewTransformer(ordersGraph(t)).Transform(out, orig))
	items, _ := out.Get("items")
	assert.Nil(t, items.Rows[3][1])
	assert.Equal(t, int64(0), items.Rows[0][1])
}

func TestTransform_MissingOriginal(t *testing.T) {
	orig := originalsData()
	orig.Delete("orders")

	err := NewTransformer(ordersGraph(t)).Transform(transformedData(), orig)
	var ce *ConsistencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "orders", ce.Table)
}

func TestTransform_OrphanValuesJoinTheGroup(t *testing.T) {
	orig := originalsData()
	origItems, _ := orig.Get("items")
	origItems.Rows[0][1] = int64(50) // no such order in the source
	out := transformedData()

	require.NoError(t, NewTransformer(ordersGraph(t)).Transform(out, orig))

	items, _ := out.Get("items")
	assert.Equal(t, int64(0), items.Rows[0][1])
	orders, _ := out.Get("orders")
	assert.Equal(t, int64(1), orders.Rows[0][0])
}

func TestTransform_MissingOwnerKeepsChildForeignKeys(t *testing.T) {
	orig := originalsData()
	out := transformedData()
	out.Delete("orders")

	x := NewTransformer(ordersGraph(t))
	require.NoError(t, x.Transform(out, orig))

	// The orders rows that remain in the destination still carry ids 100..104.
	items, _ := out.Get("items")
	fks, _ := items.Column("order_id")
	origItems, _ := orig.Get("items")
	origFks, _ := origItems.Column("order_id")
	assert.Equal(t, origFks, fks)

	// items.id owns no group and is relabelled as usual.
	ids, _ := items.Column("id")
	assert.Equal(t, int64(0), ids[0])

	assert.Equal(t, []graph.KeyRef{{Table: "items", Column: "order_id"}}, x.KeptOriginal())
}

func TestTransform_MissingChildKeepsOwnerKeys(t *testing.T) {
	orig := originalsData()
	out := transformedData()
	out.Delete("items")

	x := NewTransformer(ordersGraph(t))
	require.NoError(t, x.Transform(out, orig))

	orders, _ := out.Get("orders")
	ids, _ := orders.Column("id")
	assert.Equal(t, []any{int64(100), int64(101), int64(102), int64(103), int64(104)}, ids)
	assert.Equal(t, []graph.KeyRef{{Table: "orders", Column: "id"}}, x.KeptOriginal())

	// A complete run afterwards relabels again and clears the list.
	full := transformedData()
	require.NoError(t, x.Transform(full, orig))
	assert.Empty(t, x.KeptOriginal())
}
