package keys

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/relsynth/internal/dataset"
	"github.com/dbsmedya/relsynth/internal/graph"
)

func ref(table, column string) graph.KeyRef {
	return graph.KeyRef{Table: table, Column: column}
}

func ordersGraph(t *testing.T) *graph.RelationshipGraph {
	t.Helper()
	g, err := graph.NewBuilder().
		AddTable("orders", "id").
		AddTable("items", "id").
		AddTable("audit", "id").
		AddReference(ref("orders", "id"), ref("items", "order_id")).
		Build()
	require.NoError(t, err)
	return g
}

// originalsData is the source: 5 orders with ids 100..104 and 12 items.
func originalsData() *dataset.Dataset {
	orders := dataset.NewTable("orders", []string{"id", "status"})
	for i := 0; i < 5; i++ {
		orders.Rows = append(orders.Rows, []any{int64(100 + i), "paid"})
	}
	items := dataset.NewTable("items", []string{"id", "order_id", "sku"})
	for i := 0; i < 12; i++ {
		items.Rows = append(items.Rows, []any{int64(500 + i), int64(100 + i%5), "sku"})
	}
	audit := dataset.NewTable("audit", []string{"id", "msg"})
	audit.Rows = [][]any{{int64(9), "a"}, {int64(7), "b"}}

	ds := dataset.New()
	ds.Set(orders)
	ds.Set(items)
	ds.Set(audit)
	return ds
}

// syntheticData is what generation returns: key columns stripped.
func syntheticData(orders, items int) *dataset.Dataset {
	o := dataset.NewTable("orders", []string{"status"})
	for i := 0; i < orders; i++ {
		o.Rows = append(o.Rows, []any{"new"})
	}
	it := dataset.NewTable("items", []string{"sku"})
	for i := 0; i < items; i++ {
		it.Rows = append(it.Rows, []any{"gen"})
	}
	a := dataset.NewTable("audit", []string{"msg"})
	a.Rows = [][]any{{"x"}, {"y"}, {"z"}}

	ds := dataset.New()
	ds.Set(o)
	ds.Set(it)
	ds.Set(a)
	return ds
}

func counts(t *testing.T, tbl *dataset.Table, col string) map[any]int {
	t.Helper()
	values, err := tbl.Column(col)
	require.NoError(t, err)
	out := make(map[any]int)
	for _, v := range values {
		out[v]++
	}
	return out
}

func seeded() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestSynthesize_OrdersItems(t *testing.T) {
	ds := syntheticData(5, 12)
	s := NewSynthesizer(ordersGraph(t), SynthesizerOptions{Rand: seeded()})

	require.NoError(t, s.Synthesize(ds, originalsData()))

	orders, _ := ds.Get("orders")
	assert.Equal(t, []string{"id", "status"}, orders.Columns)
	ids, _ := orders.Column("id")
	assert.Equal(t, []any{int64(0), int64(1), int64(2), int64(3), int64(4)}, ids)

	items, _ := ds.Get("items")
	assert.Equal(t, []string{"id", "order_id", "sku"}, items.Columns)
	assert.Equal(t, map[any]int{int64(0): 3, int64(1): 3, int64(2): 2, int64(3): 2, int64(4): 2}, counts(t, items, "order_id"))
}

func TestSynthesize_FanOutFourTen(t *testing.T) {
	ds := syntheticData(4, 10)
	s := NewSynthesizer(ordersGraph(t), SynthesizerOptions{Rand: seeded()})
	require.NoError(t, s.Synthesize(ds, nil))

	items, _ := ds.Get("items")
	assert.Equal(t, map[any]int{int64(0): 3, int64(1): 3, int64(2): 2, int64(3): 2}, counts(t, items, "order_id"))
}

func TestSynthesize_DensePrimaryKeys(t *testing.T) {
	ds := syntheticData(7, 30)
	s := NewSynthesizer(ordersGraph(t), SynthesizerOptions{Rand: seeded()})
	require.NoError(t, s.Synthesize(ds, originalsData()))

	for _, name := range []string{"orders", "items", "audit"} {
		tbl, _ := ds.Get(name)
		ids, err := tbl.Column("id")
		require.NoError(t, err)
		for i, v := range ids {
			assert.Equal(t, int64(i), v, "%s row %d", name, i)
		}
	}
}

func TestSynthesize_ForeignKeysInRange(t *testing.T) {
	for _, sizes := range [][2]int{{1, 9}, {3, 3}, {10, 4}, {6, 0}} {
		ds := syntheticData(sizes[0], sizes[1])
		s := NewSynthesizer(ordersGraph(t), SynthesizerOptions{Rand: seeded()})
		require.NoError(t, s.Synthesize(ds, nil))

		items, _ := ds.Get("items")
		fks, err := items.Column("order_id")
		require.NoError(t, err)
		assert.Len(t, fks, sizes[1])
		for _, v := range fks {
			id := v.(int64)
			assert.True(t, id >= 0 && id < int64(sizes[0]), "fk %d out of range for %d orders", id, sizes[0])
		}
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	run := func() []any {
		ds := syntheticData(5, 12)
		require.NoError(t, NewSynthesizer(ordersGraph(t), SynthesizerOptions{Rand: seeded()}).Synthesize(ds, nil))
		items, _ := ds.Get("items")
		v, _ := items.Column("order_id")
		return v
	}
	assert.Equal(t, run(), run())
}

func TestSynthesize_PreservedOwner(t *testing.T) {
	ds := syntheticData(0, 9)
	orig := originalsData()
	origOrders, _ := orig.Get("orders")
	ds.Set(origOrders.Clone())

	s := NewSynthesizer(ordersGraph(t), SynthesizerOptions{Rand: seeded(), Preserve: []string{"orders"}})
	require.NoError(t, s.Synthesize(ds, orig))

	orders, _ := ds.Get("orders")
	assert.Equal(t, origOrders.Rows, orders.Rows)

	items, _ := ds.Get("items")
	c := counts(t, items, "order_id")
	assert.Len(t, c, 5)
	for v := range c {
		assert.Contains(t, []any{int64(100), int64(101), int64(102), int64(103), int64(104)}, v)
	}
}

func TestSynthesize_PreservedChildOfSynthesizedOwner(t *testing.T) {
	ds := syntheticData(3, 0)
	orig := originalsData()
	origItems, _ := orig.Get("items")
	ds.Set(origItems.Clone())

	s := NewSynthesizer(ordersGraph(t), SynthesizerOptions{Rand: seeded(), Preserve: []string{"items"}})
	require.NoError(t, s.Synthesize(ds, orig))

	items, _ := ds.Get("items")
	ids, _ := items.Column("id")
	assert.Equal(t, int64(500), ids[0], "preserved primary keys stay")
	for v := range counts(t, items, "order_id") {
		assert.Contains(t, []any{int64(0), int64(1), int64(2)}, v)
	}
}

func TestSynthesize_PreservedBoth(t *testing.T) {
	orig := originalsData()
	ds := orig.Clone()

	s := NewSynthesizer(ordersGraph(t), SynthesizerOptions{Rand: seeded(), Preserve: []string{"orders", "items"}})
	require.NoError(t, s.Synthesize(ds, orig))

	items, _ := ds.Get("items")
	origItems, _ := orig.Get("items")
	assert.Equal(t, origItems.Rows, items.Rows)
}

func TestSynthesize_IndependentForeignKeys(t *testing.T) {
	g, err := graph.NewBuilder().
		AddTable("users", "id").
		AddTable("messages", "id").
		AddReference(ref("users", "id"), ref("messages", "sender_id")).
		AddReference(ref("users", "id"), ref("messages", "recipient_id")).
		Build()
	require.NoError(t, err)

	users := dataset.NewTable("users", []string{"name"})
	users.Rows = [][]any{{"a"}, {"b"}, {"c"}}
	messages := dataset.NewTable("messages", []string{"body"})
	for i := 0; i < 7; i++ {
		messages.Rows = append(messages.Rows, []any{"hi"})
	}
	ds := dataset.New()
	ds.Set(users)
	ds.Set(messages)

	require.NoError(t, NewSynthesizer(g, SynthesizerOptions{Rand: seeded()}).Synthesize(ds, nil))

	want := map[any]int{int64(0): 3, int64(1): 2, int64(2): 2}
	assert.Equal(t, want, counts(t, messages, "sender_id"))
	assert.Equal(t, want, counts(t, messages, "recipient_id"))
}

func TestSynthesize_MissingReferencingTable(t *testing.T) {
	ds := syntheticData(5, 12)
	ds.Delete("items")

	err := NewSynthesizer(ordersGraph(t), SynthesizerOptions{Rand: seeded()}).Synthesize(ds, nil)
	var ce *ConsistencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "items", ce.Table)
	assert.Equal(t, "order_id", ce.Column)
}

func TestSynthesize_MissingOwner(t *testing.T) {
	ds := syntheticData(5, 12)
	ds.Delete("orders")

	err := NewSynthesizer(ordersGraph(t), SynthesizerOptions{Rand: seeded()}).Synthesize(ds, nil)
	var ce *ConsistencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "orders", ce.Table)
}

func TestSynthesize_EmptyOwnerWithChildren(t *testing.T) {
	ds := syntheticData(0, 4)

	err := NewSynthesizer(ordersGraph(t), SynthesizerOptions{Rand: seeded()}).Synthesize(ds, nil)
	var ce *ConsistencyError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "items", ce.Table)
	assert.Contains(t, ce.Error(), "no rows")
}

func TestDistribute(t *testing.T) {
	parents := []any{"a", "b", "c"}

	out := Distribute(parents, 2, seeded())
	assert.ElementsMatch(t, []any{"a", "b"}, out)

	out = Distribute(parents, 7, seeded())
	assert.ElementsMatch(t, []any{"a", "a", "a", "b", "b", "c", "c"}, out)

	assert.Empty(t, Distribute(parents, 0, seeded()))
	assert.Empty(t, Distribute(nil, 3, seeded()))
}
