package cart_test

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/catalog"
)

func fakeListing(t *testing.T, n int) (*catalog.Catalog, []catalog.Item) {
	t.Helper()
	items := make([]catalog.Item, n)
	for i := range items {
		items[i] = catalog.Item{
			ID:     gofakeit.UUID(),
			Title:  gofakeit.BookTitle(),
			Author: gofakeit.BookAuthor(),
			Price:  int64(gofakeit.IntRange(100, 40000)),
			Tag:    gofakeit.BookGenre(),
		}
	}
	c, err := catalog.New(items)
	require.NoError(t, err)
	return c, items
}

type renderLog struct {
	snapshots []cart.Snapshot
}

func (r *renderLog) Render(s cart.Snapshot) { r.snapshots = append(r.snapshots, s) }

func TestAddRepeatedlyKeepsOneLine(t *testing.T) {
	listing, items := fakeListing(t, 3)
	m := cart.NewManager(listing)

	calls := gofakeit.IntRange(1, 20)
	for i := 0; i < calls; i++ {
		require.True(t, m.Add(items[1].ID))
	}

	lines := m.Lines()
	require.Len(t, lines, 1)
	require.Equal(t, calls, lines[0].Qty)
	require.Equal(t, cart.Totals{Count: calls, Total: items[1].Price * int64(calls)}, m.Totals())
}

func TestTotalsMatchLines(t *testing.T) {
	listing, items := fakeListing(t, 5)
	m := cart.NewManager(listing)
	require.Equal(t, cart.Totals{}, m.Totals())
	require.True(t, m.Totals().Empty())

	for i := 0; i < 30; i++ {
		item := items[gofakeit.IntRange(0, len(items)-1)]
		switch gofakeit.IntRange(0, 3) {
		case 0, 1:
			m.Add(item.ID)
		case 2:
			m.UpdateQty(item.ID, gofakeit.IntRange(-3, 3))
		case 3:
			m.Remove(item.ID)
		}

		var want cart.Totals
		seen := map[string]bool{}
		for _, l := range m.Lines() {
			require.False(t, seen[l.ID], "duplicate line for %s", l.ID)
			seen[l.ID] = true
			require.GreaterOrEqual(t, l.Qty, 1)
			want.Count += l.Qty
			want.Total += l.Price * int64(l.Qty)
		}
		require.Equal(t, want, m.Totals())
	}
}

func TestUpdateQtyRemovesAtZero(t *testing.T) {
	listing, items := fakeListing(t, 2)
	m := cart.NewManager(listing)
	id := items[0].ID

	m.Add(id)
	m.Add(id)
	require.True(t, m.UpdateQty(id, 1))
	require.Equal(t, 3, m.Lines()[0].Qty)

	require.True(t, m.UpdateQty(id, -5))
	require.Empty(t, m.Lines())
	require.False(t, m.UpdateQty(id, 1))
	require.Empty(t, m.Lines())

	require.True(t, m.Add(id))
	require.Equal(t, 1, m.Lines()[0].Qty)
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	listing, items := fakeListing(t, 2)
	log := &renderLog{}
	m := cart.NewManager(listing, log)
	m.Add(items[0].ID)
	before := m.Snapshot()

	require.False(t, m.Add("does-not-exist"))
	require.False(t, m.UpdateQty(items[1].ID, 1))
	require.False(t, m.Remove(items[1].ID))

	require.Empty(t, cmp.Diff(before, m.Snapshot()))
	require.Len(t, log.snapshots, 2)
	require.Empty(t, cmp.Diff(before, log.snapshots[1]))
}

func TestRemoveOfMissingIDStillRenders(t *testing.T) {
	listing, _ := fakeListing(t, 1)
	renders := 0
	m := cart.NewManager(listing, cart.RenderFunc(func(cart.Snapshot) { renders++ }))

	require.False(t, m.Remove("missing"))
	require.Equal(t, 1, renders)

	require.False(t, m.Add("missing"))
	require.False(t, m.UpdateQty("missing", 1))
	require.Equal(t, 1, renders)
}

func TestRemovePreservesOrderOfOthers(t *testing.T) {
	listing, items := fakeListing(t, 4)
	m := cart.NewManager(listing)
	for _, it := range items {
		m.Add(it.ID)
	}
	m.Add(items[2].ID)
	require.True(t, m.Remove(items[1].ID))

	want := []cart.Line{
		{Item: items[0], Qty: 1},
		{Item: items[2], Qty: 2},
		{Item: items[3], Qty: 1},
	}
	if diff := cmp.Diff(want, m.Lines()); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderAfterEveryMutation(t *testing.T) {
	listing, items := fakeListing(t, 2)
	log := &renderLog{}
	m := cart.NewManager(listing)
	m.Subscribe(log)
	m.Subscribe(nil)

	m.Add(items[0].ID)
	m.Add(items[1].ID)
	m.UpdateQty(items[0].ID, 1)
	m.Remove(items[1].ID)
	m.Clear()

	require.Len(t, log.snapshots, 5)
	assert.Equal(t, cart.Totals{Count: 1, Total: items[0].Price}, log.snapshots[0].Totals)
	assert.Equal(t, cart.Totals{Count: 2, Total: items[0].Price * 2}, log.snapshots[3].Totals)
	assert.Empty(t, log.snapshots[4].Lines)
	assert.Equal(t, cart.Totals{}, log.snapshots[4].Totals)
}

func TestLinesReturnsCopy(t *testing.T) {
	listing, items := fakeListing(t, 1)
	m := cart.NewManager(listing)
	m.Add(items[0].ID)

	lines := m.Lines()
	lines[0].Qty = 99
	lines[0].Price = 1
	require.Equal(t, 1, m.Lines()[0].Qty)
	require.Equal(t, items[0].Price, m.Lines()[0].Price)
}

func TestApply(t *testing.T) {
	listing, items := fakeListing(t, 1)
	m := cart.NewManager(listing)
	id := items[0].ID

	steps := []struct {
		cmd     cart.Command
		changed bool
		qty     int
	}{
		{cmd: cart.Add(id), changed: true, qty: 1},
		{cmd: cart.Inc(id), changed: true, qty: 2},
		{cmd: cart.Command{Kind: cart.KindInc, ID: id}, changed: true, qty: 3},
		{cmd: cart.Dec(id), changed: true, qty: 2},
		{cmd: cart.Command{Kind: cart.KindDec, ID: id}, changed: true, qty: 1},
		{cmd: cart.Remove(id), changed: true, qty: 0},
		{cmd: cart.Dec(id), changed: false, qty: 0},
	}
	for _, step := range steps {
		changed, err := cart.Apply(m, step.cmd)
		require.NoError(t, err)
		require.Equal(t, step.changed, changed, step.cmd.Kind.String())
		require.Equal(t, step.qty, m.Totals().Count)
	}

	_, err := cart.Apply(m, cart.Checkout("buyer@example.com"))
	require.ErrorIs(t, err, cart.ErrNotCartCommand)
	require.Equal(t, "checkout", cart.KindCheckout.String())
	require.Equal(t, "kind(42)", cart.Kind(42).String())
}
