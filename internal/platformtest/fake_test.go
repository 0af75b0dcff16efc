package platformtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/platform"
)

func TestStoreTemplateSearch(t *testing.T) {
	ctx := context.Background()
	s := NewStore[model.Asset]("asset")
	a1, _ := s.Create(ctx, model.Asset{Name: "a1", Status: model.StatusPending})
	_, _ = s.Create(ctx, model.Asset{Name: "a2", Status: model.StatusActive})
	_, _ = s.Create(ctx, model.Asset{Name: "a3", Status: model.StatusPending})
	assert.Equal(t, "asset-1", a1.ID)

	page, err := s.GetByTemplate(ctx, &model.Asset{Status: model.StatusPending}, model.All)
	require.NoError(t, err)
	assert.Equal(t, 2, page.NumberOfHits)
	assert.Equal(t, "a1", page.Items[0].Name)
	assert.Equal(t, "a3", page.Items[1].Name)

	page, err = s.GetByTemplate(ctx, nil, model.SearchOptions{Take: 1, Skip: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.NumberOfHits)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "a2", page.Items[0].Name)
}

func TestStoreUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore[model.Order]("order")
	o, _ := s.Create(ctx, model.Order{Quantity: 5})
	o.Status = model.StatusActive
	_, err := s.Update(ctx, o)
	require.NoError(t, err)
	got, err := s.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Status)

	require.NoError(t, s.Delete(ctx, o.ID))
	_, err = s.GetByID(ctx, o.ID)
	assert.ErrorIs(t, err, platform.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, o.ID), platform.ErrNotFound)
}

func TestGridNodeExtras(t *testing.T) {
	ctx := context.Background()
	f := New()
	root, _ := f.GridNodes.Create(ctx, model.GridNode{Name: "root"})
	child, err := f.GridNodes.AddLinkedGridNode(ctx, root.ID, model.GridNode{Name: "child"})
	require.NoError(t, err)
	links := f.GridNodeLinks.Items()
	require.Len(t, links, 1)
	assert.Equal(t, root.ID, links[0].SourceGridNodeID)
	assert.Equal(t, child.ID, links[0].TargetGridNodeID)

	loc, err := f.GridNodes.OpenGridNodeForTrade(ctx, child.ID, "m1")
	require.NoError(t, err)
	assert.Equal(t, child.ID, loc.GridNodeID)

	_, err = f.GridNodes.AddLinkedGridNode(ctx, "missing", model.GridNode{})
	assert.ErrorIs(t, err, platform.ErrNotFound)
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	f := New()
	u, err := f.Users.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	created, _ := f.Users.Create(ctx, model.User{Email: "a@example.com"})
	require.NoError(t, f.Users.SetCurrentUserID(ctx, created.ID))
	u, err = f.Users.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", u.Email)
}

func TestServerSideDefaults(t *testing.T) {
	ctx := context.Background()
	f := New()
	a, err := f.Assets.Create(ctx, model.Asset{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, a.Status)

	o, err := f.Orders.Create(ctx, model.Order{Side: model.SideSell})
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, o.Status)

	closed, err := f.Orders.Create(ctx, model.Order{Status: model.StatusClosed})
	require.NoError(t, err)
	assert.Equal(t, model.StatusClosed, closed.Status)
}
