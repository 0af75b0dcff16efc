package nodesapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/platform"
)

var errMissingID = errors.New("record id is required")

// repository implements platform.Repository for one collection.
type repository[T model.Entity] struct {
	c          *Client
	collection string
}

func (r repository[T]) Create(ctx context.Context, rec T) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodPost, r.collection, nil, nil, rec, &out)
	return out, err
}

// GetByTemplate posts the template to the search endpoint. Zero fields of the
// template are omitted and therefore match anything.
func (r repository[T]) GetByTemplate(ctx context.Context, tmpl *T, opts model.SearchOptions) (model.Page[T], error) {
	var body any = struct{}{}
	if tmpl != nil {
		body = tmpl
	}
	q := url.Values{}
	if opts.Take > 0 {
		q.Set("take", strconv.Itoa(opts.Take))
	}
	if opts.Skip > 0 {
		q.Set("skip", strconv.Itoa(opts.Skip))
	}
	var page model.Page[T]
	err := r.c.do(ctx, http.MethodPost, r.collection, []string{"search"}, q, body, &page)
	return page, err
}

func (r repository[T]) GetByID(ctx context.Context, id string) (T, error) {
	var out T
	if id == "" {
		return out, fmt.Errorf("%s: %w", r.collection, errMissingID)
	}
	err := r.c.do(ctx, http.MethodGet, r.collection, []string{id}, nil, nil, &out)
	return out, err
}

func (r repository[T]) Update(ctx context.Context, rec T) (T, error) {
	var out T
	if rec.EntityID() == "" {
		return out, fmt.Errorf("%s: %w", r.collection, errMissingID)
	}
	err := r.c.do(ctx, http.MethodPut, r.collection, []string{rec.EntityID()}, nil, rec, &out)
	return out, err
}

func (r repository[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%s: %w", r.collection, errMissingID)
	}
	return r.c.do(ctx, http.MethodDelete, r.collection, []string{id}, nil, nil, nil)
}

type users struct {
	repository[model.User]
}

func (u users) GetCurrentUser(ctx context.Context) (*model.User, error) {
	var out model.User
	err := u.c.do(ctx, http.MethodGet, u.collection, []string{"current"}, nil, nil, &out)
	if errors.Is(err, platform.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

func (u users) SetCurrentUserID(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%s: %w", u.collection, errMissingID)
	}
	return u.c.do(ctx, http.MethodGet, u.collection, []string{"set-current-user-id", id}, nil, nil, nil)
}

type gridNodes struct {
	repository[model.GridNode]
}

func (g gridNodes) AddLinkedGridNode(ctx context.Context, parentID string, child model.GridNode) (model.GridNode, error) {
	var out model.GridNode
	if parentID == "" {
		return out, fmt.Errorf("%s: parent %w", g.collection, errMissingID)
	}
	err := g.c.do(ctx, http.MethodPost, g.collection, []string{parentID, "linked-grid-nodes"}, nil, child, &out)
	return out, err
}

func (g gridNodes) OpenGridNodeForTrade(ctx context.Context, gridNodeID, marketID string) (model.GridLocation, error) {
	var out model.GridLocation
	if gridNodeID == "" || marketID == "" {
		return out, fmt.Errorf("%s: grid node and market %w", g.collection, errMissingID)
	}
	err := g.c.do(ctx, http.MethodPost, g.collection, []string{gridNodeID, "open-for-trade", marketID}, nil, nil, &out)
	return out, err
}
