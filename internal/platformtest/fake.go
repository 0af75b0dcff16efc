// Package platformtest provides an in-memory platform for tests. It stores
// records, assigns ids and evaluates search templates. New assets start
// Pending and new orders Active. It does not match orders: tests seed
// trades themselves.
package platformtest

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/platform"
)

// Store is an in-memory platform.Repository.
type Store[T model.Entity] struct {
	mu     sync.Mutex
	prefix string
	seq    int
	items  []T

	// Err, when set, is returned by every operation.
	Err error
	// OnCreate, when set, fills server side defaults of created records.
	OnCreate func(T) T
}

// NewStore returns an empty store generating ids as prefix-1, prefix-2...
func NewStore[T model.Entity](prefix string) *Store[T] {
	return &Store[T]{prefix: prefix}
}

// Seed appends records as they are, without assigning ids.
func (s *Store[T]) Seed(recs ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, recs...)
}

// Items returns a copy of the stored records in insertion order.
func (s *Store[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.items...)
}

func (s *Store[T]) Create(_ context.Context, rec T) (T, error) {
	if s.Err != nil {
		var zero T
		return zero, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.EntityID() == "" {
		s.seq++
		rec = withID(rec, fmt.Sprintf("%s-%d", s.prefix, s.seq))
	}
	if s.OnCreate != nil {
		rec = s.OnCreate(rec)
	}
	s.items = append(s.items, rec)
	return rec, nil
}

func (s *Store[T]) GetByTemplate(_ context.Context, tmpl *T, opts model.SearchOptions) (model.Page[T], error) {
	if s.Err != nil {
		return model.Page[T]{}, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var want map[string]any
	if tmpl != nil {
		want = fields(*tmpl)
	}
	var hits []T
	for _, it := range s.items {
		if matches(want, fields(it)) {
			hits = append(hits, it)
		}
	}
	page := model.Page[T]{NumberOfHits: len(hits), Items: []T{}}
	if opts.Skip < len(hits) {
		hits = hits[opts.Skip:]
		if opts.Take > 0 && opts.Take < len(hits) {
			hits = hits[:opts.Take]
		}
		page.Items = hits
	}
	return page, nil
}

func (s *Store[T]) GetByID(_ context.Context, id string) (T, error) {
	var zero T
	if s.Err != nil {
		return zero, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.EntityID() == id {
			return it, nil
		}
	}
	return zero, fmt.Errorf("%s %s: %w", s.prefix, id, platform.ErrNotFound)
}

func (s *Store[T]) Update(_ context.Context, rec T) (T, error) {
	if s.Err != nil {
		var zero T
		return zero, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if it.EntityID() == rec.EntityID() {
			s.items[i] = rec
			return rec, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%s %s: %w", s.prefix, rec.EntityID(), platform.ErrNotFound)
}

func (s *Store[T]) Delete(_ context.Context, id string) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if it.EntityID() == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s %s: %w", s.prefix, id, platform.ErrNotFound)
}

// withID sets the ID field every platform record carries.
func withID[T any](rec T, id string) T {
	v := reflect.ValueOf(&rec).Elem()
	if f := v.FieldByName("ID"); f.IsValid() && f.Kind() == reflect.String {
		f.SetString(id)
	}
	return rec
}

// fields returns the JSON view of a record. Zero fields are omitted by the
// model tags, which is what makes a record usable as a template.
func fields(v any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

func matches(want, got map[string]any) bool {
	for k, v := range want {
		if !reflect.DeepEqual(got[k], v) {
			return false
		}
	}
	return true
}

// Users adds a current user to the user store.
type Users struct {
	*Store[model.User]

	mu      sync.Mutex
	current string
	// Switches records every SetCurrentUserID call.
	Switches []string
}

func (u *Users) GetCurrentUser(ctx context.Context) (*model.User, error) {
	u.mu.Lock()
	id := u.current
	u.mu.Unlock()
	if id == "" {
		return nil, nil
	}
	usr, err := u.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &usr, nil
}

func (u *Users) SetCurrentUserID(ctx context.Context, id string) error {
	if _, err := u.GetByID(ctx, id); err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.current = id
	u.Switches = append(u.Switches, id)
	return nil
}

// GridNodes links and opens nodes through the sibling stores.
type GridNodes struct {
	*Store[model.GridNode]
	links     *Store[model.GridNodeLink]
	locations *Store[model.GridLocation]
}

func (g *GridNodes) AddLinkedGridNode(ctx context.Context, parentID string, child model.GridNode) (model.GridNode, error) {
	if _, err := g.GetByID(ctx, parentID); err != nil {
		return model.GridNode{}, err
	}
	created, err := g.Create(ctx, child)
	if err != nil {
		return model.GridNode{}, err
	}
	_, err = g.links.Create(ctx, model.GridNodeLink{SourceGridNodeID: parentID, TargetGridNodeID: created.ID})
	return created, err
}

func (g *GridNodes) OpenGridNodeForTrade(ctx context.Context, gridNodeID, marketID string) (model.GridLocation, error) {
	if _, err := g.GetByID(ctx, gridNodeID); err != nil {
		return model.GridLocation{}, err
	}
	return g.locations.Create(ctx, model.GridLocation{GridNodeID: gridNodeID, MarketID: marketID})
}

// Fake is an in-memory platform with one store per collection.
type Fake struct {
	Users                     *Users
	Organizations             *Store[model.Organization]
	Subscriptions             *Store[model.Subscription]
	Memberships               *Store[model.Membership]
	GridNodes                 *GridNodes
	GridNodeLinks             *Store[model.GridNodeLink]
	GridLocations             *Store[model.GridLocation]
	Markets                   *Store[model.Market]
	Orders                    *Store[model.Order]
	Trades                    *Store[model.Trade]
	Assets                    *Store[model.Asset]
	AssetTypes                *Store[model.AssetType]
	AssetGridAssignments      *Store[model.AssetGridAssignment]
	AssetPortfolios           *Store[model.AssetPortfolio]
	AssetPortfolioAssignments *Store[model.AssetPortfolioAssignment]
}

// New returns an empty fake platform.
func New() *Fake {
	f := &Fake{
		Users:                     &Users{Store: NewStore[model.User]("user")},
		Organizations:             NewStore[model.Organization]("org"),
		Subscriptions:             NewStore[model.Subscription]("sub"),
		Memberships:               NewStore[model.Membership]("membership"),
		GridNodeLinks:             NewStore[model.GridNodeLink]("link"),
		GridLocations:             NewStore[model.GridLocation]("location"),
		Markets:                   NewStore[model.Market]("market"),
		Orders:                    NewStore[model.Order]("order"),
		Trades:                    NewStore[model.Trade]("trade"),
		Assets:                    NewStore[model.Asset]("asset"),
		AssetTypes:                NewStore[model.AssetType]("assettype"),
		AssetGridAssignments:      NewStore[model.AssetGridAssignment]("gridassignment"),
		AssetPortfolios:           NewStore[model.AssetPortfolio]("portfolio"),
		AssetPortfolioAssignments: NewStore[model.AssetPortfolioAssignment]("portfolioassignment"),
	}
	f.Assets.OnCreate = func(a model.Asset) model.Asset {
		if a.Status == "" {
			a.Status = model.StatusPending
		}
		return a
	}
	f.Orders.OnCreate = func(o model.Order) model.Order {
		if o.Status == "" {
			o.Status = model.StatusActive
		}
		return o
	}
	f.GridNodes = &GridNodes{Store: NewStore[model.GridNode]("node"), links: f.GridNodeLinks, locations: f.GridLocations}
	return f
}

// Platform exposes the fake through the platform contract.
func (f *Fake) Platform() *platform.Client {
	return &platform.Client{
		Users:                     f.Users,
		Organizations:             f.Organizations,
		Subscriptions:             f.Subscriptions,
		Memberships:               f.Memberships,
		GridNodes:                 f.GridNodes,
		GridNodeLinks:             f.GridNodeLinks,
		GridLocations:             f.GridLocations,
		Markets:                   f.Markets,
		Orders:                    f.Orders,
		Trades:                    f.Trades,
		Assets:                    f.Assets,
		AssetTypes:                f.AssetTypes,
		AssetGridAssignments:      f.AssetGridAssignments,
		AssetPortfolios:           f.AssetPortfolios,
		AssetPortfolioAssignments: f.AssetPortfolioAssignments,
	}
}
