package model

// Entity is implemented by every record stored on the trading platform.
// A record with its zero-valued fields omitted doubles as a search template.
type Entity interface {
	EntityID() string
}

// Page is one page of a templated search.
type Page[T any] struct {
	Items        []T `json:"items"`
	NumberOfHits int `json:"numberOfHits"`
}

// First returns the first item of the page.
func (p Page[T]) First() (T, bool) {
	if len(p.Items) == 0 {
		var zero T
		return zero, false
	}
	return p.Items[0], true
}

// SearchOptions bounds the size of a templated search. A zero Take lets the
// platform apply its own default.
type SearchOptions struct {
	Take int
	Skip int
}

// All is the page size used when the whole collection is needed.
var All = SearchOptions{Take: 100}

// User is a platform account.
type User struct {
	ID          string `json:"id,omitempty"`
	Email       string `json:"email,omitempty"`
	LoginHandle string `json:"loginHandle,omitempty"`
	FamilyName  string `json:"familyName,omitempty"`
	GivenName   string `json:"givenName,omitempty"`
}

func (u User) EntityID() string { return u.ID }

func (u User) String() string {
	return u.GivenName + " " + u.FamilyName + " <" + u.Email + ">"
}

type Organization struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (o Organization) EntityID() string { return o.ID }

// Subscription ties an organization to the platform.
type Subscription struct {
	ID                  string `json:"id,omitempty"`
	OwnerOrganizationID string `json:"ownerOrganizationId,omitempty"`
}

func (s Subscription) EntityID() string { return s.ID }

// Membership grants a user access to a subscription.
type Membership struct {
	ID             string `json:"id,omitempty"`
	SubscriptionID string `json:"subscriptionId,omitempty"`
	UserID         string `json:"userId,omitempty"`
}

func (m Membership) EntityID() string { return m.ID }
