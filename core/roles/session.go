// Package roles drives the trading platform as a DSO or an FSP would. Every
// operation prints a short human readable trace to the session output.
package roles

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/kilianp07/flexmarket/core/logger"
	"github.com/kilianp07/flexmarket/core/model"
	"github.com/kilianp07/flexmarket/core/platform"
)

// Role names a platform user role. The name is part of the demo user
// identity.
type Role string

const (
	RoleDSO Role = "DSO"
	RoleFSP Role = "FSP"
)

// Email returns the address of the demo user playing the role.
func (r Role) Email() string { return fmt.Sprintf("nodes-user-%s@example.com", r) }

// User returns the record created for the role when it does not exist yet.
func (r Role) User() model.User {
	return model.User{
		Email:       r.Email(),
		LoginHandle: "nodes-user@example.com",
		FamilyName:  fmt.Sprintf("%s USER", r),
		GivenName:   "NODES",
	}
}

// Session is a logged in platform user with its organization.
type Session struct {
	Role         Role
	Platform     *platform.Client
	User         *model.User
	Membership   model.Membership
	Subscription model.Subscription
	Organization model.Organization

	out   io.Writer
	log   logger.Logger
	cfg   Config
	sleep func(context.Context, time.Duration) error
}

// Option customizes a Session.
type Option func(*Session)

// WithOutput redirects the operation trace, stdout by default.
func WithOutput(w io.Writer) Option { return func(s *Session) { s.out = w } }

func WithLogger(l logger.Logger) Option { return func(s *Session) { s.log = l } }

func WithConfig(cfg Config) Option { return func(s *Session) { s.cfg = cfg } }

// WithSleep replaces the settle delay wait.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Session) { s.sleep = fn }
}

// AttachSession returns a session that reuses the platform client without
// logging in. Organization scoped filters are empty.
func AttachSession(p *platform.Client, role Role, opts ...Option) *Session {
	s := &Session{Role: role, Platform: p, out: os.Stdout, sleep: sleepCtx}
	for _, o := range opts {
		o(s)
	}
	s.log = logger.OrNop(s.log)
	s.cfg.SetDefaults()
	return s
}

// NewSession finds or creates the demo user of the role, logs it in and
// loads its membership, subscription and organization.
func NewSession(ctx context.Context, p *platform.Client, role Role, opts ...Option) (*Session, error) {
	s := AttachSession(p, role, opts...)
	if _, err := s.login(ctx); err != nil {
		return nil, fmt.Errorf("%s login: %w", role, err)
	}
	if err := s.fetchBasicInfo(ctx); err != nil {
		return nil, fmt.Errorf("%s session: %w", role, err)
	}
	s.log.Infof("%s session for %s in organization %s", role, s.User.Email, s.Organization.ID)
	return s, nil
}

func (s *Session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *Session) login(ctx context.Context) (model.User, error) {
	found, err := s.Platform.Users.GetByTemplate(ctx, &model.User{Email: s.Role.Email()}, model.SearchOptions{})
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	switch len(found.Items) {
	case 0:
		if user, err = s.createUser(ctx); err != nil {
			return model.User{}, err
		}
	case 1:
		user = found.Items[0]
	default:
		return model.User{}, fmt.Errorf("%d users share the email %s", len(found.Items), s.Role.Email())
	}

	current, err := s.Platform.Users.GetCurrentUser(ctx)
	if err != nil {
		return model.User{}, err
	}
	if current == nil || current.ID != user.ID {
		if err := s.Platform.Users.SetCurrentUserID(ctx, user.ID); err != nil {
			return model.User{}, err
		}
	}
	return user, nil
}

func (s *Session) createUser(ctx context.Context) (model.User, error) {
	user, err := s.Platform.Users.Create(ctx, s.Role.User())
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	org, err := s.Platform.Organizations.Create(ctx, model.Organization{
		Name: fmt.Sprintf("Nodes Test %s Organization", s.Role),
	})
	if err != nil {
		return model.User{}, fmt.Errorf("create organization: %w", err)
	}
	sub, err := s.Platform.Subscriptions.Create(ctx, model.Subscription{OwnerOrganizationID: org.ID})
	if err != nil {
		return model.User{}, fmt.Errorf("create subscription: %w", err)
	}
	if _, err := s.Platform.Memberships.Create(ctx, model.Membership{SubscriptionID: sub.ID, UserID: user.ID}); err != nil {
		return model.User{}, fmt.Errorf("create membership: %w", err)
	}
	s.log.Infof("created %s user %s", s.Role, user.ID)
	return user, nil
}

func (s *Session) fetchBasicInfo(ctx context.Context) error {
	user, err := s.Platform.Users.GetCurrentUser(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrNotAuthenticated
	}
	s.User = user

	memberships, err := s.Platform.Memberships.GetByTemplate(ctx, &model.Membership{UserID: user.ID}, model.SearchOptions{})
	if err != nil {
		return err
	}
	m, ok := memberships.First()
	if !ok {
		return fmt.Errorf("%w %s", ErrNoMembership, user)
	}
	s.Membership = m
	if s.Subscription, err = s.Platform.Subscriptions.GetByID(ctx, m.SubscriptionID); err != nil {
		return err
	}
	s.Organization, err = s.Platform.Organizations.GetByID(ctx, s.Subscription.OwnerOrganizationID)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
