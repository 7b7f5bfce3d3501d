package social

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dropDatabas3/federation/internal/domain/repository"
	"github.com/dropDatabas3/federation/internal/providers"
	"github.com/dropDatabas3/federation/internal/store/memory"
)

func cheapHash() (string, error) { return "$argon2id$test", nil }

// countingUsers envuelve el store en memoria y cuenta escrituras.
type countingUsers struct {
	*memory.UserStore

	creates int32
	updates int32

	mu          sync.Mutex
	lastUpdate  *repository.LocalUser
	createErr   error
	createID    *string
	updateErr   error
	beforeWrite func()
}

func newCountingUsers() *countingUsers {
	return &countingUsers{UserStore: memory.NewUserStore()}
}

func (c *countingUsers) Create(ctx context.Context, u *repository.LocalUser) (string, error) {
	atomic.AddInt32(&c.creates, 1)
	if c.beforeWrite != nil {
		c.beforeWrite()
	}
	if c.createErr != nil {
		return "", c.createErr
	}
	if c.createID != nil {
		return *c.createID, nil
	}
	return c.UserStore.Create(ctx, u)
}

func (c *countingUsers) Update(ctx context.Context, u *repository.LocalUser) error {
	atomic.AddInt32(&c.updates, 1)
	c.mu.Lock()
	c.lastUpdate = u.Clone()
	c.mu.Unlock()
	if c.updateErr != nil {
		return c.updateErr
	}
	return c.UserStore.Update(ctx, u)
}

func (c *countingUsers) Creates() int { return int(atomic.LoadInt32(&c.creates)) }
func (c *countingUsers) Updates() int { return int(atomic.LoadInt32(&c.updates)) }

// fakeProvider es un provider programable.
type fakeProvider struct {
	token      string
	tokenErr   error
	profile    map[string]any
	profileErr error
	email      string
	emailErr   error

	tokenCalls   int32
	profileCalls int32
	emailCalls   int32

	lastCode     string
	lastRedirect string
	lastCreds    providers.Credentials
}

func (f *fakeProvider) Name() string                    { return "fake" }
func (f *fakeProvider) Prefix() string                  { return "fk" }
func (f *fakeProvider) SyntheticEmail(id string) string { return id + "@fake.test" }

func (f *fakeProvider) ExchangeToken(_ context.Context, code, redirectURI string, creds providers.Credentials) (string, error) {
	atomic.AddInt32(&f.tokenCalls, 1)
	f.lastCode, f.lastRedirect, f.lastCreds = code, redirectURI, creds
	return f.token, f.tokenErr
}

func (f *fakeProvider) FetchProfile(context.Context, string) (map[string]any, error) {
	atomic.AddInt32(&f.profileCalls, 1)
	return f.profile, f.profileErr
}

func (f *fakeProvider) FetchVerifiedEmail(_ context.Context, externalID, _ string) (string, error) {
	atomic.AddInt32(&f.emailCalls, 1)
	if f.emailErr != nil {
		return "", f.emailErr
	}
	if f.email == "" {
		return f.SyntheticEmail(externalID), nil
	}
	return f.email, nil
}

// staticLookup resuelve un único provider por nombre.
type staticLookup map[string]providers.Provider

func (s staticLookup) Get(name string) (providers.Provider, bool, error) {
	p, ok := s[name]
	return p, ok, nil
}

type staticApps map[string]*repository.App

func (s staticApps) GetApp(_ context.Context, id string) (*repository.App, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

type stageCall struct {
	stage State
	err   error
}

type recordingObserver struct {
	mu       sync.Mutex
	stages   []stageCall
	outcomes []string
}

func (o *recordingObserver) ObserveStage(_ string, st State, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stageCall{st, err})
}

func (o *recordingObserver) ObserveOutcome(_ string, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}
