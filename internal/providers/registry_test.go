package providers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"reflect"
	"testing"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string                    { return s.name }
func (s stubProvider) Prefix() string                  { return "st" }
func (s stubProvider) SyntheticEmail(id string) string { return id + "@stub" }
func (s stubProvider) ExchangeToken(context.Context, string, string, Credentials) (string, error) {
	return "tok", nil
}
func (s stubProvider) FetchProfile(context.Context, string) (map[string]any, error) { return nil, nil }
func (s stubProvider) FetchVerifiedEmail(context.Context, string, string) (string, error) {
	return "", nil
}

func TestRegistry_GetBuildsOncePerProvider(t *testing.T) {
	var built int32
	r := NewRegistry()
	r.Register("Stub", func(ProviderConfig) (Provider, error) {
		atomic.AddInt32(&built, 1)
		return stubProvider{name: "stub"}, nil
	}, ProviderConfig{})

	p1, ok, err := r.Get("stub")
	if err != nil || !ok {
		t.Fatalf("Get(stub) = ok=%v err=%v", ok, err)
	}
	if p1.Name() != "stub" {
		t.Fatalf("name = %q", p1.Name())
	}

	_, _, _ = r.Get(" STUB ")
	if n := atomic.LoadInt32(&built); n != 1 {
		t.Fatalf("factory calls = %d, want 1", n)
	}

	// re-registrar descarta la instancia anterior
	r.Register("stub", func(ProviderConfig) (Provider, error) {
		atomic.AddInt32(&built, 1)
		return stubProvider{name: "stub"}, nil
	}, ProviderConfig{})
	_, _, _ = r.Get("stub")
	if n := atomic.LoadInt32(&built); n != 2 {
		t.Fatalf("factory calls after re-register = %d, want 2", n)
	}
}

func TestRegistry_CacheBoundedByProviders(t *testing.T) {
	r := NewRegistry()
	r.Register("stub", func(ProviderConfig) (Provider, error) { return stubProvider{name: "stub"}, nil }, ProviderConfig{})

	// el app del request no forma parte de la clave
	for i := 0; i < 1000; i++ {
		if _, ok, err := r.Get("stub"); err != nil || !ok {
			t.Fatalf("Get #%d: ok=%v err=%v", i, ok, err)
		}
		if _, ok, _ := r.Get(fmt.Sprintf("unknown-%d", i)); ok {
			t.Fatalf("unknown provider resolved")
		}
	}
	r.mu.RLock()
	n := len(r.cache)
	r.mu.RUnlock()
	if n != 1 {
		t.Fatalf("cache entries = %d, want 1", n)
	}
}

func TestRegistry_Unknown(t *testing.T) {
	r := NewRegistry()
	p, ok, err := r.Get("gitlab")
	if err != nil || ok || p != nil {
		t.Fatalf("Get(gitlab) = %v, %v, %v; want nil, false, nil", p, ok, err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	r.Register("bad", func(ProviderConfig) (Provider, error) { return nil, boom }, ProviderConfig{})
	_, ok, err := r.Get("bad")
	if !ok {
		t.Fatalf("registered provider reported unknown")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register("github", nil, ProviderConfig{})
	r.Register("bitbucket", nil, ProviderConfig{})
	if got := r.Names(); !reflect.DeepEqual(got, []string{"bitbucket", "github"}) {
		t.Fatalf("Names() = %v", got)
	}
}
