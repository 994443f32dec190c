package module

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"

	"bytemomo/moray/internal/domain"
)

type stubProber struct {
	kind domain.ModuleKind
}

func (p stubProber) Kind() domain.ModuleKind { return p.kind }

func (p stubProber) Probe(context.Context, domain.Target, domain.ModuleOptions) domain.ModuleResult {
	return domain.ModuleResult{Module: p.kind, Status: domain.StatusSuccess}
}

func stubFactory(kind domain.ModuleKind) Factory {
	return func(Deps) Prober { return stubProber{kind: kind} }
}

func testDeps() Deps {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return Deps{Log: logrus.NewEntry(logger)}
}

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(domain.ModulePortScan, stubFactory(domain.ModulePortScan)); err != nil {
		t.Fatalf("register returned error: %v", err)
	}
	if err := r.Register(domain.ModulePortScan, stubFactory(domain.ModulePortScan)); err == nil {
		t.Fatal("expected error registering the same module twice")
	}
	if err := r.Register(domain.ModuleWhois, nil); err == nil {
		t.Fatal("expected error registering a nil factory")
	}
	if err := r.Register("nosuchmodule", stubFactory("nosuchmodule")); err == nil {
		t.Fatal("expected error registering an unknown kind")
	}
}

func TestRegistryKindsCanonicalOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, k := range []domain.ModuleKind{domain.ModuleWhois, domain.ModulePortScan, domain.ModuleDnsEnum} {
		if err := r.Register(k, stubFactory(k)); err != nil {
			t.Fatalf("register %q: %v", k, err)
		}
	}

	want := []domain.ModuleKind{domain.ModulePortScan, domain.ModuleDnsEnum, domain.ModuleWhois}
	if got := r.Kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected canonical order %v, got %v", want, got)
	}
}

func TestRegistryBuild(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	if err := r.Register(domain.ModulePortScan, stubFactory(domain.ModulePortScan)); err != nil {
		t.Fatalf("register: %v", err)
	}

	probers, err := r.Build([]domain.ModuleKind{domain.ModulePortScan}, testDeps())
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	if len(probers) != 1 || probers[domain.ModulePortScan] == nil {
		t.Fatalf("expected one built prober, got %v", probers)
	}

	_, err = r.Build([]domain.ModuleKind{domain.ModuleWhois}, testDeps())
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for unregistered module, got %v", err)
	}
}
