package database

import (
	"context"
	"errors"
	"testing"
)

type nopStore struct{ Store }

func TestGetStore_NotInitialized(t *testing.T) {
	ResetForTesting()
	if _, err := GetStore(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestRegisterStore(t *testing.T) {
	t.Cleanup(ResetForTesting)
	s := nopStore{}
	RegisterStore("memory", func() Store { return s })

	got, err := GetStore(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (nopStore{}) {
		t.Error("expected registered store")
	}
	if Backend() != "memory" {
		t.Errorf("backend = %q", Backend())
	}
}

func TestOverridePatch_Apply(t *testing.T) {
	name := "Eiffel Tower"
	empty := ""
	hidden := true

	o := StopOverride{}
	OverridePatch{OverrideName: &name}.Apply(&o)
	if o.OverrideName == nil || *o.OverrideName != name || o.Hidden {
		t.Fatalf("unexpected override after rename: %+v", o)
	}

	OverridePatch{Hidden: &hidden}.Apply(&o)
	if !o.Hidden || *o.OverrideName != name {
		t.Errorf("hide patch must keep the name: %+v", o)
	}

	OverridePatch{OverrideName: &empty}.Apply(&o)
	if o.OverrideName != nil || !o.Hidden {
		t.Errorf("clearing the name must keep hidden: %+v", o)
	}

	if !(OverridePatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
}
