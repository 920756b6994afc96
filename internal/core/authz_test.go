package core

import "testing"

func TestAllowlistAuthorizerAuthorize(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{
		"web": {"ops", "viewer"},
	})
	if err := a.Authorize(Subject{Source: "web", ID: "ops"}, Action{Module: "region", Command: "destroy region"}); err != nil {
		t.Fatalf("expected allow, got error: %v", err)
	}
}

func TestAllowlistAuthorizerDenyUnknownID(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{
		"web": {"ops"},
	})
	if err := a.Authorize(Subject{Source: "web", ID: "9999"}, Action{Module: "deployed", Command: "list deployed"}); err == nil {
		t.Fatalf("expected deny")
	}
}

func TestAllowlistAuthorizerDenyUnknownSource(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{
		"web": {"ops"},
	})
	if err := a.Authorize(Subject{Source: "cli", ID: "ops"}, Action{Module: "deployed", Command: "list deployed"}); err == nil {
		t.Fatalf("expected deny")
	}
}

func TestAllowlistAuthorizerRestrict(t *testing.T) {
	a := NewAllowlistAuthorizer(map[string][]string{
		"web": {"viewer"},
	})
	a.Restrict("web/viewer", []string{"list", "show", "member"})
	viewer := Subject{Source: "web", ID: "viewer"}

	allowed := []Action{
		{Module: "durable", Command: "list durable-cqs"},
		{Module: "durable", Command: "show subscription-queue-size"},
		{Module: "member", Command: "describe member"},
	}
	for _, act := range allowed {
		if err := a.Authorize(viewer, act); err != nil {
			t.Fatalf("expected allow for %q: %v", act.Command, err)
		}
	}
	if err := a.Authorize(viewer, Action{Module: "region", Command: "destroy region"}); err == nil {
		t.Fatalf("expected deny for destroy region")
	}
	if err := a.Authorize(viewer, Action{Module: "x", Command: "listing"}); err == nil {
		t.Fatalf("prefix must match a whole word")
	}
}
