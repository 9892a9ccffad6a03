package engine

import (
	"errors"
	"testing"

	"github.com/metapayd/cardwise/internal/domain"
)

func TestPolicySetLoad(t *testing.T) {
	set, err := NewPolicySet()
	if err != nil {
		t.Fatalf("failed to create policy set: %v", err)
	}
	defer set.Close()

	if set.Count() != 0 {
		t.Errorf("expected 0 policies, got %d", set.Count())
	}

	policy := &domain.PolicyConfig{
		ID:         "high-utilization",
		Name:       "Avoid maxed cards",
		Expression: "utilization > 0.9",
		Enabled:    true,
	}

	if err := set.Load(policy); err != nil {
		t.Fatalf("failed to load policy: %v", err)
	}
	if set.Count() != 1 {
		t.Errorf("expected 1 policy, got %d", set.Count())
	}
}

func TestPolicySetRejectsInvalidExpression(t *testing.T) {
	set, _ := NewPolicySet()
	defer set.Close()

	t.Run("SyntaxError", func(t *testing.T) {
		err := set.Load(&domain.PolicyConfig{
			ID:         "broken",
			Expression: "this is not valid CEL !!!",
			Enabled:    true,
		})
		if err == nil {
			t.Error("expected error for invalid CEL expression")
		}
	})

	t.Run("NonBoolResult", func(t *testing.T) {
		err := set.Load(&domain.PolicyConfig{
			ID:         "numeric",
			Expression: "annual_fee + 1.0",
			Enabled:    true,
		})
		if err == nil {
			t.Error("expected error for non-bool expression")
		}
	})
}

func TestPolicySetExcludes(t *testing.T) {
	set, _ := NewPolicySet()
	defer set.Close()

	_ = set.Load(&domain.PolicyConfig{
		ID:         "no-amex-small",
		Expression: `network == "American Express" && amount < 10.0`,
		Enabled:    true,
	})

	if !set.Excludes(pointsCard(), "5812", 5) {
		t.Error("expected amex card excluded for small purchase")
	}
	if set.Excludes(pointsCard(), "5812", 50) {
		t.Error("did not expect exclusion for larger purchase")
	}
	if set.Excludes(cashbackCard(), "5812", 5) {
		t.Error("did not expect exclusion for visa card")
	}
}

func TestPolicyEvaluationErrorIsIgnored(t *testing.T) {
	set, _ := NewPolicySet()
	defer set.Close()

	// Integer division by zero fails at evaluation time. A misbehaving
	// policy must not exclude anything.
	_ = set.Load(&domain.PolicyConfig{
		ID:         "runtime-error",
		Expression: "1 / 0 > 0",
		Enabled:    true,
	})

	if set.Excludes(cashbackCard(), "5411", 100) {
		t.Error("expected failing policy to be skipped")
	}
}

func TestPolicySetReload(t *testing.T) {
	set, _ := NewPolicySet()
	defer set.Close()

	_ = set.Load(&domain.PolicyConfig{ID: "a", Expression: "amount > 100.0", Enabled: true})
	_ = set.Load(&domain.PolicyConfig{ID: "b", Expression: "utilization > 0.5", Enabled: true})

	err := set.Reload([]*domain.PolicyConfig{
		{ID: "c", Expression: "balance > 1000.0", Enabled: true},
		{ID: "d", Expression: "amount > 0.0", Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if set.Count() != 1 {
		t.Errorf("expected 1 policy after reload (disabled skipped), got %d", set.Count())
	}
	if loaded := set.Loaded(); len(loaded) != 1 || loaded[0].ID != "c" {
		t.Errorf("expected only policy c loaded, got %v", loaded)
	}
}

func TestRecommendWithPolicies(t *testing.T) {
	set, _ := NewPolicySet()
	defer set.Close()

	e := New(testCatalog(), set)
	cards := []*domain.Card{cashbackCard(), pointsCard()}

	t.Run("PolicyDemotesTopCard", func(t *testing.T) {
		_ = set.Reload([]*domain.PolicyConfig{
			{ID: "no-visa", Expression: `network == "Visa"`, Enabled: true},
		})

		rec, err := e.Recommend(cards, "5411", 100, domain.Preferences{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Recommended.Card.ID != "card-points" {
			t.Errorf("expected points card after visa exclusion, got %s", rec.Recommended.Card.ID)
		}
	})

	t.Run("AllExcludedFailsSelection", func(t *testing.T) {
		_ = set.Reload([]*domain.PolicyConfig{
			{ID: "everything", Expression: "amount >= 0.0", Enabled: true},
		})

		_, err := e.Recommend(cards, "5411", 100, domain.Preferences{})
		if !errors.Is(err, ErrNoActiveCards) {
			t.Errorf("expected ErrNoActiveCards, got %v", err)
		}
	})

	t.Run("EmptyPolicySetExcludesNothing", func(t *testing.T) {
		_ = set.Reload(nil)

		rec, err := e.Recommend(cards, "5411", 100, domain.Preferences{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Recommended.Card.ID != "card-cashback" {
			t.Errorf("expected cashback card, got %s", rec.Recommended.Card.ID)
		}
	})
}
