package engine

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/metapayd/cardwise/internal/domain"
)

// PolicySet holds compiled CEL selection policies. A policy whose
// expression evaluates to true excludes the card from candidacy before
// scoring. Policies are compiled once and hot-reloadable.
type PolicySet struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string]*compiledPolicy
}

type compiledPolicy struct {
	config  *domain.PolicyConfig
	program cel.Program
}

// NewPolicySet creates an empty policy set with the card and purchase
// variables declared.
func NewPolicySet() (*PolicySet, error) {
	env, err := cel.NewEnv(
		cel.Variable("network", cel.StringType),
		cel.Variable("reward_type", cel.StringType),
		cel.Variable("annual_fee", cel.DoubleType),
		cel.Variable("balance", cel.DoubleType),
		cel.Variable("credit_limit", cel.DoubleType),
		cel.Variable("utilization", cel.DoubleType),
		cel.Variable("mcc", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &PolicySet{
		env:      env,
		compiled: make(map[string]*compiledPolicy),
	}, nil
}

// Validate compiles a policy without loading it.
func (p *PolicySet) Validate(cfg *domain.PolicyConfig) error {
	if cfg == nil {
		return fmt.Errorf("policy config is required")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	_, err := p.compile(cfg)
	return err
}

// Load compiles and loads a single policy into the set.
func (p *PolicySet) Load(cfg *domain.PolicyConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	compiled, err := p.compile(cfg)
	if err != nil {
		return err
	}

	p.compiled[cfg.ID] = compiled
	return nil
}

// LoadAll compiles and loads the enabled policies.
func (p *PolicySet) LoadAll(configs []*domain.PolicyConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := p.Load(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reload replaces all loaded policies with the given set.
// This enables hot-reloading of policies from the database.
func (p *PolicySet) Reload(configs []*domain.PolicyConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make(map[string]*compiledPolicy)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := p.compile(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	p.compiled = next
	return nil
}

// Excludes reports whether any loaded policy excludes the card for this
// purchase. A policy that fails to evaluate is skipped: selection must
// stay available even when a policy misbehaves.
func (p *PolicySet) Excludes(card *domain.Card, categoryCode string, amount float64) bool {
	p.mu.RLock()
	policies := make([]*compiledPolicy, 0, len(p.compiled))
	for _, policy := range p.compiled {
		policies = append(policies, policy)
	}
	p.mu.RUnlock()

	if len(policies) == 0 {
		return false
	}

	activation := map[string]any{
		"network":      card.Network,
		"reward_type":  string(card.Rewards.Type),
		"annual_fee":   card.AnnualFee,
		"balance":      card.Balance,
		"credit_limit": card.CreditLimit,
		"utilization":  card.Utilization(),
		"mcc":          categoryCode,
		"amount":       amount,
	}

	for _, policy := range policies {
		out, _, err := policy.program.Eval(activation)
		if err != nil {
			continue
		}
		if excluded, ok := out.(types.Bool); ok && bool(excluded) {
			return true
		}
	}

	return false
}

// Count returns the number of loaded policies.
func (p *PolicySet) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.compiled)
}

// Loaded returns the currently loaded policy configurations.
func (p *PolicySet) Loaded() []*domain.PolicyConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()

	configs := make([]*domain.PolicyConfig, 0, len(p.compiled))
	for _, policy := range p.compiled {
		configs = append(configs, policy.config)
	}
	return configs
}

// Close clears the policy set.
func (p *PolicySet) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.compiled = make(map[string]*compiledPolicy)
	return nil
}

func (p *PolicySet) compile(cfg *domain.PolicyConfig) (*compiledPolicy, error) {
	ast, issues := p.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("policy %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := p.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for policy %s: %w", cfg.ID, err)
	}

	return &compiledPolicy{
		config:  cfg,
		program: program,
	}, nil
}
