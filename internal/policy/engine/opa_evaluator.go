// Package engine evaluates the identity classification policy with OPA Rego.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"portal-auth/backend/internal/identity"
	"portal-auth/backend/internal/identity/domain"
)

const classQuery = "data.portal.identity.class"

// DefaultRegoPolicy classifies emails in input.enterprise_domains as consultants.
const DefaultRegoPolicy = `package portal.identity

default class := "customer"

class := "consultant" if {
	some d in input.enterprise_domains
	input.domain == d
}
`

// OPAClassifier classifies emails with a Rego policy that defines data.portal.identity.class.
type OPAClassifier struct {
	query   rego.PreparedEvalQuery
	domains []string
}

// NewOPAClassifier compiles policy (DefaultRegoPolicy when empty). Compilation errors are returned.
func NewOPAClassifier(ctx context.Context, policy string, domains []string) (*OPAClassifier, error) {
	if policy == "" {
		policy = DefaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"identity.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile identity policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(classQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare identity policy: %w", err)
	}
	if domains == nil {
		domains = []string{}
	}
	return &OPAClassifier{query: pq, domains: domains}, nil
}

// NewOPAClassifierFromFile reads the policy from path.
func NewOPAClassifierFromFile(ctx context.Context, path string, domains []string) (*OPAClassifier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity policy: %w", err)
	}
	return NewOPAClassifier(ctx, string(b), domains)
}

// Classify implements domain.Classifier.
func (c *OPAClassifier) Classify(ctx context.Context, email string) (domain.Class, error) {
	domains := make([]interface{}, len(c.domains))
	for i, d := range c.domains {
		domains[i] = d
	}
	input := map[string]interface{}{
		"email":              email,
		"domain":             identity.DomainOf(email),
		"enterprise_domains": domains,
	}
	rs, err := c.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("eval identity policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", fmt.Errorf("identity policy returned no result")
	}
	s, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("identity policy returned %T, want string", rs[0].Expressions[0].Value)
	}
	class := domain.Class(s)
	if !class.Valid() {
		return "", fmt.Errorf("identity policy returned unknown class %q", s)
	}
	return class, nil
}

// HealthCheck evaluates the policy against a fixed input.
func (c *OPAClassifier) HealthCheck(ctx context.Context) error {
	_, err := c.Classify(ctx, "healthcheck@invalid.example")
	return err
}
