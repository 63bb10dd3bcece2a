package api

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// PolicyEnv is what issue policy expressions are evaluated against.
type PolicyEnv struct {
	RemoteIP  string `expr:"remote_ip"`
	UserAgent string `expr:"user_agent"`
}

// IssuePolicy gates token issuance on a configured boolean expression, e.g.
// `remote_ip startsWith "10." || user_agent contains "internal"`.
// A nil policy allows everything.
type IssuePolicy struct {
	program *vm.Program
}

func CompileIssuePolicy(expression string) (*IssuePolicy, error) {
	if expression == "" {
		return nil, nil
	}

	program, err := expr.Compile(expression, expr.Env(PolicyEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling issue policy: %w", err)
	}
	return &IssuePolicy{program: program}, nil
}

func (p *IssuePolicy) Allow(env PolicyEnv) (bool, error) {
	if p == nil {
		return true, nil
	}

	out, err := expr.Run(p.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluating issue policy: %w", err)
	}
	allowed, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("issue policy returned %T, want bool", out)
	}
	return allowed, nil
}
