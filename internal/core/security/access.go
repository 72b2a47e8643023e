package security

import (
	"fmt"

	"github.com/google/cel-go/cel"

	appctx "stockforecast/internal/core/context"
)

// DefaultReadPolicy grants forecast read access to stock managers and users.
const DefaultReadPolicy = `admin || roles.exists(r, r in ["stock.manager", "stock.user"])`

// AccessPolicy is a compiled CEL predicate over the caller's identity.
//
// Variables available to the expression:
//
//	roles       list(string)
//	permissions list(string)
//	admin       bool
type AccessPolicy struct {
	expr    string
	program cel.Program
}

// CompileAccessPolicy parses and type-checks expr once.
func CompileAccessPolicy(expr string) (*AccessPolicy, error) {
	env, err := cel.NewEnv(
		cel.Variable("roles", cel.ListType(cel.StringType)),
		cel.Variable("permissions", cel.ListType(cel.StringType)),
		cel.Variable("admin", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile access policy: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build access policy program: %w", err)
	}

	return &AccessPolicy{expr: expr, program: program}, nil
}

// Expression returns the source expression.
func (p *AccessPolicy) Expression() string {
	return p.expr
}

// Allows evaluates the policy for user. A nil user is never allowed.
func (p *AccessPolicy) Allows(user *appctx.UserContext) (bool, error) {
	if user == nil {
		return false, nil
	}

	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	perms := user.Permissions
	if perms == nil {
		perms = []string{}
	}

	out, _, err := p.program.Eval(map[string]any{
		"roles":       roles,
		"permissions": perms,
		"admin":       user.IsAdmin,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate access policy: %w", err)
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("access policy %q returned %T, want bool", p.expr, out.Value())
	}
	return allowed, nil
}
