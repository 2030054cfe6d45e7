package services

import (
	"fmt"
	"log/slog"
	"slices"

	"committeehub/models"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/casbin/casbin/v2/persist"
)

// Committee-level actions that are granted by role only and never appear in
// a member's explicit permission list.
const (
	ActionManageSettings    models.Permission = "manageSettings"
	ActionManageMembers     models.Permission = "manageMembers"
	ActionDeleteCommittee   models.Permission = "deleteCommittee"
	ActionTransferOwnership models.Permission = "transferOwnership"
	ActionModerateHands     models.Permission = "moderateHands"
)

// policyObject is the casbin object every committee rule is written against
const policyObject = "committee"

// DefaultPermissions is what a member without a recorded permission list gets.
var DefaultPermissions = []models.Permission{
	models.PermCreateMotion,
	models.PermDiscussion,
	models.PermMoveToVote,
	models.PermVote,
}

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

type rolePolicy struct {
	role   models.Role
	action models.Permission
}

func defaultRolePolicies() []rolePolicy {
	var policies []rolePolicy
	for _, role := range []models.Role{models.RoleOwner, models.RoleChair} {
		for _, action := range models.AllPermissions {
			policies = append(policies, rolePolicy{role, action})
		}
		policies = append(policies,
			rolePolicy{role, ActionManageSettings},
			rolePolicy{role, ActionManageMembers},
			rolePolicy{role, ActionModerateHands},
		)
	}
	policies = append(policies,
		rolePolicy{models.RoleOwner, ActionDeleteCommittee},
		rolePolicy{models.RoleOwner, ActionTransferOwnership},
	)
	return policies
}

// Policy resolves what a committee member may do. Role grants come from a
// casbin enforcer; everything a role does not grant falls back to the
// member's explicit permission set.
type Policy struct {
	enforcer *casbin.Enforcer
}

// NewPolicy builds the role policy. With a nil adapter the rules live only in
// memory; otherwise they are loaded from and saved to the adapter, and any
// missing default rule is added.
func NewPolicy(adapter persist.Adapter, logger *slog.Logger) (*Policy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin model: %w", err)
	}

	var enforcer *casbin.Enforcer
	if adapter != nil {
		enforcer, err = casbin.NewEnforcer(m, adapter)
	} else {
		enforcer, err = casbin.NewEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if adapter != nil {
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, fmt.Errorf("failed to load policy: %w", err)
		}
	}

	added := 0
	for _, p := range defaultRolePolicies() {
		exists, err := enforcer.HasPolicy(string(p.role), policyObject, string(p.action))
		if err != nil {
			return nil, fmt.Errorf("failed to inspect policy: %w", err)
		}
		if exists {
			continue
		}
		if _, err := enforcer.AddPolicy(string(p.role), policyObject, string(p.action)); err != nil {
			return nil, fmt.Errorf("failed to add policy %s/%s: %w", p.role, p.action, err)
		}
		added++
	}
	if adapter != nil && added > 0 {
		if err := enforcer.SavePolicy(); err != nil {
			logger.Warn("failed to save role policy", "error", err)
		}
	}
	logger.Debug("role policy ready", "added", added, "persisted", adapter != nil)
	return &Policy{enforcer: enforcer}, nil
}

// RoleAllows reports whether the role alone grants the action.
func (p *Policy) RoleAllows(role models.Role, action models.Permission) bool {
	ok, err := p.enforcer.Enforce(string(role), policyObject, string(action))
	if err != nil {
		slog.Error("casbin enforce failed", "role", role, "action", action, "error", err)
		return false
	}
	return ok
}

// HasPermission reports whether the member may perform action: a role grant
// from the policy first, then the member's own permission set.
func (p *Policy) HasPermission(member *models.Member, action models.Permission) bool {
	if member == nil {
		return false
	}
	if p.RoleAllows(member.Role, action) {
		return true
	}
	return slices.Contains(memberGrants(member), action)
}

// EffectivePermissions lists the motion actions the member may perform under
// this policy, in AllPermissions order.
func (p *Policy) EffectivePermissions(member *models.Member) []models.Permission {
	out := []models.Permission{}
	if member == nil {
		return out
	}
	for _, action := range models.AllPermissions {
		if p.HasPermission(member, action) {
			out = append(out, action)
		}
	}
	return out
}

// memberGrants is the explicit permission set of a member, ignoring role. A
// list that was never recorded means DefaultPermissions.
func memberGrants(member *models.Member) []models.Permission {
	if member.Permissions == nil {
		return DefaultPermissions
	}
	return member.Permissions
}
