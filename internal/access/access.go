// Package access implements role based access control for platform contracts.
package access

import (
	"github.com/rovshanmuradov/launchpad/internal/apperr"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

// Role names a capability.
type Role string

// DefaultAdminRole administers every role that has no explicit admin.
const DefaultAdminRole Role = "DEFAULT_ADMIN_ROLE"

type grant struct {
	role    Role
	account types.Address
}

// Control holds the role grants of one contract.
type Control struct {
	contract string
	members  *ledger.Map[grant, bool]
	counts   *ledger.Map[Role, int]
	admins   *ledger.Map[Role, Role]
}

// NewControl creates the grant table of contract and gives admin DefaultAdminRole.
func NewControl(contract string, admin types.Address) *Control {
	c := &Control{
		contract: contract,
		members:  ledger.NewMap[grant, bool](),
		counts:   ledger.NewMap[Role, int](),
		admins:   ledger.NewMap[Role, Role](),
	}
	if !admin.IsZero() {
		c.members.Seed(grant{DefaultAdminRole, admin}, true)
		c.counts.Seed(DefaultAdminRole, 1)
	}
	return c
}

// HasRole reports whether account holds role.
func (c *Control) HasRole(role Role, account types.Address) bool {
	ok, _ := c.members.Get(grant{role, account})
	return ok
}

// Count returns the number of accounts holding role.
func (c *Control) Count(role Role) int {
	n, _ := c.counts.Get(role)
	return n
}

// RoleAdmin returns the role allowed to grant and revoke role.
func (c *Control) RoleAdmin(role Role) Role {
	if admin, ok := c.admins.Get(role); ok {
		return admin
	}
	return DefaultAdminRole
}

// Require fails with Unauthorized unless account holds role.
func (c *Control) Require(op string, role Role, account types.Address) error {
	if !c.HasRole(role, account) {
		return apperr.Unauthorized(op, account.String(), string(role))
	}
	return nil
}

// SetRoleAdmin changes the admin role of role. Only DefaultAdminRole holders may do it.
func (c *Control) SetRoleAdmin(tx *ledger.Tx, caller types.Address, role, admin Role) error {
	if err := c.Require(c.op("setRoleAdmin"), DefaultAdminRole, caller); err != nil {
		return err
	}
	c.admins.Set(tx, role, admin)
	return nil
}

// GrantRole gives role to account. The caller must hold the role's admin role.
func (c *Control) GrantRole(tx *ledger.Tx, caller types.Address, role Role, account types.Address) error {
	op := c.op("grantRole")
	if err := c.Require(op, c.RoleAdmin(role), caller); err != nil {
		return err
	}
	if account.IsZero() {
		return apperr.InvalidAmount(op, "cannot grant %s to the zero address", role)
	}
	if c.HasRole(role, account) {
		return nil
	}
	c.members.Set(tx, grant{role, account}, true)
	c.counts.Set(tx, role, c.Count(role)+1)
	tx.Emit(&events.RoleEvent{
		BaseEvent: events.Base(events.RoleGranted, tx.Time()),
		Contract:  c.contract,
		Role:      string(role),
		Account:   account,
		Sender:    caller,
	})
	return nil
}

// RevokeRole removes role from account. The caller must hold the role's admin role.
func (c *Control) RevokeRole(tx *ledger.Tx, caller types.Address, role Role, account types.Address) error {
	if err := c.Require(c.op("revokeRole"), c.RoleAdmin(role), caller); err != nil {
		return err
	}
	c.revoke(tx, caller, role, account)
	return nil
}

// RenounceRole drops a role the caller holds.
func (c *Control) RenounceRole(tx *ledger.Tx, caller types.Address, role Role) error {
	if !c.HasRole(role, caller) {
		return apperr.InvalidState(c.op("renounceRole"), "account %s does not hold %s", caller, role)
	}
	c.revoke(tx, caller, role, caller)
	return nil
}

func (c *Control) revoke(tx *ledger.Tx, caller types.Address, role Role, account types.Address) {
	if !c.HasRole(role, account) {
		return
	}
	c.members.Delete(tx, grant{role, account})
	c.counts.Set(tx, role, c.Count(role)-1)
	tx.Emit(&events.RoleEvent{
		BaseEvent: events.Base(events.RoleRevoked, tx.Time()),
		Contract:  c.contract,
		Role:      string(role),
		Account:   account,
		Sender:    caller,
	})
}

func (c *Control) op(name string) string {
	return c.contract + "." + name
}
