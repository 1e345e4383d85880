package models

// Role is a closed enumeration of caller roles. Authorization decisions go
// through the capability table below rather than comparing role strings at
// call sites.
type Role string

const (
	RoleDonor    Role = "donor"
	RoleOrgAdmin Role = "org_admin"
	RoleOperator Role = "operator"
)

// Capability constants
const (
	CapabilityPaymentInitiate     = "payment:initiate"
	CapabilityPaymentRead         = "payment:read"
	CapabilityPaymentRefund       = "payment:refund"
	CapabilityDisbursementRead    = "disbursement:read"
	CapabilityDisbursementRequeue = "disbursement:requeue"
)

var roleCapabilities = map[Role][]string{
	RoleDonor: {
		CapabilityPaymentInitiate,
		CapabilityPaymentRead,
	},
	RoleOrgAdmin: {
		CapabilityPaymentInitiate,
		CapabilityPaymentRead,
		CapabilityDisbursementRead,
	},
	RoleOperator: {
		CapabilityPaymentInitiate,
		CapabilityPaymentRead,
		CapabilityPaymentRefund,
		CapabilityDisbursementRead,
		CapabilityDisbursementRequeue,
	},
}

// ValidRole reports whether r is a member of the closed role set.
func ValidRole(r Role) bool {
	_, ok := roleCapabilities[r]
	return ok
}

// HasCapability reports whether the role grants the given capability.
func HasCapability(r Role, capability string) bool {
	for _, c := range roleCapabilities[r] {
		if c == capability {
			return true
		}
	}
	return false
}
