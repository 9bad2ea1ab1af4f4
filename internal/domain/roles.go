package domain

// UserRoleType represents a role a user can have
type UserRoleType string

const (
	RoleSitePersonnel UserRoleType = "site_personnel"
	RoleSiteManager   UserRoleType = "site_manager"
	RoleWarehouse     UserRoleType = "warehouse"
	RolePurchasing    UserRoleType = "purchasing"
	RoleAdmin         UserRoleType = "admin"
	RoleAPIService    UserRoleType = "api_service"
)

// IsValid checks if the UserRoleType is a valid enum value
func (r UserRoleType) IsValid() bool {
	switch r {
	case RoleSitePersonnel, RoleSiteManager, RoleWarehouse, RolePurchasing, RoleAdmin, RoleAPIService:
		return true
	}
	return false
}

// Capability is an action a role may perform.
type Capability string

const (
	CapabilityCreateRequest        Capability = "requests:create"
	CapabilityReadRequests         Capability = "requests:read"
	CapabilityRequestOffers        Capability = "requests:request_offers"
	CapabilityApprove              Capability = "requests:approve"
	CapabilityReject               Capability = "requests:reject"
	CapabilityEscalate             Capability = "requests:escalate"
	CapabilityCompleteDelivery     Capability = "requests:complete"
	CapabilityRecordShipment       Capability = "shipments:record"
	CapabilityMarkDepotUnavailable Capability = "shipments:depot_unavailable"
	CapabilityManageOrders         Capability = "orders:write"
	CapabilityConfirmDelivery      Capability = "orders:confirm_delivery"
	CapabilityManageInvoices       Capability = "invoices:write"
	CapabilityManageSuppliers      Capability = "suppliers:write"
	CapabilityReconcile            Capability = "requests:reconcile"
)

var roleCapabilities = map[UserRoleType][]Capability{
	RoleSitePersonnel: {
		CapabilityCreateRequest, CapabilityReadRequests, CapabilityConfirmDelivery,
	},
	RoleSiteManager: {
		CapabilityCreateRequest, CapabilityReadRequests, CapabilityApprove, CapabilityReject,
		CapabilityEscalate, CapabilityConfirmDelivery, CapabilityCompleteDelivery,
	},
	RoleWarehouse: {
		CapabilityReadRequests, CapabilityRecordShipment, CapabilityMarkDepotUnavailable,
	},
	RolePurchasing: {
		CapabilityReadRequests, CapabilityRequestOffers, CapabilityReject, CapabilityManageOrders,
		CapabilityManageInvoices, CapabilityManageSuppliers, CapabilityCompleteDelivery,
	},
	RoleAPIService: {
		CapabilityReadRequests, CapabilityReconcile,
	},
}

// HasCapability reports whether the role grants the capability. Admins hold every capability.
func (r UserRoleType) HasCapability(c Capability) bool {
	if r == RoleAdmin {
		return true
	}
	for _, granted := range roleCapabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}

// Actor is the authenticated user on whose behalf an operation runs. It is
// always passed explicitly into services.
type Actor struct {
	ID    string
	Name  string
	Roles []UserRoleType
}

// Can reports whether any of the actor's roles grants the capability.
func (a Actor) Can(c Capability) bool {
	for _, r := range a.Roles {
		if r.HasCapability(c) {
			return true
		}
	}
	return false
}

// SystemActor is used for changes made by background jobs.
var SystemActor = Actor{ID: "system", Name: "Reconcile sweep", Roles: []UserRoleType{RoleAPIService}}

// AllCapabilities lists every capability in display order.
var AllCapabilities = []Capability{
	CapabilityCreateRequest,
	CapabilityReadRequests,
	CapabilityRequestOffers,
	CapabilityApprove,
	CapabilityReject,
	CapabilityEscalate,
	CapabilityCompleteDelivery,
	CapabilityRecordShipment,
	CapabilityMarkDepotUnavailable,
	CapabilityManageOrders,
	CapabilityConfirmDelivery,
	CapabilityManageInvoices,
	CapabilityManageSuppliers,
	CapabilityReconcile,
}

// Capabilities returns the capabilities granted by any of the actor's roles.
func (a Actor) Capabilities() []Capability {
	out := []Capability{}
	for _, c := range AllCapabilities {
		if a.Can(c) {
			out = append(out, c)
		}
	}
	return out
}
