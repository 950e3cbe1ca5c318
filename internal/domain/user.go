package domain

// Roles carried by the trusted identity headers. Authentication itself is an
// external collaborator; orders and carts hold user identifiers only.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)
