// Package tenant carries the request scope into engine calls explicitly.
package tenant

// Scope identifies the enterprise a request operates on and the acting user.
type Scope struct {
	EnterpriseID uint
	UserID       uint
	UserName     string
}

// System is the actor used for scheduled work.
func System(enterpriseID uint) Scope {
	return Scope{EnterpriseID: enterpriseID, UserName: "system"}
}
