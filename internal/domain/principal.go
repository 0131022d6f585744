package domain

// AuthMethod describes how a caller authenticated with the API.
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodSecret AuthMethod = "shared_secret"
)

// Principal captures normalized caller identity independent of auth mechanism.
// Every store operation and model-catalog lookup is scoped to a Principal;
// its absence means Unauthorized, never partial data.
type Principal struct {
	ID         string
	AuthMethod AuthMethod
	Subject    string
	Issuer     string
	Username   string
	Email      string
	Name       string
	Roles      []string
}

// HasRole checks if the principal possesses a role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
