package claims

// Default claim types used to resolve an identity's name and roles.
const (
	DefaultNameClaimType = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	DefaultRoleClaimType = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

// ActorClaimType is the payload claim that carries a delegated actor token.
const ActorClaimType = "actort"

// Identity is a collection of claims about one subject, together with the
// claim types used to resolve its name and roles.
type Identity struct {
	AuthenticationType string
	NameClaimType      string
	RoleClaimType      string
	Label              string

	// Actor is the identity of the party acting on behalf of the subject.
	Actor *Identity

	// BootstrapContext holds the token the identity was built from, when the
	// caller asked for it to be kept.
	BootstrapContext string

	claims []Claim
}

// NewIdentity returns an empty identity. Empty claim types fall back to the
// defaults.
func NewIdentity(authenticationType, nameClaimType, roleClaimType string) *Identity {
	if nameClaimType == "" {
		nameClaimType = DefaultNameClaimType
	}
	if roleClaimType == "" {
		roleClaimType = DefaultRoleClaimType
	}
	return &Identity{
		AuthenticationType: authenticationType,
		NameClaimType:      nameClaimType,
		RoleClaimType:      roleClaimType,
	}
}

// IsAuthenticated reports whether the identity carries an authentication type.
func (i *Identity) IsAuthenticated() bool {
	return i.AuthenticationType != ""
}

// AddClaim appends c, keeping its type, value, value type, issuer and
// properties as given.
func (i *Identity) AddClaim(c Claim) {
	i.claims = append(i.claims, c)
}

// AddClaims appends every claim in cs.
func (i *Identity) AddClaims(cs ...Claim) {
	i.claims = append(i.claims, cs...)
}

// Claims returns the claims in the order they were added.
func (i *Identity) Claims() []Claim {
	out := make([]Claim, len(i.claims))
	copy(out, i.claims)
	return out
}

// FindFirst returns the first claim of the given type.
func (i *Identity) FindFirst(claimType string) (Claim, bool) {
	for _, c := range i.claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

// FindAll returns every claim of the given type.
func (i *Identity) FindAll(claimType string) []Claim {
	var out []Claim
	for _, c := range i.claims {
		if c.Type == claimType {
			out = append(out, c)
		}
	}
	return out
}

// HasClaim reports whether a claim with the given type and value exists.
func (i *Identity) HasClaim(claimType, value string) bool {
	for _, c := range i.claims {
		if c.Type == claimType && c.Value == value {
			return true
		}
	}
	return false
}

// Name returns the value of the first NameClaimType claim.
func (i *Identity) Name() string {
	c, _ := i.FindFirst(i.NameClaimType)
	return c.Value
}

// Roles returns the values of every RoleClaimType claim.
func (i *Identity) Roles() []string {
	var roles []string
	for _, c := range i.FindAll(i.RoleClaimType) {
		roles = append(roles, c.Value)
	}
	return roles
}
