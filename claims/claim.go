package claims

// DefaultIssuer is used when a claim is produced without an issuer.
const DefaultIssuer = "LOCAL AUTHORITY"

// Claim value types.
const (
	ValueTypeString     = "http://www.w3.org/2001/XMLSchema#string"
	ValueTypeBoolean    = "http://www.w3.org/2001/XMLSchema#boolean"
	ValueTypeDateTime   = "http://www.w3.org/2001/XMLSchema#dateTime"
	ValueTypeDouble     = "http://www.w3.org/2001/XMLSchema#double"
	ValueTypeInteger    = "http://www.w3.org/2001/XMLSchema#integer"
	ValueTypeInteger32  = "http://www.w3.org/2001/XMLSchema#integer32"
	ValueTypeInteger64  = "http://www.w3.org/2001/XMLSchema#integer64"
	ValueTypeUInteger64 = "http://www.w3.org/2001/XMLSchema#uinteger64"
	ValueTypeJSON       = "JSON"
	ValueTypeJSONArray  = "JSON_ARRAY"
	ValueTypeJSONNull   = "JSON_NULL"
)

// Claim is a single statement about a subject, as found in a token payload.
type Claim struct {
	// Type is the claim name, e.g. "sub".
	Type string

	// Value is the string form of the claim value. Objects and nested arrays
	// carry their JSON text.
	Value string

	// ValueType is one of the ValueType constants.
	ValueType string

	Issuer         string
	OriginalIssuer string

	// Properties holds arbitrary metadata attached to the claim.
	Properties map[string]string
}

// NewClaim returns a claim issued by issuer, or by DefaultIssuer when issuer
// is empty.
func NewClaim(claimType, value, valueType, issuer string) Claim {
	if valueType == "" {
		valueType = ValueTypeString
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return Claim{
		Type:           claimType,
		Value:          value,
		ValueType:      valueType,
		Issuer:         issuer,
		OriginalIssuer: issuer,
	}
}
