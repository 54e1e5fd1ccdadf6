package token

import (
	"fmt"
	"sort"

	"github.com/golang-jwt/jwt/v5"
)

// Claim types carried in access tokens.
const (
	ClaimName  = "name"
	ClaimEmail = "email"
	ClaimID    = "id"
	ClaimJTI   = "jti"
	ClaimRole  = "role"
)

// registered claims are owned by the codec, never by a ClaimSet.
var registered = map[string]bool{
	"iss": true, "aud": true, "exp": true, "iat": true, "nbf": true, "sub": true,
}

// wellKnown fixes the order in which decoded claims are rebuilt.
var wellKnown = []string{ClaimName, ClaimEmail, ClaimID, ClaimJTI}

type Claim struct {
	Type  string
	Value string
}

// ClaimSet is an ordered list of claims. It is a value type: methods never
// mutate the receiver.
type ClaimSet struct {
	claims []Claim
}

func NewClaimSet(claims ...Claim) ClaimSet {
	return ClaimSet{claims: append([]Claim(nil), claims...)}
}

// Claims returns a copy of the claims in order.
func (cs ClaimSet) Claims() []Claim {
	return append([]Claim(nil), cs.claims...)
}

func (cs ClaimSet) Len() int { return len(cs.claims) }

// First returns the first value of the given type.
func (cs ClaimSet) First(typ string) (string, bool) {
	for _, c := range cs.claims {
		if c.Type == typ {
			return c.Value, true
		}
	}
	return "", false
}

// Values returns every value of the given type, in order.
func (cs ClaimSet) Values(typ string) []string {
	var out []string
	for _, c := range cs.claims {
		if c.Type == typ {
			out = append(out, c.Value)
		}
	}
	return out
}

func (cs ClaimSet) Has(typ, value string) bool {
	for _, c := range cs.claims {
		if c.Type == typ && c.Value == value {
			return true
		}
	}
	return false
}

func (cs ClaimSet) Name() string {
	v, _ := cs.First(ClaimName)
	return v
}

func (cs ClaimSet) Roles() []string { return cs.Values(ClaimRole) }

func (cs ClaimSet) InRole(role string) bool { return cs.Has(ClaimRole, role) }

// With returns a copy where every claim of typ is replaced by a single claim
// holding value, kept at the position of the first occurrence.
func (cs ClaimSet) With(typ, value string) ClaimSet {
	out := make([]Claim, 0, len(cs.claims)+1)
	placed := false
	for _, c := range cs.claims {
		if c.Type != typ {
			out = append(out, c)
			continue
		}
		if !placed {
			out = append(out, Claim{Type: typ, Value: value})
			placed = true
		}
	}
	if !placed {
		out = append(out, Claim{Type: typ, Value: value})
	}
	return ClaimSet{claims: out}
}

// toMap flattens the set into JWT payload fields. Role claims are always an
// array; any other repeated type becomes an array too.
func (cs ClaimSet) toMap() (jwt.MapClaims, error) {
	counts := map[string]int{}
	for _, c := range cs.claims {
		if registered[c.Type] {
			return nil, fmt.Errorf("claim %q is reserved", c.Type)
		}
		counts[c.Type]++
	}

	m := jwt.MapClaims{}
	for _, c := range cs.claims {
		if c.Type == ClaimRole || counts[c.Type] > 1 {
			list, _ := m[c.Type].([]string)
			m[c.Type] = append(list, c.Value)
			continue
		}
		m[c.Type] = c.Value
	}
	return m, nil
}

// fromMap rebuilds a ClaimSet from a decoded payload: well-known claims first,
// then roles in token order, then any other claim types sorted by name.
func fromMap(m jwt.MapClaims) ClaimSet {
	var out []Claim
	seen := map[string]bool{}

	add := func(typ string) {
		seen[typ] = true
		v, ok := m[typ]
		if !ok {
			return
		}
		switch val := v.(type) {
		case []any:
			for _, item := range val {
				out = append(out, Claim{Type: typ, Value: fmt.Sprint(item)})
			}
		case string:
			out = append(out, Claim{Type: typ, Value: val})
		default:
			out = append(out, Claim{Type: typ, Value: fmt.Sprint(val)})
		}
	}

	for _, typ := range wellKnown {
		add(typ)
	}
	add(ClaimRole)

	rest := make([]string, 0, len(m))
	for k := range m {
		if !seen[k] && !registered[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, typ := range rest {
		add(typ)
	}
	return ClaimSet{claims: out}
}
