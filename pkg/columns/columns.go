// Package columns assigns semantic roles to telemetry columns by name.
package columns

import (
	"strings"
)

// Role is the meaning of a telemetry column.
type Role int

const (
	WindSpeed Role = iota
	Power
	Energy
	Timestamp
)

// AllRoles lists every role in inference order.
var AllRoles = []Role{WindSpeed, Power, Energy, Timestamp}

func (r Role) String() string {
	switch r {
	case WindSpeed:
		return "wind_speed"
	case Power:
		return "power"
	case Energy:
		return "energy"
	case Timestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Rule matches column names for a role.
type Rule struct {
	Role  Role
	Name  string
	Match func(name string) bool
}

func contains(token string) func(string) bool {
	return func(name string) bool {
		return strings.Contains(strings.ToLower(name), token)
	}
}

func exact(want string) func(string) bool {
	return func(name string) bool {
		return name == want
	}
}

func oneOf(names ...string) func(string) bool {
	return func(name string) bool {
		n := strings.ToLower(strings.TrimSpace(name))
		for _, want := range names {
			if n == want {
				return true
			}
		}
		return false
	}
}

// DefaultRules is the ordered rule table used by Infer. Rules for the same
// role are listed strongest first.
var DefaultRules = []Rule{
	{WindSpeed, "ws", contains("ws")},
	{WindSpeed, "windspeed", contains("windspeed")},
	{WindSpeed, "wmet_horwdspd", contains("wmet_horwdspd")},

	{Power, "p_avg", contains("p_avg")},
	{Power, "wtur_w", contains("wtur_w")},
	{Power, "power", contains("power")},

	{Energy, "energy", contains("energy")},
	{Energy, "p_avg", contains("p_avg")},
	{Energy, "wtur_w", contains("wtur_w")},

	{Timestamp, "Date_time", exact("Date_time")},
	{Timestamp, "time names", oneOf("date_time", "time", "timestamp", "datetime", "date")},
}

// Roles maps each inferred role to its column name. Roles without a match
// are absent.
type Roles map[Role]string

// Get returns the column for a role.
func (r Roles) Get(role Role) (string, bool) {
	name, ok := r[role]
	return name, ok
}

// Missing returns the roles that could not be inferred, in inference order.
func (r Roles) Missing() []Role {
	var missing []Role
	for _, role := range AllRoles {
		if _, ok := r[role]; !ok {
			missing = append(missing, role)
		}
	}
	return missing
}

// Infer assigns roles to column names using DefaultRules.
func Infer(names []string) Roles {
	return InferWith(DefaultRules, names)
}

// InferWith assigns roles using the given rules. For each role the first rule
// that matches any column wins, and within a rule the first matching column
// in table order is chosen.
func InferWith(rules []Rule, names []string) Roles {
	roles := make(Roles)
	for _, rule := range rules {
		if _, ok := roles[rule.Role]; ok {
			continue
		}
		for _, name := range names {
			if rule.Match(name) {
				roles[rule.Role] = name
				break
			}
		}
	}
	return roles
}
