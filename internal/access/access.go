package access

import (
	"errors"
	"strings"
)

// Role is the clearance tier attached to every identity at registration.
type Role string

const (
	RoleIntern    Role = "intern"
	RoleHRManager Role = "hr_manager"
	RoleCFO       Role = "cfo"
)

// Level is the classification tag attached to every indexed document.
type Level string

const (
	LevelPublic  Level = "public"
	LevelHR      Level = "hr"
	LevelFinance Level = "finance"
)

var (
	ErrUnknownRole       = errors.New("unknown role")
	ErrInvalidEmployeeID = errors.New("invalid employee id format")
)

// allowSets maps each role to the document levels it may read. New roles
// are added here, not as branching logic in the query path.
var allowSets = map[Role][]Level{
	RoleIntern:    {LevelPublic},
	RoleHRManager: {LevelPublic, LevelHR},
	RoleCFO:       {LevelPublic, LevelHR, LevelFinance},
}

// AllowedLevels returns the document levels the role may read. The returned
// slice is a copy; callers may not widen a clearance by mutating it.
func AllowedLevels(role Role) ([]Level, error) {
	levels, ok := allowSets[role]
	if !ok {
		return nil, ErrUnknownRole
	}
	out := make([]Level, len(levels))
	copy(out, levels)
	return out, nil
}

// Valid reports whether the role is one of the enumerated clearances.
func (r Role) Valid() bool {
	_, ok := allowSets[r]
	return ok
}

// DeriveRole maps an employee ID to a role by its two-letter prefix
// (in = intern, hr = hr_manager, ex = cfo). Stand-in for a directory
// lookup in the provisioning system.
func DeriveRole(employeeID string) (Role, error) {
	id := strings.TrimSpace(employeeID)
	if len(id) < 2 {
		return "", ErrInvalidEmployeeID
	}
	switch strings.ToLower(id[:2]) {
	case "in":
		return RoleIntern, nil
	case "hr":
		return RoleHRManager, nil
	case "ex":
		return RoleCFO, nil
	default:
		return "", ErrInvalidEmployeeID
	}
}

// LevelForFilename classifies a source document by filename keyword,
// defaulting to public. Mirrors how the corpus is laid out on disk.
func LevelForFilename(name string) Level {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "hr") {
		return LevelHR
	}
	if strings.Contains(lower, "finance") {
		return LevelFinance
	}
	return LevelPublic
}
