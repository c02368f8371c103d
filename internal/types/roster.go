package types

import "strings"

// Role is the access level of a roster member
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleTeamManager Role = "team_manager"
	RoleSupervisor  Role = "supervisor"
	RoleExpert      Role = "expert"
)

// ParseRole maps the roster's free-text role column onto a Role.
// QC staff get the admin view.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "qc":
		return RoleAdmin, true
	case "team manager", "team manger", "team_manager", "teammanager":
		return RoleTeamManager, true
	case "supervisor":
		return RoleSupervisor, true
	case "expert":
		return RoleExpert, true
	}
	return "", false
}

// Member is a single row of the roster spreadsheet
type Member struct {
	Name         string   `json:"name"`
	PasswordHash string   `json:"-"`
	RawRole      string   `json:"rawRole"`
	Teams        []string `json:"teams"`
	Shifts       []string `json:"shifts"`
	VoipIDs      []string `json:"voipIds"`
	VoipNames    []string `json:"voipNames"`
}

// Role returns the parsed role, false when the roster value is unknown
func (m Member) Role() (Role, bool) {
	return ParseRole(m.RawRole)
}

// InTeam reports whether the member belongs to team
func (m Member) InTeam(team string) bool {
	return containsFold(m.Teams, team)
}

// InShift reports whether the member works shift
func (m Member) InShift(shift string) bool {
	return containsFold(m.Shifts, shift)
}

// HasVoipID reports whether id is one of the member's extensions
func (m Member) HasVoipID(id string) bool {
	for _, v := range m.VoipIDs {
		if v == id {
			return true
		}
	}
	return false
}

// Viewer is the authenticated user a report is rendered for
type Viewer struct {
	Name   string   `json:"name"`
	Role   Role     `json:"role"`
	Teams  []string `json:"teams"`
	Shifts []string `json:"shifts"`
}

// SharesTeam reports whether m has at least one team in common with v
func (v Viewer) SharesTeam(m Member) bool {
	for _, t := range v.Teams {
		if m.InTeam(t) {
			return true
		}
	}
	return false
}

// SharesShift reports whether m has at least one shift in common with v
func (v Viewer) SharesShift(m Member) bool {
	for _, s := range v.Shifts {
		if m.InShift(s) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
