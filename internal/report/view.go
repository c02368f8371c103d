package report

import (
	"errors"
	"strings"

	"github.com/dennisdiepolder/qcdash/internal/roster"
	"github.com/dennisdiepolder/qcdash/internal/types"
)

// ErrForbiddenFilter is returned when a filter reaches outside the viewer's scope
var ErrForbiddenFilter = errors.New("filter outside allowed scope")

// AllOption is the filter value meaning no restriction
const AllOption = "All"

// Filter narrows a report. Empty or "All" fields do not restrict.
type Filter struct {
	Team   string `json:"team"`
	Shift  string `json:"shift"`
	Expert string `json:"expert"`
}

// Normalized trims values and clears "All"
func (f Filter) Normalized() Filter {
	clean := func(v string) string {
		v = strings.TrimSpace(v)
		if strings.EqualFold(v, AllOption) {
			return ""
		}
		return v
	}
	return Filter{Team: clean(f.Team), Shift: clean(f.Shift), Expert: clean(f.Expert)}
}

// IsZero reports whether the filter restricts nothing
func (f Filter) IsZero() bool {
	n := f.Normalized()
	return n.Team == "" && n.Shift == "" && n.Expert == ""
}

func (f Filter) matches(m types.Member) bool {
	if f.Team != "" && !m.InTeam(f.Team) {
		return false
	}
	if f.Shift != "" && !m.InShift(f.Shift) {
		return false
	}
	if f.Expert != "" && !strings.EqualFold(m.Name, f.Expert) {
		return false
	}
	return true
}

// FilterOptions lists the values a viewer may pick
type FilterOptions struct {
	Teams   []string `json:"teams"`
	Shifts  []string `json:"shifts"`
	Experts []string `json:"experts"`
}

// View is the role-specific part of a report: who is visible and which
// filters are allowed.
type View interface {
	Name() string
	Visible(m types.Member) bool
	Validate(f Filter) error
	Options(visible []types.Member) FilterOptions
}

// ViewFor picks the view matching the viewer's role
func ViewFor(v types.Viewer) View {
	switch v.Role {
	case types.RoleAdmin:
		return adminView{}
	case types.RoleTeamManager:
		return teamManagerView{viewer: v}
	case types.RoleSupervisor:
		return supervisorView{viewer: v}
	default:
		return expertView{viewer: v}
	}
}

// Select applies view and filter to the roster
func Select(view View, members []types.Member, f Filter) ([]types.Member, error) {
	f = f.Normalized()
	if err := view.Validate(f); err != nil {
		return nil, err
	}

	visible := Visible(view, members)
	if f.Expert != "" && view.Name() != "admin" && !containsMember(visible, f.Expert) {
		return nil, ErrForbiddenFilter
	}

	out := make([]types.Member, 0, len(visible))
	for _, m := range visible {
		if f.matches(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Visible returns the members the view may see
func Visible(view View, members []types.Member) []types.Member {
	out := make([]types.Member, 0, len(members))
	for _, m := range members {
		if view.Visible(m) {
			out = append(out, m)
		}
	}
	return out
}

type adminView struct{}

func (adminView) Name() string { return "admin" }
func (adminView) Visible(types.Member) bool { return true }
func (adminView) Validate(Filter) error { return nil }
func (adminView) Options(visible []types.Member) FilterOptions {
	return FilterOptions{
		Teams:   withAll(roster.Distinct(visible, func(m types.Member) []string { return m.Teams })),
		Shifts:  withAll(roster.Distinct(visible, func(m types.Member) []string { return m.Shifts })),
		Experts: withAll(expertNames(visible)),
	}
}

type teamManagerView struct{ viewer types.Viewer }

func (teamManagerView) Name() string { return "team_manager" }

func (v teamManagerView) Visible(m types.Member) bool { return v.viewer.SharesTeam(m) }

func (v teamManagerView) Validate(f Filter) error {
	if f.Team != "" && !containsFold(v.viewer.Teams, f.Team) {
		return ErrForbiddenFilter
	}
	return nil
}

func (v teamManagerView) Options(visible []types.Member) FilterOptions {
	return FilterOptions{
		Teams:   withAll(v.viewer.Teams),
		Shifts:  withAll(roster.Distinct(visible, func(m types.Member) []string { return m.Shifts })),
		Experts: withAll(expertNames(visible)),
	}
}

type supervisorView struct{ viewer types.Viewer }

func (supervisorView) Name() string { return "supervisor" }

func (v supervisorView) Visible(m types.Member) bool {
	return v.viewer.SharesTeam(m) && v.viewer.SharesShift(m)
}

func (v supervisorView) Validate(f Filter) error {
	if f.Team != "" && !containsFold(v.viewer.Teams, f.Team) {
		return ErrForbiddenFilter
	}
	if f.Shift != "" && !containsFold(v.viewer.Shifts, f.Shift) {
		return ErrForbiddenFilter
	}
	return nil
}

func (v supervisorView) Options(visible []types.Member) FilterOptions {
	return FilterOptions{
		Teams:   withAll(v.viewer.Teams),
		Shifts:  withAll(v.viewer.Shifts),
		Experts: withAll(expertNames(visible)),
	}
}

// expertView shows only the viewer's own row
type expertView struct{ viewer types.Viewer }

func (expertView) Name() string { return "expert" }

func (v expertView) Visible(m types.Member) bool { return strings.EqualFold(m.Name, v.viewer.Name) }

func (v expertView) Validate(f Filter) error {
	if f.Team != "" || f.Shift != "" {
		return ErrForbiddenFilter
	}
	if f.Expert != "" && !strings.EqualFold(f.Expert, v.viewer.Name) {
		return ErrForbiddenFilter
	}
	return nil
}

func (expertView) Options([]types.Member) FilterOptions {
	return FilterOptions{Teams: []string{}, Shifts: []string{}, Experts: []string{}}
}

func expertNames(members []types.Member) []string {
	names := roster.Distinct(members, func(m types.Member) []string {
		if roster.IsExpert(m) {
			return []string{m.Name}
		}
		return nil
	})
	return names
}

func withAll(values []string) []string {
	out := make([]string, 0, len(values)+1)
	out = append(out, AllOption)
	return append(out, values...)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func containsMember(members []types.Member, name string) bool {
	for _, m := range members {
		if strings.EqualFold(m.Name, name) {
			return true
		}
	}
	return false
}
