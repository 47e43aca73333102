package domain

import "time"

// AssigneeRole enumerates operator roles. Managers are excluded from
// auto-assignment pools.
type AssigneeRole string

const (
	AssigneeRoleOperator AssigneeRole = "OPERATOR"
	AssigneeRoleLead     AssigneeRole = "LEAD"
	AssigneeRoleManager  AssigneeRole = "MANAGER"
)

// Assignee models a person tasks can be routed to. Owned by an external
// user-management component; this service only reads it.
type Assignee struct {
	ID         string
	Name       string
	Role       AssigneeRole
	Active     bool
	Affinities []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Workload is a point-in-time snapshot of one assignee's load, derived by
// query and never stored.
type Workload struct {
	AssigneeID     string
	OpenTasks      int
	OverdueTasks   int
	BreachedTasks  int
	LastAssignedAt *time.Time
}

// HasAffinity reports whether the assignee covers the given category.
// An empty affinity list means the assignee is eligible for everything.
func (a *Assignee) HasAffinity(category string) bool {
	if len(a.Affinities) == 0 {
		return true
	}
	for _, affinity := range a.Affinities {
		if affinity == category || isCategoryPrefix(affinity, category) {
			return true
		}
	}
	return false
}

// isCategoryPrefix matches dotted-taxonomy prefixes, so an affinity of
// "reservations" covers "reservations.refund_request".
func isCategoryPrefix(prefix, category string) bool {
	if len(category) <= len(prefix) {
		return false
	}
	return category[:len(prefix)] == prefix && category[len(prefix)] == '.'
}
