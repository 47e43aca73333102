package domain

import "time"

// SLAPolicy supplies first-response timing and breach routing for a category.
type SLAPolicy struct {
	FirstResponseMinutes int    `json:"first_response_minutes"`
	BreachEscalateTo     string `json:"breach_escalate_to"`
}

// EscalationRouting resolves where breach notifications go, with a distinct
// route during the configured night window.
type EscalationRouting struct {
	Route          string `json:"route"`
	NightRoute     string `json:"night_route,omitempty"`
	NightStartHour int    `json:"night_start_hour"`
	NightEndHour   int    `json:"night_end_hour"`
}

// Playbook is a category-scoped SOP definition. It is owned by an external
// collaborator and read-only to this service.
type Playbook struct {
	ID               string
	Key              string
	Category         string
	RequiredFields   []string
	RequiredEvidence []string
	SLA              *SLAPolicy
	Steps            []string
	Escalation       EscalationRouting
	AutoAssign       bool
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RouteAt returns the escalation route effective at the given time.
func (p *Playbook) RouteAt(t time.Time) string {
	route := p.Escalation.Route
	if route == "" && p.SLA != nil {
		route = p.SLA.BreachEscalateTo
	}
	if p.Escalation.NightRoute == "" {
		return route
	}
	hour := t.Hour()
	start := p.Escalation.NightStartHour
	end := p.Escalation.NightEndHour
	inNight := false
	if start <= end {
		inNight = hour >= start && hour < end
	} else {
		// window wraps midnight, e.g. 22..6
		inNight = hour >= start || hour < end
	}
	if inNight {
		return p.Escalation.NightRoute
	}
	return route
}
