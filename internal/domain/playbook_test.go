package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(hour int) time.Time {
	return time.Date(2025, 6, 1, hour, 30, 0, 0, time.UTC)
}

func TestRouteAtFallsBackToSLARoute(t *testing.T) {
	playbook := Playbook{
		SLA: &SLAPolicy{BreachEscalateTo: "#sla-route"},
	}
	assert.Equal(t, "#sla-route", playbook.RouteAt(at(14)))

	playbook.Escalation.Route = "#explicit"
	assert.Equal(t, "#explicit", playbook.RouteAt(at(14)))
}

func TestRouteAtWithoutAnyRoute(t *testing.T) {
	playbook := Playbook{}
	assert.Equal(t, "", playbook.RouteAt(at(14)))
}

func TestRouteAtNightWindowWrapsMidnight(t *testing.T) {
	playbook := Playbook{
		Escalation: EscalationRouting{
			Route:          "#day",
			NightRoute:     "#night",
			NightStartHour: 22,
			NightEndHour:   6,
		},
	}
	assert.Equal(t, "#day", playbook.RouteAt(at(14)))
	assert.Equal(t, "#night", playbook.RouteAt(at(23)))
	assert.Equal(t, "#night", playbook.RouteAt(at(2)))
	assert.Equal(t, "#day", playbook.RouteAt(at(6)))
	assert.Equal(t, "#night", playbook.RouteAt(at(22)))
}

func TestRouteAtNonWrappingNightWindow(t *testing.T) {
	playbook := Playbook{
		Escalation: EscalationRouting{
			Route:          "#day",
			NightRoute:     "#night",
			NightStartHour: 0,
			NightEndHour:   8,
		},
	}
	assert.Equal(t, "#night", playbook.RouteAt(at(3)))
	assert.Equal(t, "#day", playbook.RouteAt(at(9)))
}
