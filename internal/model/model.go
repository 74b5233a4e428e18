package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusUnassigned Status = "unassigned"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every bucket in board order.
var Statuses = []Status{StatusUnassigned, StatusAssigned, StatusInProgress, StatusCompleted}

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusUnassigned, StatusAssigned, StatusInProgress, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown work order status: %q", s)
	}
}

// HasCrew reports whether a work order in this status must carry a crew.
func (s Status) HasCrew() bool {
	return s == StatusAssigned || s == StatusInProgress
}

func (s Status) Label() string {
	switch s {
	case StatusUnassigned:
		return "Unassigned"
	case StatusAssigned:
		return "Assigned"
	case StatusInProgress:
		return "In progress"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return p, nil
	default:
		return "", fmt.Errorf("unknown work order priority: %q", s)
	}
}

// Rank orders priorities with urgent first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	default:
		return 3
	}
}

type Availability string

const (
	AvailabilityAvailable Availability = "available"
	AvailabilityBusy      Availability = "busy"
)

type WorkOrder struct {
	ID           string   `json:"id" yaml:"id"`
	CustomerName string   `json:"customer_name" yaml:"customer_name"`
	SiteAddress  string   `json:"site_address" yaml:"site_address"`
	ServiceType  string   `json:"service_type" yaml:"service_type"`
	Status       Status   `json:"status" yaml:"status"`
	Priority     Priority `json:"priority" yaml:"priority"`

	AssignedCrewID   *string `json:"assigned_crew_id,omitempty" yaml:"assigned_crew_id,omitempty"`
	AssignedCrewName *string `json:"assigned_crew_name,omitempty" yaml:"assigned_crew_name,omitempty"`

	ScheduledStart *time.Time `json:"scheduled_start,omitempty" yaml:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty" yaml:"scheduled_end,omitempty"`

	EstimatedDurationHours float64 `json:"estimated_duration_hours" yaml:"estimated_duration_hours"`
	WeatherTriggered       bool    `json:"weather_triggered" yaml:"weather_triggered"`
}

// CrewID returns the assigned crew id, or "" when unassigned.
func (w WorkOrder) CrewID() string {
	if w.AssignedCrewID == nil {
		return ""
	}
	return strings.TrimSpace(*w.AssignedCrewID)
}

func (w WorkOrder) CrewName() string {
	if w.AssignedCrewName == nil {
		return ""
	}
	return strings.TrimSpace(*w.AssignedCrewName)
}

func (w WorkOrder) HasSchedule() bool {
	return w.ScheduledStart != nil && !w.ScheduledStart.IsZero()
}

type Crew struct {
	ID                 string       `json:"id" yaml:"id"`
	Name               string       `json:"name" yaml:"name"`
	Status             string       `json:"status" yaml:"status"`
	AssignedWorkOrders int          `json:"assigned_work_orders" yaml:"assigned_work_orders"`
	Availability       Availability `json:"availability" yaml:"availability"`
}

func (c Crew) Label() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return c.ID
}

type Summary struct {
	Unassigned     int `json:"unassigned" yaml:"unassigned"`
	Assigned       int `json:"assigned" yaml:"assigned"`
	InProgress     int `json:"in_progress" yaml:"in_progress"`
	Completed      int `json:"completed" yaml:"completed"`
	AvailableCrews int `json:"available_crews" yaml:"available_crews"`
}

type Buckets struct {
	Unassigned []WorkOrder `json:"unassigned" yaml:"unassigned"`
	Assigned   []WorkOrder `json:"assigned" yaml:"assigned"`
	InProgress []WorkOrder `json:"in_progress" yaml:"in_progress"`
	Completed  []WorkOrder `json:"completed" yaml:"completed"`
}

// Bucket returns the list for one status.
func (b Buckets) Bucket(s Status) []WorkOrder {
	switch s {
	case StatusUnassigned:
		return b.Unassigned
	case StatusAssigned:
		return b.Assigned
	case StatusInProgress:
		return b.InProgress
	case StatusCompleted:
		return b.Completed
	default:
		return nil
	}
}

// BoardSnapshot is the full board for one date/view. It is replaced wholesale
// on every fetch and never edited in place.
type BoardSnapshot struct {
	Date       string  `json:"date" yaml:"date"`
	View       View    `json:"view" yaml:"view"`
	WorkOrders Buckets `json:"work_orders" yaml:"work_orders"`
	Crews      []Crew  `json:"crews" yaml:"crews"`
	Summary    Summary `json:"summary" yaml:"summary"`
}

// FindWorkOrder looks a work order up across all buckets.
func (s BoardSnapshot) FindWorkOrder(id string) (WorkOrder, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return WorkOrder{}, false
	}
	for _, st := range Statuses {
		for _, wo := range s.WorkOrders.Bucket(st) {
			if wo.ID == id {
				return wo, true
			}
		}
	}
	return WorkOrder{}, false
}

func (s BoardSnapshot) FindCrew(id string) (Crew, bool) {
	id = strings.TrimSpace(id)
	for _, c := range s.Crews {
		if c.ID == id {
			return c, true
		}
	}
	return Crew{}, false
}

// CrewWorkOrders returns the assigned and in-progress work orders for a crew,
// assigned first.
func (s BoardSnapshot) CrewWorkOrders(crewID string) []WorkOrder {
	var out []WorkOrder
	for _, st := range []Status{StatusAssigned, StatusInProgress} {
		for _, wo := range s.WorkOrders.Bucket(st) {
			if wo.CrewID() == crewID {
				out = append(out, wo)
			}
		}
	}
	return out
}

// Total returns the number of work orders across all buckets.
func (s BoardSnapshot) Total() int {
	n := 0
	for _, st := range Statuses {
		n += len(s.WorkOrders.Bucket(st))
	}
	return n
}
