package store

import (
	"time"

	"dispatch-cli/internal/model"

	"github.com/google/uuid"
)

// NewID returns prefix-<first 8 hex chars of a random uuid>.
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

var seedCrews = []string{
	"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf", "Hotel",
}

type seedWork struct {
	customer, address, service string
	priority                   model.Priority
	status                     model.Status
	crew                       int // index into seedCrews, -1 for none
	startHour                  int
	hours                      float64
	weather                    bool
}

var seedWorkOrders = []seedWork{
	{"Harbor Dental", "12 Quay St", "Roof leak repair", model.PriorityUrgent, model.StatusUnassigned, -1, 0, 3, true},
	{"Oak Hill School", "400 Oak Hill Rd", "Storm debris removal", model.PriorityHigh, model.StatusUnassigned, -1, 0, 4, true},
	{"M. Okafor", "7 Birch Ln", "Gutter cleaning", model.PriorityNormal, model.StatusUnassigned, -1, 0, 1.5, false},
	{"Riverside Cafe", "88 Front St", "HVAC inspection", model.PriorityLow, model.StatusUnassigned, -1, 0, 2, false},
	{"Pine Court HOA", "1 Pine Ct", "Tree trimming", model.PriorityNormal, model.StatusUnassigned, -1, 0, 5, false},
	{"City Library", "250 Main St", "Window replacement", model.PriorityHigh, model.StatusAssigned, 0, 8, 3, false},
	{"J. Alvarez", "19 Elm St", "Fence repair", model.PriorityNormal, model.StatusAssigned, 0, 13, 2, false},
	{"Northgate Mall", "5 Northgate Blvd", "Parking lot sweep", model.PriorityLow, model.StatusAssigned, 1, 9, 2, false},
	{"S. Lindqvist", "33 Maple Ave", "Sump pump install", model.PriorityUrgent, model.StatusAssigned, 2, 10, 2.5, true},
	{"Greenfield Farm", "Rural Rte 9", "Drainage survey", model.PriorityNormal, model.StatusInProgress, 3, 7, 4, false},
	{"Bayview Clinic", "2 Bay Rd", "Generator service", model.PriorityHigh, model.StatusCompleted, 4, 7, 2, false},
	{"T. Nguyen", "61 Cedar Dr", "Deck staining", model.PriorityLow, model.StatusCompleted, 5, 8, 3, false},
}

// Seed returns a demo board for the day containing now: eight crews and a
// dozen work orders across every status.
func Seed(now time.Time) *DB {
	st := &DB{}
	for _, name := range seedCrews {
		st.Crews = append(st.Crews, model.Crew{ID: NewID("crew"), Name: "Crew " + name, Status: "active"})
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, w := range seedWorkOrders {
		wo := model.WorkOrder{
			ID:                     NewID("wo"),
			CustomerName:           w.customer,
			SiteAddress:            w.address,
			ServiceType:            w.service,
			Status:                 w.status,
			Priority:               w.priority,
			EstimatedDurationHours: w.hours,
			WeatherTriggered:       w.weather,
		}
		if w.crew >= 0 {
			// Completed work keeps its schedule but no longer holds a crew.
			if w.status.HasCrew() {
				id := st.Crews[w.crew].ID
				wo.AssignedCrewID = &id
			}
			start := day.Add(time.Duration(w.startHour) * time.Hour)
			end := start.Add(time.Duration(w.hours * float64(time.Hour)))
			wo.ScheduledStart = &start
			wo.ScheduledEnd = &end
		}
		st.WorkOrders = append(st.WorkOrders, wo)
	}
	return st
}
