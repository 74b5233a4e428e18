package mutate

import (
	"fmt"
	"sort"
	"time"

	"dispatch-cli/internal/model"
	"dispatch-cli/internal/store"
)

const (
	WorkdayStartHour = 8
	WorkdayEndHour   = 18
)

type OptimizeResult struct {
	Assigned int
	Total    int
	Crews    int
	// Changed lists the ids of work orders that received a crew.
	Changed []string
}

func (r OptimizeResult) Message() string {
	return fmt.Sprintf("Assigned %d of %d work orders across %d crews", r.Assigned, r.Total, r.Crews)
}

type crewLoad struct {
	crew   *model.Crew
	count  int
	cursor time.Time
}

// Optimize assigns the unassigned work for one day. Work is taken most
// urgent first and given to the active crew with the fewest assignments that
// day (ties by name), packed back to back from the start of the workday.
// Work that fits no crew before the end of the workday stays unassigned.
func Optimize(db *store.DB, date string, loc *time.Location) (OptimizeResult, error) {
	dayStart, dayEnd, err := model.Window(date, model.ViewDay, loc)
	if err != nil {
		return OptimizeResult{}, InvalidError{Field: "date", Reason: err.Error()}
	}
	// Wall-clock hours; a DST change shifts the offset from midnight.
	y, m, d := dayStart.Date()
	open := time.Date(y, m, d, WorkdayStartHour, 0, 0, 0, dayStart.Location())
	closeAt := time.Date(y, m, d, WorkdayEndHour, 0, 0, 0, dayStart.Location())

	var pending []*model.WorkOrder
	for i := range db.WorkOrders {
		wo := &db.WorkOrders[i]
		if wo.Status == model.StatusUnassigned && store.InWindow(*wo, dayStart, dayEnd) {
			pending = append(pending, wo)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		if a.WeatherTriggered != b.WeatherTriggered {
			return a.WeatherTriggered
		}
		return a.ID < b.ID
	})

	var loads []*crewLoad
	byID := map[string]*crewLoad{}
	for i := range db.Crews {
		c := &db.Crews[i]
		if c.Status == store.CrewInactive {
			continue
		}
		l := &crewLoad{crew: c, cursor: open}
		loads = append(loads, l)
		byID[c.ID] = l
	}
	for _, wo := range db.WorkOrders {
		l, ok := byID[wo.CrewID()]
		if !ok || !wo.Status.HasCrew() || !wo.HasSchedule() || !store.InWindow(wo, dayStart, dayEnd) {
			continue
		}
		l.count++
		if _, end := window(wo); end.After(l.cursor) {
			l.cursor = end
		}
	}

	res := OptimizeResult{Total: len(pending)}
	used := map[string]bool{}
	for _, wo := range pending {
		hours := wo.EstimatedDurationHours
		if hours <= 0 {
			hours = DefaultDurationHours
		}
		dur := time.Duration(hours * float64(time.Hour))

		sort.SliceStable(loads, func(i, j int) bool {
			if loads[i].count != loads[j].count {
				return loads[i].count < loads[j].count
			}
			return loads[i].crew.Label() < loads[j].crew.Label()
		})
		for _, l := range loads {
			if l.cursor.Add(dur).After(closeAt) {
				continue
			}
			start := l.cursor
			end := start.Add(dur)
			id := l.crew.ID
			wo.AssignedCrewID = &id
			wo.ScheduledStart = &start
			wo.ScheduledEnd = &end
			wo.EstimatedDurationHours = hours
			wo.Status = model.StatusAssigned
			l.cursor = end
			l.count++
			used[id] = true
			res.Assigned++
			res.Changed = append(res.Changed, wo.ID)
			break
		}
	}
	res.Crews = len(used)
	return res, nil
}
