package httpapi

import (
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
)

// handleCalendar serves the live schedule as all-day VEVENTs so it can be
// subscribed to from a phone calendar.
func (s *Server) handleCalendar(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var items []chore.Occurrence
		stamp := time.Now()
		if sched := s.deps.Engine.Schedule(); sched != nil {
			items = sched.Items
			stamp = sched.LastUpdated
		}
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `inline; filename="chores.ics"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(renderICS(name, items, stamp)))
	}
}

func renderICS(name string, items []chore.Occurrence, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//chorebot//schedule//KO")
	cal.SetXWRCalName(name)

	for _, o := range items {
		d, err := calendar.ParseDate(o.Date)
		if err != nil {
			continue
		}
		ev := cal.AddEvent(o.ID + "@chorebot")
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(d)
		ev.SetAllDayEndAt(calendar.AddDays(d, 1))
		ev.SetSummary(strings.TrimSpace(o.Emoji + " " + o.Title))
		if desc := describe(o); desc != "" {
			ev.SetDescription(desc)
		}
		if o.URL != "" {
			ev.SetURL(o.URL)
		}
		if o.Assignee != "" {
			ev.AddCategory(o.Assignee)
		}
	}
	return cal.Serialize()
}

func describe(o chore.Occurrence) string {
	var parts []string
	if o.Assignee != "" {
		parts = append(parts, "담당: "+o.Assignee)
	}
	if o.Memo != "" {
		parts = append(parts, o.Memo)
	}
	if o.IsDone {
		parts = append(parts, "완료")
	}
	return strings.Join(parts, "\n")
}
