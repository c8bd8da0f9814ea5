package inbox

import "time"

var weekdays = [...]string{"Domingo", "Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado"}

// FormatListTime formats the time shown next to a conversation in the list:
// HH:mm for the last 24 hours, "Ontem" for the day before, the weekday within
// a week and dd/mm/yyyy beyond that. Days count whole 24 hour periods.
func FormatListTime(t, now time.Time, loc *time.Location) string {
	if t.IsZero() {
		return DefaultListTime
	}
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)

	days := int(now.Sub(t) / (24 * time.Hour))
	switch {
	case days <= 0:
		return t.Format("15:04")
	case days == 1:
		return "Ontem"
	case days < 7:
		return weekdays[t.Weekday()]
	default:
		return t.Format("02/01/2006")
	}
}
