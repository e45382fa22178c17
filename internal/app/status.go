package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chorebot/internal/notifier"
	rtsup "chorebot/internal/runtime/supervisor"
	"chorebot/internal/task/scheduler"
)

// recentSends is how many notifier deliveries /status lists.
const recentSends = 3

// runtimeStatus is the operational side of /status. Nil sources are skipped.
type runtimeStatus struct {
	Jobs   func() scheduler.Snapshot
	Tasks  func() rtsup.Snapshot
	Sends  func() []notifier.HistoryItem
	RunJob func(ctx context.Context, name string) error
}

func (a *App) runtimeStatus() runtimeStatus {
	return runtimeStatus{
		Jobs: a.sched.Snapshot,
		// a.sup only exists after Start; Snapshot tolerates a nil receiver.
		Tasks:  func() rtsup.Snapshot { return a.sup.Snapshot() },
		Sends:  a.notif.Snapshot,
		RunJob: a.sched.RunNow,
	}
}

func formatRuntime(rs runtimeStatus, loc *time.Location) string {
	var b strings.Builder
	if rs.Jobs != nil {
		snap := rs.Jobs()
		last := map[string]scheduler.HistoryItem{}
		for _, h := range snap.History {
			last[h.Name] = h
		}
		b.WriteString("\n\n⏱ 예약 작업")
		if !snap.Enabled {
			b.WriteString(" (꺼짐)")
		}
		if len(snap.Schedules) == 0 {
			b.WriteString("\n없음")
		}
		for _, s := range snap.Schedules {
			fmt.Fprintf(&b, "\n- %s: 다음 %s", s.Name, shortTime(s.Next, loc))
			if h, ok := last[s.Name]; ok {
				fmt.Fprintf(&b, ", 마지막 %s %s", shortTime(h.Started, loc), runOutcome(h))
			} else {
				b.WriteString(", 마지막 -")
			}
			if s.Running {
				b.WriteString(" (실행 중)")
			}
		}
	}

	if rs.Tasks != nil {
		snap := rs.Tasks()
		var lines []string
		for _, t := range snap.Tasks {
			if t.Restarts == 0 && t.Panics == 0 && t.LastErr == "" {
				continue
			}
			line := fmt.Sprintf("- %s: 재시작 %d회", t.Name, t.Restarts)
			if t.Panics > 0 {
				line += fmt.Sprintf(", panic %d회", t.Panics)
			}
			if t.LastErr != "" {
				line += ", 오류: " + t.LastErr
			}
			lines = append(lines, line)
		}
		if snap.FirstError != "" {
			lines = append(lines, "- 치명적 오류: "+snap.FirstError)
		}
		if len(lines) > 0 {
			b.WriteString("\n\n🔁 백그라운드 작업\n")
			b.WriteString(strings.Join(lines, "\n"))
		}
	}

	if rs.Sends != nil {
		sends := rs.Sends()
		if len(sends) > recentSends {
			sends = sends[len(sends)-recentSends:]
		}
		if len(sends) > 0 {
			b.WriteString("\n\n✉️ 최근 발송")
			for i := len(sends) - 1; i >= 0; i-- {
				s := sends[i]
				mark := "✅"
				if !s.Success {
					mark = "❌ " + s.Error
				}
				fmt.Fprintf(&b, "\n- %s %s", shortTime(s.At, loc), mark)
			}
		}
	}
	return b.String()
}

func runOutcome(h scheduler.HistoryItem) string {
	switch {
	case h.Skipped:
		return "건너뜀"
	case h.Error != "":
		return "실패: " + h.Error
	default:
		return "성공"
	}
}

func shortTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "-"
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("01-02 15:04")
}
