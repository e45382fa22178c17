package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
	"chorebot/internal/jobs"
	"chorebot/internal/schedule"
	"chorebot/internal/task/scheduler"
	"chorebot/internal/transport/telegram/router"
)

const weekDays = 7

// chatCommands are the household bot commands. They only read the engine,
// except /refresh which runs a refresh pass without waiting on a running one
// and /digest which fires the digest job through the scheduler.
func chatCommands(engine *schedule.Engine, refresher *jobs.Refresher, rs runtimeStatus) []router.Command {
	return []router.Command{
		{
			Name:        "today",
			Description: "오늘 할 일",
			Handle: func(ctx context.Context, req *router.Request) (string, error) {
				today := calendar.Today(engine.Now(), engine.Location())
				return formatDay(today, engine.ForDate(calendar.FormatDate(today))), nil
			},
		},
		{
			Name:        "week",
			Description: "이번 주 할 일 (오늘부터 7일)",
			Handle: func(ctx context.Context, req *router.Request) (string, error) {
				today := calendar.Today(engine.Now(), engine.Location())
				end := calendar.AddDays(today, weekDays-1)
				items := engine.ForPeriod(calendar.FormatDate(today), calendar.FormatDate(end))
				return formatWeek(today, items), nil
			},
		},
		{
			Name:        "status",
			Description: "스케줄 상태",
			Handle: func(ctx context.Context, req *router.Request) (string, error) {
				return formatStatus(engine.Status()) + formatRuntime(rs, engine.Location()), nil
			},
		},
		{
			Name:        "refresh",
			Description: "노션에서 규칙을 다시 불러오기",
			Handle: func(ctx context.Context, req *router.Request) (string, error) {
				rep, err := refresher.TryRun(ctx)
				if errors.Is(err, jobs.ErrRefreshRunning) {
					return "⏳ 이미 새로고침 중입니다.", nil
				}
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("🔄 스케줄 새로고침 완료\n규칙 %d개, 일정 %d개 (~%s)",
					rep.Rules, rep.Generated.Current, rep.Generated.ValidUntil), nil
			},
		},
		{
			Name:        "digest",
			Description: "오늘 요약 지금 보내기",
			Handle: func(ctx context.Context, req *router.Request) (string, error) {
				if rs.RunJob == nil {
					return "요약 알림이 꺼져 있습니다.", nil
				}
				err := rs.RunJob(ctx, jobDigest)
				switch {
				case errors.Is(err, scheduler.ErrUnknownJob):
					return "요약 알림이 꺼져 있습니다.", nil
				case errors.Is(err, scheduler.ErrSkipped):
					return "⏳ 요약을 이미 보내는 중입니다.", nil
				case err != nil:
					return "", err
				}
				return "📨 오늘 요약을 보냈습니다.", nil
			},
		},
	}
}

func dayHeader(d string, wd calendar.Weekday) string {
	return fmt.Sprintf("📅 %s(%s)", d, wd.Korean())
}

func formatDay(day time.Time, items []chore.Occurrence) string {
	var b strings.Builder
	b.WriteString(dayHeader(calendar.FormatDate(day), calendar.WeekdayOf(day)))
	if len(items) == 0 {
		b.WriteString("\n할 일이 없습니다 🎉")
		return b.String()
	}
	for _, o := range items {
		b.WriteString("\n")
		b.WriteString(formatItem(o))
	}
	return b.String()
}

func formatWeek(start time.Time, items []chore.Occurrence) string {
	if len(items) == 0 {
		return "🗓 이번 주에는 할 일이 없습니다 🎉"
	}
	var b strings.Builder
	b.WriteString("🗓 이번 주 할 일 (" + calendar.FormatDate(start) + "~)")
	cur := ""
	for _, o := range items {
		if o.Date != cur {
			cur = o.Date
			b.WriteString("\n\n")
			b.WriteString(dayHeader(o.Date, o.DayOfWeek))
		}
		b.WriteString("\n")
		b.WriteString(formatItem(o))
	}
	return b.String()
}

func formatItem(o chore.Occurrence) string {
	var b strings.Builder
	if o.IsDone {
		b.WriteString("✅ ")
	} else {
		b.WriteString("• ")
	}
	if o.Emoji != "" {
		b.WriteString(o.Emoji)
		b.WriteString(" ")
	}
	b.WriteString(o.Title)
	if o.Assignee != "" {
		b.WriteString(" (")
		b.WriteString(o.Assignee)
		b.WriteString(")")
	}
	return b.String()
}

func formatStatus(st schedule.Status) string {
	if !st.HasSchedule {
		return fmt.Sprintf("📊 스케줄 없음 (규칙 %d개)", st.RuleCount)
	}
	return fmt.Sprintf("📊 일정 %d개, 규칙 %d개\n유효 기간: ~%s\n마지막 갱신: %s",
		st.ItemCount, st.RuleCount, st.ValidUntil, st.LastUpdated.Format("2006-01-02 15:04"))
}
