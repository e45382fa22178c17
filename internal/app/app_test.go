package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"testing"
	"time"
	_ "time/tzdata"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
	"chorebot/internal/config"
	"chorebot/internal/jobs"
	"chorebot/internal/notifier"
	rtsup "chorebot/internal/runtime/supervisor"
	"chorebot/internal/schedule"
	"chorebot/internal/storage"
	"chorebot/internal/task/scheduler"
	kit "chorebot/internal/transport"
	"chorebot/internal/transport/telegram/router"
	logx "chorebot/pkg/logx"
)

func TestAllowedChatsIncludesHouseholdChat(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Telegram: config.TelegramConfig{ChatID: -100, AllowedChatIDs: []int64{42, -100, 0, 42}}}
	got := allowedChats(cfg)
	if !slices.Equal(got, []int64{-100, 42}) {
		t.Fatalf("allowedChats = %v", got)
	}
}

func TestMapNotifierConfig(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Telegram: config.TelegramConfig{Enabled: true}}
	if n := mapNotifierConfig(cfg); !n.Enabled || n.DedupWindow != time.Minute {
		t.Fatalf("omitted section = %+v", n)
	}

	cfg.Notifier = &config.NotifierConfig{Enabled: true, RatePerSec: 3, SendTimeout: "4s", RetryBase: "bogus"}
	n := mapNotifierConfig(cfg)
	if !n.Enabled || n.RatePerSec != 3 || n.SendTimeout != 4*time.Second || n.RetryBase != 0 {
		t.Fatalf("explicit section = %+v", n)
	}

	cfg.Telegram.Enabled = false
	if mapNotifierConfig(cfg).Enabled {
		t.Fatal("notifier must stay off without telegram")
	}
}

func TestMapDefaults(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Storage:   config.StorageConfig{Driver: " SQLite ", Path: "./x.db"},
		Scheduler: config.SchedulerConfig{Enabled: true},
		Logging:   config.LoggingConfig{Telegram: config.LoggingTelegram{Enabled: true}},
	}
	sc := mapStorageConfig(cfg)
	if sc.Driver != "sqlite" || sc.Path != "./x.db" || sc.BusyTimeout != time.Second {
		t.Fatalf("storage = %+v", sc)
	}
	sch := mapSchedulerConfig(cfg)
	if sch.Timezone != defaultTimezone || sch.DefaultTimeout != 2*time.Minute {
		t.Fatalf("scheduler = %+v", sch)
	}
	if refreshSpec(cfg) != defaultRefreshSpec || digestSpec(cfg) != defaultDigestSpec {
		t.Fatalf("specs = %q %q", refreshSpec(cfg), digestSpec(cfg))
	}
	if mapLoggingConfig(cfg).Chat.Enabled {
		t.Fatal("chat logging must stay off without telegram")
	}
	if pollTimeout(cfg) != 10*time.Second || commandTimeout(cfg) != 30*time.Second {
		t.Fatal("telegram timeouts should default")
	}
}

func TestStopReasons(t *testing.T) {
	t.Parallel()
	if StopReasonFromSignal(os.Interrupt) != StopSIGINT || StopReasonFromSignal(syscall.SIGTERM) != StopSIGTERM {
		t.Fatal("signal mapping")
	}
	if StopReasonFromErr(nil) != StopAppStop || StopReasonFromErr(context.Canceled) != StopAppStop {
		t.Fatal("clean stop mapping")
	}
	if StopReasonFromErr(os.ErrClosed) != StopFatalError {
		t.Fatal("fatal mapping")
	}
}

type staticRules []chore.Rule

func (s staticRules) FetchRules(ctx context.Context) ([]chore.Rule, error) { return s, nil }

var everyDay = []calendar.Weekday{calendar.Sun, calendar.Mon, calendar.Tue, calendar.Wed, calendar.Thu, calendar.Fri, calendar.Sat}

func TestChatCommands(t *testing.T) {
	t.Parallel()
	now, _ := calendar.ParseDate("2024-06-03")
	now = now.Add(10 * time.Hour)
	eng := schedule.New(chore.NewRuleStore(), storage.NewMemory(), nil,
		schedule.WithClock(func() time.Time { return now }),
		schedule.WithLocation(time.UTC),
	)
	ref := jobs.NewRefresher(eng, staticRules{
		{ID: "dish", Title: "설거지", Weekdays: everyDay, Frequency: chore.Daily, Assignee: "👦🏻", Emoji: "🍽️"},
	}, logx.Nop())

	rt := router.New(logx.Nop(), time.Second)
	rt.SetAllowedChats([]int64{7})
	rt.Register(chatCommands(eng, ref, runtimeStatus{})...)
	run := func(text string) string {
		t.Helper()
		out, handled := rt.Dispatch(context.Background(), kit.Message{ChatID: 7, Text: text})
		if !handled {
			t.Fatalf("%s not handled", text)
		}
		return out
	}

	if got := run("/status"); !strings.Contains(got, "스케줄 없음") {
		t.Fatalf("/status before refresh = %q", got)
	}
	if got := run("/today"); got != "📅 2024-06-03(월)\n할 일이 없습니다 🎉" {
		t.Fatalf("/today before refresh = %q", got)
	}
	if got := run("/refresh"); !strings.Contains(got, "새로고침 완료") || !strings.Contains(got, "규칙 1개") {
		t.Fatalf("/refresh = %q", got)
	}
	if got := run("/today"); got != "📅 2024-06-03(월)\n• 🍽️ 설거지 (👦🏻)" {
		t.Fatalf("/today = %q", got)
	}

	items := eng.ForDate("2024-06-04")
	if len(items) != 1 {
		t.Fatalf("items on 06-04 = %d", len(items))
	}
	eng.UpdateDoneStatus(items[0].ID, true, nil)
	week := run("/week")
	if n := strings.Count(week, "📅"); n != 7 {
		t.Fatalf("/week has %d day headers:\n%s", n, week)
	}
	if !strings.Contains(week, "📅 2024-06-04(화)\n✅ 🍽️ 설거지") {
		t.Fatalf("/week should mark done items:\n%s", week)
	}
	if got := run("/status"); !strings.Contains(got, "규칙 1개") {
		t.Fatalf("/status = %q", got)
	}
}

func TestStatusReportsRuntime(t *testing.T) {
	t.Parallel()
	eng := schedule.New(chore.NewRuleStore(), storage.NewMemory(), nil, schedule.WithLocation(time.UTC))
	sched := scheduler.New(scheduler.Config{Enabled: true, Timezone: "UTC"}, logx.Nop())
	digests := 0
	if err := sched.AddSchedule(jobDigest, "0 9 * * *", time.Second, func(ctx context.Context) error {
		digests++
		return nil
	}); err != nil {
		t.Fatalf("AddSchedule: %v", err)
	}
	sent := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	rs := runtimeStatus{
		Jobs: sched.Snapshot,
		Tasks: func() rtsup.Snapshot {
			return rtsup.Snapshot{Tasks: []rtsup.TaskStats{
				{Name: "config.reload", Starts: 1},
				{Name: "config.watch", Starts: 3, Restarts: 2, LastErr: "watch: too many open files"},
			}}
		},
		Sends: func() []notifier.HistoryItem {
			return []notifier.HistoryItem{
				{At: sent.Add(-3 * time.Hour), Success: true},
				{At: sent.Add(-2 * time.Hour), Success: true},
				{At: sent.Add(-time.Hour), Success: true},
				{At: sent, Error: "telegram: 429"},
			}
		},
		RunJob: sched.RunNow,
	}

	rt := router.New(logx.Nop(), time.Second)
	rt.SetAllowedChats([]int64{7})
	rt.Register(chatCommands(eng, nil, rs)...)
	run := func(text string) string {
		t.Helper()
		out, handled := rt.Dispatch(context.Background(), kit.Message{ChatID: 7, Text: text})
		if !handled {
			t.Fatalf("%s not handled", text)
		}
		return out
	}

	got := run("/status")
	if !strings.Contains(got, "- digest: 다음 -, 마지막 -") {
		t.Fatalf("/status before any run:\n%s", got)
	}
	if !strings.Contains(got, "- config.watch: 재시작 2회, 오류: watch: too many open files") || strings.Contains(got, "config.reload") {
		t.Fatalf("/status should list only troubled tasks:\n%s", got)
	}
	if !strings.Contains(got, "- 06-03 09:00 ❌ telegram: 429") || strings.Contains(got, "06-03 06:00") {
		t.Fatalf("/status should list the last %d sends newest first:\n%s", recentSends, got)
	}

	if got := run("/digest"); got != "📨 오늘 요약을 보냈습니다." || digests != 1 {
		t.Fatalf("/digest = %q, runs = %d", got, digests)
	}
	if got := run("/status"); !strings.Contains(got, "성공") {
		t.Fatalf("/status should show the manual digest run:\n%s", got)
	}

	sched.Remove(jobDigest)
	if got := run("/digest"); got != "요약 알림이 꺼져 있습니다." {
		t.Fatalf("/digest without job = %q", got)
	}
}

func TestAppLifecycle(t *testing.T) {
	days := make([]map[string]string, 0, 7)
	for _, d := range []string{"일", "월", "화", "수", "목", "금", "토"} {
		days = append(days, map[string]string{"name": d})
	}
	notionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []any{map[string]any{
				"id": "p1",
				"properties": map[string]any{
					"집안일": map[string]any{"type": "title", "title": []map[string]string{{"plain_text": "설거지"}}},
					"요일":  map[string]any{"type": "multi_select", "multi_select": days},
					"빈도":  map[string]any{"type": "multi_select", "multi_select": []map[string]string{{"name": "매일"}}},
					"담당":  map[string]any{"type": "select", "select": map[string]string{"name": "👦🏻"}},
				},
			}},
			"has_more": false,
		})
	}))
	defer notionSrv.Close()

	cfg := map[string]any{
		"http":      map[string]any{"enabled": true, "addr": "127.0.0.1:0"},
		"telegram":  map[string]any{"enabled": false},
		"notion":    map[string]any{"token": "secret", "database_id": "db1", "base_url": notionSrv.URL},
		"storage":   map[string]any{"driver": "memory"},
		"scheduler": map[string]any{"enabled": true, "timezone": "Asia/Seoul"},
		"digest":    map[string]any{"enabled": false},
		"logging":   map[string]any{"level": "error"},
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	st := a.Engine().Status()
	if !st.HasSchedule || st.RuleCount != 1 || st.ItemCount == 0 {
		t.Fatalf("status after startup refresh = %+v", st)
	}
	if a.Engine().Location().String() != "Asia/Seoul" {
		t.Fatalf("engine location = %s", a.Engine().Location())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, StopAppStop); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("Done should be closed after Stop")
	}
	if err := a.Err(); err != nil {
		t.Fatalf("Err = %v", err)
	}
}
