package schedule

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
	"chorebot/internal/notifier"
	"chorebot/internal/storage"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (m *fakeMessenger) SendMessage(ctx context.Context, text string) notifier.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	if m.fail {
		return notifier.Result{Success: false, Error: "chat unreachable"}
	}
	return notifier.Result{Success: true}
}

type brokenHistory struct{ *storage.Memory }

func (brokenHistory) FindLatestByTitle(ctx context.Context, title string) (chore.HistoryRecord, bool, error) {
	return chore.HistoryRecord{}, false, errors.New("db down")
}

func at(date string, hour int) time.Time {
	d, err := calendar.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return d.Add(time.Duration(hour) * time.Hour)
}

func rule(id, title string, f chore.Frequency, days ...calendar.Weekday) chore.Rule {
	return chore.Rule{ID: id, Title: title, Weekdays: days, Frequency: f, Assignee: "👦🏻", Emoji: "🧽"}
}

func newEngine(t *testing.T, clock *fakeClock, hist History, msg Messenger, rules ...chore.Rule) *Engine {
	t.Helper()
	rs := chore.NewRuleStore()
	rs.SetRules(rules)
	return New(rs, hist, msg,
		WithClock(clock.Now),
		WithLocation(time.UTC),
		WithIDGenerator(func() string { return "fixed" }),
	)
}

func dates(items []chore.Occurrence) []string {
	out := make([]string, 0, len(items))
	for _, o := range items {
		out = append(out, o.Date)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExpandRuleMinimumSpacing(t *testing.T) {
	t.Parallel()

	from := at("2024-01-01", 0)
	until := at("2024-03-01", 0)
	tests := []struct {
		name string
		rule chore.Rule
		want []string
	}{
		{
			name: "every other week mondays",
			rule: rule("r1", "욕실 청소", chore.EveryOtherWeek, calendar.Mon),
			want: []string{"2024-01-01", "2024-01-15", "2024-01-29", "2024-02-12", "2024-02-26"},
		},
		{
			name: "weekly mon and thu keeps one per seven days",
			rule: rule("r2", "빨래", chore.Weekly, calendar.Mon, calendar.Thu),
			want: []string{"2024-01-01", "2024-01-08", "2024-01-15", "2024-01-22", "2024-01-29",
				"2024-02-05", "2024-02-12", "2024-02-19", "2024-02-26"},
		},
		{
			name: "monthly first allowed day of each month",
			rule: rule("r3", "냉장고 정리", chore.Monthly, calendar.Sat),
			want: []string{"2024-01-06", "2024-02-03"},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			occ, err := expandRule(tc.rule, from, until)
			if err != nil {
				t.Fatalf("expandRule: %v", err)
			}
			if got := dates(occ); !equalStrings(got, tc.want) {
				t.Fatalf("dates = %v, want %v", got, tc.want)
			}
			for _, o := range occ {
				if o.ID != tc.rule.ID+"_"+o.Date {
					t.Fatalf("id = %s for date %s", o.ID, o.Date)
				}
			}
		})
	}
}

func TestEveryOtherDaySpacing(t *testing.T) {
	t.Parallel()
	r := rule("r1", "물주기", chore.EveryOtherDay, calendar.Mon, calendar.Tue, calendar.Wed)
	occ, err := expandRule(r, at("2024-01-01", 0), at("2024-01-14", 0))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2024-01-01", "2024-01-03", "2024-01-08", "2024-01-10"}
	if got := dates(occ); !equalStrings(got, want) {
		t.Fatalf("dates = %v, want %v", got, want)
	}
}

func TestGenerateAnchorFallback(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: at("2024-06-05", 8)} // Wednesday

	e := newEngine(t, clock, storage.NewMemory(), nil,
		rule("r1", "설거지", chore.Weekly, calendar.Mon),
	)
	res, err := e.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ValidUntil != "2024-08-31" {
		t.Fatalf("validUntil = %s", res.ValidUntil)
	}
	s := e.Schedule()
	if s == nil || len(s.Items) == 0 || s.Items[0].Date != "2024-06-10" {
		t.Fatalf("first item should be the next monday: %+v", s)
	}

	// Out of range: nothing allowed inside a one-day window from Wednesday.
	narrow := New(e.Rules(), storage.NewMemory(), nil,
		WithClock(clock.Now), WithLocation(time.UTC), WithAnchorScanDays(1))
	res, err = narrow.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate narrow: %v", err)
	}
	if res.Current != 0 || len(res.Skipped) != 1 || res.Skipped[0] != "r1" {
		t.Fatalf("rule should be skipped: %+v", res)
	}
	if st := narrow.Status(); !st.HasSchedule || st.ItemCount != 0 {
		t.Fatalf("status = %+v", st)
	}
}

func TestGenerateAnchorsOnHistory(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: at("2024-06-12", 8)}
	hist := storage.NewMemory()
	_, _ = hist.UpsertIfAbsent(context.Background(), chore.HistoryRecord{Occurrence: chore.Occurrence{
		ID: "r1_2024-06-03", Title: "욕실 청소", Date: "2024-06-03", OriginalRuleID: "r1",
	}})

	e := newEngine(t, clock, hist, nil, rule("r1", "욕실 청소", chore.EveryOtherWeek, calendar.Mon))
	res, err := e.Generate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// 06-03 is past, 06-17 is the next two-week slot.
	if res.Past != 1 {
		t.Fatalf("past = %d, want 1", res.Past)
	}
	if p := e.PendingPast(); len(p) != 1 || p[0].Date != "2024-06-03" {
		t.Fatalf("pending past = %v", dates(p))
	}
	if got := dates(e.Schedule().Items); got[0] != "2024-06-17" || got[1] != "2024-07-01" {
		t.Fatalf("items = %v", got)
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	t.Parallel()
	pairs := func(items []chore.Occurrence) []string {
		out := make([]string, 0, len(items))
		for _, o := range items {
			out = append(out, o.Date+"|"+o.ID)
		}
		return out
	}
	rules := []chore.Rule{
		rule("r1", "욕실 청소", chore.EveryOtherWeek, calendar.Mon),
		rule("r2", "빨래", chore.Weekly, calendar.Mon, calendar.Thu),
		rule("r3", "설거지", chore.Daily, calendar.Mon, calendar.Wed, calendar.Fri),
	}

	tests := []struct {
		name string
		seed []chore.HistoryRecord
	}{
		{name: "no history"},
		{name: "history anchor", seed: []chore.HistoryRecord{
			{Occurrence: chore.Occurrence{ID: "r1_2024-06-03", Title: "욕실 청소", Date: "2024-06-03", OriginalRuleID: "r1"}},
			{Occurrence: chore.Occurrence{ID: "r2_2024-06-06", Title: "빨래", Date: "2024-06-06", OriginalRuleID: "r2"}},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := &fakeClock{t: at("2024-06-12", 8)}
			hist := storage.NewMemory()
			for _, r := range tc.seed {
				if _, err := hist.UpsertIfAbsent(context.Background(), r); err != nil {
					t.Fatal(err)
				}
			}
			e := newEngine(t, clock, hist, nil, rules...)

			if _, err := e.Generate(context.Background()); err != nil {
				t.Fatalf("first Generate: %v", err)
			}
			first, firstPast := pairs(e.Schedule().Items), pairs(e.PendingPast())

			clock.Set(at("2024-06-12", 20))
			if _, err := e.Generate(context.Background()); err != nil {
				t.Fatalf("second Generate: %v", err)
			}
			second, secondPast := pairs(e.Schedule().Items), pairs(e.PendingPast())

			if len(first) == 0 || !equalStrings(first, second) {
				t.Fatalf("current items differ:\n first  %v\n second %v", first, second)
			}
			if !equalStrings(firstPast, secondPast) {
				t.Fatalf("past items differ:\n first  %v\n second %v", firstPast, secondPast)
			}
			if len(tc.seed) > 0 && (len(firstPast) == 0 || firstPast[0] != "2024-06-03|r1_2024-06-03") {
				t.Fatalf("history anchor should surface as past: %v", firstPast)
			}
		})
	}
}

func TestGenerateTodayIsCurrent(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: at("2024-06-03", 23)} // Monday, late
	e := newEngine(t, clock, storage.NewMemory(), nil, rule("r1", "설거지", chore.Daily, calendar.Mon))
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := e.ForDate("2024-06-03"); len(got) != 1 {
		t.Fatalf("today's item missing: %v", got)
	}
	if len(e.PendingPast()) != 0 {
		t.Fatal("today must not be in the past partition")
	}
}

func TestGenerateHistoryErrorKeepsSchedule(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: at("2024-06-03", 9)}
	e := newEngine(t, clock, storage.NewMemory(), nil, rule("r1", "설거지", chore.Weekly, calendar.Mon))
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := e.Schedule()

	e.history = brokenHistory{storage.NewMemory()}
	if _, err := e.Generate(context.Background()); err == nil {
		t.Fatal("expected history error")
	}
	after := e.Schedule()
	if !after.LastUpdated.Equal(before.LastUpdated) || len(after.Items) != len(before.Items) {
		t.Fatal("failed Generate replaced the schedule")
	}
}

func TestDelayCollapsesIntoExistingOccurrence(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: at("2024-06-03", 9)}
	msg := &fakeMessenger{}
	e := newEngine(t, clock, storage.NewMemory(), msg, rule("r1", "설거지", chore.Weekly, calendar.Mon))
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}

	res, ok, err := e.Delay(context.Background(), "r1_2024-06-03")
	if err != nil || !ok {
		t.Fatalf("Delay: ok=%v err=%v", ok, err)
	}
	if !res.Collapsed || res.To != "2024-06-10" {
		t.Fatalf("result = %+v", res)
	}
	if got := e.ForDate("2024-06-03"); len(got) != 0 {
		t.Fatalf("delayed item still present: %v", got)
	}
	if got := e.ForDate("2024-06-10"); len(got) != 1 || got[0].ID != "r1_2024-06-10" {
		t.Fatalf("06-10 = %+v", got)
	}
	if len(msg.sent) != 1 {
		t.Fatalf("notices = %d, want 1", len(msg.sent))
	}
}

func TestDelayShiftKeepsIDAndWeekday(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: at("2024-06-03", 9)}
	msg := &fakeMessenger{fail: true}
	e := newEngine(t, clock, storage.NewMemory(), msg,
		rule("r1", "빨래", chore.Weekly, calendar.Mon, calendar.Thu))
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}

	res, ok, err := e.Delay(context.Background(), "r1_2024-06-03")
	if err != nil || !ok {
		t.Fatalf("Delay: ok=%v err=%v", ok, err)
	}
	if res.Collapsed || res.To != "2024-06-06" {
		t.Fatalf("result = %+v", res)
	}
	got := e.ForDate("2024-06-06")
	if len(got) != 1 {
		t.Fatalf("06-06 = %+v", got)
	}
	if got[0].ID != "r1_2024-06-03" || got[0].DayOfWeek != calendar.Mon {
		t.Fatalf("id/dayOfWeek must not be recomputed: %+v", got[0])
	}
	if len(msg.sent) != 1 || !strings.Contains(msg.sent[0], "2024-06-03(월) → 2024-06-06(목)") {
		t.Fatalf("notice = %q", msg.sent)
	}
}

func TestDelayMissingAndNoEligibleDay(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: at("2024-06-03", 9)}
	rs := chore.NewRuleStore()
	rs.SetRules([]chore.Rule{rule("r1", "설거지", chore.Weekly, calendar.Mon)})
	e := New(rs, storage.NewMemory(), nil, WithClock(clock.Now), WithLocation(time.UTC), WithDelayScanDays(1))
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := e.Delay(context.Background(), "nope"); ok || err != nil {
		t.Fatalf("missing id: ok=%v err=%v", ok, err)
	}
	_, ok, err := e.Delay(context.Background(), "r1_2024-06-03")
	if ok || !errors.Is(err, ErrNoEligibleDay) {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got := e.ForDate("2024-06-03"); len(got) != 1 {
		t.Fatal("failed delay must not change the schedule")
	}
}

func TestMonthlySplitsSources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := &fakeClock{t: at("2024-06-12", 9)}
	hist := storage.NewMemory()
	for _, d := range []string{"2024-05-27", "2024-06-05", "2024-06-12"} {
		_, _ = hist.UpsertIfAbsent(ctx, chore.HistoryRecord{Occurrence: chore.Occurrence{
			ID: "r2_" + d, Title: "빨래", Date: d, OriginalRuleID: "r2",
		}})
	}
	e := newEngine(t, clock, hist, nil, rule("r1", "설거지", chore.Weekly, calendar.Mon))
	if _, err := e.Generate(ctx); err != nil {
		t.Fatal(err)
	}

	view, err := e.Monthly(ctx, 2024, 6)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if view.Start != "2024-06-01" || view.End != "2024-06-30" {
		t.Fatalf("period = %s..%s", view.Start, view.End)
	}
	want := []struct {
		date string
		src  chore.Source
	}{
		{"2024-06-05", chore.SourceDatabase},
		{"2024-06-17", chore.SourceScheduler},
		{"2024-06-24", chore.SourceScheduler},
	}
	if len(view.Items) != len(want) {
		t.Fatalf("items = %+v", view.Items)
	}
	for i, w := range want {
		if view.Items[i].Date != w.date || view.Items[i].Source != w.src {
			t.Fatalf("item[%d] = %s/%s, want %s/%s", i, view.Items[i].Date, view.Items[i].Source, w.date, w.src)
		}
	}

	past, err := e.Monthly(ctx, 2024, 5)
	if err != nil || len(past.Items) != 1 || past.Items[0].Source != chore.SourceDatabase {
		t.Fatalf("may = %+v err=%v", past.Items, err)
	}
	future, err := e.Monthly(ctx, 2024, 8)
	if err != nil || len(future.Items) == 0 {
		t.Fatalf("august = %+v err=%v", future.Items, err)
	}
	for _, it := range future.Items {
		if it.Source != chore.SourceScheduler {
			t.Fatalf("august item from %s", it.Source)
		}
	}

	for _, bad := range [][2]int{{2024, 0}, {2024, 13}, {0, 6}} {
		if _, err := e.Monthly(ctx, bad[0], bad[1]); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Monthly(%d,%d) err=%v", bad[0], bad[1], err)
		}
	}
}

func TestFlushThenPrune(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := &fakeClock{t: at("2024-06-03", 9)}
	hist := storage.NewMemory()
	e := newEngine(t, clock, hist, nil,
		rule("r1", "설거지", chore.Daily, calendar.Sun, calendar.Mon, calendar.Tue, calendar.Wed, calendar.Thu, calendar.Fri, calendar.Sat))
	if _, err := e.Generate(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.UpdateDoneStatus("r1_2024-06-03", true, nil); !ok {
		t.Fatal("UpdateDoneStatus: not found")
	}

	clock.Set(at("2024-06-05", 10))
	res, err := e.FlushPastToHistory(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	// 06-03, 06-04 and today's 06-05 have all started.
	if res.Candidates != 3 || res.Inserted != 3 || res.Existing != 0 {
		t.Fatalf("flush = %+v", res)
	}
	res, err = e.FlushPastToHistory(ctx)
	if err != nil || res.Inserted != 0 || res.Existing != 3 {
		t.Fatalf("second flush = %+v err=%v", res, err)
	}

	if n := e.PrunePastFromMemory(); n != 2 {
		t.Fatalf("pruned = %d, want 2", n)
	}
	if got := e.ForPeriod("2024-01-01", "2024-06-04"); len(got) != 0 {
		t.Fatalf("past items left in memory: %v", dates(got))
	}
	if hist.Len() != 3 {
		t.Fatalf("history rows = %d, want 3", hist.Len())
	}
	recs, err := hist.FindByDateRange(ctx, "2024-06-03", "2024-06-03")
	if err != nil || len(recs) != 1 || recs[0].CompletedDate == nil || !recs[0].IsDone {
		t.Fatalf("completed record = %+v err=%v", recs, err)
	}
}

func TestAddOneTimeAndDelete(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: at("2024-06-03", 9)}
	e := newEngine(t, clock, storage.NewMemory(), nil, rule("r1", "설거지", chore.Weekly, calendar.Mon))

	if _, err := e.AddOneTime(OneTime{Title: "전구 교체", Date: "2024-06-05"}); !errors.Is(err, ErrNoSchedule) {
		t.Fatalf("before generate: err=%v", err)
	}
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddOneTime(OneTime{Title: "전구 교체", Date: "06/05"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad date: err=%v", err)
	}
	if _, err := e.AddOneTime(OneTime{Title: "  ", Date: "2024-06-05"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank title: err=%v", err)
	}

	o, err := e.AddOneTime(OneTime{Title: "전구 교체", Assignee: "👧🏻", Date: "2024-06-05"})
	if err != nil {
		t.Fatalf("AddOneTime: %v", err)
	}
	wantID := "one-time-" + strconv.FormatInt(clock.Now().UnixMilli(), 10) + "-fixed_2024-06-05"
	if o.ID != wantID || o.Emoji != "📝" || o.DayOfWeek != calendar.Wed {
		t.Fatalf("occurrence = %+v", o)
	}
	items := e.Schedule().Items
	if items[1].ID != o.ID {
		t.Fatalf("one-time item not sorted into place: %v", dates(items))
	}

	if !e.Delete(o.ID) {
		t.Fatal("Delete returned false")
	}
	if e.Delete(o.ID) {
		t.Fatal("second Delete returned true")
	}
}

func TestUpdateDoneStatus(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{t: at("2024-06-03", 9)}
	e := newEngine(t, clock, storage.NewMemory(), nil, rule("r1", "설거지", chore.Weekly, calendar.Mon))
	if _, err := e.Generate(context.Background()); err != nil {
		t.Fatal(err)
	}
	who := "👧🏻"
	o, ok := e.UpdateDoneStatus("r1_2024-06-10", true, &who)
	if !ok || !o.IsDone || o.Assignee != who || o.CompletedAt == nil {
		t.Fatalf("done = %+v ok=%v", o, ok)
	}
	o, ok = e.UpdateDoneStatus("r1_2024-06-10", false, nil)
	if !ok || o.IsDone || o.CompletedAt != nil || o.Assignee != who {
		t.Fatalf("undone = %+v", o)
	}
	if _, ok := e.UpdateDoneStatus("missing", true, nil); ok {
		t.Fatal("unknown id reported ok")
	}
}
