package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
	"chorebot/internal/schedule"
	"chorebot/internal/task/scheduler"
	logx "chorebot/pkg/logx"
)

var ErrDigestSend = errors.New("digest send failed")

// Bucket maps an assignee tag to the header of its digest block.
type Bucket struct {
	Tag    string `json:"tag"`
	Header string `json:"header"`
}

// DigestConfig names the three assignee buckets. Occurrences whose assignee
// matches neither person land in Both.
type DigestConfig struct {
	RoleA Bucket
	RoleB Bucket
	Both  Bucket
}

func DefaultDigestConfig() DigestConfig {
	return DigestConfig{
		RoleA: Bucket{Tag: "👦🏻", Header: "👦🏻 오늘 할 일"},
		RoleB: Bucket{Tag: "👧🏻", Header: "👧🏻 오늘 할 일"},
		Both:  Bucket{Tag: "👦🏻👧🏻", Header: "👦🏻👧🏻 함께 할 일"},
	}
}

func (c DigestConfig) withDefaults() DigestConfig {
	def := DefaultDigestConfig()
	fill := func(b *Bucket, d Bucket) {
		if strings.TrimSpace(b.Tag) == "" {
			b.Tag = d.Tag
		}
		if strings.TrimSpace(b.Header) == "" {
			b.Header = b.Tag + " " + strings.TrimSpace(strings.TrimPrefix(d.Header, d.Tag))
		}
	}
	fill(&c.RoleA, def.RoleA)
	fill(&c.RoleB, def.RoleB)
	fill(&c.Both, def.Both)
	return c
}

// Digest sends today's chores to the messenger once a day.
type Digest struct {
	engine *schedule.Engine
	msg    schedule.Messenger
	log    logx.Logger

	mu  sync.RWMutex
	cfg DigestConfig
}

func NewDigest(engine *schedule.Engine, msg schedule.Messenger, cfg DigestConfig, log logx.Logger) *Digest {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Digest{engine: engine, msg: msg, log: log, cfg: cfg.withDefaults()}
}

// SetConfig swaps the bucket definitions; used on config reload.
func (d *Digest) SetConfig(cfg DigestConfig) {
	d.mu.Lock()
	d.cfg = cfg.withDefaults()
	d.mu.Unlock()
}

// Compose renders items into the digest text. It returns "" when there is
// nothing to report.
func (d *Digest) Compose(items []chore.Occurrence) string {
	d.mu.RLock()
	cfg := d.cfg
	d.mu.RUnlock()

	var a, b, both []chore.Occurrence
	for _, o := range items {
		switch strings.TrimSpace(o.Assignee) {
		case cfg.RoleA.Tag:
			a = append(a, o)
		case cfg.RoleB.Tag:
			b = append(b, o)
		default:
			both = append(both, o)
		}
	}

	blocks := make([]string, 0, 3)
	for _, g := range []struct {
		header string
		items  []chore.Occurrence
	}{
		{cfg.RoleA.Header, a},
		{cfg.RoleB.Header, b},
		{cfg.Both.Header, both},
	} {
		if len(g.items) == 0 {
			continue
		}
		var sb strings.Builder
		sb.WriteString(g.header)
		for _, o := range g.items {
			sb.WriteByte('\n')
			if o.Emoji != "" {
				sb.WriteString(o.Emoji)
				sb.WriteByte(' ')
			}
			sb.WriteString(o.Title)
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}

// Run sends the digest for the engine's current day. An empty day sends nothing.
func (d *Digest) Run(ctx context.Context) error {
	today := calendar.FormatDate(calendar.Today(d.engine.Now(), d.engine.Location()))
	text := d.Compose(d.engine.ForDate(today))
	if text == "" {
		d.log.Info("digest: nothing scheduled today", logx.String("date", today))
		return nil
	}
	res := d.msg.SendMessage(ctx, text)
	if !res.Success {
		d.log.Warn("digest: send failed", logx.String("date", today), logx.String("error", res.Error))
		return errors.Join(ErrDigestSend, errors.New(res.Error))
	}
	d.log.Debug("digest sent", logx.String("date", today))
	return nil
}

func (d *Digest) Job() scheduler.Job { return d.Run }
