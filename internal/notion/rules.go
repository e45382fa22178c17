package notion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chorebot/internal/calendar"
	"chorebot/internal/chore"
	logx "chorebot/pkg/logx"
)

// Database column names.
const (
	propTitle     = "집안일"
	propWeekdays  = "요일"
	propFrequency = "빈도"
	propAssignee  = "담당"
	propMemo      = "메모"
	propEmoji     = "이모지"
)

type page struct {
	ID         string              `json:"id"`
	URL        string              `json:"url"`
	Archived   bool                `json:"archived"`
	InTrash    bool                `json:"in_trash"`
	Properties map[string]property `json:"properties"`
}

type property struct {
	Type        string     `json:"type"`
	Title       []richText `json:"title"`
	RichText    []richText `json:"rich_text"`
	Select      *option    `json:"select"`
	MultiSelect []option   `json:"multi_select"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type option struct {
	Name string `json:"name"`
}

func (p property) text() string {
	src := p.RichText
	if len(p.Title) > 0 {
		src = p.Title
	}
	var b strings.Builder
	for _, t := range src {
		b.WriteString(t.PlainText)
	}
	return strings.TrimSpace(b.String())
}

// names returns select and multi_select values in order.
func (p property) names() []string {
	out := make([]string, 0, len(p.MultiSelect)+1)
	if p.Select != nil && p.Select.Name != "" {
		out = append(out, p.Select.Name)
	}
	for _, o := range p.MultiSelect {
		if o.Name != "" {
			out = append(out, o.Name)
		}
	}
	return out
}

// toRule maps one database row to a validated rule.
func (p page) toRule() (chore.Rule, error) {
	r := chore.Rule{
		ID:       p.ID,
		URL:      p.URL,
		Title:    p.Properties[propTitle].text(),
		Memo:     p.Properties[propMemo].text(),
		Emoji:    p.Properties[propEmoji].text(),
		Assignee: strings.Join(p.Properties[propAssignee].names(), ""),
	}

	seen := map[calendar.Weekday]bool{}
	for _, name := range p.Properties[propWeekdays].names() {
		w, err := calendar.ParseWeekday(name)
		if err != nil {
			return chore.Rule{}, fmt.Errorf("%w: %s: %v", chore.ErrInvalidRule, p.ID, err)
		}
		if !seen[w] {
			seen[w] = true
			r.Weekdays = append(r.Weekdays, w)
		}
	}

	freqs := p.Properties[propFrequency].names()
	if len(freqs) == 0 {
		return chore.Rule{}, fmt.Errorf("%w: %s: no frequency", chore.ErrInvalidRule, p.ID)
	}
	f, err := chore.ParseFrequency(freqs[0])
	if err != nil {
		return chore.Rule{}, fmt.Errorf("%w: %s: %v", chore.ErrInvalidRule, p.ID, err)
	}
	r.Frequency = f

	if err := r.Validate(); err != nil {
		return chore.Rule{}, err
	}
	return r, nil
}

// FetchRules queries the database and converts every live row. Rows that
// fail validation are logged and left out; they never fail the fetch.
func (c *Client) FetchRules(ctx context.Context) ([]chore.Rule, error) {
	pages, err := c.queryAll(ctx)
	if err != nil {
		return nil, err
	}
	rules := make([]chore.Rule, 0, len(pages))
	for _, p := range pages {
		if p.Archived || p.InTrash {
			continue
		}
		r, err := p.toRule()
		if err != nil {
			if errors.Is(err, chore.ErrInvalidRule) {
				c.log.Warn("notion: rule rejected", logx.String("page", p.ID), logx.Err(err))
				continue
			}
			return nil, err
		}
		rules = append(rules, r)
	}
	c.log.Debug("notion rules fetched", logx.Int("pages", len(pages)), logx.Int("rules", len(rules)))
	return rules, nil
}
