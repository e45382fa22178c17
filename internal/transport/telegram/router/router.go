package router

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	kit "chorebot/internal/transport"
	logx "chorebot/pkg/logx"
)

// Command is a single slash command.
type Command struct {
	Name        string
	Description string
	Handle      HandlerFunc
}

type Request struct {
	Msg     kit.Message
	Chat    kit.ChatTarget
	Command string
	Args    []string
}

// Router maps slash commands to handlers and restricts them to known chats.
type Router struct {
	mu      sync.RWMutex
	cmds    map[string]Command
	allowed map[int64]struct{}

	log     logx.Logger
	timeout time.Duration
}

func New(log logx.Logger, timeout time.Duration) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		cmds:    map[string]Command{},
		allowed: map[int64]struct{}{},
		log:     log,
		timeout: timeout,
	}
	r.cmds["help"] = Command{Name: "help", Description: "명령어 목록", Handle: r.help}
	return r
}

// Register adds or replaces commands by name.
func (r *Router) Register(cmds ...Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Name), "/"))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		r.cmds[name] = c
	}
}

// SetAllowedChats limits commands to the given chat ids. An empty list
// allows every chat.
func (r *Router) SetAllowedChats(ids []int64) {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	r.mu.Lock()
	r.allowed = m
	r.mu.Unlock()
}

// Menu lists commands for the platform command menu, sorted by name.
func (r *Router) Menu() []kit.BotCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]kit.BotCommand, 0, len(r.cmds))
	for _, c := range r.cmds {
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// Dispatch runs the command in m, if any. handled is false for plain text
// and for chats outside the allow list.
func (r *Router) Dispatch(ctx context.Context, m kit.Message) (reply string, handled bool) {
	name, args, ok := parseCommand(m.Text)
	if !ok {
		return "", false
	}

	r.mu.RLock()
	_, chatOK := r.allowed[m.ChatID]
	chatOK = chatOK || len(r.allowed) == 0
	cmd, known := r.cmds[name]
	r.mu.RUnlock()

	if !chatOK {
		r.log.Debug("command from unknown chat ignored", logx.Int64("chat_id", m.ChatID), logx.String("cmd", name))
		return "", false
	}
	if !known {
		return "❓ 알 수 없는 명령어입니다. /help 를 입력해 보세요.", true
	}

	req := &Request{
		Msg:     m,
		Chat:    kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID},
		Command: name,
		Args:    args,
	}
	h := Chain(cmd.Handle, MWPanicRecover(r.log), MWRequestLog(r.log), MWTimeout(r.timeout))
	out, err := h(ctx, req)
	if err != nil {
		return "⚠️ 처리 중 오류가 발생했습니다: " + err.Error(), true
	}
	return out, true
}

func (r *Router) help(ctx context.Context, req *Request) (string, error) {
	var b strings.Builder
	b.WriteString("📚 명령어 목록")
	for _, c := range r.Menu() {
		b.WriteString("\n/")
		b.WriteString(c.Command)
		if c.Description != "" {
			b.WriteString(" - ")
			b.WriteString(c.Description)
		}
	}
	return b.String(), nil
}

// parseCommand splits "/name@bot arg1 arg2" into its parts.
func parseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	name := fields[0]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	name = strings.ToLower(name)
	if name == "" {
		return "", nil, false
	}
	return name, fields[1:], true
}
