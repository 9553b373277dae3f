package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"remindbot/internal/task"
	logx "remindbot/pkg/logx"
)

// TaskStore is the slice of the store the command surface needs. Owner is
// always the sender's chat id; cross-owner access is impossible from here.
type TaskStore interface {
	Create(ctx context.Context, t task.Task) (task.Task, error)
	List(ctx context.Context, owner string) ([]task.Task, error)
	Update(ctx context.Context, id int64, owner string, p task.Patch) (bool, error)
	Delete(ctx context.Context, id int64, owner string) (bool, error)
}

// Flusher triggers the scheduler's manual sweep.
type Flusher interface {
	FlushPending(ctx context.Context, owner string) (int, error)
}

type Router struct {
	store TaskStore
	flush Flusher
	log   logx.Logger

	// Timeout per command handler.
	timeout time.Duration
}

func NewRouter(store TaskStore, flush Flusher, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{store: store, flush: flush, log: log, timeout: 15 * time.Second}
}

func (r *Router) Register(bot *tele.Bot) {
	bot.Handle("/task", r.handleTask)
	bot.Handle("/start", func(c tele.Context) error {
		return c.Send(helpText)
	})
}

func (r *Router) handleTask(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Chat == nil {
		return nil
	}
	owner := strconv.FormatInt(msg.Chat.ID, 10)
	args := strings.TrimSpace(msg.Payload)

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	sub, rest := splitFirst(args)
	var reply string
	var err error
	switch sub {
	case "add":
		reply, err = r.cmdAdd(ctx, owner, rest)
	case "list":
		reply, err = r.cmdList(ctx, owner)
	case "edit":
		reply, err = r.cmdEdit(ctx, owner, rest)
	case "del", "hapus":
		reply, err = r.cmdDelete(ctx, owner, rest)
	case "flush":
		reply, err = r.cmdFlush(ctx, owner)
	case "help", "":
		reply = helpText
	default:
		reply = "Unknown task command. Use /task help"
	}
	if err != nil {
		r.log.Warn("task command failed",
			logx.String("cmd", sub), logx.String("owner", owner), logx.Err(err))
		if vErr, ok := err.(*task.ValidationError); ok {
			return c.Send("⚠️ " + vErr.Error())
		}
		return c.Send("❌ Something went wrong, try again later.")
	}
	return c.Send(reply)
}

// cmdAdd: /task add <YYYY-MM-DD> <HH:MM> [tz] <title> | <description>
func (r *Router) cmdAdd(ctx context.Context, owner, args string) (string, error) {
	date, rest := splitFirst(args)
	clock, rest := splitFirst(rest)

	tz := ""
	// An IANA zone token (Area/City) may sit between the time and the title.
	if head, tail := splitFirst(rest); strings.Contains(head, "/") && !strings.Contains(head, "|") {
		if _, err := time.LoadLocation(head); err == nil {
			tz = head
			rest = tail
		}
	}

	title, desc, ok := strings.Cut(rest, "|")
	if !ok || date == "" || clock == "" {
		return "Format: /task add <YYYY-MM-DD> <HH:MM> [tz] <title> | <description>", nil
	}

	t, err := r.store.Create(ctx, task.Task{
		Date:        date,
		Time:        clock,
		Timezone:    tz,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(desc),
		Owner:       owner,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("➕ Task #%d scheduled for %s %s.", t.ID, t.Date, t.Time), nil
}

func (r *Router) cmdList(ctx context.Context, owner string) (string, error) {
	tasks, err := r.store.List(ctx, owner)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "📋 No tasks.", nil
	}
	var b strings.Builder
	b.WriteString("📋 *Tasks:*\n")
	for _, t := range tasks {
		mark := " "
		if t.Status == task.StatusDone {
			mark = "x"
		}
		fmt.Fprintf(&b, "- [%s] #%d %s — %s %s", mark, t.ID, t.Title, t.Date, t.Time)
		if t.Timezone != "" {
			fmt.Fprintf(&b, " (%s)", t.Timezone)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// cmdEdit: /task edit <id> [date=...] [time=...] [tz=...] [reopen] [resend] [title=rest of line]
func (r *Router) cmdEdit(ctx context.Context, owner, args string) (string, error) {
	idStr, rest := splitFirst(args)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return "Format: /task edit <id> [date=YYYY-MM-DD] [time=HH:MM] [tz=Zone] [reopen] [resend] [title=...]", nil
	}

	p, perr := parsePatch(rest)
	if perr != "" {
		return perr, nil
	}
	if p.IsZero() {
		return "Nothing to change. /task help shows the editable fields.", nil
	}

	ok, err := r.store.Update(ctx, id, owner, p)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("❌ Task #%d not found.", id), nil
	}
	return fmt.Sprintf("✏️ Task #%d updated.", id), nil
}

func (r *Router) cmdDelete(ctx context.Context, owner, args string) (string, error) {
	idStr, _ := splitFirst(args)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return "Format: /task del <id>", nil
	}
	ok, err := r.store.Delete(ctx, id, owner)
	if err != nil {
		return "", err
	}
	if !ok {
		return fmt.Sprintf("❌ Task #%d not found.", id), nil
	}
	return fmt.Sprintf("🗑️ Task #%d deleted.", id), nil
}

func (r *Router) cmdFlush(ctx context.Context, owner string) (string, error) {
	n, err := r.flush.FlushPending(ctx, owner)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "Nothing pending to send.", nil
	}
	return fmt.Sprintf("🚀 Sent %d pending task(s).", n), nil
}

// parsePatch turns edit tokens into a task.Patch. title= (or desc=)
// swallows the rest of the line, so it must come last.
func parsePatch(args string) (task.Patch, string) {
	var p task.Patch
	rest := strings.TrimSpace(args)
	for rest != "" {
		if v, ok := cutPrefix(rest, "title="); ok {
			v = strings.TrimSpace(v)
			p.Title = &v
			break
		}
		if v, ok := cutPrefix(rest, "desc="); ok {
			v = strings.TrimSpace(v)
			p.Description = &v
			break
		}

		var tok string
		tok, rest = splitFirst(rest)
		switch {
		case strings.HasPrefix(tok, "date="):
			v := strings.TrimPrefix(tok, "date=")
			p.Date = &v
		case strings.HasPrefix(tok, "time="):
			v := strings.TrimPrefix(tok, "time=")
			p.Time = &v
		case strings.HasPrefix(tok, "tz="):
			v := strings.TrimPrefix(tok, "tz=")
			p.Timezone = &v
		case tok == "reopen":
			st := task.StatusPending
			p.Status = &st
		case tok == "resend":
			// Reopen and clear the delivery marker so the scheduler may
			// send it again. reopen alone never resends.
			st := task.StatusPending
			p.Status = &st
			p.ResetDelivery = true
		default:
			return task.Patch{}, fmt.Sprintf("Unknown field %q. /task help shows the editable fields.", tok)
		}
	}
	return p, ""
}

func splitFirst(s string) (string, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return "", false
}

const helpText = `📝 Task commands:
/task add <YYYY-MM-DD> <HH:MM> [tz] <title> | <description>
/task list
/task edit <id> [date=...] [time=...] [tz=...] [reopen] [resend] [title=...]
/task del <id>
/task flush — send every pending task now
/task help

Times are local to the task's timezone (IANA name like Asia/Jakarta);
without one the bot's default zone applies.`
