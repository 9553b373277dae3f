// Package telegram is the surrounding application around the reminder
// core: it supplies the outbound Notifier capability and the /task command
// surface. No temporal or consistency logic lives here.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "remindbot/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Adapter wraps the telebot client. Destinations are stringified chat ids;
// the core treats them as opaque.
type Adapter struct {
	cfg Config
	log logx.Logger

	bot *tele.Bot

	runMu   sync.Mutex
	running bool
	stopped chan struct{}
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
		Client: &http.Client{Timeout: 30 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// Bot exposes the underlying client so the router can register handlers.
func (a *Adapter) Bot() *tele.Bot { return a.bot }

// Start begins long polling. It returns immediately; polling stops when
// ctx is canceled or Stop is called.
func (a *Adapter) Start(ctx context.Context) {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return
	}
	a.running = true
	a.stopped = make(chan struct{})
	stopped := a.stopped
	a.runMu.Unlock()

	go func() {
		defer close(stopped)
		a.bot.Start()
	}()
	go func() {
		<-ctx.Done()
		a.Stop()
	}()
	a.log.Info("telegram adapter started")
}

func (a *Adapter) Stop() {
	a.runMu.Lock()
	if !a.running {
		a.runMu.Unlock()
		return
	}
	a.running = false
	stopped := a.stopped
	a.runMu.Unlock()

	a.bot.Stop()
	<-stopped
	a.log.Info("telegram adapter stopped")
}

// SendText implements notifier.Adapter. telebot has no context plumbing,
// so the call runs on a goroutine and the ctx deadline is honored by
// abandoning the wait; the HTTP client timeout bounds the stray sender.
func (a *Adapter) SendText(ctx context.Context, destination, text string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(destination), 10, 64)
	if err != nil {
		return fmt.Errorf("bad destination %q: %w", destination, err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := a.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{
			ParseMode:             tele.ModeMarkdown,
			DisableWebPagePreview: true,
		})
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
