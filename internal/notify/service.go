package notify

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "vidforge/pkg/logx"
)

// Config controls the notification pipeline.
type Config struct {
	Enabled    bool
	Token      string
	ChatID     int64 // default target when a message has none
	RatePerSec int   // default: 3
	QueueSize  int   // default: 256
}

// Service is an async, best-effort Telegram notifier: bounded queue, a single
// worker, token-bucket rate limit. Delivery failures are logged and dropped;
// they never reach callers. Run outcomes must not depend on notifications.
type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	bot *tele.Bot

	limiter *rate.Limiter
	queue   chan message
	stop    chan struct{}
	done    chan struct{}
}

type message struct {
	chatID int64
	text   string
}

func New(cfg Config, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	s := &Service{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
	if !cfg.Enabled {
		return s, nil
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	s.bot = bot
	return s, nil
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.bot == nil || s.queue != nil {
		return
	}
	s.queue = make(chan message, s.cfg.QueueSize)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.worker(ctx, s.queue, s.stop, s.done)
	s.log.Info("notifier started", logx.Int("rate_per_sec", s.cfg.RatePerSec))
}

// Stop stops intake and waits for the worker until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	stop := s.stop
	done := s.done
	s.queue = nil
	s.stop = nil
	s.done = nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Notify enqueues a message, falling back to the configured default chat when
// chatID is zero. Always best-effort: a full queue or disabled notifier is a
// silent no-op (debug-logged).
func (s *Service) Notify(chatID int64, text string) {
	s.mu.Lock()
	q := s.queue
	if chatID == 0 {
		chatID = s.cfg.ChatID
	}
	s.mu.Unlock()

	if q == nil || chatID == 0 || strings.TrimSpace(text) == "" {
		return
	}
	select {
	case q <- message{chatID: chatID, text: text}:
	default:
		s.log.Debug("notification dropped (queue full)", logx.Int64("chat_id", chatID))
	}
}

func (s *Service) worker(ctx context.Context, q <-chan message, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			// Drain what is already queued, bounded per message below.
			for {
				select {
				case m := <-q:
					s.send(context.Background(), m)
				default:
					return
				}
			}
		case m := <-q:
			s.send(ctx, m)
		}
	}
}

func (s *Service) send(ctx context.Context, m message) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	// Telebot calls carry no context; the bot client's HTTP timeout bounds
	// how long a send can wedge the worker.
	_, err := s.bot.Send(tele.ChatID(m.chatID), m.text)
	if err != nil {
		s.log.Warn("notification send failed", logx.Int64("chat_id", m.chatID), logx.Err(err))
		return
	}
	s.log.Debug("notification sent", logx.Int64("chat_id", m.chatID))
}
