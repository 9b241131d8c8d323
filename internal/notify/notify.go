// Package notify delivers a fire-and-forget registration-submitted email
// through a fixed worker pool behind a bounded channel — no global event
// loop, just a channel and goroutines.
package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/smtp"
	"time"

	"github.com/domodwyer/mailyak/v3"
	"github.com/sirupsen/logrus"

	"github.com/icct/registration/internal/logctx"
	"github.com/icct/registration/internal/resilience"
)

// Event is a registration-submitted notification.
type Event struct {
	ID          string
	CreatedAt   time.Time
	TeamID      string
	TeamName    string
	ChurchName  string
	PlayerCount int
}

func newEvent(teamID, teamName, churchName string, playerCount int) Event {
	return Event{
		ID:          generateID(),
		CreatedAt:   time.Now(),
		TeamID:      teamID,
		TeamName:    teamName,
		ChurchName:  churchName,
		PlayerCount: playerCount,
	}
}

func generateID() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// SMTPConfig is the minimal connection info Sink needs to send mail.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
}

// Sink is the NotificationSink implementation: a bounded channel drained by
// a fixed pool of workers, each send wrapped in retry + circuit breaker.
type Sink struct {
	queue   chan Event
	workers int
	smtp    SMTPConfig
	breaker *resilience.Breaker
	retry   resilience.RetryPolicy
	log     *logrus.Logger
}

// New constructs a Sink with capacity queue slots and workers goroutines
// draining it. Call Start to launch the workers.
func New(capacity, workers int, smtpCfg SMTPConfig, retry resilience.RetryPolicy, log *logrus.Logger) *Sink {
	if capacity <= 0 {
		capacity = 256
	}
	if workers <= 0 {
		workers = 4
	}
	return &Sink{
		queue:   make(chan Event, capacity),
		workers: workers,
		smtp:    smtpCfg,
		breaker: resilience.NewBreaker("mail", 5, 30*time.Second),
		retry:   retry,
		log:     log,
	}
}

// Start launches the fixed worker pool. Call once at process startup; ctx
// cancellation stops all workers.
func (s *Sink) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx, i)
	}
}

func (s *Sink) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-s.queue:
			if !ok {
				return
			}
			s.deliver(ctx, evt)
		}
	}
}

// Send enqueues a registration-submitted event. It never blocks the caller
// and never surfaces an error: a full queue drops the event and logs it.
// Call this after the registration transaction commits.
func (s *Sink) Send(ctx context.Context, teamID, teamName, churchName string, playerCount int) {
	evt := newEvent(teamID, teamName, churchName, playerCount)
	select {
	case s.queue <- evt:
	default:
		logctx.Warn(ctx, s.log, "notification queue full, dropping event",
			"event_id", evt.ID, "team_id", teamID)
	}
}

func (s *Sink) deliver(ctx context.Context, evt Event) {
	err := resilience.Call(ctx, s.breaker, s.retry, func() error {
		return s.sendMail(evt)
	})
	if err != nil {
		logctx.Error(ctx, s.log, "notification delivery failed after retries", err,
			"event_id", evt.ID, "team_id", evt.TeamID)
	}
}

func (s *Sink) sendMail(evt Event) error {
	if s.smtp.Host == "" || s.smtp.To == "" {
		return nil // notification disabled; not a failure
	}

	var auth smtp.Auth
	if s.smtp.User != "" {
		auth = smtp.PlainAuth("", s.smtp.User, s.smtp.Password, s.smtp.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.smtp.Host, s.smtp.Port)
	mail := mailyak.New(addr, auth)
	mail.From(s.smtp.From)
	mail.To(s.smtp.To)
	mail.Subject(fmt.Sprintf("New team registration: %s", evt.TeamName))
	mail.Plain().Set(fmt.Sprintf(
		"A new team has registered and is pending confirmation.\n\nTeam: %s\nChurch: %s\nPlayers: %d\nSubmitted: %s\n",
		evt.TeamName, evt.ChurchName, evt.PlayerCount, evt.CreatedAt.Format(time.RFC3339)))

	if err := mail.Send(); err != nil {
		return fmt.Errorf("notify: send mail: %w", err)
	}
	return nil
}
