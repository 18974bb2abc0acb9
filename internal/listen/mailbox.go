package listen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/go-co-op/gocron/v2"
)

// MailboxListener polls an IMAP mailbox for unseen messages and emits one
// event per new mail. Proxmox and PBS both support email notification
// targets, so a dedicated mailbox doubles as an event source.
type MailboxListener struct {
	host     string // host:port, e.g. imap.example.com:993
	username string
	password string
	mailbox  string
	interval time.Duration
	emit     EmitFunc
	logger   *slog.Logger

	pollFn func(context.Context)
}

// NewMailboxListener creates a MailboxListener.
func NewMailboxListener(host, username, password, mailbox string, interval time.Duration, emit EmitFunc, logger *slog.Logger) *MailboxListener {
	l := &MailboxListener{
		host:     host,
		username: username,
		password: password,
		mailbox:  mailbox,
		interval: interval,
		emit:     emit,
		logger:   logger,
	}
	l.pollFn = l.poll
	return l
}

// Name returns the source identifier.
func (l *MailboxListener) Name() string { return "email" }

// Run schedules the poll on a fixed interval until ctx is cancelled. Poll
// failures are logged and retried on the next tick; a mailbox poll has no
// standing connection to reconnect. Polls never overlap: a slow poll would
// otherwise search the same unseen messages twice before the first run
// marks them seen, emitting duplicates.
func (l *MailboxListener) Run(ctx context.Context, report ReportFunc) error {
	if l.host == "" || l.username == "" {
		return errors.New("mailbox listener requires a host and username")
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("creating poll scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(l.interval),
		gocron.NewTask(func() { l.pollFn(ctx) }),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduling mailbox poll: %w", err)
	}

	sched.Start()
	report(StateRunning)
	l.logger.Info("mailbox poll started", "host", l.host, "mailbox", l.mailbox, "interval", l.interval)

	<-ctx.Done()
	if err := sched.Shutdown(); err != nil {
		l.logger.Warn("mailbox poll scheduler shutdown", "error", err)
	}
	return nil
}

// poll fetches unseen messages, emits events for them, and marks them seen.
func (l *MailboxListener) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	client, err := imapclient.DialTLS(l.host, nil)
	if err != nil {
		l.logger.Warn("mailbox poll: dial failed", "host", l.host, "error", err)
		return
	}
	defer client.Close()

	if err := client.Login(l.username, l.password).Wait(); err != nil {
		l.logger.Warn("mailbox poll: login failed", "error", err)
		return
	}
	if _, err := client.Select(l.mailbox, nil).Wait(); err != nil {
		l.logger.Warn("mailbox poll: select failed", "mailbox", l.mailbox, "error", err)
		return
	}

	searchData, err := client.Search(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		l.logger.Warn("mailbox poll: search failed", "error", err)
		return
	}

	nums := searchData.AllSeqNums()
	if len(nums) == 0 {
		_ = client.Logout().Wait()
		return
	}

	seqSet := imap.SeqSetNum(nums...)
	messages, err := client.Fetch(seqSet, &imap.FetchOptions{Envelope: true}).Collect()
	if err != nil {
		l.logger.Warn("mailbox poll: fetch failed", "error", err)
		return
	}

	for _, msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		l.emitMail(msg.Envelope)
	}

	if err := client.Store(seqSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Flags:  []imap.Flag{imap.FlagSeen},
		Silent: true,
	}, nil).Close(); err != nil {
		l.logger.Warn("mailbox poll: marking seen failed", "error", err)
	}
	_ = client.Logout().Wait()
}

func (l *MailboxListener) emitMail(env *imap.Envelope) {
	subject := env.Subject
	if subject == "" {
		subject = "Mail Event"
	}

	from := ""
	if len(env.From) > 0 {
		from = env.From[0].Addr()
	}

	body := "New message in " + l.mailbox
	if from != "" {
		body = fmt.Sprintf("From %s: %s", from, subject)
	}

	l.emit(subject, body, map[string]string{
		"event_type": "email",
		"source":     l.host,
		"from":       from,
		"severity":   "info",
	})
}

// TestConnection verifies the IMAP server is reachable and the credentials
// are accepted.
func (l *MailboxListener) TestConnection(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	client, err := imapclient.DialTLS(l.host, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", l.host, err)
	}
	defer client.Close()

	if err := client.Login(l.username, l.password).Wait(); err != nil {
		return fmt.Errorf("imap login: %w", err)
	}
	return client.Logout().Wait()
}
