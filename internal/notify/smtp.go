package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/proxlab/pvebridge/internal/event"
)

// SMTPConfig holds connection parameters for the SMTP notifier.
type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	FromAddr   string
	ToAddrs    string // comma-separated
	Encryption string // "none", "starttls", "ssl_tls"
}

// SMTPNotifier delivers events as plain-text email using go-mail.
type SMTPNotifier struct {
	config SMTPConfig
}

// NewSMTPNotifier creates an SMTPNotifier with the given configuration.
func NewSMTPNotifier(config SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{config: config}
}

// Name returns the channel identifier.
func (n *SMTPNotifier) Name() string { return "smtp" }

// Send delivers the event using the configured SMTP server.
func (n *SMTPNotifier) Send(ctx context.Context, e event.Event) error {
	m := mail.NewMsg()
	if err := m.From(n.config.FromAddr); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}

	for _, r := range strings.Split(n.config.ToAddrs, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if err := m.To(r); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", r, err)
		}
	}

	m.Subject(fmt.Sprintf("[%s] %s", e.Severity, e.Title))
	m.SetBodyString(mail.TypeTextPlain, emailBody(e))

	c, err := mail.NewClient(n.config.Host,
		mail.WithPort(n.config.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.config.Username),
		mail.WithPassword(n.config.Password),
		mail.WithTLSPolicy(tlsPolicyFromEncryption(n.config.Encryption)),
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	return c.DialAndSendWithContext(ctx, m)
}

// emailBody renders the event body followed by its attributes, one per line
// in stable order.
func emailBody(e event.Event) string {
	var b strings.Builder
	b.WriteString(e.Body)

	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) > 0 {
		b.WriteString("\n")
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, e.Attributes[k])
	}
	return b.String()
}

// tlsPolicyFromEncryption converts the encryption string to a go-mail TLSPolicy.
func tlsPolicyFromEncryption(enc string) mail.TLSPolicy {
	switch enc {
	case "ssl_tls":
		return mail.TLSMandatory
	case "starttls":
		return mail.TLSOpportunistic
	default:
		return mail.NoTLS
	}
}
