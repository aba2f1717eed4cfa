package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yigit/eventsignup/internal/app/models"
)

// ErrNoRecipient is returned when a message has nobody to go to
var ErrNoRecipient = errors.New("no recipient address")

// SMTPConfig holds configuration for SMTP server
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromName  string
	FromEmail string
	UseTLS    bool
	BaseURL   string // Base URL used in links to events
}

// Configured reports whether messages can actually be delivered
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.FromEmail != ""
}

type sendFunc func(to string, message []byte) error

// Notifier delivers event signup messages over SMTP. Without an SMTP host it
// only logs what would have been sent.
type Notifier struct {
	config SMTPConfig
	logger zerolog.Logger
	send   sendFunc
}

// NewNotifier creates a new Notifier
func NewNotifier(config SMTPConfig, logger zerolog.Logger) *Notifier {
	n := &Notifier{
		config: config,
		logger: logger,
	}
	n.send = n.sendSMTP
	return n
}

// SendEventReminder tells a confirmed attendee the event is coming up
func (n *Notifier) SendEventReminder(ctx context.Context, event *models.Event, rsvp *models.Rsvp) error {
	primary := event.PrimarySession()
	if primary == nil {
		return fmt.Errorf("event %d has no everybody session", event.ID)
	}
	subject := fmt.Sprintf("Reminder: %s", event.Title)
	body := fmt.Sprintf(`
		<html>
		<body>
			<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
				<h2 style="color: #333;">%s</h2>
				<p>You are signed up as <strong>%s</strong>.</p>
				<p>The event starts %s.</p>
				%s
				<p><a href="%s">View the event</a></p>
			</div>
		</body>
		</html>
	`, html.EscapeString(event.Title), html.EscapeString(string(rsvp.Role)),
		formatStart(event, primary.StartsAt), sessionList(event, rsvp.SessionIDs), n.eventURL(event))

	return n.deliver(ctx, rsvp.AttendeeEmail, subject, body,
		n.logger.With().Str("kind", "event_reminder").Int64("rsvpId", rsvp.ID).Logger())
}

// SendSessionReminder tells a volunteer about a volunteers-only session they committed to
func (n *Notifier) SendSessionReminder(ctx context.Context, event *models.Event, session *models.EventSession, attendance *models.RsvpSession) error {
	subject := fmt.Sprintf("Reminder: %s at %s", session.Name, event.Title)
	body := fmt.Sprintf(`
		<html>
		<body>
			<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
				<h2 style="color: #333;">%s</h2>
				<p>Thanks for volunteering. <strong>%s</strong> starts %s.</p>
				<p><a href="%s">View the event</a></p>
			</div>
		</body>
		</html>
	`, html.EscapeString(event.Title), html.EscapeString(session.Name),
		formatStart(event, session.StartsAt), n.eventURL(event))

	return n.deliver(ctx, attendance.AttendeeEmail, subject, body,
		n.logger.With().Str("kind", "session_reminder").Int64("rsvpSessionId", attendance.ID).Logger())
}

// SendApprovalRequest asks the publishers to review a submitted event
func (n *Notifier) SendApprovalRequest(ctx context.Context, event *models.Event, recipients []string) error {
	if len(recipients) == 0 {
		n.logger.Warn().Int64("eventId", event.ID).Msg("No publishers configured - approval request not sent")
		return nil
	}
	subject := fmt.Sprintf("Event awaiting approval: %s", event.Title)
	body := fmt.Sprintf(`
		<html>
		<body>
			<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
				<h2 style="color: #333;">%s</h2>
				<p>A new event was submitted and needs approval. It starts %s.</p>
				<p><a href="%s">Review the event</a></p>
			</div>
		</body>
		</html>
	`, html.EscapeString(event.Title), formatStart(event, event.StartsAt()), n.eventURL(event))

	var errs []error
	for _, to := range recipients {
		err := n.deliver(ctx, to, subject, body,
			n.logger.With().Str("kind", "approval_request").Int64("eventId", event.ID).Logger())
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendSubmissionAck confirms to the creator that the event is in review
func (n *Notifier) SendSubmissionAck(ctx context.Context, event *models.Event, creator string) error {
	subject := fmt.Sprintf("We received your event: %s", event.Title)
	body := fmt.Sprintf(`
		<html>
		<body>
			<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
				<h2 style="color: #333;">Thanks for submitting %s</h2>
				<p>Your event will be listed once it has been approved.</p>
			</div>
		</body>
		</html>
	`, html.EscapeString(event.Title))

	return n.deliver(ctx, creator, subject, body,
		n.logger.With().Str("kind", "submission_ack").Int64("eventId", event.ID).Logger())
}

func (n *Notifier) deliver(ctx context.Context, to, subject, body string, lgr zerolog.Logger) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !n.config.Configured() {
		lgr.Warn().Str("toEmail", to).Str("subject", subject).Msg("SMTP not configured - email not sent")
		return nil
	}
	if err := n.send(to, buildMessage(n.config, to, subject, body)); err != nil {
		return err
	}
	lgr.Debug().Str("toEmail", to).Msg("Email sent")
	return nil
}

func buildMessage(config SMTPConfig, to, subject, htmlBody string) []byte {
	from := config.FromEmail
	if config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", config.FromName, config.FromEmail)
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// sendSMTP delivers one message
func (n *Notifier) sendSMTP(to string, message []byte) error {
	serverAddress := n.config.Host + ":" + strconv.Itoa(n.config.Port)
	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	if !n.config.UseTLS {
		if err := smtp.SendMail(serverAddress, auth, n.config.FromEmail, []string{to}, message); err != nil {
			n.logger.Error().Err(err).Str("server", serverAddress).Msg("Failed to send email")
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	}

	conn, err := tls.Dial("tcp", serverAddress, &tls.Config{ServerName: n.config.Host})
	if err != nil {
		n.logger.Error().Err(err).Str("server", serverAddress).Msg("Failed to connect to SMTP server")
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, n.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Quit()

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			n.logger.Error().Err(err).Msg("SMTP authentication failed")
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err = client.Mail(n.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(message); err != nil {
		return fmt.Errorf("failed to write email message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return nil
}

func (n *Notifier) eventURL(event *models.Event) string {
	return fmt.Sprintf("%s/events/%d", strings.TrimRight(n.config.BaseURL, "/"), event.ID)
}

// formatStart renders an instant as wall time in the event's zone
func formatStart(event *models.Event, t time.Time) string {
	if loc, err := event.Location(); err == nil {
		t = t.In(loc)
	}
	return t.Format("Monday, January 2 at 3:04 PM MST")
}

func sessionList(event *models.Event, sessionIDs []int64) string {
	if len(sessionIDs) == 0 {
		return ""
	}
	selected := make(map[int64]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		selected[id] = true
	}
	var sessions []*models.EventSession
	for _, s := range event.Sessions {
		if selected[s.ID] {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartsAt.Before(sessions[j].StartsAt) })

	var b strings.Builder
	b.WriteString("<p>Your sessions:</p><ul>")
	for _, s := range sessions {
		fmt.Fprintf(&b, "<li>%s, %s</li>", html.EscapeString(s.Name), formatStart(event, s.StartsAt))
	}
	b.WriteString("</ul>")
	return b.String()
}
