package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/deleterr/deleterr/internal/notification/types"
)

const (
	DefaultSubject            = "Deleterr Run Complete"
	DefaultLeavingSoonSubject = "Leaving Soon - Content scheduled for removal"

	// maxListed caps the per-kind item lists in run summaries.
	maxListed = 10
)

// Settings contains email-specific configuration
type Settings struct {
	Server   string        `json:"server"`
	Port     int           `json:"port"`
	UseTLS   bool          `json:"useTLS"`
	UseSSL   bool          `json:"useSSL"`
	Username string        `json:"username,omitempty"`
	Password string        `json:"password,omitempty"`
	From     string        `json:"from"`
	To       []string      `json:"to"`
	Subject  string        `json:"subject,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// sendFunc hands a rendered message to the SMTP server.
type sendFunc func(ctx context.Context, recipients []string, message []byte) error

// Notifier sends notifications via SMTP email
type Notifier struct {
	name     string
	settings Settings
	send     sendFunc
	logger   zerolog.Logger
}

// New creates a new email notifier
func New(name string, settings Settings, logger zerolog.Logger) *Notifier {
	if settings.Port == 0 {
		settings.Port = 587
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	settings.To = parseAddresses(settings.To)
	n := &Notifier{
		name:     name,
		settings: settings,
		logger:   logger.With().Str("notifier", "email").Str("name", name).Logger(),
	}
	n.send = n.deliver
	return n
}

func (n *Notifier) Type() types.NotifierType {
	return types.NotifierEmail
}

func (n *Notifier) Name() string {
	return n.name
}

func (n *Notifier) Test(ctx context.Context) error {
	return n.sendEmail(ctx, "Deleterr Test Notification", "This is a test notification from Deleterr.", "")
}

func (n *Notifier) OnRunCompleted(ctx context.Context, event types.RunEvent) error {
	subject := n.settings.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	if event.DryRun {
		subject = "[DRY-RUN] " + subject
	}

	movies, shows := types.SplitKinds(event.Deleted)
	view := pageView{
		Title:   types.RunTitle(event),
		Summary: types.RunSummary(event),
		Color:   "#2ECC71",
	}
	if event.DryRun {
		view.Color = "#3498DB"
	}
	view.add("Deleted Movies", movies, maxListed)
	view.add("Deleted TV Shows", shows, maxListed)
	view.add("Next Scheduled Deletions", event.Preview, types.MaxListedItems)
	if date := types.RemovalDate(event.DeletionDate); date != "" && len(event.Preview) > 0 {
		view.Note = "Removal date: " + date
	}

	body, err := view.render()
	if err != nil {
		return err
	}
	return n.sendEmail(ctx, subject, view.text(), body)
}

func (n *Notifier) OnLeavingSoon(ctx context.Context, event types.LeavingSoonEvent) error {
	subject := n.settings.Subject
	if subject == "" {
		subject = DefaultLeavingSoonSubject
	}

	movies, shows := types.SplitKinds(event.Items)
	summary := fmt.Sprintf("%d items (%s) are scheduled for removal. Watch them to keep them around.",
		len(event.Items), types.FormatSize(types.TotalBytes(event.Items)))
	view := pageView{
		Title:   "Leaving Soon",
		Summary: summary,
		Color:   "#F39C12",
	}
	if date := types.RemovalDate(event.DeletionDate); date != "" {
		view.Note = "Removal date: " + date
	}
	view.add("Movies", movies, len(movies))
	view.add("TV Shows", shows, len(shows))

	body, err := view.render()
	if err != nil {
		return err
	}
	return n.sendEmail(ctx, subject, view.text(), body)
}

func (n *Notifier) sendEmail(ctx context.Context, subject, plain, htmlBody string) error {
	if len(n.settings.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	msg, err := n.buildMessage(subject, plain, htmlBody)
	if err != nil {
		return err
	}
	if err := n.send(ctx, n.settings.To, msg); err != nil {
		return err
	}
	n.logger.Debug().Str("subject", subject).Int("recipients", len(n.settings.To)).Msg("Email delivered")
	return nil
}

// buildMessage renders a multipart/alternative message. The HTML part is
// omitted when htmlBody is empty.
func (n *Notifier) buildMessage(subject, plain, htmlBody string) ([]byte, error) {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", n.settings.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.settings.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")

	if htmlBody == "" {
		msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		msg.WriteString(plain)
		return msg.Bytes(), nil
	}

	var parts bytes.Buffer
	w := multipart.NewWriter(&parts)
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", w.Boundary())

	for _, p := range []struct{ contentType, body string }{
		{"text/plain; charset=utf-8", plain},
		{"text/html; charset=utf-8", htmlBody},
	} {
		pw, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, fmt.Errorf("failed to create message part: %w", err)
		}
		if _, err := pw.Write([]byte(p.body)); err != nil {
			return nil, fmt.Errorf("failed to write message part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}
	msg.Write(parts.Bytes())
	return msg.Bytes(), nil
}

// deliver dials the server (implicit TLS when UseSSL), upgrades with
// STARTTLS when UseTLS and submits the message.
func (n *Notifier) deliver(ctx context.Context, recipients []string, message []byte) error {
	addr := net.JoinHostPort(n.settings.Server, fmt.Sprint(n.settings.Port))
	tlsConfig := &tls.Config{
		ServerName: n.settings.Server,
		MinVersion: tls.VersionTLS12,
	}

	ctx, cancel := context.WithTimeout(ctx, n.settings.Timeout)
	defer cancel()

	var conn net.Conn
	var err error
	if n.settings.UseSSL {
		conn, err = (&tls.Dialer{Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.settings.Server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	if n.settings.UseTLS && !n.settings.UseSSL {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	var auth smtp.Auth
	if n.settings.Username != "" && n.settings.Password != "" {
		auth = smtp.PlainAuth("", n.settings.Username, n.settings.Password, n.settings.Server)
	}

	if err := authenticateAndSetEnvelope(client, auth, n.settings.From, recipients); err != nil {
		return err
	}
	return writeMessageData(client, message)
}

func authenticateAndSetEnvelope(client *smtp.Client, auth smtp.Auth, from string, recipients []string) error {
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}
	return nil
}

func writeMessageData(client *smtp.Client, message []byte) error {
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return client.Quit()
}

// parseAddresses trims entries and splits comma separated ones.
func parseAddresses(in []string) []string {
	var addrs []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				addrs = append(addrs, p)
			}
		}
	}
	return addrs
}

type pageView struct {
	Title    string
	Summary  string
	Note     string
	Color    string
	Sections []sectionView
}

type sectionView struct {
	Title string
	Lines []string
	More  int
}

func (v *pageView) add(title string, items []types.MediaInfo, limit int) {
	if len(items) == 0 {
		return
	}
	head, more := types.Head(items, limit)
	s := sectionView{Title: title, More: more}
	for _, it := range head {
		s.Lines = append(s.Lines, it.Line())
	}
	v.Sections = append(v.Sections, s)
}

func (v *pageView) text() string {
	lines := []string{v.Title, "", v.Summary, ""}
	if v.Note != "" {
		lines = append(lines, v.Note, "")
	}
	for _, s := range v.Sections {
		lines = append(lines, s.Title+":")
		for _, l := range s.Lines {
			lines = append(lines, "  - "+l)
		}
		if s.More > 0 {
			lines = append(lines, fmt.Sprintf("  ...and %d more", s.More))
		}
		lines = append(lines, "")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func (v *pageView) render() (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; background: #f5f5f5; padding: 20px;">
<div style="max-width: 700px; margin: 0 auto; background: #fff; border-radius: 8px; overflow: hidden;">
<div style="background: {{.Color}}; color: #fff; padding: 30px; text-align: center;"><h1 style="margin: 0; font-size: 24px;">{{.Title}}</h1></div>
<div style="padding: 30px;">
<p style="font-size: 18px;">{{.Summary}}</p>
{{- if .Note}}
<p><strong>{{.Note}}</strong></p>
{{- end}}
{{- range .Sections}}
<h3 style="border-bottom: 2px solid #eee; padding-bottom: 5px;">{{.Title}}</h3>
{{- range .Lines}}
<div style="padding: 8px 0; border-bottom: 1px solid #eee;">{{.}}</div>
{{- end}}
{{- if .More}}
<div style="padding: 8px 0;"><em>...and {{.More}} more</em></div>
{{- end}}
{{- end}}
</div>
<div style="background: #f9f9f9; padding: 20px; text-align: center; font-size: 12px; color: #999;">Powered by Deleterr</div>
</div>
</body>
</html>
`))
