package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"

	"go.mongodb.org/mongo-driver/v2/bson"

	"habitroom-backend/internal/models"
)

// Variant identifies which email a recipient gets.
type Variant string

const (
	VariantMiddayNudge   Variant = "midday_nudge"
	VariantEveningUrgent Variant = "evening_urgent"
	VariantProtectStreak Variant = "protect_streak"
	VariantWeeklyWinner  Variant = "weekly_winner"
	VariantWeeklyResult  Variant = "weekly_result"
)

// Message is one fully rendered email.
type Message struct {
	UserID  bson.ObjectID
	To      string
	Variant Variant
	Subject string
	HTML    string
}

// Details carries the per-recipient facts a template can mention.
type Details struct {
	Streak       int
	WinnerName   string
	WinnerPoints int
	WeekStart    string
	WeekEnd      string
}

// UnsubscribeSigner issues the token embedded in unsubscribe links.
type UnsubscribeSigner interface {
	Unsubscribe(userID string) (string, error)
}

// Composer renders reminder email for every Variant.
type Composer struct {
	appURL  string
	baseURL string
	signer  UnsubscribeSigner
	tmpl    *template.Template
}

// NewComposer wires the links every email needs: appURL opens the app,
// baseURL is where this backend's /unsubscribe endpoint is served.
func NewComposer(appURL, baseURL string, signer UnsubscribeSigner) *Composer {
	return &Composer{
		appURL:  appURL,
		baseURL: baseURL,
		signer:  signer,
		tmpl:    template.Must(template.New("email").Parse(emailTemplates)),
	}
}

type templateData struct {
	Name           string
	Details
	AppURL         string
	UnsubscribeURL string
}

// Compose renders variant for user.
func (c *Composer) Compose(variant Variant, user models.User, d Details) (Message, error) {
	subject, err := subjectFor(variant, d)
	if err != nil {
		return Message{}, err
	}

	unsub, err := c.unsubscribeURL(user.ID)
	if err != nil {
		return Message{}, err
	}

	var buf bytes.Buffer
	data := templateData{
		Name:           user.DisplayName(),
		Details:        d,
		AppURL:         c.appURL,
		UnsubscribeURL: unsub,
	}
	if err := c.tmpl.ExecuteTemplate(&buf, string(variant), data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", variant, err)
	}

	return Message{
		UserID:  user.ID,
		To:      user.Email,
		Variant: variant,
		Subject: subject,
		HTML:    buf.String(),
	}, nil
}

func (c *Composer) unsubscribeURL(userID bson.ObjectID) (string, error) {
	token, err := c.signer.Unsubscribe(userID.Hex())
	if err != nil {
		return "", fmt.Errorf("unsubscribe token: %w", err)
	}
	return c.baseURL + "/unsubscribe?token=" + url.QueryEscape(token), nil
}

func subjectFor(variant Variant, d Details) (string, error) {
	switch variant {
	case VariantMiddayNudge:
		return "Your habits are waiting ⏰", nil
	case VariantEveningUrgent:
		if d.Streak > 0 {
			return fmt.Sprintf("Your %d-day streak ends at midnight 🌙", d.Streak), nil
		}
		return "Last call to log today 🌙", nil
	case VariantProtectStreak:
		return fmt.Sprintf("Protect your %d-day streak 🔥", d.Streak), nil
	case VariantWeeklyWinner:
		return "You won the week! 🏆", nil
	case VariantWeeklyResult:
		return fmt.Sprintf("%s won the week with %d points", d.WinnerName, d.WinnerPoints), nil
	}
	return "", fmt.Errorf("unknown email variant %q", variant)
}

const emailTemplates = `
{{define "open"}}<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">{{end}}
{{define "close"}}
	<a href="{{.AppURL}}" style="display: inline-block; background: #6366f1; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none; font-weight: 600;">
		Open Habit Rooms
	</a>
	<p style="color: #aaa; font-size: 12px; margin-top: 24px;">
		Don't want these emails? <a href="{{.UnsubscribeURL}}" style="color: #aaa;">Unsubscribe</a>.
	</p>
</div>{{end}}

{{define "midday_nudge"}}{{template "open"}}
	<h2 style="color: #333;">Hey {{.Name}}, halfway through the day ⏰</h2>
	<p>You haven't logged any habits yet today. A quick Mind, Body or Spirit win keeps you in the race.</p>
	{{if gt .Streak 0}}<p>You're on a <strong>{{.Streak}}-day streak</strong>. Keep it going!</p>{{end}}
{{template "close" .}}{{end}}

{{define "evening_urgent"}}{{template "open"}}
	<h2 style="color: #333;">{{.Name}}, the day is almost over 🌙</h2>
	{{if gt .Streak 0}}<p>Your <strong>{{.Streak}}-day streak</strong> resets at midnight unless you log something today.</p>
	{{else}}<p>Nothing logged today yet. There's still time to grab some points before midnight.</p>{{end}}
{{template "close" .}}{{end}}

{{define "protect_streak"}}{{template "open"}}
	<h2 style="color: #333;">Nice work today, {{.Name}} 🔥</h2>
	<p>You're on a <strong>{{.Streak}}-day streak</strong>. Squeeze in one more habit before bed and stay ahead of your room.</p>
{{template "close" .}}{{end}}

{{define "weekly_winner"}}{{template "open"}}
	<h2 style="color: #333;">Congratulations {{.Name}}, you won the week! 🏆</h2>
	<p>You finished {{.WeekStart}} to {{.WeekEnd}} on top of your room with <strong>{{.WinnerPoints}} points</strong>.</p>
	<p>A new week has started. Can you defend the title?</p>
{{template "close" .}}{{end}}

{{define "weekly_result"}}{{template "open"}}
	<h2 style="color: #333;">{{.WinnerName}} won last week</h2>
	<p>{{.WinnerName}} took the room from {{.WeekStart}} to {{.WeekEnd}} with <strong>{{.WinnerPoints}} points</strong>.</p>
	<p>Scores are reset, {{.Name}}. This week is yours to take.</p>
{{template "close" .}}{{end}}
`
