// Package mail renders and delivers the account emails (signup confirmation
// and password recovery), either directly through SES or via a redis queue
// drained by cmd/mailer.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
)

const (
	KIND_CONFIRM  = "confirm"
	KIND_RECOVERY = "recovery"
)

var subjects = map[string]string{
	KIND_CONFIRM:  "Bestätige deine E-Mail-Adresse | PlantCare",
	KIND_RECOVERY: "Passwort zurücksetzen | PlantCare",
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type Message struct {
	Kind string `json:"kind"`
	To   string `json:"to"`
	Link string `json:"link"`
}

// Render returns subject and html body.
func Render(msg *Message) (string, string, error) {

	subject, ok := subjects[msg.Kind]
	if !ok {
		return "", "", fmt.Errorf("unknown mail kind %q", msg.Kind)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, msg.Kind+".html", msg); err != nil {
		return "", "", err
	}

	return subject, buf.String(), nil

}

type sender interface {
	Send(ctx context.Context, msg *Message) error
}

func sendConfirmation(s sender, ctx context.Context, to string, link string) error {
	return s.Send(ctx, &Message{Kind: KIND_CONFIRM, To: to, Link: link})
}

func sendPasswordReset(s sender, ctx context.Context, to string, link string) error {
	return s.Send(ctx, &Message{Kind: KIND_RECOVERY, To: to, Link: link})
}
