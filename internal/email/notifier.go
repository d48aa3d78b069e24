package email

import (
	"bytes"
	"context"
	"html/template"
	texttemplate "text/template"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

var subjects = map[string]string{
	types.OobVerifyEmail:          "Verify your email",
	types.OobPasswordReset:        "Reset your password",
	types.OobEmailSignin:          "Sign in to your account",
	types.OobVerifyAndChangeEmail: "Verify your new email",
	types.OobRecoverEmail:         "Your sign-in email was changed",
}

var intros = map[string]string{
	types.OobVerifyEmail:          "To verify the email address {{.Email}}, follow this link:",
	types.OobPasswordReset:        "To reset your password, follow this link:",
	types.OobEmailSignin:          "To sign in as {{.Email}}, follow this link:",
	types.OobVerifyAndChangeEmail: "To verify and change your email to {{.NewEmail}}, follow this link:",
	types.OobRecoverEmail:         "Your sign-in email was changed to {{.Email}}. To undo the change, follow this link:",
}

var htmlTmpl = template.Must(template.New("oob").Parse(
	`<p>{{.Intro}}</p><p><a href="{{.Link}}">{{.Link}}</a></p>`))

// Notifier convierte registros OOB y códigos SMS en mensajes.
type Notifier struct {
	Sender Sender
}

// NewNotifier usa LogSender si sender es nil.
func NewNotifier(sender Sender) *Notifier {
	if sender == nil {
		sender = LogSender{}
	}
	return &Notifier{Sender: sender}
}

// SendOob manda el mail del código. Los errores de entrega se loguean y no
// abortan el flujo: el código ya quedó registrado y se puede listar.
func (n *Notifier) SendOob(ctx context.Context, rec types.OobRecord) {
	to := rec.Email
	switch rec.RequestType {
	case types.OobVerifyAndChangeEmail, types.OobRecoverEmail:
		// el mail nuevo confirma; el viejo recibe el link para deshacer
		to = rec.NewEmail
	}
	intro := render(intros[rec.RequestType], rec)
	text := intro + "\n\n" + rec.OobLink + "\n"

	var html bytes.Buffer
	_ = htmlTmpl.Execute(&html, map[string]string{"Intro": intro, "Link": rec.OobLink})

	msg := Message{To: to, Subject: subjects[rec.RequestType], TextBody: text, HTMLBody: html.String()}
	if err := n.Sender.Send(ctx, msg); err != nil {
		logger.From(ctx).Warn("oob email not delivered", logger.Err(err), logger.Email(to))
	}
}

// SendSMS imprime el código; el emulador nunca manda SMS reales.
func (n *Notifier) SendSMS(ctx context.Context, phone, code string) {
	logger.From(ctx).Info("To verify the phone number "+phone+", use the code "+code+".",
		logger.Component("sms"), logger.PhoneNumber(phone))
}

func render(text string, rec types.OobRecord) string {
	t, err := texttemplate.New("intro").Parse(text)
	if err != nil {
		return text
	}
	var b bytes.Buffer
	if err := t.Execute(&b, rec); err != nil {
		return text
	}
	return b.String()
}
