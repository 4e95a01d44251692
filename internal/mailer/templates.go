package mailer

import (
	"bytes"
	"fmt"
	"text/template"
)

var (
	resetRequestTmpl = template.Must(template.New("reset_request").Parse(`Hello {{.Name}},

We received a request to reset the password of your account.

Open the link below to choose a new password:

{{.Link}}

The link expires in {{.Expiry}}. If you did not request a password reset,
you can ignore this email.
`))

	passwordResetTmpl = template.Must(template.New("password_reset").Parse(`Hello {{.Name}},

The password of your account has been reset.

If you did not do this, contact an administrator immediately.
`))

	passwordChangedTmpl = template.Must(template.New("password_changed").Parse(`Hello {{.Name}},

The password of your account has been changed.

If you did not do this, contact an administrator immediately.
`))

	accountCreatedTmpl = template.Must(template.New("account_created").Parse(`Hello {{.Name}},

An account has been created for you.

Username: {{.Username}}

Sign in with the password you were given.
`))
)

func ResetRequestMessage(to, name, link, expiry string) (Message, error) {
	return render(to, "Password reset request", resetRequestTmpl, struct {
		Name, Link, Expiry string
	}{name, link, expiry})
}

func PasswordResetMessage(to, name string) (Message, error) {
	return render(to, "Your password has been reset", passwordResetTmpl, struct {
		Name string
	}{name})
}

func PasswordChangedMessage(to, name string) (Message, error) {
	return render(to, "Your password has been changed", passwordChangedTmpl, struct {
		Name string
	}{name})
}

func AccountCreatedMessage(to, name, username string) (Message, error) {
	return render(to, "Your account has been created", accountCreatedTmpl, struct {
		Name, Username string
	}{name, username})
}

func render(to, subject string, t *template.Template, data any) (Message, error) {
	var buf bytes.Buffer

	if err := t.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("mailer.render %s: %w", t.Name(), err)
	}

	return Message{To: to, Subject: subject, Body: buf.String()}, nil
}
