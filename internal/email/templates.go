package email

import (
	"bytes"
	"html/template"
)

const VerificationSubject = "Verify Email"

var verificationTemplate = template.Must(template.New("verification").Parse(`<div>
  <h1>Hi, {{.FullName}}</h1>
  <p>
    We have detected that you want to create an account with us using the email
    address <b>{{.Email}}</b>. Please click the following link to verify if
    it's you, or
    <em>YOU CAN IGNORE THIS EMAIL IF YOU DIDN'T INTEND TO CREATE AN ACCOUNT USING
    THIS EMAIL.</em>
  </p>
  <p>
    <a href="{{.VerificationLink}}">VERIFY EMAIL</a>
  </p>
  <p>Your verification code is <b>{{.Code}}</b>.</p>
  <b>Kind Regards</b>
  <p>Developers</p>
</div>
`))

type VerificationData struct {
	FullName         string
	Email            string
	Code             string
	VerificationLink string
}

// RenderVerification genera el cuerpo HTML del correo de verificación.
func RenderVerification(data VerificationData) (string, error) {
	var buf bytes.Buffer
	if err := verificationTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
