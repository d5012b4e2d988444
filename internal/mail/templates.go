package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[Kind]string{
	KindVerification:            "Verify your email address",
	KindPasswordReset:           "Your password reset code (valid for 10 minutes)",
	KindUnitVerification:        "Your unit has been verified",
	KindAppointmentRequestUser:  "Your appointment request was sent",
	KindAppointmentRequestOwner: "New appointment request for your unit",
	KindAppointmentConfirmation: "Your appointment is confirmed",
	KindAppointmentRefusal:      "Your appointment request was refused",
	KindAppointmentCancellation: "An appointment was canceled",
}

// Renderer turns a Kind and Data into a subject line and HTML body.
type Renderer struct {
	tmpls map[Kind]*template.Template
}

// NewRenderer parses every embedded template up front so a missing or
// broken template fails at startup rather than on first send.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{tmpls: make(map[Kind]*template.Template, len(subjects))}
	for kind := range subjects {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+string(kind)+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", kind, err)
		}
		r.tmpls[kind] = t
	}
	return r, nil
}

// Render executes the template for kind.
func (r *Renderer) Render(kind Kind, to Recipient, data Data) (subject, body string, err error) {
	t, ok := r.tmpls[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown mail kind %q", kind)
	}
	if data.Name == "" {
		data.Name = to.Name
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", struct {
		Subject string
		Data
	}{subjects[kind], data}); err != nil {
		return "", "", err
	}
	return subjects[kind], buf.String(), nil
}
