// Package email implements the "email" JobTypeExecutor: a thin wrapper over
// net/smtp.
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/google/uuid"

	"github.com/RezaEskandarii/jobcore/executor"
)

// Payload is the {to, subject, text, html, from} bag an email job carries.
type Payload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
	From    string `json:"from,omitempty"`
}

type result struct {
	MessageID string `json:"messageId"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
}

// Executor sends email jobs through a configured SMTP relay.
type Executor struct {
	Addr        string
	Auth        smtp.Auth
	DefaultFrom string
}

func New(addr string, auth smtp.Auth, defaultFrom string) *Executor {
	return &Executor{Addr: addr, Auth: auth, DefaultFrom: defaultFrom}
}

func (e *Executor) Execute(ctx context.Context, raw json.RawMessage, deadline time.Time) (executor.Result, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("invalid email payload: %v", err)}
	}
	if p.To == "" || p.Subject == "" {
		return executor.Result{}, &executor.Error{Message: "email payload requires to and subject"}
	}

	from := p.From
	if from == "" {
		from = e.DefaultFrom
	}

	body := p.Text
	contentType := "text/plain; charset=utf-8"
	if p.HTML != "" {
		body = p.HTML
		contentType = "text/html; charset=utf-8"
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: %s\r\n\r\n%s",
		from, p.To, p.Subject, contentType, body)

	if err := smtp.SendMail(e.Addr, e.Auth, from, []string{p.To}, []byte(msg)); err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("send mail: %v", err)}
	}

	r := result{MessageID: uuid.NewString(), To: p.To, Subject: p.Subject}
	data, err := json.Marshal(r)
	if err != nil {
		return executor.Result{}, &executor.Error{Message: fmt.Sprintf("marshal result: %v", err)}
	}
	return executor.Result{Data: data}, nil
}
