package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/testkit"
)

func submit(t *testing.T, client *http.Client, baseURL, identifier string, payload any, headers map[string]string) (int, []byte) {
	t.Helper()
	return testkit.DoJSON(t, client, http.MethodPost, baseURL+"/api/submit/"+identifier, payload, headers)
}

func decodeSubmitData(t *testing.T, body []byte) map[string]any {
	t.Helper()

	env := testkit.DecodeEnvelope(t, body)
	if env.Code != 0 {
		t.Fatalf("submit code=%d err=%s", env.Code, env.Err)
	}
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("submit data: %v", err)
	}
	return data
}

func TestIntegration_SubmitForwardQueryCleanup(t *testing.T) {
	t.Parallel()

	srv := testkit.NewServer(t)
	client := srv.HTTP.Client()
	baseURL := srv.HTTP.URL

	boot := testkit.Bootstrap(t, client, baseURL)
	testkit.UpdateProject(t, client, baseURL, boot.Token, boot.ProjectID, map[string]any{
		"allowed_origins": []string{"https://example.com"},
		"honeypot_field":  "website",
		"fields": []map[string]any{
			{"id": "name", "label": "Name", "type": "text", "required": true},
			{"id": "email", "label": "Email", "type": "email", "required": true},
			{"id": "note", "label": "Note", "type": "textarea"},
		},
		"smtp_host":     "smtp.example.com",
		"smtp_port":     587,
		"smtp_username": "mailer@example.com",
		"smtp_password": "secret",
		"from_email":    "forms@example.com",
		"to_email":      "inbox@example.com",
		"cc_email":      "cc@example.com",
	})

	headers := map[string]string{
		"Origin":          "https://example.com",
		"X-Forwarded-For": "203.0.113.10",
	}
	status, body := submit(t, client, baseURL, boot.APIKey, map[string]any{
		"name":    "Ada",
		"email":   "ada@example.com",
		"note":    "<hi>",
		"ignored": "dropped by the schema",
	}, headers)
	if status != http.StatusOK {
		t.Fatalf("submit status=%d body=%s", status, string(body))
	}
	data := decodeSubmitData(t, body)
	if data["accepted"] != true {
		t.Fatalf("expected accepted, got %#v", data)
	}
	if id, _ := data["id"].(string); id == "" {
		t.Fatalf("expected submission id, got %#v", data)
	}
	if reason, ok := data["reason"]; ok {
		t.Fatalf("unexpected reason %v", reason)
	}

	sent := srv.Mail.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sent))
	}
	mail := sent[0]
	if mail.Account.Host != "smtp.example.com" || mail.Account.Port != 587 {
		t.Fatalf("unexpected account: %#v", mail.Account)
	}
	if len(mail.Message.To) != 1 || mail.Message.To[0] != "inbox@example.com" {
		t.Fatalf("unexpected recipients: %#v", mail.Message.To)
	}
	if len(mail.Message.CC) != 1 || mail.Message.CC[0] != "cc@example.com" {
		t.Fatalf("unexpected cc: %#v", mail.Message.CC)
	}
	if mail.Message.Subject != "New submission: Default" {
		t.Fatalf("unexpected subject: %q", mail.Message.Subject)
	}
	if !strings.Contains(mail.Message.Text, "Name: Ada") || !strings.Contains(mail.Message.Text, "Note: &lt;hi&gt;") {
		t.Fatalf("unexpected body:\n%s", mail.Message.Text)
	}
	if strings.Contains(mail.Message.Text, "ignored") {
		t.Fatalf("schema whitelist leaked a key:\n%s", mail.Message.Text)
	}

	subs := testkit.ListSubmissions(t, client, baseURL, boot.Token, boot.ProjectID, testkit.ListSubmissionsParams{})
	if len(subs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(subs))
	}
	if subs[0]["spam_detected"] != false {
		t.Fatalf("unexpected submission: %#v", subs[0])
	}

	logs := testkit.ListMailLogs(t, client, baseURL, boot.Token, boot.ProjectID, "delivered")
	if len(logs) != 1 {
		t.Fatalf("expected 1 delivered log, got %d", len(logs))
	}
	if logs[0]["recipient"] != "inbox@example.com" {
		t.Fatalf("unexpected log: %#v", logs[0])
	}

	before := url.QueryEscape(time.Now().UTC().Add(time.Minute).Format(time.RFC3339Nano))
	authed := map[string]string{"Authorization": "Bearer " + boot.Token}
	for _, path := range []string{"submissions", "logs"} {
		cleanupURL := fmt.Sprintf("%s/api/%d/%s/cleanup?before=%s", baseURL, boot.ProjectID, path, before)
		status, body := testkit.DoJSON(t, client, http.MethodDelete, cleanupURL, nil, authed)
		if status != http.StatusOK {
			t.Fatalf("cleanup %s status=%d body=%s", path, status, string(body))
		}
		env := testkit.DecodeEnvelope(t, body)
		var cleanup struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.Unmarshal(env.Data, &cleanup); err != nil {
			t.Fatalf("cleanup %s data: %v", path, err)
		}
		if cleanup.Deleted < 1 {
			t.Fatalf("cleanup %s expected deleted>=1, got %d", path, cleanup.Deleted)
		}
	}
	if left := testkit.ListSubmissions(t, client, baseURL, boot.Token, boot.ProjectID, testkit.ListSubmissionsParams{}); len(left) != 0 {
		t.Fatalf("expected submissions cleared, got %d", len(left))
	}
}

func TestIntegration_SpamPipeline(t *testing.T) {
	t.Parallel()

	srv := testkit.NewServer(t)
	client := srv.HTTP.Client()
	baseURL := srv.HTTP.URL

	boot := testkit.Bootstrap(t, client, baseURL)
	testkit.UpdateProject(t, client, baseURL, boot.Token, boot.ProjectID, map[string]any{
		"allowed_origins": []string{"https://example.com"},
		"honeypot_field":  "website",
		"smtp_host":       "smtp.example.com",
		"to_email":        "inbox@example.com",
		"from_email":      "forms@example.com",
	})

	// Honeypot: the response pretends success so bots learn nothing.
	status, body := submit(t, client, baseURL, boot.APIKey, map[string]any{
		"message": "buy now",
		"website": "http://spam.example",
	}, map[string]string{
		"Origin":          "https://example.com",
		"X-Forwarded-For": "203.0.113.20",
	})
	if status != http.StatusOK {
		t.Fatalf("honeypot status=%d body=%s", status, string(body))
	}
	data := decodeSubmitData(t, body)
	if data["accepted"] != true {
		t.Fatalf("honeypot response must pretend success: %#v", data)
	}
	if _, ok := data["id"]; ok {
		t.Fatalf("honeypot response must not leak the submission id: %#v", data)
	}
	if len(srv.Mail.Sent()) != 0 {
		t.Fatalf("honeypot must not send mail")
	}

	// Disallowed origin is the one rejection a browser needs to see.
	status, body = submit(t, client, baseURL, boot.APIKey, map[string]any{
		"message": "hello",
	}, map[string]string{
		"Origin":          "https://evil.com",
		"X-Forwarded-For": "203.0.113.21",
	})
	if status != http.StatusForbidden {
		t.Fatalf("origin status=%d body=%s", status, string(body))
	}
	env := testkit.DecodeEnvelope(t, body)
	if env.Err != "origin_not_allowed" {
		t.Fatalf("origin err=%q", env.Err)
	}

	// Both attempts are quarantined, flagged, and logged as spam.
	subs := testkit.ListSubmissions(t, client, baseURL, boot.Token, boot.ProjectID, testkit.ListSubmissionsParams{})
	if len(subs) != 2 {
		t.Fatalf("expected 2 quarantined submissions, got %d", len(subs))
	}
	for _, s := range subs {
		if s["spam_detected"] != true {
			t.Fatalf("expected spam_detected: %#v", s)
		}
	}
	if logs := testkit.ListMailLogs(t, client, baseURL, boot.Token, boot.ProjectID, "spam"); len(logs) != 2 {
		t.Fatalf("expected 2 spam logs, got %d", len(logs))
	}

	// Back-to-back requests from one IP hit the rate limit.
	rateHeaders := map[string]string{
		"Origin":          "https://example.com",
		"X-Forwarded-For": "203.0.113.22",
	}
	status, body = submit(t, client, baseURL, boot.APIKey, map[string]any{"message": "first"}, rateHeaders)
	if status != http.StatusOK {
		t.Fatalf("first submit status=%d body=%s", status, string(body))
	}
	status, body = submit(t, client, baseURL, boot.APIKey, map[string]any{"message": "second"}, rateHeaders)
	if status != http.StatusTooManyRequests {
		t.Fatalf("second submit status=%d body=%s", status, string(body))
	}
	env = testkit.DecodeEnvelope(t, body)
	if env.Err != "rate_limited" {
		t.Fatalf("rate limit err=%q", env.Err)
	}
}

func TestIntegration_ValidationErrors(t *testing.T) {
	t.Parallel()

	srv := testkit.NewServer(t)
	client := srv.HTTP.Client()
	baseURL := srv.HTTP.URL

	boot := testkit.Bootstrap(t, client, baseURL)
	testkit.UpdateProject(t, client, baseURL, boot.Token, boot.ProjectID, map[string]any{
		"fields": []map[string]any{
			{"id": "name", "label": "Name", "type": "text", "required": true},
			{"id": "email", "label": "Email", "type": "email", "required": true},
		},
	})

	status, body := submit(t, client, baseURL, boot.APIKey, map[string]any{
		"email": "not-an-email",
	}, map[string]string{"X-Forwarded-For": "203.0.113.30"})
	if status != http.StatusBadRequest {
		t.Fatalf("submit status=%d body=%s", status, string(body))
	}
	var resp struct {
		Code   int      `json:"code"`
		Err    string   `json:"err"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Err != "validation_failed" {
		t.Fatalf("err=%q", resp.Err)
	}
	want := map[string]bool{
		"Name is required.":            false,
		"Email must be a valid email.": false,
	}
	for _, msg := range resp.Errors {
		if _, ok := want[msg]; ok {
			want[msg] = true
		}
	}
	for msg, seen := range want {
		if !seen {
			t.Fatalf("missing error %q in %#v", msg, resp.Errors)
		}
	}

	// Invalid submissions leave no trace.
	if subs := testkit.ListSubmissions(t, client, baseURL, boot.Token, boot.ProjectID, testkit.ListSubmissionsParams{}); len(subs) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(subs))
	}
	if len(srv.Mail.Sent()) != 0 {
		t.Fatalf("expected no mail")
	}
}

func TestIntegration_MailFailureLogsBounce(t *testing.T) {
	t.Parallel()

	srv := testkit.NewServer(t)
	client := srv.HTTP.Client()
	baseURL := srv.HTTP.URL

	boot := testkit.Bootstrap(t, client, baseURL)
	testkit.UpdateProject(t, client, baseURL, boot.Token, boot.ProjectID, map[string]any{
		"smtp_host":  "smtp.example.com",
		"from_email": "forms@example.com",
		"to_email":   "inbox@example.com",
	})
	srv.Mail.FailWith(errors.New("connection reset by peer"))

	status, body := submit(t, client, baseURL, boot.APIKey, map[string]any{
		"message": "hello",
	}, map[string]string{"X-Forwarded-For": "203.0.113.40"})
	if status != http.StatusOK {
		t.Fatalf("submit status=%d body=%s", status, string(body))
	}
	data := decodeSubmitData(t, body)
	if data["accepted"] != true || data["reason"] != "mail_send_failed" {
		t.Fatalf("unexpected outcome: %#v", data)
	}

	// The submission survives the delivery failure.
	if subs := testkit.ListSubmissions(t, client, baseURL, boot.Token, boot.ProjectID, testkit.ListSubmissionsParams{}); len(subs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(subs))
	}
	logs := testkit.ListMailLogs(t, client, baseURL, boot.Token, boot.ProjectID, "bounced")
	if len(logs) != 1 {
		t.Fatalf("expected 1 bounced log, got %d", len(logs))
	}
	if statusMsg, _ := logs[0]["status"].(string); !strings.Contains(statusMsg, "connection reset") {
		t.Fatalf("unexpected log status: %#v", logs[0])
	}
}

func TestIntegration_NoRecipientBlocksDelivery(t *testing.T) {
	t.Parallel()

	srv := testkit.NewServer(t)
	client := srv.HTTP.Client()
	baseURL := srv.HTTP.URL

	boot := testkit.Bootstrap(t, client, baseURL)

	status, body := submit(t, client, baseURL, boot.APIKey, map[string]any{
		"message": "hello",
	}, map[string]string{"X-Forwarded-For": "203.0.113.50"})
	if status != http.StatusOK {
		t.Fatalf("submit status=%d body=%s", status, string(body))
	}
	data := decodeSubmitData(t, body)
	if data["accepted"] != true || data["reason"] != "mail_send_failed" {
		t.Fatalf("unexpected outcome: %#v", data)
	}

	logs := testkit.ListMailLogs(t, client, baseURL, boot.Token, boot.ProjectID, "blocked")
	if len(logs) != 1 {
		t.Fatalf("expected 1 blocked log, got %d", len(logs))
	}
	if logs[0]["status"] != "no recipient configured" {
		t.Fatalf("unexpected log: %#v", logs[0])
	}
	if len(srv.Mail.Sent()) != 0 {
		t.Fatalf("expected no mail")
	}
}

func TestIntegration_StatusAndAccessControl(t *testing.T) {
	t.Parallel()

	srv := testkit.NewServer(t)
	client := srv.HTTP.Client()
	baseURL := srv.HTTP.URL

	status, body := testkit.DoJSON(t, client, http.MethodGet, baseURL+"/api/status", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status status=%d body=%s", status, string(body))
	}
	env := testkit.DecodeEnvelope(t, body)
	var st struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatalf("status data: %v", err)
	}
	if st.Status != "uninitialized" {
		t.Fatalf("expected uninitialized, got %q", st.Status)
	}

	boot := testkit.Bootstrap(t, client, baseURL)

	status, body = testkit.DoJSON(t, client, http.MethodGet, baseURL+"/api/status", nil, nil)
	if status != http.StatusOK {
		t.Fatalf("status status=%d body=%s", status, string(body))
	}
	env = testkit.DecodeEnvelope(t, body)
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatalf("status data: %v", err)
	}
	if st.Status != "running" {
		t.Fatalf("expected running, got %q", st.Status)
	}

	// Unknown project identifier on the public endpoint.
	status, body = submit(t, client, baseURL, "fk_missing", map[string]any{"x": 1}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown project status=%d body=%s", status, string(body))
	}

	// Query surface requires a token.
	listURL := fmt.Sprintf("%s/api/%d/submissions", baseURL, boot.ProjectID)
	status, _ = testkit.DoJSON(t, client, http.MethodGet, listURL, nil, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	status, _ = testkit.DoJSON(t, client, http.MethodGet, listURL, nil, map[string]string{"Authorization": "Bearer bogus"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", status)
	}
}
