package testkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

type APIEnvelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Err  string          `json:"err"`
}

func DoJSON(t testing.TB, client *http.Client, method, rawURL string, body any, headers map[string]string) (int, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal: %v", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, rawURL, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("client.Do: %v", err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return res.StatusCode, b
}

func DecodeEnvelope(t testing.TB, body []byte) APIEnvelope {
	t.Helper()

	var env APIEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("decode envelope: %v (body=%s)", err, string(body))
	}
	return env
}

type BootstrapResult struct {
	Token     string
	ProjectID int
	APIKey    string
}

func Bootstrap(t testing.TB, client *http.Client, baseURL string) BootstrapResult {
	t.Helper()

	req := map[string]any{
		"email":        "owner@example.com",
		"password":     "pass123456",
		"project_name": "Default",
	}
	status, body := DoJSON(t, client, http.MethodPost, baseURL+"/api/auth/bootstrap", req, nil)
	if status != http.StatusOK {
		t.Fatalf("bootstrap status=%d body=%s", status, string(body))
	}
	env := DecodeEnvelope(t, body)
	if env.Code != 0 {
		t.Fatalf("bootstrap code=%d err=%s", env.Code, env.Err)
	}

	var data struct {
		Token   string `json:"token"`
		Project struct {
			ID     int    `json:"id"`
			APIKey string `json:"api_key"`
		} `json:"project"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("bootstrap data: %v", err)
	}

	return BootstrapResult{
		Token:     data.Token,
		ProjectID: data.Project.ID,
		APIKey:    data.Project.APIKey,
	}
}

// UpdateProject patches project settings through the API and fails the test
// on any non-OK response.
func UpdateProject(t testing.TB, client *http.Client, baseURL, token string, projectID int, patch map[string]any) {
	t.Helper()

	rawURL := fmt.Sprintf("%s/api/projects/%d", baseURL, projectID)
	headers := map[string]string{"Authorization": "Bearer " + token}
	status, body := DoJSON(t, client, http.MethodPatch, rawURL, patch, headers)
	if status != http.StatusOK {
		t.Fatalf("update project status=%d body=%s", status, string(body))
	}
	env := DecodeEnvelope(t, body)
	if env.Code != 0 {
		t.Fatalf("update project code=%d err=%s", env.Code, env.Err)
	}
}

type ListSubmissionsParams struct {
	From  time.Time
	To    time.Time
	Limit int
}

func ListSubmissions(t testing.TB, client *http.Client, baseURL, token string, projectID int, params ListSubmissionsParams) []map[string]any {
	t.Helper()

	usp := url.Values{}
	if !params.From.IsZero() {
		usp.Set("from", params.From.Format(time.RFC3339Nano))
	}
	if !params.To.IsZero() {
		usp.Set("to", params.To.Format(time.RFC3339Nano))
	}
	if params.Limit > 0 {
		usp.Set("limit", fmt.Sprintf("%d", params.Limit))
	}

	rawURL := fmt.Sprintf("%s/api/%d/submissions", baseURL, projectID)
	if qs := usp.Encode(); qs != "" {
		rawURL += "?" + qs
	}
	return listRows(t, client, rawURL, token)
}

func ListMailLogs(t testing.TB, client *http.Client, baseURL, token string, projectID int, event string) []map[string]any {
	t.Helper()

	rawURL := fmt.Sprintf("%s/api/%d/logs", baseURL, projectID)
	if strings.TrimSpace(event) != "" {
		rawURL += "?event=" + url.QueryEscape(event)
	}
	return listRows(t, client, rawURL, token)
}

func listRows(t testing.TB, client *http.Client, rawURL, token string) []map[string]any {
	t.Helper()

	headers := map[string]string{"Authorization": "Bearer " + token}
	status, body := DoJSON(t, client, http.MethodGet, rawURL, nil, headers)
	if status != http.StatusOK {
		t.Fatalf("list status=%d url=%s body=%s", status, rawURL, string(body))
	}
	env := DecodeEnvelope(t, body)
	if env.Code != 0 {
		t.Fatalf("list code=%d err=%s", env.Code, env.Err)
	}
	var data struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("list data: %v", err)
	}
	return data.Items
}
