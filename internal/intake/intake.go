package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Developersbbs/Embedd-Mailer/internal/enrich"
	"github.com/Developersbbs/Embedd-Mailer/internal/mailer"
	"github.com/Developersbbs/Embedd-Mailer/internal/metrics"
	"github.com/Developersbbs/Embedd-Mailer/internal/model"
	"github.com/Developersbbs/Embedd-Mailer/internal/schema"
	"github.com/Developersbbs/Embedd-Mailer/internal/spam"
	"github.com/Developersbbs/Embedd-Mailer/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rejection reasons returned to the submitting client.
const (
	ReasonProjectNotFound  = "project_not_found"
	ReasonOriginNotAllowed = "origin_not_allowed"
	ReasonHoneypot         = "honeypot_triggered"
	ReasonRateLimited      = "rate_limited"
	ReasonValidationFailed = "validation_failed"
	ReasonMailSendFailed   = "mail_send_failed"
)

// RequestContext carries the transport-level facts about one submission.
type RequestContext struct {
	IP        string
	UserAgent string
	Origin    string
	Referrer  string
}

// Outcome describes what the pipeline did with one submission. Accepted
// means the submission was stored as legitimate; Reason is set whenever
// something was rejected or the notification mail did not go out.
type Outcome struct {
	Accepted     bool
	Reason       string
	Errors       []string
	SubmissionID uuid.UUID
	MailEvent    string
}

// Service runs the whole pipeline for one submission: spam checks,
// validation, persistence, mail forwarding and the log trail. Persistence
// failures are the only errors it returns; everything after the submission
// row is written is reported through the Outcome instead.
type Service struct {
	DB      *gorm.DB
	Spam    *spam.Checker
	Mailer  *mailer.Dispatcher
	Geo     *enrich.GeoIP
	Metrics *metrics.RedisRecorder
	Now     func() time.Time
}

func NewService(db *gorm.DB, checker *spam.Checker, dispatcher *mailer.Dispatcher, geo *enrich.GeoIP, rec *metrics.RedisRecorder) *Service {
	return &Service{
		DB:      db,
		Spam:    checker,
		Mailer:  dispatcher,
		Geo:     geo,
		Metrics: rec,
		Now:     time.Now,
	}
}

// Submit resolves the project behind identifier and runs form through the
// pipeline. identifier is the public path segment, either an API key or a
// numeric project id.
func (s *Service) Submit(ctx context.Context, identifier string, form map[string]any, rc RequestContext) (Outcome, error) {
	now := s.Now().UTC()

	project, found, err := store.FindProjectByKeyOrID(ctx, s.DB, identifier)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		return Outcome{Reason: ReasonProjectNotFound}, nil
	}

	if form == nil {
		form = map[string]any{}
	}

	verdict := s.Spam.Check(spam.CheckInput{
		IP:             rc.IP,
		UserAgent:      rc.UserAgent,
		Origin:         rc.Origin,
		Body:           form,
		AllowedOrigins: decodeOrigins(project.AllowedOrigins),
		HoneypotField:  project.HoneypotField,
	})
	if verdict.IsSpam {
		return s.quarantine(ctx, project, form, rc, verdict, now)
	}

	fields, err := schema.DecodeFields(project.Fields)
	if err != nil {
		return Outcome{}, fmt.Errorf("intake: project %d has a broken schema: %w", project.ID, err)
	}
	result := schema.ValidateAndSanitize(form, fields)
	if !result.IsValid {
		return Outcome{Reason: ReasonValidationFailed, Errors: result.Errors}, nil
	}

	subID, err := store.InsertSubmission(ctx, s.DB, store.NewSubmission{
		ProjectID: project.ID,
		Data:      result.Sanitized,
		IP:        rc.IP,
		UserAgent: rc.UserAgent,
		Referrer:  rc.Referrer,
		Country:   s.country(rc.IP),
		CreatedAt: now,
	})
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Accepted: true, SubmissionID: subID}
	out.MailEvent = s.forward(ctx, project, fields, result.Sanitized, subID, now)
	if out.MailEvent != store.MailEventDelivered {
		out.Reason = ReasonMailSendFailed
	}

	s.Metrics.ObserveSubmission(ctx, project.ID, false, out.MailEvent, now)
	return out, nil
}

// quarantine stores a spam attempt flagged, writes the quarantine log entry
// and sends nothing.
func (s *Service) quarantine(ctx context.Context, project model.Project, form map[string]any, rc RequestContext, verdict spam.Verdict, now time.Time) (Outcome, error) {
	_, err := store.InsertSubmission(ctx, s.DB, store.NewSubmission{
		ProjectID:    project.ID,
		Data:         form,
		IP:           rc.IP,
		UserAgent:    rc.UserAgent,
		Referrer:     rc.Referrer,
		Country:      s.country(rc.IP),
		SpamDetected: true,
		SpamReason:   verdict.Reason,
		CreatedAt:    now,
	})
	if err != nil {
		return Outcome{}, err
	}

	if err := store.InsertMailLog(ctx, s.DB, store.NewMailLog{
		ProjectID: project.ID,
		Event:     store.MailEventSpam,
		Status:    "quarantine",
		Meta:      map[string]any{"reason": verdict.Reason},
		CreatedAt: now,
	}); err != nil {
		return Outcome{}, err
	}

	s.Metrics.ObserveSubmission(ctx, project.ID, true, store.MailEventSpam, now)
	return Outcome{Reason: reasonForKind(verdict.Kind)}, nil
}

// forward sends the notification mail and writes the matching log entry. It
// returns the mail log event that was recorded.
func (s *Service) forward(ctx context.Context, project model.Project, fields []schema.FieldDefinition, data map[string]any, subID uuid.UUID, now time.Time) string {
	subject := fmt.Sprintf("New submission: %s", project.Name)
	recipient := strings.TrimSpace(project.ToEmail)

	if recipient == "" {
		_ = store.InsertMailLog(ctx, s.DB, store.NewMailLog{
			ProjectID: project.ID,
			Event:     store.MailEventBlocked,
			Status:    "no recipient configured",
			Subject:   subject,
			Meta:      map[string]any{"submission_id": subID.String()},
			CreatedAt: now,
		})
		return store.MailEventBlocked
	}

	msg := mailer.Message{
		From:    strings.TrimSpace(project.FromEmail),
		To:      []string{recipient},
		Subject: subject,
		Text:    renderBody(fields, data),
	}
	if cc := strings.TrimSpace(project.CCEmail); cc != "" {
		msg.CC = []string{cc}
	}

	res, err := s.Mailer.Send(ctx, mailer.Config{
		Host:      project.SMTPHost,
		Port:      project.SMTPPort,
		Secure:    project.SMTPSecure,
		Username:  project.SMTPUsername,
		Password:  project.SMTPPassword,
		FromEmail: project.FromEmail,
	}, msg)
	if err != nil {
		_ = store.InsertMailLog(ctx, s.DB, store.NewMailLog{
			ProjectID: project.ID,
			Event:     store.MailEventBounced,
			Status:    err.Error(),
			Subject:   subject,
			Recipient: recipient,
			Meta:      map[string]any{"submission_id": subID.String()},
			CreatedAt: now,
		})
		return store.MailEventBounced
	}

	_ = store.InsertMailLog(ctx, s.DB, store.NewMailLog{
		ProjectID: project.ID,
		Event:     store.MailEventDelivered,
		Status:    "sent",
		Subject:   subject,
		Recipient: recipient,
		Meta: map[string]any{
			"submission_id": subID.String(),
			"message_id":    res.MessageID,
			"accepted":      res.Accepted,
		},
		CreatedAt: now,
	})
	return store.MailEventDelivered
}

func (s *Service) country(ip string) string {
	geo, ok := s.Geo.Lookup(ip)
	if !ok {
		return ""
	}
	return geo.Country
}

func reasonForKind(kind spam.RejectKind) string {
	switch kind {
	case spam.RejectOrigin:
		return ReasonOriginNotAllowed
	case spam.RejectHoneypot:
		return ReasonHoneypot
	case spam.RejectRateLimit:
		return ReasonRateLimited
	default:
		return ReasonValidationFailed
	}
}

func decodeOrigins(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var origins []string
	if err := json.Unmarshal(raw, &origins); err != nil {
		return nil
	}
	return origins
}

// renderBody lays out the mail text: schema fields in display order first,
// then any passthrough keys sorted for a stable output.
func renderBody(fields []schema.FieldDefinition, data map[string]any) string {
	var b strings.Builder
	seen := make(map[string]bool, len(fields))

	for _, field := range fields {
		seen[field.ID] = true
		value, ok := data[field.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", field.Label, formatValue(value))
	}

	var rest []string
	for key := range data {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		fmt.Fprintf(&b, "%s: %s\n", key, formatValue(data[key]))
	}

	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", x), "0"), ".")
	case bool:
		return fmt.Sprintf("%t", x)
	case nil:
		return ""
	default:
		raw, _ := json.Marshal(x)
		return string(raw)
	}
}
