package service

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/travel-booking/internal/logger"
	"github.com/iliyamo/travel-booking/internal/metrics"
	"github.com/iliyamo/travel-booking/internal/model"
)

//go:embed alert_templates.yaml
var defaultAlertTemplates []byte

// AlertTemplate is the default wording of one alert type.
type AlertTemplate struct {
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}

// AlertTemplates maps alert types to their wording.  The "default" entry is
// used for types without their own template.
type AlertTemplates map[string]AlertTemplate

// ParseAlertTemplates decodes a YAML template catalogue.
func ParseAlertTemplates(data []byte) (AlertTemplates, error) {
	var t AlertTemplates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse alert templates: %w", err)
	}
	if _, ok := t["default"]; !ok {
		return nil, fmt.Errorf("parse alert templates: missing default entry")
	}
	return t, nil
}

// DefaultAlertTemplates returns the built-in catalogue.
func DefaultAlertTemplates() AlertTemplates {
	t, err := ParseAlertTemplates(defaultAlertTemplates)
	if err != nil {
		panic(err)
	}
	return t
}

// Render fills the template of alertType.
func (t AlertTemplates) Render(alertType, ref, detail string) (title, message string) {
	tpl, ok := t[alertType]
	if !ok {
		tpl = t["default"]
	}
	r := strings.NewReplacer("{ref}", ref, "{detail}", detail)
	return r.Replace(tpl.Title), strings.TrimSpace(r.Replace(tpl.Message))
}

// AlertService raises back-office alerts.  (type, reference) is unique, so
// raising the same alert twice leaves one row.
type AlertService struct {
	alerts    AlertStore
	templates AlertTemplates
	now       Clock
}

// NewAlertService returns an AlertService.  A nil templates uses the
// built-in catalogue.
func NewAlertService(alerts AlertStore, templates AlertTemplates) *AlertService {
	if templates == nil {
		templates = DefaultAlertTemplates()
	}
	return &AlertService{alerts: alerts, templates: templates, now: utcNow}
}

// Column widths of admin_alerts.
const (
	alertTypeMax    = 32
	alertRefMax     = 64
	alertTitleMax   = 200
	alertMessageMax = 1000
)

// AlertInput describes an alert to raise.  Empty Title or Message are taken
// from the template of Type, with Detail substituted.
type AlertInput struct {
	Type        string `json:"alert_type" validate:"required,max=32"`
	ReferenceID string `json:"reference_id" validate:"required,max=64"`
	Title       string `json:"title" validate:"max=200"`
	Message     string `json:"message" validate:"max=1000"`
	Detail      string `json:"-"`
}

func (s *AlertService) build(in AlertInput) (*model.AdminAlert, error) {
	if strings.TrimSpace(in.Type) == "" || strings.TrimSpace(in.ReferenceID) == "" {
		return nil, validationf("alert type and reference are required")
	}
	if utf8.RuneCountInString(in.Type) > alertTypeMax || utf8.RuneCountInString(in.ReferenceID) > alertRefMax {
		return nil, validationf("alert type is limited to %d characters and reference to %d", alertTypeMax, alertRefMax)
	}
	if utf8.RuneCountInString(in.Title) > alertTitleMax || utf8.RuneCountInString(in.Message) > alertMessageMax {
		return nil, validationf("alert title is limited to %d characters and message to %d", alertTitleMax, alertMessageMax)
	}
	title, message := s.templates.Render(in.Type, in.ReferenceID, in.Detail)
	if in.Title != "" {
		title = in.Title
	}
	if in.Message != "" {
		message = in.Message
	}
	return &model.AdminAlert{
		AlertType:   in.Type,
		ReferenceID: in.ReferenceID,
		Title:       clip(title, alertTitleMax),
		Message:     clip(message, alertMessageMax),
		CreatedAt:   s.now(),
	}, nil
}

// Raise inserts the alert unless one with the same key exists.  It reports
// whether a new alert was created.
func (s *AlertService) Raise(ctx context.Context, in AlertInput) (bool, error) {
	a, err := s.build(in)
	if err != nil {
		return false, err
	}
	created, err := s.alerts.Insert(ctx, a)
	if err != nil {
		return false, err
	}
	metrics.RecordAlert(a.AlertType, created)
	return created, nil
}

// RaiseTx is Raise inside the caller's transaction, so the alert commits or
// rolls back together with the business write that caused it.  The caller
// records the alert metric once the transaction has committed.
func (s *AlertService) RaiseTx(ctx context.Context, tx *sqlx.Tx, in AlertInput) (bool, error) {
	a, err := s.build(in)
	if err != nil {
		return false, err
	}
	created, err := s.alerts.InsertTx(ctx, tx, a)
	if err != nil {
		return false, err
	}
	if !created {
		logger.Debugf("alert %s/%s already raised", a.AlertType, a.ReferenceID)
	}
	return created, nil
}

// MarkRead marks the alert read by the acting admin, creating it already
// read when it does not exist.  Marking an already read alert again is a
// no-op that keeps the first reader.
func (s *AlertService) MarkRead(ctx context.Context, actor Actor, in AlertInput) (*model.AdminAlert, bool, error) {
	if err := requireBackOffice(actor); err != nil {
		return nil, false, err
	}
	a, err := s.build(in)
	if err != nil {
		return nil, false, err
	}
	created, err := s.alerts.UpsertRead(ctx, a, actor.UserID, a.CreatedAt)
	if err != nil {
		return nil, false, err
	}
	stored, err := s.alerts.GetByKey(ctx, a.AlertType, a.ReferenceID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// AlertPage is one page of alerts, newest first.
type AlertPage struct {
	Items    []model.AdminAlert `json:"items"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// List returns one page of alerts, optionally only the unread ones.
func (s *AlertService) List(ctx context.Context, actor Actor, unreadOnly bool, p model.Page) (AlertPage, error) {
	if err := requireBackOffice(actor); err != nil {
		return AlertPage{}, err
	}
	limit, offset := p.Normalize()
	items, total, err := s.alerts.List(ctx, unreadOnly, limit, offset)
	if err != nil {
		return AlertPage{}, err
	}
	if items == nil {
		items = []model.AdminAlert{}
	}
	return AlertPage{Items: items, Total: total, Page: offset/limit + 1, PageSize: limit}, nil
}

// clip cuts s to at most n runes.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
