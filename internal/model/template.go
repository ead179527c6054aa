package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/estimate-app/backend/internal/apperr"
	"github.com/shopspring/decimal"
)

// TemplateKind distinguishes shared system templates from user-owned ones.
type TemplateKind string

const (
	TemplateSystem TemplateKind = "system"
	TemplateUser   TemplateKind = "user"
)

// ParseTemplateKind accepts "system" or "user".
func ParseTemplateKind(s string) (TemplateKind, bool) {
	switch TemplateKind(s) {
	case TemplateSystem, TemplateUser:
		return TemplateKind(s), true
	}
	return "", false
}

// Template holds the defaults copied into a new estimate.
type Template struct {
	ID                       string       `json:"id"`
	Kind                     TemplateKind `json:"kind"`
	OwnerUserID              string       `json:"owner_user_id,omitempty"`
	Name                     string       `json:"name"`
	DefaultHourlyRate        int64        `json:"default_hourly_rate"`
	DefaultRevisionLimit     int          `json:"default_revision_limit"`
	DefaultExtraRevisionRate int64        `json:"default_extra_revision_rate"`
	CreatedAt                time.Time    `json:"created_at"`
	UpdatedAt                time.Time    `json:"updated_at"`
}

// TemplateInput is the payload for creating or updating a user template.
type TemplateInput struct {
	Name                     string `json:"name"`
	DefaultHourlyRate        int64  `json:"default_hourly_rate"`
	DefaultRevisionLimit     int    `json:"default_revision_limit"`
	DefaultExtraRevisionRate int64  `json:"default_extra_revision_rate"`
}

// Validate reports every violation of in at once.
func (in TemplateInput) Validate(op string) error {
	var v []string
	if strings.TrimSpace(in.Name) == "" {
		v = append(v, "name: required")
	}
	if in.DefaultHourlyRate < 0 {
		v = append(v, fmt.Sprintf("default_hourly_rate: must be >= 0, got %d", in.DefaultHourlyRate))
	}
	if in.DefaultRevisionLimit < 0 {
		v = append(v, fmt.Sprintf("default_revision_limit: must be >= 0, got %d", in.DefaultRevisionLimit))
	}
	if in.DefaultExtraRevisionRate < 0 {
		v = append(v, fmt.Sprintf("default_extra_revision_rate: must be >= 0, got %d", in.DefaultExtraRevisionRate))
	}
	if len(v) > 0 {
		return apperr.Validation(op, v...)
	}
	return nil
}

// Apply copies in onto t. Kind and owner are never changed.
func (in TemplateInput) Apply(t *Template) {
	t.Name = strings.TrimSpace(in.Name)
	t.DefaultHourlyRate = in.DefaultHourlyRate
	t.DefaultRevisionLimit = in.DefaultRevisionLimit
	t.DefaultExtraRevisionRate = in.DefaultExtraRevisionRate
}

// デフォルトの制作ポリシー
const (
	DefaultRevisionLimit     = 2
	DefaultExtraRevisionRate = 5000
)

// DefaultTerms is prefilled into every draft.
var DefaultTerms = strings.Join([]string{
	"・修正回数が規定回数を超える場合、追加費用が発生する可能性があります",
	"・制作期間は作業開始日からの目安となります",
	"・最終的なスケジュールは打ち合わせにて調整いたします",
	"・素材提供の遅れにより制作期間が延長する場合があります",
	"・お支払いは制作開始前に50%、納品時に残り50%となります",
}, "\n")

// TemplateCategory is the closed set of keywords a template name is matched
// against.
type TemplateCategory string

const (
	CategoryMV TemplateCategory = "MV"
	CategoryCM TemplateCategory = "CM"
	CategoryVP TemplateCategory = "VP"
)

// categoryOrder is the match order; the first keyword found in the name wins.
var categoryOrder = []TemplateCategory{CategoryMV, CategoryCM, CategoryVP}

type predefinedTask struct {
	name  string
	hours int64
	memo  string
}

var predefinedTasks = map[TemplateCategory][]predefinedTask{
	CategoryMV: {
		{"企画・構成", 4, "コンセプト設計、絵コンテ作成"},
		{"撮影", 8, "ロケーション撮影、スタジオ撮影"},
		{"編集", 12, "カット編集、色調補正、音響調整"},
		{"納品", 2, "ファイル書き出し、納品準備"},
	},
	CategoryCM: {
		{"企画・提案", 6, "コンセプト企画、提案資料作成"},
		{"撮影", 10, "メイン撮影、追加撮影"},
		{"編集・CG", 16, "カット編集、CG制作、エフェクト"},
		{"音響・MA", 4, "BGM、効果音、音響調整"},
		{"納品", 2, "ファイル書き出し、各種フォーマット対応"},
	},
	CategoryVP: {
		{"企画・構成", 4, "コンセプト設計、構成案作成"},
		{"撮影", 6, "インタビュー撮影、会社紹介撮影"},
		{"編集", 10, "カット編集、テロップ制作"},
		{"納品", 2, "ファイル書き出し、納品準備"},
	},
}

// scheduleDays is the default duration in business days per category.
var scheduleDays = map[TemplateCategory]int{
	CategoryMV: 14,
	CategoryCM: 21,
	CategoryVP: 12,
}

// Classify returns the first category keyword contained in name.
// Matching is a plain substring test, so "VMV" is classified as MV.
func Classify(name string) (TemplateCategory, bool) {
	for _, c := range categoryOrder {
		if strings.Contains(name, string(c)) {
			return c, true
		}
	}
	return "", false
}

// EstimateDraft is the editable starting point produced from a template.
// All values are copies; editing the draft never touches the template.
type EstimateDraft struct {
	TemplateID            *string      `json:"template_id"`
	Category              string       `json:"category,omitempty"`
	RevisionLimit         int          `json:"revision_limit"`
	ExtraRevisionRate     int64        `json:"extra_revision_rate"`
	EstimatedDurationDays *int         `json:"estimated_duration_days"`
	TermsAndConditions    string       `json:"terms_and_conditions"`
	Items                 *LineItemSet `json:"-"`
	LineItems             []LineItem   `json:"line_items"`
}

// ApplyTemplate snapshots t into a new draft. Only user templates are
// referenced by id.
func ApplyTemplate(t *Template) (*EstimateDraft, error) {
	d := &EstimateDraft{
		RevisionLimit:      t.DefaultRevisionLimit,
		ExtraRevisionRate:  t.DefaultExtraRevisionRate,
		TermsAndConditions: DefaultTerms,
		Items:              NewLineItemSet(),
	}
	if t.Kind == TemplateUser {
		id := t.ID
		d.TemplateID = &id
	}

	if c, ok := Classify(t.Name); ok {
		d.Category = string(c)
		days := scheduleDays[c]
		d.EstimatedDurationDays = &days
		for _, task := range predefinedTasks[c] {
			if _, err := d.Items.Add(LineItemInput{
				Name:       task.name,
				Hours:      decimal.NewFromInt(task.hours),
				HourlyRate: t.DefaultHourlyRate,
				Memo:       task.memo,
			}); err != nil {
				return nil, err
			}
		}
	} else {
		if _, err := d.Items.Add(LineItemInput{Hours: decimal.Zero, HourlyRate: t.DefaultHourlyRate}); err != nil {
			return nil, err
		}
	}
	d.LineItems = d.Items.Items()
	return d, nil
}

// Input converts the draft into a create payload with title and the current
// draft items.
func (d *EstimateDraft) Input(title string) EstimateInput {
	return EstimateInput{
		Title:             title,
		TemplateID:        d.TemplateID,
		RevisionLimit:     d.RevisionLimit,
		ExtraRevisionRate: d.ExtraRevisionRate,
		LineItems:         d.Items.Inputs(),
		EstimateDetails: EstimateDetails{
			TermsAndConditions:    d.TermsAndConditions,
			EstimatedDurationDays: d.EstimatedDurationDays,
		},
	}
}

// DefaultSystemTemplates are the shared templates seeded into storage.
func DefaultSystemTemplates() []*Template {
	return []*Template{
		{Kind: TemplateSystem, Name: "MV制作", DefaultHourlyRate: 8000, DefaultRevisionLimit: DefaultRevisionLimit, DefaultExtraRevisionRate: DefaultExtraRevisionRate},
		{Kind: TemplateSystem, Name: "CM制作", DefaultHourlyRate: 10000, DefaultRevisionLimit: DefaultRevisionLimit, DefaultExtraRevisionRate: DefaultExtraRevisionRate},
		{Kind: TemplateSystem, Name: "VP制作", DefaultHourlyRate: 7000, DefaultRevisionLimit: DefaultRevisionLimit, DefaultExtraRevisionRate: DefaultExtraRevisionRate},
	}
}
