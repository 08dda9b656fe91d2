package schema

import (
	"fmt"
	"slices"
)

// QuestionType discriminates question settings.
type QuestionType string

const (
	// QuestionText asks for free text.
	QuestionText QuestionType = "text"
	// QuestionRating asks for an integer rating.
	QuestionRating QuestionType = "rating"
	// QuestionLabelSelection asks for exactly one label.
	QuestionLabelSelection QuestionType = "label_selection"
	// QuestionMultiLabelSelection asks for any number of labels.
	QuestionMultiLabelSelection QuestionType = "multi_label_selection"
	// QuestionRanking asks for an ordering of options.
	QuestionRanking QuestionType = "ranking"
	// QuestionSpan asks for labelled character spans over a text field.
	QuestionSpan QuestionType = "span"
)

// MaxRatingValue bounds rating option values.
const MaxRatingValue = 10

// QuestionSettings is the typed payload of a Question.
type QuestionSettings interface {
	Type() QuestionType
	Validate() error
	MappingFragment() Fragment
	ValidateValue(v any) error
}

// Chooser is implemented by settings with a closed option set.
type Chooser interface {
	OptionValues() []string
}

// Option is a selectable answer.
type Option struct {
	Value       string `json:"value"`
	Text        string `json:"text,omitempty"`
	Description string `json:"description,omitempty"`
}

func validateOptions(opts []Option) error {
	if len(opts) == 0 {
		return fmt.Errorf("options must not be empty")
	}
	seen := make(map[string]bool, len(opts))
	for _, o := range opts {
		if o.Value == "" {
			return fmt.Errorf("option value is required")
		}
		if seen[o.Value] {
			return fmt.Errorf("option values must be unique, %q repeated", o.Value)
		}
		seen[o.Value] = true
	}
	return nil
}

func validateVisibleOptions(visible, total int) error {
	if visible == 0 {
		return nil
	}
	if visible < 3 || visible > total {
		return fmt.Errorf("visible_options must be between 3 and %d, got %d", total, visible)
	}
	return nil
}

func valuesOf(opts []Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Value
	}
	return out
}

func checkOption(opts []Option, value string) error {
	for _, o := range opts {
		if o.Value == value {
			return nil
		}
	}
	return fmt.Errorf("%q is not a valid option, expected one of %v", value, valuesOf(opts))
}

// TextQuestionSettings configures a free text question.
type TextQuestionSettings struct {
	UseMarkdown bool `json:"use_markdown"`
}

// Type implements QuestionSettings.
func (TextQuestionSettings) Type() QuestionType { return QuestionText }

// Validate implements QuestionSettings.
func (TextQuestionSettings) Validate() error { return nil }

// MappingFragment implements QuestionSettings. Free text is stored, not indexed.
func (TextQuestionSettings) MappingFragment() Fragment {
	return Fragment{Type: IndexText, Index: false}
}

// ValidateValue implements QuestionSettings.
func (TextQuestionSettings) ValidateValue(v any) error {
	s, ok := v.(string)
	if !ok || s == "" {
		return fmt.Errorf("text answer must be a non-empty string")
	}
	return nil
}

// RatingOption is a selectable rating.
type RatingOption struct {
	Value int `json:"value"`
}

// RatingQuestionSettings configures a rating question.
type RatingQuestionSettings struct {
	Options []RatingOption `json:"options"`
}

// Type implements QuestionSettings.
func (RatingQuestionSettings) Type() QuestionType { return QuestionRating }

// Validate implements QuestionSettings.
func (s RatingQuestionSettings) Validate() error {
	if len(s.Options) == 0 {
		return fmt.Errorf("options must not be empty")
	}
	seen := make(map[int]bool, len(s.Options))
	for _, o := range s.Options {
		if o.Value < 0 || o.Value > MaxRatingValue {
			return fmt.Errorf("rating values must be between 0 and %d, got %d", MaxRatingValue, o.Value)
		}
		if seen[o.Value] {
			return fmt.Errorf("option values must be unique, %d repeated", o.Value)
		}
		seen[o.Value] = true
	}
	return nil
}

// MappingFragment implements QuestionSettings.
func (RatingQuestionSettings) MappingFragment() Fragment {
	return Fragment{Type: IndexInteger, Index: true}
}

// ValidateValue implements QuestionSettings.
func (s RatingQuestionSettings) ValidateValue(v any) error {
	n, ok := toInt(v)
	if !ok {
		return fmt.Errorf("rating answer must be an integer, got %v", v)
	}
	for _, o := range s.Options {
		if int64(o.Value) == n {
			return nil
		}
	}
	return fmt.Errorf("%d is not a valid rating, expected one of %v", n, s.RatingValues())
}

// RatingValues returns the option values in declaration order.
func (s RatingQuestionSettings) RatingValues() []int {
	out := make([]int, len(s.Options))
	for i, o := range s.Options {
		out[i] = o.Value
	}
	return out
}

// OptionValues implements Chooser.
func (s RatingQuestionSettings) OptionValues() []string {
	out := make([]string, len(s.Options))
	for i, o := range s.Options {
		out[i] = fmt.Sprint(o.Value)
	}
	return out
}

// LabelSelectionSettings configures a single-label question.
type LabelSelectionSettings struct {
	Options        []Option `json:"options"`
	VisibleOptions int      `json:"visible_options,omitempty"`
}

// Type implements QuestionSettings.
func (LabelSelectionSettings) Type() QuestionType { return QuestionLabelSelection }

// Validate implements QuestionSettings.
func (s LabelSelectionSettings) Validate() error {
	if err := validateOptions(s.Options); err != nil {
		return err
	}
	return validateVisibleOptions(s.VisibleOptions, len(s.Options))
}

// MappingFragment implements QuestionSettings.
func (LabelSelectionSettings) MappingFragment() Fragment {
	return Fragment{Type: IndexKeyword, Index: true}
}

// ValidateValue implements QuestionSettings.
func (s LabelSelectionSettings) ValidateValue(v any) error {
	label, ok := v.(string)
	if !ok {
		return fmt.Errorf("label answer must be a string, got %T", v)
	}
	return checkOption(s.Options, label)
}

// OptionValues implements Chooser.
func (s LabelSelectionSettings) OptionValues() []string { return valuesOf(s.Options) }

// Options order for multi-label questions.
const (
	OptionsOrderNatural    = "natural"
	OptionsOrderSuggestion = "suggestion"
)

// MultiLabelSelectionSettings configures a multi-label question.
type MultiLabelSelectionSettings struct {
	Options        []Option `json:"options"`
	VisibleOptions int      `json:"visible_options,omitempty"`
	OptionsOrder   string   `json:"options_order,omitempty"`
}

// Type implements QuestionSettings.
func (MultiLabelSelectionSettings) Type() QuestionType { return QuestionMultiLabelSelection }

// Validate implements QuestionSettings.
func (s MultiLabelSelectionSettings) Validate() error {
	if err := validateOptions(s.Options); err != nil {
		return err
	}
	switch s.OptionsOrder {
	case "", OptionsOrderNatural, OptionsOrderSuggestion:
	default:
		return fmt.Errorf("options_order must be %q or %q, got %q",
			OptionsOrderNatural, OptionsOrderSuggestion, s.OptionsOrder)
	}
	return validateVisibleOptions(s.VisibleOptions, len(s.Options))
}

// MappingFragment implements QuestionSettings.
func (MultiLabelSelectionSettings) MappingFragment() Fragment {
	return Fragment{Type: IndexKeyword, Index: true}
}

// ValidateValue implements QuestionSettings.
func (s MultiLabelSelectionSettings) ValidateValue(v any) error {
	labels, ok := toStrings(v)
	if !ok {
		return fmt.Errorf("multi-label answer must be a list of strings")
	}
	if len(labels) == 0 {
		return fmt.Errorf("multi-label answer must not be empty")
	}
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if seen[l] {
			return fmt.Errorf("label %q repeated", l)
		}
		seen[l] = true
		if err := checkOption(s.Options, l); err != nil {
			return err
		}
	}
	return nil
}

// OptionValues implements Chooser.
func (s MultiLabelSelectionSettings) OptionValues() []string { return valuesOf(s.Options) }

// RankingSettings configures a ranking question.
type RankingSettings struct {
	Options []Option `json:"options"`
}

// Type implements QuestionSettings.
func (RankingSettings) Type() QuestionType { return QuestionRanking }

// Validate implements QuestionSettings.
func (s RankingSettings) Validate() error {
	if err := validateOptions(s.Options); err != nil {
		return err
	}
	if len(s.Options) < 2 {
		return fmt.Errorf("ranking needs at least 2 options")
	}
	return nil
}

// MappingFragment implements QuestionSettings.
func (RankingSettings) MappingFragment() Fragment {
	return Fragment{Type: IndexKeyword, Index: true}
}

// ValidateValue implements QuestionSettings. Ranks are 1-based and may tie.
func (s RankingSettings) ValidateValue(v any) error {
	items, ok := toObjects(v)
	if !ok {
		return fmt.Errorf("ranking answer must be a list of {value, rank}")
	}
	if len(items) != len(s.Options) {
		return fmt.Errorf("ranking answer must rank all %d options", len(s.Options))
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		value, ok := it["value"].(string)
		if !ok {
			return fmt.Errorf("ranking item value must be a string")
		}
		if err := checkOption(s.Options, value); err != nil {
			return err
		}
		if seen[value] {
			return fmt.Errorf("ranking value %q repeated", value)
		}
		seen[value] = true
		if rank, present := it["rank"]; present && rank != nil {
			r, ok := toInt(rank)
			if !ok || r < 1 || r > int64(len(s.Options)) {
				return fmt.Errorf("rank for %q must be between 1 and %d", value, len(s.Options))
			}
		}
	}
	return nil
}

// OptionValues implements Chooser.
func (s RankingSettings) OptionValues() []string { return valuesOf(s.Options) }

// SpanSettings configures a span question over a text field.
type SpanSettings struct {
	Field                    string   `json:"field"`
	Options                  []Option `json:"options"`
	VisibleOptions           int      `json:"visible_options,omitempty"`
	AllowOverlapping         bool     `json:"allow_overlapping"`
	AllowCharacterAnnotation bool     `json:"allow_character_annotation"`
}

// Type implements QuestionSettings.
func (SpanSettings) Type() QuestionType { return QuestionSpan }

// Validate implements QuestionSettings.
func (s SpanSettings) Validate() error {
	if s.Field == "" {
		return fmt.Errorf("span question requires a target field")
	}
	if err := validateOptions(s.Options); err != nil {
		return err
	}
	return validateVisibleOptions(s.VisibleOptions, len(s.Options))
}

// MappingFragment implements QuestionSettings.
func (SpanSettings) MappingFragment() Fragment {
	return Fragment{Type: IndexKeyword, Index: true}
}

// Span is a labelled character range [Start, End).
type Span struct {
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// ValidateValue implements QuestionSettings. Bounds against the text are checked by ValidateSpans.
func (s SpanSettings) ValidateValue(v any) error {
	_, err := s.parseSpans(v)
	return err
}

func (s SpanSettings) parseSpans(v any) ([]Span, error) {
	items, ok := toObjects(v)
	if !ok {
		return nil, fmt.Errorf("span answer must be a list of {label, start, end}")
	}
	spans := make([]Span, 0, len(items))
	for i, it := range items {
		label, ok := it["label"].(string)
		if !ok {
			return nil, fmt.Errorf("span %d: label must be a string", i)
		}
		if err := checkOption(s.Options, label); err != nil {
			return nil, fmt.Errorf("span %d: %w", i, err)
		}
		start, okStart := toInt(it["start"])
		end, okEnd := toInt(it["end"])
		if !okStart || !okEnd {
			return nil, fmt.Errorf("span %d: start and end must be integers", i)
		}
		if start < 0 || end <= start {
			return nil, fmt.Errorf("span %d: invalid range [%d, %d)", i, start, end)
		}
		spans = append(spans, Span{Label: label, Start: int(start), End: int(end)})
	}
	if !s.AllowOverlapping {
		sorted := slices.Clone(spans)
		slices.SortFunc(sorted, func(a, b Span) int { return a.Start - b.Start })
		for i := 1; i < len(sorted); i++ {
			if sorted[i].Start < sorted[i-1].End {
				return nil, fmt.Errorf("overlapping spans are not allowed: [%d, %d) and [%d, %d)",
					sorted[i-1].Start, sorted[i-1].End, sorted[i].Start, sorted[i].End)
			}
		}
	}
	return spans, nil
}

// ValidateSpans checks a span answer against the target field text.
func (s SpanSettings) ValidateSpans(v any, text string) error {
	spans, err := s.parseSpans(v)
	if err != nil {
		return err
	}
	runes := []rune(text)
	for _, sp := range spans {
		if sp.End > len(runes) {
			return fmt.Errorf("span [%d, %d) exceeds field %q length %d", sp.Start, sp.End, s.Field, len(runes))
		}
		if !s.AllowCharacterAnnotation && !onWordBoundaries(runes, sp.Start, sp.End) {
			return fmt.Errorf("span [%d, %d) must start and end on word boundaries", sp.Start, sp.End)
		}
	}
	return nil
}

// OptionValues implements Chooser.
func (s SpanSettings) OptionValues() []string { return valuesOf(s.Options) }

func onWordBoundaries(runes []rune, start, end int) bool {
	startOK := start == 0 || !isWordRune(runes[start-1]) || !isWordRune(runes[start])
	endOK := end == len(runes) || !isWordRune(runes[end]) || !isWordRune(runes[end-1])
	return startOK && endOK
}

// Question is something annotators answer per record (immutable value object).
type Question struct {
	name        string
	title       string
	description string
	required    bool
	settings    QuestionSettings
}

// NewQuestion validates and creates a Question.
func NewQuestion(name, title, description string, required bool, settings QuestionSettings) (Question, error) {
	if err := ValidateName("question", name); err != nil {
		return Question{}, err
	}
	if settings == nil {
		return Question{}, fmt.Errorf("question %q: settings are required", name)
	}
	if err := settings.Validate(); err != nil {
		return Question{}, fmt.Errorf("question %q: %w", name, err)
	}
	if title == "" {
		title = name
	}
	return Question{name: name, title: title, description: description, required: required, settings: settings}, nil
}

// ReconstructQuestion creates a Question without validation (storage hydration).
func ReconstructQuestion(name, title, description string, required bool, settings QuestionSettings) Question {
	return Question{name: name, title: title, description: description, required: required, settings: settings}
}

// Name returns the question name.
func (q Question) Name() string { return q.name }

// Title returns the display title.
func (q Question) Title() string { return q.title }

// Description returns the optional help text.
func (q Question) Description() string { return q.description }

// Required reports whether a submitted response must answer it.
func (q Question) Required() bool { return q.required }

// Settings returns the typed settings.
func (q Question) Settings() QuestionSettings { return q.settings }

// Type returns the settings discriminator.
func (q Question) Type() QuestionType { return q.settings.Type() }
