package schema

import "fmt"

// FieldType discriminates field settings.
type FieldType string

const (
	// FieldText is a full-text searchable field.
	FieldText FieldType = "text"
	// FieldImage holds an image URL or data URI.
	FieldImage FieldType = "image"
	// FieldChat holds a list of chat messages.
	FieldChat FieldType = "chat"
	// FieldCustom holds arbitrary JSON rendered by a template.
	FieldCustom FieldType = "custom"
)

// FieldSettings is the typed payload of a Field.
type FieldSettings interface {
	Type() FieldType
	Validate() error
	ValidateValue(v any) error
}

// TextFieldSettings configures a text field.
type TextFieldSettings struct {
	UseMarkdown bool `json:"use_markdown"`
}

// Type implements FieldSettings.
func (TextFieldSettings) Type() FieldType { return FieldText }

// Validate implements FieldSettings.
func (TextFieldSettings) Validate() error { return nil }

// ValidateValue implements FieldSettings.
func (TextFieldSettings) ValidateValue(v any) error {
	if _, ok := v.(string); !ok {
		return fmt.Errorf("text field value must be a string, got %T", v)
	}
	return nil
}

// ImageFieldSettings configures an image field.
type ImageFieldSettings struct{}

// Type implements FieldSettings.
func (ImageFieldSettings) Type() FieldType { return FieldImage }

// Validate implements FieldSettings.
func (ImageFieldSettings) Validate() error { return nil }

// ValidateValue implements FieldSettings.
func (ImageFieldSettings) ValidateValue(v any) error {
	s, ok := v.(string)
	if !ok || s == "" {
		return fmt.Errorf("image field value must be a non-empty URL string")
	}
	return nil
}

// ChatFieldSettings configures a chat field.
type ChatFieldSettings struct {
	UseMarkdown bool `json:"use_markdown"`
}

// Type implements FieldSettings.
func (ChatFieldSettings) Type() FieldType { return FieldChat }

// Validate implements FieldSettings.
func (ChatFieldSettings) Validate() error { return nil }

// ValidateValue implements FieldSettings.
func (ChatFieldSettings) ValidateValue(v any) error {
	msgs, ok := toObjects(v)
	if !ok {
		return fmt.Errorf("chat field value must be a list of messages")
	}
	for i, m := range msgs {
		if _, ok := m["role"].(string); !ok {
			return fmt.Errorf("chat message %d: role must be a string", i)
		}
		if _, ok := m["content"].(string); !ok {
			return fmt.Errorf("chat message %d: content must be a string", i)
		}
	}
	return nil
}

// CustomFieldSettings configures a custom field.
type CustomFieldSettings struct {
	Template string `json:"template"`
}

// Type implements FieldSettings.
func (CustomFieldSettings) Type() FieldType { return FieldCustom }

// Validate implements FieldSettings.
func (s CustomFieldSettings) Validate() error {
	if s.Template == "" {
		return fmt.Errorf("custom field template is required")
	}
	return nil
}

// ValidateValue implements FieldSettings.
func (CustomFieldSettings) ValidateValue(v any) error {
	switch v.(type) {
	case map[string]any, string:
		return nil
	default:
		return fmt.Errorf("custom field value must be an object or a string")
	}
}

// Field is a record attribute shown to annotators (immutable value object).
type Field struct {
	name     string
	title    string
	required bool
	settings FieldSettings
}

// NewField validates and creates a Field.
func NewField(name, title string, required bool, settings FieldSettings) (Field, error) {
	if err := ValidateName("field", name); err != nil {
		return Field{}, err
	}
	if settings == nil {
		return Field{}, fmt.Errorf("field %q: settings are required", name)
	}
	if err := settings.Validate(); err != nil {
		return Field{}, fmt.Errorf("field %q: %w", name, err)
	}
	if title == "" {
		title = name
	}
	return Field{name: name, title: title, required: required, settings: settings}, nil
}

// ReconstructField creates a Field without validation (storage hydration).
func ReconstructField(name, title string, required bool, settings FieldSettings) Field {
	return Field{name: name, title: title, required: required, settings: settings}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Title returns the display title.
func (f Field) Title() string { return f.title }

// Required reports whether every record must carry this field.
func (f Field) Required() bool { return f.required }

// Settings returns the typed settings.
func (f Field) Settings() FieldSettings { return f.settings }

// Type returns the settings discriminator.
func (f Field) Type() FieldType { return f.settings.Type() }

// IsText reports whether the field is full-text searchable.
func (f Field) IsText() bool { return f.settings.Type() == FieldText }
