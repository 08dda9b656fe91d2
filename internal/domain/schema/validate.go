package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateRecord checks record content (fields, metadata, vectors) against the dataset.
func (d Dataset) ValidateRecord(r Record) error {
	for name, value := range r.fields {
		f, ok := d.FieldByName(name)
		if !ok {
			return fmt.Errorf("found fields values for non configured fields: %q", name)
		}
		if value == nil {
			continue
		}
		if err := f.settings.ValidateValue(value); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
	}
	for _, f := range d.fields {
		if !f.required {
			continue
		}
		if v, ok := r.fields[f.name]; !ok || v == nil || v == "" {
			return fmt.Errorf("missing required value for field %q", f.name)
		}
	}

	for name, value := range r.metadata {
		p, ok := d.MetadataPropertyByName(name)
		if !ok {
			if strings.HasPrefix(name, ExtraMetadataPrefix) || d.allowExtraMetadata {
				continue
			}
			return fmt.Errorf("metadata %q is not defined in the dataset", name)
		}
		if value == nil {
			continue
		}
		if err := p.settings.ValidateValue(value); err != nil {
			return fmt.Errorf("metadata %q: %w", name, err)
		}
	}

	for name, value := range r.vectors {
		vs, ok := d.VectorSettingsByName(name)
		if !ok {
			return fmt.Errorf("vector settings %q do not exist in the dataset", name)
		}
		if err := vs.ValidateValue(value); err != nil {
			return err
		}
	}

	var errs []error
	for _, s := range r.suggestions {
		if err := d.ValidateSuggestion(r, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateResponse checks answers against the questions. Submitted responses must answer
// every required question.
func (d Dataset) ValidateResponse(r Record, resp Response) error {
	for name, value := range resp.values {
		q, ok := d.QuestionByName(name)
		if !ok {
			return fmt.Errorf("found responses for non configured questions: %q", name)
		}
		if err := d.validateAnswer(r, q, value); err != nil {
			return fmt.Errorf("question %q: %w", name, err)
		}
	}
	if resp.status != ResponseSubmitted {
		return nil
	}
	for _, q := range d.questions {
		if _, ok := resp.values[q.name]; q.required && !ok {
			return fmt.Errorf("missing response value for required question %q", q.name)
		}
	}
	return nil
}

// ValidateSuggestion checks a suggestion value against its question.
func (d Dataset) ValidateSuggestion(r Record, s Suggestion) error {
	q, ok := d.QuestionByName(s.question)
	if !ok {
		return fmt.Errorf("suggestion for non configured question %q", s.question)
	}
	if err := d.validateAnswer(r, q, s.value); err != nil {
		return fmt.Errorf("suggestion for question %q: %w", s.question, err)
	}
	return nil
}

func (d Dataset) validateAnswer(r Record, q Question, value any) error {
	span, isSpan := q.settings.(SpanSettings)
	if !isSpan {
		return q.settings.ValidateValue(value)
	}
	text, _ := r.fields[span.Field].(string)
	return span.ValidateSpans(value, text)
}
