package schema

import (
	"encoding/json"
	"fmt"
)

// DecodeFieldSettings builds the field settings variant named by typ.
// An empty payload yields the variant's zero settings.
func DecodeFieldSettings(typ FieldType, raw json.RawMessage) (FieldSettings, error) {
	switch typ {
	case FieldText:
		return decodeInto[TextFieldSettings](raw)
	case FieldImage:
		return decodeInto[ImageFieldSettings](raw)
	case FieldChat:
		return decodeInto[ChatFieldSettings](raw)
	case FieldCustom:
		return decodeInto[CustomFieldSettings](raw)
	default:
		return nil, fmt.Errorf("unknown field type %q", typ)
	}
}

// DecodeQuestionSettings builds the question settings variant named by typ.
func DecodeQuestionSettings(typ QuestionType, raw json.RawMessage) (QuestionSettings, error) {
	switch typ {
	case QuestionText:
		return decodeInto[TextQuestionSettings](raw)
	case QuestionRating:
		return decodeInto[RatingQuestionSettings](raw)
	case QuestionLabelSelection:
		return decodeInto[LabelSelectionSettings](raw)
	case QuestionMultiLabelSelection:
		return decodeInto[MultiLabelSelectionSettings](raw)
	case QuestionRanking:
		return decodeInto[RankingSettings](raw)
	case QuestionSpan:
		return decodeInto[SpanSettings](raw)
	default:
		return nil, fmt.Errorf("unknown question type %q", typ)
	}
}

// DecodeMetadataSettings builds the metadata settings variant named by typ.
func DecodeMetadataSettings(typ MetadataType, raw json.RawMessage) (MetadataSettings, error) {
	switch typ {
	case MetadataTerms:
		return decodeInto[TermsMetadataSettings](raw)
	case MetadataInteger:
		return decodeInto[IntegerMetadataSettings](raw)
	case MetadataFloat:
		return decodeInto[FloatMetadataSettings](raw)
	default:
		return nil, fmt.Errorf("unknown metadata property type %q", typ)
	}
}

func decodeInto[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("invalid %T: %w", v, err)
	}
	return v, nil
}
