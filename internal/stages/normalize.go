package stages

import (
	"context"
	"fmt"
	"strings"

	"surplus/internal/services"
	"surplus/internal/stage"
	"surplus/internal/textutil"
)

// Normalize cleans payload["fields"]: whitespace is collapsed everywhere,
// *_name fields are title-cased, *phone* fields are formatted as US numbers,
// and *amount* fields are parsed into <field>_cents with a canonical display
// string. An unparseable amount fails the stage.
type Normalize struct {
	loggerHolder
}

// NewNormalize returns a normalize handler.
func NewNormalize() *Normalize {
	return &Normalize{}
}

func (n *Normalize) Handle(_ context.Context, in stage.Payload) (stage.Payload, error) {
	fields, err := mapValue(in, "normalize", KeyFields)
	if err != nil {
		return nil, err
	}
	normalized := make(map[string]any, len(fields))
	for key, value := range fields {
		text, ok := value.(string)
		if !ok {
			normalized[key] = value
			continue
		}
		text = textutil.CollapseWhitespace(text)
		lower := strings.ToLower(key)
		switch {
		case text == "":
			normalized[key] = text
		case strings.Contains(lower, "amount"):
			cents, err := textutil.ParseAmount(text)
			if err != nil {
				return nil, services.Wrap(services.ErrValidation, "normalize", "parse amount", fmt.Sprintf("field %s", key), err)
			}
			normalized[key] = textutil.FormatAmount(cents)
			normalized[key+"_cents"] = cents
		case strings.Contains(lower, "phone"):
			formatted, _ := textutil.FormatUSPhone(text)
			normalized[key] = formatted
		case lower == "name" || strings.HasSuffix(lower, "_name"):
			normalized[key] = textutil.TitleName(text)
		default:
			normalized[key] = text
		}
	}
	out := in.Clone()
	out[KeyFields] = normalized
	return out, nil
}
