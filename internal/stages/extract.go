package stages

import (
	"context"
	"sort"

	"surplus/internal/logging"
	"surplus/internal/stage"
	"surplus/internal/textutil"
)

// DefaultMatchThreshold is the minimum key similarity accepted by Extract.
const DefaultMatchThreshold = 0.75

// Extract copies the configured fields out of payload["record"] into
// payload["fields"]. Record keys are matched loosely so "Owner Name" satisfies
// owner_name. With no configured fields every record key is copied under its
// sanitized name.
type Extract struct {
	loggerHolder
	Fields    []string
	Threshold float64
}

// NewExtract returns an extract handler for fields.
func NewExtract(fields []string) *Extract {
	return &Extract{Fields: fields, Threshold: DefaultMatchThreshold}
}

func (e *Extract) Handle(_ context.Context, in stage.Payload) (stage.Payload, error) {
	record, err := mapValue(in, "extract", KeyRecord)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make(map[string]any)
	var missing []any
	if len(e.Fields) == 0 {
		for _, key := range keys {
			fields[textutil.SanitizeToken(key)] = record[key]
		}
	}
	threshold := e.Threshold
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	for _, want := range e.Fields {
		key, ok := textutil.MatchKey(want, keys, threshold)
		if !ok {
			missing = append(missing, want)
			continue
		}
		fields[want] = record[key]
		if key != want {
			e.log().Debug("record key matched", logging.String("field", want), logging.String("record_key", key))
		}
	}

	out := in.Clone()
	out[KeyFields] = fields
	if len(missing) > 0 {
		out[KeyMissing] = missing
		e.log().Info(
			"record missing configured fields",
			logging.Int("missing_count", len(missing)),
			logging.Any("missing_fields", missing),
		)
	} else {
		delete(out, KeyMissing)
	}
	return out, nil
}
