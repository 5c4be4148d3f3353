package normalizer

import (
	"encoding/json"
)

// Engagement and metadata fields no view ever reads, stripped from every raw
// record before it is parsed or stored.
var unusedFields = []string{
	"bookmarked",
	"coordinates",
	"display_text_range",
	"ext",
	"ext_edit_control",
	"ext_views",
	"geo",
	"id",
	"in_reply_to_status_id",
	"in_reply_to_user_id",
	"lang",
	"place",
	"possibly_sensitive",
	"possibly_sensitive_editable",
	"supplemental_language",
	"truncated",
	"user_id",
}

var unusedMediaFields = []string{
	"additional_media_info",
	"ext_sensitive_media_warning",
	"features",
	"id",
	"indices",
}

// Optimize strips the fixed denylist of unused fields from one raw post
// record. It is pure and total: unknown or missing fields are skipped, a
// record that fails to parse as an object is returned untouched.
func Optimize(record json.RawMessage) json.RawMessage {
	var tweet map[string]json.RawMessage
	if err := json.Unmarshal(record, &tweet); err != nil {
		return record
	}

	for _, field := range unusedFields {
		delete(tweet, field)
	}

	for _, key := range []string{"entities", "extended_entities"} {
		raw, ok := tweet[key]
		if !ok {
			continue
		}
		stripped, changed := stripMediaFields(raw)
		if changed {
			tweet[key] = stripped
		}
	}

	out, err := json.Marshal(tweet)
	if err != nil {
		return record
	}
	return out
}

func stripMediaFields(entities json.RawMessage) (json.RawMessage, bool) {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(entities, &parsed); err != nil {
		return entities, false
	}
	rawMedia, ok := parsed["media"]
	if !ok {
		return entities, false
	}

	var media []map[string]json.RawMessage
	if err := json.Unmarshal(rawMedia, &media); err != nil {
		return entities, false
	}
	for _, m := range media {
		for _, field := range unusedMediaFields {
			delete(m, field)
		}
	}

	newMedia, err := json.Marshal(media)
	if err != nil {
		return entities, false
	}
	parsed["media"] = newMedia

	out, err := json.Marshal(parsed)
	if err != nil {
		return entities, false
	}
	return out, true
}
