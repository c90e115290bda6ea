// internal/domain/models/tagset.go
package models

import (
	"encoding/json"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// StandbyTag marks an instructor as part of the reserve pool.
const StandbyTag = "standby"

// TagSet is an instructor's ordered list of expertise tags.
//
// Stored rows hold the tags as a BSON array, a JSON-encoded string
// (`["Anatomy","standby"]`), a comma-separated string, or nothing at all.
// Decoding accepts every form and degrades anything else to an empty set;
// it never fails.
type TagSet []string

// ParseTags decodes a string-encoded tag list.
func ParseTags(s string) TagSet {
	s = strings.TrimSpace(s)
	if s == "" {
		return TagSet{}
	}
	if strings.HasPrefix(s, "[") {
		var list []string
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return cleanTags(list)
		}
		// Malformed JSON: fall through to delimiter splitting after
		// stripping the brackets and quotes.
		s = strings.Trim(s, "[]")
		s = strings.ReplaceAll(s, `"`, "")
	}
	return cleanTags(strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }))
}

func cleanTags(in []string) TagSet {
	out := make(TagSet, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Has reports whether tag is present, ignoring case and surrounding space.
func (t TagSet) Has(tag string) bool {
	tag = strings.TrimSpace(tag)
	for _, x := range t {
		if strings.EqualFold(strings.TrimSpace(x), tag) {
			return true
		}
	}
	return false
}

// IsStandby reports whether the set carries the standby marker.
func (t TagSet) IsStandby() bool {
	return t.Has(StandbyTag)
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (t *TagSet) UnmarshalBSONValue(typ bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: typ, Value: data}
	switch typ {
	case bsontype.Array:
		arr, ok := rv.ArrayOK()
		if !ok {
			*t = TagSet{}
			return nil
		}
		vals, err := arr.Values()
		if err != nil {
			*t = TagSet{}
			return nil
		}
		list := make([]string, 0, len(vals))
		for _, v := range vals {
			if s, ok := v.StringValueOK(); ok {
				list = append(list, s)
			}
		}
		*t = cleanTags(list)
	case bsontype.String:
		s, _ := rv.StringValueOK()
		*t = ParseTags(s)
	default:
		*t = TagSet{}
	}
	return nil
}

// MarshalBSONValue implements bson.ValueMarshaler. Tags are always written
// as an array.
func (t TagSet) MarshalBSONValue() (bsontype.Type, []byte, error) {
	list := []string(t)
	if list == nil {
		list = []string{}
	}
	return bson.MarshalValue(list)
}

// UnmarshalJSON accepts an array of strings or an encoded string.
func (t *TagSet) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*t = cleanTags(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = ParseTags(s)
		return nil
	}
	*t = TagSet{}
	return nil
}

// MarshalJSON always writes an array, never null.
func (t TagSet) MarshalJSON() ([]byte, error) {
	list := []string(t)
	if list == nil {
		list = []string{}
	}
	return json.Marshal(list)
}
