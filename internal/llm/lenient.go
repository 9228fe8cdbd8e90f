package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindBool
	kindMonth
	kindYear
)

var dateFields = map[string]fieldKind{
	"startMonth": kindMonth,
	"startYear":  kindYear,
	"endMonth":   kindMonth,
	"endYear":    kindYear,
	"current":    kindBool,
}

var profileFields = map[string]fieldKind{
	"name": kindString, "surname": kindString, "email": kindString, "headline": kindString,
	"professionalSummary": kindString, "linkedIn": kindString, "website": kindString,
	"country": kindString, "city": kindString, "relocation": kindBool, "remote": kindBool,
}

// itemFields describes each array's item shape. The first listed key receives
// bare string items (e.g. "skills": ["Go", "SQL"]).
var itemFields = map[string]struct {
	primary string
	fields  map[string]fieldKind
}{
	"workExperiences": {"jobTitle", withDateKinds(map[string]fieldKind{
		"jobTitle": kindString, "company": kindString, "location": kindString,
		"employmentType": kindString, "description": kindString,
	})},
	"educations": {"school", withDateKinds(map[string]fieldKind{
		"school": kindString, "degree": kindString, "fieldOfStudy": kindString,
		"grade": kindString, "description": kindString,
	})},
	"skills": {"name", map[string]fieldKind{"name": kindString}},
	"licenses": {"name", withDateKinds(map[string]fieldKind{
		"name": kindString, "issuer": kindString, "credentialId": kindString,
	})},
	"languages":    {"name", map[string]fieldKind{"name": kindString, "proficiency": kindString}},
	"achievements": {"title", map[string]fieldKind{"title": kindString, "description": kindString}},
	"publications": {"title", map[string]fieldKind{
		"title": kindString, "publisher": kindString, "url": kindString,
		"description": kindString, "year": kindYear,
	}},
	"honors": {"title", map[string]fieldKind{
		"title": kindString, "issuer": kindString, "description": kindString, "year": kindYear,
	}},
}

func withDateKinds(m map[string]fieldKind) map[string]fieldKind {
	for k, v := range dateFields {
		m[k] = v
	}
	return m
}

var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "sept": 9, "oct": 10, "nov": 11, "dec": 12,
}

// SanitizeResult coerces a loosely-shaped inference object into the result schema:
// missing keys are filled, nulls become defaults, numeric strings become integers,
// out-of-range dates and unknown keys are dropped. It returns the adjusted paths.
func SanitizeResult(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var changed []string
	out := make(map[string]any, len(itemFields)+1)

	profile, ok := m["profile"].(map[string]any)
	if !ok {
		changed = append(changed, "profile(missing)")
		profile = map[string]any{}
	}
	out["profile"] = sanitizeObject(profile, profileFields, "profile", &changed)

	for key, spec := range itemFields {
		raw, present := m[key]
		items, isArray := raw.([]any)
		if !isArray {
			if present && raw != nil {
				changed = append(changed, key+"(type)")
			} else {
				changed = append(changed, key+"(missing)")
			}
			out[key] = []any{}
			continue
		}
		clean := make([]any, 0, len(items))
		for i, item := range items {
			path := fmt.Sprintf("%s[%d]", key, i)
			switch t := item.(type) {
			case map[string]any:
				clean = append(clean, sanitizeObject(t, spec.fields, path, &changed))
			case string:
				clean = append(clean, sanitizeObject(map[string]any{spec.primary: t}, spec.fields, path, &changed))
				changed = append(changed, path+"(string)")
			default:
				changed = append(changed, path+"(dropped)")
			}
		}
		out[key] = clean
	}

	for k := range m {
		if _, known := itemFields[k]; !known && k != "profile" {
			changed = append(changed, k+"(unknown)")
		}
	}
	sort.Strings(changed)

	b, err := json.Marshal(out)
	if err != nil {
		return nil, nil, err
	}
	return b, changed, nil
}

func sanitizeObject(in map[string]any, fields map[string]fieldKind, path string, changed *[]string) map[string]any {
	out := make(map[string]any, len(fields))
	for name, kind := range fields {
		v, present := in[name]
		switch kind {
		case kindString:
			out[name] = coerceString(v)
		case kindBool:
			out[name] = coerceBool(v)
		case kindMonth:
			if n, ok := coerceInt(v, true); ok && n >= minMonth && n <= maxMonth {
				out[name] = n
			} else if present && v != nil {
				*changed = append(*changed, path+"."+name)
			}
		case kindYear:
			if n, ok := coerceInt(v, false); ok && n >= minYear && n <= maxYear {
				out[name] = n
			} else if present && v != nil {
				*changed = append(*changed, path+"."+name)
				if name == "endYear" && isPresentWord(v) {
					in["current"] = true
				}
			}
		}
	}
	// "endYear": "Present" marks the entry current.
	if _, ok := fields["current"]; ok && coerceBool(in["current"]) {
		out["current"] = true
	}
	for k := range in {
		if _, ok := fields[k]; !ok {
			*changed = append(*changed, path+"."+k+"(unknown)")
		}
	}
	return out
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true
		}
	case float64:
		return t != 0
	}
	return false
}

func coerceInt(v any, allowMonthNames bool) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		if allowMonthNames {
			key := strings.ToLower(strings.TrimSuffix(s, "."))
			if n, ok := monthNames[key]; ok {
				return n, true
			}
			if len(key) > 3 {
				if n, ok := monthNames[key[:3]]; ok {
					return n, true
				}
			}
		}
	}
	return 0, false
}

func isPresentWord(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "present", "current", "now", "ongoing", "today":
		return true
	}
	return false
}
