package llm

// BuildResultJSONSchema returns the JSON-Schema (draft 2020-12 subset) of a StructuredResult
// as a generic map. It is used locally to validate inference output.
func BuildResultJSONSchema() map[string]any {
	profile := object(map[string]any{
		"name":                stringProp(),
		"surname":             stringProp(),
		"email":               stringProp(),
		"headline":            stringProp(),
		"professionalSummary": stringProp(),
		"linkedIn":            stringProp(),
		"website":             stringProp(),
		"country":             stringProp(),
		"city":                stringProp(),
		"relocation":          boolProp(),
		"remote":              boolProp(),
	}, "name", "surname", "email", "headline", "professionalSummary", "country", "city", "relocation", "remote")

	work := object(withDates(map[string]any{
		"jobTitle":       stringProp(),
		"company":        stringProp(),
		"location":       stringProp(),
		"employmentType": stringProp(),
		"description":    stringProp(),
	}), "current")
	education := object(withDates(map[string]any{
		"school":       stringProp(),
		"degree":       stringProp(),
		"fieldOfStudy": stringProp(),
		"grade":        stringProp(),
		"description":  stringProp(),
	}), "current")
	license := object(withDates(map[string]any{
		"name":         stringProp(),
		"issuer":       stringProp(),
		"credentialId": stringProp(),
	}), "current")
	skill := object(map[string]any{"name": stringProp()}, "name")
	language := object(map[string]any{
		"name":        stringProp(),
		"proficiency": stringProp(),
	}, "name")
	achievement := object(map[string]any{
		"title":       stringProp(),
		"description": stringProp(),
	}, "title")
	publication := object(map[string]any{
		"title":       stringProp(),
		"publisher":   stringProp(),
		"url":         stringProp(),
		"description": stringProp(),
		"year":        yearProp(),
	}, "title")
	honor := object(map[string]any{
		"title":       stringProp(),
		"issuer":      stringProp(),
		"description": stringProp(),
		"year":        yearProp(),
	}, "title")

	return object(map[string]any{
		"profile":         profile,
		"workExperiences": arrayOf(work),
		"educations":      arrayOf(education),
		"skills":          arrayOf(skill),
		"licenses":        arrayOf(license),
		"languages":       arrayOf(language),
		"achievements":    arrayOf(achievement),
		"publications":    arrayOf(publication),
		"honors":          arrayOf(honor),
	}, "profile", "workExperiences", "educations", "skills", "licenses",
		"languages", "achievements", "publications", "honors")
}

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

func arrayOf(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func withDates(props map[string]any) map[string]any {
	props["startMonth"] = monthProp()
	props["startYear"] = yearProp()
	props["endMonth"] = monthProp()
	props["endYear"] = yearProp()
	props["current"] = boolProp()
	return props
}

func stringProp() map[string]any { return map[string]any{"type": "string"} }
func boolProp() map[string]any   { return map[string]any{"type": "boolean"} }

func monthProp() map[string]any {
	return map[string]any{"type": "integer", "minimum": minMonth, "maximum": maxMonth}
}

func yearProp() map[string]any {
	return map[string]any{"type": "integer", "minimum": minYear, "maximum": maxYear}
}

const (
	minMonth = 1
	maxMonth = 12
	minYear  = 1900
	maxYear  = 2100
)
