package llm

import (
	"strings"
)

// SystemInstruction is the fixed extraction policy sent with every request.
const SystemInstruction = "You are a resume parser. Extract the candidate's professional profile from the document provided " +
	"and return ONLY a single JSON object with exactly the keys of the template. " +
	"Do not fabricate: never invent names, employers, schools, dates or contact details that are not in the document. " +
	"Do not leave present data empty: if the document states a value, it MUST appear in the output. " +
	"Use empty strings for absent text, false for absent booleans, and [] for absent lists. " +
	"Months are integers 1-12 and years are four-digit integers; omit a month or year that is not stated. " +
	"Set current=true for an ongoing role or study and then omit endMonth and endYear. " +
	"Keep the document's order for experiences and education. Do not wrap the JSON in markdown."

// ResultTemplate is the empty-schema example of the required output shape.
const ResultTemplate = `{
  "profile": {
    "name": "", "surname": "", "email": "", "headline": "", "professionalSummary": "",
    "linkedIn": "", "website": "", "country": "", "city": "",
    "relocation": false, "remote": false
  },
  "workExperiences": [
    {"jobTitle": "", "company": "", "location": "", "employmentType": "", "description": "",
     "startMonth": null, "startYear": null, "endMonth": null, "endYear": null, "current": false}
  ],
  "educations": [
    {"school": "", "degree": "", "fieldOfStudy": "", "grade": "", "description": "",
     "startMonth": null, "startYear": null, "endMonth": null, "endYear": null, "current": false}
  ],
  "skills": [{"name": ""}],
  "licenses": [
    {"name": "", "issuer": "", "credentialId": "",
     "startMonth": null, "startYear": null, "endMonth": null, "endYear": null, "current": false}
  ],
  "languages": [{"name": "", "proficiency": ""}],
  "achievements": [{"title": "", "description": ""}],
  "publications": [{"title": "", "publisher": "", "url": "", "description": "", "year": null}],
  "honors": [{"title": "", "issuer": "", "description": "", "year": null}]
}`

// BuildUserPrompt packages the template and, when present, the document text.
// Text is capped at maxChars runes.
func BuildUserPrompt(text string, withImages bool, maxChars int) string {
	var b strings.Builder
	b.WriteString("Fill this template with the candidate's data (the example entries only show the shape of each list item):\n")
	b.WriteString(ResultTemplate)
	b.WriteString("\n")

	text = strings.TrimSpace(text)
	if text != "" {
		b.WriteString("\nDocument text:\n")
		b.WriteString(truncateRunes(text, maxChars))
		b.WriteString("\n")
	}
	if withImages {
		if text != "" {
			b.WriteString("\nThe attached page images show the same document; use them to recover anything the text lost.\n")
		} else {
			b.WriteString("\nThe document is attached as page images.\n")
		}
	}
	b.WriteString("\nReturn ONLY JSON that matches the template.")
	return b.String()
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "\n…(truncated)"
}
