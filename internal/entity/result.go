package entity

import "encoding/json"

// StructuredResult is the fixed-shape professional profile produced by an extraction.
// Every top-level key is always present when encoded, arrays encode as [] never null.
type StructuredResult struct {
	Profile         Profile          `json:"profile"`
	WorkExperiences []WorkExperience `json:"workExperiences"`
	Educations      []Education      `json:"educations"`
	Skills          []Skill          `json:"skills"`
	Licenses        []License        `json:"licenses"`
	Languages       []Language       `json:"languages"`
	Achievements    []Achievement    `json:"achievements"`
	Publications    []Publication    `json:"publications"`
	Honors          []Honor          `json:"honors"`
}

type Profile struct {
	Name                string `json:"name"`
	Surname             string `json:"surname"`
	Email               string `json:"email"`
	Headline            string `json:"headline"`
	ProfessionalSummary string `json:"professionalSummary"`
	LinkedIn            string `json:"linkedIn,omitempty"`
	Website             string `json:"website,omitempty"`
	Country             string `json:"country"`
	City                string `json:"city"`
	Relocation          bool   `json:"relocation"`
	Remote              bool   `json:"remote"`
}

// DateRange is carried by every date-bearing entry. Current implies no end fields.
type DateRange struct {
	StartMonth *int `json:"startMonth,omitempty"`
	StartYear  *int `json:"startYear,omitempty"`
	EndMonth   *int `json:"endMonth,omitempty"`
	EndYear    *int `json:"endYear,omitempty"`
	Current    bool `json:"current"`
}

type WorkExperience struct {
	JobTitle       string `json:"jobTitle"`
	Company        string `json:"company"`
	Location       string `json:"location"`
	EmploymentType string `json:"employmentType"`
	Description    string `json:"description"`
	DateRange
}

type Education struct {
	School       string `json:"school"`
	Degree       string `json:"degree"`
	FieldOfStudy string `json:"fieldOfStudy"`
	Grade        string `json:"grade"`
	Description  string `json:"description"`
	DateRange
}

type Skill struct {
	Name string `json:"name"`
}

type License struct {
	Name         string `json:"name"`
	Issuer       string `json:"issuer"`
	CredentialID string `json:"credentialId"`
	DateRange
}

type Language struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency"`
}

type Achievement struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Publication struct {
	Title       string `json:"title"`
	Publisher   string `json:"publisher"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Year        *int   `json:"year,omitempty"`
}

type Honor struct {
	Title       string `json:"title"`
	Issuer      string `json:"issuer"`
	Description string `json:"description"`
	Year        *int   `json:"year,omitempty"`
}

// TopLevelKeys lists the keys every encoded result carries, in canonical order.
var TopLevelKeys = []string{
	"profile", "workExperiences", "educations", "skills", "licenses",
	"languages", "achievements", "publications", "honors",
}

// NewStructuredResult returns the empty template with every array allocated.
func NewStructuredResult() *StructuredResult {
	r := &StructuredResult{}
	r.EnsureShape()
	return r
}

// EnsureShape replaces nil arrays with empty ones.
func (r *StructuredResult) EnsureShape() {
	if r.WorkExperiences == nil {
		r.WorkExperiences = []WorkExperience{}
	}
	if r.Educations == nil {
		r.Educations = []Education{}
	}
	if r.Skills == nil {
		r.Skills = []Skill{}
	}
	if r.Licenses == nil {
		r.Licenses = []License{}
	}
	if r.Languages == nil {
		r.Languages = []Language{}
	}
	if r.Achievements == nil {
		r.Achievements = []Achievement{}
	}
	if r.Publications == nil {
		r.Publications = []Publication{}
	}
	if r.Honors == nil {
		r.Honors = []Honor{}
	}
}

// MarshalJSON encodes the result with every array present.
func (r StructuredResult) MarshalJSON() ([]byte, error) {
	type shaped StructuredResult
	r.EnsureShape()
	return json.Marshal(shaped(r))
}
