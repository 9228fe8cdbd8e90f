// Package normalize puts extraction results into canonical form and decides
// whether a result carries any profile data at all.
package normalize

import (
	"cmp"
	"slices"
	"strings"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/entity"
)

const (
	minYear = 1900
	maxYear = 2100
)

// Normalize returns r in canonical form. It never mutates r and is idempotent.
func Normalize(r entity.StructuredResult) entity.StructuredResult {
	out := entity.StructuredResult{
		Profile:         normalizeProfile(r.Profile),
		WorkExperiences: []entity.WorkExperience{},
		Educations:      []entity.Education{},
		Skills:          []entity.Skill{},
		Licenses:        []entity.License{},
		Languages:       []entity.Language{},
		Achievements:    []entity.Achievement{},
		Publications:    []entity.Publication{},
		Honors:          []entity.Honor{},
	}

	for _, w := range r.WorkExperiences {
		w.JobTitle = clean(w.JobTitle)
		w.Company = clean(w.Company)
		w.Location = clean(w.Location)
		w.EmploymentType = clean(w.EmploymentType)
		w.Description = strings.TrimSpace(w.Description)
		w.DateRange = normalizeDates(w.DateRange)
		if w.JobTitle == "" && w.Company == "" && w.Description == "" {
			continue
		}
		out.WorkExperiences = append(out.WorkExperiences, w)
	}
	slices.SortStableFunc(out.WorkExperiences, func(a, b entity.WorkExperience) int {
		if c := compareDates(a.DateRange, b.DateRange); c != 0 {
			return c
		}
		return cmp.Or(foldCompare(a.JobTitle, b.JobTitle), foldCompare(a.Company, b.Company))
	})

	for _, e := range r.Educations {
		e.School = clean(e.School)
		e.Degree = clean(e.Degree)
		e.FieldOfStudy = clean(e.FieldOfStudy)
		e.Grade = clean(e.Grade)
		e.Description = strings.TrimSpace(e.Description)
		e.DateRange = normalizeDates(e.DateRange)
		if e.School == "" && e.Degree == "" && e.FieldOfStudy == "" {
			continue
		}
		out.Educations = append(out.Educations, e)
	}
	slices.SortStableFunc(out.Educations, func(a, b entity.Education) int {
		if c := compareDates(a.DateRange, b.DateRange); c != 0 {
			return c
		}
		return cmp.Or(foldCompare(a.School, b.School), foldCompare(a.Degree, b.Degree))
	})

	seen := map[string]bool{}
	for _, s := range r.Skills {
		s.Name = clean(s.Name)
		key := strings.ToLower(s.Name)
		if s.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out.Skills = append(out.Skills, s)
	}
	slices.SortStableFunc(out.Skills, func(a, b entity.Skill) int { return foldCompare(a.Name, b.Name) })

	for _, l := range r.Licenses {
		l.Name = clean(l.Name)
		l.Issuer = clean(l.Issuer)
		l.CredentialID = strings.TrimSpace(l.CredentialID)
		l.DateRange = normalizeDates(l.DateRange)
		if l.Name == "" {
			continue
		}
		out.Licenses = append(out.Licenses, l)
	}
	slices.SortStableFunc(out.Licenses, func(a, b entity.License) int {
		return cmp.Or(foldCompare(a.Name, b.Name), foldCompare(a.Issuer, b.Issuer))
	})

	seen = map[string]bool{}
	for _, l := range r.Languages {
		l.Name = clean(l.Name)
		l.Proficiency = clean(l.Proficiency)
		key := strings.ToLower(l.Name)
		if l.Name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out.Languages = append(out.Languages, l)
	}
	slices.SortStableFunc(out.Languages, func(a, b entity.Language) int { return foldCompare(a.Name, b.Name) })

	for _, a := range r.Achievements {
		a.Title = clean(a.Title)
		a.Description = strings.TrimSpace(a.Description)
		if a.Title == "" && a.Description == "" {
			continue
		}
		out.Achievements = append(out.Achievements, a)
	}
	slices.SortStableFunc(out.Achievements, func(a, b entity.Achievement) int { return foldCompare(a.Title, b.Title) })

	for _, p := range r.Publications {
		p.Title = clean(p.Title)
		p.Publisher = clean(p.Publisher)
		p.URL = strings.TrimSpace(p.URL)
		p.Description = strings.TrimSpace(p.Description)
		p.Year = validYear(p.Year)
		if p.Title == "" {
			continue
		}
		out.Publications = append(out.Publications, p)
	}
	slices.SortStableFunc(out.Publications, func(a, b entity.Publication) int { return foldCompare(a.Title, b.Title) })

	for _, h := range r.Honors {
		h.Title = clean(h.Title)
		h.Issuer = clean(h.Issuer)
		h.Description = strings.TrimSpace(h.Description)
		h.Year = validYear(h.Year)
		if h.Title == "" {
			continue
		}
		out.Honors = append(out.Honors, h)
	}
	slices.SortStableFunc(out.Honors, func(a, b entity.Honor) int { return foldCompare(a.Title, b.Title) })

	return out
}

// IsEmpty reports whether r carries no identifying profile data: no name, no
// surname, and no work experience, education or skills.
func IsEmpty(r entity.StructuredResult) bool {
	return strings.TrimSpace(r.Profile.Name) == "" &&
		strings.TrimSpace(r.Profile.Surname) == "" &&
		len(r.WorkExperiences) == 0 &&
		len(r.Educations) == 0 &&
		len(r.Skills) == 0
}

func normalizeProfile(p entity.Profile) entity.Profile {
	p.Name = clean(p.Name)
	p.Surname = clean(p.Surname)
	p.Email = strings.TrimSpace(p.Email)
	p.Headline = clean(p.Headline)
	p.ProfessionalSummary = strings.TrimSpace(p.ProfessionalSummary)
	p.LinkedIn = strings.TrimSpace(p.LinkedIn)
	p.Website = strings.TrimSpace(p.Website)
	p.Country = clean(p.Country)
	p.City = clean(p.City)
	return p
}

func normalizeDates(d entity.DateRange) entity.DateRange {
	d.StartMonth = validMonth(d.StartMonth)
	d.StartYear = validYear(d.StartYear)
	if d.Current {
		d.EndMonth, d.EndYear = nil, nil
		return d
	}
	d.EndMonth = validMonth(d.EndMonth)
	d.EndYear = validYear(d.EndYear)
	return d
}

// compareDates orders current entries first, then most recent end, then most recent start.
func compareDates(a, b entity.DateRange) int {
	if a.Current != b.Current {
		if a.Current {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(dateKey(b.EndYear, b.EndMonth), dateKey(a.EndYear, a.EndMonth)); c != 0 {
		return c
	}
	return cmp.Compare(dateKey(b.StartYear, b.StartMonth), dateKey(a.StartYear, a.StartMonth))
}

func dateKey(year, month *int) int {
	k := 0
	if year != nil {
		k = *year * 100
	}
	if month != nil {
		k += *month
	}
	return k
}

func validMonth(m *int) *int {
	if m == nil || *m < 1 || *m > 12 {
		return nil
	}
	v := *m
	return &v
}

func validYear(y *int) *int {
	if y == nil || *y < minYear || *y > maxYear {
		return nil
	}
	v := *y
	return &v
}

// clean trims and collapses internal whitespace runs.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func foldCompare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
