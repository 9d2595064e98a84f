package scorer

import (
	"math"

	"github.com/sells-group/practice-metrics/internal/config"
	"github.com/sells-group/practice-metrics/internal/model"
)

// profileField reports whether a named profile field is filled in.
type profileField struct {
	Name    string
	Present func(model.Profile) bool
}

func stringField(name string, get func(model.Profile) string) profileField {
	return profileField{Name: name, Present: func(p model.Profile) bool { return get(p) != "" }}
}

var (
	fieldFirstName      = stringField("first_name", func(p model.Profile) string { return p.FirstName })
	fieldLastName       = stringField("last_name", func(p model.Profile) string { return p.LastName })
	fieldEmail          = stringField("email", func(p model.Profile) string { return p.Email })
	fieldPhoneNumber    = stringField("phone_number", func(p model.Profile) string { return p.PhoneNumber })
	fieldFirmName       = stringField("firm_name", func(p model.Profile) string { return p.FirmName })
	fieldSpecialization = stringField("specialization", func(p model.Profile) string { return p.Specialization })
	fieldYears          = profileField{Name: "years_of_practice", Present: model.Profile.HasYearsOfPractice}
	fieldAddress        = stringField("address", func(p model.Profile) string { return p.Address })
	fieldHomeAddress    = stringField("home_address", func(p model.Profile) string { return p.HomeAddress })
	fieldRoleID         = stringField("role_id", func(p model.Profile) string { return p.RoleID })
	fieldGender         = stringField("gender", func(p model.Profile) string { return p.Gender })
	fieldAvatarURL      = stringField("avatar_url", func(p model.Profile) string { return p.AvatarURL })
)

// RequiredProfileFields are the fields counted by the workflow completeness
// score.
var RequiredProfileFields = []profileField{
	fieldFirstName, fieldLastName, fieldEmail, fieldPhoneNumber,
	fieldFirmName, fieldSpecialization, fieldYears, fieldAddress,
}

// Workflow is the heuristic 0-100 workflow completeness of a profile.
type Workflow struct {
	Score          int      `json:"score"`
	PresentFields  int      `json:"present_fields"`
	RequiredFields int      `json:"required_fields"`
	MissingFields  []string `json:"missing_fields,omitempty"`
}

// ComputeWorkflow scores a profile: a baseline for having an account, a
// share of the field points proportional to the required fields present,
// and fixed bonuses for certifications and an avatar. Capped at 100.
func ComputeWorkflow(p model.Profile, ids []model.ProfessionalID, w config.WorkflowWeights) Workflow {
	wf := Workflow{RequiredFields: len(RequiredProfileFields)}
	for _, f := range RequiredProfileFields {
		if f.Present(p) {
			wf.PresentFields++
		} else {
			wf.MissingFields = append(wf.MissingFields, f.Name)
		}
	}

	score := w.Baseline
	if wf.RequiredFields > 0 {
		score += math.Round(float64(wf.PresentFields) / float64(wf.RequiredFields) * w.RequiredFields)
	}
	if model.HasCertifications(ids) {
		score += w.Certifications
	}
	if p.AvatarURL != "" {
		score += w.Avatar
	}
	wf.Score = int(clamp(score, 0, 100))
	return wf
}

type fieldGroup struct {
	fields []profileField
	points float64
}

// profileCompletionGroups sum to 100 points.
var profileCompletionGroups = []fieldGroup{
	{fields: []profileField{fieldFirstName, fieldLastName, fieldEmail, fieldPhoneNumber}, points: 30},
	{fields: []profileField{fieldFirmName, fieldSpecialization, fieldYears, fieldRoleID}, points: 40},
	{fields: []profileField{fieldAddress, fieldHomeAddress}, points: 15},
	{fields: []profileField{fieldGender, fieldAvatarURL}, points: 15},
}

const certificationCompletionBonus = 10

// ProfileCompletion returns how much of the profile is filled in, 0-100.
// Each field group earns its points in proportion to the fields present;
// certifications add a bonus, capped at 100.
func ProfileCompletion(p model.Profile, ids []model.ProfessionalID) int {
	var total float64
	for _, g := range profileCompletionGroups {
		var present int
		for _, f := range g.fields {
			if f.Present(p) {
				present++
			}
		}
		total += float64(present) / float64(len(g.fields)) * g.points
	}
	if model.HasCertifications(ids) {
		total = math.Min(100, total+certificationCompletionBonus)
	}
	return int(math.Round(total))
}
