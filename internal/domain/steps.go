package domain

import (
	"fmt"
	"strings"
)

// FieldRule is one entry in a part's required-field set. List fields require at
// least one non-empty element; MinInt > 0 marks a numeric field with a legal
// floor (the revocation response window).
type FieldRule struct {
	Name   string
	List   bool
	MinInt int
}

// Part is one sub-form of a step, presented as a modal and gated by its own
// completeness predicate.
type Part struct {
	Name   string
	Fields []FieldRule
}

type StepDef struct {
	Step  int
	Name  string
	Form  FormKind
	Parts []Part
}

var steps = map[int]StepDef{
	StepOffer: {
		Step: StepOffer, Name: "Conditional Job Offer", Form: FormOffer,
		Parts: []Part{
			{Name: "Offer Letter", Fields: []FieldRule{
				{Name: "date"}, {Name: "applicantName"}, {Name: "position"}, {Name: "employerName"},
			}},
		},
	},
	StepAssessment: {
		Step: StepAssessment, Name: "Individualized Assessment", Form: FormAssessment,
		Parts: []Part{
			{Name: "Parties", Fields: []FieldRule{
				{Name: "employer"}, {Name: "applicant"}, {Name: "position"}, {Name: "offerDate"},
			}},
			{Name: "Assessment Details", Fields: []FieldRule{
				{Name: "assessmentDate"}, {Name: "reportDate"}, {Name: "performedBy"},
			}},
			{Name: "Job Duties", Fields: []FieldRule{
				{Name: "duties", List: true},
			}},
			{Name: "Conduct", Fields: []FieldRule{
				{Name: "conduct"}, {Name: "howLongAgo"},
			}},
			{Name: "Activities Since", Fields: []FieldRule{
				{Name: "activities", List: true}, {Name: "rescindReason"},
			}},
		},
	},
	StepRevocation: {
		Step: StepRevocation, Name: "Preliminary Revocation Notice", Form: FormRevocation,
		Parts: []Part{
			{Name: "Notice Header", Fields: []FieldRule{
				{Name: "date"}, {Name: "applicant"}, {Name: "position"}, {Name: "convictions", List: true},
			}},
			{Name: "Response Window", Fields: []FieldRule{
				{Name: "numBusinessDays", MinInt: MinResponseBusinessDays},
				{Name: "contactName"}, {Name: "companyName"}, {Name: "address"}, {Name: "phone"},
			}},
			{Name: "Reasoning", Fields: []FieldRule{
				{Name: "seriousReason"}, {Name: "timeSinceConduct"}, {Name: "timeSinceSentence"},
			}},
			{Name: "Fitness", Fields: []FieldRule{
				{Name: "jobDuties"}, {Name: "fitnessReason"},
			}},
		},
	},
	StepReassessment: {
		Step: StepReassessment, Name: "Individualized Reassessment", Form: FormReassessment,
		Parts: []Part{
			{Name: "Parties", Fields: []FieldRule{
				{Name: "employer"}, {Name: "applicant"}, {Name: "position"}, {Name: "offerDate"},
			}},
			{Name: "Reassessment Details", Fields: []FieldRule{
				{Name: "reassessmentDate"}, {Name: "reportDate"}, {Name: "performedBy"}, {Name: "errorYesNo"},
			}},
			{Name: "Evidence of Rehabilitation", Fields: []FieldRule{
				{Name: "workExperience"}, {Name: "jobTraining"}, {Name: "education"},
				{Name: "rehabPrograms"}, {Name: "counseling"}, {Name: "communityService"},
				{Name: "lettersOfSupport"}, {Name: "religiousAttendance"}, {Name: "rescindReason"},
			}},
		},
	},
	StepFinalRevocation: {
		Step: StepFinalRevocation, Name: "Final Revocation Notice", Form: FormFinalRevocation,
		Parts: []Part{
			{Name: "Notice Header", Fields: []FieldRule{
				{Name: "date"}, {Name: "applicant"}, {Name: "dateOfNotice"},
			}},
			{Name: "Convictions", Fields: []FieldRule{
				{Name: "convictions", List: true}, {Name: "seriousReason"},
				{Name: "timeSinceConduct"}, {Name: "timeSinceSentence"},
			}},
			{Name: "Fitness", Fields: []FieldRule{
				{Name: "position"}, {Name: "jobDuties", List: true}, {Name: "fitnessReason"},
			}},
			{Name: "Contact", Fields: []FieldRule{
				{Name: "contactName"}, {Name: "companyName"}, {Name: "address"}, {Name: "phone"},
			}},
		},
	},
}

func StepFor(step int) (StepDef, error) {
	def, ok := steps[step]
	if !ok {
		return StepDef{}, fmt.Errorf("%w: %d", ErrUnknownStep, step)
	}
	return def, nil
}

// MissingPartFields evaluates one part's completeness predicate over the form
// and returns the required fields that are still empty. Purely local; never
// touches storage.
func MissingPartFields(form any, step, part int) ([]string, error) {
	def, err := StepFor(step)
	if err != nil {
		return nil, err
	}
	if part < 1 || part > len(def.Parts) {
		return nil, fmt.Errorf("step %d has no part %d", step, part)
	}
	m, err := formAsMap(form)
	if err != nil {
		return nil, err
	}
	return missingFields(m, def.Parts[part-1].Fields), nil
}

// MissingStepFields evaluates the aggregate predicate over every part of the
// step, the gate for "Review & Send".
func MissingStepFields(form any, step int) ([]string, error) {
	def, err := StepFor(step)
	if err != nil {
		return nil, err
	}
	m, err := formAsMap(form)
	if err != nil {
		return nil, err
	}
	missing := make([]string, 0)
	for _, part := range def.Parts {
		missing = append(missing, missingFields(m, part.Fields)...)
	}
	return missing, nil
}

func missingFields(m map[string]any, rules []FieldRule) []string {
	missing := make([]string, 0)
	for _, rule := range rules {
		if !fieldSatisfied(m[rule.Name], rule) {
			missing = append(missing, rule.Name)
		}
	}
	return missing
}

func fieldSatisfied(v any, rule FieldRule) bool {
	switch {
	case rule.List:
		items, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				return true
			}
		}
		return false
	case rule.MinInt > 0:
		n, ok := v.(float64)
		return ok && int(n) >= rule.MinInt
	default:
		s, ok := v.(string)
		return ok && strings.TrimSpace(s) != ""
	}
}
