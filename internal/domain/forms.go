package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type FormKind string

const (
	FormOffer           FormKind = "offer"
	FormAssessment      FormKind = "assessment"
	FormRevocation      FormKind = "revocation"
	FormReassessment    FormKind = "reassessment"
	FormFinalRevocation FormKind = "final_revocation"
)

func ParseFormKind(s string) (FormKind, error) {
	k := FormKind(s)
	switch k {
	case FormOffer, FormAssessment, FormRevocation, FormReassessment, FormFinalRevocation:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownForm, s)
}

type OfferForm struct {
	Date          string `json:"date"`
	ApplicantName string `json:"applicantName"`
	Position      string `json:"position"`
	EmployerName  string `json:"employerName"`
}

type AssessmentForm struct {
	Employer       string   `json:"employer"`
	Applicant      string   `json:"applicant"`
	Position       string   `json:"position"`
	OfferDate      string   `json:"offerDate"`
	AssessmentDate string   `json:"assessmentDate"`
	ReportDate     string   `json:"reportDate"`
	PerformedBy    string   `json:"performedBy"`
	Duties         []string `json:"duties"`
	Conduct        string   `json:"conduct"`
	HowLongAgo     string   `json:"howLongAgo"`
	Activities     []string `json:"activities"`
	RescindReason  string   `json:"rescindReason"`
}

type RevocationForm struct {
	Date              string   `json:"date"`
	Applicant         string   `json:"applicant"`
	Position          string   `json:"position"`
	Convictions       []string `json:"convictions"`
	NumBusinessDays   int      `json:"numBusinessDays"`
	ContactName       string   `json:"contactName"`
	CompanyName       string   `json:"companyName"`
	Address           string   `json:"address"`
	Phone             string   `json:"phone"`
	SeriousReason     string   `json:"seriousReason"`
	TimeSinceConduct  string   `json:"timeSinceConduct"`
	TimeSinceSentence string   `json:"timeSinceSentence"`
	JobDuties         string   `json:"jobDuties"`
	FitnessReason     string   `json:"fitnessReason"`
}

type ReassessmentForm struct {
	Employer            string `json:"employer"`
	Applicant           string `json:"applicant"`
	Position            string `json:"position"`
	OfferDate           string `json:"offerDate"`
	ReassessmentDate    string `json:"reassessmentDate"`
	ReportDate          string `json:"reportDate"`
	PerformedBy         string `json:"performedBy"`
	ErrorYesNo          string `json:"errorYesNo"`
	WorkExperience      string `json:"workExperience"`
	JobTraining         string `json:"jobTraining"`
	Education           string `json:"education"`
	RehabPrograms       string `json:"rehabPrograms"`
	Counseling          string `json:"counseling"`
	CommunityService    string `json:"communityService"`
	LettersOfSupport    string `json:"lettersOfSupport"`
	ReligiousAttendance string `json:"religiousAttendance"`
	RescindReason       string `json:"rescindReason"`
	EvidenceA           string `json:"evidenceA"`
	EvidenceB           string `json:"evidenceB"`
	EvidenceC           string `json:"evidenceC"`
	EvidenceD           string `json:"evidenceD"`
}

type FinalRevocationForm struct {
	Date                     string   `json:"date"`
	Applicant                string   `json:"applicant"`
	DateOfNotice             string   `json:"dateOfNotice"`
	NoResponse               bool     `json:"noResponse"`
	InfoSubmitted            bool     `json:"infoSubmitted"`
	InfoSubmittedList        string   `json:"infoSubmittedList"`
	ErrorOnReport            string   `json:"errorOnReport"`
	Convictions              []string `json:"convictions"`
	SeriousReason            string   `json:"seriousReason"`
	TimeSinceConduct         string   `json:"timeSinceConduct"`
	TimeSinceSentence        string   `json:"timeSinceSentence"`
	Position                 string   `json:"position"`
	JobDuties                []string `json:"jobDuties"`
	FitnessReason            string   `json:"fitnessReason"`
	Reconsideration          string   `json:"reconsideration"`
	ReconsiderationProcedure string   `json:"reconsiderationProcedure"`
	ContactName              string   `json:"contactName"`
	CompanyName              string   `json:"companyName"`
	Address                  string   `json:"address"`
	Phone                    string   `json:"phone"`
}

// NewForm returns the documented default record for a form kind. Every ordered
// list field starts with exactly one empty placeholder element.
func NewForm(kind FormKind) (any, error) {
	switch kind {
	case FormOffer:
		return &OfferForm{}, nil
	case FormAssessment:
		return &AssessmentForm{Duties: []string{""}, Activities: []string{""}}, nil
	case FormRevocation:
		return &RevocationForm{Convictions: []string{""}}, nil
	case FormReassessment:
		return &ReassessmentForm{}, nil
	case FormFinalRevocation:
		return &FinalRevocationForm{Convictions: []string{""}, JobDuties: []string{""}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownForm, kind)
}

// CloneForm returns a deep copy of a form record. Stores hand out and accept
// copies so no two goroutines ever share a record pointer.
func CloneForm(form any) (any, error) {
	raw, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}
	var out any
	switch form.(type) {
	case *OfferForm:
		out = &OfferForm{}
	case *AssessmentForm:
		out = &AssessmentForm{}
	case *RevocationForm:
		out = &RevocationForm{}
	case *ReassessmentForm:
		out = &ReassessmentForm{}
	case *FinalRevocationForm:
		out = &FinalRevocationForm{}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownForm, form)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// MergeForm applies a partial JSON update onto form: scalar fields present in
// the patch overwrite, absent fields are left alone, list fields present in the
// patch replace the whole list. Unknown keys are rejected. A rejected patch may
// leave form partially written; callers merge into a private copy and discard
// it on error.
func MergeForm(form any, patch []byte) error {
	dec := json.NewDecoder(bytes.NewReader(patch))
	dec.DisallowUnknownFields()
	if err := dec.Decode(form); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: unexpected trailing data", ErrInvalidPatch)
	}
	floorLists(form)
	return nil
}

// floorLists restores the one-placeholder floor on any list a patch replaced
// with an empty array. Ordered lists never drop below one element.
func floorLists(form any) {
	for _, list := range orderedLists(form) {
		if len(*list) == 0 {
			*list = []string{""}
		}
	}
}

func orderedLists(form any) []*[]string {
	switch f := form.(type) {
	case *AssessmentForm:
		return []*[]string{&f.Duties, &f.Activities}
	case *RevocationForm:
		return []*[]string{&f.Convictions}
	case *FinalRevocationForm:
		return []*[]string{&f.Convictions, &f.JobDuties}
	}
	return nil
}

func listField(form any, field string) (*[]string, error) {
	switch f := form.(type) {
	case *AssessmentForm:
		switch field {
		case "duties":
			return &f.Duties, nil
		case "activities":
			return &f.Activities, nil
		}
	case *RevocationForm:
		if field == "convictions" {
			return &f.Convictions, nil
		}
	case *FinalRevocationForm:
		switch field {
		case "convictions":
			return &f.Convictions, nil
		case "jobDuties":
			return &f.JobDuties, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownListField, field)
}

// AppendListItem appends one empty element to an ordered list field.
func AppendListItem(form any, field string) error {
	list, err := listField(form, field)
	if err != nil {
		return err
	}
	*list = append(*list, "")
	return nil
}

// RemoveListItem removes the element at index. A list never shrinks below one
// element; removing the last one is rejected and the list is left unchanged.
func RemoveListItem(form any, field string, index int) error {
	list, err := listField(form, field)
	if err != nil {
		return err
	}
	if len(*list) <= 1 {
		return ErrLastListItem
	}
	if index < 0 || index >= len(*list) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	*list = append((*list)[:index], (*list)[index+1:]...)
	return nil
}

// MergeSuggestions fills suggested values into scalar string fields that are
// currently empty. Non-empty fields, list fields and unknown keys are left
// untouched; the caller decides whether to persist the result.
func MergeSuggestions(form any, suggestions map[string]string) error {
	m, err := formAsMap(form)
	if err != nil {
		return err
	}
	changed := false
	for field, suggested := range suggestions {
		cur, ok := m[field]
		if !ok {
			continue
		}
		s, isString := cur.(string)
		if !isString || strings.TrimSpace(s) != "" || strings.TrimSpace(suggested) == "" {
			continue
		}
		m[field] = suggested
		changed = true
	}
	if !changed {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, form)
}

func formAsMap(form any) (map[string]any, error) {
	raw, err := json.Marshal(form)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
