package model

// LearnerType classifies the learner's academic or professional standing.
type LearnerType string

const (
	LearnerSchool       LearnerType = "school"
	LearnerCollege      LearnerType = "college"
	LearnerExamPrep     LearnerType = "exam_prep"
	LearnerProfessional LearnerType = "professional"
	LearnerSelfStudy    LearnerType = "self_study"
)

// Profile describes the learner. Only the fields relevant to the selected
// LearnerType are populated.
type Profile struct {
	Name          string      `json:"name"`
	LearnerType   LearnerType `json:"learner_type"`
	SchoolGrade   string      `json:"school_grade,omitempty"`
	CollegeDegree string      `json:"college_degree,omitempty"`
	CollegeStream string      `json:"college_stream,omitempty"`
	ExamName      string      `json:"exam_name,omitempty"`
	FieldOfStudy  string      `json:"field_of_study,omitempty"`
}

// LearningContext derives the learner-context descriptor injected into every
// generation prompt.
func (p Profile) LearningContext() string {
	switch p.LearnerType {
	case LearnerSchool:
		grade := p.SchoolGrade
		if grade == "" {
			grade = "their grade"
		}
		return "School Student in " + grade
	case LearnerCollege:
		degree := p.CollegeDegree
		if degree == "" {
			degree = "University"
		}
		stream := p.CollegeStream
		if stream == "" {
			stream = "their field"
		}
		return degree + " student studying " + stream
	case LearnerExamPrep:
		exam := p.ExamName
		if exam == "" {
			exam = "a competitive exam"
		}
		return "student preparing for the " + exam
	case LearnerProfessional:
		field := p.FieldOfStudy
		if field == "" {
			field = "their industry"
		}
		return "Professional in the field of " + field
	case LearnerSelfStudy:
		field := p.FieldOfStudy
		if field == "" {
			field = "their chosen topic"
		}
		return "self-studying learner focusing on " + field
	default:
		return "University Student"
	}
}
