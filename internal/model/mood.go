package model

// Mood names shipped with the seeder.
const (
	MoodHappy        = "Happy"
	MoodCheerful     = "Cheerful"
	MoodEcstatic     = "Ecstatic"
	MoodGrateful     = "Grateful"
	MoodProfessional = "Professional"
	MoodWarm         = "Warm"
	MoodEnthusiastic = "Enthusiastic"
	MoodHeartfelt    = "Heartfelt"
	MoodInspiring    = "Inspiring"
)

// TemplateMood is a named tone template. SubjectLine and BodyText carry the
// placeholders [Sender Name], [Recipient Name], [Campaign Name], [Sender Note].
type TemplateMood struct {
	Base
	Name        string `json:"name" db:"name"`
	SubjectLine string `json:"subject_line" db:"subject_line"`
	BodyText    string `json:"body_text" db:"body_text"`
}
