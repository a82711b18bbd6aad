package models

import "time"

// TraineeRow is one raw applicant record, either a CSV row or a single
// submission payload. Unknown columns are preserved in Extra.
type TraineeRow struct {
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	Password        string            `json:"password,omitempty"`
	Nationality     string            `json:"nationality,omitempty"`
	Gender          string            `json:"gender,omitempty"`
	DateOfBirth     string            `json:"date_of_birth,omitempty"`
	Vulnerable      string            `json:"vulnerable,omitempty"`
	CityOfResidence string            `json:"city_of_residence,omitempty"`
	Bio             string            `json:"bio,omitempty"`
	Status          string            `json:"status,omitempty"`
	Extra           map[string]string `json:"-"`
}

// ProcessedTrainee is the normalized form of a TraineeRow. Name and Email
// are guaranteed non-empty; Email is trimmed and lower-cased.
type ProcessedTrainee struct {
	Name            string
	Email           string
	Password        string
	Status          string
	Nationality     string
	Gender          string
	DateOfBirth     *time.Time
	Vulnerable      string
	CityOfResidence string
	Bio             string

	Role    string
	BatchID string
	Groups  []string

	OtherInfo map[string]interface{}
}

// FirstLast splits the cleaned full name into first name and surname.
func (p ProcessedTrainee) FirstLast() (string, string) {
	first, rest := p.Name, ""
	for i, r := range p.Name {
		if r == ' ' {
			first, rest = p.Name[:i], p.Name[i+1:]
			break
		}
	}
	return first, rest
}

// CreatedResources tracks CMS record ids created during one row's onboarding
// so they can be compensated in reverse order on failure. It is scoped to a
// single row and discarded when the row settles.
type CreatedResources struct {
	UserID    string
	AllUserID string
	ProfileID string
	TraineeID string
}
