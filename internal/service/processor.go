package service

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/tenacademy/onboarding-api/internal/models"
	appErrors "github.com/tenacademy/onboarding-api/pkg/errors"
	"github.com/tenacademy/onboarding-api/pkg/password"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// essentialColumns are the CSV columns with dedicated fields; anything else
// is folded into other_info.
var essentialColumns = map[string]struct{}{
	"name": {}, "email": {}, "password": {}, "status": {},
	"nationality": {}, "gender": {}, "date_of_birth": {},
	"vulnerable": {}, "bio": {}, "city_of_residence": {},
	"other_info": {},
}

// columnAliases maps historical sheet headers onto canonical column names.
var columnAliases = map[string]string{
	"full name": "name",
	"fullname":  "name",
	"country":   "nationality",
}

// dobLayouts are the accepted date_of_birth formats.
var dobLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006"}

// Processor normalizes and validates applicant rows. It is a pure function
// over the row and the batch's config-derived defaults.
type Processor struct {
	cfg models.BatchConfig
}

// NewProcessor builds a processor bound to one batch config.
func NewProcessor(cfg models.BatchConfig) *Processor {
	return &Processor{cfg: cfg}
}

// CanonicalColumn normalizes a CSV header to its canonical column name.
func CanonicalColumn(header string) string {
	key := strings.ToLower(strings.TrimSpace(header))
	if alias, ok := columnAliases[key]; ok {
		return alias
	}
	return key
}

// ProcessRow validates and normalizes one raw row. Name and email are
// guaranteed non-empty on success; the email is stored trimmed and
// lower-cased. No CMS call happens before this validation passes.
func (p *Processor) ProcessRow(raw map[string]string) (models.ProcessedTrainee, error) {
	row := make(map[string]string, len(raw))
	for k, v := range raw {
		row[CanonicalColumn(k)] = v
	}

	name, err := cleanName(row["name"])
	if err != nil {
		return models.ProcessedTrainee{}, err
	}

	email := strings.ToLower(strings.TrimSpace(row["email"]))
	if email == "" {
		return models.ProcessedTrainee{}, appErrors.Clone(appErrors.ErrValidation, "email is required")
	}
	if !emailPattern.MatchString(email) {
		return models.ProcessedTrainee{}, appErrors.Clone(appErrors.ErrValidation, "email has invalid format")
	}

	processed := models.ProcessedTrainee{
		Name:            name,
		Email:           email,
		Password:        strings.TrimSpace(row["password"]),
		Status:          strings.TrimSpace(row["status"]),
		Nationality:     cleanOptional(row["nationality"]),
		Gender:          cleanOptional(row["gender"]),
		Vulnerable:      cleanOptional(row["vulnerable"]),
		CityOfResidence: cleanOptional(row["city_of_residence"]),
		Bio:             cleanOptional(row["bio"]),
		Role:            p.cfg.Role,
		BatchID:         p.cfg.Batch,
		OtherInfo:       map[string]interface{}{},
	}

	// A supplied password wins; otherwise a strong one is generated
	// server-side. One policy, applied everywhere.
	if processed.Password == "" {
		processed.Password = password.Generate(password.DefaultLength)
	}
	if processed.Status == "" {
		processed.Status = "Accepted"
	}
	if processed.Role == "" {
		processed.Role = "trainee"
	}
	if p.cfg.GroupID != "" {
		processed.Groups = []string{p.cfg.GroupID}
	}

	if dob := strings.TrimSpace(row["date_of_birth"]); dob != "" {
		if parsed, ok := parseDOB(dob); ok {
			processed.DateOfBirth = &parsed
		} else {
			// Unparseable dates are preserved rather than failing the row.
			processed.OtherInfo["date_of_birth"] = dob
		}
	}

	if other := strings.TrimSpace(row["other_info"]); other != "" {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(other), &parsed); err == nil {
			for k, v := range parsed {
				processed.OtherInfo[k] = v
			}
		}
	}

	for column, value := range row {
		if _, essential := essentialColumns[column]; essential {
			continue
		}
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			processed.OtherInfo[column] = trimmed
		}
	}

	return processed, nil
}

// cleanName trims, title-cases, strips '-' and '.', and collapses repeated
// spaces. Rejects empty names and names without a single letter.
func cleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	name = strings.NewReplacer("-", "", ".", "").Replace(name)
	for strings.Contains(name, "  ") {
		name = strings.ReplaceAll(name, "  ", " ")
	}
	name = strings.TrimSpace(name)

	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return "", appErrors.Clone(appErrors.ErrValidation, "name must contain at least one letter")
	}

	return titleCase(name), nil
}

// titleCase upper-cases the first rune of each word. Rune-based so names in
// any script survive intact.
func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + strings.ToLower(word[size:])
	}
	return strings.Join(words, " ")
}

func cleanOptional(raw string) string {
	return strings.TrimSpace(raw)
}

func parseDOB(raw string) (time.Time, bool) {
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
