package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenacademy/onboarding-api/internal/models"
	appErrors "github.com/tenacademy/onboarding-api/pkg/errors"
)

func TestProcessRowNormalizesNameAndEmail(t *testing.T) {
	p := NewProcessor(models.BatchConfig{Batch: "batch-7", Role: "trainee"})

	processed, err := p.ProcessRow(map[string]string{
		"name":  "  jean-paul   o'brien.  ",
		"email": "  Jean.Paul@Example.COM ",
	})
	require.NoError(t, err)

	assert.Equal(t, "Jeanpaul O'brien", processed.Name)
	assert.Equal(t, "jean.paul@example.com", processed.Email)
	assert.Equal(t, "Accepted", processed.Status)
	assert.Equal(t, "trainee", processed.Role)
	assert.NotEmpty(t, processed.Password)
}

func TestProcessRowIsIdempotent(t *testing.T) {
	p := NewProcessor(models.BatchConfig{Batch: "batch-7"})

	first, err := p.ProcessRow(map[string]string{
		"name":     "ada lovelace",
		"email":    "ada@example.com",
		"password": "fixed-pass-1A!",
	})
	require.NoError(t, err)

	second, err := p.ProcessRow(map[string]string{
		"name":     first.Name,
		"email":    first.Email,
		"password": first.Password,
	})
	require.NoError(t, err)

	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Email, second.Email)
	assert.Equal(t, first.Password, second.Password)
}

func TestProcessRowRejectsInvalidInput(t *testing.T) {
	p := NewProcessor(models.BatchConfig{})

	cases := []struct {
		name string
		row  map[string]string
	}{
		{"missing name", map[string]string{"email": "a@b.co"}},
		{"blank name", map[string]string{"name": "   ", "email": "a@b.co"}},
		{"name without letters", map[string]string{"name": "123 456", "email": "a@b.co"}},
		{"missing email", map[string]string{"name": "Ada"}},
		{"malformed email", map[string]string{"name": "Ada", "email": "not-an-email"}},
		{"email missing tld", map[string]string{"name": "Ada", "email": "ada@host"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.ProcessRow(tc.row)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))
		})
	}
}

func TestProcessRowKeepsNonLatinNames(t *testing.T) {
	p := NewProcessor(models.BatchConfig{})

	cases := []struct {
		raw  string
		want string
	}{
		{"éva kovács", "Éva Kovács"},
		{"አበበ ቢቂላ", "አበበ ቢቂላ"},
		{"josé maría", "José María"},
		{"øyvind åsen", "Øyvind Åsen"},
	}
	for _, tc := range cases {
		processed, err := p.ProcessRow(map[string]string{
			"name":  tc.raw,
			"email": "applicant@example.com",
		})
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, processed.Name, tc.raw)
	}
}

func TestProcessRowColumnAliases(t *testing.T) {
	p := NewProcessor(models.BatchConfig{})

	processed, err := p.ProcessRow(map[string]string{
		"Full Name": "grace hopper",
		"email":     "grace@example.com",
		"Country":   "USA",
	})
	require.NoError(t, err)

	assert.Equal(t, "Grace Hopper", processed.Name)
	assert.Equal(t, "USA", processed.Nationality)
}

func TestProcessRowDateOfBirth(t *testing.T) {
	p := NewProcessor(models.BatchConfig{})

	processed, err := p.ProcessRow(map[string]string{
		"name":          "Ada",
		"email":         "ada@example.com",
		"date_of_birth": "1990-06-15",
	})
	require.NoError(t, err)
	require.NotNil(t, processed.DateOfBirth)
	assert.Equal(t, time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC), processed.DateOfBirth.UTC())

	processed, err = p.ProcessRow(map[string]string{
		"name":          "Ada",
		"email":         "ada@example.com",
		"date_of_birth": "15th of June 1990",
	})
	require.NoError(t, err)
	assert.Nil(t, processed.DateOfBirth)
	assert.Equal(t, "15th of June 1990", processed.OtherInfo["date_of_birth"])
}

func TestProcessRowFoldsExtraColumns(t *testing.T) {
	p := NewProcessor(models.BatchConfig{GroupID: "g-12"})

	processed, err := p.ProcessRow(map[string]string{
		"name":       "Ada",
		"email":      "ada@example.com",
		"other_info": `{"referrer":"alumni"}`,
		"university": "MIT",
		"empty_col":  "   ",
	})
	require.NoError(t, err)

	assert.Equal(t, "alumni", processed.OtherInfo["referrer"])
	assert.Equal(t, "MIT", processed.OtherInfo["university"])
	assert.NotContains(t, processed.OtherInfo, "empty_col")
	assert.Equal(t, []string{"g-12"}, processed.Groups)
}

func TestProcessRowSuppliedPasswordWins(t *testing.T) {
	p := NewProcessor(models.BatchConfig{})

	processed, err := p.ProcessRow(map[string]string{
		"name":     "Ada",
		"email":    "ada@example.com",
		"password": "caller-chosen-1A!",
	})
	require.NoError(t, err)
	assert.Equal(t, "caller-chosen-1A!", processed.Password)
}
