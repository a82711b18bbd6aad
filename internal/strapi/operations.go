package strapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tenacademy/onboarding-api/internal/models"
)

// UserData carries the fields needed to register a CMS identity.
type UserData struct {
	Name     string
	Email    string
	Password string
}

// Username derives a unique login name from the applicant's name and email,
// avoiding collisions between applicants who share a display name.
func (u UserData) Username() string {
	return strings.ReplaceAll(strings.TrimSpace(u.Name), " ", "") + "_" + u.Email
}

// User is a created CMS identity.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AllUserData links an identity to role, batch and group metadata.
type AllUserData struct {
	Name   string
	Email  string
	Role   string
	UserID string
	Batch  int
	Groups []string
}

// ProfileData holds personal details stored on the profile record.
type ProfileData struct {
	FirstName       string
	Surname         string
	Email           string
	Nationality     string
	Gender          string
	DateOfBirth     *time.Time
	Bio             string
	CityOfResidence string
	AllUserID       string
	OtherInfo       map[string]interface{}
}

// TraineeData holds the trainee record fields.
type TraineeData struct {
	Email     string
	TraineeID string
	Status    string
	BatchID   string
	AllUserID string
}

const createUserMutation = `mutation createUser($username: String!, $email: String!, $password: String!) {
  register(input: { username: $username, email: $email, password: $password }) {
    user { id username email }
  }
}`

// CreateUser registers a confirmed identity via the GraphQL register
// mutation. Used for mock accounts that skip the email confirmation flow.
func (c *Client) CreateUser(ctx context.Context, data UserData) (User, error) {
	var out struct {
		Register struct {
			User User `json:"user"`
		} `json:"register"`
	}
	vars := map[string]interface{}{
		"username": data.Username(),
		"email":    data.Email,
		"password": data.Password,
	}
	if err := c.execute(ctx, "create_user", createUserMutation, vars, &out); err != nil {
		return User{}, err
	}
	if out.Register.User.ID == "" {
		return User{}, fmt.Errorf("register returned no user id")
	}
	return out.Register.User, nil
}

type restRegisterResponse struct {
	User struct {
		ID       json.Number `json:"id"`
		Username string      `json:"username"`
		Email    string      `json:"email"`
	} `json:"user"`
}

// RegisterUnconfirmed creates a real account through the REST registration
// path. The account stays unconfirmed until the applicant completes the
// confirmation flow, which is outside this service's scope.
func (c *Client) RegisterUnconfirmed(ctx context.Context, data UserData) (User, error) {
	payload := map[string]string{
		"username": data.Username(),
		"email":    data.Email,
		"password": data.Password,
	}
	var out restRegisterResponse
	if err := c.doREST(ctx, "register_unconfirmed", "/api/auth/local/register", payload, &out); err != nil {
		return User{}, err
	}
	id := out.User.ID.String()
	if id == "" {
		return User{}, fmt.Errorf("registration returned no user id")
	}
	return User{ID: id, Username: out.User.Username, Email: out.User.Email}, nil
}

const createAllUserMutation = `mutation createAllUser($email: String, $userId: ID, $name: String, $batch: Int, $role: ENUM_ALLUSER_ROLE, $groups: [ID]) {
  createAllUser(data: { email: $email, user: $userId, name: $name, role: $role, Batch: $batch, groups: $groups }) {
    data { id }
  }
}`

// CreateAllUser links the created identity to role/batch/group metadata.
func (c *Client) CreateAllUser(ctx context.Context, data AllUserData) (string, error) {
	var out struct {
		CreateAllUser struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"createAllUser"`
	}
	vars := map[string]interface{}{
		"email":  data.Email,
		"name":   data.Name,
		"batch":  data.Batch,
		"userId": data.UserID,
		"role":   data.Role,
	}
	if len(data.Groups) > 0 {
		vars["groups"] = data.Groups
	}
	if err := c.execute(ctx, "create_alluser", createAllUserMutation, vars, &out); err != nil {
		return "", err
	}
	if out.CreateAllUser.Data.ID == "" {
		return "", fmt.Errorf("createAllUser returned no id")
	}
	return out.CreateAllUser.Data.ID, nil
}

const createProfileMutation = `mutation createProfileInformation($firstName: String, $surName: String, $nationality: String, $gender: String, $email: String, $dateOfBirth: Date, $bio: String, $city: String, $alluser: ID, $otherInfo: JSON) {
  createProfileInformation(data: {
    first_name: $firstName
    surname: $surName
    nationality: $nationality
    gender: $gender
    email: $email
    date_of_birth: $dateOfBirth
    bio: $bio
    city_of_residence: $city
    all_user: $alluser
    other_info: $otherInfo
  }) {
    data { id }
  }
}`

// CreateProfile stores the applicant's personal details.
func (c *Client) CreateProfile(ctx context.Context, data ProfileData) (string, error) {
	var out struct {
		CreateProfileInformation struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"createProfileInformation"`
	}
	vars := map[string]interface{}{
		"firstName":   data.FirstName,
		"surName":     data.Surname,
		"nationality": data.Nationality,
		"gender":      data.Gender,
		"email":       data.Email,
		"bio":         data.Bio,
		"city":        data.CityOfResidence,
		"alluser":     data.AllUserID,
	}
	if data.DateOfBirth != nil {
		vars["dateOfBirth"] = data.DateOfBirth.Format("2006-01-02")
	}
	if len(data.OtherInfo) > 0 {
		vars["otherInfo"] = data.OtherInfo
	}
	if err := c.execute(ctx, "create_profile", createProfileMutation, vars, &out); err != nil {
		return "", err
	}
	if out.CreateProfileInformation.Data.ID == "" {
		return "", fmt.Errorf("createProfileInformation returned no id")
	}
	return out.CreateProfileInformation.Data.ID, nil
}

const createTraineeMutation = `mutation createTrainees($email: String, $alluser: ID, $traineeID: String, $batch: ID, $status: ENUM_TRAINEE_STATUS) {
  createTrainee(data: { email: $email, Status: $status, all_user: $alluser, trainee_id: $traineeID, batch: $batch }) {
    data { id }
  }
}`

// CreateTrainee stores the trainee record with a back-reference to the
// all-user id.
func (c *Client) CreateTrainee(ctx context.Context, data TraineeData) (string, error) {
	var out struct {
		CreateTrainee struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"createTrainee"`
	}
	vars := map[string]interface{}{
		"email":     data.Email,
		"alluser":   data.AllUserID,
		"traineeID": data.TraineeID,
		"batch":     data.BatchID,
		"status":    data.Status,
	}
	if err := c.execute(ctx, "create_trainee", createTraineeMutation, vars, &out); err != nil {
		return "", err
	}
	if out.CreateTrainee.Data.ID == "" {
		return "", fmt.Errorf("createTrainee returned no id")
	}
	return out.CreateTrainee.Data.ID, nil
}

const (
	deleteUserMutation = `mutation deleteUser($id: ID!) {
  deleteUsersPermissionsUser(id: $id) { data { id } }
}`
	deleteAllUserMutation = `mutation deleteAllUser($id: ID!) {
  deleteAllUser(id: $id) { data { id } }
}`
	deleteProfileMutation = `mutation deleteProfile($id: ID!) {
  deleteProfileInformation(id: $id) { data { id } }
}`
	deleteTraineeMutation = `mutation deleteTrainee($id: ID!) {
  deleteTrainee(id: $id) { data { id } }
}`
)

// DeleteUser removes a user record. Compensating deletes are best-effort;
// callers log failures instead of propagating them.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.execute(ctx, "delete_user", deleteUserMutation, map[string]interface{}{"id": id}, nil)
}

// DeleteAllUser removes an all-user record.
func (c *Client) DeleteAllUser(ctx context.Context, id string) error {
	return c.execute(ctx, "delete_alluser", deleteAllUserMutation, map[string]interface{}{"id": id}, nil)
}

// DeleteProfile removes a profile record.
func (c *Client) DeleteProfile(ctx context.Context, id string) error {
	return c.execute(ctx, "delete_profile", deleteProfileMutation, map[string]interface{}{"id": id}, nil)
}

// DeleteTrainee removes a trainee record.
func (c *Client) DeleteTrainee(ctx context.Context, id string) error {
	return c.execute(ctx, "delete_trainee", deleteTraineeMutation, map[string]interface{}{"id": id}, nil)
}

const readBatchQuery = `query getBatch($batch: Int) {
  batches(filters: { Batch: { eq: $batch } }) {
    data { id attributes { Batch } }
  }
}`

// ReadBatch resolves a human batch label ("7" or "batch-7") to the internal
// CMS record id.
func (c *Client) ReadBatch(ctx context.Context, label string) (string, error) {
	number, err := ParseBatchNumber(label)
	if err != nil {
		return "", err
	}
	var out struct {
		Batches struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"batches"`
	}
	if err := c.execute(ctx, "read_batch", readBatchQuery, map[string]interface{}{"batch": number}, &out); err != nil {
		return "", err
	}
	if len(out.Batches.Data) == 0 {
		return "", fmt.Errorf("batch %q not found", label)
	}
	return out.Batches.Data[0].ID, nil
}

// ParseBatchNumber extracts the numeric batch from a label such as "7" or
// "batch-7".
func ParseBatchNumber(label string) (int, error) {
	label = strings.TrimSpace(label)
	if idx := strings.LastIndex(label, "-"); idx >= 0 {
		label = label[idx+1:]
	}
	number, err := strconv.Atoi(label)
	if err != nil {
		return 0, fmt.Errorf("invalid batch label %q", label)
	}
	return number, nil
}

const meQuery = `query me {
  me { id username email role { name } }
}`

// Me validates a caller token against the CMS and returns the identity it
// belongs to.
func (c *Client) Me(ctx context.Context, token string) (models.AuthUser, error) {
	var out struct {
		Me struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Email    string `json:"email"`
			Role     struct {
				Name string `json:"name"`
			} `json:"role"`
		} `json:"me"`
	}
	if err := c.executeAs(ctx, "me", token, meQuery, nil, &out); err != nil {
		return models.AuthUser{}, err
	}
	if out.Me.ID == "" {
		return models.AuthUser{}, fmt.Errorf("token resolved to no user")
	}
	role := out.Me.Role.Name
	if role == "" {
		role = "user"
	}
	return models.AuthUser{
		ID:       out.Me.ID,
		Username: out.Me.Username,
		Email:    out.Me.Email,
		Role:     role,
	}, nil
}
