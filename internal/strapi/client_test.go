package strapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenacademy/onboarding-api/pkg/config"
)

type recordedRequest struct {
	path      string
	authz     string
	query     string
	variables map[string]interface{}
	restBody  map[string]interface{}
}

// fakeCMS serves canned GraphQL and REST responses while recording requests.
type fakeCMS struct {
	server    *httptest.Server
	requests  []recordedRequest
	graphql   func(query string, vars map[string]interface{}) (string, int)
	restReply string
	restCode  int
}

func newFakeCMS(t *testing.T) *fakeCMS {
	f := &fakeCMS{restCode: http.StatusOK}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		rec := recordedRequest{path: r.URL.Path, authz: r.Header.Get("Authorization")}

		if r.URL.Path == "/graphql" {
			var req struct {
				Query     string                 `json:"query"`
				Variables map[string]interface{} `json:"variables"`
			}
			require.NoError(t, json.Unmarshal(body, &req))
			rec.query = req.Query
			rec.variables = req.Variables
			f.requests = append(f.requests, rec)

			reply, code := `{"data":{}}`, http.StatusOK
			if f.graphql != nil {
				reply, code = f.graphql(req.Query, req.Variables)
			}
			w.WriteHeader(code)
			_, _ = w.Write([]byte(reply))
			return
		}

		_ = json.Unmarshal(body, &rec.restBody)
		f.requests = append(f.requests, rec)
		w.WriteHeader(f.restCode)
		_, _ = w.Write([]byte(f.restReply))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeCMS) client() *Client {
	return NewClient(config.StageConfig{APIRoot: f.server.URL, Token: "svc-token"}, 0)
}

func TestCreateUserSendsRegisterMutation(t *testing.T) {
	cms := newFakeCMS(t)
	cms.graphql = func(string, map[string]interface{}) (string, int) {
		return `{"data":{"register":{"user":{"id":"42","username":"AdaLovelace_ada@example.com","email":"ada@example.com"}}}}`, http.StatusOK
	}

	user, err := cms.client().CreateUser(context.Background(), UserData{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Password: "pass-1A!",
	})
	require.NoError(t, err)
	assert.Equal(t, "42", user.ID)

	require.Len(t, cms.requests, 1)
	req := cms.requests[0]
	assert.Equal(t, "/graphql", req.path)
	assert.Equal(t, "Bearer svc-token", req.authz)
	assert.Contains(t, req.query, "register(input:")
	assert.Equal(t, "AdaLovelace_ada@example.com", req.variables["username"])
}

func TestCreateUserSurfacesGraphQLErrors(t *testing.T) {
	cms := newFakeCMS(t)
	cms.graphql = func(string, map[string]interface{}) (string, int) {
		// Strapi reports business errors in the errors array with HTTP 200.
		return `{"data":null,"errors":[{"message":"Email is already taken"}]}`, http.StatusOK
	}

	_, err := cms.client().CreateUser(context.Background(), UserData{Email: "ada@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email is already taken")
}

func TestRegisterUnconfirmedUsesRESTPath(t *testing.T) {
	cms := newFakeCMS(t)
	cms.restReply = `{"jwt":"x","user":{"id":42,"username":"Ada_ada@example.com","email":"ada@example.com"}}`

	user, err := cms.client().RegisterUnconfirmed(context.Background(), UserData{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "pass-1A!",
	})
	require.NoError(t, err)
	// Numeric ids from the REST path are normalised to strings.
	assert.Equal(t, "42", user.ID)

	require.Len(t, cms.requests, 1)
	assert.Equal(t, "/api/auth/local/register", cms.requests[0].path)
	assert.Equal(t, "Ada_ada@example.com", cms.requests[0].restBody["username"])
}

func TestRegisterUnconfirmedRejectsErrorStatus(t *testing.T) {
	cms := newFakeCMS(t)
	cms.restCode = http.StatusBadRequest
	cms.restReply = `{"error":{"message":"Email is already taken"}}`

	_, err := cms.client().RegisterUnconfirmed(context.Background(), UserData{Email: "ada@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestReadBatch(t *testing.T) {
	cms := newFakeCMS(t)
	cms.graphql = func(_ string, vars map[string]interface{}) (string, int) {
		assert.Equal(t, float64(7), vars["batch"])
		return `{"data":{"batches":{"data":[{"id":"batch-rec-9"}]}}}`, http.StatusOK
	}

	id, err := cms.client().ReadBatch(context.Background(), "batch-7")
	require.NoError(t, err)
	assert.Equal(t, "batch-rec-9", id)
}

func TestReadBatchNotFound(t *testing.T) {
	cms := newFakeCMS(t)
	cms.graphql = func(string, map[string]interface{}) (string, int) {
		return `{"data":{"batches":{"data":[]}}}`, http.StatusOK
	}

	_, err := cms.client().ReadBatch(context.Background(), "7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMeUsesCallerToken(t *testing.T) {
	cms := newFakeCMS(t)
	cms.graphql = func(string, map[string]interface{}) (string, int) {
		return `{"data":{"me":{"id":"1","username":"ada","email":"ada@example.com","role":{"name":"Staff"}}}}`, http.StatusOK
	}

	user, err := cms.client().Me(context.Background(), "caller-token")
	require.NoError(t, err)
	assert.Equal(t, "Staff", user.Role)

	require.Len(t, cms.requests, 1)
	assert.Equal(t, "Bearer caller-token", cms.requests[0].authz)
}

func TestMeDefaultsRole(t *testing.T) {
	cms := newFakeCMS(t)
	cms.graphql = func(string, map[string]interface{}) (string, int) {
		return `{"data":{"me":{"id":"1","username":"ada","email":"ada@example.com","role":null}}}`, http.StatusOK
	}

	user, err := cms.client().Me(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "user", user.Role)
}

func TestParseBatchNumber(t *testing.T) {
	cases := []struct {
		label   string
		want    int
		wantErr bool
	}{
		{"7", 7, false},
		{"batch-7", 7, false},
		{" batch-12 ", 12, false},
		{"batch-", 0, true},
		{"seven", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseBatchNumber(tc.label)
		if tc.wantErr {
			assert.Error(t, err, tc.label)
			continue
		}
		require.NoError(t, err, tc.label)
		assert.Equal(t, tc.want, got, tc.label)
	}
}

func TestUsernameDerivation(t *testing.T) {
	u := UserData{Name: " Ada Lovelace ", Email: "ada@example.com"}
	assert.Equal(t, "AdaLovelace_ada@example.com", u.Username())
}
