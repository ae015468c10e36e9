package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stackschool/academy/core/user"
	testutil "github.com/stackschool/academy/tests"
)

func Test_userApi_login(t *testing.T) {
	testutil.CreateUser(t, usrRepo, "Login User", "loginusr", "loginusr@test.cd", "Qwerty!12345", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, usrRepo, "Sleeping User", "sleeper", "sleeper@test.cd", "Qwerty!12345", []string{user.RoleStudent}, false)

	body := func(uname, pwd string) []byte {
		return marchallObj(t, map[string]string{"username": uname, "password": pwd})
	}

	tests := []httpTest{
		{
			name: "Missing fields", method: http.MethodPost, path: "/v1/users/login",
			body: []byte(`{}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "Unknown user", method: http.MethodPost, path: "/v1/users/login",
			body: body("ghost", "Qwerty!12345"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Wrong password", method: http.MethodPost, path: "/v1/users/login",
			body: body("loginusr", "nope"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Deactivated account", method: http.MethodPost, path: "/v1/users/login",
			body: body("sleeper", "Qwerty!12345"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Login by username", method: http.MethodPost, path: "/v1/users/login",
			body: body("loginusr", "Qwerty!12345"), wantCode: http.StatusOK,
		},
		{
			name: "Login by email", method: http.MethodPost, path: "/v1/users/login",
			body: body("loginusr@test.cd", "Qwerty!12345"), wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
					t.Errorf("login returned no token: %v; err %v", rec.Body.String(), err)
				}
			}
		})
	}
}

func Test_userApi_register(t *testing.T) {
	student := testutil.CreateUser(t, usrRepo, "R Student", "rstudent", "rstudent@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "R Admin", "radmin", "radmin@test.cd", "", []string{user.RoleAdmin}, true)

	body := marchallObj(t, map[string]interface{}{
		"name":     "Fresh User",
		"username": "freshusr",
		"email":    "freshusr@test.cd",
		"password": "Qwerty!12345",
		"roles":    []string{user.RoleStudent},
	})

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/users/register", body: body,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", method: http.MethodPost, path: "/v1/users/register", body: body,
			token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Created", method: http.MethodPost, path: "/v1/users/register", body: body,
			token: getToken(t, admin), wantCode: http.StatusCreated,
		},
		{
			name: "Duplicate username", method: http.MethodPost, path: "/v1/users/register", body: body,
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_retrieve(t *testing.T) {
	usr1 := testutil.CreateUser(t, usrRepo, "Get One", "getone", "getone@test.cd", "", []string{user.RoleStudent}, true)
	usr2 := testutil.CreateUser(t, usrRepo, "Get Two", "gettwo", "gettwo@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "Get Admin", "getadmin", "getadmin@test.cd", "", []string{user.RoleAdmin}, true)

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodGet, path: "/v1/users/" + usr1.ID,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Own profile", method: http.MethodGet, path: "/v1/users/" + usr1.ID,
			token: getToken(t, usr1), wantCode: http.StatusOK, wantData: marchallObj(t, usr1),
		},
		{
			name: "Someone else's profile looks missing", method: http.MethodGet, path: "/v1/users/" + usr2.ID,
			token: getToken(t, usr1), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "Admin reads anyone", method: http.MethodGet, path: "/v1/users/" + usr2.ID,
			token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, usr2),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_update_restrictions(t *testing.T) {
	usr := testutil.CreateUser(t, usrRepo, "Up User", "upuser", "upuser@test.cd", "", []string{user.RoleStudent}, true)

	tests := []httpTest{
		{
			name: "Non-admin cannot change roles", method: http.MethodPut, path: "/v1/users/" + usr.ID,
			body:  marchallObj(t, map[string]interface{}{"roles": []string{user.RoleAdmin}}),
			token: getToken(t, usr), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Non-admin cannot change username", method: http.MethodPut, path: "/v1/users/" + usr.ID,
			body:  marchallObj(t, map[string]string{"username": "sneakyname"}),
			token: getToken(t, usr), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Name change is allowed", method: http.MethodPut, path: "/v1/users/" + usr.ID,
			body:  marchallObj(t, map[string]string{"name": "Renamed User"}),
			token: getToken(t, usr), wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_destroy(t *testing.T) {
	victim := testutil.CreateUser(t, usrRepo, "Victim", "victimusr", "victim@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "Del Admin", "deladmin", "deladmin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{
			name: "Admin required", method: http.MethodDelete, path: "/v1/users/" + victim.ID,
			token: getToken(t, victim), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Self-deletion is forbidden", method: http.MethodDelete, path: "/v1/users/" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Deleted", method: http.MethodDelete, path: "/v1/users/" + victim.ID,
			token: adminToken, wantCode: http.StatusNoContent,
		},
		{
			name: "Gone", method: http.MethodGet, path: "/v1/users/" + victim.ID,
			token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
