package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stackschool/academy/core/user"
	testutil "github.com/stackschool/academy/tests"
)

func Test_courseApi_create(t *testing.T) {
	student := testutil.CreateUser(t, usrRepo, "C Student", "cstudent", "cstudent@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "C Admin", "cadmin", "cadmin@test.cd", "", []string{user.RoleAdmin}, true)

	body := marchallObj(t, map[string]string{
		"brand": "go",
		"title": "Made Course",
		"slug":  "madecourse",
	})

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/courses", body: body,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", method: http.MethodPost, path: "/v1/courses", body: body,
			token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Missing fields", method: http.MethodPost, path: "/v1/courses", body: []byte(`{}`),
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
		},
		{
			name: "Created", method: http.MethodPost, path: "/v1/courses", body: body,
			token: getToken(t, admin), wantCode: http.StatusCreated,
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

func Test_courseApi_retrieveLesson_lockGuard(t *testing.T) {
	crs := testutil.CreateCourse(t, courseRepo, "go", "Locked Course", "lockedcourse")
	first := testutil.CreateLesson(t, courseRepo, crs.ID, "One", 0, false)
	second := testutil.CreateLesson(t, courseRepo, crs.ID, "Two", 1, false)

	student := testutil.CreateUser(t, usrRepo, "L Student", "lstudent", "lstudent@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "L Admin", "ladmin", "ladmin@test.cd", "", []string{user.RoleAdmin}, true)
	studentToken := getToken(t, student)

	tests := []httpTest{
		{
			name: "Unknown lesson", method: http.MethodGet, path: "/v1/lessons/nope",
			token: studentToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "First lesson is open", method: http.MethodGet, path: "/v1/lessons/" + first.ID,
			token: studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, first),
		},
		{
			name: "Second lesson is locked", method: http.MethodGet, path: "/v1/lessons/" + second.ID,
			token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errLocked),
		},
		{
			name: "Admin bypasses the lock", method: http.MethodGet, path: "/v1/lessons/" + second.ID,
			token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, second),
		},
		{
			name: "Locked lesson questions are hidden too", method: http.MethodGet,
			path:  fmt.Sprintf("/v1/lessons/%s/questions", second.ID),
			token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errLocked),
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

func Test_courseApi_queryLessons_decoration(t *testing.T) {
	crs := testutil.CreateCourse(t, courseRepo, "go", "Deco Course", "decocourse")
	first := testutil.CreateLesson(t, courseRepo, crs.ID, "One", 0, false)
	testutil.CreateLesson(t, courseRepo, crs.ID, "Two", 1, false)
	testutil.CreateQuestion(t, courseRepo, first.ID, "q1", 0)

	student := testutil.CreateUser(t, usrRepo, "D Student", "dstudent", "dstudent@test.cd", "", []string{user.RoleStudent}, true)
	token := getToken(t, student)

	// complete the first lesson
	req, rec := newAuthRequest(
		http.MethodPost, fmt.Sprintf("/v1/lessons/%s/quiz", first.ID), token,
		marchallObj(t, SubmitQuizBody{Answers: []int{0}}),
	)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("quiz submission failed! code = %v", rec.Code)
	}

	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/v1/courses/%s/lessons", crs.ID), token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("lesson query failed! code = %v", rec.Code)
	}
	var statuses []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("unmarshalling statuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}
	if statuses[0]["locked"] != false || statuses[0]["is_completed"] != true {
		t.Errorf("first lesson status = %v; want unlocked and completed", statuses[0])
	}
	// second lesson: open (previous completed) but not completed
	if statuses[1]["locked"] != false || statuses[1]["is_completed"] != false {
		t.Errorf("second lesson status = %v; want unlocked and incomplete", statuses[1])
	}
}

func Test_courseApi_queryQuestions_answerKeyHidden(t *testing.T) {
	crs := testutil.CreateCourse(t, courseRepo, "go", "Key Course", "keycourse")
	lsn := testutil.CreateLesson(t, courseRepo, crs.ID, "One", 0, false)
	testutil.CreateQuestion(t, courseRepo, lsn.ID, "q1", 0)

	student := testutil.CreateUser(t, usrRepo, "K Student", "kstudent", "kstudent@test.cd", "", []string{user.RoleStudent}, true)
	instructor := testutil.CreateUser(t, usrRepo, "K Prof", "kteacher", "kteacher@test.cd", "", []string{user.RoleStudent, user.RoleInstructor}, true)

	path := fmt.Sprintf("/v1/lessons/%s/questions", lsn.ID)

	fetch := func(t *testing.T, token string) []map[string]interface{} {
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("question query failed! code = %v", rec.Code)
		}
		var questions []map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &questions); err != nil {
			t.Fatalf("unmarshalling questions: %v", err)
		}
		if len(questions) != 1 {
			t.Fatalf("got %d questions, want 1", len(questions))
		}
		return questions
	}

	questions := fetch(t, getToken(t, student))
	if _, ok := questions[0]["correct_answer"]; ok {
		t.Error("students must not see the answer key")
	}

	questions = fetch(t, getToken(t, instructor))
	if _, ok := questions[0]["correct_answer"]; !ok {
		t.Error("staff should see the answer key")
	}
}

func Test_courseApi_createQuestion(t *testing.T) {
	crs := testutil.CreateCourse(t, courseRepo, "go", "Author Course", "authorcourse")
	lsn := testutil.CreateLesson(t, courseRepo, crs.ID, "One", 0, false)

	admin := testutil.CreateUser(t, usrRepo, "A Admin", "aadmin", "aadmin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)

	path := fmt.Sprintf("/v1/lessons/%s/questions", lsn.ID)

	tests := []httpTest{
		{
			name: "Created", method: http.MethodPost, path: path,
			body: marchallObj(t, map[string]interface{}{
				"prompt":         "Pick one",
				"options":        []string{"a", "b"},
				"correct_answer": 1,
			}),
			token: adminToken, wantCode: http.StatusCreated,
		},
		{
			name: "Answer must index into the options", method: http.MethodPost, path: path,
			body: marchallObj(t, map[string]interface{}{
				"prompt":         "Pick one",
				"options":        []string{"a", "b"},
				"correct_answer": 2,
			}),
			token: adminToken, wantCode: http.StatusBadRequest,
		},
		{
			name: "At least two options", method: http.MethodPost, path: path,
			body: marchallObj(t, map[string]interface{}{
				"prompt":         "Pick one",
				"options":        []string{"a"},
				"correct_answer": 0,
			}),
			token: adminToken, wantCode: http.StatusBadRequest,
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
