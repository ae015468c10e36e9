package gradersvc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/stackschool/academy/core"
	"github.com/stackschool/academy/core/progress"
)

// httpService submits project repositories to the external auto-grading
// service. Grading happens out-of-band; the grader reports results back
// through the instructor review endpoint.
type httpService struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  core.Logger
}

var _ progress.Grader = (*httpService)(nil)

func NewHTTPService(conf *core.Config, logger core.Logger) *httpService {
	timeout := conf.Grader.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpService{
		baseURL: conf.Grader.BaseURL,
		apiKey:  conf.Grader.ApiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type gradeRequest struct {
	UserID   string `json:"user_id"`
	LessonID string `json:"lesson_id"`
	RepoLink string `json:"repo_link"`
}

func (svc *httpService) Grade(ctx context.Context, userID, lessonID, repoLink string) error {
	endpoint := strings.TrimRight(svc.baseURL, "/") + "/v1/grade"

	body, err := json.Marshal(gradeRequest{UserID: userID, LessonID: lessonID, RepoLink: repoLink})
	if err != nil {
		return errors.Wrap(err, "encoding grade request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "creating grade request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+svc.apiKey)

	res, err := svc.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "submitting project for grading")
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("grader returned %s", res.Status)
	}
	return nil
}

// consoleService logs grade requests instead of calling out. Used in
// development and whenever no grader is configured.
type consoleService struct {
	logger core.Logger

	mu       sync.Mutex
	requests []gradeRequest
}

var _ progress.Grader = (*consoleService)(nil)

func NewConsoleService(logger core.Logger) *consoleService {
	return &consoleService{logger: logger}
}

func (svc *consoleService) Grade(_ context.Context, userID, lessonID, repoLink string) error {
	svc.mu.Lock()
	svc.requests = append(svc.requests, gradeRequest{UserID: userID, LessonID: lessonID, RepoLink: repoLink})
	svc.mu.Unlock()

	if svc.logger != nil {
		svc.logger.Info("grade requested", map[string]interface{}{
			"user_id": userID, "lesson_id": lessonID, "repo_link": repoLink,
		})
	}
	return nil
}

// Requests returns a copy of all grade requests received so far.
func (svc *consoleService) Requests() []gradeRequest {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	reqs := make([]gradeRequest, len(svc.requests))
	copy(reqs, svc.requests)
	return reqs
}
