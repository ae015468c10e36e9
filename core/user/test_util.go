package user

import (
	"github.com/stackschool/academy/core"
)

// NewServiceMock returns a ServiceInterface suitable for tests; email
// delivery is whatever mailSvc does (pair it with a synchronous mock).
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) ServiceInterface {
	initTokenGenerator(conf)
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		conf:    conf,
	}
}
