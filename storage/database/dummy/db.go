// Package dummydb provides in-memory repository implementations for tests
// and local development.
package dummydb

import (
	"sync"

	"github.com/stackschool/academy/core/course"
	"github.com/stackschool/academy/core/notification"
	"github.com/stackschool/academy/core/progress"
	"github.com/stackschool/academy/core/streak"
	"github.com/stackschool/academy/core/user"
)

type (
	DB struct {
		user         *userTable
		course       *courseTable
		progress     *progressTable
		streak       *streakTable
		notification *notificationTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		sync.RWMutex
		courses   map[string]*course.Course
		lessons   map[string]*course.Lesson
		questions map[string]*course.Question
	}

	progressTable struct {
		sync.RWMutex
		table       map[string]*progress.LessonProgress // keyed by user_id+":"+lesson_id
		submissions map[string]*progress.QuizSubmission
	}

	streakTable struct {
		sync.RWMutex
		table map[string]*streak.Streak
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		course: &courseTable{
			courses:   make(map[string]*course.Course),
			lessons:   make(map[string]*course.Lesson),
			questions: make(map[string]*course.Question),
		},
		progress: &progressTable{
			table:       make(map[string]*progress.LessonProgress),
			submissions: make(map[string]*progress.QuizSubmission),
		},
		streak:       &streakTable{table: make(map[string]*streak.Streak)},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
	}
	return db, nil
}
