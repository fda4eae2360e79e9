package store

import (
	"context"

	"github.com/me/oblig/pkg/model"
)

// Store defines the persistence layer for oblig entities.
//
// Getters return (nil, nil) when the entity does not exist.
type Store interface {
	// Course and student records
	UpsertCourse(ctx context.Context, c *model.Course) (model.UpdateResult, error)
	GetCourse(ctx context.Context, id int64) (*model.Course, error)
	ListCourses(ctx context.Context) ([]*model.Course, error)
	UpsertStudent(ctx context.Context, st *model.Student) (model.UpdateResult, error)
	GetStudent(ctx context.Context, id int64) (*model.Student, error)
	Enroll(ctx context.Context, courseID, studentID int64) error
	ListStudents(ctx context.Context, courseID int64) ([]*model.Student, error)

	// Exercise CRUD
	UpsertExercise(ctx context.Context, ex *model.Exercise) (model.UpdateResult, error)
	GetExercise(ctx context.Context, id int64) (*model.Exercise, error)
	ListExercises(ctx context.Context, courseID int64) ([]*model.Exercise, error)
	SetGradingPath(ctx context.Context, exerciseID int64, path string) error

	// Groups
	ReplaceGroups(ctx context.Context, categoryID int64, groups []model.Group, members []model.GroupMembership) error

	// Submission operations
	GetSubmission(ctx context.Context, id int64) (*model.Submission, error)
	ListSubmissions(ctx context.Context, exerciseID int64) ([]*model.Submission, error)
	UpdateSubmission(ctx context.Context, sub *model.Submission) error

	// Operator settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// InTx runs fn inside a single transaction. The transaction commits when
	// fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	GetExercise(ctx context.Context, id int64) (*model.Exercise, error)
	GetSubmission(ctx context.Context, id int64) (*model.Submission, error)
	ListSubmissions(ctx context.Context, exerciseID int64) ([]*model.Submission, error)
	InsertSubmission(ctx context.Context, sub *model.Submission) error
	UpdateSubmission(ctx context.Context, sub *model.Submission) error
	DeleteSubmission(ctx context.Context, id int64) error
	SetContributions(ctx context.Context, submissionID int64, studentIDs []int64) error
	GroupOf(ctx context.Context, studentID, categoryID int64) (*model.Group, error)
	GroupMembers(ctx context.Context, groupID int64) ([]int64, error)
}

// Setting keys.
const (
	SettingCurrentCourse     = "current_course"
	SettingCurrentExercise   = "current_exercise"
	SettingCurrentSubmission = "current_submission"
)
