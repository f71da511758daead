package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockDB(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewWithDB(sqlDB), mock
}

func expectCourseDeleteSteps(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM courses WHERE folder_name = ?")).
		WithArgs("Go Basics").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("go-basics"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = ?")).
		WithArgs("go-basics").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_favorites WHERE course_id = ?")).
		WithArgs("go-basics").
		WillReturnResult(sqlmock.NewResult(0, 2))
}

func TestDeleteCourseByFolderRollsBackOnProgressFailure(t *testing.T) {
	db, mock := newMockDB(t)

	expectCourseDeleteSteps(mock)
	mock.ExpectExec("UPDATE user_progress").
		WithArgs(`$."go-basics"`, `$."go-basics"`).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err := db.DeleteCourseByFolder(context.Background(), "Go Basics")
	if err == nil {
		t.Fatal("expected error")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations (commit must never happen): %v", err)
	}
}

func TestDeleteCourseByFolderReportsRollbackFailure(t *testing.T) {
	db, mock := newMockDB(t)

	expectCourseDeleteSteps(mock)
	mock.ExpectExec("UPDATE user_progress").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback().WillReturnError(errors.New("rollback failed"))

	_, err := db.DeleteCourseByFolder(context.Background(), "Go Basics")
	if err == nil {
		t.Fatal("expected error")
	}
	if !regexp.MustCompile("rollback also failed").MatchString(err.Error()) {
		t.Errorf("error %q does not mention the rollback failure", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeleteCourseByFolderCommits(t *testing.T) {
	db, mock := newMockDB(t)

	expectCourseDeleteSteps(mock)
	mock.ExpectExec("UPDATE user_progress").
		WithArgs(`$."go-basics"`, `$."go-basics"`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	id, err := db.DeleteCourseByFolder(context.Background(), "Go Basics")
	if err != nil {
		t.Fatalf("DeleteCourseByFolder: %v", err)
	}
	if id != "go-basics" {
		t.Errorf("id = %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeleteUserRollsBackWhenUserMissing(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	for _, table := range []string{"user_progress", "user_favorites", "settings"} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + table + " WHERE user_id = ?")).
			WithArgs("ghost").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = ?")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := db.DeleteUser(context.Background(), "ghost")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
