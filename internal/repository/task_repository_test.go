package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/mediaflux/hub/internal/models"
)

func newTaskRepoMock(t *testing.T) (TaskRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTaskRepository(db), mock
}

func TestClaimWinsPendingTask(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	mock.ExpectExec("UPDATE post_tasks SET status").
		WithArgs(string(models.TaskStatusProcessing), sqlmock.AnyArg(), "task_abc", string(models.TaskStatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, err := repo.Claim(context.Background(), "task_abc")
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLosesWhenTaskAlreadyClaimed(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	mock.ExpectExec("UPDATE post_tasks SET status").
		WithArgs(string(models.TaskStatusProcessing), sqlmock.AnyArg(), "task_abc", string(models.TaskStatusPending)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.Claim(context.Background(), "task_abc")
	require.NoError(t, err)
	require.False(t, claimed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDMissingTaskReturnsNil(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	mock.ExpectQuery("SELECT (.+) FROM post_tasks WHERE id").
		WithArgs("task_missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	task, err := repo.GetByID(context.Background(), "task_missing")
	require.NoError(t, err)
	require.Nil(t, task)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementAttemptsReturnsNewCount(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	mock.ExpectQuery("UPDATE post_tasks SET attempts = attempts").
		WithArgs(sqlmock.AnyArg(), "task_abc").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(2))

	attempts, err := repo.IncrementAttempts(context.Background(), "task_abc")
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateManyRunsInOneTransaction(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	now := time.Now()
	tasks := []*models.PostTask{
		{ID: "task_1", AccountID: "acc_1", FolderID: "folder_1", MediaPath: "/c/a.mp4",
			GeneratedCaption: "hello", ScheduledTime: now, Status: models.TaskStatusPending, MaxAttempts: 3},
		{ID: "task_2", AccountID: "acc_1", FolderID: "folder_1", MediaPath: "/c/b.mp4",
			GeneratedCaption: "world", ScheduledTime: now.Add(time.Hour), Status: models.TaskStatusPending, MaxAttempts: 3},
	}

	mock.ExpectBegin()
	for _, task := range tasks {
		mock.ExpectExec("INSERT INTO post_tasks").
			WithArgs(task.ID, task.AccountID, task.FolderID, task.MediaPath,
				task.GeneratedCaption, task.ScheduledTime, string(task.Status), task.MaxAttempts).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	n, err := repo.CreateMany(context.Background(), tasks)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateManyEmptyScheduleIsNoop(t *testing.T) {
	repo, mock := newTaskRepoMock(t)

	n, err := repo.CreateMany(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
