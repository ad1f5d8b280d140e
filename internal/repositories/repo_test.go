package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func uint32Ptr(v uint32) *uint32 { return &v }

func TestShareRepository_TryIncrementDownloads_AllGuards(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareRepository(db)

	expires := time.Now().Add(time.Hour)
	share := &models.Share{ID: 7, ExpiresAt: &expires, OneTime: true, MaxDownloads: uint32Ptr(3)}

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE `shares` SET `downloads_count`=downloads_count + ? WHERE id = ? AND expires_at > ? AND downloads_count < ? AND downloads_count < ?",
	)).WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.TryIncrementDownloads(context.Background(), share, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepository_TryIncrementDownloads_Exhausted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareRepository(db)

	share := &models.Share{ID: 7, MaxDownloads: uint32Ptr(1)}

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE `shares` SET `downloads_count`=downloads_count + ? WHERE id = ? AND downloads_count < ?",
	)).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.TryIncrementDownloads(context.Background(), share, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepository_TryIncrementDownloads_Unlimited(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE `shares` SET `downloads_count`=downloads_count + ? WHERE id = ?",
	)).WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.TryIncrementDownloads(context.Background(), &models.Share{ID: 9}, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepository_FindByToken_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShareRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `shares` WHERE token = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByToken(context.Background(), "missing")
	assert.ErrorIs(t, err, xerr.ErrShareNotFound)
}

func TestFileRepository_UpdateScanStatus_OnlyFromPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `files` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	sig := "Eicar-Test-Signature"
	updated, err := repo.UpdateScanStatus(context.Background(), 3, models.ScanStatusInfected, &sig)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_ListPendingScan(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)

	rows := sqlmock.NewRows([]string{"id", "owner_id", "filename", "scan_status"}).
		AddRow(1, 10, "a.pdf", "PENDING").
		AddRow(2, 11, "b.png", "PENDING")
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT * FROM `files` WHERE scan_status = ? AND deleted_at IS NULL ORDER BY created_at ASC",
	)).WillReturnRows(rows)

	files, err := repo.ListPendingScan(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, models.ScanStatusPending, files[0].ScanStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileRepository_FindActiveByOwner_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFileRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `files` WHERE id = ? AND owner_id = ? AND deleted_at IS NULL")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindActiveByOwner(context.Background(), 1, 2)
	assert.ErrorIs(t, err, xerr.ErrFileNotFound)
}

func TestPasswordResetRepository_MarkUsedTwice(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPasswordResetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `password_reset_tokens` SET `used_at`=? WHERE id = ? AND used_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkUsed(context.Background(), 4, time.Now())
	assert.ErrorIs(t, err, xerr.ErrInvalidResetToken)
}

func TestUserRepository_SetBanned_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `users` SET `banned`=?")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetBanned(context.Background(), 99, true)
	assert.ErrorIs(t, err, xerr.ErrUserNotFound)
}
