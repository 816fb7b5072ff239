package service

import (
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/repository"
	"aut_portal_backend/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createUnverified(t *testing.T, db *gorm.DB, email string, expiry time.Time) {
	t.Helper()
	token := email
	require.NoError(t, db.Create(&model.User{
		Name:              email,
		Email:             email,
		Password:          "x",
		VerifyToken:       &token,
		VerifyTokenExpiry: &expiry,
	}).Error)
}

func TestCleanupRunOnce(t *testing.T) {
	db := testutil.NewDB(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	createUnverified(t, db, "old@aut-edu.uz", now.Add(-time.Hour))
	createUnverified(t, db, "fresh@aut-edu.uz", now.Add(time.Hour))
	testutil.CreateUser(t, db, "Verified", "ok@aut-edu.uz")

	svc := NewCleanupService(repository.NewUserRepository(db), time.Hour, func() time.Time { return now })
	assert.EqualValues(t, 1, svc.RunOnce())
	assert.EqualValues(t, 0, svc.RunOnce())

	var emails []string
	require.NoError(t, db.Model(&model.User{}).Order("email").Pluck("email", &emails).Error)
	assert.Equal(t, []string{"fresh@aut-edu.uz", "ok@aut-edu.uz"}, emails)
}

func TestCleanupStartStop(t *testing.T) {
	db := testutil.NewDB(t)
	createUnverified(t, db, "old@aut-edu.uz", time.Now().Add(-time.Hour))

	svc := NewCleanupService(repository.NewUserRepository(db), 10*time.Millisecond, nil)
	svc.Start()
	svc.Start()

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.User{}).Count(&count)
		return count == 0
	}, time.Second, 10*time.Millisecond)

	svc.Stop()
	svc.Stop()
}

func TestCleanupStopWithoutStart(t *testing.T) {
	svc := NewCleanupService(nil, 0, nil)
	assert.Equal(t, defaultCleanupInterval, svc.Interval)
	svc.Stop()
}
