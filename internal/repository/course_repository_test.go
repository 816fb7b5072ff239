package repository

import (
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCourseListCounts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCourseRepository(db)

	course := &model.Course{Name: "Databases"}
	require.NoError(t, repo.Create(course))
	require.NoError(t, repo.Create(&model.Course{Name: "Empty"}))

	require.NoError(t, repo.CreateMaterial(&model.CourseMaterial{CourseID: course.ID, Title: "Ch1", Type: model.Textbook, FileURL: "/uploads/m/1.pdf", FileName: "1.pdf"}))
	require.NoError(t, repo.CreateMaterial(&model.CourseMaterial{CourseID: course.ID, Title: "Deck", Type: model.Slide, FileURL: "/uploads/m/2.pptx", FileName: "2.pptx"}))
	require.NoError(t, repo.CreateEnrollment(&model.CourseEnrollment{UserID: 7, CourseID: course.ID}))

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 2)

	byName := map[string]model.CourseSummary{}
	for _, c := range list {
		byName[c.Name] = c
	}
	assert.EqualValues(t, 2, byName["Databases"].MaterialCount)
	assert.EqualValues(t, 1, byName["Databases"].EnrollmentCount)
	assert.EqualValues(t, 0, byName["Empty"].MaterialCount)

	slides, err := repo.ListMaterials(course.ID, model.Slide)
	require.NoError(t, err)
	require.Len(t, slides, 1)
	assert.Equal(t, "Deck", slides[0].Title)
}

func TestCourseEnrollmentUnique(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCourseRepository(db)
	course := &model.Course{Name: "OS"}
	require.NoError(t, repo.Create(course))

	require.NoError(t, repo.CreateEnrollment(&model.CourseEnrollment{UserID: 1, CourseID: course.ID}))
	assert.Error(t, repo.CreateEnrollment(&model.CourseEnrollment{UserID: 1, CourseID: course.ID}))

	enrolled, err := repo.IsEnrolled(1, course.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)

	deleted, err := repo.DeleteEnrollment(1, course.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteEnrollment(1, course.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestCourseDeleteCascade(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCourseRepository(db)
	course := &model.Course{Name: "Algorithms"}
	require.NoError(t, repo.Create(course))
	require.NoError(t, repo.CreateMaterial(&model.CourseMaterial{CourseID: course.ID, Title: "Exam", Type: model.ExamMaterial, FileURL: "/uploads/m/e.pdf", FileName: "e.pdf"}))
	require.NoError(t, repo.CreateEnrollment(&model.CourseEnrollment{UserID: 3, CourseID: course.ID}))

	materials, err := repo.DeleteCascade(course.ID)
	require.NoError(t, err)
	require.Len(t, materials, 1)
	assert.Equal(t, "/uploads/m/e.pdf", materials[0].FileURL)

	count, err := repo.CountEnrollments(course.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = repo.DeleteCascade(course.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
