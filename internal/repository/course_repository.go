package repository

import (
	"aut_portal_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(course *model.Course) error {
	return r.DB.Create(course).Error
}

func (r *CourseRepository) Update(course *model.Course) error {
	return r.DB.Save(course).Error
}

func (r *CourseRepository) FindByID(id string) (*model.Course, error) {
	var course model.Course
	if err := r.DB.Where("id = ?", id).First(&course).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// List 课程列表（新的在前），附带资料数与选课人数
func (r *CourseRepository) List() ([]model.CourseSummary, error) {
	var rows []model.CourseSummary
	err := r.DB.Model(&model.Course{}).
		Select(`courses.*,
			(SELECT COUNT(*) FROM course_materials m WHERE m.course_id = courses.id) AS material_count,
			(SELECT COUNT(*) FROM course_enrollments e WHERE e.course_id = courses.id) AS enrollment_count`).
		Order("courses.created_at DESC").
		Scan(&rows).Error
	return rows, err
}

// DeleteCascade 删除课程及其资料与选课记录，返回被删除课程的资料以便清理存储
func (r *CourseRepository) DeleteCascade(id string) ([]model.CourseMaterial, error) {
	var materials []model.CourseMaterial
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&model.Course{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("course_id = ?", id).Find(&materials).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.CourseMaterial{}).Error; err != nil {
			return err
		}
		return tx.Where("course_id = ?", id).Delete(&model.CourseEnrollment{}).Error
	})
	return materials, err
}

func (r *CourseRepository) CountEnrollments(courseID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.CourseEnrollment{}).Where("course_id = ?", courseID).Count(&count).Error
	return count, err
}

// ListMaterials 课程资料，新的在前；materialType 为空时返回全部类型
func (r *CourseRepository) ListMaterials(courseID string, materialType model.MaterialType) ([]model.CourseMaterial, error) {
	var materials []model.CourseMaterial
	query := r.DB.Where("course_id = ?", courseID)
	if materialType != "" {
		query = query.Where("type = ?", materialType)
	}
	err := query.Order("created_at DESC").Find(&materials).Error
	return materials, err
}

func (r *CourseRepository) CreateMaterial(material *model.CourseMaterial) error {
	return r.DB.Create(material).Error
}

func (r *CourseRepository) FindMaterial(courseID, materialID string) (*model.CourseMaterial, error) {
	var material model.CourseMaterial
	if err := r.DB.Where("id = ? AND course_id = ?", materialID, courseID).First(&material).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func (r *CourseRepository) DeleteMaterial(id string) error {
	return r.DB.Where("id = ?", id).Delete(&model.CourseMaterial{}).Error
}

func (r *CourseRepository) CreateEnrollment(enrollment *model.CourseEnrollment) error {
	return r.DB.Create(enrollment).Error
}

func (r *CourseRepository) IsEnrolled(userID uint, courseID string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.CourseEnrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

// DeleteEnrollment 返回是否确实删除了选课记录
func (r *CourseRepository) DeleteEnrollment(userID uint, courseID string) (bool, error) {
	res := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).Delete(&model.CourseEnrollment{})
	return res.RowsAffected > 0, res.Error
}
