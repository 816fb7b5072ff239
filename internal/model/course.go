package model

import "time"

type MaterialType string

const (
	ExamMaterial MaterialType = "EXAM_MATERIAL"
	Textbook     MaterialType = "TEXTBOOK"
	Slide        MaterialType = "SLIDE"
)

func (t MaterialType) Valid() bool {
	return t == ExamMaterial || t == Textbook || t == Slide
}

// swagger:model Course
type Course struct {
	UUIDBase
	Name        string             `gorm:"size:200;not null" json:"name"`
	Description string             `gorm:"type:text" json:"description"`
	Icon        string             `gorm:"size:100" json:"icon"`
	Color       string             `gorm:"size:20" json:"color"`
	Materials   []CourseMaterial   `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"materials,omitempty"`
	Enrollments []CourseEnrollment `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"enrollments,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

type CourseMaterial struct {
	UUIDBase
	CourseID string       `gorm:"size:36;index;not null" json:"courseId"`
	Title    string       `gorm:"size:255;not null" json:"title"`
	Type     MaterialType `gorm:"size:20;index;not null" json:"type"`
	FileURL  string       `gorm:"size:512;not null" json:"fileUrl"`
	FileName string       `gorm:"size:255;not null" json:"fileName"`
	FileSize int64        `gorm:"default:0" json:"fileSize"`
}

func (CourseMaterial) TableName() string {
	return "course_materials"
}

type CourseEnrollment struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"userId"`
	CourseID   string    `gorm:"size:36;not null;uniqueIndex:idx_enrollment_user_course" json:"courseId"`
	EnrolledAt time.Time `gorm:"autoCreateTime" json:"enrolledAt"`
}

func (CourseEnrollment) TableName() string {
	return "course_enrollments"
}

// CourseSummary 课程列表项
type CourseSummary struct {
	Course
	MaterialCount   int64 `json:"materialCount"`
	EnrollmentCount int64 `json:"enrollmentCount"`
}

// CourseDetail 课程详情，按资料类型分组
type CourseDetail struct {
	Course
	EnrollmentCount int64            `json:"enrollmentCount"`
	ExamMaterials   []CourseMaterial `json:"examMaterials"`
	Textbooks       []CourseMaterial `json:"textbooks"`
	Slides          []CourseMaterial `json:"slides"`
}
