package service

import (
	"aut_portal_backend/internal/config"
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/repository"
	"aut_portal_backend/internal/util"
	"aut_portal_backend/pkg/logger"
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const materialUploadFolder = "materials"

type CourseService struct {
	Repo    *repository.CourseRepository
	Storage *StorageService
	Cfg     config.QuizConfig
}

func NewCourseService(repo *repository.CourseRepository, storage *StorageService, cfg config.QuizConfig) *CourseService {
	return &CourseService{Repo: repo, Storage: storage, Cfg: cfg}
}

type CourseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

type MaterialRequest struct {
	Title    string             `json:"title"`
	Type     model.MaterialType `json:"type"`
	FileURL  string             `json:"fileUrl"`
	FileName string             `json:"fileName"`
	FileSize int64              `json:"fileSize"`
}

func (s *CourseService) findCourse(id string) (*model.Course, error) {
	course, err := s.Repo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return course, nil
}

func (s *CourseService) ListCourses() ([]model.CourseSummary, error) {
	courses, err := s.Repo.List()
	if err != nil {
		return nil, err
	}
	if courses == nil {
		courses = []model.CourseSummary{}
	}
	return courses, nil
}

// GetCourse 课程详情，资料按类型分组
func (s *CourseService) GetCourse(id string) (*model.CourseDetail, error) {
	course, err := s.findCourse(id)
	if err != nil {
		return nil, err
	}
	materials, err := s.Repo.ListMaterials(id, "")
	if err != nil {
		return nil, err
	}
	enrollments, err := s.Repo.CountEnrollments(id)
	if err != nil {
		return nil, err
	}

	detail := &model.CourseDetail{
		Course:          *course,
		EnrollmentCount: enrollments,
		ExamMaterials:   []model.CourseMaterial{},
		Textbooks:       []model.CourseMaterial{},
		Slides:          []model.CourseMaterial{},
	}
	for _, m := range materials {
		switch m.Type {
		case model.ExamMaterial:
			detail.ExamMaterials = append(detail.ExamMaterials, m)
		case model.Textbook:
			detail.Textbooks = append(detail.Textbooks, m)
		case model.Slide:
			detail.Slides = append(detail.Slides, m)
		}
	}
	detail.Materials = materials
	return detail, nil
}

func (s *CourseService) CreateCourse(req CourseRequest) (*model.Course, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, util.ErrMissingFields
	}
	course := &model.Course{
		Name:        name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	}
	if err := s.Repo.Create(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) UpdateCourse(id string, req CourseRequest) (*model.Course, error) {
	course, err := s.findCourse(id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		course.Name = name
	}
	course.Description = req.Description
	course.Icon = req.Icon
	course.Color = req.Color
	if err := s.Repo.Update(course); err != nil {
		return nil, err
	}
	return course, nil
}

// DeleteCourse 删除课程、资料与选课记录，资料文件尽力删除
func (s *CourseService) DeleteCourse(ctx context.Context, id string) error {
	materials, err := s.Repo.DeleteCascade(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	for _, m := range materials {
		s.deleteFile(ctx, m)
	}
	return nil
}

// ListMaterials 类型无效时忽略过滤条件
func (s *CourseService) ListMaterials(courseID string, materialType model.MaterialType) ([]model.CourseMaterial, error) {
	if !materialType.Valid() {
		materialType = ""
	}
	materials, err := s.Repo.ListMaterials(courseID, materialType)
	if err != nil {
		return nil, err
	}
	if materials == nil {
		materials = []model.CourseMaterial{}
	}
	return materials, nil
}

func (s *CourseService) CreateMaterial(courseID string, req MaterialRequest) (*model.CourseMaterial, error) {
	if strings.TrimSpace(req.Title) == "" || req.Type == "" || req.FileURL == "" || req.FileName == "" {
		return nil, util.ErrMissingFields
	}
	if !req.Type.Valid() {
		return nil, util.ErrInvalidMaterialType
	}
	if _, err := s.findCourse(courseID); err != nil {
		return nil, err
	}

	fileSize := req.FileSize
	if fileSize < 0 {
		fileSize = 0
	}
	material := &model.CourseMaterial{
		CourseID: courseID,
		Title:    strings.TrimSpace(req.Title),
		Type:     req.Type,
		FileURL:  req.FileURL,
		FileName: req.FileName,
		FileSize: fileSize,
	}
	if err := s.Repo.CreateMaterial(material); err != nil {
		return nil, err
	}
	return material, nil
}

func (s *CourseService) DeleteMaterial(ctx context.Context, courseID, materialID string) error {
	material, err := s.Repo.FindMaterial(courseID, materialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrMaterialNotFound
		}
		return err
	}
	s.deleteFile(ctx, *material)
	return s.Repo.DeleteMaterial(material.ID)
}

func (s *CourseService) deleteFile(ctx context.Context, m model.CourseMaterial) {
	if err := s.Storage.Delete(ctx, m.FileURL); err != nil {
		logger.Log.Warn("Failed to delete material file",
			zap.String("materialId", m.ID),
			zap.String("fileUrl", m.FileURL),
			zap.Error(err),
		)
	}
}

func (s *CourseService) UploadMaterialFile(ctx context.Context, fh *multipart.FileHeader) (*StoredFile, error) {
	maxBytes := int64(s.Cfg.MaterialMaxUploadMB) << 20
	return s.Storage.SaveUpload(ctx, materialUploadFolder, fh, util.MaterialExtensions, util.MaterialMimes, maxBytes)
}

func (s *CourseService) Enroll(userID uint, courseID string) (*model.CourseEnrollment, error) {
	if _, err := s.findCourse(courseID); err != nil {
		return nil, err
	}
	enrolled, err := s.Repo.IsEnrolled(userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, util.ErrAlreadyEnrolled
	}

	enrollment := &model.CourseEnrollment{UserID: userID, CourseID: courseID}
	if err := s.Repo.CreateEnrollment(enrollment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrAlreadyEnrolled
		}
		return nil, err
	}
	return enrollment, nil
}

func (s *CourseService) Unenroll(userID uint, courseID string) error {
	deleted, err := s.Repo.DeleteEnrollment(userID, courseID)
	if err != nil {
		return err
	}
	if !deleted {
		return util.ErrNotEnrolled
	}
	return nil
}
