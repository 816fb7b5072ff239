package controller

import (
	"aut_portal_backend/internal/model"
	"aut_portal_backend/internal/service"
	"aut_portal_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CourseService *service.CourseService
}

func NewCourseController(courseService *service.CourseService) *CourseController {
	return &CourseController{CourseService: courseService}
}

// @Summary 课程列表
// @Tags 课程
// @Produce json
// @Success 200 {object} util.Response{data=[]model.CourseSummary}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	courses, err := c.CourseService.ListCourses()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// @Summary 课程详情
// @Tags 课程
// @Produce json
// @Param id path string true "课程 ID"
// @Success 200 {object} util.Response{data=model.CourseDetail}
// @Failure 404 {object} util.Response
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	course, err := c.CourseService.GetCourse(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// @Summary 课程资料列表
// @Tags 课程
// @Produce json
// @Param id path string true "课程 ID"
// @Param type query string false "资料类型" Enums(EXAM_MATERIAL, TEXTBOOK, SLIDE)
// @Success 200 {object} util.Response{data=[]model.CourseMaterial}
// @Router /api/courses/{id}/materials [get]
func (c *CourseController) ListMaterials(ctx *gin.Context) {
	materials, err := c.CourseService.ListMaterials(ctx.Param("id"), model.MaterialType(ctx.Query("type")))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, materials)
}

// @Summary 选课
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程 ID"
// @Success 201 {object} util.Response{data=model.CourseEnrollment}
// @Failure 400 {object} util.Response "已选课"
// @Failure 404 {object} util.Response
// @Router /api/courses/{id}/enroll [post]
func (c *CourseController) Enroll(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	enrollment, err := c.CourseService.Enroll(userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, enrollment)
}

// @Summary 退课
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程 ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/courses/{id}/enroll [delete]
func (c *CourseController) Unenroll(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}
	if err := c.CourseService.Unenroll(userID, ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"success": true})
}

// @Summary 创建课程
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.CourseRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.Course}
// @Failure 400 {object} util.Response
// @Router /api/admin/courses [post]
func (c *CourseController) CreateCourse(ctx *gin.Context) {
	var req service.CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.CourseService.CreateCourse(req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// @Summary 更新课程
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程 ID"
// @Param body body service.CourseRequest true "课程信息"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 404 {object} util.Response
// @Router /api/admin/courses/{id} [put]
func (c *CourseController) UpdateCourse(ctx *gin.Context) {
	var req service.CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.CourseService.UpdateCourse(ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// @Summary 删除课程
// @Description 同时删除课程资料与选课记录
// @Tags 课程管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程 ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/admin/courses/{id} [delete]
func (c *CourseController) DeleteCourse(ctx *gin.Context) {
	if err := c.CourseService.DeleteCourse(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"success": true})
}

// @Summary 添加课程资料
// @Tags 课程管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程 ID"
// @Param body body service.MaterialRequest true "资料信息"
// @Success 201 {object} util.Response{data=model.CourseMaterial}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/admin/courses/{id}/materials [post]
func (c *CourseController) CreateMaterial(ctx *gin.Context) {
	var req service.MaterialRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	material, err := c.CourseService.CreateMaterial(ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, material)
}

// @Summary 删除课程资料
// @Tags 课程管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "课程 ID"
// @Param materialId path string true "资料 ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/admin/courses/{id}/materials/{materialId} [delete]
func (c *CourseController) DeleteMaterial(ctx *gin.Context) {
	if err := c.CourseService.DeleteMaterial(ctx.Request.Context(), ctx.Param("id"), ctx.Param("materialId")); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"success": true})
}

// @Summary 上传课程资料文件
// @Tags 课程管理
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "资料文件"
// @Success 200 {object} util.Response{data=service.StoredFile}
// @Failure 400 {object} util.Response
// @Router /api/admin/upload [post]
func (c *CourseController) UploadMaterialFile(ctx *gin.Context) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "No file selected")
		return
	}
	stored, err := c.CourseService.UploadMaterialFile(ctx.Request.Context(), fh)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, stored)
}
