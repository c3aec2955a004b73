package controller

import (
	"strconv"

	"marketplace_backend/internal/service"
	"marketplace_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// CourseController 课程发现：代理本地课程管理器与 Beckn 搜索
type CourseController struct {
	CatalogService *service.CatalogService
}

func NewCourseController(catalogService *service.CatalogService) *CourseController {
	return &CourseController{CatalogService: catalogService}
}

// Search godoc
// @Summary 搜索课程
// @Description 返回本地课程与 Beckn 搜索的 messageId，外部结果需轮询获取
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param searchText query string true "关键词"
// @Success 200 {object} util.Response{data=service.SearchResult}
// @Router /consumer/course/search [get]
func (c *CourseController) Search(ctx *gin.Context) {
	text := ctx.Query("searchText")
	if text == "" {
		util.BadRequest(ctx, "searchText is required")
		return
	}

	result, err := c.CatalogService.Search(ctx.Request.Context(), text)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// PollSearch godoc
// @Summary 轮询 Beckn 搜索结果
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param messageId path string true "搜索 messageId"
// @Success 200 {object} util.Response
// @Router /consumer/course/search/poll/{messageId} [get]
func (c *CourseController) PollSearch(ctx *gin.Context) {
	out, err := c.CatalogService.PollSearch(ctx.Request.Context(), ctx.Param("messageId"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, out)
}

// Popular godoc
// @Summary 热门课程
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "条数" default(10)
// @Param offset query int false "偏移" default(0)
// @Success 200 {object} util.Response
// @Router /consumer/course/popular [get]
func (c *CourseController) Popular(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	out, err := c.CatalogService.Popular(ctx.Request.Context(), limit, offset)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, out)
}

// View godoc
// @Summary 课程详情
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path string true "课程ID"
// @Success 200 {object} util.Response
// @Router /consumer/course/{courseId} [get]
func (c *CourseController) View(ctx *gin.Context) {
	out, err := c.CatalogService.View(ctx.Request.Context(), ctx.Param("courseId"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, out)
}
