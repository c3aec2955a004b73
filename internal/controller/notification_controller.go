package controller

import (
	"strconv"

	"marketplace_backend/internal/service"
	"marketplace_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	NotificationService *service.NotificationService
}

func NewNotificationController(notificationService *service.NotificationService) *NotificationController {
	return &NotificationController{NotificationService: notificationService}
}

// @Summary 通知列表
// @Tags 通知
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Success 200 {object} util.Response{data=[]model.Notification}
// @Router /consumer/{consumerId}/notifications [get]
func (c *NotificationController) List(ctx *gin.Context) {
	list, err := c.NotificationService.List(ctx.Request.Context(), ctx.Param("consumerId"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 创建通知
// @Tags 通知
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param body body service.NotificationInput true "通知内容"
// @Success 201 {object} util.Response{data=model.Notification}
// @Router /consumer/{consumerId}/notifications [post]
func (c *NotificationController) Create(ctx *gin.Context) {
	var req service.NotificationInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	n, err := c.NotificationService.Create(ctx.Request.Context(), ctx.Param("consumerId"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, n)
}

// @Summary 标记通知已读
// @Tags 通知
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param notificationId path int true "通知ID"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /consumer/{consumerId}/notifications/{notificationId} [patch]
func (c *NotificationController) MarkViewed(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("notificationId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "无效的通知ID")
		return
	}

	if err := c.NotificationService.MarkViewed(ctx.Request.Context(), ctx.Param("consumerId"), uint(id)); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
