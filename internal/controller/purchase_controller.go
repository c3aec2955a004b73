package controller

import (
	"marketplace_backend/internal/service"
	"marketplace_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// PurchaseController 购买、撤销、完成与评价
type PurchaseController struct {
	PurchaseService   *service.PurchaseService
	CompletionService *service.CompletionService
	FeedbackService   *service.FeedbackService
}

func NewPurchaseController(
	purchaseService *service.PurchaseService,
	completionService *service.CompletionService,
	feedbackService *service.FeedbackService,
) *PurchaseController {
	return &PurchaseController{
		PurchaseService:   purchaseService,
		CompletionService: completionService,
		FeedbackService:   feedbackService,
	}
}

// PurchaseCourse godoc
// @Summary 购买课程
// @Description 扣减钱包积分、向课程所属方下单并记录购买
// @Tags 购买
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param body body service.CourseInput true "课程信息"
// @Success 201 {object} util.Response{data=model.PurchaseRecord}
// @Failure 400 {object} util.Response "积分不足或参数错误"
// @Failure 409 {object} util.Response "已购买或购买进行中"
// @Failure 503 {object} util.Response "协作服务不可用"
// @Router /consumer/{consumerId}/course/purchase [post]
func (c *PurchaseController) PurchaseCourse(ctx *gin.Context) {
	var req service.CourseInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.PurchaseService.Purchase(ctx.Request.Context(), ctx.Param("consumerId"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, record)
}

// ReversePurchase godoc
// @Summary 撤销购买
// @Description 删除购买记录并退款，退款暂时失败时由对账任务继续
// @Tags 购买
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param body body service.CourseKey true "课程自然键"
// @Success 200 {object} util.Response{data=service.ReversalResult}
// @Failure 404 {object} util.Response
// @Router /consumer/{consumerId}/course/purchase/reverse [post]
func (c *PurchaseController) ReversePurchase(ctx *gin.Context) {
	var req service.CourseKey
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.PurchaseService.Reverse(ctx.Request.Context(), ctx.Param("consumerId"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetPurchaseStatus godoc
// @Summary 购买状态
// @Tags 购买
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param body body service.CourseKey true "课程自然键"
// @Success 200 {object} util.Response{data=service.PurchaseStatus}
// @Router /consumer/{consumerId}/course/purchase/status [post]
func (c *PurchaseController) GetPurchaseStatus(ctx *gin.Context) {
	var req service.CourseKey
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	status, err := c.PurchaseService.Status(ctx.Request.Context(), ctx.Param("consumerId"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, status)
}

// CompleteCourse godoc
// @Summary 完成课程
// @Tags 购买
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param body body service.CourseKey true "课程自然键"
// @Success 200 {object} util.Response{data=model.PurchaseRecord}
// @Failure 404 {object} util.Response "未订阅该课程"
// @Router /consumer/{consumerId}/course/complete [patch]
func (c *PurchaseController) CompleteCourse(ctx *gin.Context) {
	var req service.CourseKey
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.CompletionService.Complete(ctx.Request.Context(), ctx.Param("consumerId"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, record)
}

// GiveFeedback godoc
// @Summary 课程评价
// @Description 仅已完成的课程可评价，评分同步到课程所属方与能力护照
// @Tags 购买
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param body body service.FeedbackInput true "评分与评价"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "课程未完成或评分无效"
// @Failure 404 {object} util.Response "未订阅该课程"
// @Router /consumer/{consumerId}/course/feedback [patch]
func (c *PurchaseController) GiveFeedback(ctx *gin.Context) {
	var req service.FeedbackInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.FeedbackService.GiveFeedback(ctx.Request.Context(), ctx.Param("consumerId"), req); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"rating": req.Rating})
}
