package controller

import (
	"marketplace_backend/internal/service"
	"marketplace_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// WebhookController 外部 BPP / 课程管理器的异步回调
type WebhookController struct {
	PurchaseService   *service.PurchaseService
	CompletionService *service.CompletionService
}

func NewWebhookController(purchaseService *service.PurchaseService, completionService *service.CompletionService) *WebhookController {
	return &WebhookController{
		PurchaseService:   purchaseService,
		CompletionService: completionService,
	}
}

// ConfirmPurchase godoc
// @Summary 外部订单确认回调
// @Tags 回调
// @Accept json
// @Produce json
// @Security WebhookKey
// @Param body body service.Confirmation true "确认信息"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response "课程未购买"
// @Failure 404 {object} util.Response
// @Router /webhook/confirm [post]
func (c *WebhookController) ConfirmPurchase(ctx *gin.Context) {
	var req service.Confirmation
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.PurchaseService.ConfirmPurchase(ctx.Request.Context(), req); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"confirmed": true})
}

// CompleteCourse godoc
// @Summary 课程完成回调
// @Description 签发结业凭证并标记完成，重复回调不会重复签发
// @Tags 回调
// @Accept json
// @Produce json
// @Security WebhookKey
// @Param body body service.Confirmation true "完成信息"
// @Success 200 {object} util.Response{data=model.PurchaseRecord}
// @Failure 400 {object} util.Response "课程未购买"
// @Router /webhook/complete [post]
func (c *WebhookController) CompleteCourse(ctx *gin.Context) {
	var req service.Confirmation
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.CompletionService.CompleteOnConfirm(ctx.Request.Context(), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, record)
}
