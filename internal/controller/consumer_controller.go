package controller

import (
	"strconv"

	"marketplace_backend/internal/model"
	"marketplace_backend/internal/service"
	"marketplace_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ConsumerController 消费者资料、收藏、钱包
type ConsumerController struct {
	ConsumerService *service.ConsumerService
}

func NewConsumerController(consumerService *service.ConsumerService) *ConsumerController {
	return &ConsumerController{ConsumerService: consumerService}
}

// Signup godoc
// @Summary 注册消费者
// @Description 用户服务创建账号后登记本地消费者记录，consumerId 必须与令牌主体一致
// @Tags 消费者
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.SignupInput true "消费者信息"
// @Success 201 {object} util.Response{data=model.Consumer}
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response "消费者已存在"
// @Router /consumer [post]
func (c *ConsumerController) Signup(ctx *gin.Context) {
	var req service.SignupInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetClaimsFromContext(ctx)
	if claims == nil || claims.ConsumerID() != req.ConsumerID {
		util.Forbidden(ctx)
		return
	}

	consumer, err := c.ConsumerService.Signup(ctx.Request.Context(), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, consumer)
}

// GetAccountDetails godoc
// @Summary 账户详情
// @Description 本地资料、钱包余额、已购课程数
// @Tags 消费者
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Success 200 {object} util.Response{data=service.AccountDetails}
// @Failure 404 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /consumer/{consumerId} [get]
func (c *ConsumerController) GetAccountDetails(ctx *gin.Context) {
	details, err := c.ConsumerService.AccountDetails(ctx.Request.Context(), ctx.Param("consumerId"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, details)
}

// GetPurchases godoc
// @Summary 购买记录
// @Tags 消费者
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param status query string false "IN_PROGRESS / COMPLETED"
// @Success 200 {object} util.Response{data=[]model.PurchaseRecord}
// @Router /consumer/{consumerId}/course/purchases [get]
func (c *ConsumerController) GetPurchases(ctx *gin.Context) {
	status := model.CourseProgressStatus(ctx.Query("status"))
	switch status {
	case "", model.CourseInProgress, model.CourseCompleted:
	default:
		util.BadRequest(ctx, "status must be IN_PROGRESS or COMPLETED")
		return
	}

	records, err := c.ConsumerService.PurchaseHistory(ctx.Request.Context(), ctx.Param("consumerId"), status)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, records)
}

// GetOngoing godoc
// @Summary 学习中的课程
// @Tags 消费者
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Success 200 {object} util.Response{data=[]model.PurchaseRecord}
// @Router /consumer/{consumerId}/course/ongoing [get]
func (c *ConsumerController) GetOngoing(ctx *gin.Context) {
	records, err := c.ConsumerService.Ongoing(ctx.Request.Context(), ctx.Param("consumerId"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, records)
}

// SaveCourse godoc
// @Summary 收藏课程
// @Tags 收藏
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param body body service.CourseInput true "课程信息"
// @Success 201 {object} util.Response
// @Failure 409 {object} util.Response "已收藏"
// @Router /consumer/{consumerId}/course/save [post]
func (c *ConsumerController) SaveCourse(ctx *gin.Context) {
	var req service.CourseInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.ConsumerService.Save(ctx.Request.Context(), ctx.Param("consumerId"), req); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"saved": true})
}

// UnsaveCourse godoc
// @Summary 取消收藏
// @Tags 收藏
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param body body service.CourseKey true "课程自然键"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response "未收藏"
// @Router /consumer/{consumerId}/course/unsave [patch]
func (c *ConsumerController) UnsaveCourse(ctx *gin.Context) {
	var req service.CourseKey
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.ConsumerService.Unsave(ctx.Request.Context(), ctx.Param("consumerId"), req); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"saved": false})
}

// CheckSaved godoc
// @Summary 是否已收藏
// @Tags 收藏
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param body body service.CourseKey true "课程自然键"
// @Success 200 {object} util.Response
// @Router /consumer/{consumerId}/course/save/status [post]
func (c *ConsumerController) CheckSaved(ctx *gin.Context) {
	var req service.CourseKey
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	saved, err := c.ConsumerService.CheckSaved(ctx.Request.Context(), ctx.Param("consumerId"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"saved": saved})
}

// ToggleSaved godoc
// @Summary 切换收藏状态
// @Tags 收藏
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param courseInfoId path int true "课程目录ID"
// @Success 200 {object} util.Response
// @Router /consumer/{consumerId}/course/saved/{courseInfoId}/toggle [patch]
func (c *ConsumerController) ToggleSaved(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("courseInfoId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "无效的课程ID")
		return
	}

	saved, err := c.ConsumerService.ToggleSaved(ctx.Request.Context(), ctx.Param("consumerId"), uint(id))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"saved": saved})
}

// GetSaved godoc
// @Summary 收藏列表
// @Tags 收藏
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Success 200 {object} util.Response{data=[]model.CourseInfo}
// @Router /consumer/{consumerId}/course/saved [get]
func (c *ConsumerController) GetSaved(ctx *gin.Context) {
	courses, err := c.ConsumerService.ListSaved(ctx.Request.Context(), ctx.Param("consumerId"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// GetWalletCredits godoc
// @Summary 钱包余额
// @Tags 钱包
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /consumer/{consumerId}/wallet/credits [get]
func (c *ConsumerController) GetWalletCredits(ctx *gin.Context) {
	credits, err := c.ConsumerService.WalletCredits(ctx.Request.Context(), ctx.Param("consumerId"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"credits": credits})
}

// GetWalletTransactions godoc
// @Summary 钱包流水
// @Tags 钱包
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Success 200 {object} util.Response
// @Router /consumer/{consumerId}/wallet/transactions [get]
func (c *ConsumerController) GetWalletTransactions(ctx *gin.Context) {
	txs, err := c.ConsumerService.WalletTransactions(ctx.Request.Context(), ctx.Param("consumerId"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, txs)
}

// RequestCredits godoc
// @Summary 申请积分
// @Tags 钱包
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param consumerId path string true "消费者ID"
// @Param body body service.CreditRequestInput true "申请内容"
// @Success 201 {object} util.Response
// @Router /consumer/{consumerId}/request [post]
func (c *ConsumerController) RequestCredits(ctx *gin.Context) {
	var req service.CreditRequestInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	out, err := c.ConsumerService.RequestCredits(ctx.Request.Context(), ctx.Param("consumerId"), req)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, out)
}
