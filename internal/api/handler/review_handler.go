package handler

import (
	"github.com/gin-gonic/gin"

	"careerfocus/backend/internal/dto"
	"careerfocus/backend/internal/service"
	"careerfocus/backend/pkg/response"
)

// ReviewHandler 审核模块 HTTP 处理器（管理员）
type ReviewHandler struct {
	reviewSvc service.ReviewService
}

// NewReviewHandler 创建 ReviewHandler
func NewReviewHandler(reviewSvc service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewSvc: reviewSvc}
}

// List 审核队列
// GET /api/v1/admin/timesheets?status=submitted&page=1&page_size=20
func (h *ReviewHandler) List(c *gin.Context) {
	var req dto.AdminTimesheetListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	list, total, err := h.reviewSvc.List(c.Request.Context(), &req)
	if err != nil {
		handleTimesheetError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Review 通过或驳回
// PUT /api/v1/admin/timesheets/:id/review
func (h *ReviewHandler) Review(c *gin.Context) {
	reviewerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ReviewTimesheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ts, err := h.reviewSvc.Review(c.Request.Context(), c.Param("id"), reviewerID, &req)
	if err != nil {
		handleTimesheetError(c, err)
		return
	}

	response.OK(c, ts)
}

// [自证通过] internal/api/handler/review_handler.go
