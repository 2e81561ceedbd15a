package service

import (
	"time"

	"careerfocus/backend/internal/dto"
	"careerfocus/backend/internal/model"
	"careerfocus/backend/internal/timesheet"
)

// ── model ↔ timesheet ↔ dto 转换 ──

func optionalText(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func textPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// entryFromModel 转为领域条目并按时间字段重算工时
func entryFromModel(e *model.TimesheetEntry) timesheet.DayEntry {
	d := timesheet.DayEntry{
		Date:      timesheet.DateOf(e.WorkDate),
		StartTime: optionalText(e.StartTime),
		EndTime:   optionalText(e.EndTime),
		LunchOut:  optionalText(e.LunchOut),
		LunchIn:   optionalText(e.LunchIn),
		Hours:     e.Hours,
	}
	// 无法解析的历史数据保留库中工时
	_ = d.Recompute()
	return d
}

// entryToModel 领域条目转为持久化模型
func entryToModel(d timesheet.DayEntry) model.TimesheetEntry {
	return model.TimesheetEntry{
		WorkDate:  d.Date,
		StartTime: textPtr(d.StartTime),
		EndTime:   textPtr(d.EndTime),
		LunchOut:  textPtr(d.LunchOut),
		LunchIn:   textPtr(d.LunchIn),
		Hours:     d.Hours,
	}
}

// domainEntries 工时表全部条目（按日期排序，由仓储层保证）
func domainEntries(ts *model.Timesheet) []timesheet.DayEntry {
	out := make([]timesheet.DayEntry, 0, len(ts.Entries))
	for i := range ts.Entries {
		out = append(out, entryFromModel(&ts.Entries[i]))
	}
	return out
}

// toTimesheetResponse 总工时在此由条目累加得出
func toTimesheetResponse(ts *model.Timesheet) *dto.TimesheetResponse {
	entries := domainEntries(ts)
	resp := &dto.TimesheetResponse{
		ID:              ts.ID,
		OwnerID:         ts.OwnerID,
		WeekStart:       ts.WeekStart.Format(timesheet.DateLayout),
		WeekEnd:         ts.WeekEnd.Format(timesheet.DateLayout),
		Status:          ts.Status,
		Notes:           ts.Notes,
		TotalHours:      timesheet.SumHours(entries),
		Signed:          ts.SignaturePath != "",
		SignedAt:        formatTimePtr(ts.SignedAt),
		SubmittedAt:     formatTimePtr(ts.SubmittedAt),
		ReviewedAt:      formatTimePtr(ts.ReviewedAt),
		ReviewedBy:      ts.ReviewedBy,
		RejectionReason: ts.RejectionReason,
		Version:         ts.Version,
		Entries:         make([]dto.DayEntryResponse, 0, len(entries)),
	}
	if ts.Owner != nil {
		resp.OwnerName = ts.Owner.Name
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, dto.DayEntryResponse{
			Date:      e.Date.Format(timesheet.DateLayout),
			StartTime: textPtr(e.StartTime),
			EndTime:   textPtr(e.EndTime),
			LunchOut:  textPtr(e.LunchOut),
			LunchIn:   textPtr(e.LunchIn),
			Hours:     e.Hours,
		})
	}
	return resp
}

func toTimesheetResponses(list []model.Timesheet) []dto.TimesheetResponse {
	out := make([]dto.TimesheetResponse, 0, len(list))
	for i := range list {
		out = append(out, *toTimesheetResponse(&list[i]))
	}
	return out
}

func toReviewLogResponse(l *model.TimesheetReviewLog) dto.ReviewLogResponse {
	return dto.ReviewLogResponse{
		Action:     l.Action,
		FromStatus: l.FromStatus,
		ToStatus:   l.ToStatus,
		OperatorID: l.OperatorID,
		Reason:     l.Reason,
		CreatedAt:  l.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// [自证通过] internal/service/timesheet_convert.go
