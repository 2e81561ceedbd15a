package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"careerfocus/backend/config"
	"careerfocus/backend/internal/dto"
	"careerfocus/backend/internal/model"
	"careerfocus/backend/internal/timesheet"
	pkgerrors "careerfocus/backend/pkg/errors"
	"careerfocus/backend/pkg/redis"
	"careerfocus/backend/pkg/storage"
)

// ── 测试辅助 ──

const testWeek = "2026-03-02" // 周一

func setupTestTimesheetService(t *testing.T) (TimesheetService, *testRepos) {
	t.Helper()
	repos := newTestRepos()
	store := storage.NewLocalSignatureStore(t.TempDir(), zap.NewNop())
	svc := NewTimesheetService(testConfig(), repos.repo, store, nil, zap.NewNop())
	return svc, repos
}

func sp(s string) *string { return &s }

func workday(date, start, end, lunchOut, lunchIn string) dto.DayEntryRequest {
	e := dto.DayEntryRequest{Date: date, StartTime: sp(start), EndTime: sp(end)}
	if lunchOut != "" {
		e.LunchOut = sp(lunchOut)
	}
	if lunchIn != "" {
		e.LunchIn = sp(lunchIn)
	}
	return e
}

func saveReq(notes string, entries ...dto.DayEntryRequest) *dto.SaveTimesheetRequest {
	return &dto.SaveTimesheetRequest{
		WeekStart: testWeek,
		WeekEnd:   "2026-03-06",
		Notes:     notes,
		Entries:   entries,
	}
}

func mustSave(t *testing.T, svc TimesheetService, ownerID string, req *dto.SaveTimesheetRequest) *dto.TimesheetResponse {
	t.Helper()
	resp, err := svc.Save(context.Background(), ownerID, req)
	if err != nil {
		t.Fatalf("Save 应成功: %v", err)
	}
	return resp
}

// ── Save 测试 ──

func TestTimesheetService_Save_CreatesDraft(t *testing.T) {
	svc, _ := setupTestTimesheetService(t)

	resp := mustSave(t, svc, "uid-001", saveReq("first week",
		workday("2026-03-02", "9:00", "17:00", "12:00", "12:30"),
		workday("2026-03-03", "09:00", "13:00", "", ""),
	))

	if resp.ID == "" || resp.Status != model.TimesheetStatusDraft {
		t.Fatalf("期望新建草稿，实际 %+v", resp)
	}
	if len(resp.Entries) != 5 {
		t.Fatalf("期望补齐 5 天条目，实际 %d", len(resp.Entries))
	}
	if *resp.Entries[0].StartTime != "09:00" {
		t.Errorf("时间应规范化为 HH:MM，实际 %s", *resp.Entries[0].StartTime)
	}
	if resp.Entries[0].Hours != 7.5 || resp.Entries[1].Hours != 4 {
		t.Errorf("期望工时 7.5 / 4，实际 %v / %v", resp.Entries[0].Hours, resp.Entries[1].Hours)
	}
	if resp.Entries[2].StartTime != nil || resp.Entries[2].Hours != 0 {
		t.Errorf("未填写的日期应为空白，实际 %+v", resp.Entries[2])
	}
	if resp.TotalHours != 11.5 {
		t.Errorf("期望总工时 11.5，实际 %v", resp.TotalHours)
	}
}

func TestTimesheetService_Save_OverwritesSameWeek(t *testing.T) {
	svc, repos := setupTestTimesheetService(t)

	first := mustSave(t, svc, "uid-001", saveReq("v1", workday("2026-03-02", "09:00", "17:00", "", "")))
	second := mustSave(t, svc, "uid-001", saveReq("v2", workday("2026-03-04", "10:00", "12:00", "", "")))

	if first.ID != second.ID {
		t.Errorf("同周两次保存应为同一记录，实际 %s / %s", first.ID, second.ID)
	}
	if second.Notes != "v2" {
		t.Errorf("期望备注为第二次保存的内容，实际 %q", second.Notes)
	}
	if second.TotalHours != 2 {
		t.Errorf("条目应整体替换，期望总工时 2，实际 %v", second.TotalHours)
	}
	if second.Version != first.Version+1 {
		t.Errorf("期望版本号递增，实际 %d -> %d", first.Version, second.Version)
	}
	if len(repos.timesheets.timesheets) != 1 {
		t.Errorf("期望仅 1 条记录，实际 %d", len(repos.timesheets.timesheets))
	}
}

func TestTimesheetService_Save_StaleVersion(t *testing.T) {
	svc, _ := setupTestTimesheetService(t)
	mustSave(t, svc, "uid-001", saveReq("v1"))
	mustSave(t, svc, "uid-001", saveReq("v2"))

	req := saveReq("stale")
	stale := 1
	req.Version = &stale
	if _, err := svc.Save(context.Background(), "uid-001", req); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，实际: %v", err)
	}
}

func TestTimesheetService_Save_ValidationErrors(t *testing.T) {
	svc, repos := setupTestTimesheetService(t)

	tests := []struct {
		name string
		req  *dto.SaveTimesheetRequest
		want error
	}{
		{
			name: "起始日不是周一",
			req:  &dto.SaveTimesheetRequest{WeekStart: "2026-03-03", WeekEnd: "2026-03-07"},
			want: timesheet.ErrNotMonday,
		},
		{
			name: "周期长度非法",
			req:  &dto.SaveTimesheetRequest{WeekStart: testWeek, WeekEnd: "2026-03-07"},
			want: timesheet.ErrInvalidWeekRange,
		},
		{
			name: "条目超出周期",
			req:  saveReq("", workday("2026-03-07", "09:00", "10:00", "", "")),
			want: timesheet.ErrEntryOutOfRange,
		},
		{
			name: "日期重复",
			req: saveReq("",
				workday("2026-03-02", "09:00", "10:00", "", ""),
				workday("2026-03-02", "11:00", "12:00", "", "")),
			want: timesheet.ErrDuplicateDate,
		},
		{
			name: "时间格式错误",
			req:  saveReq("", workday("2026-03-02", "25:00", "10:00", "", "")),
			want: timesheet.ErrInvalidClock,
		},
		{
			name: "跨夜班次",
			req:  saveReq("", workday("2026-03-02", "22:00", "06:00", "", "")),
			want: timesheet.ErrOvernightShift,
		},
		{
			name: "午休区间倒置",
			req:  saveReq("", workday("2026-03-02", "09:00", "17:00", "13:00", "12:00")),
			want: timesheet.ErrInvalidLunch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Save(context.Background(), "uid-001", tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}
	if repos.timesheets.saveCalls != 0 {
		t.Errorf("校验失败时不应写库，实际调用 %d 次", repos.timesheets.saveCalls)
	}
}

func TestTimesheetService_Save_SevenDayWeek(t *testing.T) {
	svc, _ := setupTestTimesheetService(t)

	resp := mustSave(t, svc, "uid-001", &dto.SaveTimesheetRequest{
		WeekStart: testWeek,
		WeekEnd:   "2026-03-08",
		Entries:   []dto.DayEntryRequest{workday("2026-03-08", "10:00", "14:00", "", "")},
	})
	if len(resp.Entries) != 7 || resp.WeekEnd != "2026-03-08" {
		t.Errorf("期望 7 天周期，实际 %d 天 week_end=%s", len(resp.Entries), resp.WeekEnd)
	}
	if resp.TotalHours != 4 {
		t.Errorf("期望周日 4 小时计入总工时，实际 %v", resp.TotalHours)
	}
}

// ── Submit 测试 ──

func TestTimesheetService_Submit_Success(t *testing.T) {
	svc, repos := setupTestTimesheetService(t)
	draft := mustSave(t, svc, "uid-001", saveReq("", workday("2026-03-02", "09:00", "17:00", "", "")))

	resp, err := svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "Alice Student"})
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if resp.Status != model.TimesheetStatusSubmitted || !resp.Signed {
		t.Errorf("期望已提交且已签名，实际 %+v", resp)
	}
	if resp.SubmittedAt == nil || resp.SignedAt == nil {
		t.Error("期望记录提交与签名时间")
	}
	if resp.TotalHours != 8 {
		t.Errorf("期望总工时 8，实际 %v", resp.TotalHours)
	}

	logs, _ := repos.logs.ListByTimesheet(context.Background(), draft.ID)
	if len(logs) != 1 || logs[0].Action != model.ReviewActionSubmit || logs[0].ToStatus != model.TimesheetStatusSubmitted {
		t.Errorf("期望写入 1 条提交记录，实际 %+v", logs)
	}
}

func TestTimesheetService_Submit_ZeroHoursStaysDraft(t *testing.T) {
	svc, repos := setupTestTimesheetService(t)
	draft := mustSave(t, svc, "uid-001", saveReq("nothing yet"))

	_, err := svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "Alice"})
	if !errors.Is(err, timesheet.ErrNoHours) {
		t.Fatalf("期望 ErrNoHours，实际: %v", err)
	}

	stored, _ := repos.timesheets.GetByID(context.Background(), draft.ID)
	if stored.Status != model.TimesheetStatusDraft || stored.SignaturePath != "" {
		t.Errorf("拒绝提交后应保持草稿且无签名，实际 status=%s sig=%q", stored.Status, stored.SignaturePath)
	}
}

func TestTimesheetService_Submit_ZeroHoursCheckedBeforeSignature(t *testing.T) {
	svc, _ := setupTestTimesheetService(t)
	draft := mustSave(t, svc, "uid-001", saveReq(""))

	_, err := svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: ""})
	if !errors.Is(err, timesheet.ErrNoHours) {
		t.Errorf("零工时且无签名时应优先返回 ErrNoHours，实际: %v", err)
	}
}

func TestTimesheetService_Submit_EmptySignature(t *testing.T) {
	svc, _ := setupTestTimesheetService(t)
	draft := mustSave(t, svc, "uid-001", saveReq("", workday("2026-03-02", "09:00", "17:00", "", "")))

	_, err := svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "   "})
	if !errors.Is(err, timesheet.ErrEmptySignature) {
		t.Errorf("期望 ErrEmptySignature，实际: %v", err)
	}
}

func TestTimesheetService_Submit_InvalidSignature(t *testing.T) {
	svc, _ := setupTestTimesheetService(t)
	draft := mustSave(t, svc, "uid-001", saveReq("", workday("2026-03-02", "09:00", "17:00", "", "")))

	_, err := svc.Submit(context.Background(), draft.ID, "uid-001",
		&dto.SubmitTimesheetRequest{Signature: "data:image/gif;base64,R0lGODlh"})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("期望 ErrInvalidSignature，实际: %v", err)
	}
}

func TestTimesheetService_Submit_NotOwner(t *testing.T) {
	svc, _ := setupTestTimesheetService(t)
	draft := mustSave(t, svc, "uid-001", saveReq("", workday("2026-03-02", "09:00", "17:00", "", "")))

	_, err := svc.Submit(context.Background(), draft.ID, "uid-002", &dto.SubmitTimesheetRequest{Signature: "Mallory"})
	if !errors.Is(err, ErrOnlyOwnerCanSubmit) {
		t.Errorf("期望 ErrOnlyOwnerCanSubmit，实际: %v", err)
	}
}

func TestTimesheetService_NotEditableAfterSubmit(t *testing.T) {
	svc, _ := setupTestTimesheetService(t)
	draft := mustSave(t, svc, "uid-001", saveReq("", workday("2026-03-02", "09:00", "17:00", "", "")))
	if _, err := svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "Alice"}); err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}

	if _, err := svc.Save(context.Background(), "uid-001", saveReq("edit")); !errors.Is(err, ErrTimesheetNotEditable) {
		t.Errorf("提交后保存应返回 ErrTimesheetNotEditable，实际: %v", err)
	}
	_, err := svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "Alice"})
	if !errors.Is(err, timesheet.ErrInvalidTransition) {
		t.Errorf("重复提交应返回 ErrInvalidTransition，实际: %v", err)
	}
}

func TestTimesheetService_Submit_BusyWhileLocked(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := redis.NewClient(&config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	if err != nil {
		t.Fatalf("连接 miniredis 失败: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	repos := newTestRepos()
	svc := NewTimesheetService(testConfig(), repos.repo, newMockSignatureStore(), rdb, zap.NewNop())
	draft := mustSave(t, svc, "uid-001", saveReq("", workday("2026-03-02", "09:00", "17:00", "", "")))

	held, err := rdb.AcquireLock(context.Background(), "timesheet:"+draft.ID, time.Minute)
	if err != nil {
		t.Fatalf("预先加锁失败: %v", err)
	}

	_, err = svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "Alice"})
	if !errors.Is(err, ErrTimesheetBusy) {
		t.Fatalf("锁被占用时应返回 ErrTimesheetBusy，实际: %v", err)
	}

	held.Release(context.Background())
	if _, err := svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "Alice"}); err != nil {
		t.Fatalf("释放锁后 Submit 应成功: %v", err)
	}
	if mr.Exists("lock:timesheet:" + draft.ID) {
		t.Error("提交完成后应释放锁")
	}
}

func TestTimesheetService_Submit_RemovesSignatureWhenTransitionFails(t *testing.T) {
	repos := newTestRepos()
	store := newMockSignatureStore()
	svc := NewTimesheetService(testConfig(), repos.repo, store, nil, zap.NewNop())
	draft := mustSave(t, svc, "uid-001", saveReq("", workday("2026-03-02", "09:00", "17:00", "", "")))

	repos.timesheets.updateStatusErr = pkgerrors.ErrOptimisticLock
	_, err := svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "Alice"})
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Fatalf("期望 ErrOptimisticLock，实际: %v", err)
	}
	if n := store.count(); n != 0 {
		t.Errorf("状态更新失败后不应残留签名文件，实际 %d 个", n)
	}

	// 重试成功后只保留一份签名
	repos.timesheets.updateStatusErr = nil
	resp, err := svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "Alice"})
	if err != nil {
		t.Fatalf("重试 Submit 应成功: %v", err)
	}
	if n := store.count(); n != 1 {
		t.Errorf("期望 1 个签名文件，实际 %d 个", n)
	}
	stored, _ := repos.timesheets.GetByID(context.Background(), resp.ID)
	if _, err := store.Load(stored.SignaturePath); err != nil {
		t.Errorf("记录中的签名路径应可读取: %v", err)
	}
}

func TestTimesheetService_Submit_ConcurrentKeepsWinnerSignature(t *testing.T) {
	repos := newTestRepos()
	store := newMockSignatureStore()
	svc := NewTimesheetService(testConfig(), repos.repo, store, nil, zap.NewNop())
	draft := mustSave(t, svc, "uid-001", saveReq("", workday("2026-03-02", "09:00", "17:00", "", "")))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "Alice"})
		}()
	}
	wg.Wait()

	if n := store.count(); n != 1 {
		t.Fatalf("并发提交后应只保留胜出者的签名文件，实际 %d 个", n)
	}
	stored, _ := repos.timesheets.GetByID(context.Background(), draft.ID)
	if _, err := store.Load(stored.SignaturePath); err != nil {
		t.Errorf("胜出者的签名文件不应被清理: %v", err)
	}
}

func TestTimesheetService_Submit_ConcurrentOnlyOneWins(t *testing.T) {
	svc, repos := setupTestTimesheetService(t)
	draft := mustSave(t, svc, "uid-001", saveReq("", workday("2026-03-02", "09:00", "17:00", "", "")))

	var wg sync.WaitGroup
	var mu sync.Mutex
	success := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "Alice"})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if success != 1 {
		t.Errorf("并发提交应只有 1 次成功，实际 %d", success)
	}
	logs, _ := repos.logs.ListByTimesheet(context.Background(), draft.ID)
	if len(logs) != 1 {
		t.Errorf("期望仅 1 条提交记录，实际 %d", len(logs))
	}
}

// ── 查询测试 ──

func TestTimesheetService_Get_Visibility(t *testing.T) {
	svc, _ := setupTestTimesheetService(t)
	draft := mustSave(t, svc, "uid-001", saveReq(""))

	if _, err := svc.Get(context.Background(), draft.ID, Caller{UserID: "uid-001", Role: model.RoleStudent}); err != nil {
		t.Errorf("作者本人应可查看: %v", err)
	}
	if _, err := svc.Get(context.Background(), draft.ID, Caller{UserID: "uid-002", Role: model.RoleStudent}); !errors.Is(err, ErrTimesheetForbidden) {
		t.Errorf("他人查看应返回 ErrTimesheetForbidden，实际: %v", err)
	}
	if _, err := svc.Get(context.Background(), draft.ID, Caller{UserID: "admin", Role: model.RoleAdmin}); err != nil {
		t.Errorf("管理员应可查看: %v", err)
	}
	if _, err := svc.Get(context.Background(), "missing", Caller{UserID: "uid-001"}); !errors.Is(err, ErrTimesheetNotFound) {
		t.Errorf("期望 ErrTimesheetNotFound，实际: %v", err)
	}
}

func TestTimesheetService_List_FilterByWeek(t *testing.T) {
	svc, _ := setupTestTimesheetService(t)
	mustSave(t, svc, "uid-001", saveReq("w1"))
	mustSave(t, svc, "uid-001", &dto.SaveTimesheetRequest{WeekStart: "2026-03-09", WeekEnd: "2026-03-13", Notes: "w2"})
	mustSave(t, svc, "uid-002", saveReq("other"))

	all, err := svc.List(context.Background(), "uid-001", &dto.TimesheetListRequest{})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if len(all) != 2 || all[0].WeekStart != "2026-03-09" {
		t.Errorf("期望本人 2 条且按周倒序，实际 %+v", all)
	}

	// 非周一日期按所在周查询
	one, _ := svc.List(context.Background(), "uid-001", &dto.TimesheetListRequest{WeekStart: "2026-03-04"})
	if len(one) != 1 || one[0].Notes != "w1" {
		t.Errorf("期望仅返回 2026-03-02 所在周，实际 %+v", one)
	}
}

func TestTimesheetService_History(t *testing.T) {
	svc, repos := setupTestTimesheetService(t)
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		status := model.TimesheetStatusApproved
		if i%3 == 2 {
			status = model.TimesheetStatusRejected
		}
		start := base.AddDate(0, 0, 7*i)
		repos.timesheets.put(&model.Timesheet{OwnerID: "uid-001", WeekStart: start, WeekEnd: start.AddDate(0, 0, 4), Status: status})
	}
	repos.timesheets.put(&model.Timesheet{OwnerID: "uid-001", WeekStart: base.AddDate(0, 0, 70), WeekEnd: base.AddDate(0, 0, 74), Status: model.TimesheetStatusDraft})

	list, err := svc.History(context.Background(), "uid-001")
	if err != nil {
		t.Fatalf("History 应成功: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("期望最多 5 条，实际 %d", len(list))
	}
	if list[0].WeekStart != base.AddDate(0, 0, 42).Format(timesheet.DateLayout) {
		t.Errorf("期望按周倒序，首条为最近一周，实际 %s", list[0].WeekStart)
	}
	for _, ts := range list {
		if ts.Status == model.TimesheetStatusDraft {
			t.Error("历史记录不应包含草稿")
		}
	}
}

func TestTimesheetService_ListLogs(t *testing.T) {
	svc, _ := setupTestTimesheetService(t)
	draft := mustSave(t, svc, "uid-001", saveReq("", workday("2026-03-02", "09:00", "17:00", "", "")))
	if _, err := svc.Submit(context.Background(), draft.ID, "uid-001", &dto.SubmitTimesheetRequest{Signature: "Alice"}); err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}

	logs, err := svc.ListLogs(context.Background(), draft.ID, Caller{UserID: "uid-001"})
	if err != nil {
		t.Fatalf("ListLogs 应成功: %v", err)
	}
	if len(logs) != 1 || logs[0].FromStatus != model.TimesheetStatusDraft {
		t.Errorf("流转记录不符: %+v", logs)
	}
	if _, err := svc.ListLogs(context.Background(), draft.ID, Caller{UserID: "uid-002"}); !errors.Is(err, ErrTimesheetForbidden) {
		t.Errorf("他人查看应返回 ErrTimesheetForbidden，实际: %v", err)
	}
}
