package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"careerfocus/backend/internal/dto"
	"careerfocus/backend/internal/timesheet"
)

var testMonday = time.Date(2024, 10, 21, 0, 0, 0, 0, time.UTC)

// stubAPI 记录调用；gate 非 nil 时 Save/Submit 阻塞到 gate 关闭
type stubAPI struct {
	mu        sync.Mutex
	list      []dto.TimesheetResponse
	listErr   error
	saveErr   error
	submitErr error
	gate      chan struct{}
	started   chan struct{}

	// bareSubmit 为 true 时提交只返回 ID 与状态
	bareSubmit bool

	saves   []*dto.SaveTimesheetRequest
	submits []string
	records map[string]*dto.TimesheetResponse
	seq     int
	version int
}

func (s *stubAPI) wait() {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
}

func (s *stubAPI) ListTimesheets(_ context.Context, _ string) ([]dto.TimesheetResponse, error) {
	return s.list, s.listErr
}

func (s *stubAPI) SaveTimesheet(_ context.Context, req *dto.SaveTimesheetRequest) (*dto.TimesheetResponse, error) {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, req)
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	if s.seq == 0 {
		s.seq = 1
	}
	s.version++
	rec := &dto.TimesheetResponse{
		ID:        fmt.Sprintf("ts-%03d", s.seq),
		WeekStart: req.WeekStart,
		WeekEnd:   req.WeekEnd,
		Notes:     req.Notes,
		Status:    "draft",
		Version:   s.version,
	}
	for _, e := range req.Entries {
		d := timesheet.DayEntry{StartTime: deref(e.StartTime), EndTime: deref(e.EndTime), LunchOut: deref(e.LunchOut), LunchIn: deref(e.LunchIn)}
		_ = d.Recompute()
		rec.TotalHours += d.Hours
		rec.Entries = append(rec.Entries, dto.DayEntryResponse{
			Date: e.Date, StartTime: e.StartTime, EndTime: e.EndTime, LunchOut: e.LunchOut, LunchIn: e.LunchIn, Hours: d.Hours,
		})
	}
	if s.records == nil {
		s.records = map[string]*dto.TimesheetResponse{}
	}
	s.records[rec.ID] = rec
	return copyRecord(rec), nil
}

func (s *stubAPI) SubmitTimesheet(_ context.Context, id string, _ string) (*dto.TimesheetResponse, error) {
	s.wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits = append(s.submits, id)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.version++
	rec, ok := s.records[id]
	if !ok || s.bareSubmit {
		return &dto.TimesheetResponse{ID: id, Status: "submitted", Version: s.version}, nil
	}
	rec.Status = "submitted"
	rec.Version = s.version
	return copyRecord(rec), nil
}

func (s *stubAPI) History(_ context.Context) ([]dto.TimesheetResponse, error) {
	return []dto.TimesheetResponse{{ID: "ts-old", Status: "approved"}}, nil
}

func (s *stubAPI) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves), len(s.submits)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(m string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, m)
}

func openEditor(t *testing.T, api *stubAPI, n Notifier) *Editor {
	t.Helper()
	e, err := OpenEditor(context.Background(), api, testMonday, 5, n, zap.NewNop())
	require.NoError(t, err)
	return e
}

func fillMonday(t *testing.T, e *Editor) {
	t.Helper()
	require.NoError(t, e.Update(0, timesheet.FieldStartTime, "09:00"))
	require.NoError(t, e.Update(0, timesheet.FieldEndTime, "17:00"))
	require.NoError(t, e.Update(0, timesheet.FieldLunchOut, "12:00"))
	require.NoError(t, e.Update(0, timesheet.FieldLunchIn, "12:30"))
}

// ── 打开 ──

func TestOpenEditor_Blank(t *testing.T) {
	e := openEditor(t, &stubAPI{}, nil)

	assert.Equal(t, timesheet.StatusNone, e.Status())
	assert.True(t, e.Editable())
	assert.Len(t, e.Entries(), 5)
	assert.Nil(t, e.Record())
}

func TestOpenEditor_SeedsFromRecord(t *testing.T) {
	start, end := "09:00", "13:00"
	api := &stubAPI{list: []dto.TimesheetResponse{
		{ID: "ts-other", WeekStart: "2024-10-14", WeekEnd: "2024-10-18", Status: "approved"},
		{
			ID: "ts-001", WeekStart: "2024-10-21", WeekEnd: "2024-10-27", Status: "draft", Notes: "hi", Version: 3,
			Entries: []dto.DayEntryResponse{{Date: "2024-10-26", StartTime: &start, EndTime: &end, Hours: 4}},
		},
	}}
	e := openEditor(t, api, nil)

	assert.Equal(t, timesheet.StatusDraft, e.Status())
	assert.Len(t, e.Entries(), 7)
	assert.Equal(t, 4.0, e.WeeklyTotal())
	assert.Equal(t, "hi", e.Notes())
	assert.Equal(t, "ts-001", e.Record().ID)
}

func TestOpenEditor_SubmittedIsReadOnly(t *testing.T) {
	api := &stubAPI{list: []dto.TimesheetResponse{{ID: "ts-001", WeekStart: "2024-10-21", WeekEnd: "2024-10-25", Status: "submitted"}}}
	e := openEditor(t, api, nil)

	assert.False(t, e.Editable())
	assert.ErrorIs(t, e.Update(0, timesheet.FieldStartTime, "09:00"), timesheet.ErrNotEditable)
	assert.ErrorIs(t, e.SetNotes("x"), timesheet.ErrNotEditable)
	_, err := e.SaveDraft(context.Background())
	assert.ErrorIs(t, err, timesheet.ErrNotEditable)
}

func TestOpenEditor_ListFailureNotifies(t *testing.T) {
	n := &recordingNotifier{}
	_, err := OpenEditor(context.Background(), &stubAPI{listErr: &APIError{Status: 500, Code: 50000, Message: "服务器内部错误"}},
		testMonday, 5, n, zap.NewNop())

	require.Error(t, err)
	require.Len(t, n.messages, 1)
	assert.Contains(t, n.messages[0], "服务器内部错误")
}

// ── 本地编辑 ──

func TestEditor_WeeklyTotal(t *testing.T) {
	e := openEditor(t, &stubAPI{}, nil)
	fillMonday(t, e)

	assert.Equal(t, 7.5, e.WeeklyTotal())

	require.NoError(t, e.ExtendToSevenDays())
	assert.Len(t, e.Entries(), 7)
	assert.Equal(t, 7.5, e.WeeklyTotal(), "追加周末不影响已录入工时")
}

func TestEditor_UpdateInvalidLeavesState(t *testing.T) {
	e := openEditor(t, &stubAPI{}, nil)
	fillMonday(t, e)

	assert.ErrorIs(t, e.Update(0, timesheet.FieldEndTime, "25:99"), timesheet.ErrInvalidClock)
	assert.Equal(t, "17:00", e.Entries()[0].EndTime)
	assert.Equal(t, 7.5, e.WeeklyTotal())
}

// ── 保存 ──

func TestEditor_SaveDraft(t *testing.T) {
	api := &stubAPI{}
	e := openEditor(t, api, nil)
	fillMonday(t, e)
	require.NoError(t, e.SetNotes("  first  "))

	rec, err := e.SaveDraft(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ts-001", rec.ID)
	assert.Equal(t, timesheet.StatusDraft, e.Status())

	sent := api.saves[0]
	assert.Equal(t, "2024-10-21", sent.WeekStart)
	assert.Equal(t, "2024-10-25", sent.WeekEnd)
	assert.Equal(t, "first", sent.Notes)
	assert.Len(t, sent.Entries, 5)
	assert.Nil(t, sent.Entries[1].StartTime, "空白字段不应发送")
	assert.Nil(t, sent.Version, "首次保存不携带版本")

	require.NoError(t, e.SetNotes("second"))
	_, err = e.SaveDraft(context.Background())
	require.NoError(t, err)
	require.NotNil(t, api.saves[1].Version)
	assert.Equal(t, 1, *api.saves[1].Version)
	assert.Equal(t, "ts-001", e.Record().ID, "同一周重复保存应为同一记录")
}

func TestEditor_SaveDraft_OvernightRejectedLocally(t *testing.T) {
	api := &stubAPI{}
	e := openEditor(t, api, nil)
	require.NoError(t, e.Update(0, timesheet.FieldStartTime, "22:00"))
	require.NoError(t, e.Update(0, timesheet.FieldEndTime, "06:00"))

	_, err := e.SaveDraft(context.Background())
	assert.ErrorIs(t, err, timesheet.ErrOvernightShift)
	saves, _ := api.calls()
	assert.Zero(t, saves)
}

func TestEditor_SaveDraft_FailureNotifiesAndClearsFlag(t *testing.T) {
	n := &recordingNotifier{}
	api := &stubAPI{saveErr: errors.New("connection refused")}
	e := openEditor(t, api, n)
	fillMonday(t, e)

	_, err := e.SaveDraft(context.Background())
	require.Error(t, err)
	assert.False(t, e.Busy())
	assert.Len(t, n.messages, 1)
	assert.Equal(t, timesheet.StatusNone, e.Status())
}

func TestEditor_SaveDraft_Busy(t *testing.T) {
	api := &stubAPI{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	e := openEditor(t, api, nil)
	fillMonday(t, e)

	done := make(chan error, 1)
	go func() {
		_, err := e.SaveDraft(context.Background())
		done <- err
	}()
	<-api.started

	_, err := e.SaveDraft(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	_, err = e.Submit(context.Background(), "Alice")
	assert.ErrorIs(t, err, ErrBusy)

	close(api.gate)
	require.NoError(t, <-done)
	assert.False(t, e.Busy())
}

// ── 提交 ──

func TestEditor_Submit_ZeroHoursNoNetwork(t *testing.T) {
	api := &stubAPI{}
	e := openEditor(t, api, nil)

	_, err := e.Submit(context.Background(), "data:image/png;base64,AAAA")
	assert.ErrorIs(t, err, timesheet.ErrNoHours)

	// 零工时优先于空签名
	_, err = e.Submit(context.Background(), "")
	assert.ErrorIs(t, err, timesheet.ErrNoHours)

	saves, submits := api.calls()
	assert.Zero(t, saves)
	assert.Zero(t, submits)
	assert.Equal(t, timesheet.StatusNone, e.Status())
}

func TestEditor_Submit_EmptySignatureNoNetwork(t *testing.T) {
	api := &stubAPI{}
	e := openEditor(t, api, nil)
	fillMonday(t, e)

	_, err := e.Submit(context.Background(), "   ")
	assert.ErrorIs(t, err, timesheet.ErrEmptySignature)
	saves, submits := api.calls()
	assert.Zero(t, saves+submits)
}

func TestEditor_Submit_SavesFirstWhenUnsaved(t *testing.T) {
	api := &stubAPI{}
	e := openEditor(t, api, nil)
	fillMonday(t, e)

	rec, err := e.Submit(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "submitted", rec.Status)
	assert.Equal(t, []string{"ts-001"}, api.submits)
	assert.Len(t, api.saves, 1)
	assert.False(t, e.Editable())
}

func TestEditor_Submit_SkipsSaveWhenClean(t *testing.T) {
	api := &stubAPI{}
	e := openEditor(t, api, nil)
	fillMonday(t, e)
	_, err := e.SaveDraft(context.Background())
	require.NoError(t, err)

	_, err = e.Submit(context.Background(), "Alice")
	require.NoError(t, err)
	saves, submits := api.calls()
	assert.Equal(t, 1, saves)
	assert.Equal(t, 1, submits)
}

func TestEditor_Submit_RetainsDraftOnSubmitFailure(t *testing.T) {
	n := &recordingNotifier{}
	api := &stubAPI{submitErr: &APIError{Status: 409, Code: 13004, Message: "工时表正在提交中，请稍后再试"}}
	e := openEditor(t, api, n)
	fillMonday(t, e)

	_, err := e.Submit(context.Background(), "Alice")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 13004, apiErr.Code)

	rec := e.Record()
	require.NotNil(t, rec, "保存成功的草稿应保留")
	assert.Equal(t, "ts-001", rec.ID)
	assert.Equal(t, timesheet.StatusDraft, e.Status())
	assert.True(t, e.Editable())
	assert.False(t, e.Busy())
	assert.Contains(t, n.messages[0], "正在提交中")
}

func TestEditor_Submit_EditsRejectedWhileSubmitting(t *testing.T) {
	api := &stubAPI{}
	e := openEditor(t, api, nil)
	fillMonday(t, e)
	_, err := e.SaveDraft(context.Background())
	require.NoError(t, err)

	api.gate = make(chan struct{})
	api.started = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background(), "Alice")
		done <- err
	}()
	<-api.started

	assert.ErrorIs(t, e.Update(1, timesheet.FieldStartTime, "09:00"), ErrBusy)
	assert.ErrorIs(t, e.Update(1, timesheet.FieldEndTime, "17:00"), ErrBusy)
	assert.ErrorIs(t, e.SetNotes("late"), ErrBusy)
	assert.ErrorIs(t, e.ExtendToSevenDays(), ErrBusy)

	close(api.gate)
	require.NoError(t, <-done)

	assert.Equal(t, timesheet.StatusSubmitted, e.Status())
	assert.Equal(t, 7.5, e.WeeklyTotal(), "已提交的编辑器应与提交的记录一致")
	assert.Equal(t, e.Record().TotalHours, e.WeeklyTotal())
	assert.Empty(t, e.Entries()[1].StartTime)
	assert.Len(t, e.Entries(), 5)
	assert.Empty(t, e.Notes())
	saves, submits := api.calls()
	assert.Equal(t, 1, saves)
	assert.Equal(t, 1, submits)
}

func TestEditor_Submit_EditsRejectedDuringSaveStep(t *testing.T) {
	api := &stubAPI{gate: make(chan struct{}), started: make(chan struct{}, 2)}
	e := openEditor(t, api, nil)
	fillMonday(t, e)

	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background(), "Alice")
		done <- err
	}()
	<-api.started

	assert.ErrorIs(t, e.Update(1, timesheet.FieldStartTime, "09:00"), ErrBusy)

	close(api.gate)
	require.NoError(t, <-done)

	require.Len(t, api.saves, 1)
	assert.Nil(t, api.saves[0].Entries[1].StartTime, "保存的内容应为校验时的网格")
	assert.Equal(t, 7.5, e.WeeklyTotal())
	assert.False(t, e.Editable())
}

func TestEditor_Submit_IncompleteResponseKeepsGrid(t *testing.T) {
	api := &stubAPI{bareSubmit: true}
	e := openEditor(t, api, nil)
	fillMonday(t, e)

	rec, err := e.Submit(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "submitted", rec.Status)
	assert.Equal(t, timesheet.StatusSubmitted, e.Status())
	assert.Equal(t, 7.5, e.WeeklyTotal())
	assert.ErrorIs(t, e.Update(0, timesheet.FieldEndTime, "18:00"), timesheet.ErrNotEditable)
}

func TestEditor_EditsAllowedWhileSaving(t *testing.T) {
	api := &stubAPI{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	e := openEditor(t, api, nil)
	fillMonday(t, e)

	done := make(chan error, 1)
	go func() {
		_, err := e.SaveDraft(context.Background())
		done <- err
	}()
	<-api.started

	require.NoError(t, e.Update(1, timesheet.FieldStartTime, "09:00"))
	require.NoError(t, e.Update(1, timesheet.FieldEndTime, "13:00"))

	close(api.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 11.5, e.WeeklyTotal(), "保存期间的本地修改应保留")

	// 仍有未保存修改，提交前应先保存
	api.gate, api.started = nil, nil
	_, err := e.Submit(context.Background(), "Alice")
	require.NoError(t, err)
	saves, _ := api.calls()
	assert.Equal(t, 2, saves)
	assert.Equal(t, 11.5, e.Record().TotalHours)
}

// ── 关闭 ──

func TestEditor_CloseDiscardsLateResponse(t *testing.T) {
	api := &stubAPI{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	e := openEditor(t, api, nil)
	fillMonday(t, e)

	done := make(chan error, 1)
	go func() {
		_, err := e.SaveDraft(context.Background())
		done <- err
	}()
	<-api.started
	e.Close()
	close(api.gate)

	assert.ErrorIs(t, <-done, ErrEditorClosed)
	assert.Nil(t, e.Record(), "关闭后到达的响应不应更新状态")
	assert.Equal(t, timesheet.StatusNone, e.Status())
	assert.ErrorIs(t, e.Update(0, timesheet.FieldStartTime, "08:00"), ErrEditorClosed)
}

func TestEditor_History(t *testing.T) {
	e := openEditor(t, &stubAPI{}, nil)

	list, err := e.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	e.Close()
	_, err = e.History(context.Background())
	assert.ErrorIs(t, err, ErrEditorClosed)
}
