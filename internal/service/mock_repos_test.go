package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"careerfocus/backend/internal/model"
	"careerfocus/backend/internal/repository"
	pkgerrors "careerfocus/backend/pkg/errors"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // user_id → user
	seq   int
	// createErr 非空时 Create 返回该错误（模拟写库失败）
	createErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		m.seq++
		user.UserID = fmt.Sprintf("uid-%03d", m.seq)
	}
	user.Version = 1
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByIDs(_ context.Context, ids []string) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[user.UserID]
	if !ok || cur.Version != user.Version {
		return pkgerrors.ErrOptimisticLock
	}
	user.Version++
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

func (m *mockUserRepo) List(_ context.Context, role string, offset, limit int) ([]model.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []model.User
	for _, u := range m.users {
		if role == "" || u.Role == role {
			all = append(all, *u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// ── Mock TimesheetRepository ──

type mockTimesheetRepo struct {
	mu         sync.Mutex
	timesheets map[string]*model.Timesheet
	users      *mockUserRepo
	logs       *mockReviewLogRepo
	seq        int
	// saveCalls SaveDraft 调用次数
	saveCalls int
	// updateStatusErr 非 nil 时 UpdateStatus 直接返回该错误
	updateStatusErr error
}

func newMockTimesheetRepo(users *mockUserRepo, logs *mockReviewLogRepo) *mockTimesheetRepo {
	return &mockTimesheetRepo{
		timesheets: make(map[string]*model.Timesheet),
		users:      users,
		logs:       logs,
	}
}

// clone 深拷贝，避免调用方修改影响存储
func (m *mockTimesheetRepo) clone(ts *model.Timesheet) *model.Timesheet {
	cp := *ts
	cp.Entries = append([]model.TimesheetEntry(nil), ts.Entries...)
	sort.Slice(cp.Entries, func(i, j int) bool { return cp.Entries[i].WorkDate.Before(cp.Entries[j].WorkDate) })
	if m.users != nil {
		if u, ok := m.users.users[ts.OwnerID]; ok {
			owner := *u
			cp.Owner = &owner
		}
	}
	return &cp
}

func (m *mockTimesheetRepo) put(ts *model.Timesheet) *model.Timesheet {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts.ID == "" {
		m.seq++
		ts.ID = fmt.Sprintf("ts-%03d", m.seq)
	}
	if ts.Version == 0 {
		ts.Version = 1
	}
	stored := *ts
	stored.Owner = nil
	stored.Entries = append([]model.TimesheetEntry(nil), ts.Entries...)
	m.timesheets[ts.ID] = &stored
	return ts
}

func (m *mockTimesheetRepo) GetByID(_ context.Context, id string) (*model.Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts, ok := m.timesheets[id]; ok {
		return m.clone(ts), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimesheetRepo) GetByOwnerAndWeek(_ context.Context, ownerID string, weekStart time.Time) (*model.Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ts := range m.timesheets {
		if ts.OwnerID == ownerID && ts.WeekStart.Equal(weekStart) {
			return m.clone(ts), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimesheetRepo) filter(keep func(ts *model.Timesheet) bool) []model.Timesheet {
	var out []model.Timesheet
	for _, ts := range m.timesheets {
		if keep(ts) {
			out = append(out, *m.clone(ts))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.After(out[j].WeekStart) })
	return out
}

func (m *mockTimesheetRepo) ListByOwner(_ context.Context, ownerID string, weekStart *time.Time) ([]model.Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(func(ts *model.Timesheet) bool {
		return ts.OwnerID == ownerID && (weekStart == nil || ts.WeekStart.Equal(*weekStart))
	}), nil
}

func (m *mockTimesheetRepo) ListHistory(_ context.Context, ownerID string, limit int) ([]model.Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(func(ts *model.Timesheet) bool {
		return ts.OwnerID == ownerID &&
			(ts.Status == model.TimesheetStatusApproved || ts.Status == model.TimesheetStatusRejected)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockTimesheetRepo) ListByStatus(_ context.Context, status string, offset, limit int) ([]model.Timesheet, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filter(func(ts *model.Timesheet) bool { return status == "" || ts.Status == status })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockTimesheetRepo) ListByWeek(_ context.Context, weekStart time.Time, status string) ([]model.Timesheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(func(ts *model.Timesheet) bool {
		return ts.WeekStart.Equal(weekStart) && (status == "" || ts.Status == status)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out, nil
}

func (m *mockTimesheetRepo) SaveDraft(_ context.Context, ts *model.Timesheet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++

	if ts.Version == 0 {
		for _, cur := range m.timesheets {
			if cur.OwnerID == ts.OwnerID && cur.WeekStart.Equal(ts.WeekStart) {
				return gorm.ErrDuplicatedKey
			}
		}
		m.seq++
		ts.ID = fmt.Sprintf("ts-%03d", m.seq)
		ts.Status = model.TimesheetStatusDraft
		ts.Version = 1
	} else {
		cur, ok := m.timesheets[ts.ID]
		if !ok || cur.Version != ts.Version || cur.Status != model.TimesheetStatusDraft {
			return pkgerrors.ErrOptimisticLock
		}
		ts.Version++
	}
	ts.UpdatedAt = time.Now()

	stored := *ts
	stored.Owner = nil
	stored.Entries = append([]model.TimesheetEntry(nil), ts.Entries...)
	m.timesheets[ts.ID] = &stored
	return nil
}

func (m *mockTimesheetRepo) UpdateStatus(ctx context.Context, ts *model.Timesheet, fromStatus string, log *model.TimesheetReviewLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateStatusErr != nil {
		return m.updateStatusErr
	}
	cur, ok := m.timesheets[ts.ID]
	if !ok || cur.Version != ts.Version || cur.Status != fromStatus {
		return pkgerrors.ErrOptimisticLock
	}
	ts.Version++

	stored := *ts
	stored.Owner = nil
	stored.Entries = append([]model.TimesheetEntry(nil), cur.Entries...)
	m.timesheets[ts.ID] = &stored

	if log != nil && m.logs != nil {
		return m.logs.Create(ctx, log)
	}
	return nil
}

// ── Mock ReviewLogRepository ──

type mockReviewLogRepo struct {
	mu   sync.Mutex
	logs []model.TimesheetReviewLog
}

func newMockReviewLogRepo() *mockReviewLogRepo {
	return &mockReviewLogRepo{}
}

func (m *mockReviewLogRepo) Create(_ context.Context, log *model.TimesheetReviewLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if log.ID == "" {
		log.ID = fmt.Sprintf("log-%03d", len(m.logs)+1)
	}
	log.CreatedAt = time.Now()
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockReviewLogRepo) ListByTimesheet(_ context.Context, timesheetID string) ([]model.TimesheetReviewLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TimesheetReviewLog
	for _, l := range m.logs {
		if l.TimesheetID == timesheetID {
			out = append(out, l)
		}
	}
	return out, nil
}

// ── Mock 外部依赖 ──

type sentMail struct {
	to, subject, body string
}

type mockMailer struct {
	mu   sync.Mutex
	sent []sentMail
	// failFor 发送到该地址时返回错误
	failFor string
}

func (m *mockMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if to == m.failFor {
		return fmt.Errorf("smtp: mailbox unavailable")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

// mockSignatureStore 内存签名存储
type mockSignatureStore struct {
	mu    sync.Mutex
	files map[string][]byte
	seq   int
}

func newMockSignatureStore() *mockSignatureStore {
	return &mockSignatureStore{files: make(map[string][]byte)}
}

func (m *mockSignatureStore) Save(ownerID, timesheetID, payload string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(payload) == "" {
		return "", fmt.Errorf("empty")
	}
	m.seq++
	path := fmt.Sprintf("signatures/%s/%s_%d.txt", ownerID, timesheetID, m.seq)
	m.files[path] = []byte(strings.TrimSpace(payload))
	return path, nil
}

func (m *mockSignatureStore) Load(relPath string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[relPath]
	if !ok {
		return nil, fmt.Errorf("not found: %s", relPath)
	}
	return b, nil
}

func (m *mockSignatureStore) Delete(relPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, relPath)
	return nil
}

func (m *mockSignatureStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// ── 测试夹具 ──

type testRepos struct {
	repo       *repository.Repository
	users      *mockUserRepo
	timesheets *mockTimesheetRepo
	logs       *mockReviewLogRepo
}

func newTestRepos() *testRepos {
	users := newMockUserRepo()
	logs := newMockReviewLogRepo()
	timesheets := newMockTimesheetRepo(users, logs)
	return &testRepos{
		repo: &repository.Repository{
			User:      users,
			Timesheet: timesheets,
			ReviewLog: logs,
		},
		users:      users,
		timesheets: timesheets,
		logs:       logs,
	}
}
