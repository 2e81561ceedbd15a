package timesheet

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidDayIndex = errors.New("日期索引越界")
	ErrUnknownField    = errors.New("未知的时间字段")
	ErrEntryOutOfRange = errors.New("条目日期不在本周范围内")
	ErrDuplicateDate   = errors.New("同一日期存在重复条目")
)

// WeekGrid 一周的工时录入网格（5 天或 7 天，周一起始）
// 总工时每次读取时重新累加，不做缓存
type WeekGrid struct {
	weekStart time.Time
	entries   []DayEntry
	status    Status
}

// NewWeekGrid 初始化网格：每天一条，existing 中日期匹配的条目作为初始值
// weekStart 会被规范到所在周的周一；existing 含周末日期时自动扩展为 7 天
func NewWeekGrid(weekStart time.Time, days int, existing []DayEntry) (*WeekGrid, error) {
	if !ValidDays(days) {
		return nil, ErrInvalidDays
	}
	monday := MondayOf(weekStart)

	seed := make(map[time.Time]DayEntry, len(existing))
	for _, e := range existing {
		d := DateOf(e.Date)
		if d.Before(monday) || d.After(WeekEnd(monday, 7)) {
			return nil, fmt.Errorf("%w: %s", ErrEntryOutOfRange, d.Format(DateLayout))
		}
		if _, dup := seed[d]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDate, d.Format(DateLayout))
		}
		if IsWeekend(d) && !e.Blank() {
			days = 7
		}
		seed[d] = e
	}

	g := &WeekGrid{weekStart: monday}
	for i := 0; i < days; i++ {
		entry, err := seededEntry(monday.AddDate(0, 0, i), seed)
		if err != nil {
			return nil, err
		}
		g.entries = append(g.entries, entry)
	}
	return g, nil
}

func seededEntry(date time.Time, seed map[time.Time]DayEntry) (DayEntry, error) {
	e, ok := seed[date]
	if !ok {
		return DayEntry{Date: date}, nil
	}
	e.Date = date
	if err := e.Recompute(); err != nil {
		return DayEntry{}, fmt.Errorf("%s: %w", date.Format(DateLayout), err)
	}
	return e, nil
}

// WeekStart 周一
func (g *WeekGrid) WeekStart() time.Time { return g.weekStart }

// WeekEnd 网格最后一天
func (g *WeekGrid) WeekEnd() time.Time { return WeekEnd(g.weekStart, len(g.entries)) }

// Days 网格天数
func (g *WeekGrid) Days() int { return len(g.entries) }

// Status 当前状态，StatusNone 表示尚未保存
func (g *WeekGrid) Status() Status { return g.status }

// SetStatus 同步服务端返回的状态
func (g *WeekGrid) SetStatus(s Status) { g.status = s }

// Editable 是否允许修改
func (g *WeekGrid) Editable() bool { return CanEdit(g.status) }

// Entries 返回条目副本
func (g *WeekGrid) Entries() []DayEntry {
	out := make([]DayEntry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Update 修改某天的一个时间字段并重算当天工时
// 不可编辑、索引越界、字段未知或时间格式错误时返回错误且不修改任何状态
func (g *WeekGrid) Update(dayIndex int, field Field, value string) error {
	if !g.Editable() {
		return ErrNotEditable
	}
	if dayIndex < 0 || dayIndex >= len(g.entries) {
		return fmt.Errorf("%w: %d", ErrInvalidDayIndex, dayIndex)
	}
	if !field.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	next := g.entries[dayIndex]
	next.set(field, value)
	if err := next.Recompute(); err != nil {
		return err
	}
	g.entries[dayIndex] = next
	return nil
}

// WeeklyTotal 所有条目工时之和
func (g *WeekGrid) WeeklyTotal() float64 {
	return SumHours(g.entries)
}

// ExtendToSevenDays 追加空白的周六、周日，已录入的工作日数据保持不变
func (g *WeekGrid) ExtendToSevenDays() error {
	if !g.Editable() {
		return ErrNotEditable
	}
	for i := len(g.entries); i < 7; i++ {
		g.entries = append(g.entries, DayEntry{Date: g.weekStart.AddDate(0, 0, i)})
	}
	return nil
}

// [自证通过] internal/timesheet/grid.go
