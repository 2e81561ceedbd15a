package storage

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pngDataURL() string {
	raw := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 16)...)
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
}

func TestDecodeSignature(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		ext     string
		wantErr error
	}{
		{name: "空签名", payload: "   ", wantErr: ErrEmptySignature},
		{name: "文本签名", payload: "Jane Doe", ext: ".txt"},
		{name: "PNG 图片", payload: pngDataURL(), ext: ".png"},
		{name: "不支持的类型", payload: "data:image/gif;base64,R0lGOD", wantErr: ErrInvalidSignature},
		{name: "非 base64", payload: "data:image/png;base64,@@@", wantErr: ErrInvalidSignature},
		{name: "伪造的 PNG", payload: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello")), wantErr: ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ext, err := DecodeSignature(tt.payload)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestLocalSignatureStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalSignatureStore(dir, zap.NewNop())

	rel, err := s.Save("owner-1", "ts-1", pngDataURL())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rel, "signatures/owner-1/ts-1_"), rel)
	assert.True(t, strings.HasSuffix(rel, ".png"), rel)

	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)

	content, err := s.Load(rel)
	require.NoError(t, err)
	assert.Equal(t, byte(0x89), content[0])
}

func TestLocalSignatureStore_SaveDoesNotOverwrite(t *testing.T) {
	s := NewLocalSignatureStore(t.TempDir(), zap.NewNop())

	first, err := s.Save("owner-1", "ts-1", "Jane Doe")
	require.NoError(t, err)
	second, err := s.Save("owner-1", "ts-1", "Jane Doe")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	content, err := s.Load(first)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", string(content))
}

func TestLocalSignatureStore_Delete(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalSignatureStore(dir, zap.NewNop())

	rel, err := s.Save("owner-1", "ts-1", "Jane Doe")
	require.NoError(t, err)
	require.NoError(t, s.Delete(rel))

	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(rel)))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Delete(rel), "重复删除无副作用")
	assert.ErrorIs(t, s.Delete("../outside.png"), ErrPathEscapes)
}

func TestLocalSignatureStore_RejectsTraversal(t *testing.T) {
	s := NewLocalSignatureStore(t.TempDir(), zap.NewNop())

	_, err := s.Save("../../etc", "passwd", "Jane Doe")
	assert.ErrorIs(t, err, ErrPathEscapes)

	_, err = s.Load("../outside.png")
	assert.ErrorIs(t, err, ErrPathEscapes)
}
