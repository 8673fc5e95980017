package storage

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"thehub/internal/ctxkeys"
	"thehub/internal/logger"
	"thehub/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func openTemp(t *testing.T) *KV {
	t.Helper()
	kv, err := Open(Options{Dsn: filepath.Join(t.TempDir(), "data", "session.db"), Prefix: "test_"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestKV_SetGetDelete(t *testing.T) {
	kv := openTemp(t)

	_, ok, err := kv.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set("token", "a"))
	require.NoError(t, kv.Set("token", "b"))
	v, ok, err := kv.Get("token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	require.NoError(t, kv.Delete("token"))
	require.NoError(t, kv.Delete("token"))
	_, ok, err = kv.Get("token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKV_SurvivesReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "session.db")
	kv, err := Open(Options{Dsn: dsn})
	require.NoError(t, err)
	store := session.New(kv, session.DefaultKeys, nil)
	store.Token().Set("persisted")
	store.Cart().Set("c9")
	require.NoError(t, kv.Close())

	kv2, err := Open(Options{Dsn: dsn})
	require.NoError(t, err)
	defer kv2.Close()
	store2 := session.New(kv2, session.DefaultKeys, nil)
	assert.Equal(t, "persisted", store2.Token().Get())
	assert.Equal(t, "c9", store2.Cart().Get())
}

func TestOpen_EmptyDsn(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}

func TestGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	gl := NewGormLogger(logger.NewWriter(&buf, "debug")).LogMode(gormlogger.Info)
	ctx := ctxkeys.WithTraceID(context.Background(), "trace-1")

	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Contains(t, buf.String(), "trace-1")
	assert.Contains(t, buf.String(), "SELECT 1")

	buf.Reset()
	gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 2", 0 }, errors.New("disk I/O error"))
	assert.Contains(t, buf.String(), "disk I/O error")
}
