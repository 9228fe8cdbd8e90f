package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/common"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/ledger"
	"github.com/RustuKeten/AI-OCR-PDF-Extracter/internal/repository"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RASTER_API_KEY", "")
	cfg := common.LoadConfig()
	cfg.Database.Driver = "memory"
	return cfg
}

func TestNew_MemoryStore(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	a, err := New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	defer func() { assert.NoError(t, a.Close()) }()

	assert.IsType(t, &ledger.MemoryStore{}, a.Store)
	assert.Equal(t, int64(100), a.Ledger.Cost())
	require.NotNil(t, a.Processor)
	assert.NotNil(t, a.Processor.Infer)
	assert.Equal(t, 50, a.Processor.Cfg.Thresholds.MinText)
	assert.Equal(t, 100, a.Processor.Cfg.Thresholds.AbundantText)
}

func TestNew_SkipInference(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "unused"

	a, err := New(context.Background(), cfg, nil, Options{SkipInference: true})
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Processor.Infer)
}

func TestOpenStore_SQLiteMigrates(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "ledger.db")

	store, err := OpenStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &repository.Ledger{}, store)

	bal, err := store.GrantCredits(context.Background(), "p1", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), bal)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mongo"
	_, err := OpenStore(context.Background(), cfg, nil)
	assert.True(t, common.IsKind(err, common.KindInvalidInput))
	assert.Error(t, cfg.ValidateStore())
}

func TestNewRasterizer_DisabledWithoutKey(t *testing.T) {
	cfg := testConfig(t)
	r, closeFn, err := NewRasterizer(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer closeFn()
	assert.False(t, r.Enabled())

	cfg.Raster.APIKey = "key"
	r, closeFn, err = NewRasterizer(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer closeFn()
	assert.True(t, r.Enabled())
}
