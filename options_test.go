package h5mbl

import (
	"regexp"
	"testing"

	"github.com/DavidAce/h5mbl/internal/filedb"
	"github.com/DavidAce/h5mbl/internal/merge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOptions_Defaults(t *testing.T) {
	o := applyOptions(nil)
	assert.NotNil(t, o.opener)
	assert.NotNil(t, o.fsys)
	assert.NotNil(t, o.logger)
	assert.Nil(t, o.resources)
}

func TestApplyOptions_ConfigBuiltFromNarrowOptions(t *testing.T) {
	re := regexp.MustCompile(`\.h5$`)
	o := applyOptions([]Option{
		WithSources("/data/a", "/data/b"),
		WithTarget("/out", "combined.h5"),
		WithVariant(merge.VariantLbit),
		WithRequireFinished(),
		WithReplace(),
		WithStageInTemp(),
		WithMaxFilesPerSet(10),
		WithMaxSets(3),
		WithSeedRange(filedb.SeedRange{Min: 1, HasMin: true}),
		WithInclude(re),
		WithExclude(re),
		WithLinkOnly(),
		WithProfile(),
	})

	assert.Equal(t, []string{"/data/a", "/data/b"}, o.cfg.Sources)
	assert.Equal(t, "/out", o.cfg.TargetDir)
	assert.Equal(t, "combined.h5", o.cfg.TargetName)
	assert.Equal(t, merge.VariantLbit, o.cfg.Variant)
	assert.True(t, o.cfg.RequireFinished)
	assert.True(t, o.cfg.Replace)
	assert.True(t, o.cfg.StageInTemp)
	assert.Equal(t, 10, o.cfg.MaxFilesPerSet)
	assert.Equal(t, 3, o.cfg.MaxSets)
	assert.True(t, o.cfg.SeedRange.HasMin)
	assert.Same(t, re, o.cfg.Include)
	assert.Same(t, re, o.cfg.Exclude)
	assert.True(t, o.cfg.LinkOnly)
	assert.True(t, o.cfg.Profile)
}

func TestWithSources_AppendsAcrossCalls(t *testing.T) {
	o := applyOptions([]Option{
		WithSources("/data/a"),
		WithSources("/data/b", "/data/c"),
	})
	assert.Equal(t, []string{"/data/a", "/data/b", "/data/c"}, o.cfg.Sources)
}

func TestWithConfig_ReplacesWholesaleAndWinsOverEarlierNarrowOptions(t *testing.T) {
	cfg := merge.Config{Sources: []string{"/from/config"}, Variant: merge.VariantSdual}
	o := applyOptions([]Option{
		WithSources("/from/narrow/option"),
		WithConfig(cfg),
	})
	assert.Equal(t, []string{"/from/config"}, o.cfg.Sources)
	assert.Equal(t, merge.VariantSdual, o.cfg.Variant)
}

func TestWithOpener_NilLeavesDefaultInPlace(t *testing.T) {
	o := applyOptions([]Option{WithOpener(nil)})
	require.NotNil(t, o.opener)
}

func TestWithFileSystem_NilLeavesDefaultInPlace(t *testing.T) {
	o := applyOptions([]Option{WithFileSystem(nil)})
	require.NotNil(t, o.fsys)
}

func TestWithResourceController_NilIsIgnored(t *testing.T) {
	o := applyOptions([]Option{WithResourceController(nil)})
	assert.Nil(t, o.resources)
}

func TestWithLogger_NilFallsBackToNoopLogger(t *testing.T) {
	o := applyOptions([]Option{WithLogger(nil)})
	require.NotNil(t, o.logger)
}
