package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataquery/internal/domain"
)

// testdataDir returns the absolute path to testdata relative to this test file.
func testdataDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	return filepath.Join(filepath.Dir(filename), "testdata")
}

func TestLoad_Valid(t *testing.T) {
	reg, err := Load(filepath.Join(testdataDir(t), "valid"))
	require.NoError(t, err)

	t.Run("ids sorted", func(t *testing.T) {
		assert.Equal(t, []string{"employment_by_sector", "gdp_growth"}, reg.IDs())
	})

	t.Run("spec fields decoded", func(t *testing.T) {
		spec, err := reg.Get("employment_by_sector")
		require.NoError(t, err)
		assert.Equal(t, domain.SourceTabularFile, spec.Source)
		assert.Equal(t, domain.UnitCount, spec.ExpectedUnit)
		assert.Equal(t, 400, spec.Constraints.SLADays)
		require.Len(t, spec.Postprocess, 2)
		assert.Equal(t, "filter_equals", spec.Postprocess[0].Name)
	})

	t.Run("nested directories walked", func(t *testing.T) {
		spec, err := reg.Get("gdp_growth")
		require.NoError(t, err)
		assert.Equal(t, domain.SourceRemoteStats, spec.Source)
		assert.Equal(t, "0 3 * * *", spec.Refresh)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := reg.Get("nope")
		var nf *domain.SpecNotFoundError
		assert.ErrorAs(t, err, &nf)
	})
}

func TestLoad_DuplicateIDIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(testdataDir(t), "duplicate"))
	var dup *domain.DuplicateSpecError
	require.ErrorAs(t, err, &dup)
}

func TestLoad_UnknownTransformRejectedAtLoadTime(t *testing.T) {
	_, err := Load(filepath.Join(testdataDir(t), "invalid"))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "pivot_table")
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	dir := t.TempDir()
	doc := `apiVersion: dataquery/v1
kind: Query
id: q1
source: tabular_file
typo_field: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q1.yaml"), []byte(doc), 0o600))
	_, err := Load(dir)
	require.Error(t, err)
}

func TestChecksum_StableAcrossReloads(t *testing.T) {
	dir := filepath.Join(testdataDir(t), "valid")
	first, err := Load(dir)
	require.NoError(t, err)
	second, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, first.Checksum(), second.Checksum())
	assert.Len(t, first.Checksum(), 64)
}

func TestChecksum_ChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	doc := `apiVersion: dataquery/v1
kind: Query
id: q1
source: tabular_file
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q1.yaml"), []byte(doc), 0o600))
	before, err := Load(dir)
	require.NoError(t, err)

	changed := `apiVersion: dataquery/v1
kind: Query
id: q1
title: now with a title
source: tabular_file
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q1.yaml"), []byte(changed), 0o600))
	after, err := Load(dir)
	require.NoError(t, err)
	assert.NotEqual(t, before.Checksum(), after.Checksum())
}

func TestRegistry_ImmutableUnderOverride(t *testing.T) {
	reg, err := Load(filepath.Join(testdataDir(t), "valid"))
	require.NoError(t, err)

	spec, err := reg.Get("employment_by_sector")
	require.NoError(t, err)

	override := spec.WithPostprocess([]domain.TransformStep{
		{Name: "select", Params: map[string]any{"columns": []any{"sector"}}},
	})
	override.Postprocess[0].Name = "top_n"
	override.Params["year"] = "1999"

	fresh, err := reg.Get("employment_by_sector")
	require.NoError(t, err)
	assert.Equal(t, "filter_equals", fresh.Postprocess[0].Name)
	assert.Equal(t, "2024", fresh.Params["year"])
}
