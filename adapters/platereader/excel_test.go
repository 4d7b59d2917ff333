package platereader

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"assaygate/domain/calibration"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", SheetPlate))
	require.NoError(t, f.SetSheetRow(SheetPlate, "A1", &[]interface{}{"density", 0.72}))
	require.NoError(t, f.SetSheetRow(SheetPlate, "A2", &[]interface{}{"well_count", 96}))

	_, err := f.NewSheet(SheetChannels)
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow(SheetChannels, "A1", &[]interface{}{"Channel", "Value"}))
	channels := []struct {
		name  string
		value float64
	}{
		{"er_marker", 2.9},
		{"mito_marker", 0.4},
		{"tubulin_marker", 0.1},
		{"viability", -0.8},
	}
	for i, c := range channels {
		cell := fmt.Sprintf("A%d", i+2)
		require.NoError(t, f.SetSheetRow(SheetChannels, cell, &[]interface{}{c.name, c.value}))
	}

	_, err = f.NewSheet(SheetWells)
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow(SheetWells, "A1", &[]interface{}{"Quantity", "Condition", "Value"}))
	wells := []struct {
		quantity  string
		condition string
		value     float64
	}{
		{"global_noise", "vehicle_low", 9.8},
		{"global_noise", "vehicle_low", 10.3},
		{"global_noise", "vehicle_low", 10.1},
		{"global_noise", "vehicle_high", 12.2},
		{"global_noise", "vehicle_high", 11.7},
		{"assay_viability", "vehicle_low", 0.95},
		{"assay_viability", "vehicle_low", 0.91},
	}
	for i, w := range wells {
		cell := fmt.Sprintf("A%d", i+2)
		require.NoError(t, f.SetSheetRow(SheetWells, cell, &[]interface{}{w.quantity, w.condition, w.value}))
	}

	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestReadObservation(t *testing.T) {
	path := writeWorkbook(t)

	obs, err := ReadObservation(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"er_marker", "mito_marker", "tubulin_marker", "viability"}, obs.Features.Channels)
	assert.InDelta(t, 2.9, obs.Features.Values[0], 1e-9)
	assert.InDelta(t, -0.8, obs.Features.Values[3], 1e-9)
	assert.InDelta(t, 0.72, obs.Features.Density, 1e-9)
	assert.Equal(t, 96, obs.Features.WellCount)

	require.Len(t, obs.Calibration.Readings, 3)
	first := obs.Calibration.Readings[0]
	assert.Equal(t, calibration.QuantityGlobalNoise, first.Quantity)
	assert.Equal(t, "vehicle_low", first.Condition)
	assert.Equal(t, []float64{9.8, 10.3, 10.1}, first.Values)

	second := obs.Calibration.Readings[1]
	assert.Equal(t, "vehicle_high", second.Condition)
	assert.Len(t, second.Values, 2)

	third := obs.Calibration.Readings[2]
	assert.Equal(t, calibration.QuantityViability, third.Quantity)
}

func TestReadObservationMissingFile(t *testing.T) {
	_, err := ReadObservation(filepath.Join(t.TempDir(), "absent.xlsx"))
	assert.Error(t, err)
}

func TestReadObservationNoChannels(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", SheetPlate))
	_, err := f.NewSheet(SheetChannels)
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow(SheetChannels, "A1", &[]interface{}{"Channel", "Value"}))
	_, err = f.NewSheet(SheetWells)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, f.SaveAs(path))

	_, err = ReadObservation(path)
	assert.ErrorContains(t, err, "no channel rows")
}
