// Package platereader imports channel summary features and per-well
// calibration readings from plate-reader xlsx exports.
package platereader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"assaygate/domain/calibration"
	"assaygate/domain/mechanism"
	"assaygate/ports"
)

// Sheet names in the export schema
const (
	SheetPlate    = "Plate"
	SheetChannels = "Channels"
	SheetWells    = "Wells"
)

// ReadObservation parses one export workbook into an observation
func ReadObservation(path string) (ports.Observation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return ports.Observation{}, fmt.Errorf("platereader: open %s: %w", path, err)
	}
	defer f.Close()
	return parseWorkbook(f)
}

func parseWorkbook(f *excelize.File) (ports.Observation, error) {
	features, err := parseChannels(f)
	if err != nil {
		return ports.Observation{}, err
	}
	if err := parsePlate(f, &features); err != nil {
		return ports.Observation{}, err
	}
	batch, err := parseWells(f)
	if err != nil {
		return ports.Observation{}, err
	}
	return ports.Observation{Features: features, Calibration: batch}, nil
}

func parseChannels(f *excelize.File) (mechanism.Features, error) {
	rows, err := f.GetRows(SheetChannels)
	if err != nil {
		return mechanism.Features{}, fmt.Errorf("platereader: sheet %s: %w", SheetChannels, err)
	}
	var features mechanism.Features
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue // header
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return mechanism.Features{}, fmt.Errorf("platereader: channel %s row %d: %w", row[0], i+1, err)
		}
		features.Channels = append(features.Channels, strings.TrimSpace(row[0]))
		features.Values = append(features.Values, value)
	}
	if len(features.Values) == 0 {
		return mechanism.Features{}, fmt.Errorf("platereader: sheet %s has no channel rows", SheetChannels)
	}
	return features, nil
}

func parsePlate(f *excelize.File, features *mechanism.Features) error {
	rows, err := f.GetRows(SheetPlate)
	if err != nil {
		return fmt.Errorf("platereader: sheet %s: %w", SheetPlate, err)
	}
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(row[0]))
		switch key {
		case "density":
			v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
			if err != nil {
				return fmt.Errorf("platereader: density: %w", err)
			}
			features.Density = v
		case "well_count":
			n, err := strconv.Atoi(strings.TrimSpace(row[1]))
			if err != nil {
				return fmt.Errorf("platereader: well_count: %w", err)
			}
			features.WellCount = n
		}
	}
	return nil
}

func parseWells(f *excelize.File) (calibration.Batch, error) {
	rows, err := f.GetRows(SheetWells)
	if err != nil {
		return calibration.Batch{}, fmt.Errorf("platereader: sheet %s: %w", SheetWells, err)
	}

	type key struct {
		quantity  calibration.Quantity
		condition string
	}
	grouped := make(map[key][]float64)
	var order []key
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		k := key{
			quantity:  calibration.Quantity(strings.TrimSpace(row[0])),
			condition: strings.TrimSpace(row[1]),
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return calibration.Batch{}, fmt.Errorf("platereader: well row %d: %w", i+1, err)
		}
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], value)
	}

	var batch calibration.Batch
	for _, k := range order {
		batch.Readings = append(batch.Readings, calibration.ConditionReadings{
			Quantity:  k.quantity,
			Condition: k.condition,
			Values:    grouped[k],
		})
	}
	return batch, nil
}
