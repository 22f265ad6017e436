package db

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/go-faker/faker/v4"
)

// ObjectTable describes one per-object measurement table of a plate database
type ObjectTable struct {
	Name string
	Rows int
}

// PlateSpec describes a synthetic plate database: an image table plus a set
// of per-object tables that reference it by ImageNumber
type PlateSpec struct {
	ImageTable string
	ImageRows  int
	Objects    []ObjectTable
	Seed       int64
}

var plateFeatures = []string{"AreaShape_Area", "Intensity_MeanIntensity_DNA", "Texture_Contrast_RNA"}

func randomFloat(rng *rand.Rand, min, max float64, precision int) float64 {
	val := min + rng.Float64()*(max-min)
	factor := math.Pow10(precision)
	return math.Round(val*factor) / factor
}

// GeneratePlateData writes the tables described by plate into s, replacing
// any existing tables of the same names
func GeneratePlateData(ctx context.Context, s *SQLiteManager, plate PlateSpec) error {
	if plate.ImageTable == "" {
		plate.ImageTable = "Image"
	}
	rng := rand.New(rand.NewSource(plate.Seed))
	barcode := strings.ToUpper(strings.ReplaceAll(faker.UUIDHyphenated(), "-", "")[:8])

	if err := s.createFromValues(ctx, plate.ImageTable, imageColumns(), plate.ImageRows, func(i int) []interface{} {
		well := fmt.Sprintf("%c%02d", 'A'+rune(i%16), i%24+1)
		return []interface{}{
			i + 1,
			barcode,
			well,
			fmt.Sprintf("%s_%s_%s.tiff", barcode, well, faker.Word()),
			randomFloat(rng, 0, 1, 4),
		}
	}); err != nil {
		return fmt.Errorf("generating %s: %w", plate.ImageTable, err)
	}

	for _, obj := range plate.Objects {
		imageRows := plate.ImageRows
		if err := s.createFromValues(ctx, obj.Name, objectColumns(obj.Name), obj.Rows, func(i int) []interface{} {
			imageNumber := 1
			if imageRows > 0 {
				imageNumber = i%imageRows + 1
			}
			row := []interface{}{imageNumber, i + 1}
			for range plateFeatures {
				row = append(row, randomFloat(rng, 0, 1000, 3))
			}
			return row
		}); err != nil {
			return fmt.Errorf("generating %s: %w", obj.Name, err)
		}
	}
	return nil
}

func imageColumns() []Column {
	return []Column{
		{Name: "ImageNumber", SystemType: "INTEGER"},
		{Name: "Image_Metadata_Plate", SystemType: "TEXT"},
		{Name: "Image_Metadata_Well", SystemType: "TEXT"},
		{Name: "Image_FileName_DNA", SystemType: "TEXT"},
		{Name: "Image_ImageQuality_Focus", SystemType: "REAL"},
	}
}

func objectColumns(table string) []Column {
	columns := []Column{
		{Name: "ImageNumber", SystemType: "INTEGER"},
		{Name: "ObjectNumber", SystemType: "INTEGER"},
	}
	for _, feature := range plateFeatures {
		columns = append(columns, Column{Name: table + "_" + feature, SystemType: "REAL"})
	}
	return columns
}

// createFromValues replaces table with n rows produced by row
func (s *SQLiteManager) createFromValues(ctx context.Context, name string, columns []Column, n int, row func(int) []interface{}) error {
	table := Table{Name: name, Dialect: s.Dialect(), Columns: columns}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(name))); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(table)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(table))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			return fmt.Errorf("inserting row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log().Infof("Generated table %s with %d rows", name, n)
	return nil
}
