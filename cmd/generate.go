package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	db "github.com/KazanKK/sqlsubset/database"
	utils "github.com/KazanKK/sqlsubset/internal/utils"

	"github.com/urfave/cli/v2"
)

func GenerateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a synthetic plate database to try subsetting on",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Required: true,
				Usage:    "Path of the sqlite file to create",
			},
			&cli.IntFlag{
				Name:  "rows",
				Value: 1000,
				Usage: "Rows per object table",
			},
			&cli.IntFlag{
				Name:  "image-rows",
				Value: 96,
				Usage: "Rows in the image table",
			},
			&cli.StringSliceFlag{
				Name:  "tables",
				Value: cli.NewStringSlice("Cells", "Cytoplasm", "Nuclei"),
				Usage: "Object table names",
			},
			&cli.Int64Flag{
				Name:  "seed",
				Usage: "Random seed (0 = time-based)",
			},
		},
		Action: func(c *cli.Context) error {
			rows := c.Int("rows")
			imageRows := c.Int("image-rows")
			if rows < 0 || imageRows < 0 {
				return fmt.Errorf("row counts must not be negative")
			}

			cfg, _, err := utils.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %v", err)
			}

			seed := c.Int64("seed")
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			plate := db.PlateSpec{ImageTable: cfg.ExemptTable, ImageRows: imageRows, Seed: seed}
			for _, name := range c.StringSlice("tables") {
				name = strings.TrimSpace(name)
				if name == "" || name == cfg.ExemptTable {
					continue
				}
				plate.Objects = append(plate.Objects, db.ObjectTable{Name: name, Rows: rows})
			}

			output := c.String("output")
			if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
				return fmt.Errorf("creating output directory: %v", err)
			}

			s, err := db.CreateSQLite(output)
			if err != nil {
				return fmt.Errorf("creating database: %v", err)
			}
			defer s.Close()

			if err := db.GeneratePlateData(c.Context, s, plate); err != nil {
				return fmt.Errorf("generating data: %v", err)
			}

			fmt.Fprintf(c.App.Writer, "Successfully generated %s (%d object tables, seed %d)\n", output, len(plate.Objects), seed)
			return nil
		},
	}
}
