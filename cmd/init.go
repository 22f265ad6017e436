package cmd

import (
	"fmt"

	utils "github.com/KazanKK/sqlsubset/internal/utils"
	"github.com/urfave/cli/v2"
)

func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize sqlsubset configuration file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory subset files are written to",
				Value: utils.DefaultOutputDir,
			},
			&cli.StringFlag{
				Name:  "exempt-table",
				Usage: "Table copied in full",
				Value: utils.DefaultExemptTable,
			},
			&cli.Int64Flag{
				Name:  "sample-size",
				Usage: "Default number of rows per table",
				Value: utils.DefaultSampleSize,
			},
		},
		Action: func(c *cli.Context) error {
			cfg := utils.DefaultConfig()

			// Start from an existing config so init only changes what was asked for
			if existing, path, err := utils.LoadConfig(c.String("config")); err == nil && path != "" {
				cfg = existing
			}
			if c.IsSet("output-dir") {
				cfg.OutputDir = c.String("output-dir")
			}
			if c.IsSet("exempt-table") {
				cfg.ExemptTable = c.String("exempt-table")
			}
			if c.IsSet("sample-size") {
				cfg.SampleSize = c.Int64("sample-size")
			}
			if cfg.SampleSize < 0 {
				return fmt.Errorf("sample size must not be negative, got %d", cfg.SampleSize)
			}

			if err := utils.WriteConfig(utils.ConfigFileName, cfg); err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "Created %s with output directory: %s\n", utils.ConfigFileName, cfg.OutputDir)
			return nil
		},
	}
}
