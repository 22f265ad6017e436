package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/KazanKK/sqlsubset/internal/subset"
	utils "github.com/KazanKK/sqlsubset/internal/utils"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// SubsetFlags are the flags of the root command
func SubsetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Source database (sqlite file path, postgres:// or mysql:// URL) (required)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Name of the subset sqlite file (required)",
		},
		&cli.Int64Flag{
			Name:    "sample_size",
			Aliases: []string{"n", "sample-size"},
			Value:   utils.DefaultSampleSize,
			Usage:   "Number of rows to keep per table",
		},
		&cli.StringFlag{
			Name:  "exempt-table",
			Value: utils.DefaultExemptTable,
			Usage: "Table copied in full regardless of the sample size",
		},
		&cli.StringFlag{
			Name:  "output-dir",
			Value: utils.DefaultOutputDir,
			Usage: "Directory the subset file is written to",
		},
	}
}

// SubsetAction runs the subset pipeline with the flags of SubsetFlags.
// input and output are checked here rather than marked Required so the
// subcommands can run without them.
func SubsetAction(c *cli.Context) error {
	if c.String("input") == "" {
		return fmt.Errorf("missing required flag: --input")
	}
	if c.String("output") == "" {
		return fmt.Errorf("missing required flag: --output")
	}

	cfg, configPath, err := utils.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %v", err)
	}
	if configPath != "" {
		logrus.Debugf("Using config %s", configPath)
	}

	// flags given on the command line win over the config file
	if c.IsSet("sample_size") {
		cfg.SampleSize = c.Int64("sample_size")
	}
	if c.IsSet("exempt-table") {
		cfg.ExemptTable = c.String("exempt-table")
	}
	if c.IsSet("output-dir") {
		cfg.OutputDir = c.String("output-dir")
	}

	name, added := utils.NormalizeOutputName(c.String("output"), cfg.Extension)
	if added {
		logrus.Warnf("extension was not found, adding %s extension.", cfg.Extension)
	}
	savePath, err := utils.OutputPath(cfg.OutputDir, name)
	if err != nil {
		return err
	}

	result, err := subset.Run(c.Context, subset.Options{
		Input:       c.String("input"),
		Output:      savePath,
		SampleSize:  cfg.SampleSize,
		ExemptTable: cfg.ExemptTable,
	})
	if err != nil {
		return err
	}

	writeSummary(c.App.Writer, result)
	fmt.Fprintf(c.App.Writer, "\n✅ Processes complete! subset saved: %s\n", result.Output)
	return nil
}

func writeSummary(w io.Writer, result *subset.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Rows", "Note"})
	table.SetBorder(false)
	table.SetColumnSeparator(" ")

	for _, t := range result.Tables {
		note := ""
		if t.Exempt {
			note = "copied in full"
		}
		table.Append([]string{t.Name, strconv.FormatInt(t.Rows, 10), note})
	}
	table.Render()
}
