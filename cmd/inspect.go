package cmd

import (
	"fmt"
	"strconv"

	db "github.com/KazanKK/sqlsubset/database"
	utils "github.com/KazanKK/sqlsubset/internal/utils"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "List the tables of a source database with their row counts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Required: true,
				Usage:    "Source database (sqlite file path, postgres:// or mysql:// URL)",
			},
			&cli.StringFlag{
				Name:  "exempt-table",
				Usage: "Table copied in full (defaults to the configured one)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, _, err := utils.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %v", err)
			}
			exempt := cfg.ExemptTable
			if c.IsSet("exempt-table") {
				exempt = c.String("exempt-table")
			}

			src, err := db.Open(c.String("input"))
			if err != nil {
				return err
			}
			defer src.Close()

			tables, err := src.ListTables(c.Context)
			if err != nil {
				return fmt.Errorf("listing tables: %v", err)
			}
			if len(tables) == 0 {
				fmt.Fprintln(c.App.Writer, "No tables found.")
				return nil
			}

			table := tablewriter.NewWriter(c.App.Writer)
			table.SetHeader([]string{"Table", "Rows", "Note"})
			table.SetBorder(false)
			table.SetColumnSeparator(" ")

			var smallest int64 = -1
			for _, name := range tables {
				count, err := src.CountRows(c.Context, name)
				if err != nil {
					return fmt.Errorf("counting rows in %s: %v", name, err)
				}

				note := ""
				if name == exempt {
					note = "exempt"
				} else if smallest < 0 || count < smallest {
					smallest = count
				}
				table.Append([]string{name, strconv.FormatInt(count, 10), note})
			}
			table.Render()

			if smallest < 0 {
				fmt.Fprintln(c.App.Writer, "\nNo eligible tables: every table is exempt.")
			} else {
				fmt.Fprintf(c.App.Writer, "\nLargest valid sample size: %d\n", smallest)
			}
			return nil
		},
	}
}
