package cmd

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

// NewApp builds the sqlsubset CLI. Progress and results go to out.
func NewApp(out io.Writer) *cli.App {
	flags := append(SubsetFlags(),
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to sqlsubset.yaml (default: discovered from the working directory)",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
	)

	return &cli.App{
		Name:   "sqlsubset",
		Usage:  "Create a small subset of a database, keeping the first N rows of every table",
		Writer: out,
		Flags:  flags,
		Before: func(c *cli.Context) error {
			setupLogging(out, c.Bool("debug"))
			return nil
		},
		Action: SubsetAction,
		Commands: []*cli.Command{
			InitCommand(),
			InspectCommand(),
			GenerateCommand(),
		},
	}
}

func setupLogging(out io.Writer, debug bool) {
	logrus.SetOutput(out)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	colors := false
	if f, ok := out.(*os.File); ok {
		colors = term.IsTerminal(int(f.Fd()))
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: !colors,
	})
}
