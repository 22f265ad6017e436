package main

import (
	"os"

	"github.com/KazanKK/sqlsubset/cmd"
	"github.com/sirupsen/logrus"
)

func main() {
	app := cmd.NewApp(os.Stdout)

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
