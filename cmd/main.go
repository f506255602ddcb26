package main

import (
	"os"

	logging "github.com/sirupsen/logrus"

	"github.com/lablabs/cloudflare-analytics-export/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.WithError(err).Error("Application failed")
		os.Exit(1)
	}
}
