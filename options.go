package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
)

// Default values for the options when missing.
const (
	DefaultURI            = "mongodb://localhost:27017"
	DefaultDatabase       = "test"
	DefaultCollection     = "docs"
	DefaultVerbosity      = "INFO"
	DefaultConnectTimeout = 30 * time.Second
	DefaultReportInterval = time.Second
	DefaultOutputPrefix   = "load_results"
)

var allowedVerbosities = []string{"DEBUG", "INFO", "WARN", "ERROR"}

type Options struct {
	URI            string
	Database       string
	Collection     string
	Verbosity      string
	ConnectTimeout time.Duration
	ReportInterval time.Duration
	OutputPrefix   string
}

func (o Options) Connection() ConnectionConfig {
	return ConnectionConfig{
		URI:            o.URI,
		Database:       o.Database,
		Collection:     o.Collection,
		ConnectTimeout: o.ConnectTimeout,
	}
}

// ReportFilename returns the CSV path for this run, or "" when reporting to a file is disabled.
func (o Options) ReportFilename() string {
	if o.OutputPrefix == "" {
		return ""
	}
	return fmt.Sprintf("%s_workload.csv", o.OutputPrefix)
}

// GetFlagsAndBeforeFunc defines all CLI options as flags and returns the
// BeforeFunc that loads the same options from a YAML config file.
func GetFlagsAndBeforeFunc() ([]cli.Flag, cli.BeforeFunc) {
	flags := []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "uri",
			Usage:   "MongoDB connection string",
			Aliases: []string{"u"},
			Value:   DefaultURI,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "database",
			Usage:   "database the workload runs in; it is dropped at the end",
			Aliases: []string{"db"},
			Value:   DefaultDatabase,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "collection",
			Usage:   "collection the workload writes to",
			Aliases: []string{"c"},
			Value:   DefaultCollection,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "verbosity",
			Usage:       fmt.Sprintf("set the verbosity level (%s)", strings.Join(allowedVerbosities, ",")),
			Value:       DefaultVerbosity,
			DefaultText: DefaultVerbosity,
			Action: func(ctx *cli.Context, v string) error {
				if !slices.Contains(allowedVerbosities, v) {
					return fmt.Errorf("unsupported verbosity setting %v", v)
				}
				return nil
			},
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:  "connect-timeout",
			Usage: "how long to keep retrying the initial ping",
			Value: DefaultConnectTimeout,
		}),
		altsrc.NewDurationFlag(&cli.DurationFlag{
			Name:  "report-interval",
			Usage: "interval between progress log lines",
			Value: DefaultReportInterval,
			Action: func(ctx *cli.Context, d time.Duration) error {
				if d <= 0 {
					return fmt.Errorf("report-interval must be positive, got %v", d)
				}
				return nil
			},
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:    "output",
			Usage:   "prefix of the CSV results file (empty disables it)",
			Aliases: []string{"o"},
			Value:   DefaultOutputPrefix,
		}),
		&cli.StringFlag{
			Name:  "config",
			Usage: "specify the path of a YAML config file",
		},
	}

	return flags, altsrc.InitInputSourceWithContext(flags, altsrc.NewYamlSourceFromFlagFunc("config"))
}

func NewOptionsFromCLIContext(c *cli.Context) Options {
	return Options{
		URI:            c.String("uri"),
		Database:       c.String("database"),
		Collection:     c.String("collection"),
		Verbosity:      c.String("verbosity"),
		ConnectTimeout: c.Duration("connect-timeout"),
		ReportInterval: c.Duration("report-interval"),
		OutputPrefix:   c.String("output"),
	}
}
