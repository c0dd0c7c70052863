// Command sweep removes expired temp uploads once and exits. The API process
// must be stopped first: the blob database allows a single writer.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"featureboard/internal/blob"
	"featureboard/internal/config"
	"featureboard/internal/uploads"
	"featureboard/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath string
		threshold  time.Duration
		dryRun     bool
	)
	fs := pflag.NewFlagSet("sweep", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "path to config.yaml (overrides "+config.ConfigPathEnvVar+")")
	fs.DurationVar(&threshold, "threshold", 0, "minimum age of removed temp objects (default: uploads.sweep_threshold)")
	fs.BoolVar(&dryRun, "dry-run", false, "list expired temp objects without removing them")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, configPath); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if threshold <= 0 {
		threshold = cfg.Uploads.SweepThreshold
	}
	l := logger.New(cfg.Env, cfg.Logging.Level, cfg.Logging.Format)

	bdb, err := blob.Open(cfg.Blob.Path)
	if err != nil {
		return err
	}
	defer bdb.Close()
	signer := blob.NewSigner(cfg.Blob.Secret)
	temp := blob.NewBadgerStore(bdb, blob.BucketTemp, cfg.Server.PublicBaseURL, signer)
	images := blob.NewBadgerStore(bdb, blob.BucketImages, cfg.Server.PublicBaseURL, signer)
	ctx := context.Background()

	if dryRun {
		objs, err := temp.List(ctx, uploads.TempPrefix)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, o := range objs {
			if age := now.Sub(o.CreatedAt); age >= threshold {
				fmt.Printf("%s\t%s\n", o.Key, age.Truncate(time.Second))
			}
		}
		return nil
	}

	res, err := uploads.New(temp, images, l).SweepExpired(ctx, threshold)
	if err != nil {
		return err
	}
	for _, k := range res.Keys {
		fmt.Println(k)
	}
	l.Info().Int("removed", res.Count).Dur("threshold", threshold).Msg("sweep complete")
	return nil
}
