package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/class1/graduate/pkg/session"
	"github.com/class1/graduate/pkg/shootingtime"
	"github.com/class1/graduate/pkg/whttp"
)

func main() {
	// Usage: go run *.go -subject 3 -from 2021-01-01

	indexFlag := flag.String("index", "https://amazingkenneth.github.io/graduate/index.toml", "Index document URL")
	subjectFlag := flag.Int("subject", 0, "Id of the person whose timeline to print")
	fromFlag := flag.String("from", "", "Start at the first event on or after this date")
	storageFlag := flag.String("storage", os.TempDir()+"/graduate-example", "Cache directory")

	flag.Parse()

	if *subjectFlag <= 0 {
		fmt.Println("Subject is required. Please provide it using the -subject flag.")
		return
	}

	client, err := whttp.NewClient(whttp.Options{})
	if err != nil {
		fmt.Println(err)
		return
	}

	cfg := session.Config{
		IndexURL: *indexFlag,
		Root:     *storageFlag,
		Fetcher:  client,
		Subject:  *subjectFlag,
		Log:      logrus.New(),
	}
	if *fromFlag != "" {
		if cfg.From, err = shootingtime.Parse(*fromFlag); err != nil {
			fmt.Println(err)
			return
		}
	}

	ctx := context.Background()
	s, err := session.Open(ctx, cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer s.Close()

	// Walk the whole timeline from the starting event, one photo per event
	for {
		v, err := s.Current()
		if err != nil {
			fmt.Println(err)
			return
		}
		payload, err := s.AwaitCurrent(ctx)
		if err != nil {
			fmt.Printf("%s  %s  (failed: %v)\n", v.Experience.ShotAt, v.Event.Description, err)
		} else {
			fmt.Printf("%s  %s  %s (%d bytes)\n", v.Experience.ShotAt, v.Event.Description, v.Experience.Path, len(payload))
		}
		if !s.NextEvent() {
			break
		}
	}
}
