package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/f4ah6o/corsserve-go/internal/config"
	"github.com/f4ah6o/corsserve-go/internal/probe"
)

// runProbe implements "corsserve probe" and returns the process exit code.
func runProbe(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("corsserve probe", flag.ContinueOnError)
	fs.SetOutput(out)

	configPath := fs.String("config", "", "Config file of the server under test; its [cors] values are expected")
	jsonOutput := fs.Bool("json", false, "Print the report as JSON")
	insecure := fs.Bool("insecure", false, "Accept self-signed certificates")
	origin := fs.String("origin", probe.DefaultOrigin, "Origin header sent with requests")
	timeout := fs.Duration("timeout", 10*time.Second, "Overall timeout")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(out, "Usage: corsserve probe [flags] URL")
		fs.PrintDefaults()
		return 2
	}

	expect := config.Default().CORS
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			color.New(color.FgRed).Fprintf(out, "Error: %v\n", err)
			return 2
		}
		expect = cfg.CORS
	}

	client := &http.Client{}
	if *insecure {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // local self-signed certificates
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	p := probe.New(client, probe.DefaultUserAgent, *origin, expect)
	report, err := p.Probe(ctx, fs.Arg(0))
	if err != nil {
		color.New(color.FgRed).Fprintf(out, "Error: %v\n", err)
		return 1
	}

	if *jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return 1
		}
	} else {
		printReport(out, report)
	}

	if !report.OK() {
		return 1
	}
	return 0
}

func printReport(out io.Writer, report *probe.Report) {
	scheme := "HTTP"
	if report.TLS {
		scheme = "HTTPS"
	}
	fmt.Fprintf(out, "%s (%s)\n", report.Target, scheme)

	printCheck(out, report.Preflight)
	printCheck(out, report.Page)
	for _, a := range report.Assets {
		printCheck(out, a)
	}
}

func printCheck(out io.Writer, c probe.Check) {
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed)

	if c.OK() {
		pass.Fprint(out, "  PASS ")
	} else {
		fail.Fprint(out, "  FAIL ")
	}
	fmt.Fprintf(out, "%-7s %3d %s\n", c.Method, c.Status, c.URL)

	if c.Err != "" {
		fmt.Fprintf(out, "         error: %s\n", c.Err)
	}
	if len(c.Missing) > 0 {
		fmt.Fprintf(out, "         missing: %s\n", strings.Join(c.Missing, ", "))
	}
}
