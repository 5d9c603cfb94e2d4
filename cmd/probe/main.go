// Command probe fetches every configured location once and prints what the
// extractor sees, to verify the portal before running the bridge.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"loggamera-bridge/internal/extract"
	"loggamera-bridge/internal/logging"
	"loggamera-bridge/internal/models"
	"loggamera-bridge/internal/portal"
	"loggamera-bridge/internal/retry"
	"loggamera-bridge/pkg/config"
)

type result struct {
	loc   models.Location
	value float64
	err   error
}

func main() {
	cfg := config.Load()

	locations := flag.String("locations", cfg.LocationList, "Comma-separated location ids (id or id:kind)")
	verbose := flag.Bool("v", false, "Log every fetch attempt")
	flag.Parse()

	logger := logging.New(os.Stderr, *verbose)

	locs, err := config.ParseLocations(*locations)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid locations: %v\n", err)
		os.Exit(2)
	}

	client, err := portal.NewClient(portal.Config{
		BaseURL:   cfg.PortalBaseURL,
		Timeout:   cfg.FetchTimeout,
		Retry:     retry.Policy{MaxAttempts: cfg.FetchAttempts, Delay: cfg.FetchRetryDelay},
		UserAgent: cfg.UserAgent,
		Logger:    logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "portal client: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("Probing %s\n", client.Endpoint())

	var results []result
	for _, loc := range locs {
		results = append(results, probe(ctx, os.Stdout, client, loc))
	}

	if !summarize(os.Stdout, results) {
		os.Exit(1)
	}
}

func probe(ctx context.Context, w io.Writer, client *portal.Client, loc models.Location) result {
	spec := loc.Kind.Spec()
	fmt.Fprintf(w, "\n== %s (id %d, %s)\n", loc.Name, loc.ID, spec.Label)

	page, err := client.Fetch(ctx, loc.ID)
	if err != nil {
		fmt.Fprintf(w, "  fetch failed: %v\n", err)
		return result{loc: loc, err: err}
	}
	fmt.Fprintf(w, "  %d bytes after %d attempt(s)\n", len(page.Body), page.Attempts)

	return inspect(w, loc, page.Body)
}

func inspect(w io.Writer, loc models.Location, body string) result {
	spec := loc.Kind.Spec()

	candidates := extract.Candidates(body, spec)
	fmt.Fprintf(w, "  %d marker(s) matching %s\n", len(candidates), spec.Pattern)
	for _, c := range candidates {
		switch {
		case c.Err != nil:
			fmt.Fprintf(w, "    %-10q unparseable: %v\n", c.Raw, c.Err)
		case c.InRange:
			fmt.Fprintf(w, "    %-10q ok\n", c.Raw)
		default:
			fmt.Fprintf(w, "    %-10q outside [%g, %g]\n", c.Raw, spec.Min, spec.Max)
		}
	}

	markers, err := structuralMarkers(body)
	if err != nil {
		fmt.Fprintf(w, "  html parse failed: %v\n", err)
	}
	for _, m := range markers {
		fmt.Fprintf(w, "    widget class=%q data-value=%q text=%q\n", m.Class, m.Value, m.Text)
	}

	value, err := extract.Extract(body, spec)
	if err != nil {
		fmt.Fprintf(w, "  no valid value: %v\n", err)
		return result{loc: loc, err: err}
	}
	fmt.Fprintf(w, "  value: %g %s\n", value, spec.Unit)
	return result{loc: loc, value: value}
}

// summarize prints the outcome table and the working locations as an .env
// line. It reports whether at least one location works.
func summarize(w io.Writer, results []result) bool {
	fmt.Fprintln(w, "\n== Summary")

	var working []string
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(w, "  %-20s FAILED  %v\n", r.loc.Name, r.err)
			continue
		}
		fmt.Fprintf(w, "  %-20s OK      %g %s\n", r.loc.Name, r.value, r.loc.Kind.Spec().Unit)
		entry := fmt.Sprint(r.loc.ID)
		if r.loc.Kind != models.KindTemperature {
			entry += ":" + r.loc.Kind.String()
		}
		working = append(working, entry)
	}

	fmt.Fprintf(w, "\n%d/%d locations working\n", len(working), len(results))
	if len(working) == 0 {
		return false
	}
	fmt.Fprintf(w, "LOCATIONS=%s\n", strings.Join(working, ","))
	return true
}
