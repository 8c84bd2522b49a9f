// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianOracle/pkg/ux"
)

func runMarketsSearch(cmd *cobra.Command, args []string) error {
	u := newUX()
	d := buildMarketDeps()

	query := strings.Join(args, " ")
	snaps := d.aggregator.SearchAllFlat(cmd.Context(), query, searchLimit)
	u.PrintMarkets(snaps)
	return nil
}

func runMarketsTrending(cmd *cobra.Command, args []string) error {
	u := newUX()
	d := buildMarketDeps()

	byPlatform := d.aggregator.TrendingAll(cmd.Context(), searchLimit)
	for _, p := range d.aggregator.Platforms() {
		snaps := byPlatform[p]
		if len(snaps) == 0 {
			continue
		}
		u.Titleln(string(p))
		u.PrintMarkets(snaps)
		u.Println()
	}
	return nil
}

func runMarketsGet(cmd *cobra.Command, args []string) error {
	u := newUX()
	d := buildMarketDeps()

	snap, err := d.aggregator.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", snap.Title)
	fmt.Fprintf(&b, "Platform     %s\n", snap.Platform)
	fmt.Fprintf(&b, "Probability  %s\n", snap.FormattedProbability())
	if snap.Volume > 0 {
		fmt.Fprintf(&b, "Volume       %.0f\n", snap.Volume)
	}
	if snap.CloseTime != nil {
		fmt.Fprintf(&b, "Closes       %s\n", snap.CloseTime.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "URL          %s", snap.URL)
	u.Box(b.String())

	if snap.Description != "" {
		u.Mutedln(snap.Description)
	}
	return nil
}

func runArbScan(cmd *cobra.Command, args []string) error {
	u := newUX()
	d := buildMarketDeps()

	query := strings.Join(args, " ")
	u.Mutedln(fmt.Sprintf("Scanning %d platforms for %q ...", len(d.aggregator.Platforms()), query))

	opps := d.matcher.Scan(cmd.Context(), d.aggregator, query, 20)
	u.PrintOpportunities(opps)
	if len(opps) > 0 {
		u.Println(u.Styled(ux.Styles.Muted, "Execute with: oracle trade open, or let the agent do it via chat."))
	}
	return nil
}
