// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package social

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianOracle/services/markets"
)

// FormatMarketPost renders one market as a self-contained tweet.
func FormatMarketPost(s markets.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", truncate(s.Title, 200))
	fmt.Fprintf(&b, "Probability: %s", s.FormattedProbability())
	if s.Volume > 0 {
		fmt.Fprintf(&b, " | Vol: $%.0f", s.Volume)
	}
	if s.URL != "" {
		b.WriteString("\n" + s.URL)
	}
	return truncate(b.String(), maxTweetLen)
}

// SplitThread breaks long text into tweet-sized chunks on paragraph,
// then sentence, then word boundaries. Chunks after the first carry a
// position marker.
func SplitThread(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	// Leave room for the " (n/m)" suffix.
	const budget = maxTweetLen - 8

	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len([]rune(para)) <= budget {
			chunks = append(chunks, para)
			continue
		}
		chunks = append(chunks, splitByWords(para, budget)...)
	}

	if len(chunks) <= 1 {
		return chunks
	}
	for i := range chunks {
		chunks[i] = fmt.Sprintf("%s (%d/%d)", chunks[i], i+1, len(chunks))
	}
	return chunks
}

func splitByWords(text string, budget int) []string {
	var chunks []string
	var cur strings.Builder
	for _, word := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > budget {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
