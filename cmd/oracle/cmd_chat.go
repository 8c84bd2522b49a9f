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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianOracle/pkg/ux"
	"github.com/AleutianAI/AleutianOracle/services/agent"
)

// runAsk answers one question and exits.
func runAsk(cmd *cobra.Command, args []string) error {
	u := newUX()
	a, d, err := buildAgent()
	if err != nil {
		return err
	}
	defer d.close()

	question := strings.Join(args, " ")
	return streamTurn(cmd.Context(), a, question, u)
}

// runChat is the interactive REPL.
func runChat(cmd *cobra.Command, args []string) error {
	u := newUX()
	a, d, err := buildAgent()
	if err != nil {
		return err
	}
	defer d.close()

	// Piped input gets a single non-interactive turn.
	if !stdinIsTerminal() {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		question := strings.TrimSpace(string(data))
		if question == "" {
			return fmt.Errorf("no question on stdin")
		}
		return streamTurn(cmd.Context(), a, question, u)
	}

	u.Box(u.Styled(ux.Styles.Title, "Oracle") + "\nPrediction-market research agent.\nType a question, /help for commands, /exit to quit.")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		u.Print("%s", u.Styled(ux.Styles.Highlight, "> "))
		if !scanner.Scan() {
			u.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := runSlashCommand(ctx, line, a, d, u); done {
				return nil
			}
			continue
		}
		if err := streamTurn(ctx, a, line, u); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			u.Errorln(fmt.Sprintf("error: %v", err))
		}
	}
}

// streamTurn runs one turn, printing tool progress and answer text as
// they arrive.
func streamTurn(ctx context.Context, a *agent.Agent, question string, u *ux.UX) error {
	sawText := false
	_, err := a.ChatStream(ctx, question, func(e agent.Event) {
		switch e.Type {
		case agent.EventToolStart:
			u.Mutedln("⋯ " + e.Tool)
		case agent.EventText:
			u.Print("%s", e.Text)
			sawText = true
		case agent.EventDone:
			if sawText {
				u.Println()
			} else {
				// Final answer arrived without fragments.
				u.Println(e.Text)
			}
		}
	})
	return err
}

// runSlashCommand handles REPL commands. Returns true to exit.
func runSlashCommand(ctx context.Context, line string, a *agent.Agent, d *deps, u *ux.UX) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/exit", "/quit", "/q":
		return true
	case "/help":
		u.Println("/clear      wipe the conversation memory")
		u.Println("/tools      list the agent's tools")
		u.Println("/markets    show markets fetched this session")
		u.Println("/portfolio  show the paper portfolio")
		u.Println("/exit       quit")
	case "/clear":
		a.Memory().Clear()
		u.Successln("Memory cleared.")
	case "/tools":
		for _, name := range a.Tools() {
			u.Println("  " + name)
		}
	case "/markets":
		snaps := a.Memory().Markets()
		if len(snaps) == 0 {
			u.Mutedln("No markets in session context yet.")
			break
		}
		u.PrintMarkets(snaps)
	case "/portfolio":
		u.PrintPortfolio(d.engine.Portfolio(ctx))
	default:
		u.Mutedln("Unknown command; /help lists commands.")
	}
	return false
}
