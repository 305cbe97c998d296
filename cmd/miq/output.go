package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/migrationiq/migrationiq/internal/compare"
	"github.com/migrationiq/migrationiq/internal/engine"
	"github.com/migrationiq/migrationiq/internal/risk"
	"github.com/migrationiq/migrationiq/internal/types"
	"github.com/migrationiq/migrationiq/internal/ui"
)

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printFindings renders a finding list, one line each, styled by weight.
func printFindings(findings []types.Finding) {
	for _, f := range findings {
		printFinding(f)
	}
}

func printFinding(f types.Finding) {
	marker := "!"
	if f.Category.Structural() {
		marker = "x"
	}
	line := fmt.Sprintf("  %s [%s] %s", marker, f.Category, f.Message)
	if f.MigrationID != "" {
		line = fmt.Sprintf("  %s [%s] %s: %s", marker, f.Category, f.MigrationID, f.Message)
	}
	if ui.ShouldUseColor() {
		line = ui.FindingStyle(f.Weight).Render(line)
	}
	fmt.Println(line)
	if len(f.Nodes) > 0 && verboseFlag {
		fmt.Println(ui.MutedStyle.Render("      nodes: " + strings.Join(f.Nodes, " -> ")))
	}
}

func printHeader(title string) {
	if ui.ShouldUseColor() {
		fmt.Println(ui.HeaderStyle.Render(title))
		return
	}
	fmt.Println(title)
}

// printRisk renders the aggregate score line.
func printRisk(r risk.Report) {
	fmt.Printf("\nRisk score: %d  %s\n", r.TotalScore, ui.SeverityBadge(r.Severity))
}

// printCheckResult renders graph shape plus structural findings.
func printCheckResult(res *engine.CheckResult, r risk.Report) {
	if !quietFlag {
		fmt.Printf("Migrations: %d  Heads: %s  Roots: %s\n",
			res.Count, joinOrNone(res.Heads), joinOrNone(res.Roots))
	}
	if len(res.Findings) == 0 {
		if !quietFlag {
			fmt.Println(ui.PassStyle.Render("No structural defects found."))
		}
	} else {
		printHeader("Structural findings")
		printFindings(r.Findings)
	}
	printRisk(r)
}

// printComparison renders the branch comparison summary.
func printComparison(res *compare.Result, target string) {
	if !quietFlag {
		fmt.Printf("Target: %s\n", target)
		fmt.Printf("Local only: %s\n", joinOrNone(res.LocalOnly))
		fmt.Printf("Target only: %s\n", joinOrNone(res.TargetOnly))
		fmt.Printf("Common: %d  Local heads: %s  Target heads: %s\n",
			len(res.Common), joinOrNone(res.LocalHeads), joinOrNone(res.TargetHeads))
	}
	if len(res.Findings) == 0 {
		fmt.Println(ui.PassStyle.Render("Branches are consistent."))
		return
	}
	printHeader("Divergence findings")
	printFindings(res.Findings)
}

// printReport renders the full pre-merge gate report.
func printReport(rep *engine.Report, target string) {
	if !quietFlag {
		fmt.Printf("Heads: %s  Roots: %s\n", joinOrNone(rep.Heads), joinOrNone(rep.Roots))
	}
	sections := []struct {
		title    string
		findings []types.Finding
	}{
		{"Structural findings", rep.Structural},
		{"Lint findings", rep.Lint},
	}
	for _, s := range sections {
		if len(s.findings) == 0 {
			continue
		}
		printHeader(s.title)
		printFindings(s.findings)
	}
	if rep.Comparison != nil {
		printComparison(rep.Comparison, target)
	}
	if len(rep.Risk.Findings) == 0 {
		fmt.Println(ui.PassStyle.Render("Migration history is clean."))
	}
	printRisk(rep.Risk)
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, ", ")
}
