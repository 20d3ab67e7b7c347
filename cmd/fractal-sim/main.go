package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rmax-ai/fractald/pkg/client"
	"github.com/rmax-ai/fractald/pkg/simulation"
)

func main() {
	var (
		scenarioFile string
		apiURL       string
		jsonOutput   bool
		outputFile   string
	)

	flag.StringVar(&scenarioFile, "scenario", "", "Path to scenario YAML or JSON file")
	flag.StringVar(&apiURL, "api", client.DefaultEndpoint, "Base URL of fractald")
	flag.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	flag.StringVar(&outputFile, "out", "", "Write output to file instead of stdout")
	flag.Parse()

	scenario, err := loadScenario(scenarioFile)
	if err != nil {
		log.Fatalf("Failed to load scenario: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result := simulation.RunScenario(ctx, scenario, client.NewClient(apiURL), logger)

	output, err := renderReport(result, jsonOutput)
	if err != nil {
		log.Fatalf("Failed to marshal report: %v", err)
	}
	if outputFile != "" {
		if err := os.WriteFile(outputFile, output, 0644); err != nil {
			log.Fatalf("Failed to write report to %s: %v", outputFile, err)
		}
		fmt.Printf("Report written to %s\n", outputFile)
	} else {
		fmt.Println(string(output))
	}

	if !result.Success {
		os.Exit(1)
	}
}

// loadScenario reads a scenario file. YAML is a superset of JSON, so both
// formats parse; durations are written as strings such as "10s".
func loadScenario(path string) (simulation.Scenario, error) {
	if path == "" {
		fmt.Fprintln(os.Stderr, "No scenario file provided, running default demo scenario...")
		return defaultScenario(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return simulation.Scenario{}, err
	}
	var scenario simulation.Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return simulation.Scenario{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if scenario.Duration <= 0 {
		return simulation.Scenario{}, fmt.Errorf("scenario %q needs a positive duration", scenario.Name)
	}
	return scenario, nil
}

func defaultScenario() simulation.Scenario {
	return simulation.Scenario{
		Name:        "Default Demo",
		Duration:    10 * time.Second,
		Description: "Periodic contributors with a reader",
		Agents: []simulation.AgentConfig{
			{
				Name:         "contributor",
				Count:        5,
				Behavior:     simulation.BehaviorPeriodic,
				Rate:         2,
				ContextRatio: 0.5,
			},
			{
				Name:      "reader",
				Count:     1,
				Behavior:  simulation.BehaviorPoisson,
				Rate:      5,
				ReadRatio: 1,
			},
		},
		Invariants: []simulation.Invariant{
			{Metric: "error_rate", Condition: "<", Value: 0.01, Scope: "global"},
		},
	}
}

func renderReport(res simulation.SimulationResult, jsonFmt bool) ([]byte, error) {
	if jsonFmt {
		return json.MarshalIndent(res, "", "  ")
	}

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("\n--- Simulation Report: %s ---\n", res.ScenarioName))
	buf.WriteString(fmt.Sprintf("Duration: %s\n", res.Duration))
	buf.WriteString(fmt.Sprintf("Requests: %d | Contributions: %d | Reads: %d | Rejected: %d | Errors: %d\n",
		res.TotalRequests, res.TotalContributions, res.TotalReads, res.TotalRejected, res.TotalErrors))

	if len(res.Invariants) > 0 {
		buf.WriteString("\nInvariants:\n")
		for _, inv := range res.Invariants {
			status := "FAIL"
			if inv.Passed {
				status = "PASS"
			}
			buf.WriteString(fmt.Sprintf("[%s] %s (%s): Expected %s, Got %s\n", status, inv.Metric, inv.Scope, inv.Expected, inv.Actual))
		}
	}
	return buf.Bytes(), nil
}
