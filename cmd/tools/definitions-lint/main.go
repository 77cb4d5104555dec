// cmd/tools/definitions-lint/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"lead-automation/internal/models"
	"lead-automation/pkg/registry"
)

var definitionsPath string

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	addRuleCmd := flag.NewFlagSet("add-rule", flag.ExitOnError)
	toggleCmd := flag.NewFlagSet("toggle", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{validateCmd, addRuleCmd, toggleCmd} {
		fs.StringVar(&definitionsPath, "path", "configs/definitions.json", "Path to definitions file")
	}

	ruleID := addRuleCmd.String("id", "", "Rule ID (e.g., pricing-page-view)")
	ruleName := addRuleCmd.String("name", "", "Display name")
	field := addRuleCmd.String("field", "", "Dotted field path (e.g., content.url)")
	operator := addRuleCmd.String("operator", "equals", "Condition operator")
	value := addRuleCmd.String("value", "", "Condition value; numbers are stored as numbers")
	points := addRuleCmd.Int("points", 0, "Points awarded")
	frequency := addRuleCmd.String("frequency", "once", "once or multiple")
	category := addRuleCmd.String("category", "behavioral", "demographic, firmographic, behavioral or engagement")

	kind := toggleCmd.String("kind", "rule", "rule or workflow")
	toggleID := toggleCmd.String("id", "", "ID of the rule or workflow")
	active := toggleCmd.Bool("active", true, "New active flag")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validate(); err != nil {
			fmt.Printf("Definitions validation failed: %v\n", err)
			os.Exit(1)
		}

	case "add-rule":
		addRuleCmd.Parse(os.Args[2:])
		if *ruleID == "" || *field == "" || *points == 0 {
			fmt.Println("Error: id, field and a non-zero points value are required for add-rule.")
			addRuleCmd.Usage()
			os.Exit(1)
		}
		rule := models.ScoringRule{
			ID:   *ruleID,
			Name: *ruleName,
			Condition: models.Condition{
				Field:    *field,
				Operator: models.Operator(*operator),
				Value:    parseValue(*value),
			},
			Points:    *points,
			Frequency: models.RuleFrequency(*frequency),
			Category:  models.RuleCategory(*category),
			Active:    true,
		}
		if err := addRule(rule); err != nil {
			fmt.Printf("Error adding rule: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added scoring rule: %s\n", *ruleID)

	case "toggle":
		toggleCmd.Parse(os.Args[2:])
		if *toggleID == "" {
			fmt.Println("Error: id is required for toggle.")
			toggleCmd.Usage()
			os.Exit(1)
		}
		if err := toggle(*kind, *toggleID, *active); err != nil {
			fmt.Printf("Error updating %s: %v\n", *kind, err)
			os.Exit(1)
		}
		fmt.Printf("Set %s %s active=%t\n", *kind, *toggleID, *active)

	case "help":
		fallthrough
	default:
		help()
	}
}

func validate() error {
	defs, err := registry.LoadDefinitions(definitionsPath)
	if err != nil {
		return err
	}
	_, warnings := defs.Check()
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
	fmt.Printf("Definitions validation passed. %d rules, %d workflows, %d tests, %d segments.\n",
		len(defs.ScoringRules), len(defs.Workflows), len(defs.ABTests), len(defs.Segments))
	return nil
}

func addRule(rule models.ScoringRule) error {
	defs, err := registry.LoadDefinitions(definitionsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load definitions: %w", err)
		}
		defs = &registry.Definitions{Version: "1.0.0"}
	}
	for _, existing := range defs.ScoringRules {
		if existing.ID == rule.ID {
			return fmt.Errorf("rule with ID %s already exists", rule.ID)
		}
	}
	defs.ScoringRules = append(defs.ScoringRules, rule)
	return save(defs)
}

func toggle(kind, id string, active bool) error {
	defs, err := registry.LoadDefinitions(definitionsPath)
	if err != nil {
		return fmt.Errorf("failed to load definitions: %w", err)
	}

	found := false
	switch kind {
	case "rule":
		for i := range defs.ScoringRules {
			if defs.ScoringRules[i].ID == id {
				defs.ScoringRules[i].Active = active
				found = true
			}
		}
	case "workflow":
		for _, wf := range defs.Workflows {
			if wf.ID == id {
				wf.Active = active
				found = true
			}
		}
	default:
		return fmt.Errorf("unknown kind: %s", kind)
	}
	if !found {
		return fmt.Errorf("%s with ID %s not found", kind, id)
	}
	return save(defs)
}

// save re-validates before writing so the tool never produces a file the
// engine would refuse to load.
func save(defs *registry.Definitions) error {
	defs.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	if problems, _ := defs.Check(); len(problems) > 0 {
		return fmt.Errorf("definitions invalid after edit: %v", problems)
	}
	return registry.SaveDefinitions(defs, definitionsPath)
}

func parseValue(raw string) interface{} {
	if raw == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func help() {
	fmt.Print(`
Usage: definitions-lint <command> [flags]

Commands:
  validate  Validate the definitions file
  add-rule  Add a scoring rule
  toggle    Activate or deactivate a rule or workflow
  help      Show this help message

Examples:
  definitions-lint validate -path configs/definitions.json
  definitions-lint add-rule -id pricing-page-view -field content.url -operator contains -value /pricing -points 5 -frequency multiple
  definitions-lint toggle -kind workflow -id sales-handoff -active=false

Use 'definitions-lint <command> -h' for more information about a command.
` + "\n")
}
