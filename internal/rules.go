package internal

import (
	"fmt"
	"log"

	"github.com/Knetic/govaluate"
	"gopkg.in/yaml.v3"

	"gitfeed/pkg/events"
)

// Rule routes matching events to notification topics.
type Rule struct {
	When    string   `yaml:"when"`
	Emit    EmitList `yaml:"emit"`
	Drivers []string `yaml:"drivers"`
}

// EmitList accepts either a single topic or a list of topics in YAML.
type EmitList []string

func (e *EmitList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*e = EmitList{node.Value}
		return nil
	case yaml.SequenceNode:
		var topics []string
		if err := node.Decode(&topics); err != nil {
			return err
		}
		*e = EmitList(topics)
		return nil
	default:
		return fmt.Errorf("emit must be a string or a list of strings")
	}
}

// RuleMatch is a topic to publish to, optionally restricted to some drivers.
type RuleMatch struct {
	Topic   string
	Drivers []string
}

type compiledRule struct {
	when    string
	emit    []string
	drivers []string
	expr    *govaluate.EvaluableExpression
}

// RuleEngine evaluates rules against stored events.
type RuleEngine struct {
	rules        []compiledRule
	defaultTopic string
	logger       *log.Logger
}

// NewRuleEngine compiles rules. With no rules every event goes to defaultTopic.
func NewRuleEngine(rules []Rule, defaultTopic string, logger *log.Logger) (*RuleEngine, error) {
	if logger == nil {
		logger = log.Default()
	}
	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		expr, err := govaluate.NewEvaluableExpression(rule.When)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		compiled = append(compiled, compiledRule{
			when:    rule.When,
			emit:    rule.Emit,
			drivers: rule.Drivers,
			expr:    expr,
		})
	}
	return &RuleEngine{rules: compiled, defaultTopic: defaultTopic, logger: logger}, nil
}

// Evaluate returns the topics the event should be published to.
func (r *RuleEngine) Evaluate(event events.Event, eventName string, rawPayload []byte) []RuleMatch {
	if len(r.rules) == 0 {
		if r.defaultTopic == "" {
			return nil
		}
		return []RuleMatch{{Topic: r.defaultTopic}}
	}

	params := ruleParameters(event, eventName, rawPayload)
	matches := make([]RuleMatch, 0, 1)
	for _, rule := range r.rules {
		result, err := rule.expr.Evaluate(params)
		if err != nil {
			r.logger.Printf("rule %q eval failed: %v", rule.when, err)
			continue
		}
		ok, _ := result.(bool)
		if !ok {
			continue
		}
		for _, topic := range rule.emit {
			matches = append(matches, RuleMatch{Topic: topic, Drivers: rule.drivers})
		}
	}
	return matches
}

// ruleParameters exposes the record fields, the event name, and the raw
// payload flattened under "payload.".
func ruleParameters(event events.Event, eventName string, rawPayload []byte) map[string]interface{} {
	params := event.Fields()
	params["event"] = eventName
	for key, value := range FlattenJSON(rawPayload) {
		params["payload."+key] = value
	}
	return params
}
