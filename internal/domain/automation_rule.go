package domain

import "time"

// AutomationTrigger identifies the event class a rule reacts to.
type AutomationTrigger string

const (
	TriggerOnCreated      AutomationTrigger = "on_created"
	TriggerOnStatusChange AutomationTrigger = "on_status_change"
	TriggerOnSLABreach    AutomationTrigger = "on_sla_breach"
	TriggerOnIdleTimeout  AutomationTrigger = "on_idle_timeout"
)

// Condition fields understood by rule evaluation.
const (
	ConditionFieldStatus     = "status"
	ConditionFieldPriority   = "priority"
	ConditionFieldCategory   = "category"
	ConditionFieldAssignee   = "assignee"
	ConditionFieldAgeInState = "age_in_state_minutes"
)

// Condition operators.
const (
	OpEquals      = "eq"
	OpNotEquals   = "neq"
	OpGreaterThan = "gt"
	OpLessThan    = "lt"
)

// RuleCondition is a single field comparison. Conditions within a rule are
// combined with logical AND only; rules needing OR must be split into one rule
// per branch.
type RuleCondition struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

// RuleActionType enumerates the actions a rule may produce.
type RuleActionType string

const (
	ActionAssign      RuleActionType = "assign"
	ActionSetPriority RuleActionType = "set_priority"
	ActionAddTag      RuleActionType = "add_tag"
	ActionNotify      RuleActionType = "notify"
	ActionTransition  RuleActionType = "transition"
)

// RuleAction is a declared action with its parameter (assignee id, priority,
// tag, notification target, or target status depending on type).
type RuleAction struct {
	Type  RuleActionType `json:"type"`
	Value string         `json:"value"`
}

// AutomationRule is trigger + ordered conditions + ordered actions. Rules for
// the same trigger evaluate in ascending Priority order; equal priorities fall
// back to id order.
type AutomationRule struct {
	ID         string
	TenantID   string
	Name       string
	Trigger    AutomationTrigger
	Conditions []RuleCondition
	Actions    []RuleAction
	Enabled    bool
	Priority   int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
