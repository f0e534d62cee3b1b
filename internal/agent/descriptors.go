// Package agent exposes the triage tool surface consumed by the agent
// runtime: tool descriptors, typed dispatch, and the approval gate for
// state-mutating tools. The runtime driving the conversation loop is an
// external collaborator; this package only defines what it may call.
package agent

// Tool names form a closed set; dispatch rejects anything else
const (
	ToolQueryBugs            = "queryBugs"
	ToolAnalyzeTrends        = "analyzeTrends"
	ToolGetBugDetails        = "getBugDetails"
	ToolGenerateMergePreview = "generateMergePreview"
	ToolMergeBugs            = "mergeBugs"
	ToolUpdateBugs           = "updateBugs"
)

// Property describes one input field of a tool
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *int     `json:"minimum,omitempty"`
	Maximum     *int     `json:"maximum,omitempty"`
	MinItems    *int     `json:"minItems,omitempty"`
	MaxItems    *int     `json:"maxItems,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// Descriptor describes one tool to the agent runtime
type Descriptor struct {
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	NeedsApproval bool                `json:"needs_approval"`
	Required      []string            `json:"required,omitempty"`
	Properties    map[string]Property `json:"properties"`
}

func intPtr(i int) *int {
	return &i
}

var severityEnum = []string{"S0", "S1", "S2", "S3"}
var areaEnum = []string{"FRONTEND", "BACKEND", "INFRA", "DATA"}
var statusEnum = []string{"OPEN", "IN_PROGRESS", "RESOLVED", "CLOSED"}

// Descriptors returns the full tool surface in a stable order
func Descriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        ToolQueryBugs,
			Description: "Search and filter bugs by natural language query (semantic search) or by severity, area, or status. Can combine semantic search with filters.",
			Properties: map[string]Property{
				"query":    {Type: "string", Description: "Natural language search query for semantic search"},
				"severity": {Type: "string", Description: "Filter by severity level", Enum: severityEnum},
				"area":     {Type: "string", Description: "Filter by area/category", Enum: areaEnum},
				"status":   {Type: "string", Description: "Filter by status", Enum: statusEnum},
				"limit":    {Type: "integer", Description: "Maximum number of bugs to return", Minimum: intPtr(1), Maximum: intPtr(50)},
			},
		},
		{
			Name:        ToolAnalyzeTrends,
			Description: "Analyze bug trends and patterns across the database. Returns statistics about severity distribution, common areas, and problem patterns.",
			Properties: map[string]Property{
				"timeframe":  {Type: "string", Description: "Time period to analyze", Enum: []string{"last_day", "last_week", "last_month", "all_time"}},
				"focus_area": {Type: "string", Description: "Focus analysis on specific area", Enum: areaEnum},
			},
		},
		{
			Name:        ToolGetBugDetails,
			Description: "Get detailed information about specific bugs including comments and similar bugs",
			Required:    []string{"bug_ids"},
			Properties: map[string]Property{
				"bug_ids":          {Type: "array", Description: "Array of bug IDs to fetch details for", MinItems: intPtr(1), MaxItems: intPtr(10), Items: &Property{Type: "string"}},
				"include_comments": {Type: "boolean", Description: "Include comment thread"},
				"include_similar":  {Type: "boolean", Description: "Include similar bugs"},
			},
		},
		{
			Name:        ToolGenerateMergePreview,
			Description: "Generate a preview of what a merged bug would look like by combining multiple bug reports. Call this before mergeBugs to show the user what the result will be. Returns merged title, description, and total comment count. Can merge 1-10 duplicate bugs into the primary bug. The duplicates will be DELETED after merging.",
			Required:    []string{"primary_bug_id", "duplicate_bug_ids"},
			Properties: map[string]Property{
				"primary_bug_id":    {Type: "string", Description: "The ID of the bug to keep (primary bug)"},
				"duplicate_bug_ids": {Type: "array", Description: "Array of bug IDs to mark as duplicates (1-10 bugs)", MinItems: intPtr(1), MaxItems: intPtr(10), Items: &Property{Type: "string"}},
			},
		},
		{
			Name:          ToolMergeBugs,
			Description:   "Merge multiple duplicate bugs into a primary bug. The primary bug will be updated with merged title and description, all comments will be transferred, and all duplicates will be DELETED. Call generateMergePreview first and pass its merged content to this tool unchanged. This action requires user approval.",
			NeedsApproval: true,
			Required:      []string{"primary_bug_id", "duplicate_bug_ids", "merged_title", "merged_description"},
			Properties: map[string]Property{
				"primary_bug_id":     {Type: "string", Description: "The ID of the bug to keep (primary bug)"},
				"duplicate_bug_ids":  {Type: "array", Description: "Array of bug IDs to mark as duplicates", MinItems: intPtr(1), MaxItems: intPtr(10), Items: &Property{Type: "string"}},
				"merged_title":       {Type: "string", Description: "The merged title from generateMergePreview"},
				"merged_description": {Type: "string", Description: "The merged description from generateMergePreview"},
				"reason":             {Type: "string", Description: "Brief explanation of why these bugs are duplicates"},
			},
		},
		{
			Name:          ToolUpdateBugs,
			Description:   "Update severity, area, or status for one or more bugs. Useful for batch updates or fixing incorrect classifications. This action requires user approval.",
			NeedsApproval: true,
			Required:      []string{"bug_ids", "updates"},
			Properties: map[string]Property{
				"bug_ids": {Type: "array", Description: "Array of bug IDs to update", MinItems: intPtr(1), MaxItems: intPtr(20), Items: &Property{Type: "string"}},
				"updates": {Type: "object", Description: "At least one of severity, area, status"},
			},
		},
	}
}

// NeedsApproval reports whether a tool is gated behind human approval
func NeedsApproval(name string) bool {
	for _, d := range Descriptors() {
		if d.Name == name {
			return d.NeedsApproval
		}
	}
	return false
}
