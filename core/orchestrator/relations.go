package orchestrator

import (
	"fmt"
	"strings"

	"github.com/PhD-Shin/PKM/model"
)

// Relation is the semantic meaning of a relation between two entity types.
type Relation struct {
	EdgeType    model.EdgeType `json:"edge_type"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
}

const defaultEntityType = "Topic"

// pkmRelations maps (from type, to type) to the relation it most likely expresses.
var pkmRelations = map[[2]string]Relation{
	{"Goal", "Project"}: {"ACHIEVED_BY", "achieved by", "This goal is achieved through this project"},
	{"Goal", "Task"}:    {"REQUIRES", "required task", "Work needed to reach the goal"},
	{"Goal", "Goal"}:    {"CONTRIBUTES_TO", "contributes", "A sub goal contributes to a parent goal"},
	{"Goal", "Topic"}:   {"FOCUSES_ON", "focus area", "Topic the goal focuses on"},
	{"Goal", "Concept"}: {"APPLIES", "applied concept", "Concept applied to the goal"},

	{"Project", "Task"}:     {"REQUIRES", "required work", "Task needed to complete the project"},
	{"Project", "Goal"}:     {"CONTRIBUTES_TO", "goal contribution", "Goal the project contributes to"},
	{"Project", "Project"}:  {"DEPENDS_ON", "depends on", "Dependency between projects"},
	{"Project", "Topic"}:    {"INVOLVES", "related topic", "Topic involved in the project"},
	{"Project", "Concept"}:  {"USES", "uses concept", "Concept used by the project"},
	{"Project", "Resource"}: {"REFERENCES", "reference", "Reference material of the project"},
	{"Project", "Question"}: {"EXPLORES", "explored question", "Question explored in the project"},
	{"Project", "Insight"}:  {"PRODUCES", "produced insight", "Insight produced by the project"},

	{"Task", "Task"}:     {"BLOCKS", "blocking task", "This task has to be done first"},
	{"Task", "Project"}:  {"PART_OF", "part of project", "Project the task belongs to"},
	{"Task", "Topic"}:    {"INVOLVES", "related topic", "Topic involved in the task"},
	{"Task", "Concept"}:  {"USES", "uses concept", "Concept used by the task"},
	{"Task", "Resource"}: {"REFERENCES", "reference", "Reference material of the task"},
	{"Task", "Insight"}:  {"PRODUCES", "produced insight", "Insight gained from the task"},

	{"Topic", "Topic"}:    {"RELATED_TO", "related topic", "Related subject areas"},
	{"Topic", "Concept"}:  {"CONTAINS", "contains concept", "Concept contained in the topic"},
	{"Topic", "Project"}:  {"APPLIED_IN", "applied in project", "Project the topic is applied in"},
	{"Topic", "Resource"}: {"DOCUMENTED_IN", "documented in", "Material documenting the topic"},
	{"Topic", "Question"}: {"RAISES", "raised question", "Question raised by the topic"},
	{"Topic", "Insight"}:  {"REVEALS", "revealed insight", "Insight revealed by the topic"},

	{"Concept", "Concept"}:  {"RELATES_TO", "related concept", "Related concepts"},
	{"Concept", "Topic"}:    {"BELONGS_TO", "belongs to topic", "Topic the concept belongs to"},
	{"Concept", "Project"}:  {"APPLIED_IN", "applied in", "Project the concept is applied in"},
	{"Concept", "Task"}:     {"USED_IN", "used in", "Task the concept is used in"},
	{"Concept", "Resource"}: {"DEFINED_IN", "defined in", "Material defining the concept"},

	{"Question", "Insight"}:  {"ANSWERED_BY", "answer", "Insight answering the question"},
	{"Question", "Topic"}:    {"ABOUT", "related topic", "Topic of the question"},
	{"Question", "Question"}: {"LEADS_TO", "follow-up question", "Question this question leads to"},
	{"Question", "Project"}:  {"EXPLORED_IN", "explored in", "Project exploring the question"},
	{"Question", "Resource"}: {"ADDRESSED_IN", "addressed in", "Material addressing the question"},

	{"Insight", "Resource"}: {"DERIVED_FROM", "source", "Material the insight is derived from"},
	{"Insight", "Insight"}:  {"SUPPORTS", "supports", "Insights supporting each other"},
	{"Insight", "Question"}: {"ANSWERS", "answers", "Question the insight answers"},
	{"Insight", "Project"}:  {"INFORMS", "informs", "Project the insight is applied to"},
	{"Insight", "Topic"}:    {"ABOUT", "related topic", "Topic of the insight"},
	{"Insight", "Concept"}:  {"CLARIFIES", "clarifies", "Concept the insight clarifies"},

	{"Resource", "Topic"}:    {"COVERS", "covered topic", "Topic the material covers"},
	{"Resource", "Concept"}:  {"DEFINES", "defined concept", "Concept the material defines"},
	{"Resource", "Resource"}: {"CITES", "cites", "Citation between materials"},
	{"Resource", "Question"}: {"ADDRESSES", "addressed question", "Question the material addresses"},
	{"Resource", "Insight"}:  {"PROVIDES", "provided insight", "Insight the material provides"},
	{"Resource", "Project"}:  {"INFORMS", "informs", "Material informing the project"},

	{"Person", "Project"}: {"WORKS_ON", "works on", "Project the person works on"},
	{"Person", "Task"}:    {"ASSIGNED_TO", "assigned", "Task assigned to the person"},
	{"Person", "Topic"}:   {"INTERESTED_IN", "interested in", "Topic the person is interested in"},
	{"Person", "Person"}:  {"COLLABORATES_WITH", "collaborates", "Collaboration between people"},
}

// RelationTable infers the semantic relation between two entity types.
// Type names are matched case insensitively.
type RelationTable struct {
	rules map[[2]string]Relation
}

// NewRelationTable returns the built-in table with rules added or replaced by overrides.
func NewRelationTable(overrides []model.RelationRule) *RelationTable {
	t := &RelationTable{rules: make(map[[2]string]Relation, len(pkmRelations)+len(overrides))}
	for k, r := range pkmRelations {
		t.rules[relationKey(k[0], k[1])] = r
	}
	for _, o := range overrides {
		t.rules[relationKey(o.From, o.To)] = Relation{
			EdgeType:    o.EdgeType,
			Label:       o.Label,
			Description: o.Description,
		}
	}
	return t
}

func relationKey(from, to string) [2]string {
	return [2]string{strings.ToLower(entityType(from)), strings.ToLower(entityType(to))}
}

func entityType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return defaultEntityType
	}
	return t
}

// Infer returns the relation for the type pair. Unknown pairs are a generic RELATES_TO.
// An empty type counts as Topic.
func (t *RelationTable) Infer(fromType, toType string) Relation {
	if r, ok := t.rules[relationKey(fromType, toType)]; ok {
		if r.Label == "" {
			r.Label = string(r.EdgeType)
		}
		return r
	}
	return Relation{
		EdgeType:    model.EdgeTypeRelatesTo,
		Label:       "related",
		Description: fmt.Sprintf("%s relates to %s", entityType(fromType), entityType(toType)),
	}
}
