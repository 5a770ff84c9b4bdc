package jira

import (
	"github.com/tidwall/gjson"

	"github.com/randalmurphal/bugfiler/internal/bugtracker"
)

// parseCreateMeta reads the createmeta response expanded with
// projects.issuetypes.fields.
func parseCreateMeta(doc gjson.Result) []bugtracker.MetaProject {
	var projects []bugtracker.MetaProject

	doc.Get("projects").ForEach(func(_, p gjson.Result) bool {
		project := bugtracker.MetaProject{Key: p.Get("key").String()}

		p.Get("issuetypes").ForEach(func(_, it gjson.Result) bool {
			issueType := bugtracker.MetaIssueType{
				ID:     it.Get("id").String(),
				Name:   it.Get("name").String(),
				Fields: make(map[string]bugtracker.FieldInfo),
			}
			it.Get("fields").ForEach(func(key, f gjson.Result) bool {
				issueType.Fields[key.String()] = parseField(key.String(), f)
				return true
			})
			project.IssueTypes = append(project.IssueTypes, issueType)
			return true
		})

		projects = append(projects, project)
		return true
	})

	return projects
}

func parseField(key string, f gjson.Result) bugtracker.FieldInfo {
	field := bugtracker.FieldInfo{
		Key:        key,
		Name:       f.Get("name").String(),
		Required:   f.Get("required").Bool(),
		HasDefault: f.Get("hasDefaultValue").Bool(),
		Schema:     f.Get("schema.type").String(),
	}
	for _, v := range f.Get("allowedValues").Array() {
		name := v.Get("name").String()
		if name == "" {
			name = v.Get("value").String()
		}
		if name != "" {
			field.AllowedValues = append(field.AllowedValues, name)
		}
	}
	return field
}
