package jira

import (
	"github.com/hitoshi/dashhub/internal/model"
	"github.com/hitoshi/dashhub/internal/security"
)

// toTask は検索結果の課題を共通のタスク表現に変換する。
// 欠けているステータス・優先度はUnknown、担当者はUnassignedで補う。
func toTask(issue Issue, domain string, sanitizer *security.TextSanitizer) model.Task {
	f := issue.Fields

	status := model.UnknownValue
	if f.Status != nil && f.Status.Name != "" {
		status = f.Status.Name
	}
	priority := model.UnknownValue
	if f.Priority != nil && f.Priority.Name != "" {
		priority = f.Priority.Name
	}
	assignee := model.UnassignedValue
	if f.Assignee != nil && f.Assignee.DisplayName != "" {
		assignee = f.Assignee.DisplayName
	}

	return model.Task{
		Key:      issue.Key,
		Summary:  sanitizer.Clean(f.Summary),
		Status:   status,
		Priority: priority,
		Assignee: assignee,
		URL:      baseURL(domain) + "/browse/" + issue.Key,
		Domain:   domain,
	}
}
