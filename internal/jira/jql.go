package jira

import "strings"

// BuildJQL は自分に割り当てられた課題を検索するJQLを組み立てる。
// projectKeysが空の場合はプロジェクト条件を付けない。
func BuildJQL(statuses, projectKeys []string) string {
	var b strings.Builder
	b.WriteString("assignee = currentUser() AND status in (")
	b.WriteString(quoteList(statuses))
	b.WriteString(")")
	if len(projectKeys) > 0 {
		b.WriteString(" AND project in (")
		b.WriteString(quoteList(projectKeys))
		b.WriteString(")")
	}
	b.WriteString(" ORDER BY priority DESC, updated DESC")
	return b.String()
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, ",")
}
