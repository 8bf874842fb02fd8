package github

import "strings"

// teamChunkSize は1クエリにまとめるチーム数の上限。
const teamChunkSize = 5

const (
	queryReviewRequested = "type:pr state:open review-requested:@me"
	queryAuthored        = "type:pr state:open author:@me"
	queryOpenPRPrefix    = "type:pr state:open "
)

// chunkTeams はチームIDをsize件ずつのチャンクに分割する。
func chunkTeams(teams []string, size int) [][]string {
	if size <= 0 {
		size = teamChunkSize
	}
	var chunks [][]string
	for start := 0; start < len(teams); start += size {
		end := start + size
		if end > len(teams) {
			end = len(teams)
		}
		chunks = append(chunks, teams[start:end])
	}
	return chunks
}

// teamReviewQuery はチャンク内のチームへのレビュー依頼を検索するクエリを組み立てる。
// 2チーム以上の場合は括弧で囲んだOR条件にする。
func teamReviewQuery(chunk []string) string {
	clauses := make([]string, len(chunk))
	for i, team := range chunk {
		clauses[i] = "team-review-requested:" + team
	}
	if len(clauses) == 1 {
		return queryOpenPRPrefix + clauses[0]
	}
	return queryOpenPRPrefix + "(" + strings.Join(clauses, " OR ") + ")"
}
