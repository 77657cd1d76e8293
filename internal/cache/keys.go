// Package cache derives the content-addressed keys under which reports and
// export files are stored.
package cache

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ReportKey is the blob path for a cached report. An empty language keys
// the primary-language report as "data".
func ReportKey(projectID, interviewID, language string) string {
	if language == "" {
		language = "data"
	}
	return fmt.Sprintf("reports/%s/%s/%s.json", projectID, interviewID, language)
}

// ReportPrefix addresses every cached report language for an interview,
// for invalidation.
func ReportPrefix(projectID, interviewID string) string {
	return fmt.Sprintf("reports/%s/%s/", projectID, interviewID)
}

// ExportKey hashes a field selection into a stable export filename:
// md5 of the canonical (sorted) JSON field list, then language and the
// requested filename. Sorting makes the key insensitive to how callers
// enumerate fields; the same members always hash alike.
func ExportKey(fields []string, language, filename string) string {
	canonical := append([]string(nil), fields...)
	sort.Strings(canonical)
	js, _ := json.Marshal(canonical)
	return fmt.Sprintf("%x-%s-%s", md5.Sum(js), language, filename)
}

// ExportPath locates an export blob under its project and the joined
// interview id list.
func ExportPath(projectID string, interviewIDs []string, key string) string {
	return fmt.Sprintf("exports/%s/%s/%s", projectID, strings.Join(interviewIDs, "-"), key)
}

// ExportProjectPrefix addresses all of a project's export files.
func ExportProjectPrefix(projectID string) string {
	return fmt.Sprintf("exports/%s/", projectID)
}
