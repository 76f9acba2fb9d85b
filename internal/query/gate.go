package query

import "strings"

// forbiddenKeywords is matched as plain substrings of the upper-cased
// statement, so identifiers and string literals containing them are rejected
// too.
var forbiddenKeywords = []string{"DELETE", "DROP", "UPDATE", "INSERT"}

func CheckStatement(sqlText string) error {
	upper := strings.ToUpper(sqlText)
	for _, keyword := range forbiddenKeywords {
		if strings.Contains(upper, keyword) {
			return &RejectedStatementError{Statement: sqlText, Keyword: keyword}
		}
	}
	return nil
}
