package translate

import (
	"strings"

	"querydesk/internal/domain"
)

// ExtractSQL isolates a single SQL statement from raw model output. It
// strips markdown fences, a leading "SQL Query:" echo, line comments, and
// the trailing semicolon. It fails with no_sql_found when nothing usable
// remains and multiple_statements when more than one statement is present.
func ExtractSQL(raw string) (string, error) {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```sql")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "SQL Query:")
	s = stripLineComments(s)
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSpace(s)

	if s == "" {
		return "", domain.ErrTranslation(domain.ReasonNoSQLFound, "model output contained no SQL statement")
	}
	if hasBareSemicolon(s) {
		return "", domain.ErrTranslation(domain.ReasonMultipleStatements, "model output contained more than one statement")
	}
	return s, nil
}

// stripLineComments drops lines that are pure SQL comments. Inline trailing
// comments are left alone; the parser downstream handles those.
func stripLineComments(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// hasBareSemicolon reports whether s contains a semicolon outside of single
// or double quoted runs, which signals a second statement.
func hasBareSemicolon(s string) bool {
	var inSingle, inDouble bool
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case ';':
			if !inSingle && !inDouble {
				return true
			}
		}
	}
	return false
}
