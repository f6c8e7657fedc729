package nl2sql

import (
	"fmt"
	"strings"

	"github.com/querypilot/querypilot/internal/conn"
	"github.com/querypilot/querypilot/internal/schema"
)

func ComposeTranslatePrompt(snapshot schema.Snapshot, dialect conn.Dialect, request string) string {
	var b strings.Builder
	writePreamble(&b, snapshot)
	fmt.Fprintf(&b,
		"Using only the table metadata above, convert the following request into a single %s SQL statement. "+
			"Use the exact table and column names as they appear in the metadata. "+
			"Return only the SQL statement, with no explanatory text.\n\n",
		dialect.DisplayName(),
	)
	b.WriteString(strings.TrimSpace(request))
	return b.String()
}

func ComposeExplainPrompt(snapshot schema.Snapshot, statement string) string {
	var b strings.Builder
	writePreamble(&b, snapshot)
	b.WriteString("Using the table metadata above, describe what the following SQL statement does in a short, plain-language explanation.\n\n")
	b.WriteString(strings.TrimSpace(statement))
	return b.String()
}

func writePreamble(b *strings.Builder, snapshot schema.Snapshot) {
	for _, table := range snapshot.Tables {
		fmt.Fprintf(b, "Table %s structure:\n%s\n\n", table.Name, table.Definition)
	}
}
