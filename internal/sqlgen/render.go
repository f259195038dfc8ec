package sqlgen

import (
	"strings"

	"github.com/finquery/finquery/internal/templates"
)

// Render substitutes every {name} placeholder in the template skeleton with
// its resolved literal. The resolver guarantees the parameter set is complete
// before rendering, and every rendered statement still passes through the
// static validator before release.
func Render(tpl *templates.Template, params map[string]string) string {
	sql := tpl.SQLSkeleton
	for name, value := range params {
		sql = strings.ReplaceAll(sql, "{"+name+"}", value)
	}
	return sql
}
