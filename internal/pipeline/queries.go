package pipeline

import (
	"time"

	"github.com/klytics/licensekit/internal/source"
	"github.com/klytics/licensekit/internal/taxonomy"
	"github.com/klytics/licensekit/internal/usage"
)

// Datasets names the source tables.
type Datasets struct {
	Users   string
	Actions string
	HR      string
}

// Queries builds the fetches of a run from the taxonomy.
type Queries struct {
	Datasets      Datasets
	ContentColumn string
	// HRUpdatedColumn is the directory's last-modified column. Default last_updated.
	HRUpdatedColumn string
	Tax             *taxonomy.Taxonomy
	Cutoff          time.Time
}

func (q Queries) excludedUsers(filters []source.Filter) []source.Filter {
	if users := q.Tax.ExcludedUsers(); len(users) > 0 {
		filters = append(filters, source.NotIn(usage.ColUserName, users...))
	}
	return filters
}

// Users selects platform users who logged in since the cutoff.
func (q Queries) Users() source.Query {
	return source.Query{
		Dataset: q.Datasets.Users,
		Columns: []string{usage.ColUserID, usage.ColUserName, usage.ColLastLogin, usage.ColEmail},
		Filters: q.excludedUsers([]source.Filter{
			source.Gte(usage.ColLastLogin, q.Cutoff),
		}),
	}
}

// Actions selects the action log minus noise categories and actions.
func (q Queries) Actions() source.Query {
	filters := []source.Filter{source.Gte(usage.ColLoggedTime, q.Cutoff)}
	if cats := q.Tax.ExcludeCategories(); len(cats) > 0 {
		filters = append(filters, source.NotIn(usage.ColCategory, cats...))
	}
	if acts := q.Tax.ExcludeActions(); len(acts) > 0 {
		filters = append(filters, source.NotIn(usage.ColAction, acts...))
	}
	return source.Query{
		Dataset: q.Datasets.Actions,
		Columns: []string{usage.ColUserName, usage.ColCategory, usage.ColAction, usage.ColLoggedTime, usage.ColSuccess},
		Filters: q.excludedUsers(filters),
	}
}

// Content selects library content loads. Library categories are noise for
// the main action query, so this is a separate fetch. ok is false when the
// taxonomy defines no content loads.
func (q Queries) Content() (query source.Query, ok bool) {
	actions := q.Tax.ContentActions()
	if q.Tax.ContentPrefix == "" || len(actions) == 0 {
		return source.Query{}, false
	}
	return source.Query{
		Dataset: q.Datasets.Actions,
		Columns: []string{usage.ColUserName, usage.ColCategory, usage.ColAction, usage.ColLoggedTime, usage.ColSuccess, q.ContentColumn},
		Filters: q.excludedUsers([]source.Filter{
			source.Prefix(usage.ColCategory, q.Tax.ContentPrefix),
			source.In(usage.ColAction, actions...),
			source.Gte(usage.ColLoggedTime, q.Cutoff),
		}),
	}, true
}

// Logins selects login actions on the web player and desktop channels.
func (q Queries) Logins() source.Query {
	return source.Query{
		Dataset: q.Datasets.Actions,
		Columns: []string{usage.ColUserName, usage.ColCategory, usage.ColMachine, usage.ColLoggedTime, usage.ColSuccess},
		Filters: q.excludedUsers([]source.Filter{
			source.In(usage.ColCategory, q.Tax.WebPlayerCategory, q.Tax.DesktopCategory),
			source.Eq(usage.ColAction, q.Tax.LoginAction),
			source.Gte(usage.ColLoggedTime, q.Cutoff),
		}),
	}
}

// HR selects the directory.
func (q Queries) HR() source.Query {
	cols := []string{
		usage.ColSMTP, usage.ColNTID, usage.ColCostCenter, usage.ColDept, usage.ColTitle,
		usage.HRUpdatedColumn(q.HRUpdatedColumn),
	}
	return source.Query{Dataset: q.Datasets.HR, Columns: cols}
}
