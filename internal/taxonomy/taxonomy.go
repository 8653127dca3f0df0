// Package taxonomy holds the static rules that decide which logged actions
// require an analyst license, which rows are noise, and how logins map to platforms.
//
// A Taxonomy is built once per run and never mutated afterwards; every
// component receives it explicitly instead of reading package-level sets.
package taxonomy

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a taxonomy document fails validation.
var ErrInvalid = errors.New("invalid taxonomy")

// TitleBucket maps job titles containing any of Keywords to Name.
type TitleBucket struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Document is the on-disk YAML form of a taxonomy.
type Document struct {
	AnalystCategories []string            `yaml:"analyst_categories" json:"analyst_categories"`
	ExcludeCategories []string            `yaml:"exclude_categories" json:"exclude_categories"`
	ExcludeActions    []string            `yaml:"exclude_actions" json:"exclude_actions"`
	Overrides         map[string][]string `yaml:"overrides" json:"overrides"`
	CloudIPs          []string            `yaml:"cloud_ips" json:"cloud_ips"`
	LocalIPs          []string            `yaml:"local_ips" json:"local_ips"`
	ExcludedUsers     []string            `yaml:"excluded_users" json:"excluded_users"`
	AutomationUser    string              `yaml:"automation_user" json:"automation_user"`
	Threshold         *float64            `yaml:"analyst_threshold" json:"analyst_threshold"`
	LookbackDays      *int                `yaml:"lookback_days" json:"lookback_days"`

	WebPlayerCategory string `yaml:"web_player_category" json:"web_player_category"`
	DesktopCategory   string `yaml:"desktop_category" json:"desktop_category"`
	LoginAction       string `yaml:"login_action" json:"login_action"`

	Content struct {
		CategoryPrefix string   `yaml:"category_prefix" json:"category_prefix"`
		Actions        []string `yaml:"actions" json:"actions"`
	} `yaml:"content" json:"content"`

	TitleBuckets []TitleBucket `yaml:"title_buckets" json:"title_buckets"`
	TitleDefault string        `yaml:"title_default" json:"title_default"`
}

// Taxonomy is the immutable, validated rule set for one run.
type Taxonomy struct {
	// Threshold is the analyst percentage at or above which a user is flagged.
	Threshold float64
	// LookbackDays is the trailing window anchoring every query.
	LookbackDays int
	// AutomationUser is the service account whose actions are never counted.
	AutomationUser string

	WebPlayerCategory string
	DesktopCategory   string
	LoginAction       string
	ContentPrefix     string

	analyst        set
	noiseCategory  set
	noiseAction    set
	overrides      map[string]set
	cloudIPs       set
	localIPs       set
	excludedUsers  set
	contentActions set
	titleBuckets   []TitleBucket
	titleDefault   string
}

type set map[string]struct{}

func newSet(items []string) set {
	s := make(set, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		s[it] = struct{}{}
	}
	return s
}

func (s set) has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Built-in scalar defaults.
const (
	DefaultThreshold    = 50.0
	DefaultLookbackDays = 90
)

// DefaultDocument returns the rule set used when no taxonomy file is supplied.
func DefaultDocument() Document {
	threshold := DefaultThreshold
	lookback := DefaultLookbackDays
	doc := Document{
		AnalystCategories: []string{
			"analysis_pro", "data_connection_pro", "info_link", "datafunction_pro",
			"datasource_pro", "file_pro", "find_pro", "library_pro",
		},
		ExcludeCategories: []string{
			"admin", "analysis_as", "auth", "auth_as", "auth_pro", "auth_wp",
			"automation_job_as", "automation_task_as", "codetrust", "dblogging",
			"ems", "library", "library_as", "monitoring", "monitoring_wp",
			"routing_rules", "scheduled_updates",
		},
		Overrides: map[string][]string{
			"info_link": {"get_data", "load_il"},
		},
		AutomationUser:    `SPOTFIRESYSTEM\automationservices`,
		Threshold:         &threshold,
		LookbackDays:      &lookback,
		WebPlayerCategory: "auth_wp",
		DesktopCategory:   "auth_pro",
		LoginAction:       "login",
		TitleBuckets: []TitleBucket{
			{Name: "Engineer", Keywords: []string{"engineer", "eng", "developer", "devops", "architect", "scientist", "data analyst"}},
			{Name: "Tech", Keywords: []string{"technician", "tech", "operator", "specialist", "associate", "analyst", "maintenance"}},
		},
		TitleDefault: "Other",
	}
	doc.Content.CategoryPrefix = "library"
	doc.Content.Actions = []string{"load", "load_content"}
	return doc
}

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	t, err := New(DefaultDocument())
	if err != nil {
		// the built-in document is validated by tests
		panic(err)
	}
	return t
}

// Load reads a YAML taxonomy from path. Fields missing from the file keep
// their default values.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("taxonomy file not found: %s", path)
		}
		return nil, fmt.Errorf("could not read taxonomy at %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML taxonomy document layered over the defaults.
func Parse(data []byte) (*Taxonomy, error) {
	var file Document
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return New(layer(DefaultDocument(), file))
}

// layer returns base with every field that is set in top replaced wholesale.
// Lists and maps are not merged: a list in the file is the complete list.
func layer(base, top Document) Document {
	if top.AnalystCategories != nil {
		base.AnalystCategories = top.AnalystCategories
	}
	if top.ExcludeCategories != nil {
		base.ExcludeCategories = top.ExcludeCategories
	}
	if top.ExcludeActions != nil {
		base.ExcludeActions = top.ExcludeActions
	}
	if top.Overrides != nil {
		base.Overrides = top.Overrides
	}
	if top.CloudIPs != nil {
		base.CloudIPs = top.CloudIPs
	}
	if top.LocalIPs != nil {
		base.LocalIPs = top.LocalIPs
	}
	if top.ExcludedUsers != nil {
		base.ExcludedUsers = top.ExcludedUsers
	}
	if top.AutomationUser != "" {
		base.AutomationUser = top.AutomationUser
	}
	if top.Threshold != nil {
		base.Threshold = top.Threshold
	}
	if top.LookbackDays != nil {
		base.LookbackDays = top.LookbackDays
	}
	if top.WebPlayerCategory != "" {
		base.WebPlayerCategory = top.WebPlayerCategory
	}
	if top.DesktopCategory != "" {
		base.DesktopCategory = top.DesktopCategory
	}
	if top.LoginAction != "" {
		base.LoginAction = top.LoginAction
	}
	if top.Content.CategoryPrefix != "" {
		base.Content.CategoryPrefix = top.Content.CategoryPrefix
	}
	if top.Content.Actions != nil {
		base.Content.Actions = top.Content.Actions
	}
	if top.TitleBuckets != nil {
		base.TitleBuckets = top.TitleBuckets
	}
	if top.TitleDefault != "" {
		base.TitleDefault = top.TitleDefault
	}
	return base
}

// New validates doc and freezes it into a Taxonomy.
func New(doc Document) (*Taxonomy, error) {
	if issues := Validate(doc); len(issues) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(issues, "; "))
	}

	t := &Taxonomy{
		Threshold:         *doc.Threshold,
		LookbackDays:      *doc.LookbackDays,
		AutomationUser:    strings.TrimSpace(doc.AutomationUser),
		WebPlayerCategory: doc.WebPlayerCategory,
		DesktopCategory:   doc.DesktopCategory,
		LoginAction:       doc.LoginAction,
		ContentPrefix:     doc.Content.CategoryPrefix,
		analyst:           newSet(doc.AnalystCategories),
		noiseCategory:     newSet(doc.ExcludeCategories),
		noiseAction:       newSet(doc.ExcludeActions),
		overrides:         make(map[string]set, len(doc.Overrides)),
		cloudIPs:          newSet(doc.CloudIPs),
		localIPs:          newSet(doc.LocalIPs),
		excludedUsers:     newSet(doc.ExcludedUsers),
		contentActions:    newSet(doc.Content.Actions),
		titleDefault:      doc.TitleDefault,
	}
	for cat, actions := range doc.Overrides {
		t.overrides[cat] = newSet(actions)
	}
	for _, b := range doc.TitleBuckets {
		kw := make([]string, 0, len(b.Keywords))
		for _, k := range b.Keywords {
			kw = append(kw, strings.ToLower(k))
		}
		t.titleBuckets = append(t.titleBuckets, TitleBucket{Name: b.Name, Keywords: kw})
	}
	if t.titleDefault == "" {
		t.titleDefault = "Other"
	}
	return t, nil
}

// Validate returns human-readable problems with doc. An empty result means valid.
func Validate(doc Document) []string {
	var issues []string
	if doc.Threshold == nil {
		issues = append(issues, "analyst_threshold is required")
	} else if *doc.Threshold < 0 || *doc.Threshold > 100 {
		issues = append(issues, fmt.Sprintf("analyst_threshold must be between 0 and 100, got %g", *doc.Threshold))
	}
	if doc.LookbackDays == nil {
		issues = append(issues, "lookback_days is required")
	} else if *doc.LookbackDays <= 0 {
		issues = append(issues, fmt.Sprintf("lookback_days must be positive, got %d", *doc.LookbackDays))
	}
	if len(doc.AnalystCategories) == 0 {
		issues = append(issues, "analyst_categories must not be empty")
	}

	analyst := newSet(doc.AnalystCategories)
	noise := newSet(doc.ExcludeCategories)
	for _, c := range analyst.sorted() {
		if noise.has(c) {
			issues = append(issues, fmt.Sprintf("category %q is both an analyst category and excluded", c))
		}
	}
	cats := make([]string, 0, len(doc.Overrides))
	for c := range doc.Overrides {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		if !analyst.has(c) {
			issues = append(issues, fmt.Sprintf("override category %q is not an analyst category", c))
		}
	}

	cloud := newSet(doc.CloudIPs)
	for _, ip := range newSet(doc.LocalIPs).sorted() {
		if cloud.has(ip) {
			issues = append(issues, fmt.Sprintf("address %s is listed as both cloud and local", ip))
		}
	}
	if doc.WebPlayerCategory == "" || doc.DesktopCategory == "" {
		issues = append(issues, "web_player_category and desktop_category are required")
	}
	if doc.WebPlayerCategory != "" && doc.WebPlayerCategory == doc.DesktopCategory {
		issues = append(issues, "web_player_category and desktop_category must differ")
	}
	return issues
}

// Overrides holds per-run values that replace taxonomy scalars, typically from CLI flags.
type Overrides struct {
	Threshold    *float64
	LookbackDays *int
}

// With returns a copy of t with the given overrides applied. t is unchanged.
func (t *Taxonomy) With(o Overrides) (*Taxonomy, error) {
	c := *t
	if o.Threshold != nil {
		if *o.Threshold < 0 || *o.Threshold > 100 {
			return nil, fmt.Errorf("%w: threshold must be between 0 and 100, got %g", ErrInvalid, *o.Threshold)
		}
		c.Threshold = *o.Threshold
	}
	if o.LookbackDays != nil {
		if *o.LookbackDays <= 0 {
			return nil, fmt.Errorf("%w: lookback must be positive, got %d", ErrInvalid, *o.LookbackDays)
		}
		c.LookbackDays = *o.LookbackDays
	}
	return &c, nil
}

// IsAnalystCategory reports whether category is listed as analyst functionality.
func (t *Taxonomy) IsAnalystCategory(category string) bool { return t.analyst.has(category) }

// IsExempt reports whether action is exempted from the analyst label within category.
func (t *Taxonomy) IsExempt(category, action string) bool {
	ex, ok := t.overrides[category]
	return ok && ex.has(action)
}

// IsNoiseCategory reports whether rows with category are dropped at ingestion.
func (t *Taxonomy) IsNoiseCategory(category string) bool { return t.noiseCategory.has(category) }

// IsNoiseAction reports whether rows with action are dropped at ingestion.
func (t *Taxonomy) IsNoiseAction(action string) bool { return t.noiseAction.has(action) }

// IsExcludedUser reports whether userName is a service or test account.
func (t *Taxonomy) IsExcludedUser(userName string) bool {
	return userName == t.AutomationUser || t.excludedUsers.has(userName)
}

// IsCloudIP reports whether addr belongs to the cloud-hosted desktop pool.
func (t *Taxonomy) IsCloudIP(addr string) bool { return t.cloudIPs.has(addr) }

// IsLocalIP reports whether addr belongs to the local desktop allowlist.
func (t *Taxonomy) IsLocalIP(addr string) bool { return t.localIPs.has(addr) }

// IsContentLoad reports whether a (category, action) pair is a content open.
func (t *Taxonomy) IsContentLoad(category, action string) bool {
	return t.ContentPrefix != "" && strings.HasPrefix(category, t.ContentPrefix) && t.contentActions.has(action)
}

// TitleCategory buckets a raw job title. Buckets are tried in order.
func (t *Taxonomy) TitleCategory(title string) string {
	lt := strings.ToLower(title)
	if strings.TrimSpace(lt) == "" {
		return t.titleDefault
	}
	for _, b := range t.titleBuckets {
		for _, k := range b.Keywords {
			if strings.Contains(lt, k) {
				return b.Name
			}
		}
	}
	return t.titleDefault
}

// AnalystCategories returns the analyst categories in sorted order.
func (t *Taxonomy) AnalystCategories() []string { return t.analyst.sorted() }

// ExcludeCategories returns the noise categories in sorted order.
func (t *Taxonomy) ExcludeCategories() []string { return t.noiseCategory.sorted() }

// ExcludeActions returns the noise actions in sorted order.
func (t *Taxonomy) ExcludeActions() []string { return t.noiseAction.sorted() }

// ExcludedUsers returns the excluded usernames, automation account included, sorted.
func (t *Taxonomy) ExcludedUsers() []string {
	s := make(set, len(t.excludedUsers)+1)
	for u := range t.excludedUsers {
		s[u] = struct{}{}
	}
	if t.AutomationUser != "" {
		s[t.AutomationUser] = struct{}{}
	}
	return s.sorted()
}

// ContentActions returns the content-load actions in sorted order.
func (t *Taxonomy) ContentActions() []string { return t.contentActions.sorted() }

// Document renders t back into its serializable form.
func (t *Taxonomy) Document() Document {
	threshold := t.Threshold
	lookback := t.LookbackDays
	doc := Document{
		AnalystCategories: t.analyst.sorted(),
		ExcludeCategories: t.noiseCategory.sorted(),
		ExcludeActions:    t.noiseAction.sorted(),
		Overrides:         make(map[string][]string, len(t.overrides)),
		CloudIPs:          t.cloudIPs.sorted(),
		LocalIPs:          t.localIPs.sorted(),
		ExcludedUsers:     t.excludedUsers.sorted(),
		AutomationUser:    t.AutomationUser,
		Threshold:         &threshold,
		LookbackDays:      &lookback,
		WebPlayerCategory: t.WebPlayerCategory,
		DesktopCategory:   t.DesktopCategory,
		LoginAction:       t.LoginAction,
		TitleBuckets:      append([]TitleBucket(nil), t.titleBuckets...),
		TitleDefault:      t.titleDefault,
	}
	for c, ex := range t.overrides {
		doc.Overrides[c] = ex.sorted()
	}
	doc.Content.CategoryPrefix = t.ContentPrefix
	doc.Content.Actions = t.contentActions.sorted()
	return doc
}
