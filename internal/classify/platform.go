package classify

import (
	"github.com/klytics/licensekit/internal/taxonomy"
	"github.com/klytics/licensekit/internal/usage"
)

// PlatformStats counts logins the platform classifier did not label.
type PlatformStats struct {
	Failed       int `json:"failed"`
	InactiveUser int `json:"inactive_user"`
	OtherChannel int `json:"other_channel"`
}

// PlatformClassifier labels login events by originating client surface.
type PlatformClassifier struct {
	tax *taxonomy.Taxonomy
}

// NewPlatformClassifier returns a platform classifier for tax.
func NewPlatformClassifier(tax *taxonomy.Taxonomy) *PlatformClassifier {
	return &PlatformClassifier{tax: tax}
}

// Platform labels a single login. ok is false when the login did not come
// through the web player or desktop channel.
func (p *PlatformClassifier) Platform(sourceCategory, machineAddress string) (usage.Platform, bool) {
	switch sourceCategory {
	case p.tax.WebPlayerCategory:
		return usage.PlatformWebPlayer, true
	case p.tax.DesktopCategory:
		switch {
		case p.tax.IsCloudIP(machineAddress):
			return usage.PlatformCloud, true
		case p.tax.IsLocalIP(machineAddress):
			return usage.PlatformLocalDesktop, true
		default:
			return usage.PlatformOther, true
		}
	default:
		return "", false
	}
}

// Classify keeps successful logins by users in active and sets Platform.
func (p *PlatformClassifier) Classify(events []usage.LoginEvent, active map[string]struct{}) ([]usage.LoginEvent, PlatformStats) {
	var (
		st  PlatformStats
		out []usage.LoginEvent
	)
	for _, e := range events {
		if !e.Success {
			st.Failed++
			continue
		}
		if _, ok := active[e.UserName]; !ok {
			st.InactiveUser++
			continue
		}
		platform, ok := p.Platform(e.SourceCategory, e.MachineAddress)
		if !ok {
			st.OtherChannel++
			continue
		}
		e.Platform = platform
		out = append(out, e)
	}
	return out, st
}
