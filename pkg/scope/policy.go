// Package scope reduces a diff to the items that get written, according to a
// sync policy.
package scope

// Policy controls what a sync writes. The zero value is the default policy:
// real writes, enabled items only, full set for category-wide saves.
type Policy struct {
	DryRun          bool `json:"dry_run" yaml:"dry_run" mapstructure:"dry_run"`
	IncludeDisabled bool `json:"include_disabled" yaml:"include_disabled" mapstructure:"include_disabled"`
	ChangedOnly     bool `json:"changed_only" yaml:"changed_only" mapstructure:"changed_only"`
}

// Option overrides one field of a Policy.
type Option func(*Policy)

func DryRun(v bool) Option          { return func(p *Policy) { p.DryRun = v } }
func IncludeDisabled(v bool) Option { return func(p *Policy) { p.IncludeDisabled = v } }
func ChangedOnly(v bool) Option     { return func(p *Policy) { p.ChangedOnly = v } }

// With returns a copy of p with opts applied. p itself is never modified.
func (p Policy) With(opts ...Option) Policy {
	out := p
	for _, opt := range opts {
		opt(&out)
	}
	return out
}
