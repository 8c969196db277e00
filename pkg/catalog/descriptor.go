package catalog

import "fmt"

// Descriptor carries everything the generic diff, filter and client code needs
// to know about one category.
type Descriptor struct {
	Category Category
	Label    string

	// GetMethod and SaveMethod are the admin API methods for the category.
	GetMethod  string
	SaveMethod string
	// ResponseKey holds the item list inside a fetch response entry.
	ResponseKey string
	// PayloadKey holds the item list inside a save request.
	PayloadKey string

	// KeyField names the identity attribute. Empty means the category is a
	// list whose items are keyed by position.
	KeyField string
	// ValueField wraps scalar list entries into a one-field record.
	ValueField string
	// EnabledField names the enabled flag. Empty means always enabled.
	EnabledField string

	// Idempotent is false when the save endpoint replaces the whole category
	// set instead of upserting the items it is given.
	Idempotent bool

	// SuccessValues are the save responses that mean success.
	SuccessValues []string

	// PreviewFields are shown next to each item in dry-run previews.
	PreviewFields []string
}

// Indexed reports whether items are keyed by position.
func (d Descriptor) Indexed() bool {
	return d.KeyField == ""
}

// Scalar reports whether the API represents items as bare scalars.
func (d Descriptor) Scalar() bool {
	return d.ValueField != ""
}

var descriptors = map[Category]Descriptor{
	EVars: {
		Category:      EVars,
		Label:         "eVars",
		GetMethod:     "ReportSuite.GetEvars",
		SaveMethod:    "ReportSuite.SaveEvars",
		ResponseKey:   "evars",
		PayloadKey:    "evars",
		KeyField:      "id",
		EnabledField:  "enabled",
		Idempotent:    true,
		SuccessValues: []string{"true"},
		PreviewFields: []string{"type", "expiration_type"},
	},
	Props: {
		Category:      Props,
		Label:         "Props (Traffic Variables)",
		GetMethod:     "ReportSuite.GetProps",
		SaveMethod:    "ReportSuite.SaveProps",
		ResponseKey:   "props",
		PayloadKey:    "props",
		KeyField:      "id",
		EnabledField:  "enabled",
		Idempotent:    true,
		SuccessValues: []string{"true"},
		PreviewFields: []string{"pathing_enabled", "list_enabled"},
	},
	Events: {
		Category:      Events,
		Label:         "Success Events",
		GetMethod:     "ReportSuite.GetEvents",
		SaveMethod:    "ReportSuite.SaveEvents",
		ResponseKey:   "events",
		PayloadKey:    "events",
		KeyField:      "id",
		Idempotent:    true,
		SuccessValues: []string{"true"},
		PreviewFields: []string{"type", "serialization"},
	},
	InternalURLFilters: {
		Category:      InternalURLFilters,
		Label:         "Internal URL Filters",
		GetMethod:     "ReportSuite.GetInternalURLFilters",
		SaveMethod:    "ReportSuite.SaveInternalURLFilters",
		ResponseKey:   "internal_url_filters",
		PayloadKey:    "internal_url_filters",
		ValueField:    "url",
		Idempotent:    false,
		SuccessValues: []string{"true"},
	},
	MarketingChannels: {
		Category:      MarketingChannels,
		Label:         "Marketing Channels",
		GetMethod:     "ReportSuite.GetMarketingChannels",
		SaveMethod:    "ReportSuite.SaveMarketingChannels",
		ResponseKey:   "marketing_channels",
		PayloadKey:    "channels",
		KeyField:      "id",
		EnabledField:  "enabled",
		Idempotent:    true,
		SuccessValues: []string{"true"},
		PreviewFields: []string{"enabled"},
	},
	MarketingChannelRules: {
		Category:      MarketingChannelRules,
		Label:         "Marketing Channel Rules",
		GetMethod:     "ReportSuite.GetMarketingChannelRules",
		SaveMethod:    "ReportSuite.SaveMarketingChannelRules",
		ResponseKey:   "marketing_channel_rules",
		PayloadKey:    "marketing_channel_rules",
		Idempotent:    false,
		SuccessValues: []string{"true"},
		PreviewFields: []string{"channel_id"},
	},
	ListVariables: {
		Category:      ListVariables,
		Label:         "List Variables",
		GetMethod:     "ReportSuite.GetListVariables",
		SaveMethod:    "ReportSuite.SaveListVariables",
		ResponseKey:   "list_variables",
		PayloadKey:    "list_variables",
		KeyField:      "id",
		Idempotent:    true,
		SuccessValues: []string{"1", "true"},
		PreviewFields: []string{"delimiter", "allocation_type"},
	},
}

// Describe returns the descriptor of c.
func Describe(c Category) (Descriptor, error) {
	d, ok := descriptors[c]
	if !ok {
		return Descriptor{}, fmt.Errorf("no descriptor for category %q", c)
	}
	return d, nil
}

// MustDescribe is Describe for categories known to be valid.
func MustDescribe(c Category) Descriptor {
	d, err := Describe(c)
	if err != nil {
		panic(err)
	}
	return d
}
