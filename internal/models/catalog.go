package models

// Catalog is a batch of configuration records imported together.
type Catalog struct {
	Instances []Instance `json:"instances,omitempty"`
	Options   []Option   `json:"options,omitempty"`
	Campaigns []Campaign `json:"campaigns,omitempty"`
	Profiles  []Profile  `json:"profiles,omitempty"`
}

// Empty reports whether the catalog holds no records.
func (c Catalog) Empty() bool {
	return len(c.Instances) == 0 && len(c.Options) == 0 && len(c.Campaigns) == 0 && len(c.Profiles) == 0
}
