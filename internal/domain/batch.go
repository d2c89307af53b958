package domain

// ProviderDescriptor is one external course source inside a batch.
// Slug is unique within its batch and feeds record ids.
type ProviderDescriptor struct {
	Name     string `json:"name" yaml:"name"`
	Slug     string `json:"slug" yaml:"slug"`
	URL      string `json:"url" yaml:"url"`
	Priority int    `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// SourceBatch is a fixed group of providers fetched together in one
// submit/poll cycle. Provider order is significant: the extraction job
// returns one result per URL in the same order.
type SourceBatch struct {
	Number    int                  `json:"batchNumber" yaml:"number"`
	Name      string               `json:"name" yaml:"name"`
	Providers []ProviderDescriptor `json:"providers" yaml:"providers"`
}

// URLs returns the fetch targets in provider order.
func (b SourceBatch) URLs() []string {
	out := make([]string, 0, len(b.Providers))
	for _, p := range b.Providers {
		out = append(out, p.URL)
	}
	return out
}
