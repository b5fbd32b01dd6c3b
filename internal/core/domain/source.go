package domain

// SourceItem is one curated entry of the ingestion seed manifest.
type SourceItem struct {
	ID       string `yaml:"id" json:"id"`
	URL      string `yaml:"url" json:"url"`
	Title    string `yaml:"title" json:"title"`
	Category string `yaml:"category" json:"category"`
	Language string `yaml:"language" json:"language"`
	Type     string `yaml:"type" json:"type"`
}

func (s SourceItem) Metadata() map[string]string {
	meta := map[string]string{}
	put := func(k, v string) {
		if v != "" {
			meta[k] = v
		}
	}
	put(MetaID, s.ID)
	put(MetaURL, s.URL)
	put(MetaTitle, s.Title)
	put(MetaCategory, s.Category)
	put(MetaLanguage, s.Language)
	put(MetaType, s.Type)
	return meta
}

// FAQItem is one curated question/answer pair.
type FAQItem struct {
	ID          string   `yaml:"id" json:"id"`
	Question    string   `yaml:"question" json:"question"`
	Answer      string   `yaml:"answer" json:"answer"`
	Topic       string   `yaml:"topic" json:"topic"`
	RoutingHint string   `yaml:"routing_hint" json:"routing_hint"`
	Region      string   `yaml:"region" json:"region"`
	Sources     []string `yaml:"sources" json:"sources"`
}

// IngestReport summarises one offline ingestion run.
type IngestReport struct {
	SeedChunks   int      `json:"seed_chunks"`
	FAQChunks    int      `json:"faq_chunks"`
	SkippedItems []string `json:"skipped_items,omitempty"`
}

func (r IngestReport) Total() int {
	return r.SeedChunks + r.FAQChunks
}
