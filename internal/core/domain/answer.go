package domain

import (
	"fmt"
	"time"
)

// Route is the terminal branch the router took for a question.
type Route string

const (
	RouteEmergency      Route = "emergency"
	RouteOutOfScope     Route = "out_of_scope"
	RouteMemberSpecific Route = "member_specific"
	RouteNoEvidence     Route = "no_evidence"
	RouteGenerated      Route = "generated"
)

type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (c Citation) Render() string {
	return fmt.Sprintf("- %s → %s", c.Title, c.URL)
}

// Passage is a retrieved document returned alongside the answer.
type Passage struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

// Response is the produced interface of one question invocation.
type Response struct {
	Answer    string    `json:"answer"`
	Citations []string  `json:"citations"`
	Docs      []Passage `json:"docs"`
	Route     Route     `json:"route"`
}

// Interaction is one recorded invocation.
type Interaction struct {
	ID         string    `json:"id"`
	Question   string    `json:"question"`
	Route      Route     `json:"route"`
	Answer     string    `json:"answer"`
	Citations  []string  `json:"citations"`
	DocCount   int       `json:"doc_count"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
