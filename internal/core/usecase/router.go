package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/aok-rag-assistant/internal/core/domain"
	"github.com/kirillkom/aok-rag-assistant/internal/core/guardrail"
	"github.com/kirillkom/aok-rag-assistant/internal/core/ports"
)

type State int

const (
	StateStart State = iota
	StateEmergency
	StateOutOfScope
	StateMemberSpecific
	StateRetrieve
	StateGenerate
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateEmergency:
		return "EMERGENCY"
	case StateOutOfScope:
		return "OUT_OF_SCOPE"
	case StateMemberSpecific:
		return "MEMBER_SPECIFIC"
	case StateRetrieve:
		return "RETRIEVE"
	case StateGenerate:
		return "GENERATE"
	case StateEnd:
		return "END"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RouterState is the per-request payload flowing through the dispatcher.
type RouterState struct {
	Question  string
	Hits      []domain.RetrievalHit
	Answer    string
	Citations []domain.Citation
	Route     domain.Route

	terminal bool
}

func (s *RouterState) Terminal() bool { return s.terminal }

// statePatch is the payload change produced by one step. Setting answer
// makes the state terminal.
type statePatch struct {
	hits      []domain.RetrievalHit
	setHits   bool
	answer    string
	setAnswer bool
	citations []domain.Citation
	route     domain.Route
}

func (s *RouterState) apply(p statePatch) error {
	if !p.setHits && !p.setAnswer {
		return nil
	}
	if s.terminal {
		return domain.WrapError(domain.ErrTerminalState, "apply patch", errors.New("answer already set"))
	}
	if p.setHits {
		s.Hits = p.hits
	}
	if p.setAnswer {
		s.Answer = p.answer
		s.Citations = p.citations
		s.Route = p.route
		s.terminal = true
	}
	return nil
}

func answerPatch(route domain.Route, answer string, citations []domain.Citation) statePatch {
	if citations == nil {
		citations = []domain.Citation{}
	}
	return statePatch{setAnswer: true, answer: answer, citations: citations, route: route}
}

type RouterConfig struct {
	PoolSize      int
	TopK          int
	MinEvidence   int
	RerankEnabled bool
	Prompt        PromptLimits
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		PoolSize:      defaultPoolSize,
		TopK:          4,
		MinEvidence:   1,
		RerankEnabled: true,
		Prompt:        DefaultPromptLimits(),
	}
}

// Router is the guardrail-routing dispatcher behind ports.QuestionAnswerer.
type Router struct {
	retriever *FusionRetriever
	reranker  *Reranker
	generator ports.Generator
	cfg       RouterConfig
	logger    *slog.Logger
}

func NewRouter(
	retriever *FusionRetriever,
	reranker *Reranker,
	generator ports.Generator,
	cfg RouterConfig,
	logger *slog.Logger,
) *Router {
	def := DefaultRouterConfig()
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.MinEvidence <= 0 {
		cfg.MinEvidence = def.MinEvidence
	}
	cfg.Prompt = cfg.Prompt.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		retriever: retriever,
		reranker:  reranker,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

func (r *Router) Invoke(ctx context.Context, question string) (*domain.Response, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "invoke", errors.New("empty question"))
	}

	rs, err := r.Run(ctx, question)
	if err != nil {
		return nil, err
	}
	return toResponse(rs), nil
}

// Run drives the dispatcher from START to END and returns the final state.
func (r *Router) Run(ctx context.Context, question string) (*RouterState, error) {
	rs := &RouterState{Question: question}
	state := StateStart
	for state != StateEnd {
		next, patch, err := r.step(ctx, state, rs)
		if err != nil {
			r.logger.Warn("router_step_failed", "state", state.String(), "error", err)
			return nil, err
		}
		if err := rs.apply(patch); err != nil {
			return nil, err
		}
		r.logger.Debug("router_transition", "from", state.String(), "to", next.String())
		state = next
	}

	r.logger.Info("router_route", "route", string(rs.Route), "hits", len(rs.Hits), "citations", len(rs.Citations))
	return rs, nil
}

func (r *Router) step(ctx context.Context, state State, rs *RouterState) (State, statePatch, error) {
	switch state {
	case StateStart:
		return routeFor(guardrail.Classify(rs.Question)), statePatch{}, nil
	case StateEmergency:
		return StateEnd, answerPatch(domain.RouteEmergency, guardrail.EmergencyMessage, nil), nil
	case StateOutOfScope:
		return StateEnd, answerPatch(domain.RouteOutOfScope, guardrail.OutOfScopeMessage, nil), nil
	case StateMemberSpecific:
		return StateEnd, answerPatch(domain.RouteMemberSpecific, guardrail.MemberSpecificMessage, nil), nil
	case StateRetrieve:
		return r.retrieve(ctx, rs)
	case StateGenerate:
		return r.generate(ctx, rs)
	default:
		return StateEnd, statePatch{}, fmt.Errorf("router: unexpected state %s", state)
	}
}

func routeFor(category guardrail.Category) State {
	switch category {
	case guardrail.Emergency:
		return StateEmergency
	case guardrail.OutOfScope:
		return StateOutOfScope
	case guardrail.MemberSpecific:
		return StateMemberSpecific
	default:
		return StateRetrieve
	}
}

func (r *Router) retrieve(ctx context.Context, rs *RouterState) (State, statePatch, error) {
	pool, err := r.retriever.Retrieve(ctx, rs.Question, r.cfg.PoolSize)
	if err != nil {
		return StateEnd, statePatch{}, err
	}
	hits, err := r.reranker.Rerank(ctx, rs.Question, pool, r.cfg.TopK, r.cfg.RerankEnabled)
	if err != nil {
		return StateEnd, statePatch{}, err
	}

	if guardrail.NeedsFallback(len(hits), r.cfg.MinEvidence) {
		patch := answerPatch(domain.RouteNoEvidence, guardrail.NoEvidenceMessage, nil)
		patch.setHits = true
		patch.hits = []domain.RetrievalHit{}
		return StateEnd, patch, nil
	}
	return StateGenerate, statePatch{setHits: true, hits: hits}, nil
}

func (r *Router) generate(ctx context.Context, rs *RouterState) (State, statePatch, error) {
	contexts := make([]string, 0, len(rs.Hits))
	for _, hit := range rs.Hits {
		contexts = append(contexts, hit.Chunk.Text)
	}
	prompt := buildGroundedPrompt(rs.Question, contexts, r.cfg.Prompt)

	raw, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return StateEnd, statePatch{}, domain.WrapError(domain.ErrGenerationFailure, "generate", err)
	}

	citations := buildCitations(rs.Hits)
	answer := composeAnswer(stripModelSources(raw), renderCitations(citations))
	return StateEnd, answerPatch(domain.RouteGenerated, answer, citations), nil
}

func toResponse(rs *RouterState) *domain.Response {
	docs := make([]domain.Passage, 0, len(rs.Hits))
	for _, hit := range rs.Hits {
		docs = append(docs, domain.Passage{
			Text:     hit.Chunk.Text,
			Metadata: hit.Chunk.Metadata,
			Score:    hit.Score,
		})
	}
	return &domain.Response{
		Answer:    rs.Answer,
		Citations: renderCitations(rs.Citations),
		Docs:      docs,
		Route:     rs.Route,
	}
}
