package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/Chative-lead-agent/server/internal/agent/composer"
	"github.com/Chative-lead-agent/server/internal/agent/graph/conversations"
	"github.com/Chative-lead-agent/server/internal/agent/graph/nodes"
	"github.com/Chative-lead-agent/server/internal/agent/graph/observers"
	"github.com/Chative-lead-agent/server/internal/agent/graph/prompts"
	"github.com/Chative-lead-agent/server/internal/agent/model"
	"github.com/Chative-lead-agent/server/internal/agent/phase"
	"github.com/Chative-lead-agent/server/internal/agent/signals"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
	"github.com/Chative-lead-agent/server/pkg/resilience"
)

const (
	maxRunSteps = 20
	// apologyTimeout bounds the apology write once the turn's own context is gone.
	apologyTimeout = 5 * time.Second
)

// Runner processes customer messages one turn at a time per conversation.
type Runner interface {
	Invoke(ctx context.Context, in model.InboundMessage) (*model.Turn, error)
	// OverridePhase moves a conversation forward on an operator's request.
	OverridePhase(ctx context.Context, conversationID string, to model.Phase) (*model.AgentState, error)
}

// Deps are the collaborators a turn talks to. Search, Meetings and Outbound are optional.
type Deps struct {
	Store    model.Store
	Search   model.KnowledgeSearch
	Meetings model.MeetingPublisher
	Outbound model.OutboundPublisher
	Locker   model.Locker
	Clock    model.Clock

	// TurnTimeout bounds one turn once the lock is held. Keep it below the lock TTL.
	TurnTimeout time.Duration
}

// Config holds everything needed to compose the turn graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the Gemini models.
type Config struct {
	APIKey          string
	BaseURL         string
	ExtractionModel model.ExtractionModelConfig
	ResponseModel   model.ResponseModelConfig
	ResponsePrompt  model.ResponsePromptConfig
	Knowledge       model.KnowledgeConfig
	// Completion guards both model calls.
	Completion resilience.Config
	Deps
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Extraction     model.TextCompletion
	Response       model.TextCompletion
	ResponsePrompt model.ResponsePromptConfig
	Knowledge      model.KnowledgeConfig
	Deps
}

// GraphBuilder handles the construction of the turn graph
type GraphBuilder struct {
	config   *GraphConfig
	manager  *conversations.Manager
	composer *composer.Composer
	graph    *compose.Graph[model.InboundMessage, *model.Turn]
}

type graphRunner struct {
	runnable compose.Runnable[model.InboundMessage, *model.Turn]
	manager  *conversations.Manager
	store    model.StateRepository
	locker   model.Locker
	clock    model.Clock
	timeout  time.Duration
}

func (r *graphRunner) Invoke(ctx context.Context, in model.InboundMessage) (*model.Turn, error) {
	ctx = logx.WithConversation(ctx, in.ConversationID)
	log := logx.Ctx(ctx)

	release, err := r.locker.Acquire(ctx, in.ConversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	turnCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	started := time.Now()
	turn, err := r.runnable.Invoke(turnCtx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		log.Error().Err(err).Str("message_id", in.MessageID).Dur("latency", time.Since(started)).Msg("turn aborted")
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), apologyTimeout)
		defer cancel()
		r.manager.Apologize(actx, in)
		return nil, fmt.Errorf("process turn: %w", err)
	}

	log.Info().
		Str("message_id", in.MessageID).
		Int("lead_score", turn.Lead.Score).
		Str("phase", turn.State.Phase.String()).
		Str("action", string(turn.Transition.Action)).
		Str("reply_kind", string(turn.Outbound.Kind)).
		Float64("cost_usd", turn.CostUSD).
		Dur("latency", time.Since(started)).
		Msg("turn completed")
	return turn, nil
}

func (r *graphRunner) OverridePhase(ctx context.Context, conversationID string, to model.Phase) (*model.AgentState, error) {
	ctx = logx.WithConversation(ctx, conversationID)
	release, err := r.locker.Acquire(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := r.store.GetState(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := phase.Override(st.Phase, to); err != nil {
		return nil, err
	}
	from := st.Phase
	st.Phase = to
	st.LastUpdated = r.clock().UTC()
	if err := r.store.SaveState(ctx, st); err != nil {
		return nil, err
	}
	logx.Ctx(ctx).Info().Str("from", from.String()).Str("to", to.String()).Msg("phase overridden")
	return st, nil
}

// BuildResponseGraph creates the guarded Gemini models, builds the graph and returns a Runner.
func BuildResponseGraph(ctx context.Context, cfg Config) (Runner, error) {
	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Extraction: &cfg.ExtractionModel,
		Response:   &cfg.ResponseModel,
	})
	if err != nil {
		return nil, err
	}

	return NewRunner(ctx, &GraphConfig{
		Extraction:     resilience.GuardCompletion(cms.Extraction, resilience.NewGuard(nodes.NodeExtractionModel, cfg.Completion)),
		Response:       resilience.GuardCompletion(cms.Response, resilience.NewGuard(nodes.NodeResponseModel, cfg.Completion)),
		ResponsePrompt: cfg.ResponsePrompt,
		Knowledge:      cfg.Knowledge,
		Deps:           cfg.Deps,
	})
}

// NewRunner builds the graph over the given completions.
func NewRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Store == nil || config.Locker == nil {
		return nil, fmt.Errorf("store and locker are required")
	}

	manager := conversations.NewManager(config.Store, config.Outbound, config.Clock)
	runnable, err := BuildGraph(ctx, config, manager)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Turn graph built successfully")
	return &graphRunner{
		runnable: runnable,
		manager:  manager,
		store:    config.Store,
		locker:   config.Locker,
		clock:    config.Clock,
		timeout:  config.TurnTimeout,
	}, nil
}

// BuildGraph constructs and returns the compiled turn graph
func BuildGraph(ctx context.Context, config *GraphConfig, manager *conversations.Manager) (compose.Runnable[model.InboundMessage, *model.Turn], error) {
	if config.Extraction == nil || config.Response == nil {
		return nil, fmt.Errorf("completions are not properly initialized")
	}

	catalog, err := prompts.LoadPhaseCatalog(config.ResponsePrompt)
	if err != nil {
		return nil, fmt.Errorf("load phase prompts: %w", err)
	}

	builder := &GraphBuilder{
		config:   config,
		manager:  manager,
		composer: composer.New(config.Response, catalog, config.Knowledge.SnippetLength),
		graph: compose.NewGraph[model.InboundMessage, *model.Turn](
			compose.WithGenLocalState(func(ctx context.Context) *model.TurnState {
				return &model.TurnState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	limit := b.config.Knowledge.Limit
	if limit <= 0 {
		limit = 3
	}
	extractor := signals.NewExtractor(b.config.Extraction, b.config.ResponsePrompt)

	steps := []struct {
		name   string
		lambda *compose.Lambda
		opts   []compose.GraphAddNodeOpt
	}{
		{nodes.NodeLoadConversation, nodes.NewLoadConversationNode(b.manager),
			[]compose.GraphAddNodeOpt{compose.WithStatePreHandler(nodes.NewLoadPreHandler(b.config.Clock))}},
		{nodes.NodeGatherSignals, nodes.NewGatherSignalsNode(extractor, b.config.Search, limit), nil},
		{nodes.NodeScoreLead, nodes.NewScoreLeadNode(b.config.Store), nil},
		{nodes.NodeTransition, nodes.NewTransitionNode(), nil},
		{nodes.NodeComposeReply, nodes.NewComposeReplyNode(b.composer, b.manager), nil},
		{nodes.NodePersistTurn, nodes.NewPersistTurnNode(b.config.Store, b.manager), nil},
		{nodes.NodeRequestMeeting, nodes.NewRequestMeetingNode(b.config.Meetings), nil},
	}
	for _, s := range steps {
		if err := b.graph.AddLambdaNode(s.name, s.lambda, s.opts...); err != nil {
			return fmt.Errorf("add node %s: %w", s.name, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeLoadConversation},
		{nodes.NodeLoadConversation, nodes.NodeGatherSignals},
		{nodes.NodeGatherSignals, nodes.NodeScoreLead},
		{nodes.NodeScoreLead, nodes.NodeTransition},
		{nodes.NodeTransition, nodes.NodeComposeReply},
		{nodes.NodeComposeReply, nodes.NodePersistTurn},
		{nodes.NodeRequestMeeting, compose.END},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	meetingBranch := compose.NewGraphBranch(
		nodes.NewMeetingCondition(),
		map[string]bool{
			nodes.NodeRequestMeeting: true,
			compose.END:              true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodePersistTurn, meetingBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding meeting branch")
		return fmt.Errorf("error adding meeting branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.InboundMessage, *model.Turn], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxRunSteps), compose.WithGraphName("lead_turn"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
